// Package notify отправляет письма по HTML-шаблонам с плейсхолдерами {{key}}.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"field-service/internal/placeholder"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	TemplateSignatureRequest = "customer_signature_request"
	TemplateFinalReport      = "final_report"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[string]string{
	TemplateSignatureRequest: "Your Service Report - Signature Required",
	TemplateFinalReport:      "Your Service Report Has Been Signed",
}

type Attachment struct {
	Name    string
	Content []byte
}

type Message struct {
	To          []string
	Template    string
	Values      map[string]string
	Attachments []Attachment
}

// Sender: всё, что нужно жизненному циклу отчёта от почты
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type Mailer struct {
	client *mail.Client
	from   string
	log    *zap.Logger
}

func NewMailer(cfg SMTPConfig, log *zap.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is not set")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Mailer{client: client, from: cfg.From, log: log}, nil
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	mm, err := Compose(m.from, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("send %s email: %w", msg.Template, err)
	}

	m.log.Info("email sent",
		zap.String("template", msg.Template),
		zap.Strings("to", msg.To),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

// Compose собирает письмо без отправки: HTML-версия из шаблона и текстовая альтернатива.
func Compose(from string, msg Message) (*mail.Msg, error) {
	body, err := Render(msg.Template, msg.Values)
	if err != nil {
		return nil, err
	}

	mm := mail.NewMsg()
	if err := mm.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := mm.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	mm.Subject(subjects[msg.Template])
	mm.SetDate()
	mm.SetMessageID()

	mm.SetBodyString(mail.TypeTextPlain, plainText(body))
	mm.AddAlternativeString(mail.TypeTextHTML, body)

	for _, a := range msg.Attachments {
		if err := mm.AttachReader(a.Name, bytes.NewReader(a.Content)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return mm, nil
}

// Render подставляет значения в встроенный шаблон письма. Значения
// экранируются: имя клиента и прочие поля приходят из базы как есть.
func Render(name string, values map[string]string) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + name + ".html")
	if err != nil {
		return "", fmt.Errorf("unknown email template %q", name)
	}

	escaped := make(map[string]string, len(values))
	for k, v := range values {
		escaped[k] = html.EscapeString(v)
	}
	return placeholder.Fill(string(raw), escaped), nil
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	blankPattern = regexp.MustCompile(`\n\s*\n+`)
)

func plainText(body string) string {
	if i := strings.Index(body, "<body"); i >= 0 {
		body = body[i:]
	}
	text := tagPattern.ReplaceAllString(body, "")
	text = blankPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(html.UnescapeString(text))
}
