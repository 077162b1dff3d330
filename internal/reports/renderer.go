package reports

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"field-service/internal/apperrors"
	"field-service/internal/metrics"
	"field-service/internal/models"
	"field-service/internal/placeholder"

	"go.uber.org/zap"
)

//go:embed templates/report.html
var templateFS embed.FS

var defaultTemplate = mustReadTemplate()

func mustReadTemplate() string {
	b, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		panic(err)
	}
	return string(b)
}

const notAvailable = "N/A"

// Rasterizer превращает готовый HTML в PDF.
type Rasterizer interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// ReportSource отдаёт отчёт со всеми связями для шаблона.
type ReportSource interface {
	FindForRender(ctx context.Context, id string) (*models.Report, error)
}

type Renderer struct {
	source   ReportSource
	raster   Rasterizer
	template string
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewRenderer: при пустом tmpl используется встроенный шаблон.
func NewRenderer(source ReportSource, raster Rasterizer, tmpl string, timeout time.Duration, m *metrics.Metrics, log *zap.Logger) *Renderer {
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{
		source:   source,
		raster:   raster,
		template: tmpl,
		timeout:  timeout,
		metrics:  m,
		log:      log,
	}
}

// LoadTemplate читает шаблон из файла; для пустого пути берётся встроенный шаблон.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report template: %w", err)
	}
	return string(b), nil
}

func (r *Renderer) Template() string { return r.template }

func (r *Renderer) Render(ctx context.Context, reportID, out string) error {
	report, err := r.source.FindForRender(ctx, reportID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Wrap(apperrors.ErrRender, "Report not found!", err)
		}
		return apperrors.Wrap(apperrors.ErrRender, "Failed to load report data", err)
	}

	fields, err := FieldsFor(report)
	if err != nil {
		return err
	}
	return r.RenderFields(ctx, fields, out)
}

func (r *Renderer) RenderFields(ctx context.Context, fields map[string]string, out string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	pdf, err := r.raster.PrintPDF(ctx, placeholder.Fill(r.template, fields))
	r.metrics.ObserveRender(time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrap(apperrors.ErrRender, "Report rendering timed out", err)
		}
		return apperrors.Wrap(apperrors.ErrRender, "Failed to render report", err)
	}

	if err := writeAtomic(out, pdf); err != nil {
		return apperrors.Wrap(apperrors.ErrRender, "Failed to save report", err)
	}

	r.log.Info("report rendered",
		zap.String("path", out),
		zap.Int("bytes", len(pdf)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// FieldsFor собирает значения плейсхолдеров шаблона. Все значения
// экранированы для HTML, пустые необязательные заменены на N/A.
func FieldsFor(report *models.Report) (map[string]string, error) {
	switch {
	case report.Engineer == nil:
		return nil, apperrors.New(apperrors.ErrRender, "Report engineer is missing")
	case report.Customer == nil:
		return nil, apperrors.New(apperrors.ErrRender, "Report customer is missing")
	case report.Schedule == nil:
		return nil, apperrors.New(apperrors.ErrRender, "Report schedule is missing")
	case report.Category == nil:
		return nil, apperrors.New(apperrors.ErrRender, "Report category is missing")
	}

	loc := engineerLocation(report.Engineer)

	var brand, model, serial string
	if len(report.Customer.Products) > 0 {
		p := report.Customer.Products[0]
		brand, model, serial = p.Brand, p.Model, p.SerialNumber
	}

	names := make([]string, 0, len(report.Services))
	for _, s := range report.Services {
		names = append(names, s.Name)
	}

	executeAt := report.Schedule.ExecuteAt.In(loc)
	raw := map[string]string{
		"report_id":             report.ID,
		"company_name":          report.Customer.Company,
		"customer_name":         report.Customer.Name,
		"address":               deref(report.Customer.Address),
		"position":              deref(report.Customer.Position),
		"brand":                 brand,
		"model":                 model,
		"serial_number":         serial,
		"problem":               report.Problem,
		"engineer_name":         report.Engineer.Name,
		"date":                  executeAt.Format("2006-01-02"),
		"time":                  executeAt.Format("15:04"),
		"detail_service":        strings.Join(names, ", "),
		"service_category":      report.Category.Name,
		"service_status":        string(report.ServiceStatus),
		"report_date":           report.ReportDate.In(loc).Format("2006-01-02"),
		"processing_time_start": report.ProcessingTimeStart.In(loc).Format("2006-01-02 15:04"),
		"processing_time_end":   report.ProcessingTimeEnd.In(loc).Format("2006-01-02 15:04"),
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if strings.TrimSpace(v) == "" {
			v = notAvailable
		}
		fields[k] = html.EscapeString(v)
	}
	return fields, nil
}

func engineerLocation(u *models.User) *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
