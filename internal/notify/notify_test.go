package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSignatureRequest(t *testing.T) {
	body, err := Render(TemplateSignatureRequest, map[string]string{
		"customer_name": "Budi Santoso",
		"signature_url": "https://app.example.com/signature/r-1",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Dear Budi Santoso")
	assert.Contains(t, body, `href="https://app.example.com/signature/r-1"`)
	assert.NotContains(t, body, "{{")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("nope", nil)
	assert.Error(t, err)
}

func TestComposeFinalReport(t *testing.T) {
	mm, err := Compose("reports@example.com", Message{
		To:       []string{"customer@example.com", "admin@example.com"},
		Template: TemplateFinalReport,
		Values:   map[string]string{"customer_name": "Budi", "report_id": "r-1"},
		Attachments: []Attachment{
			{Name: "Signed_Service_Report.pdf", Content: []byte("%PDF-1.7 test")},
		},
	})
	require.NoError(t, err)

	rcpts, err := mm.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"customer@example.com", "admin@example.com"}, rcpts)

	var buf bytes.Buffer
	_, err = mm.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "Subject: Your Service Report Has Been Signed")
	assert.Contains(t, raw, "Signed_Service_Report.pdf")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
}

func TestComposeRejectsBadRecipient(t *testing.T) {
	_, err := Compose("reports@example.com", Message{
		To:       []string{"not an address"},
		Template: TemplateFinalReport,
	})
	assert.Error(t, err)
}

func TestPlainTextStripsMarkup(t *testing.T) {
	text := plainText("<html><head><title>x</title></head><body><p>Hello</p>\n\n\n<p>World</p></body></html>")
	assert.Equal(t, "Hello\n\nWorld", text)
}

func TestRenderEscapesValues(t *testing.T) {
	body, err := Render(TemplateSignatureRequest, map[string]string{
		"customer_name": `<a href="https://evil.example">Click to pay</a>`,
		"signature_url": "https://app.example.com/signature/r-1?a=1&b=2",
	})
	require.NoError(t, err)

	assert.NotContains(t, body, `<a href="https://evil.example">`)
	assert.Contains(t, body, "Dear &lt;a href=&#34;https://evil.example&#34;&gt;Click to pay&lt;/a&gt;")
	assert.Contains(t, body, `href="https://app.example.com/signature/r-1?a=1&amp;b=2"`)

	// текстовая версия письма не интерпретирует HTML, сущности в ней раскрыты
	text := plainText(body)
	assert.Contains(t, text, "Click to pay")
	assert.NotContains(t, text, "&lt;")
}
