package reports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"field-service/internal/apperrors"
	"field-service/internal/models"
	"field-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	report *models.Report
	err    error
}

func (s stubSource) FindForRender(context.Context, string) (*models.Report, error) {
	return s.report, s.err
}

func sampleReport() *models.Report {
	address := "Jl. Merdeka <5>"
	return &models.Report{
		Base:     models.Base{ID: "r-1"},
		Engineer: &models.User{Name: "Eko", Timezone: "Asia/Jakarta"},
		Customer: &models.Customer{
			Name:     "Budi & Sons",
			Address:  &address,
			Products: []models.Product{{Brand: "Daikin", Model: "FTKC50", SerialNumber: "SN-1"}},
		},
		Schedule:            &models.Schedule{ExecuteAt: time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)},
		Category:            &models.Category{Name: "Maintenance"},
		Services:            []models.Service{{Name: "Cleaning"}, {Name: "Inspection"}},
		Problem:             "Leaking",
		ServiceStatus:       models.ServiceFinished,
		ReportDate:          time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		ProcessingTimeStart: time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC),
		ProcessingTimeEnd:   time.Date(2024, 5, 10, 4, 30, 0, 0, time.UTC),
	}
}

func TestFieldsFor(t *testing.T) {
	fields, err := FieldsFor(sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "r-1", fields["report_id"])
	assert.Equal(t, "Budi &amp; Sons", fields["customer_name"])
	assert.Equal(t, "Jl. Merdeka &lt;5&gt;", fields["address"])
	assert.Equal(t, "N/A", fields["company_name"])
	assert.Equal(t, "N/A", fields["position"])
	assert.Equal(t, "Daikin", fields["brand"])
	assert.Equal(t, "Cleaning, Inspection", fields["detail_service"])
	assert.Equal(t, "Maintenance", fields["service_category"])
	// время визита в часовом поясе инженера (UTC+7)
	assert.Equal(t, "2024-05-10", fields["date"])
	assert.Equal(t, "09:30", fields["time"])
	assert.Equal(t, "2024-05-10 11:30", fields["processing_time_end"])
}

func TestFieldsForWithoutProducts(t *testing.T) {
	r := sampleReport()
	r.Customer.Products = nil

	fields, err := FieldsFor(r)
	require.NoError(t, err)
	assert.Equal(t, "N/A", fields["brand"])
	assert.Equal(t, "N/A", fields["model"])
	assert.Equal(t, "N/A", fields["serial_number"])
}

func TestRenderWritesPDF(t *testing.T) {
	raster := testutil.NewFakeRasterizer(t)
	r := NewRenderer(stubSource{report: sampleReport()}, raster, "", time.Second, nil, nil)

	out := filepath.Join(t.TempDir(), "reports", "r-1.pdf")
	require.NoError(t, r.Render(context.Background(), "r-1", out))

	assert.FileExists(t, out)
	assert.Equal(t, 1, raster.Calls())
	assert.Contains(t, raster.LastHTML(), "Budi &amp; Sons")
	assert.NotContains(t, raster.LastHTML(), "{{customer_name}}")
}

func TestRenderMissingReport(t *testing.T) {
	raster := testutil.NewFakeRasterizer(t)
	src := stubSource{err: apperrors.New(apperrors.ErrNotFound, "Report not found.")}
	r := NewRenderer(src, raster, "", time.Second, nil, nil)

	err := r.Render(context.Background(), "missing", filepath.Join(t.TempDir(), "x.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrRender)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, raster.Calls())
}

func TestRenderMissingJoinFailsBeforeRasterizer(t *testing.T) {
	report := sampleReport()
	report.Category = nil

	raster := testutil.NewFakeRasterizer(t)
	r := NewRenderer(stubSource{report: report}, raster, "", time.Second, nil, nil)

	err := r.Render(context.Background(), "r-1", filepath.Join(t.TempDir(), "x.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrRender)
	assert.Equal(t, 0, raster.Calls())
}

func TestRenderRasterizerFailureLeavesNoFile(t *testing.T) {
	raster := testutil.NewFakeRasterizer(t)
	raster.Err = errors.New("chrome crashed")
	r := NewRenderer(stubSource{report: sampleReport()}, raster, "", time.Second, nil, nil)

	out := filepath.Join(t.TempDir(), "x.pdf")
	err := r.Render(context.Background(), "r-1", out)
	assert.ErrorIs(t, err, apperrors.ErrRender)
	assert.NoFileExists(t, out)
}

func TestRenderTimeout(t *testing.T) {
	raster := testutil.NewFakeRasterizer(t)
	raster.Err = context.DeadlineExceeded
	r := NewRenderer(stubSource{report: sampleReport()}, raster, "", time.Millisecond, nil, nil)

	err := r.Render(context.Background(), "r-1", filepath.Join(t.TempDir(), "x.pdf"))
	require.ErrorIs(t, err, apperrors.ErrRender)
	assert.Equal(t, "Report rendering timed out", apperrors.PublicMessage(err, ""))
}

func TestLoadTemplate(t *testing.T) {
	tmpl, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Contains(t, tmpl, "signature-slot:engineer")

	path := filepath.Join(t.TempDir(), "custom.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>{{report_id}}</p>"), 0o644))
	tmpl, err = LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "<p>{{report_id}}</p>", tmpl)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}
