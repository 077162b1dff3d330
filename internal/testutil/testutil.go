// Package testutil содержит общие помощники для тестов: sqlite в памяти, фикстуры,
// PNG-подписи и настоящие PDF без браузера.
package testutil

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"field-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const Password = "secret123"

// SetupTestDB открывает отдельную sqlite-базу в памяти и мигрирует схему.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	// одно соединение: иначе транзакции sqlite упираются в блокировки
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Product{},
		&models.Schedule{},
		&models.Service{},
		&models.Category{},
		&models.Report{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// Fixture: минимальный набор связанных записей для отчёта
type Fixture struct {
	Engineer *models.User
	Admin    *models.User
	Customer *models.Customer
	Schedule *models.Schedule
	Category *models.Category
	Services []models.Service
}

func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	position := "Facility Manager"
	address := "Jl. Sudirman 1, Jakarta"
	f := &Fixture{
		Engineer: &models.User{Name: "Eko Engineer", Email: "engineer@example.com", PasswordHash: string(hash), Role: models.RoleEngineer, Timezone: "Asia/Jakarta"},
		Admin:    &models.User{Name: "Ani Admin", Email: "admin@example.com", PasswordHash: string(hash), Role: models.RoleAdmin},
		Customer: &models.Customer{
			Name:     "Budi Santoso",
			Company:  "PT Maju Jaya",
			Position: &position,
			Email:    "budi@example.com",
			Address:  &address,
			Products: []models.Product{{Brand: "Daikin", Model: "FTKC50", SerialNumber: "SN-001"}},
		},
		Category: &models.Category{Name: "Maintenance"},
		Services: []models.Service{{Name: "Cleaning"}, {Name: "Freon refill"}, {Name: "Inspection"}},
	}

	must(t, db.Create(f.Engineer).Error)
	must(t, db.Create(f.Admin).Error)
	must(t, db.Create(f.Customer).Error)
	must(t, db.Create(f.Category).Error)
	must(t, db.Create(&f.Services).Error)

	f.Schedule = &models.Schedule{
		TaskName:   "AC maintenance",
		ExecuteAt:  time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC),
		EngineerID: f.Engineer.ID,
		AdminID:    f.Admin.ID,
	}
	must(t, db.Create(f.Schedule).Error)
	return f
}

// ReportInput возвращает корректный запрос на создание отчёта по фикстуре.
func (f *Fixture) ReportInput() models.CreateReportInput {
	start := time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	ids := make([]string, 0, len(f.Services))
	for _, s := range f.Services {
		ids = append(ids, s.ID)
	}
	return models.CreateReportInput{
		ScheduleID:          f.Schedule.ID,
		EngineerID:          f.Engineer.ID,
		CustomerID:          f.Customer.ID,
		ServiceIDs:          ids,
		CategoryID:          f.Category.ID,
		Problem:             "Unit is leaking water",
		ProcessingTimeStart: &start,
		ProcessingTimeEnd:   &end,
		ReportDate:          &date,
		ServiceStatus:       models.ServiceFinished,
		Status:              models.ReportDraft,
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// SignaturePNG возвращает base64 PNG заданного размера с диагональной линией.
func SignaturePNG(t *testing.T, w, h int) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(pngBytes(t, w, h))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		y := x * h / w
		img.Set(x, y, color.RGBA{R: 10, G: 20, B: 120, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WritePDF создаёт в path одностраничный PDF из картинки средствами pdfcpu.
func WritePDF(t *testing.T, path string) {
	t.Helper()
	WritePDFPages(t, path, 1)
}

// WritePDFPages создаёт PDF из pages страниц формата A4, по картинке на страницу.
func WritePDFPages(t *testing.T, path string, pages int) {
	t.Helper()

	dir := t.TempDir()
	imgs := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		img := filepath.Join(dir, fmt.Sprintf("page-%d.png", i+1))
		if err := os.WriteFile(img, pngBytes(t, 595, 842), 0o644); err != nil {
			t.Fatalf("write page image: %v", err)
		}
		imgs = append(imgs, img)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := pdfapi.ImportImagesFile(imgs, path, pdfcpu.DefaultImportConfig(), nil); err != nil {
		t.Fatalf("create pdf: %v", err)
	}
}

// FakeRasterizer отдаёт заранее собранный PDF вместо печати через браузер.
type FakeRasterizer struct {
	mu    sync.Mutex
	pdf   []byte
	calls int
	last  string
	Err   error
}

func NewFakeRasterizer(t *testing.T) *FakeRasterizer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	WritePDF(t, path)
	pdf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture pdf: %v", err)
	}
	return &FakeRasterizer{pdf: pdf}
}

func (f *FakeRasterizer) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = html
	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]byte(nil), f.pdf...), nil
}

func (f *FakeRasterizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeRasterizer) LastHTML() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// SetupRouter возвращает gin в тестовом режиме с восстановлением после паники.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// DoRequest выполняет запрос к роутеру. body: готовое тело или nil.
func DoRequest(r http.Handler, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
