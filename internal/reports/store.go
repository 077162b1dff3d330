package reports

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

type Variant string

const (
	VariantBase           Variant = "base"
	VariantEngineerSigned Variant = "engineer_signed"
	VariantFinal          Variant = "final"
)

// BaseRenderer рендерит неподписанный PDF отчёта в out.
type BaseRenderer interface {
	Render(ctx context.Context, reportID, out string) error
}

// Store хранит PDF-артефакты отчётов на диске. Путь зависит только от ID и варианта.
type Store struct {
	dir      string
	renderer BaseRenderer
	log      *zap.Logger
}

func NewStore(dir string, renderer BaseRenderer, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, renderer: renderer, log: log}
}

func (s *Store) PathFor(reportID string, v Variant) string {
	base := filepath.Join(s.dir, reportID+".pdf")
	switch v {
	case VariantEngineerSigned:
		return SignedPath(base)
	case VariantFinal:
		return filepath.Join(s.dir, reportID+"_final.pdf")
	default:
		return base
	}
}

func (s *Store) Exists(reportID string, v Variant) bool {
	info, err := os.Stat(s.PathFor(reportID, v))
	return err == nil && !info.IsDir()
}

// EnsureBase возвращает путь к базовому PDF и рендерит его, если файла нет.
func (s *Store) EnsureBase(ctx context.Context, reportID string) (string, error) {
	path := s.PathFor(reportID, VariantBase)
	if s.Exists(reportID, VariantBase) {
		return path, nil
	}

	s.log.Info("base report artifact missing, rendering", zap.String("report_id", reportID))
	if err := s.renderer.Render(ctx, reportID, path); err != nil {
		return "", err
	}
	return path, nil
}

// Regenerate всегда перерисовывает базовый PDF.
func (s *Store) Regenerate(ctx context.Context, reportID string) (string, error) {
	path := s.PathFor(reportID, VariantBase)
	if err := s.renderer.Render(ctx, reportID, path); err != nil {
		return "", err
	}
	return path, nil
}

// Remove удаляет все варианты PDF отчёта. Отсутствующие файлы не считаются ошибкой.
func (s *Store) Remove(reportID string) error {
	var errs []error
	for _, v := range []Variant{VariantBase, VariantEngineerSigned, VariantFinal} {
		if err := os.Remove(s.PathFor(reportID, v)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Digest считает BLAKE3 содержимого артефакта (hex) для журнала аудита.
func Digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// writeAtomic пишет data во временный файл рядом с path и переименовывает его.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move %s into place: %w", path, err)
	}
	return nil
}
