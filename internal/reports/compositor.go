package reports

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"field-service/internal/apperrors"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// pdfcpu не должен писать свой конфиг в домашний каталог сервиса
	pdfapi.DisableConfigDir()
}

// Signature: декодированная подпись (PNG)
type Signature struct {
	PNG    []byte
	Width  int
	Height int
}

// DecodeSignature принимает base64 PNG, в том числе в виде data URL.
func DecodeSignature(b64 string) (*Signature, error) {
	b64 = strings.TrimSpace(b64)
	if i := strings.Index(b64, ","); strings.HasPrefix(b64, "data:") && i > 0 {
		b64 = b64[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecode, "Invalid signature image", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecode, "Invalid signature image", err)
	}

	b := img.Bounds()
	return &Signature{PNG: raw, Width: b.Dx(), Height: b.Dy()}, nil
}

// Compositor накладывает подписи на последнюю страницу PDF.
type Compositor struct {
	anchors map[Slot]Anchor
	conf    *model.Configuration
}

func NewCompositor(anchors map[Slot]Anchor) *Compositor {
	if anchors == nil {
		anchors = DefaultAnchors
	}
	return &Compositor{
		anchors: anchors,
		conf:    model.NewDefaultConfiguration(),
	}
}

// Overlay пишет в dst копию src с подписью в месте slot. src не меняется,
// dst появляется целиком или не появляется вовсе.
func (c *Compositor) Overlay(src, dst, signatureB64 string, slot Slot) error {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.Wrap(apperrors.ErrNotFound, "Report not found!", err)
		}
		return fmt.Errorf("stat %s: %w", src, err)
	}

	sig, err := DecodeSignature(signatureB64)
	if err != nil {
		return err
	}

	anchor, ok := c.anchors[slot]
	if !ok {
		return fmt.Errorf("unknown signature slot %q", slot)
	}

	pages, err := pdfapi.PageCountFile(src)
	if err != nil {
		return fmt.Errorf("count pages of %s: %w", src, err)
	}
	if pages < 1 {
		return fmt.Errorf("%s has no pages", src)
	}

	imgPath, err := writeTemp(filepath.Dir(dst), "signature-*.png", bytes.NewReader(sig.PNG))
	if err != nil {
		return err
	}
	defer os.Remove(imgPath)

	wm, err := pdfcpu.ParseImageWatermarkDetails(imgPath, watermarkDesc(anchor, sig), true, types.POINTS)
	if err != nil {
		return fmt.Errorf("parse signature watermark: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := writeTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp", in)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	last := []string{strconv.Itoa(pages)}
	if err := pdfapi.AddWatermarksFile(tmp, "", last, wm, c.conf); err != nil {
		return fmt.Errorf("apply %s signature: %w", slot, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("move %s into place: %w", dst, err)
	}
	return nil
}

// watermarkDesc: подпись вписывается в прямоугольник с сохранением пропорций,
// левый нижний угол в точке якоря, поверх содержимого, без прозрачности.
func watermarkDesc(a Anchor, sig *Signature) string {
	return fmt.Sprintf("position:bl, offset:%.2f %.2f, scalefactor:%.4f abs, rotation:0, opacity:1",
		a.X, a.Y, fitScale(a, sig.Width, sig.Height))
}

func fitScale(a Anchor, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	s := math.Min(a.Width/float64(w), a.Height/float64(h))
	// маленькую подпись не растягиваем
	return math.Min(s, 1)
}

// SignedPath: x.pdf -> x_signed.pdf
func SignedPath(src string) string {
	return strings.TrimSuffix(src, ".pdf") + "_signed.pdf"
}

func writeTemp(dir, pattern string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}
