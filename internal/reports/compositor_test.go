package reports

import (
	"os"
	"path/filepath"
	"testing"

	"field-service/internal/apperrors"
	"field-service/internal/testutil"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSignature(t *testing.T) {
	sig, err := DecodeSignature(testutil.SignaturePNG(t, 300, 120))
	require.NoError(t, err)
	assert.Equal(t, 300, sig.Width)
	assert.Equal(t, 120, sig.Height)

	_, err = DecodeSignature("data:image/png;base64," + testutil.SignaturePNG(t, 10, 10))
	assert.NoError(t, err)
}

func TestDecodeSignatureRejectsGarbage(t *testing.T) {
	_, err := DecodeSignature("%%%not-base64%%%")
	assert.ErrorIs(t, err, apperrors.ErrDecode)

	// валидный base64, но не PNG
	_, err = DecodeSignature("aGVsbG8gd29ybGQ=")
	assert.ErrorIs(t, err, apperrors.ErrDecode)
}

func TestOverlayMissingSource(t *testing.T) {
	dir := t.TempDir()
	c := NewCompositor(nil)

	err := c.Overlay(filepath.Join(dir, "nope.pdf"), filepath.Join(dir, "out.pdf"), testutil.SignaturePNG(t, 40, 20), SlotEngineer)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoFileExists(t, filepath.Join(dir, "out.pdf"))
}

func TestOverlayWritesNewFileAndKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "r1.pdf")
	testutil.WritePDF(t, src)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	c := NewCompositor(nil)
	signed := SignedPath(src)
	require.NoError(t, c.Overlay(src, signed, testutil.SignaturePNG(t, 400, 200), SlotEngineer))

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after, "source must not change")

	out, err := os.ReadFile(signed)
	require.NoError(t, err)
	assert.NotEqual(t, before, out)

	pages, err := pdfapi.PageCountFile(signed)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	// второй слой даёт ещё один новый файл
	final := filepath.Join(dir, "r1_final.pdf")
	require.NoError(t, c.Overlay(signed, final, testutil.SignaturePNG(t, 400, 200), SlotCustomer))

	finalBytes, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.NotEqual(t, out, finalBytes)

	// временные файлы не остаются
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestOverlayRejectsBadSignature(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "r1.pdf")
	testutil.WritePDF(t, src)

	err := NewCompositor(nil).Overlay(src, filepath.Join(dir, "out.pdf"), "bm90IGEgcG5n", SlotEngineer)
	assert.ErrorIs(t, err, apperrors.ErrDecode)
	assert.NoFileExists(t, filepath.Join(dir, "out.pdf"))
}

func TestWatermarkDescParses(t *testing.T) {
	sig, err := DecodeSignature(testutil.SignaturePNG(t, 400, 200))
	require.NoError(t, err)

	img := filepath.Join(t.TempDir(), "sig.png")
	require.NoError(t, os.WriteFile(img, sig.PNG, 0o644))

	anchor := DefaultAnchors[SlotCustomer]
	wm, err := pdfcpu.ParseImageWatermarkDetails(img, watermarkDesc(anchor, sig), true, types.POINTS)
	require.NoError(t, err)

	assert.True(t, wm.ScaleAbs)
	assert.InDelta(t, 0.5, wm.Scale, 1e-9)
	assert.InDelta(t, anchor.X, wm.Dx, 1e-9)
	assert.InDelta(t, anchor.Y, wm.Dy, 1e-9)
	assert.InDelta(t, 1.0, wm.Opacity, 1e-9)
}

// signatureImagesPerPage считает на каждой странице картинки с размерами подписи.
func signatureImagesPerPage(t *testing.T, path string, pageCount, w, h int) []int {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	pages, err := pdfapi.ExtractImagesRaw(f, nil, model.NewDefaultConfiguration())
	require.NoError(t, err)

	counts := make([]int, pageCount)
	for _, images := range pages {
		for _, img := range images {
			if img.Width == w && img.Height == h {
				require.True(t, img.PageNr >= 1 && img.PageNr <= pageCount)
				counts[img.PageNr-1]++
			}
		}
	}
	return counts
}

func TestOverlayStampsLastPageOnly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "r3.pdf")
	testutil.WritePDFPages(t, src, 3)

	signed := SignedPath(src)
	require.NoError(t, NewCompositor(nil).Overlay(src, signed, testutil.SignaturePNG(t, 300, 150), SlotEngineer))

	pages, err := pdfapi.PageCountFile(signed)
	require.NoError(t, err)
	require.Equal(t, 3, pages)

	counts := signatureImagesPerPage(t, signed, 3, 300, 150)
	assert.Zero(t, counts[0])
	assert.Zero(t, counts[1])
	assert.NotZero(t, counts[2])

	assert.Equal(t, []int{0, 0, 0}, signatureImagesPerPage(t, src, 3, 300, 150))
}

func TestFitScale(t *testing.T) {
	box := Anchor{Width: 200, Height: 100}

	assert.InDelta(t, 0.5, fitScale(box, 400, 100), 1e-9)
	assert.InDelta(t, 0.25, fitScale(box, 400, 400), 1e-9)
	assert.InDelta(t, 1.0, fitScale(box, 50, 20), 1e-9)
}

func TestSignedPath(t *testing.T) {
	assert.Equal(t, "/data/abc_signed.pdf", SignedPath("/data/abc.pdf"))
}
