package services

import (
	"bytes"
	"fmt"

	"github.com/imagehost/backend/internal/models"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// QR code edge length bounds in pixels.
const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

// QRService renders an asset's public link as a QR code.
type QRService struct {
	ingest *IngestService
}

func NewQRService(ingest *IngestService) *QRService { return &QRService{ingest: ingest} }

// ClampQRSize keeps a requested edge length within MinQRSize..MaxQRSize; 0 means the default.
func ClampQRSize(size int) int {
	switch {
	case size == 0:
		return DefaultQRSize
	case size < MinQRSize:
		return MinQRSize
	case size > MaxQRSize:
		return MaxQRSize
	}
	return size
}

// SharePNG encodes the asset's public URL as a PNG QR code.
func (s *QRService) SharePNG(asset *models.Asset, size int) ([]byte, error) {
	png, err := qrcode.Encode(s.ingest.PublicURL(asset.ShortCode), qrcode.Medium, ClampQRSize(size))
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// ShareSheetPDF generates a simple A4 PDF with the link and its QR code
func (s *QRService) ShareSheetPDF(asset *models.Asset) ([]byte, error) {
	url := s.ingest.PublicURL(asset.ShortCode)

	png, err := qrcode.Encode(url, qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Shared file")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	// Core fonts are cp1252; the translator keeps non-ASCII names readable.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("Name: %s\nURL: %s", asset.OriginalName, url)), "", "L", false)

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", opt, bytes.NewReader(png))

	// Center QR on the page
	x := (210.0 - 100.0) / 2.0 // A4 width 210mm, QR size 100mm
	y := pdf.GetY() + 10
	pdf.ImageOptions("qr", x, y, 100, 100, false, opt, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return out.Bytes(), nil
}
