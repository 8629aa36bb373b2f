package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/imagehost/backend/internal/config"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxDecodePixels bounds the canvas allocated for a single decode.
const maxDecodePixels = 100_000_000

var ErrImageTooLarge = errors.New("image dimensions exceed decode limit")

// TransformResult is what the pipeline hands to storage. Width and Height
// describe the decoded original, not the stored bytes.
type TransformResult struct {
	Data      []byte
	MimeType  string
	Extension string
	Width     *int
	Height    *int
}

// Transformer bounds raster images to a box and re-encodes them as JPEG.
type Transformer struct {
	maxWidth  int
	maxHeight int
	quality   int
}

func NewTransformer(cfg *config.Config) *Transformer {
	return &Transformer{
		maxWidth:  cfg.ImageMaxWidth,
		maxHeight: cfg.ImageMaxHeight,
		quality:   cfg.ImageJPEGQuality,
	}
}

// Transform applies the mode registered for mimeType. Unknown types are an error;
// the Validator is expected to have rejected them already.
func (t *Transformer) Transform(data []byte, mimeType string) (*TransformResult, error) {
	mt, ok := LookupMediaType(normalizeMimeType(mimeType))
	if !ok {
		return nil, fmt.Errorf("no transform for %q", mimeType)
	}

	switch mt.Mode {
	case ModeRaster:
		return t.reencode(data)
	case ModeAnimated:
		res := &TransformResult{Data: data, MimeType: mt.MimeType, Extension: mt.Extension}
		if cfg, err := gif.DecodeConfig(bytes.NewReader(data)); err == nil {
			res.Width, res.Height = intPtr(cfg.Width), intPtr(cfg.Height)
		}
		return res, nil
	default:
		return &TransformResult{Data: data, MimeType: mt.MimeType, Extension: mt.Extension}, nil
	}
}

func (t *Transformer) reencode(data []byte) (*TransformResult, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width*cfg.Height > maxDecodePixels {
		return nil, ErrImageTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), t.maxWidth, t.maxHeight)

	// JPEG has no alpha channel, so transparent pixels land on white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &TransformResult{
		Data:      buf.Bytes(),
		MimeType:  "image/jpeg",
		Extension: ExtensionFor("image/jpeg"),
		Width:     intPtr(b.Dx()),
		Height:    intPtr(b.Dy()),
	}, nil
}

// fitWithin scales w x h down to fit maxW x maxH keeping aspect ratio.
// Images already inside the box are returned unchanged.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	ratio := float64(maxW) / float64(w)
	if r := float64(maxH) / float64(h); r < ratio {
		ratio = r
	}
	nw := int(float64(w)*ratio + 0.5)
	nh := int(float64(h)*ratio + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	if nw > maxW {
		nw = maxW
	}
	if nh > maxH {
		nh = maxH
	}
	return nw, nh
}

func intPtr(v int) *int { return &v }
