// Package preview rasterises pages and overlays match highlights.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/geometry"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/matchstore"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc"
	"go.uber.org/zap"
)

// ErrRender reports that the rasteriser could not produce an image.
var ErrRender = errors.New("preview rendering failed")

var highlightColor = color.NRGBA{R: 255, G: 255, B: 0}

// Renderer draws pages of the original document with highlights on top.
type Renderer struct {
	cfg    config.PreviewConfig
	logger *logger.Logger
}

// New creates a preview renderer.
func New(cfg config.PreviewConfig, log *logger.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: log}
}

// Render rasterises page pageIndex (0-based) of raw and highlights every rect of the
// highlights that belong to that page. Each call opens and closes its own handles.
func (r *Renderer) Render(raw []byte, pageIndex int, highlights []matchstore.Match) (image.Image, error) {
	img, _, err := r.render(raw, pageIndex, highlights)
	return img, err
}

// RenderPNG renders like Render and returns the PNG bytes and the document's page count.
func (r *Renderer) RenderPNG(raw []byte, pageIndex int, highlights []matchstore.Match) ([]byte, int, error) {
	img, pages, err := r.render(raw, pageIndex, highlights)
	if err != nil {
		return nil, 0, err
	}
	out, err := EncodePNG(img)
	if err != nil {
		return nil, 0, err
	}
	return out, pages, nil
}

func (r *Renderer) render(raw []byte, pageIndex int, highlights []matchstore.Match) (*image.RGBA, int, error) {
	crop, rotate, pages, err := pageGeometry(raw, pageIndex)
	if err != nil {
		return nil, 0, err
	}

	doc, err := fitz.NewFromMemory(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRender, err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(pageIndex, 72*r.cfg.Scale)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: page %d: %v", ErrRender, pageIndex+1, err)
	}

	var rects []geometry.Rect
	for _, m := range highlights {
		if m.Page == pageIndex+1 {
			rects = append(rects, m.Rects...)
		}
	}
	Overlay(img, crop, rotate, r.cfg.Scale, rects, r.cfg.HighlightOpacity)

	r.logger.Debug("Page rendered",
		zap.Int("page", pageIndex+1),
		zap.Int("highlights", len(rects)),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
	return img, pages, nil
}

// pageGeometry returns the visible region of the page, its rotation and the page count.
func pageGeometry(raw []byte, pageIndex int) (geometry.Rect, int, int, error) {
	doc, err := pdfdoc.Open(raw)
	if err != nil {
		return geometry.Rect{}, 0, 0, err
	}
	defer doc.Close()

	page, err := doc.Page(pageIndex + 1)
	if err != nil {
		return geometry.Rect{}, 0, 0, err
	}
	return page.CropBox(), page.Rotation(), doc.NumPages(), nil
}

// Overlay composites a translucent yellow box over every rect. crop is the page region the
// image shows, rotate the clockwise page rotation the image was rendered with, and scale
// the number of pixels per point.
func Overlay(dst draw.Image, crop geometry.Rect, rotate int, scale float64, rects []geometry.Rect, opacity float64) {
	fill := highlightColor
	fill.A = uint8(math.Round(clamp01(opacity) * 255))
	src := image.NewUniform(fill)

	bounds := dst.Bounds()
	for _, rect := range rects {
		px := toPixels(rect, crop, rotate, scale).Add(bounds.Min).Intersect(bounds)
		if px.Empty() {
			continue
		}
		draw.Draw(dst, px, src, image.Point{}, draw.Over)
	}
}

// toPixels maps a rect in PDF user space to image space, where y grows downwards and
// the page is turned clockwise by rotate degrees.
func toPixels(r, crop geometry.Rect, rotate int, scale float64) image.Rectangle {
	w, h := crop.Width(), crop.Height()
	// unrotated image coordinates in points
	u0, u1 := r.X0-crop.X0, r.X1-crop.X0
	v0, v1 := crop.Y1-r.Y1, crop.Y1-r.Y0

	switch rotate {
	case 90:
		u0, v0, u1, v1 = h-v1, u0, h-v0, u1
	case 180:
		u0, v0, u1, v1 = w-u1, h-v1, w-u0, h-v0
	case 270:
		u0, v0, u1, v1 = v0, w-u1, v1, w-u0
	}
	return image.Rect(
		int(math.Floor(u0*scale)),
		int(math.Floor(v0*scale)),
		int(math.Ceil(u1*scale)),
		int(math.Ceil(v1*scale)),
	)
}

// Thumbnail downsamples img to at most maxWidth pixels wide, keeping the aspect ratio.
func Thumbnail(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := int(math.Max(1, math.Round(float64(b.Dy())*float64(maxWidth)/float64(b.Dx()))))
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
