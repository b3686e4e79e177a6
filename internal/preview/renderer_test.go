package preview

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/geometry"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/matchstore"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc/pdftest"
)

func white(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func isHighlighted(c color.RGBA) bool {
	return c.R == 255 && c.G == 255 && c.B < 255
}

func TestOverlay(t *testing.T) {
	crop := geometry.Rect{X0: 0, Y0: 0, X1: 200, Y1: 100}
	img := white(400, 200)
	Overlay(img, crop, 0, 2, []geometry.Rect{{X0: 10, Y0: 10, X1: 20, Y1: 20}}, 0.3)

	tests := []struct {
		name  string
		x, y  int
		inBox bool
	}{
		{"inside", 30, 170, true},
		{"top edge", 20, 160, true},
		{"above", 30, 150, false},
		{"left of box", 10, 170, false},
		{"far corner", 399, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isHighlighted(img.RGBAAt(tt.x, tt.y))
			if got != tt.inBox {
				t.Errorf("Pixel (%d,%d) highlighted=%v, expected %v", tt.x, tt.y, got, tt.inBox)
			}
		})
	}

	t.Run("translucent", func(t *testing.T) {
		c := img.RGBAAt(30, 170)
		if c.B == 0 {
			t.Error("Highlight should let the page show through")
		}
	})
}

func TestOverlayOffsetCropAndClipping(t *testing.T) {
	crop := geometry.Rect{X0: 100, Y0: 100, X1: 200, Y1: 200}
	img := white(100, 100)
	rects := []geometry.Rect{
		{X0: 150, Y0: 150, X1: 160, Y1: 160},
		{X0: 190, Y0: 0, X1: 400, Y1: 120}, // partly off the image
		{X0: 0, Y0: 0, X1: 50, Y1: 50},     // entirely off the image
	}
	Overlay(img, crop, 0, 1, rects, 0.5)

	if !isHighlighted(img.RGBAAt(55, 45)) {
		t.Error("Expected the rect to be shifted by the crop origin")
	}
	if !isHighlighted(img.RGBAAt(95, 90)) {
		t.Error("Expected the clipped rect to be drawn inside the image")
	}
	if isHighlighted(img.RGBAAt(5, 5)) {
		t.Error("Unexpected highlight in the top-left corner")
	}
}

func TestThumbnail(t *testing.T) {
	t.Run("downsamples", func(t *testing.T) {
		thumb := Thumbnail(white(480, 200), 240)
		if b := thumb.Bounds(); b.Dx() != 240 || b.Dy() != 100 {
			t.Errorf("Expected 240x100, got %v", b)
		}
	})

	t.Run("small images unchanged", func(t *testing.T) {
		img := white(100, 50)
		if Thumbnail(img, 240) != image.Image(img) {
			t.Error("Expected the original image back")
		}
	})
}

func TestEncodePNG(t *testing.T) {
	out, err := EncodePNG(white(4, 4))
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}
}

func TestRender(t *testing.T) {
	r := New(config.GetDefaults().Preview, logger.Nop())
	raw := pdftest.Simple("SSN: 123-45-6789", "second page")

	t.Run("page out of range", func(t *testing.T) {
		_, _, err := r.RenderPNG(raw, 5, nil)
		if !errors.Is(err, pdfdoc.ErrPageOutOfRange) {
			t.Errorf("Expected ErrPageOutOfRange, got %v", err)
		}
	})

	t.Run("unparsable", func(t *testing.T) {
		_, err := r.Render([]byte("garbage"), 0, nil)
		if !errors.Is(err, pdfdoc.ErrUnparsableDocument) {
			t.Errorf("Expected ErrUnparsableDocument, got %v", err)
		}
	})

	t.Run("rasterises with highlights", func(t *testing.T) {
		highlights := []matchstore.Match{{
			Type:  "SSN Full",
			Page:  1,
			Rects: []geometry.Rect{{X0: 72, Y0: 700, X1: 200, Y1: 740}},
		}}
		out, pages, err := r.RenderPNG(raw, 0, highlights)
		if errors.Is(err, ErrRender) {
			t.Skipf("MuPDF unavailable: %v", err)
		}
		if err != nil {
			t.Fatalf("RenderPNG failed: %v", err)
		}
		if pages != 2 {
			t.Errorf("Expected 2 pages, got %d", pages)
		}
		img, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("Output is not a PNG: %v", err)
		}
		// 612x792pt at scale 1.5
		if w := img.Bounds().Dx(); w < 915 || w > 919 {
			t.Errorf("Unexpected width %d", w)
		}
	})
}

func TestToPixelsRotation(t *testing.T) {
	crop := geometry.Rect{X0: 0, Y0: 0, X1: 200, Y1: 100}
	rect := geometry.Rect{X0: 10, Y0: 10, X1: 20, Y1: 30}

	tests := []struct {
		rotate int
		want   image.Rectangle
	}{
		{0, image.Rect(10, 70, 20, 90)},
		{90, image.Rect(10, 10, 30, 20)},
		{180, image.Rect(180, 10, 190, 30)},
		{270, image.Rect(70, 180, 90, 190)},
	}
	for _, tt := range tests {
		if got := toPixels(rect, crop, tt.rotate, 1); got != tt.want {
			t.Errorf("Rotate %d: expected %v, got %v", tt.rotate, tt.want, got)
		}
	}
}

func TestRenderRotatedPage(t *testing.T) {
	r := New(config.GetDefaults().Preview, logger.Nop())
	raw := pdftest.Build(pdftest.Page{Rotate: 90, Texts: []pdftest.Text{{X: 72, Y: 720, S: "landscape"}}})
	highlights := []matchstore.Match{{
		Page:  1,
		Rects: []geometry.Rect{{X0: 300, Y0: 300, X1: 400, Y1: 400}},
	}}

	img, err := r.Render(raw, 0, highlights)
	if errors.Is(err, ErrRender) {
		t.Skipf("MuPDF unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	rgba := img.(*image.RGBA)

	// 792pt wide once turned, at scale 1.5
	if w := rgba.Bounds().Dx(); w < 1186 || w > 1190 {
		t.Errorf("Expected a landscape image, got width %d", w)
	}
	if !isHighlighted(rgba.RGBAAt(525, 525)) {
		t.Error("Expected the highlight where the rotated page shows the rect")
	}
	if isHighlighted(rgba.RGBAAt(525, 660)) {
		t.Error("Highlight drawn at the unrotated position")
	}
}
