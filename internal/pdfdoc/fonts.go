package pdfdoc

import (
	"github.com/ledongthuc/pdf"

	"github.com/raaihank/pdf-redactor/internal/contentstream"
)

// font adapts a PDF font dictionary to the metrics the tracer needs.
type font struct {
	enc  pdf.TextEncoding
	base contentstream.StandardFont

	cid       bool
	cidWidths map[int]float64
	dw        float64

	first   int
	widths  []float64
	missing float64

	ascent  float64
	descent float64
}

func newFont(f pdf.Font) *font {
	out := &font{
		enc:     f.Encoder(),
		base:    contentstream.StandardFont{BaseFont: f.BaseFont()},
		dw:      1000,
		ascent:  contentstream.FallbackFont.Ascent(),
		descent: contentstream.FallbackFont.Descent(),
	}

	descriptor := f.V.Key("FontDescriptor")
	if f.V.Key("Subtype").Name() == "Type0" {
		out.cid = true
		desc := f.V.Key("DescendantFonts").Index(0)
		descriptor = desc.Key("FontDescriptor")
		if dw := desc.Key("DW"); !dw.IsNull() {
			out.dw = dw.Float64()
		}
		out.cidWidths = cidWidths(desc.Key("W"))
	} else {
		out.first = f.FirstChar()
		out.widths = f.Widths()
		out.missing = descriptor.Key("MissingWidth").Float64()
	}

	if a := descriptor.Key("Ascent").Float64(); a > 0 {
		out.ascent = a
	}
	if d := descriptor.Key("Descent").Float64(); d < 0 {
		out.descent = d
	}
	return out
}

// cidWidths reads a CIDFont W array: "c [w1 w2 ...]" and "cfirst clast w" entries.
func cidWidths(w pdf.Value) map[int]float64 {
	widths := make(map[int]float64)
	for i := 0; i+1 < w.Len(); {
		first := int(w.Index(i).Int64())
		next := w.Index(i + 1)
		if next.Kind() == pdf.Array {
			for j := 0; j < next.Len(); j++ {
				widths[first+j] = next.Index(j).Float64()
			}
			i += 2
			continue
		}
		if i+2 >= w.Len() {
			break
		}
		last := int(next.Int64())
		width := w.Index(i + 2).Float64()
		for c := first; c <= last && c <= 0xFFFF; c++ {
			widths[c] = width
		}
		i += 3
	}
	return widths
}

func (f *font) Codes(raw []byte) [][]byte {
	if f.cid {
		return contentstream.TwoByteCodes(raw)
	}
	return f.base.Codes(raw)
}

func (f *font) Decode(code []byte) string {
	if f.enc == nil {
		return f.base.Decode(code)
	}
	return f.enc.Decode(string(code))
}

func (f *font) Width(code []byte) float64 {
	if f.cid {
		if len(code) != 2 {
			return f.dw
		}
		if w, ok := f.cidWidths[int(code[0])<<8|int(code[1])]; ok {
			return w
		}
		return f.dw
	}

	// base-14 fonts usually ship without a Widths array
	if len(f.widths) == 0 || len(code) != 1 {
		return f.base.Width(code)
	}
	if i := int(code[0]) - f.first; i >= 0 && i < len(f.widths) {
		return f.widths[i]
	}
	if f.missing > 0 {
		return f.missing
	}
	return f.base.Width(code)
}

func (f *font) Ascent() float64  { return f.ascent }
func (f *font) Descent() float64 { return f.descent }
