package contentstream

import "strings"

// Font exposes the metrics the tracer needs to place glyphs.
type Font interface {
	// Codes splits a shown string into character codes.
	Codes(raw []byte) [][]byte
	// Decode maps a character code to its Unicode text; empty when unknown.
	Decode(code []byte) string
	// Width returns the glyph advance in thousandths of text space units.
	Width(code []byte) float64
	Ascent() float64
	Descent() float64
}

// FontSource resolves the resource names used by Tf. A nil result selects the fallback font.
type FontSource interface {
	Font(name string) Font
}

// FontMap is a FontSource backed by a plain map.
type FontMap map[string]Font

func (m FontMap) Font(name string) Font {
	if m == nil {
		return nil
	}
	return m[name]
}

const (
	defaultAscent  = 718
	defaultDescent = -207
	defaultWidth   = 500
)

// helveticaWidths covers printable ASCII (32..126) in the standard Helvetica metrics.
var helveticaWidths = [...]float64{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

// StandardFont approximates one of the base-14 fonts with single-byte codes and Latin-1 text.
type StandardFont struct {
	BaseFont string
}

// FallbackFont is used when a page selects a font that cannot be resolved.
var FallbackFont Font = StandardFont{BaseFont: "Helvetica"}

func (f StandardFont) Codes(raw []byte) [][]byte {
	return singleByteCodes(raw)
}

func (f StandardFont) Decode(code []byte) string {
	if len(code) != 1 {
		return ""
	}
	return string(rune(code[0]))
}

func (f StandardFont) Width(code []byte) float64 {
	if len(code) != 1 {
		return defaultWidth
	}
	if strings.HasPrefix(f.BaseFont, "Courier") {
		return 600
	}
	c := int(code[0])
	if c >= 32 && c-32 < len(helveticaWidths) {
		return helveticaWidths[c-32]
	}
	return defaultWidth
}

func (f StandardFont) Ascent() float64  { return defaultAscent }
func (f StandardFont) Descent() float64 { return defaultDescent }

func singleByteCodes(raw []byte) [][]byte {
	codes := make([][]byte, len(raw))
	for i := range raw {
		codes[i] = raw[i : i+1]
	}
	return codes
}

// TwoByteCodes splits raw into big-endian two-byte codes, as Identity-H CID fonts use.
// A trailing odd byte becomes its own code.
func TwoByteCodes(raw []byte) [][]byte {
	codes := make([][]byte, 0, (len(raw)+1)/2)
	for i := 0; i < len(raw); i += 2 {
		end := i + 2
		if end > len(raw) {
			end = len(raw)
		}
		codes = append(codes, raw[i:end])
	}
	return codes
}
