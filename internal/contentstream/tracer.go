package contentstream

import (
	"github.com/raaihank/pdf-redactor/internal/geometry"
)

// Glyph is one shown character code and where it lands on the page.
type Glyph struct {
	Op        int // index of the showing operation
	Elem      int // index of the string inside a TJ array, 0 otherwise
	CodeIndex int // position of the code inside that string
	Code      []byte
	Text      string
	Box       geometry.Rect
	Origin    geometry.Point
	// Displacement is the TJ adjustment that advances the text position by exactly this glyph.
	Displacement float64
}

type textState struct {
	charSpace float64
	wordSpace float64
	scale     float64
	leading   float64
	size      float64
	rise      float64
	font      Font
}

type graphicsState struct {
	ctm  geometry.Matrix
	text textState
}

type tracer struct {
	fonts  FontSource
	gs     graphicsState
	stack  []graphicsState
	tm     geometry.Matrix
	tlm    geometry.Matrix
	glyphs []Glyph
}

// Trace interprets text and graphics-state operators and returns every shown glyph
// in content order. Form XObjects are not entered.
func Trace(ops []Operation, fonts FontSource) []Glyph {
	t := &tracer{
		fonts: fonts,
		gs: graphicsState{
			ctm:  geometry.Identity(),
			text: textState{scale: 1, font: FallbackFont},
		},
		tm:  geometry.Identity(),
		tlm: geometry.Identity(),
	}
	for i, op := range ops {
		t.apply(i, op)
	}
	return t.glyphs
}

// ParseAndTrace parses content and traces it in one step.
func ParseAndTrace(content []byte, fonts FontSource) ([]Glyph, error) {
	ops, err := Parse(content)
	if err != nil {
		return nil, err
	}
	return Trace(ops, fonts), nil
}

func numbers(ops []Operand, n int) ([]float64, bool) {
	if len(ops) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range ops[len(ops)-n:] {
		if o.Kind != KindNumber {
			return nil, false
		}
		out[i] = o.Number
	}
	return out, true
}

func lastString(ops []Operand) ([]byte, bool) {
	if len(ops) == 0 || ops[len(ops)-1].Kind != KindString {
		return nil, false
	}
	return ops[len(ops)-1].Bytes, true
}

func (t *tracer) apply(i int, op Operation) {
	ts := &t.gs.text
	switch op.Operator {
	case "q":
		t.stack = append(t.stack, t.gs)
	case "Q":
		if n := len(t.stack); n > 0 {
			t.gs = t.stack[n-1]
			t.stack = t.stack[:n-1]
		}
	case "cm":
		if v, ok := numbers(op.Operands, 6); ok {
			m := geometry.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			t.gs.ctm = m.Multiply(t.gs.ctm)
		}
	case "BT":
		t.tm = geometry.Identity()
		t.tlm = geometry.Identity()
	case "Tc":
		if v, ok := numbers(op.Operands, 1); ok {
			ts.charSpace = v[0]
		}
	case "Tw":
		if v, ok := numbers(op.Operands, 1); ok {
			ts.wordSpace = v[0]
		}
	case "Tz":
		if v, ok := numbers(op.Operands, 1); ok {
			ts.scale = v[0] / 100
		}
	case "TL":
		if v, ok := numbers(op.Operands, 1); ok {
			ts.leading = v[0]
		}
	case "Ts":
		if v, ok := numbers(op.Operands, 1); ok {
			ts.rise = v[0]
		}
	case "Tf":
		if len(op.Operands) >= 2 && op.Operands[0].Kind == KindName && op.Operands[1].Kind == KindNumber {
			ts.size = op.Operands[1].Number
			ts.font = nil
			if t.fonts != nil {
				ts.font = t.fonts.Font(op.Operands[0].Name)
			}
			if ts.font == nil {
				ts.font = FallbackFont
			}
		}
	case "Td":
		if v, ok := numbers(op.Operands, 2); ok {
			t.moveLine(v[0], v[1])
		}
	case "TD":
		if v, ok := numbers(op.Operands, 2); ok {
			ts.leading = -v[1]
			t.moveLine(v[0], v[1])
		}
	case "Tm":
		if v, ok := numbers(op.Operands, 6); ok {
			t.tlm = geometry.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			t.tm = t.tlm
		}
	case "T*":
		t.moveLine(0, -ts.leading)
	case "Tj":
		if s, ok := lastString(op.Operands); ok {
			t.show(i, 0, s)
		}
	case "'":
		if s, ok := lastString(op.Operands); ok {
			t.moveLine(0, -ts.leading)
			t.show(i, 0, s)
		}
	case "\"":
		if len(op.Operands) >= 3 && op.Operands[0].Kind == KindNumber && op.Operands[1].Kind == KindNumber {
			ts.wordSpace = op.Operands[0].Number
			ts.charSpace = op.Operands[1].Number
			if s, ok := lastString(op.Operands); ok {
				t.moveLine(0, -ts.leading)
				t.show(i, 0, s)
			}
		}
	case "TJ":
		if len(op.Operands) == 0 || op.Operands[len(op.Operands)-1].Kind != KindArray {
			return
		}
		for e, elem := range op.Operands[len(op.Operands)-1].Elems {
			switch elem.Kind {
			case KindString:
				t.show(i, e, elem.Bytes)
			case KindNumber:
				tx := -elem.Number / 1000 * ts.size * ts.scale
				t.tm = geometry.Translate(tx, 0).Multiply(t.tm)
			}
		}
	}
}

func (t *tracer) moveLine(tx, ty float64) {
	t.tlm = geometry.Translate(tx, ty).Multiply(t.tlm)
	t.tm = t.tlm
}

func (t *tracer) show(op, elem int, raw []byte) {
	ts := t.gs.text
	font := ts.font
	if font == nil {
		font = FallbackFont
	}
	asc, desc := font.Ascent()/1000, font.Descent()/1000

	for k, code := range font.Codes(raw) {
		w0 := font.Width(code) / 1000
		trm := geometry.Matrix{ts.size * ts.scale, 0, 0, ts.size, 0, ts.rise}.Multiply(t.tm).Multiply(t.gs.ctm)

		spacing := ts.charSpace
		if len(code) == 1 && code[0] == ' ' {
			spacing += ts.wordSpace
		}
		tx := (w0*ts.size + spacing) * ts.scale

		var disp float64
		if ts.size != 0 && ts.scale != 0 {
			disp = -tx * 1000 / (ts.size * ts.scale)
		}

		t.glyphs = append(t.glyphs, Glyph{
			Op:           op,
			Elem:         elem,
			CodeIndex:    k,
			Code:         code,
			Text:         font.Decode(code),
			Box:          trm.TransformRect(geometry.Rect{X0: 0, Y0: desc, X1: w0, Y1: asc}),
			Origin:       trm.Transform(geometry.Point{}),
			Displacement: disp,
		})

		t.tm = geometry.Translate(tx, 0).Multiply(t.tm)
	}
}
