package contentstream

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/raaihank/pdf-redactor/internal/geometry"
)

// RedactionTag marks the content block holding painted redaction boxes.
const RedactionTag = "PIIRedaction"

const rectEpsilon = 0.01

// Redact removes every glyph whose box is mostly covered by one of rects, drops every
// image that intersects one, and paints the rects as opaque black boxes on top of the
// page. Boxes already painted by an earlier pass are recognised, so redacting twice with
// the same rects reports no change. When fonts also implements XObjectSource, Form
// XObjects are told apart from images and left in place.
func Redact(content []byte, fonts FontSource, rects []geometry.Rect) ([]byte, bool, error) {
	ops, err := Parse(content)
	if err != nil {
		return nil, false, fmt.Errorf("parse content stream: %w", err)
	}

	existing := PaintedRects(ops)
	var fresh []geometry.Rect
	for _, r := range rects {
		if r.IsEmpty() || coveredBy(existing, r) || coveredBy(fresh, r) {
			continue
		}
		fresh = append(fresh, r)
	}
	cover := append(append([]geometry.Rect{}, existing...), fresh...)

	glyphs := Trace(ops, fonts)
	byOp := make(map[int][]Glyph)
	removed := make(map[int]bool)
	for _, g := range glyphs {
		byOp[g.Op] = append(byOp[g.Op], g)
		if hidden(g.Box, cover) {
			removed[g.Op] = true
		}
	}

	xobjects, _ := fonts.(XObjectSource)
	dropped := make(map[int]bool)
	for _, p := range overlapping(Placements(ops), cover) {
		if p.IsImage(xobjects) {
			dropped[p.Op] = true
		}
	}

	if len(removed) == 0 && len(dropped) == 0 && len(fresh) == 0 {
		return content, false, nil
	}

	var out bytes.Buffer
	if len(fresh) > 0 {
		out.WriteString("q\n")
	}
	last := 0
	for i, op := range ops {
		if !removed[i] && !dropped[i] {
			continue
		}
		out.Write(content[last:op.Start])
		if removed[i] {
			out.WriteString(rewriteShow(op, byOp[i], cover))
		}
		last = op.End
	}
	out.Write(content[last:])
	if len(fresh) > 0 {
		out.WriteString("\nQ\n")
		writeBoxes(&out, fresh)
	}
	return out.Bytes(), true, nil
}

// PaintedRects returns the boxes drawn inside earlier redaction blocks.
func PaintedRects(ops []Operation) []geometry.Rect {
	var (
		rects  []geometry.Rect
		inside bool
	)
	for _, op := range ops {
		switch op.Operator {
		case "BMC":
			if len(op.Operands) == 1 && op.Operands[0].Kind == KindName && op.Operands[0].Name == RedactionTag {
				inside = true
			}
		case "EMC":
			inside = false
		case "re":
			if !inside {
				continue
			}
			if v, ok := numbers(op.Operands, 4); ok {
				rects = append(rects, geometry.NewRect(v[0], v[1], v[0]+v[2], v[1]+v[3]))
			}
		}
	}
	return rects
}

func coveredBy(rects []geometry.Rect, r geometry.Rect) bool {
	for _, o := range rects {
		if o.ApproxEqual(r, rectEpsilon) || o.Contains(r, rectEpsilon) {
			return true
		}
	}
	return false
}

// hidden reports whether at least half of box lies under one rect. Zero-area boxes
// are hidden when their centre is.
func hidden(box geometry.Rect, rects []geometry.Rect) bool {
	area := box.Area()
	for _, r := range rects {
		if area <= 0 {
			if r.ContainsPoint(box.Center()) {
				return true
			}
			continue
		}
		if box.Intersect(r).Area() >= area/2 {
			return true
		}
	}
	return false
}

type tjItem struct {
	codes  []byte
	number float64
	isNum  bool
}

type tjBuilder struct {
	items []tjItem
}

func (b *tjBuilder) code(c []byte) {
	if n := len(b.items); n > 0 && !b.items[n-1].isNum {
		b.items[n-1].codes = append(b.items[n-1].codes, c...)
		return
	}
	b.items = append(b.items, tjItem{codes: append([]byte{}, c...)})
}

func (b *tjBuilder) number(v float64) {
	if n := len(b.items); n > 0 && b.items[n-1].isNum {
		b.items[n-1].number += v
		return
	}
	b.items = append(b.items, tjItem{number: v, isNum: true})
}

func (b *tjBuilder) String() string {
	var s bytes.Buffer
	s.WriteByte('[')
	for i, it := range b.items {
		if i > 0 {
			s.WriteByte(' ')
		}
		if it.isNum {
			s.WriteString(FormatNumber(it.number))
			continue
		}
		s.WriteByte('<')
		s.WriteString(hex.EncodeToString(it.codes))
		s.WriteByte('>')
	}
	s.WriteString("] TJ")
	return s.String()
}

// rewriteShow re-emits a text-showing operation as TJ, replacing hidden glyphs by
// the kerning that keeps every following glyph at its original position.
func rewriteShow(op Operation, glyphs []Glyph, cover []geometry.Rect) string {
	var b tjBuilder

	emit := func(elem int) {
		for _, g := range glyphs {
			if g.Elem != elem {
				continue
			}
			if hidden(g.Box, cover) {
				b.number(g.Displacement)
			} else {
				b.code(g.Code)
			}
		}
	}

	var prefix string
	switch op.Operator {
	case "TJ":
		for e, elem := range op.Operands[len(op.Operands)-1].Elems {
			switch elem.Kind {
			case KindString:
				emit(e)
			case KindNumber:
				b.number(elem.Number)
			}
		}
	case "'":
		prefix = "T* "
		emit(0)
	case "\"":
		prefix = fmt.Sprintf("%s Tw %s Tc T* ", op.Operands[0].Raw, op.Operands[1].Raw)
		emit(0)
	default:
		emit(0)
	}
	return prefix + b.String()
}

func writeBoxes(out *bytes.Buffer, rects []geometry.Rect) {
	fmt.Fprintf(out, "/%s BMC\nq\n0 0 0 rg\n", RedactionTag)
	for _, r := range rects {
		fmt.Fprintf(out, "%s %s %s %s re\n",
			FormatNumber(r.X0), FormatNumber(r.Y0), FormatNumber(r.Width()), FormatNumber(r.Height()))
	}
	out.WriteString("f\nQ\nEMC\n")
}

// FormatNumber writes v with at most four decimals and no exponent.
func FormatNumber(v float64) string {
	v = math.Round(v*1e4) / 1e4
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
