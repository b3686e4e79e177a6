package contentstream

import (
	"github.com/raaihank/pdf-redactor/internal/geometry"
)

// XObjectSource reports the /Subtype of a page's named XObjects. A FontSource that also
// implements it lets Redact tell images from forms.
type XObjectSource interface {
	XObjectSubtype(name string) string
}

// Placement is an XObject or inline image drawn by the content stream.
type Placement struct {
	Op     int
	Name   string // resource name, empty for inline images
	Inline bool
	Box    geometry.Rect
}

// IsImage reports whether the placement paints an image. Named XObjects of unknown
// subtype count as images.
func (p Placement) IsImage(xobjects XObjectSource) bool {
	if p.Inline || xobjects == nil {
		return true
	}
	switch xobjects.XObjectSubtype(p.Name) {
	case "Form", "PS":
		return false
	}
	return true
}

// Placements returns every Do and inline image with the unit square mapped through the CTM.
func Placements(ops []Operation) []Placement {
	var (
		ctm   = geometry.Identity()
		stack []geometry.Matrix
		out   []Placement
	)
	unit := geometry.NewRect(0, 0, 1, 1)
	for i, op := range ops {
		switch op.Operator {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm, stack = stack[n-1], stack[:n-1]
			}
		case "cm":
			if v, ok := numbers(op.Operands, 6); ok {
				ctm = geometry.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(ctm)
			}
		case "Do":
			if len(op.Operands) == 1 && op.Operands[0].Kind == KindName {
				out = append(out, Placement{Op: i, Name: op.Operands[0].Name, Box: ctm.TransformRect(unit)})
			}
		case "BI":
			out = append(out, Placement{Op: i, Inline: true, Box: ctm.TransformRect(unit)})
		}
	}
	return out
}

// overlapping returns the placements that intersect any of rects.
func overlapping(placements []Placement, rects []geometry.Rect) []Placement {
	var out []Placement
	for _, p := range placements {
		for _, r := range rects {
			if p.Box.Intersects(r) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// FormsUnder returns the names of Form XObjects drawn under any of rects. Their content
// is painted over but not rewritten.
func FormsUnder(content []byte, xobjects XObjectSource, rects []geometry.Rect) ([]string, error) {
	ops, err := Parse(content)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, p := range overlapping(Placements(ops), rects) {
		if !p.IsImage(xobjects) {
			names = append(names, p.Name)
		}
	}
	return names, nil
}
