package contentstream

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/raaihank/pdf-redactor/internal/geometry"
)

const gapMark = '\x01'

// Layout is the rendered reading of a page: glyph text joined in content order, with
// line breaks where the baseline changes and gap markers where glyphs are visibly apart.
type Layout struct {
	glyphs []Glyph
	text   string
	owner  []int // byte offset in text -> glyph index, -1 for separators
}

// NewLayout builds a searchable layout from traced glyphs.
func NewLayout(glyphs []Glyph) *Layout {
	var (
		b     strings.Builder
		owner []int
	)
	for i, g := range glyphs {
		if i > 0 {
			if sep, ok := separator(glyphs[i-1], g); ok {
				b.WriteByte(sep)
				owner = append(owner, -1)
			}
		}
		b.WriteString(g.Text)
		for range len(g.Text) {
			owner = append(owner, i)
		}
	}
	return &Layout{glyphs: glyphs, text: b.String(), owner: owner}
}

func lineHeight(a, b Glyph) float64 {
	h := math.Max(a.Box.Height(), b.Box.Height())
	if h <= 0 {
		return 1
	}
	return h
}

func sameLine(a, b Glyph) bool {
	return math.Abs(b.Origin.Y-a.Origin.Y) <= lineHeight(a, b)/2
}

// separator returns the byte placed between prev and g, if any.
func separator(prev, g Glyph) (byte, bool) {
	if !sameLine(prev, g) {
		return '\n', true
	}
	h := lineHeight(prev, g)
	if g.Box.X0-prev.Box.X1 > h*0.2 || g.Box.X0 < prev.Box.X0-h*0.1 {
		return gapMark, true
	}
	return 0, false
}

// Text returns the rendered text with gap markers shown as spaces.
func (l *Layout) Text() string {
	return strings.ReplaceAll(l.text, string(gapMark), " ")
}

// Glyphs returns the glyphs the layout was built from.
func (l *Layout) Glyphs() []Glyph {
	return l.glyphs
}

// Search finds every occurrence of literal and returns, per occurrence, one rectangle
// per line the occurrence spans. Whitespace in literal matches any run of whitespace,
// gap markers or line breaks; adjacent characters may be separated by a gap marker.
func (l *Layout) Search(literal string, ignoreCase bool) [][]geometry.Rect {
	re := literalPattern(literal, ignoreCase)
	if re == nil {
		return nil
	}

	var out [][]geometry.Rect
	for _, loc := range re.FindAllStringIndex(l.text, -1) {
		var indices []int
		last := -1
		for off := loc[0]; off < loc[1]; off++ {
			gi := l.owner[off]
			if gi < 0 || gi == last {
				continue
			}
			last = gi
			if strings.TrimSpace(l.glyphs[gi].Text) == "" {
				continue
			}
			indices = append(indices, gi)
		}
		if rects := l.lineRects(indices); len(rects) > 0 {
			out = append(out, rects)
		}
	}
	return out
}

func (l *Layout) lineRects(indices []int) []geometry.Rect {
	var (
		rects   []geometry.Rect
		current geometry.Rect
		prev    = -1
	)
	for _, gi := range indices {
		g := l.glyphs[gi]
		if prev >= 0 && !sameLine(l.glyphs[prev], g) {
			if !current.IsEmpty() {
				rects = append(rects, current)
			}
			current = geometry.Rect{}
		}
		current = current.Union(g.Box)
		prev = gi
	}
	if !current.IsEmpty() {
		rects = append(rects, current)
	}
	return rects
}

func literalPattern(literal string, ignoreCase bool) *regexp.Regexp {
	literal = strings.TrimSpace(literal)
	if literal == "" {
		return nil
	}

	var b strings.Builder
	if ignoreCase {
		b.WriteString("(?i)")
	}
	first, prevSpace := true, false
	for _, r := range literal {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteString(`[\s\x01]+`)
			}
			prevSpace = true
			continue
		}
		if !first && !prevSpace {
			b.WriteString(`\x01?`)
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
		first, prevSpace = false, false
	}
	return regexp.MustCompile(b.String())
}
