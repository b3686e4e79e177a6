// Package locate maps textual matches onto page rectangles by searching the rendered page layout.
package locate

import (
	"strings"

	"github.com/raaihank/pdf-redactor/internal/contentstream"
	"github.com/raaihank/pdf-redactor/internal/geometry"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"go.uber.org/zap"
)

// Options tune the search.
type Options struct {
	// OccurrenceOrder gives the k-th textual occurrence of a literal only the k-th
	// visual occurrence instead of every occurrence on the page.
	OccurrenceOrder bool
	IgnoreCase      bool
}

// Resolver finds the rectangles of literal text on a page.
type Resolver struct {
	opts   Options
	logger *logger.Logger
}

// New creates a resolver.
func New(opts Options, log *logger.Logger) *Resolver {
	return &Resolver{opts: opts, logger: log}
}

// Resolved pairs a span with the rectangles found for it. Empty Rects means unresolvable.
type Resolved struct {
	Span  privacy.TextSpan
	Rects []geometry.Rect
}

// ResolveRects returns the rectangles of every occurrence of text on the page, in
// occurrence order, clipped to the visible page. An empty result means the text could
// not be located.
func (r *Resolver) ResolveRects(page *pdfdoc.Page, text string) []geometry.Rect {
	layout, ok := r.layout(page)
	if !ok {
		return nil
	}
	var rects []geometry.Rect
	for _, hit := range layout.Search(text, r.opts.IgnoreCase) {
		rects = append(rects, clip(hit, page.CropBox())...)
	}
	return rects
}

// ResolveSpans resolves every span found in pageText, the extraction the spans index into.
func (r *Resolver) ResolveSpans(page *pdfdoc.Page, pageText string, spans []privacy.TextSpan) []Resolved {
	out := make([]Resolved, len(spans))
	layout, ok := r.layout(page)
	if !ok {
		for i, span := range spans {
			out[i] = Resolved{Span: span}
		}
		return out
	}

	hits := make(map[string][][]geometry.Rect)
	for i, span := range spans {
		found, cached := hits[span.Text]
		if !cached {
			found = layout.Search(span.Text, r.opts.IgnoreCase)
			hits[span.Text] = found
		}

		var rects []geometry.Rect
		k := r.occurrenceIndex(pageText, span)
		if r.opts.OccurrenceOrder && k < len(found) {
			rects = clip(found[k], page.CropBox())
		} else {
			for _, hit := range found {
				rects = append(rects, clip(hit, page.CropBox())...)
			}
		}

		if len(rects) == 0 {
			r.logger.Debug("Match could not be located",
				zap.Int("page", page.Number),
				zap.String("type", span.PatternName),
				zap.Int("length", len(span.Text)),
			)
		}
		out[i] = Resolved{Span: span, Rects: rects}
	}
	return out
}

func (r *Resolver) layout(page *pdfdoc.Page) (*contentstream.Layout, bool) {
	layout, err := page.Layout()
	if err != nil {
		r.logger.Warn("Page layout unavailable, matches stay unresolved",
			zap.Int("page", page.Number),
			zap.Error(err),
		)
		return nil, false
	}
	return layout, true
}

// occurrenceIndex counts the occurrences of span.Text that start before the span.
func (r *Resolver) occurrenceIndex(text string, span privacy.TextSpan) int {
	needle := span.Text
	if needle == "" {
		return 0
	}
	if r.opts.IgnoreCase {
		text, needle = strings.ToLower(text), strings.ToLower(needle)
	}
	k := 0
	for from := 0; from < span.Start && from < len(text); {
		i := strings.Index(text[from:], needle)
		if i < 0 || from+i >= span.Start {
			break
		}
		k++
		from += i + len(needle)
	}
	return k
}

func clip(rects []geometry.Rect, box geometry.Rect) []geometry.Rect {
	var out []geometry.Rect
	for _, rect := range rects {
		if c := rect.Clip(box); !c.IsEmpty() {
			out = append(out, c)
		}
	}
	return out
}
