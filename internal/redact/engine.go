// Package redact permanently removes page content under a set of rectangles.
package redact

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/contentstream"
	"github.com/raaihank/pdf-redactor/internal/geometry"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc"
	"go.uber.org/zap"
)

// ErrRedactionIO reports that no redacted document could be produced.
var ErrRedactionIO = errors.New("redaction failed")

// Item is a set of rectangles to redact on one page (1-based).
type Item struct {
	Page  int
	Rects []geometry.Rect
}

// Engine applies redactions and re-serialises documents.
type Engine struct {
	cfg    config.RedactionConfig
	logger *logger.Logger
}

// New creates a redaction engine.
func New(cfg config.RedactionConfig, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, logger: log}
}

// Redact returns a new document in which the glyphs under every rectangle are removed
// and the rectangles are painted black. raw is never modified. When no page changes,
// because nothing was requested or everything requested is already redacted, the
// result is a copy of raw. Any failure yields ErrRedactionIO and no output.
func (e *Engine) Redact(raw []byte, items []Item) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrRedactionIO, r)
		}
	}()

	pages := groupByPage(items)

	changed, err := e.rewritePages(raw, pages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedactionIO, err)
	}
	if len(changed) == 0 {
		e.logger.Debug("Nothing to redact", zap.Int("items", len(items)))
		return bytes.Clone(raw), nil
	}

	out, err = e.write(raw, changed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedactionIO, err)
	}

	e.logger.Info("Document redacted",
		zap.Int("pages_changed", len(changed)),
		zap.Int("input_bytes", len(raw)),
		zap.Int("output_bytes", len(out)),
	)
	return out, nil
}

func groupByPage(items []Item) map[int][]geometry.Rect {
	pages := make(map[int][]geometry.Rect)
	for _, item := range items {
		for _, r := range item.Rects {
			if !r.IsEmpty() {
				pages[item.Page] = append(pages[item.Page], r)
			}
		}
	}
	return pages
}

// rewritePages computes the new content stream of every page that changes.
func (e *Engine) rewritePages(raw []byte, pages map[int][]geometry.Rect) (map[int][]byte, error) {
	changed := make(map[int][]byte)
	if len(pages) == 0 {
		return changed, nil
	}

	doc, err := pdfdoc.Open(raw)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	numbers := make([]int, 0, len(pages))
	for n := range pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		page, err := doc.Page(n)
		if err != nil {
			return nil, err
		}
		content, err := page.Content()
		if err != nil {
			return nil, err
		}
		fonts, err := page.Fonts()
		if err != nil {
			return nil, err
		}

		updated, ok, err := contentstream.Redact(content, fonts, pages[n])
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		if xobjects, isSource := fonts.(contentstream.XObjectSource); isSource {
			if forms, _ := contentstream.FormsUnder(content, xobjects, pages[n]); len(forms) > 0 {
				e.logger.Warn("Form XObjects under redaction boxes are painted over, not rewritten",
					zap.Int("page", n),
					zap.Strings("forms", forms),
				)
			}
		}
		if ok {
			changed[n] = updated
		}
	}
	return changed, nil
}

// write replaces the content of the changed pages and serialises the document.
func (e *Engine) write(raw []byte, changed map[int][]byte) ([]byte, error) {
	conf := pdfdoc.NewConfiguration()
	if e.cfg.ValidationMode == "strict" {
		conf.ValidationMode = model.ValidationStrict
	}

	var (
		ctx *model.Context
		err error
	)
	if e.cfg.Optimize {
		ctx, err = api.ReadValidateAndOptimize(bytes.NewReader(raw), conf)
	} else {
		ctx, err = api.ReadContext(bytes.NewReader(raw), conf)
		if err == nil {
			err = api.ValidateContext(ctx)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	for n, content := range changed {
		pageDict, _, _, err := ctx.PageDict(n, false)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		if pageDict == nil {
			return nil, fmt.Errorf("page %d: missing page dictionary", n)
		}

		sd, err := ctx.NewStreamDictForBuf(content)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		if err := sd.Encode(); err != nil {
			return nil, fmt.Errorf("page %d: encode content: %w", n, err)
		}
		ref, err := ctx.IndRefForNewObject(*sd)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		pageDict.Update("Contents", *ref)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return buf.Bytes(), nil
}
