package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/raaihank/pdf-redactor/internal/contentstream"
	"github.com/raaihank/pdf-redactor/internal/geometry"
)

var (
	// ErrUnparsableDocument is returned when the input bytes are not a readable PDF.
	ErrUnparsableDocument = errors.New("document is not a readable PDF")
	// ErrPageOutOfRange is returned for page numbers outside 1..NumPages.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrClosed is returned when a closed document is used.
	ErrClosed = errors.New("document is closed")
)

// US Letter, used when a page carries no usable MediaBox.
var defaultMediaBox = geometry.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}

var disableConfigDir sync.Once

// NewConfiguration returns the pdfcpu configuration shared by validation and rewriting.
// Output keeps a classic cross-reference table and no object streams so the result stays
// readable by the page reader.
func NewConfiguration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Validate checks that raw is a structurally valid PDF.
func Validate(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty input", ErrUnparsableDocument)
	}
	err := safely("validate", func() error {
		return api.Validate(bytes.NewReader(raw), NewConfiguration())
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnparsableDocument, err)
	}
	return nil
}

// Document is a read-only handle over PDF bytes. Handles are cheap and are meant to be
// opened per operation and closed before it returns.
type Document struct {
	reader *pdf.Reader
	pages  int
}

// Open parses raw into a document handle. The caller must not modify raw while the
// handle is open.
func Open(raw []byte) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnparsableDocument)
	}

	doc := &Document{}
	err := safely("open", func() error {
		r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			return err
		}
		doc.reader = r
		doc.pages = r.NumPage()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableDocument, err)
	}
	if doc.pages < 1 {
		return nil, fmt.Errorf("%w: no pages", ErrUnparsableDocument)
	}
	return doc, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.pages
}

// Page returns page n (1-based).
func (d *Document) Page(n int) (*Page, error) {
	if d.reader == nil {
		return nil, ErrClosed
	}
	if n < 1 || n > d.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, d.pages)
	}

	page := &Page{Number: n}
	err := safely("page", func() error {
		p := d.reader.Page(n)
		if p.V.IsNull() {
			return errors.New("missing page object")
		}
		page.p = p
		page.media = boxOf(p, "MediaBox", defaultMediaBox)
		page.crop = boxOf(p, "CropBox", page.media).Intersect(page.media)
		if page.crop.IsEmpty() {
			page.crop = page.media
		}
		page.rotate = rotationOf(p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", n, err)
	}
	return page, nil
}

// Close releases the reader. The document cannot be used afterwards.
func (d *Document) Close() error {
	d.reader = nil
	return nil
}

// Page is one page of an open document.
type Page struct {
	Number int

	p      pdf.Page
	media  geometry.Rect
	crop   geometry.Rect
	rotate int
	res    *resources
	glyphs []contentstream.Glyph
	traced bool
}

// MediaBox returns the page's media box.
func (p *Page) MediaBox() geometry.Rect { return p.media }

// CropBox returns the visible region of the page, which defaults to the media box.
func (p *Page) CropBox() geometry.Rect { return p.crop }

// Rotation returns the clockwise display rotation of the page: 0, 90, 180 or 270.
func (p *Page) Rotation() int { return p.rotate }

// Text returns the plain-text extraction of the page used for pattern matching.
// When the extractor cannot interpret the page, the rendered layout text is used instead.
func (p *Page) Text() (string, error) {
	text, err := p.p.GetPlainText(nil)
	if err == nil {
		return text, nil
	}
	layout, lerr := p.Layout()
	if lerr != nil {
		return "", fmt.Errorf("page %d text: %w", p.Number, errors.Join(err, lerr))
	}
	return layout.Text(), nil
}

// Content returns the decoded page content, with multiple content streams joined.
func (p *Page) Content() ([]byte, error) {
	var out bytes.Buffer
	err := safely("content", func() error {
		contents := p.p.V.Key("Contents")
		switch contents.Kind() {
		case pdf.Stream:
			return readStream(&out, contents)
		case pdf.Array:
			for i := 0; i < contents.Len(); i++ {
				if i > 0 {
					out.WriteByte('\n')
				}
				if err := readStream(&out, contents.Index(i)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("page %d content: %w", p.Number, err)
	}
	return out.Bytes(), nil
}

func readStream(w io.Writer, v pdf.Value) error {
	rc := v.Reader()
	defer rc.Close()
	_, err := io.Copy(w, rc)
	return err
}

// resources exposes a page's fonts and the subtypes of its XObjects.
type resources struct {
	contentstream.FontMap
	xobjects map[string]string
}

func (r *resources) XObjectSubtype(name string) string {
	return r.xobjects[name]
}

// Fonts returns the page's fonts keyed by resource name. The result also implements
// contentstream.XObjectSource.
func (p *Page) Fonts() (contentstream.FontSource, error) {
	if p.res != nil {
		return p.res, nil
	}
	res := &resources{FontMap: contentstream.FontMap{}, xobjects: map[string]string{}}
	err := safely("fonts", func() error {
		for _, name := range p.p.Fonts() {
			res.FontMap[name] = newFont(p.p.Font(name))
		}
		xobjects := p.p.Resources().Key("XObject")
		for _, name := range xobjects.Keys() {
			res.xobjects[name] = xobjects.Key(name).Key("Subtype").Name()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("page %d fonts: %w", p.Number, err)
	}
	p.res = res
	return res, nil
}

// Glyphs traces the page content into positioned glyphs.
func (p *Page) Glyphs() ([]contentstream.Glyph, error) {
	if p.traced {
		return p.glyphs, nil
	}
	content, err := p.Content()
	if err != nil {
		return nil, err
	}
	fonts, err := p.Fonts()
	if err != nil {
		return nil, err
	}

	var glyphs []contentstream.Glyph
	err = safely("trace", func() error {
		var terr error
		glyphs, terr = contentstream.ParseAndTrace(content, fonts)
		return terr
	})
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", p.Number, err)
	}
	p.glyphs, p.traced = glyphs, true
	return glyphs, nil
}

// Layout returns the rendered reading of the page used for geometric search.
func (p *Page) Layout() (*contentstream.Layout, error) {
	glyphs, err := p.Glyphs()
	if err != nil {
		return nil, err
	}
	return contentstream.NewLayout(glyphs), nil
}

func boxOf(p pdf.Page, key string, fallback geometry.Rect) geometry.Rect {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key(key)
		if box.Kind() != pdf.Array || box.Len() != 4 {
			continue
		}
		r := geometry.NewRect(box.Index(0).Float64(), box.Index(1).Float64(), box.Index(2).Float64(), box.Index(3).Float64())
		if r.IsEmpty() {
			return fallback
		}
		return r
	}
	return fallback
}

// rotationOf reads the inheritable /Rotate entry, normalised to a multiple of 90 in [0, 360).
func rotationOf(p pdf.Page) int {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		r := v.Key("Rotate")
		if r.Kind() != pdf.Integer {
			continue
		}
		deg := int(r.Int64()) % 360
		if deg < 0 {
			deg += 360
		}
		return deg / 90 * 90
	}
	return 0
}

// safely runs fn and turns a panic from the PDF libraries into an error.
func safely(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", what, r)
		}
	}()
	return fn()
}
