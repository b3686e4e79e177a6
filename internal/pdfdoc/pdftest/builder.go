// Package pdftest generates small, valid PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Text is one line of text drawn with Helvetica at (X, Y) in points.
type Text struct {
	X, Y float64
	Size float64
	S    string
}

// Image is a one-pixel grey inline image stretched over the box at (X, Y).
type Image struct {
	X, Y, W, H float64
}

// Page describes the content of one page. A zero size means US Letter.
type Page struct {
	Width, Height float64
	Rotate        int
	Texts         []Text
	Images        []Image
}

// Lines lays out lines top-down at 12pt, starting one inch from the top-left corner.
func Lines(lines ...string) Page {
	page := Page{}
	for i, line := range lines {
		page.Texts = append(page.Texts, Text{X: 72, Y: 720 - float64(i)*16, Size: 12, S: line})
	}
	return page
}

// Simple returns a document with one page per argument; each argument is split into lines.
func Simple(pages ...string) []byte {
	specs := make([]Page, len(pages))
	for i, p := range pages {
		specs[i] = Lines(strings.Split(p, "\n")...)
	}
	return Build(specs...)
}

// Build serialises pages into a PDF with a classic cross-reference table.
func Build(pages ...Page) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1 catalog, 2 page tree, 3 font, then a page and content object per page
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, p := range pages {
		w, h := p.Width, p.Height
		if w == 0 || h == 0 {
			w, h = 612, 792
		}
		rotate := ""
		if p.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		object(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g]%s /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			w, h, rotate, 5+2*i))

		content := contentFor(p)
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func contentFor(p Page) string {
	var b strings.Builder
	for _, img := range p.Images {
		fmt.Fprintf(&b, "q %g 0 0 %g %g %g cm BI /W 1 /H 1 /BPC 8 /CS /G ID \x80 EI Q\n", img.W, img.H, img.X, img.Y)
	}
	for _, t := range p.Texts {
		size := t.Size
		if size == 0 {
			size = 12
		}
		fmt.Fprintf(&b, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", size, t.X, t.Y, escape(t.S))
	}
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
