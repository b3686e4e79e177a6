package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fumiama/go-docx"
)

// tableWidth spans the printable width of a Letter page, in twips.
const tableWidth = 9360

// Summary is a review sheet for one document. It lists counts only, never matched text.
type Summary struct {
	Document  string
	Pages     int
	Redacted  bool
	Generated time.Time
	Types     []TypeCount
}

// TypeCount counts the findings of one type.
type TypeCount struct {
	Type     string
	Found    int
	Selected int
}

// Summarize counts records per type, in first-seen order.
func Summarize(document string, pages int, records []FindingRecord) Summary {
	sum := Summary{Document: document, Pages: pages, Generated: time.Now()}
	index := make(map[string]int)
	for _, r := range records {
		i, ok := index[r.Type]
		if !ok {
			i = len(sum.Types)
			index[r.Type] = i
			sum.Types = append(sum.Types, TypeCount{Type: r.Type})
		}
		sum.Types[i].Found++
		if r.Selected {
			sum.Types[i].Selected++
		}
	}
	return sum
}

// Totals returns the found and selected counts across all types.
func (s Summary) Totals() (found, selected int) {
	for _, t := range s.Types {
		found += t.Found
		selected += t.Selected
	}
	return found, selected
}

// WriteSummary renders the summary as a Word document.
func WriteSummary(w io.Writer, s Summary) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText("Redaction summary").Size("36").Bold()

	found, selected := s.Totals()
	status := "pending"
	if s.Redacted {
		status = "redacted"
	}
	doc.AddParagraph().AddText(fmt.Sprintf("Document: %s", s.Document))
	doc.AddParagraph().AddText(fmt.Sprintf("Pages: %d", s.Pages))
	doc.AddParagraph().AddText(fmt.Sprintf("Findings: %d, selected for redaction: %d", found, selected))
	doc.AddParagraph().AddText(fmt.Sprintf("Status: %s", status))
	if !s.Generated.IsZero() {
		doc.AddParagraph().AddText("Generated: " + s.Generated.UTC().Format(time.RFC3339))
	}

	if len(s.Types) == 0 {
		doc.AddParagraph().AddText("No personal information was found.")
	} else {
		tbl := doc.AddTable(len(s.Types)+1, 3, tableWidth, nil)
		header := tbl.TableRows[0].TableCells
		header[0].AddParagraph().AddText("Type").Bold()
		header[1].AddParagraph().AddText("Found").Bold()
		header[2].AddParagraph().AddText("Selected").Bold()
		for i, t := range s.Types {
			cells := tbl.TableRows[i+1].TableCells
			cells[0].AddParagraph().AddText(t.Type)
			cells[1].AddParagraph().AddText(strconv.Itoa(t.Found))
			cells[2].AddParagraph().AddText(strconv.Itoa(t.Selected))
		}
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write summary document: %w", err)
	}
	return nil
}
