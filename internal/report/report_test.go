package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/xuri/excelize/v2"

	"github.com/raaihank/pdf-redactor/internal/geometry"
	"github.com/raaihank/pdf-redactor/internal/matchstore"
)

func sampleMatches() []matchstore.Match {
	return []matchstore.Match{
		{ID: 0, Type: "SSN Full", Text: "123-45-6789", Page: 1, Rects: []geometry.Rect{
			geometry.NewRect(72, 700, 130, 712),
		}},
		{ID: 1, Type: "Phone", Text: "(555) 123-4567", Page: 1, Rects: []geometry.Rect{
			geometry.NewRect(72, 680, 110, 692),
			geometry.NewRect(72, 664, 102.5, 676),
		}},
		{ID: 2, Type: "Manual", Text: `Smith, "Jr."`, Page: 3},
	}
}

func sampleRecords() []FindingRecord {
	ms := sampleMatches()
	return []FindingRecord{
		NewRecord("tax.pdf", ms[0], true),
		NewRecord("tax.pdf", ms[1], false),
		NewRecord("tax.pdf", ms[2], true),
	}
}

func TestNewRecord(t *testing.T) {
	r := sampleRecords()[1]
	if r.Rects != 2 {
		t.Errorf("Expected 2 rects, got %d", r.Rects)
	}
	if r.X0 != 72 || r.Y0 != 664 || r.X1 != 110 || r.Y1 != 692 {
		t.Errorf("Unexpected bounding box %+v", r)
	}
	if unresolved := sampleRecords()[2]; unresolved.Rects != 0 || unresolved.X1 != 0 {
		t.Errorf("Unresolved match should have an empty box, got %+v", unresolved)
	}
}

func TestWriteRead(t *testing.T) {
	want := sampleRecords()

	for _, format := range []FileFormat{FormatCSV, FormatJSON, FormatParquet, FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, format, want); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			got, err := Read(buf.Bytes(), format)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("Expected %d records, got %d", len(want), len(got))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("Record %d: expected %+v, got %+v", i, want[i], got[i])
				}
			}
		})
	}
}

func TestWriteUnsupported(t *testing.T) {
	if err := Write(&bytes.Buffer{}, FormatDOCX, nil); err == nil {
		t.Error("Expected an error for docx findings")
	}
	if _, err := Read(nil, FileFormat("txt")); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestReadCSVReviewed(t *testing.T) {
	// A reviewer reordered columns, dropped the coordinates and flagged rows by hand.
	data := "selected,page,type,id,text\n" +
		"yes,1,SSN Full,0,123-45-6789\n" +
		",1,Phone,1,(555) 123-4567\n"

	got, err := Read([]byte(data), FormatCSV)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 2 || !got[0].Selected || got[1].Selected {
		t.Fatalf("Unexpected records %+v", got)
	}

	sel, err := Selection("tax.pdf", got, sampleMatches())
	if err != nil {
		t.Fatalf("Selection failed: %v", err)
	}
	if !sel[0] || sel[1] {
		t.Errorf("Unexpected selection %v", sel)
	}
	if _, ok := sel[2]; ok {
		t.Error("Matches without a record must be left alone")
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := Read([]byte("id,type\n0,SSN Full\n"), FormatCSV)
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
}

func TestReadParquetGarbage(t *testing.T) {
	if _, err := Read([]byte("not parquet"), FormatParquet); err == nil {
		t.Error("Expected an error")
	}
}

func TestSelectionStale(t *testing.T) {
	records := sampleRecords()
	records[0].Text = "987-65-4321"

	if _, err := Selection("tax.pdf", records, sampleMatches()); !errors.Is(err, ErrStaleRecord) {
		t.Errorf("Expected ErrStaleRecord, got %v", err)
	}

	records = sampleRecords()
	records[0].Document = "other.pdf"
	records[0].Text = "ignored"
	sel, err := Selection("tax.pdf", records, sampleMatches())
	if err != nil {
		t.Fatalf("Selection failed: %v", err)
	}
	if _, ok := sel[0]; ok {
		t.Error("Records of other documents must be ignored")
	}
}

func TestXLSXLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXLSX, sampleRecords()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue(SheetName, "C1")
	if err != nil || header != "type" {
		t.Errorf("Expected header 'type' in C1, got %q (%v)", header, err)
	}
	typ, _ := f.GetCellValue(SheetName, "C2")
	if typ != "SSN Full" {
		t.Errorf("Expected 'SSN Full' in C2, got %q", typ)
	}
}

func TestDetectFileFormat(t *testing.T) {
	tests := map[string]FileFormat{
		"findings.csv":      FormatCSV,
		"out/findings.JSON": FormatJSON,
		"f.parquet":         FormatParquet,
		"review.xlsx":       FormatXLSX,
		"summary.docx":      FormatDOCX,
		"notes.txt":         "",
		"noext":             "",
	}
	for name, want := range tests {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("%s: expected %q, got %q", name, want, got)
		}
	}
}

func TestSummarize(t *testing.T) {
	records := sampleRecords()
	records = append(records, NewRecord("tax.pdf", matchstore.Match{ID: 3, Type: "SSN Full", Text: "111-22-3333", Page: 2}, false))

	sum := Summarize("tax.pdf", 3, records)
	if len(sum.Types) != 3 {
		t.Fatalf("Expected 3 types, got %+v", sum.Types)
	}
	if sum.Types[0] != (TypeCount{Type: "SSN Full", Found: 2, Selected: 1}) {
		t.Errorf("Unexpected first group %+v", sum.Types[0])
	}
	found, selected := sum.Totals()
	if found != 4 || selected != 2 {
		t.Errorf("Expected totals 4/2, got %d/%d", found, selected)
	}
}

func TestWriteSummary(t *testing.T) {
	sum := Summarize("tax.pdf", 3, sampleRecords())
	sum.Redacted = true

	var buf bytes.Buffer
	if err := WriteSummary(&buf, sum); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	doc, err := docx.Parse(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var text strings.Builder
	for _, item := range doc.Document.Body.Items {
		if s, ok := item.(fmt.Stringer); ok {
			text.WriteString(s.String())
			text.WriteByte('\n')
		}
	}

	body := text.String()
	for _, want := range []string{"Redaction summary", "tax.pdf", "Status: redacted", "SSN Full", "Phone"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in summary:\n%s", want, body)
		}
	}
	if strings.Contains(body, "123-45-6789") {
		t.Error("Summary must not contain matched text")
	}
}
