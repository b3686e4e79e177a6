// Package report exports findings for review outside the app and reads reviewed findings back.
package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/raaihank/pdf-redactor/internal/geometry"
	"github.com/raaihank/pdf-redactor/internal/matchstore"
)

// FindingRecord is one match in an exported findings file. The bounding box is the
// union of the match's rectangles.
type FindingRecord struct {
	Document string  `csv:"document" parquet:"document" json:"document"`
	ID       int     `csv:"id" parquet:"id" json:"id"`
	Type     string  `csv:"type" parquet:"type" json:"type"`
	Text     string  `csv:"text" parquet:"text" json:"text"`
	Page     int     `csv:"page" parquet:"page" json:"page"`
	Rects    int     `csv:"rects" parquet:"rects" json:"rects"`
	X0       float64 `csv:"x0" parquet:"x0" json:"x0"`
	Y0       float64 `csv:"y0" parquet:"y0" json:"y0"`
	X1       float64 `csv:"x1" parquet:"x1" json:"x1"`
	Y1       float64 `csv:"y1" parquet:"y1" json:"y1"`
	Selected bool    `csv:"selected" parquet:"selected" json:"selected"`
}

// NewRecord describes a match of document.
func NewRecord(document string, m matchstore.Match, selected bool) FindingRecord {
	var box geometry.Rect
	for _, r := range m.Rects {
		box = box.Union(r)
	}
	return FindingRecord{
		Document: document,
		ID:       m.ID,
		Type:     m.Type,
		Text:     m.Text,
		Page:     m.Page,
		Rects:    len(m.Rects),
		X0:       box.X0,
		Y0:       box.Y0,
		X1:       box.X1,
		Y1:       box.Y1,
		Selected: selected,
	}
}

// Matches reports whether the record describes m.
func (r FindingRecord) Matches(m matchstore.Match) bool {
	return r.ID == m.ID && r.Type == m.Type && r.Page == m.Page && r.Text == m.Text
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
	FormatXLSX    FileFormat = "xlsx"
	FormatDOCX    FileFormat = "docx"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// ParseFormat maps a format name to a FileFormat, or "" when unsupported.
func ParseFormat(name string) FileFormat {
	switch f := FileFormat(strings.ToLower(name)); f {
	case FormatCSV, FormatParquet, FormatJSON, FormatXLSX, FormatDOCX:
		return f
	default:
		return ""
	}
}

// ContentType returns the MIME type of a format.
func (f FileFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/x-ndjson"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// ErrStaleRecord is returned when a reviewed record no longer describes the match with its ID.
var ErrStaleRecord = errors.New("record does not match document")

// Selection maps match IDs to the selection recorded in records. Records of other
// documents are ignored when document is set.
func Selection(document string, records []FindingRecord, matches []matchstore.Match) (map[int]bool, error) {
	byID := make(map[int]matchstore.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}

	out := make(map[int]bool, len(records))
	for _, r := range records {
		if document != "" && r.Document != "" && r.Document != document {
			continue
		}
		m, ok := byID[r.ID]
		if !ok || !r.Matches(m) {
			return nil, fmt.Errorf("%w: id %d", ErrStaleRecord, r.ID)
		}
		out[r.ID] = r.Selected
	}
	return out, nil
}
