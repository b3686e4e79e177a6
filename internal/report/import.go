package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn is returned when a tabular findings file lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// requiredColumns identify a finding; the rest are informational.
var requiredColumns = []string{"id", "type", "text", "page", "selected"}

// Read decodes findings previously produced by Write.
func Read(data []byte, format FileFormat) ([]FindingRecord, error) {
	switch format {
	case FormatCSV:
		return readCSV(data)
	case FormatJSON:
		return readJSON(data)
	case FormatParquet:
		return readParquet(data)
	case FormatXLSX:
		return readXLSX(data)
	default:
		return nil, fmt.Errorf("unsupported findings format %q", format)
	}
}

func readCSV(data []byte) ([]FindingRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return fromRows(rows)
}

func readXLSX(data []byte) ([]FindingRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

// fromRows maps a header row plus data rows to records. Columns may appear in any order.
func fromRows(rows [][]string) ([]FindingRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	records := make([]FindingRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		get := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if len(row) == 0 {
			continue
		}

		var r FindingRecord
		var err error
		r.Document = get("document")
		r.Type = get("type")
		r.Text = get("text")
		if r.ID, err = strconv.Atoi(get("id")); err != nil {
			return nil, fmt.Errorf("row %d: invalid id: %w", n+2, err)
		}
		if r.Page, err = strconv.Atoi(get("page")); err != nil {
			return nil, fmt.Errorf("row %d: invalid page: %w", n+2, err)
		}
		r.Selected = parseBool(get("selected"))
		r.Rects, _ = strconv.Atoi(get("rects"))
		r.X0, _ = strconv.ParseFloat(get("x0"), 64)
		r.Y0, _ = strconv.ParseFloat(get("y0"), 64)
		r.X1, _ = strconv.ParseFloat(get("x1"), 64)
		r.Y1, _ = strconv.ParseFloat(get("y1"), 64)
		records = append(records, r)
	}
	return records, nil
}

// parseBool accepts what reviewers type into spreadsheets.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "x":
		return true
	default:
		return false
	}
}

// readJSON reads one JSON object per line
func readJSON(data []byte) ([]FindingRecord, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))

	var records []FindingRecord
	for {
		var record FindingRecord
		err := decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON record %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func readParquet(data []byte) ([]FindingRecord, error) {
	input := bytes.NewReader(data)
	if _, err := parquet.OpenFile(input, input.Size()); err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	reader := parquet.NewReader(input)
	defer reader.Close()

	var records []FindingRecord
	for {
		var record FindingRecord
		err := reader.Read(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}
