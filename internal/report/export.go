package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/segmentio/parquet-go"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding findings in xlsx exports.
const SheetName = "Findings"

var columns = []string{"document", "id", "type", "text", "page", "rects", "x0", "y0", "x1", "y1", "selected"}

func (r FindingRecord) fields() []string {
	return []string{
		r.Document,
		strconv.Itoa(r.ID),
		r.Type,
		r.Text,
		strconv.Itoa(r.Page),
		strconv.Itoa(r.Rects),
		formatFloat(r.X0),
		formatFloat(r.Y0),
		formatFloat(r.X1),
		formatFloat(r.Y1),
		strconv.FormatBool(r.Selected),
	}
}

func (r FindingRecord) cells() []interface{} {
	return []interface{}{r.Document, r.ID, r.Type, r.Text, r.Page, r.Rects, r.X0, r.Y0, r.X1, r.Y1, r.Selected}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write encodes records in format. DOCX is not a findings format; use WriteSummary.
func Write(w io.Writer, format FileFormat, records []FindingRecord) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, records)
	case FormatJSON:
		return writeJSON(w, records)
	case FormatParquet:
		return writeParquet(w, records)
	case FormatXLSX:
		return writeXLSX(w, records)
	default:
		return fmt.Errorf("unsupported findings format %q", format)
	}
}

func writeCSV(w io.Writer, records []FindingRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(r.fields()); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeJSON writes one JSON object per line
func writeJSON(w io.Writer, records []FindingRecord) error {
	encoder := json.NewEncoder(w)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to write JSON record: %w", err)
		}
	}
	return nil
}

func writeParquet(w io.Writer, records []FindingRecord) error {
	writer := parquet.NewWriter(w, parquet.SchemaOf(new(FindingRecord)))
	for _, r := range records {
		if err := writer.Write(r); err != nil {
			return fmt.Errorf("failed to write Parquet record: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, records []FindingRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write xlsx header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		f.SetRowStyle(SheetName, 1, 1, style)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := r.cells()
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write xlsx row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}
