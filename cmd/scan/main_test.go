package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc/pdftest"
	"github.com/raaihank/pdf-redactor/internal/report"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tax.pdf")
	if err := os.WriteFile(input, pdftest.Simple("SSN: 123-45-6789, call 555-123-4567"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := options{
		inputs:  []string{input},
		export:  filepath.Join(dir, "findings.csv"),
		summary: filepath.Join(dir, "summary.docx"),
		outDir:  filepath.Join(dir, "out"),
		redact:  true,
	}
	if err := run(context.Background(), config.GetDefaults(), opts, logger.Nop()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, name := range []string{"summary.docx", "out/redacted_tax.pdf"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(opts.export)
	if err != nil {
		t.Fatalf("Missing findings: %v", err)
	}
	records, err := report.Read(data, report.FormatCSV)
	if err != nil || len(records) != 2 {
		t.Fatalf("Expected 2 findings, got %d (%v)", len(records), err)
	}

	// Reviewed file: keep only the phone number.
	records[0].Selected = false
	reviewed := filepath.Join(dir, "reviewed.json")
	f, err := os.Create(reviewed)
	if err != nil {
		t.Fatal(err)
	}
	if err := report.Write(f, report.FormatJSON, records); err != nil {
		t.Fatal(err)
	}
	f.Close()

	opts = options{
		inputs: []string{input},
		apply:  reviewed,
		export: filepath.Join(dir, "after.parquet"),
	}
	if err := run(context.Background(), config.GetDefaults(), opts, logger.Nop()); err != nil {
		t.Fatalf("run with -apply failed: %v", err)
	}
	data, err = os.ReadFile(opts.export)
	if err != nil {
		t.Fatal(err)
	}
	after, err := report.Read(data, report.FormatParquet)
	if err != nil || len(after) != 2 {
		t.Fatalf("Expected 2 findings, got %d (%v)", len(after), err)
	}
	if after[0].Selected || !after[1].Selected {
		t.Errorf("Reviewed selection was not applied: %+v", after)
	}
}

func TestRunRejectsUnknownExport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.pdf")
	os.WriteFile(input, pdftest.Simple("nothing here"), 0o644)

	opts := options{inputs: []string{input}, export: filepath.Join(dir, "findings.txt")}
	if err := run(context.Background(), config.GetDefaults(), opts, logger.Nop()); err == nil {
		t.Error("Expected an error for an unsupported export format")
	}
}

func TestSummaryPath(t *testing.T) {
	if got := summaryPath("out/summary.docx", "tax.pdf", false); got != "out/summary.docx" {
		t.Errorf("Single document: got %q", got)
	}
	if got := summaryPath("out/summary.docx", "tax.pdf", true); got != "out/summary_tax.docx" {
		t.Errorf("Several documents: got %q", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a.pdf, ,b.pdf,")
	if len(got) != 2 || got[0] != "a.pdf" || got[1] != "b.pdf" {
		t.Errorf("Unexpected list %q", got)
	}
}
