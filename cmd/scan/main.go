package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/matchstore"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"github.com/raaihank/pdf-redactor/internal/report"
	"github.com/raaihank/pdf-redactor/internal/session"
)

type options struct {
	inputs   []string
	export   string
	summary  string
	apply    string
	outDir   string
	redact   bool
	dedupe   bool
	premium  bool
	logLevel string
}

func main() {
	var (
		configPath      = flag.String("config", "", "Configuration file path")
		input           = flag.String("input", "", "Comma-separated PDF files to scan")
		premium         = flag.Bool("premium", false, "Run premium rules as well")
		export          = flag.String("export", "", "Write findings to a .csv, .json, .parquet or .xlsx file")
		summary         = flag.String("summary", "", "Write a .docx summary per document")
		redact          = flag.Bool("redact", false, "Write redacted_<name> for every document")
		outDir          = flag.String("out-dir", ".", "Directory for redacted documents")
		apply           = flag.String("apply", "", "Take the selection from a reviewed findings file")
		dedupe          = flag.Bool("dedupe", false, "Deselect repeated matches before redacting")
		occurrenceOrder = flag.Bool("occurrence-order", false, "Match the k-th textual occurrence to the k-th visual one only")
		logLevel        = flag.String("log-level", "warn", "Log level")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -input tax.pdf -export findings.xlsx\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input a.pdf,b.pdf -premium -redact -out-dir out\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input tax.pdf -apply findings.csv -redact\n", os.Args[0])
		os.Exit(1)
	}

	opts := options{
		inputs:   splitList(*input),
		export:   *export,
		summary:  *summary,
		apply:    *apply,
		outDir:   *outDir,
		redact:   *redact,
		dedupe:   *dedupe,
		premium:  *premium,
		logLevel: *logLevel,
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *occurrenceOrder {
		cfg.Locate.OccurrenceOrder = true
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  opts.logLevel,
		Format: "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling")
		cancel()
	}()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error("Scan failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *logger.Logger) error {
	tier := privacy.TierStandard
	if opts.premium {
		tier = privacy.TierPremium
	}
	deps, err := session.NewDeps(cfg, session.StaticTier(tier), log)
	if err != nil {
		return err
	}

	var reviewed []report.FindingRecord
	if opts.apply != "" {
		if reviewed, err = readFindings(opts.apply); err != nil {
			return err
		}
	}

	if opts.redact {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var all []report.FindingRecord
	for _, path := range opts.inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		records, err := processFile(ctx, deps, path, reviewed, opts, log)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, records...)
	}

	if opts.export != "" {
		if err := writeFindings(opts.export, all); err != nil {
			return err
		}
		fmt.Printf("Findings written to %s\n", opts.export)
	}
	return nil
}

func processFile(ctx context.Context, deps *session.Deps, path string, reviewed []report.FindingRecord, opts options, log *logger.Logger) ([]report.FindingRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	name := filepath.Base(path)

	sess := session.New("cli", deps)
	if _, err := sess.Upload(ctx, name, raw); err != nil {
		return nil, err
	}

	if opts.dedupe {
		n, err := sess.Dedupe()
		if err != nil {
			return nil, err
		}
		log.Info("Deduplicated matches", zap.String("document", name), zap.Int("deselected", n))
	}

	if reviewed != nil {
		selection, err := report.Selection(name, reviewed, plainMatches(sess.Matches()))
		if err != nil {
			return nil, err
		}
		if err := sess.ApplySelection(selection); err != nil {
			return nil, err
		}
	}

	views := sess.Matches()
	records := make([]report.FindingRecord, len(views))
	for i, v := range views {
		records[i] = report.NewRecord(name, v.Match, v.Selected)
	}

	if opts.redact {
		if err := writeRedacted(sess, opts.outDir); err != nil {
			return nil, err
		}
	}

	sum := sess.Summary()
	printSummary(sum)

	if opts.summary != "" {
		doc := report.Summarize(name, sum.Pages, records)
		doc.Redacted = sum.Redacted
		target := summaryPath(opts.summary, name, len(opts.inputs) > 1)

		var buf bytes.Buffer
		if err := report.WriteSummary(&buf, doc); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
		fmt.Printf("  summary: %s\n", target)
	}
	return records, nil
}

func writeRedacted(sess *session.Session, outDir string) error {
	err := sess.Redact()
	if errors.Is(err, session.ErrNothingSelected) {
		fmt.Println("  nothing selected, no redacted copy written")
		return nil
	}
	if err != nil {
		return err
	}

	name, _, data, err := sess.Download()
	if err != nil {
		return err
	}
	target := filepath.Join(outDir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write redacted document: %w", err)
	}
	fmt.Printf("  redacted: %s\n", target)
	return nil
}

func printSummary(sum session.Summary) {
	fmt.Printf("%s: %d page(s), %d finding(s), %d selected\n", sum.Filename, sum.Pages, sum.Total, sum.Selected)
	for _, g := range sum.Groups {
		selected := 0
		unresolved := 0
		for _, m := range g.Matches {
			if m.Selected {
				selected++
			}
			if !m.Resolved() {
				unresolved++
			}
		}
		line := fmt.Sprintf("  %-20s %3d found, %3d selected", g.Type, len(g.Matches), selected)
		if unresolved > 0 {
			line += fmt.Sprintf(", %d not located", unresolved)
		}
		fmt.Println(line)
	}
}

func readFindings(path string) ([]report.FindingRecord, error) {
	format := report.DetectFileFormat(path)
	if format == "" || format == report.FormatDOCX {
		return nil, fmt.Errorf("unsupported findings file %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}
	return report.Read(data, format)
}

func writeFindings(path string, records []report.FindingRecord) error {
	format := report.DetectFileFormat(path)
	if format == "" || format == report.FormatDOCX {
		return fmt.Errorf("unsupported findings file %s", path)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, records); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write findings: %w", err)
	}
	return nil
}

func plainMatches(views []session.MatchView) []matchstore.Match {
	out := make([]matchstore.Match, len(views))
	for i, v := range views {
		out[i] = v.Match
	}
	return out
}

// summaryPath names one summary per document when several are scanned.
func summaryPath(path, document string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	doc := strings.TrimSuffix(document, filepath.Ext(document))
	return strings.TrimSuffix(path, ext) + "_" + doc + ext
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
