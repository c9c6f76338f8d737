package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/insightdelivered/cas-extractor/internal/api"
	"github.com/insightdelivered/cas-extractor/internal/config"
	"github.com/insightdelivered/cas-extractor/internal/extractor"
	"github.com/insightdelivered/cas-extractor/internal/logger"
	"github.com/insightdelivered/cas-extractor/internal/metrics"
	"github.com/insightdelivered/cas-extractor/internal/parser"
	"github.com/insightdelivered/cas-extractor/internal/store"
	"github.com/insightdelivered/cas-extractor/internal/writer"
)

const version = "1.2.0"

type cliOptions struct {
	format   string
	output   string
	password string
	sheets   []string
	header   bool
}

func main() {
	// CLI flags
	formatFlag := flag.String("format", "excel", "Output format: excel, json, csv, text")
	outputFlag := flag.String("output", "", "Output file path (defaults to input filename with the format's extension)")
	passwordFlag := flag.String("password", "", "Password for protected statements (usually the PAN)")
	sheetsFlag := flag.String("sheets", "", "Comma-separated Excel sheets: portfolio, transactions, holdings (all if omitted)")
	headerFlag := flag.Bool("header", true, "Include statement metadata rows in CSV")
	serveFlag := flag.Bool("serve", false, "Run the HTTP service instead of converting files")
	envFlag := flag.String("env", ".env", "Environment file loaded in -serve mode, if present")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `CAS Mutual Fund Transaction Extractor
by Insight Delivered (QEA AutoLens)

Extracts portfolio summaries and per-folio transaction histories from
CAMS and KFintech Consolidated Account Statements into Excel, JSON,
CSV or text.

Usage:
  cas-extractor [flags] <statement.pdf|statement.txt> [...]
  cas-extractor -serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Excel report with every sheet
  cas-extractor cas.pdf

  # Password-protected statement to JSON
  cas-extractor -password=ABCDE1234F -format=json cas.pdf

  # Only the transactions sheet, custom output path
  cas-extractor -sheets=transactions -output=txns.xlsx cas.pdf

  # Re-parse text saved from an earlier extraction
  cas-extractor -format=csv cas_CAS_Extracted.txt

  # Start the web service (configured through the environment)
  cas-extractor -serve
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("cas-extractor v%s\n", version)
		os.Exit(0)
	}

	if *serveFlag {
		if err := serve(*envFlag); err != nil {
			fatalf("Server error: %v\n", err)
		}
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	opts := cliOptions{
		format:   *formatFlag,
		output:   *outputFlag,
		password: *passwordFlag,
		sheets:   splitList(*sheetsFlag),
		header:   *headerFlag,
	}
	if flag.NArg() > 1 && opts.output != "" {
		fatalf("-output can only be used with a single input file\n")
	}

	log := logger.New("warn", true)
	ext := extractor.New(log, true)
	p := parser.New(log)

	for _, inputPath := range flag.Args() {
		if err := processFile(context.Background(), ext, p, inputPath, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

func processFile(ctx context.Context, ext *extractor.Extractor, p *parser.Parser, inputPath string, opts cliOptions) error {
	// Validate input file
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	w, err := writer.New(opts.format)
	if err != nil {
		return err
	}
	if cw, ok := w.(*writer.CSVWriter); ok {
		cw.IncludeHeader = opts.header
	}

	fmt.Printf("Processing: %s\n", inputPath)

	var text string
	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".txt":
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return err
		}
		text = string(data)
		fmt.Println("  Using text file directly")
	case ".pdf":
		text, err = ext.ExtractFile(ctx, inputPath, opts.password)
		if err != nil {
			return fmt.Errorf("PDF extraction failed: %w", err)
		}
		fmt.Printf("  Extracted %d characters of text\n", len(text))
	default:
		return fmt.Errorf("expected .pdf or .txt file, got %q", filepath.Ext(inputPath))
	}

	st, err := p.Parse(text)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}
	if st.Issuer != "" {
		fmt.Printf("  Issuer: %s\n", strings.ToUpper(string(st.Issuer)))
	}
	fmt.Printf("  Found %d fund(s), %d folio(s), %d transaction(s)\n",
		st.Summary.TotalFunds, st.Summary.TotalFolios, st.Summary.TotalTransactions)
	if n := len(st.Transactions.Anomalies); n > 0 {
		fmt.Printf("  Warning: %d line(s) needed attention; see transactionData.anomalies in JSON output\n", n)
	}

	// Determine output path
	outPath := opts.output
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + w.Extension()
	}
	if outPath == inputPath {
		return fmt.Errorf("output would overwrite input %s", inputPath)
	}

	report := &writer.Report{
		SourceFile:  filepath.Base(inputPath),
		ExtractedAt: time.Now(),
		Statement:   st,
		RawText:     text,
		Sheets:      opts.sheets,
	}
	if err := writer.WriteToFile(w, outPath, report); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	fmt.Printf("  Output: %s\n", outPath)
	if pd := st.Portfolio; pd != nil {
		if pd.InvestorName != "" {
			fmt.Printf("  Investor: %s\n", pd.InvestorName)
		}
		if pd.StatementPeriod != "" {
			fmt.Printf("  Period: %s\n", pd.StatementPeriod)
		}
	}

	fmt.Println("  Done.")
	return nil
}

// serve runs the HTTP service until SIGINT or SIGTERM.
func serve(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}
	out, err := store.NewLocal(cfg.Output.Dir, log)
	if err != nil {
		return err
	}
	sweeper := store.NewSweeper(out, cfg.Output.Retention, log)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	h := &api.Handler{
		Extractor: extractor.New(log, cfg.PdftotextFallback),
		Parser:    parser.New(log, parser.WithAnomalyHook(m.ObserveAnomaly)),
		Store:     out,
		Metrics:   m,
		Log:       log,
		StaticDir: cfg.Server.StaticDir,
		Version:   version,
	}
	app := h.App(cfg.Server.BodyLimitMB)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Str("output_dir", out.Dir()).Msg("server starting")
		errCh <- app.Listen(cfg.Server.Addr())
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
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

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
