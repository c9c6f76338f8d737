package writer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

const rule = "================================================================"

// TextWriter writes the raw extracted text, or a readable listing for
// filtered exports and reports without raw text.
type TextWriter struct{}

func (w *TextWriter) ContentType() string { return "text/plain; charset=utf-8" }
func (w *TextWriter) Extension() string   { return ".txt" }

func (w *TextWriter) Write(out io.Writer, r *Report) error {
	if !r.Filtered() && r.RawText != "" {
		_, err := io.WriteString(out, r.RawText)
		return err
	}

	bw := bufio.NewWriter(out)
	txns := r.Transactions()

	fmt.Fprintln(bw, "CAS TRANSACTION EXPORT")
	fmt.Fprintln(bw, rule)
	if r.SourceFile != "" {
		fmt.Fprintf(bw, "Source File: %s\n", r.SourceFile)
	}
	if pd := r.portfolio(); pd.StatementPeriod != "" {
		fmt.Fprintf(bw, "Statement Period: %s\n", pd.StatementPeriod)
	}
	if !r.ExtractedAt.IsZero() {
		fmt.Fprintf(bw, "Generated: %s\n", r.ExtractedAt.Format("02-Jan-2006 15:04"))
	}

	if r.Filtered() {
		meta := r.FilterMetadata
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "FILTERS APPLIED")
		lines := filterLines(meta.Filters)
		if len(lines) == 0 {
			fmt.Fprintln(bw, "  None")
		}
		for _, l := range lines {
			fmt.Fprintf(bw, "  %s\n", l)
		}
		fmt.Fprintf(bw, "Showing %d of %d transactions\n", meta.FilteredCount, meta.OriginalCount)
	} else {
		fmt.Fprintf(bw, "Total Transactions: %d\n", len(txns))
	}

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "TRANSACTIONS")
	fmt.Fprintln(bw, rule)
	for i, t := range txns {
		fmt.Fprintf(bw, "%d. %s | %s | %s\n", i+1, dateOrDash(t.Date), t.TransactionType, t.SchemeName)
		fmt.Fprintf(bw, "   Folio: %s", t.FolioNumber)
		if t.Amount.Valid {
			fmt.Fprintf(bw, " | Amount: %s", formatINR(t.Amount.Decimal))
		}
		if t.Units.Valid {
			fmt.Fprintf(bw, " | Units: %s", t.Units.Decimal.String())
		}
		if t.NAV.Valid {
			fmt.Fprintf(bw, " | NAV: %s", t.NAV.Decimal.String())
		}
		fmt.Fprintln(bw)
		if t.Description != "" {
			fmt.Fprintf(bw, "   %s\n", t.Description)
		}
	}
	return bw.Flush()
}

// filterLines renders each active filter as "Label: value".
func filterLines(c models.FilterCriteria) []string {
	var lines []string
	if c.DateRange != "" {
		lines = append(lines, "Date Range: "+c.DateRange)
	}
	if len(c.TransactionTypes) > 0 {
		lines = append(lines, "Transaction Types: "+strings.Join(c.TransactionTypes, ", "))
	}
	if c.SearchQuery != "" {
		lines = append(lines, "Search: "+c.SearchQuery)
	}
	if c.FolioNumber != "" {
		lines = append(lines, "Folio: "+c.FolioNumber)
	}
	if c.AmountRange != "" {
		lines = append(lines, "Amount Range: "+c.AmountRange)
	}
	return lines
}

func dateOrDash(d models.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}
