package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// csvRow is one flattened transaction as written to CSV.
type csvRow struct {
	Date            string `csv:"Date"`
	SchemeName      string `csv:"Scheme Name"`
	ISIN            string `csv:"ISIN"`
	FolioNumber     string `csv:"Folio Number"`
	TransactionType string `csv:"Transaction Type"`
	Category        string `csv:"Category"`
	Description     string `csv:"Description"`
	Amount          string `csv:"Amount"`
	NAV             string `csv:"NAV"`
	Units           string `csv:"Units"`
	UnitBalance     string `csv:"Unit Balance"`
}

// CSVWriter writes flattened transactions to CSV.
type CSVWriter struct {
	IncludeHeader bool
}

func (w *CSVWriter) ContentType() string { return "text/csv" }
func (w *CSVWriter) Extension() string   { return ".csv" }

// Write emits optional "#" metadata rows followed by the transaction table.
func (w *CSVWriter) Write(out io.Writer, r *Report) error {
	if w.IncludeHeader {
		if err := writeCSVMetadata(out, r); err != nil {
			return err
		}
	}

	txns := r.Transactions()
	rows := make([]*csvRow, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, &csvRow{
			Date:            t.Date.ISO(),
			SchemeName:      t.SchemeName,
			ISIN:            t.ISIN,
			FolioNumber:     t.FolioNumber,
			TransactionType: t.TransactionType,
			Category:        t.Category(),
			Description:     t.Description,
			Amount:          formatDecimal(t.Amount),
			NAV:             formatDecimal(t.NAV),
			Units:           formatDecimal(t.Units),
			UnitBalance:     formatDecimal(t.UnitBalance),
		})
	}
	if err := gocsv.Marshal(rows, out); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

func writeCSVMetadata(out io.Writer, r *Report) error {
	cw := csv.NewWriter(out)
	pd := r.portfolio()
	if r.SourceFile != "" {
		cw.Write([]string{"# Source File", r.SourceFile})
	}
	if pd.InvestorName != "" {
		cw.Write([]string{"# Investor", pd.InvestorName})
	}
	if pd.StatementPeriod != "" {
		cw.Write([]string{"# Statement Period", pd.StatementPeriod})
	}
	if r.Filtered() {
		cw.Write([]string{"# Filtered", fmt.Sprintf("%d of %d transactions", r.FilterMetadata.FilteredCount, r.FilterMetadata.OriginalCount)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV metadata: %w", err)
	}
	return nil
}
