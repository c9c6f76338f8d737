package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet names, selectable by case-insensitive name.
const (
	SheetPortfolio     = "Portfolio"
	SheetTransactions  = "Transactions"
	SheetHoldings      = "Holdings"
	SheetFilterSummary = "Filter Summary"
)

var defaultSheets = []string{SheetPortfolio, SheetTransactions, SheetHoldings}

// ExcelWriter writes an xlsx workbook.
type ExcelWriter struct{}

func (w *ExcelWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (w *ExcelWriter) Extension() string { return ".xlsx" }

func (w *ExcelWriter) Write(out io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := selectSheets(r.Sheets)
	if r.Filtered() {
		sheets = append(sheets, SheetFilterSummary)
	}

	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}

		var rows [][]interface{}
		switch name {
		case SheetPortfolio:
			rows = portfolioRows(r)
		case SheetTransactions:
			rows = transactionRows(r)
		case SheetHoldings:
			rows = holdingRows(r)
		case SheetFilterSummary:
			rows = filterSummaryRows(r)
		}
		if err := writeSheet(f, name, rows, header); err != nil {
			return fmt.Errorf("failed to write sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// selectSheets keeps the requested sheets in canonical order; an empty or
// unrecognized selection means all of them.
func selectSheets(requested []string) []string {
	want := make(map[string]bool)
	for _, s := range requested {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var out []string
	for _, s := range defaultSheets {
		if want[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultSheets...)
	}
	return out
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func portfolioRows(r *Report) [][]interface{} {
	pd := r.portfolio()
	rows := [][]interface{}{
		{"Fund House", "Cost Value", "Market Value"},
	}
	for _, s := range pd.PortfolioSummary {
		rows = append(rows, []interface{}{s.FundHouse, s.CostValue.InexactFloat64(), s.MarketValue.InexactFloat64()})
	}
	rows = append(rows,
		[]interface{}{"Total", pd.TotalCostValue.InexactFloat64(), pd.TotalMarketValue.InexactFloat64()},
		[]interface{}{},
		[]interface{}{"Statement Period", pd.StatementPeriod},
		[]interface{}{"Investor", pd.InvestorName},
		[]interface{}{"Email", pd.Email},
		[]interface{}{"Schemes", pd.FundCount},
	)
	return rows
}

func transactionRows(r *Report) [][]interface{} {
	rows := [][]interface{}{
		{"Date", "Scheme Name", "ISIN", "Folio Number", "Transaction Type", "Category",
			"Description", "Amount", "NAV", "Units", "Unit Balance"},
	}
	for _, t := range r.Transactions() {
		rows = append(rows, []interface{}{
			t.Date.String(), t.SchemeName, t.ISIN, t.FolioNumber, t.TransactionType, t.Category(),
			t.Description, floatOrNil(t.Amount), floatOrNil(t.NAV), floatOrNil(t.Units), floatOrNil(t.UnitBalance),
		})
	}
	return rows
}

func holdingRows(r *Report) [][]interface{} {
	rows := [][]interface{}{
		{"Scheme Name", "ISIN", "Folio Number", "Advisor", "Opening Units", "Closing Units",
			"NAV", "Valuation Date", "Cost Value", "Market Value", "Transactions"},
	}
	for _, fund := range r.result().Funds {
		for _, fo := range fund.Folios {
			rows = append(rows, []interface{}{
				fund.SchemeName, fund.ISIN, fo.FolioNumber, fo.Advisor,
				floatOrNil(fo.OpeningUnitBalance), floatOrNil(fo.ClosingUnitBalance),
				floatOrNil(fo.NAVOnDate), fo.ValuationDate.String(),
				floatOrNil(fo.TotalCostValue), floatOrNil(fo.MarketValue), len(fo.Transactions),
			})
		}
	}
	return rows
}

func filterSummaryRows(r *Report) [][]interface{} {
	meta := r.FilterMetadata
	rows := [][]interface{}{
		{"Filter", "Value"},
		{"Applied At", meta.AppliedAt.Format("2006-01-02 15:04:05")},
		{"Original Count", meta.OriginalCount},
		{"Filtered Count", meta.FilteredCount},
	}
	for _, l := range filterLines(meta.Filters) {
		label, value, _ := strings.Cut(l, ": ")
		rows = append(rows, []interface{}{label, value})
	}
	return rows
}
