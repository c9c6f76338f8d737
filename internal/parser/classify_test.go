package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		inFolio bool
		want    LineKind
	}{
		{"opening balance", "Opening Unit Balance: 12871.468", true, OpeningBalanceMarker},
		{"opening balance outside folio", "Opening Unit Balance: 0.000", false, OpeningBalanceMarker},
		{"closing balance with valuation", "Closing Unit Balance: 10,740.804 NAV on 18-Jul-2025: INR 85.12", true, ClosingBalanceMarker},
		{"dated transaction", "27-Sep-2023 (50,000.00) 23.4671 (2,130.664)", true, DateTransactionStart},
		{"date only", "01-Jan-2024", true, DateTransactionStart},
		{"upper case month", "05-SEP-2023 1,000.00", true, DateTransactionStart},
		{"statement period", "01-Apr-2014 To 19-Jul-2025", true, Noise},
		{"stamp duty marker", "*** Stamp Duty ***", true, AdministrativeMarker},
		{"tight marker", "***KYC Update***", false, AdministrativeMarker},
		{"wrapped description", "*Switch-Out - To ABSL Small Cap Fund Growth , less STT 10,740.804", true, ContinuationText},
		{"prose outside folio", "*Switch-Out - To ABSL Small Cap Fund Growth", false, Noise},
		{"blank", "   ", true, Noise},
		{"page footer", "Page 2 of 5", true, Noise},
		{"column heading", "Date Transaction Amount (INR) Units NAV (INR) Unit Balance", true, Noise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyLine(tt.line, tt.inFolio)
			assert.Equal(t, tt.want, got, "got %s, want %s", got, tt.want)
		})
	}
}
