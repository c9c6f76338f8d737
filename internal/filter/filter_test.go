package filter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func row(date models.Date, scheme, isin, folio, txnType string, amount decimal.NullDecimal, admin bool) models.FlatTransaction {
	return models.FlatTransaction{
		Transaction: models.Transaction{
			Date:             date,
			Amount:           amount,
			TransactionType:  txnType,
			IsAdministrative: admin,
		},
		SchemeName:  scheme,
		ISIN:        isin,
		FolioNumber: folio,
	}
}

func sampleRows() []models.FlatTransaction {
	return []models.FlatTransaction{
		row(models.NewDate(2024, time.January, 1), "HDFC Flexi Cap Fund", "INF179K01608", "111", models.TxnPurchase, nd("10000"), false),
		row(models.NewDate(2024, time.January, 1), "HDFC Flexi Cap Fund", "INF179K01608", "111", models.AdminStampDuty, nd("0.50"), true),
		row(models.NewDate(2024, time.February, 15), "Axis Bluechip Fund", "INF846K01164", "222", models.TxnRedemption, nd("-5000"), false),
		row(models.NewDate(2024, time.March, 31), "Axis Bluechip Fund", "INF846K01164", "222", "KYC Update", decimal.NullDecimal{}, true),
		row(models.Date{}, "Axis Bluechip Fund", "INF846K01164", "333", "Registration of Nominee", decimal.NullDecimal{}, true),
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  int
	}{
		{"no filters", State{}, 5},
		{"date range inclusive", State{DateRange: DateRange{Start: models.NewDate(2024, time.January, 1), End: models.NewDate(2024, time.February, 15)}}, 3},
		{"open ended date", State{DateRange: DateRange{Start: models.NewDate(2024, time.February, 1)}}, 2},
		{"administrative", State{TransactionTypes: []string{"administrative"}}, 3},
		{"financial", State{TransactionTypes: []string{"financial"}}, 2},
		{"both categories", State{TransactionTypes: []string{"administrative", "financial"}}, 5},
		{"exact type name", State{TransactionTypes: []string{"stamp duty"}}, 1},
		{"scheme search is case-insensitive", State{SearchQuery: "bluechip"}, 3},
		{"folio exact", State{FolioNumber: "222"}, 2},
		{"folio is not a prefix match", State{FolioNumber: "22"}, 0},
		{"amount min treats null as zero", State{AmountRange: AmountRange{Min: nd("0")}}, 4},
		{"amount max", State{AmountRange: AmountRange{Max: nd("1")}}, 4},
		{"amount range", State{AmountRange: AmountRange{Min: nd("1"), Max: nd("20000")}}, 1},
		{"combined with AND", State{SearchQuery: "hdfc", TransactionTypes: []string{"financial"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(sampleRows(), tt.state)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestApplyKeepsOrder(t *testing.T) {
	got := Apply(sampleRows(), State{TransactionTypes: []string{"administrative"}})
	require.Len(t, got, 3)
	assert.Equal(t, models.AdminStampDuty, got[0].TransactionType)
	assert.Equal(t, "KYC Update", got[1].TransactionType)
	assert.Equal(t, "Registration of Nominee", got[2].TransactionType)
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"KYC Update", "Purchase", "Redemption", "Registration of Nominee", "Stamp Duty"}, UniqueTransactionTypes(sampleRows()))
	assert.Equal(t, []string{"111", "222", "333"}, UniqueFolioNumbers(sampleRows()))
	assert.Equal(t, []string{}, UniqueFolioNumbers(nil))
}

func TestCountActive(t *testing.T) {
	assert.Equal(t, 0, CountActive(State{}))
	assert.False(t, HasActive(State{SearchQuery: "   "}))

	s := State{
		DateRange:        DateRange{End: models.NewDate(2024, time.March, 31)},
		TransactionTypes: []string{"financial"},
		AmountRange:      AmountRange{Min: nd("1"), Max: nd("2")},
	}
	assert.Equal(t, 3, CountActive(s))
	assert.True(t, HasActive(s))
}

func TestSerializeAndMetadata(t *testing.T) {
	s := State{
		DateRange:        DateRange{Start: models.NewDate(2024, time.January, 1), End: models.NewDate(2024, time.March, 31)},
		TransactionTypes: []string{"financial"},
		SearchQuery:      " axis ",
		AmountRange:      AmountRange{Max: nd("5000")},
	}
	c := Serialize(s)
	assert.Equal(t, "01-Jan-2024 to 31-Mar-2024", c.DateRange)
	assert.Equal(t, []string{"financial"}, c.TransactionTypes)
	assert.Equal(t, "axis", c.SearchQuery)
	assert.Empty(t, c.FolioNumber)
	assert.Equal(t, "up to 5000", c.AmountRange)

	at := time.Date(2025, time.July, 20, 12, 0, 0, 0, time.UTC)
	m := NewMetadata(s, 5, 2, at)
	assert.Equal(t, at, m.AppliedAt)
	assert.Equal(t, 5, m.OriginalCount)
	assert.Equal(t, 2, m.FilteredCount)
	assert.Equal(t, `Showing 2 of 5 transactions (date 01-Jan-2024 to 31-Mar-2024; types financial; scheme "axis"; amount up to 5000)`, FormatSummary(m))

	assert.Equal(t, "Showing all 5 transactions", FormatSummary(NewMetadata(State{}, 5, 5, at)))
}

func TestStateFromJSON(t *testing.T) {
	body := `{"dateRange":{"start":"2024-01-01","end":null},"transactionTypes":["administrative"],
		"searchQuery":"","folioNumber":"","amountRange":{"min":null,"max":100}}`
	var s State
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, models.NewDate(2024, time.January, 1), s.DateRange.Start)
	assert.True(t, s.DateRange.End.IsZero())
	assert.False(t, s.AmountRange.Min.Valid)
	assert.True(t, s.AmountRange.Max.Valid)
	assert.Equal(t, 3, CountActive(s))
}

func TestReconstruct(t *testing.T) {
	original := &models.ExtractionResult{
		Funds: []models.Fund{
			{
				SchemeName: "HDFC Flexi Cap Fund", ISIN: "INF179K01608", Advisor: "ARN-1",
				Folios: []models.Folio{{FolioNumber: "111", ISIN: "INF179K01608", PAN: "XXXXXX234F", TotalCostValue: nd("10000"), MarketValue: nd("11000")}},
			},
			{
				SchemeName: "Axis Bluechip Fund", ISIN: "INF846K01164",
				Folios: []models.Folio{{FolioNumber: "222", ISIN: "INF846K01164"}, {FolioNumber: "333", ISIN: "INF846K01164"}},
			},
		},
	}

	rows := Apply(sampleRows(), State{TransactionTypes: []string{"administrative"}})
	got := Reconstruct(rows, original)

	require.Len(t, got.Funds, 2)
	hdfc := got.Funds[0]
	assert.Equal(t, "ARN-1", hdfc.Advisor)
	require.Len(t, hdfc.Folios, 1)
	assert.Equal(t, "XXXXXX234F", hdfc.Folios[0].PAN)
	require.Len(t, hdfc.Folios[0].Transactions, 1)
	assert.True(t, decimal.NewFromInt(11000).Equal(hdfc.MarketValue))

	axis := got.Funds[1]
	require.Len(t, axis.Folios, 2)
	assert.Equal(t, 2, axis.TransactionCount)

	assert.Equal(t, 3, got.TotalTransactions)
	assert.Equal(t, 3, got.TotalFolios)
	assert.Equal(t, 2, got.FundCount)
	assert.Len(t, models.Flatten(got), len(rows))
}

func TestReconstructWithoutOriginal(t *testing.T) {
	got := Reconstruct(sampleRows()[:2], nil)
	require.Len(t, got.Funds, 1)
	assert.Equal(t, "HDFC Flexi Cap Fund", got.Funds[0].SchemeName)
	assert.Equal(t, 1, got.TotalFolios)

	empty := Reconstruct(nil, nil)
	assert.Empty(t, empty.Funds)
	assert.NotNil(t, empty.Funds)
}
