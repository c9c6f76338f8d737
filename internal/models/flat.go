package models

import "time"

// FlatTransaction is a transaction denormalized with its scheme and folio, the
// shape used for filtering and flat exports.
type FlatTransaction struct {
	Transaction
	SchemeName  string `json:"schemeName"`
	FolioNumber string `json:"folioNumber"`
	ISIN        string `json:"isin"`
}

// Flatten walks the result in document order.
func Flatten(r *ExtractionResult) []FlatTransaction {
	if r == nil {
		return []FlatTransaction{}
	}
	out := make([]FlatTransaction, 0, r.CountTransactions())
	for _, fund := range r.Funds {
		for _, folio := range fund.Folios {
			for _, txn := range folio.Transactions {
				out = append(out, FlatTransaction{
					Transaction: txn,
					SchemeName:  fund.SchemeName,
					FolioNumber: folio.FolioNumber,
					ISIN:        fund.ISIN,
				})
			}
		}
	}
	return out
}

// FilterCriteria holds the human-readable form of each active filter.
type FilterCriteria struct {
	DateRange        string   `json:"dateRange,omitempty"`
	TransactionTypes []string `json:"transactionTypes,omitempty"`
	SearchQuery      string   `json:"searchQuery,omitempty"`
	FolioNumber      string   `json:"folioNumber,omitempty"`
	AmountRange      string   `json:"amountRange,omitempty"`
}

// Empty reports whether no filter was applied.
func (c FilterCriteria) Empty() bool {
	return c.DateRange == "" && len(c.TransactionTypes) == 0 && c.SearchQuery == "" &&
		c.FolioNumber == "" && c.AmountRange == ""
}

// FilterMetadata describes the filters behind a filtered export.
type FilterMetadata struct {
	AppliedAt     time.Time      `json:"appliedAt"`
	Filters       FilterCriteria `json:"filters"`
	OriginalCount int            `json:"originalCount"`
	FilteredCount int            `json:"filteredCount"`
}
