// Package filter narrows flattened transactions and rebuilds the nested
// fund/folio structure from what remains.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// DateRange bounds transaction dates, inclusive. A zero end is open.
type DateRange struct {
	Start models.Date `json:"start"`
	End   models.Date `json:"end"`
}

// AmountRange bounds the transaction amount, inclusive.
type AmountRange struct {
	Min decimal.NullDecimal `json:"min"`
	Max decimal.NullDecimal `json:"max"`
}

// State is the set of filters a user has chosen. Every active filter must
// match for a row to be kept.
type State struct {
	DateRange        DateRange   `json:"dateRange"`
	TransactionTypes []string    `json:"transactionTypes"`
	SearchQuery      string      `json:"searchQuery"`
	FolioNumber      string      `json:"folioNumber"`
	AmountRange      AmountRange `json:"amountRange"`
}

// Apply returns the rows matching every active filter, in input order.
func Apply(rows []models.FlatTransaction, s State) []models.FlatTransaction {
	out := make([]models.FlatTransaction, 0, len(rows))
	for _, r := range rows {
		if s.match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s State) match(r models.FlatTransaction) bool {
	if !s.DateRange.Start.IsZero() || !s.DateRange.End.IsZero() {
		if r.Date.IsZero() {
			return false
		}
		if !s.DateRange.Start.IsZero() && r.Date.Before(s.DateRange.Start.Time) {
			return false
		}
		if !s.DateRange.End.IsZero() && r.Date.After(s.DateRange.End.Time) {
			return false
		}
	}

	if len(s.TransactionTypes) > 0 && !matchesType(r.Transaction, s.TransactionTypes) {
		return false
	}

	if q := strings.TrimSpace(s.SearchQuery); q != "" {
		if !strings.Contains(strings.ToLower(r.SchemeName), strings.ToLower(q)) {
			return false
		}
	}

	if f := strings.TrimSpace(s.FolioNumber); f != "" && r.FolioNumber != f {
		return false
	}

	// A missing amount counts as zero.
	amount := decimal.Zero
	if r.Amount.Valid {
		amount = r.Amount.Decimal
	}
	if s.AmountRange.Min.Valid && amount.LessThan(s.AmountRange.Min.Decimal) {
		return false
	}
	if s.AmountRange.Max.Valid && amount.GreaterThan(s.AmountRange.Max.Decimal) {
		return false
	}
	return true
}

// matchesType accepts a category ("administrative", "financial") or an exact
// transaction type name.
func matchesType(t models.Transaction, wanted []string) bool {
	for _, w := range wanted {
		if strings.EqualFold(w, t.Category()) || strings.EqualFold(w, t.TransactionType) {
			return true
		}
	}
	return false
}

// UniqueTransactionTypes lists the distinct transaction types, sorted.
func UniqueTransactionTypes(rows []models.FlatTransaction) []string {
	return unique(rows, func(r models.FlatTransaction) string { return r.TransactionType })
}

// UniqueFolioNumbers lists the distinct folio numbers, sorted.
func UniqueFolioNumbers(rows []models.FlatTransaction) []string {
	return unique(rows, func(r models.FlatTransaction) string { return r.FolioNumber })
}

func unique(rows []models.FlatTransaction, key func(models.FlatTransaction) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range rows {
		k := key(r)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasActive reports whether any filter is set.
func HasActive(s State) bool {
	return CountActive(s) > 0
}

// CountActive counts the filters that are set. Each range counts once.
func CountActive(s State) int {
	n := 0
	if !s.DateRange.Start.IsZero() || !s.DateRange.End.IsZero() {
		n++
	}
	if len(s.TransactionTypes) > 0 {
		n++
	}
	if strings.TrimSpace(s.SearchQuery) != "" {
		n++
	}
	if strings.TrimSpace(s.FolioNumber) != "" {
		n++
	}
	if s.AmountRange.Min.Valid || s.AmountRange.Max.Valid {
		n++
	}
	return n
}

// Serialize renders the active filters as human-readable strings.
func Serialize(s State) models.FilterCriteria {
	var c models.FilterCriteria
	start, end := s.DateRange.Start, s.DateRange.End
	switch {
	case !start.IsZero() && !end.IsZero():
		c.DateRange = start.String() + " to " + end.String()
	case !start.IsZero():
		c.DateRange = "from " + start.String()
	case !end.IsZero():
		c.DateRange = "until " + end.String()
	}
	if len(s.TransactionTypes) > 0 {
		c.TransactionTypes = append([]string(nil), s.TransactionTypes...)
	}
	c.SearchQuery = strings.TrimSpace(s.SearchQuery)
	c.FolioNumber = strings.TrimSpace(s.FolioNumber)

	lo, hi := s.AmountRange.Min, s.AmountRange.Max
	switch {
	case lo.Valid && hi.Valid:
		c.AmountRange = lo.Decimal.String() + " to " + hi.Decimal.String()
	case lo.Valid:
		c.AmountRange = "from " + lo.Decimal.String()
	case hi.Valid:
		c.AmountRange = "up to " + hi.Decimal.String()
	}
	return c
}

// NewMetadata describes a filtered export.
func NewMetadata(s State, originalCount, filteredCount int, appliedAt time.Time) models.FilterMetadata {
	return models.FilterMetadata{
		AppliedAt:     appliedAt,
		Filters:       Serialize(s),
		OriginalCount: originalCount,
		FilteredCount: filteredCount,
	}
}

// FormatSummary renders a one-line description of a filtered export.
func FormatSummary(m models.FilterMetadata) string {
	if m.Filters.Empty() {
		return fmt.Sprintf("Showing all %d transactions", m.OriginalCount)
	}
	var parts []string
	if m.Filters.DateRange != "" {
		parts = append(parts, "date "+m.Filters.DateRange)
	}
	if len(m.Filters.TransactionTypes) > 0 {
		parts = append(parts, "types "+strings.Join(m.Filters.TransactionTypes, ", "))
	}
	if m.Filters.SearchQuery != "" {
		parts = append(parts, fmt.Sprintf("scheme %q", m.Filters.SearchQuery))
	}
	if m.Filters.FolioNumber != "" {
		parts = append(parts, "folio "+m.Filters.FolioNumber)
	}
	if m.Filters.AmountRange != "" {
		parts = append(parts, "amount "+m.Filters.AmountRange)
	}
	return fmt.Sprintf("Showing %d of %d transactions (%s)", m.FilteredCount, m.OriginalCount, strings.Join(parts, "; "))
}
