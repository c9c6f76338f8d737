package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts, NAVs and units are emitted as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Financial transaction categories. Anything that is not one of these is an
// administrative event whose type is the cleaned marker text.
const (
	TxnPurchase     = "Purchase"
	TxnSIP          = "Systematic Investment"
	TxnRedemption   = "Redemption"
	TxnSwitchOut    = "Switch-Out"
	TxnSwitchIn     = "Switch-In"
	TxnDividend     = "Dividend"
	TxnUnclassified = "Unclassified"

	// Canonical labels for the two tax markers CAS statements print on almost
	// every unit-moving transaction.
	AdminStampDuty = "Stamp Duty"
	AdminSTTPaid   = "STT Paid"
)

// FinancialCategories lists the closed set of financial transaction types.
var FinancialCategories = []string{
	TxnPurchase, TxnSIP, TxnRedemption, TxnSwitchOut, TxnSwitchIn, TxnDividend, TxnUnclassified,
}

// IsFinancialCategory reports whether t is one of FinancialCategories.
func IsFinancialCategory(t string) bool {
	for _, c := range FinancialCategories {
		if c == t {
			return true
		}
	}
	return false
}

// Transaction represents a single row of a folio's transaction history.
type Transaction struct {
	Date             Date                `json:"date"`
	Amount           decimal.NullDecimal `json:"amount"`
	NAV              decimal.NullDecimal `json:"nav"`
	Units            decimal.NullDecimal `json:"units"`
	UnitBalance      decimal.NullDecimal `json:"unitBalance"`
	TransactionType  string              `json:"transactionType"`
	Description      string              `json:"description"`
	IsAdministrative bool                `json:"isAdministrative"`
}

// Category returns "administrative" or "financial".
func (t Transaction) Category() string {
	if t.IsAdministrative {
		return CategoryAdministrative
	}
	return CategoryFinancial
}

const (
	CategoryAdministrative = "administrative"
	CategoryFinancial      = "financial"
)

// Date is a calendar date with day precision. The zero value means the date
// could not be parsed and serializes as JSON null.
type Date struct {
	time.Time
}

// CASDateLayout is the DD-Mon-YYYY form used throughout CAS statements.
const CASDateLayout = "02-Jan-2006"

var dateLayouts = []string{"2006-01-02", CASDateLayout, time.RFC3339, "02/01/2006"}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts ISO, DD-Mon-YYYY (month name case-insensitive), RFC 3339
// and DD/MM/YYYY.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		candidate := s
		if layout == CASDateLayout {
			candidate = normalizeMonth(s)
		}
		if t, err := time.Parse(layout, candidate); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// normalizeMonth turns "05-SEP-2023" into "05-Sep-2023".
func normalizeMonth(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[1]) != 3 {
		return s
	}
	parts[1] = strings.ToUpper(parts[1][:1]) + strings.ToLower(parts[1][1:])
	return strings.Join(parts, "-")
}

// String renders the date the way the statement prints it.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(CASDateLayout)
}

// ISO renders YYYY-MM-DD, or "" for the zero date.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.ISO() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
