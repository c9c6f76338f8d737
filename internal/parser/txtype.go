package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// Resolution is the outcome of mapping a description to a transaction type.
type Resolution struct {
	Type             string
	IsAdministrative bool
	Description      string
	// Matched is false when no rule fired and the amount-sign fallback was used.
	Matched bool
}

type typeRule struct {
	txnType string
	pattern *regexp.Regexp
}

// Checked in order; the first match wins. Switch rules come before SIP and
// purchase because switch descriptions often mention the target plan.
var typeRules = []typeRule{
	{models.TxnSwitchOut, regexp.MustCompile(`switch.*\bout\b`)},
	{models.TxnSwitchIn, regexp.MustCompile(`switch.*\bin\b`)},
	{models.TxnSIP, regexp.MustCompile(`systematic\s+investment|\bsip\b`)},
	{models.TxnRedemption, regexp.MustCompile(`redemption|systematic\s+withdrawal|\bswp\b`)},
	{models.TxnDividend, regexp.MustCompile(`dividend|\bidcw\b`)},
	{models.TxnPurchase, regexp.MustCompile(`purchase`)},
}

// ResolveType maps a transaction description to its type. A description
// containing a ***marker*** is administrative and keeps the framed marker text
// as its description. Otherwise the ordered rules are tried, and when none
// matches a positive amount is taken as a purchase and anything else is
// Unclassified.
func ResolveType(description string, amount decimal.NullDecimal) Resolution {
	raw := strings.TrimSpace(description)
	if loc := adminMarkerPattern.FindStringSubmatchIndex(raw); loc != nil {
		return Resolution{
			Type:             adminLabel(raw[loc[2]:loc[3]]),
			IsAdministrative: true,
			Description:      raw[loc[0]:loc[1]],
			Matched:          true,
		}
	}

	desc := collapseSpaces(raw)
	lower := strings.ToLower(desc)
	for _, rule := range typeRules {
		if rule.pattern.MatchString(lower) {
			return Resolution{Type: rule.txnType, Description: desc, Matched: true}
		}
	}

	if amount.Valid && amount.Decimal.IsPositive() {
		return Resolution{Type: models.TxnPurchase, Description: desc}
	}
	return Resolution{Type: models.TxnUnclassified, Description: desc}
}

// adminLabel cleans the text inside a marker. Stamp duty and STT are
// canonicalized regardless of spacing or case. A label that reads as a
// financial category is qualified so administrative rows never share a type
// with financial ones.
func adminLabel(inner string) string {
	cleaned := collapseSpaces(strings.Trim(inner, "* "))
	key := strings.ToLower(strings.ReplaceAll(cleaned, " ", ""))
	switch key {
	case "stampduty":
		return models.AdminStampDuty
	case "sttpaid", "stt":
		return models.AdminSTTPaid
	case "":
		return "Administrative"
	}
	for _, c := range models.FinancialCategories {
		if strings.EqualFold(c, cleaned) {
			return cleaned + " (Administrative)"
		}
	}
	return cleaned
}
