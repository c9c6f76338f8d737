package parser

import (
	"regexp"
	"strings"
)

// LineKind is the role a single line of CAS text plays inside a folio.
type LineKind int

const (
	Noise LineKind = iota
	DateTransactionStart
	ContinuationText
	AdministrativeMarker
	OpeningBalanceMarker
	ClosingBalanceMarker
)

func (k LineKind) String() string {
	switch k {
	case DateTransactionStart:
		return "date_transaction_start"
	case ContinuationText:
		return "continuation_text"
	case AdministrativeMarker:
		return "administrative_marker"
	case OpeningBalanceMarker:
		return "opening_balance_marker"
	case ClosingBalanceMarker:
		return "closing_balance_marker"
	default:
		return "noise"
	}
}

var (
	openingBalancePattern = regexp.MustCompile(`(?i)^Opening\s+Unit\s+Balance\s*:?\s*(\(?-?[\d,]*\.?\d+\)?)`)
	closingBalancePattern = regexp.MustCompile(`(?i)^Closing\s+Unit\s+Balance\s*:?\s*(\(?-?[\d,]*\.?\d+\)?)`)
	// Triple-asterisk framed administrative event, e.g. "*** Stamp Duty ***".
	adminMarkerPattern = regexp.MustCompile(`\*{3}\s*(.*?)\s*\*{3}`)
	// A leading date followed by "To" is a period heading, not a transaction.
	dateRangeLeadPattern = regexp.MustCompile(`(?i)^\d{1,2}-[a-z]{3}-\d{4}\s+to\b`)
)

// ClassifyLine decides the role of one line. Continuation text only exists
// inside a folio; the same prose outside one is noise.
func ClassifyLine(line string, inFolio bool) LineKind {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Noise
	case openingBalancePattern.MatchString(line):
		return OpeningBalanceMarker
	case closingBalancePattern.MatchString(line):
		return ClosingBalanceMarker
	case dateRangeLeadPattern.MatchString(line):
		return Noise
	case casDatePattern.MatchString(line):
		return DateTransactionStart
	case adminMarkerPattern.MatchString(line):
		return AdministrativeMarker
	case isBoilerplate(line):
		return Noise
	case inFolio:
		return ContinuationText
	default:
		return Noise
	}
}
