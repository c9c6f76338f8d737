package parser

import (
	"regexp"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"
)

var (
	// DD-Mon-YYYY at the start of a line, e.g. "27-Sep-2023 (50,000.00) ...".
	casDatePattern = regexp.MustCompile(`^(\d{1,2}-(?i:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)-\d{4})(?:\s+|$)`)
	// Statement period, e.g. "01-Apr-2014 To 19-Jul-2025".
	periodPattern = regexp.MustCompile(`(\d{1,2}-[A-Za-z]{3}-\d{4})\s+(?i:to)\s+(\d{1,2}-[A-Za-z]{3}-\d{4})`)
	// A plain number once grouping commas and parentheses are gone.
	plainNumberPattern = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)$`)
	pageNumberPattern  = regexp.MustCompile(`(?i)^page\s+\d+(\s+of\s+\d+)?$`)
)

// ParseNumber converts a CAS numeric token to a signed decimal. Commas are
// grouping separators (Indian or western), and a value in parentheses is
// negative: "(5,000.00)" is -5000.00. Blank or non-numeric input yields an
// invalid NullDecimal rather than an error.
func ParseNumber(token string) decimal.NullDecimal {
	s := strings.TrimSpace(token)
	s = strings.ReplaceAll(s, " ", "")
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || !plainNumberPattern.MatchString(s) {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.NullDecimal{}
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d)
}

// IsNumericToken reports whether a whitespace-delimited token is a column value.
func IsNumericToken(token string) bool {
	return ParseNumber(token).Valid
}

// isAmountToken is stricter than IsNumericToken: the token must carry a
// decimal point, a grouping comma or parentheses. Bare integers at the end of
// prose ("Instalment 12") stay part of the description.
func isAmountToken(token string) bool {
	return IsNumericToken(token) && strings.ContainsAny(token, ".,(")
}

// splitNumericFields separates the numeric tokens leading and trailing a line
// from the prose between them. Leading and trailing values together fill at
// most limit columns; trailing values must look like amounts.
func splitNumericFields(s string, limit int) (numbers []string, desc string) {
	tokens := strings.Fields(s)
	i := 0
	for i < len(tokens) && IsNumericToken(tokens[i]) {
		i++
	}
	numbers = append(numbers, tokens[:i]...)
	if i == len(tokens) {
		return numbers, ""
	}

	j := len(tokens)
	for j > i && len(tokens)-j < limit-i && isAmountToken(tokens[j-1]) {
		j--
	}
	numbers = append(numbers, tokens[j:]...)
	return numbers, strings.Join(tokens[i:j], " ")
}

// collapseSpaces trims and folds internal whitespace runs into single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// maskPAN keeps the last four characters of a PAN.
func maskPAN(pan string) string {
	pan = strings.TrimSpace(pan)
	if pan == "" {
		return ""
	}
	if len(pan) <= 4 {
		return strings.Repeat("X", len(pan))
	}
	return strings.Repeat("X", len(pan)-4) + pan[len(pan)-4:]
}

// Page furniture and column headings repeated on every CAS page. They must
// never be stitched into a wrapped transaction description.
var boilerplatePhrases = []string{
	"consolidated account statement",
	"camscasws",
	"computer age management services",
	"kfin technologies",
	"kfintech",
	"date transaction",
	"amount (inr)",
	"nav (inr)",
	"price (inr)",
	"units transaction",
	"(inr) units",
	"unit balance nav",
	"if there is any discrepancy",
	"please notify",
	"registered office",
	"this is a computer generated statement",
	"mutual fund investments are subject to market risks",
	"www.camsonline.com",
	"www.kfintech.com",
	"cost value market value",
}

// phraseMatcher wraps an Aho-Corasick automaton. The cloudflare matcher keeps
// per-call scratch state, so calls are serialized.
type phraseMatcher struct {
	mu sync.Mutex
	m  *ahocorasick.Matcher
}

func newPhraseMatcher(phrases []string) *phraseMatcher {
	return &phraseMatcher{m: ahocorasick.NewStringMatcher(phrases)}
}

func (p *phraseMatcher) matchAny(text string) bool {
	lower := []byte(strings.ToLower(text))
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m.Match(lower)) > 0
}

var boilerplate = newPhraseMatcher(boilerplatePhrases)

// isBoilerplate reports page headers, footers and table headings.
func isBoilerplate(line string) bool {
	if pageNumberPattern.MatchString(line) {
		return true
	}
	return boilerplate.matchAny(line)
}

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, needle := range needles {
		if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
