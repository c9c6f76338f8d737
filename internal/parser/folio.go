package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// maxColumns is amount, NAV, units and unit balance, in that order.
const maxColumns = 4

var (
	navOnDatePattern   = regexp.MustCompile(`(?i)NAV\s+on\s+(\d{1,2}-[a-z]{3}-\d{4})\s*:\s*(?:INR|Rs\.?|₹)?\s*([\d,]*\.?\d+)`)
	totalCostPattern   = regexp.MustCompile(`(?i)Total\s+Cost\s+Value\s*:\s*(?:INR|Rs\.?|₹)?\s*([\d,]*\.?\d+)`)
	marketValuePattern = regexp.MustCompile(`(?i)Market\s+Value\s+on\s+(\d{1,2}-[a-z]{3}-\d{4})\s*:\s*(?:INR|Rs\.?|₹)?\s*([\d,]*\.?\d+)`)

	balanceTolerance = decimal.New(1, -3)
)

// FolioParse is what ParseFolio recovers from one folio's text block.
type FolioParse struct {
	OpeningUnitBalance decimal.NullDecimal
	ClosingUnitBalance decimal.NullDecimal
	NAVOnDate          decimal.NullDecimal
	ValuationDate      models.Date
	TotalCostValue     decimal.NullDecimal
	MarketValue        decimal.NullDecimal
	Transactions       []models.Transaction
	Anomalies          []models.Anomaly
}

type folioState int

const (
	awaitingOpeningBalance folioState = iota
	inFolio
	folioClosed
)

// txnBuffer accumulates one transaction that may span several lines.
type txnBuffer struct {
	date    models.Date
	line    int
	text    string
	numbers []string
	desc    []string
	marker  string
}

func (b *txnBuffer) room() int {
	return maxColumns - len(b.numbers)
}

type folioScanner struct {
	folioNumber  string
	state        folioState
	lastSeenDate models.Date
	buf          *txnBuffer
	running      decimal.NullDecimal
	res          *FolioParse
}

// ParseFolio runs the folio state machine over the text of a single folio.
// Lines before the opening balance are skipped, transactions are assembled
// until the closing balance, and the remainder is only searched for the
// valuation figures.
func ParseFolio(text string) *FolioParse {
	return parseFolioBlock("", text, 0)
}

func parseFolioBlock(folioNumber, text string, lineOffset int) *FolioParse {
	s := &folioScanner{
		folioNumber: folioNumber,
		res:         &FolioParse{Transactions: []models.Transaction{}},
	}
	for i, raw := range strings.Split(text, "\n") {
		s.feed(strings.TrimSpace(raw), lineOffset+i+1)
	}
	s.flush()
	return s.res
}

func (s *folioScanner) feed(line string, lineNo int) {
	if s.state == folioClosed {
		s.scanValuation(line)
		return
	}

	switch ClassifyLine(line, s.state == inFolio) {
	case OpeningBalanceMarker:
		s.flush()
		m := openingBalancePattern.FindStringSubmatch(line)
		s.res.OpeningUnitBalance = s.number(m[1], lineNo, line)
		s.running = s.res.OpeningUnitBalance
		s.state = inFolio
	case ClosingBalanceMarker:
		s.flush()
		m := closingBalancePattern.FindStringSubmatch(line)
		s.res.ClosingUnitBalance = s.number(m[1], lineNo, line)
		s.checkClosing()
		s.state = folioClosed
		s.scanValuation(line)
	case DateTransactionStart:
		if s.state == awaitingOpeningBalance {
			s.anomaly(models.AnomalyNoOpeningBalance, lineNo, line, "transactions start without an opening unit balance")
			s.state = inFolio
		}
		s.flush()
		s.open(line, lineNo)
	case AdministrativeMarker:
		if s.state == inFolio {
			s.marker(line, lineNo)
		}
	case ContinuationText:
		if s.buf != nil {
			s.extend(line)
		}
	}
}

// open starts a buffer from a date-led line.
func (s *folioScanner) open(line string, lineNo int) {
	m := casDatePattern.FindStringSubmatch(line)
	date, err := models.ParseDate(m[1])
	if err != nil {
		s.anomaly(models.AnomalyUnparseableDate, lineNo, line, err.Error())
	} else {
		s.lastSeenDate = date
	}

	b := &txnBuffer{date: date, line: lineNo, text: line}
	rest := strings.TrimSpace(line[len(m[0]):])
	if loc := adminMarkerPattern.FindStringIndex(rest); loc != nil {
		b.marker = rest[loc[0]:loc[1]]
		rest = rest[:loc[0]] + " " + rest[loc[1]:]
	}
	numbers, desc := splitNumericFields(rest, maxColumns)
	b.numbers = numbers
	if desc != "" {
		b.desc = append(b.desc, desc)
	}
	s.buf = b
	if b.marker != "" {
		s.flush()
	}
}

// extend folds a wrapped line into the open buffer. Trailing amount-like
// tokens fill columns the date line left empty.
func (s *folioScanner) extend(line string) {
	b := s.buf
	tokens := strings.Fields(line)
	allNumeric := true
	for _, t := range tokens {
		if !IsNumericToken(t) {
			allNumeric = false
			break
		}
	}
	if allNumeric {
		n := min(len(tokens), b.room())
		b.numbers = append(b.numbers, tokens[:n]...)
		return
	}

	numbers, desc := splitTrailingAmounts(tokens, b.room())
	b.numbers = append(b.numbers, numbers...)
	if desc != "" {
		b.desc = append(b.desc, desc)
	}
}

func splitTrailingAmounts(tokens []string, limit int) ([]string, string) {
	j := len(tokens)
	for j > 0 && len(tokens)-j < limit && isAmountToken(tokens[j-1]) {
		j--
	}
	return tokens[j:], strings.Join(tokens[:j], " ")
}

// marker handles a standalone ***...*** line. It describes an open buffer
// that has no description yet; otherwise it is a transaction of its own,
// dated by the most recent date line.
func (s *folioScanner) marker(line string, lineNo int) {
	loc := adminMarkerPattern.FindStringIndex(line)
	text := line[loc[0]:loc[1]]
	rest := strings.TrimSpace(line[:loc[0]] + " " + line[loc[1]:])
	var numbers []string
	if rest != "" {
		numbers, _ = splitTrailingAmounts(strings.Fields(rest), maxColumns)
	}

	if b := s.buf; b != nil && len(b.desc) == 0 && b.marker == "" {
		b.marker = text
		b.numbers = append(b.numbers, numbers[:min(len(numbers), b.room())]...)
		s.flush()
		return
	}

	s.flush()
	if s.lastSeenDate.IsZero() {
		s.anomaly(models.AnomalyUndatedMarker, lineNo, line, "administrative marker before any dated line")
	}
	s.buf = &txnBuffer{date: s.lastSeenDate, line: lineNo, text: line, marker: text, numbers: numbers}
	s.flush()
}

// flush emits the open buffer as a transaction.
func (s *folioScanner) flush() {
	b := s.buf
	if b == nil {
		return
	}
	s.buf = nil

	if n := len(b.numbers); n > maxColumns {
		s.anomaly(models.AnomalyExtraColumns, b.line, b.text,
			fmt.Sprintf("%d numeric values, kept the first %d", n, maxColumns))
		b.numbers = b.numbers[:maxColumns]
	}
	var cols [maxColumns]decimal.NullDecimal
	for i, tok := range b.numbers {
		cols[i] = s.number(tok, b.line, b.text)
	}
	amount, nav, units, balance := cols[0], cols[1], cols[2], cols[3]
	// Some layouts print units before NAV. NAV is never negative while units
	// share the sign of the amount.
	if nav.Valid && units.Valid && nav.Decimal.IsNegative() && units.Decimal.IsPositive() {
		nav, units = units, nav
	}

	desc := b.marker
	if desc == "" {
		desc = strings.Join(b.desc, " ")
	}
	res := ResolveType(desc, amount)
	if !res.Matched {
		s.anomaly(models.AnomalyUnclassified, b.line, b.text,
			fmt.Sprintf("no rule matched %q, typed as %s", res.Description, res.Type))
	}

	txn := models.Transaction{
		Date:             b.date,
		Amount:           amount,
		NAV:              nav,
		Units:            units,
		UnitBalance:      balance,
		TransactionType:  res.Type,
		Description:      res.Description,
		IsAdministrative: res.IsAdministrative,
	}
	s.track(txn, b)
	s.res.Transactions = append(s.res.Transactions, txn)
}

// track keeps a running unit balance and checks it against printed balances.
func (s *folioScanner) track(txn models.Transaction, b *txnBuffer) {
	if !txn.IsAdministrative && txn.Units.Valid && s.running.Valid {
		s.running = decimal.NewNullDecimal(s.running.Decimal.Add(txn.Units.Decimal))
	}
	if !txn.UnitBalance.Valid {
		return
	}
	if s.running.Valid && !closeEnough(s.running.Decimal, txn.UnitBalance.Decimal) {
		s.anomaly(models.AnomalyBalanceMismatch, b.line, b.text,
			fmt.Sprintf("running balance %s, printed %s", s.running.Decimal, txn.UnitBalance.Decimal))
	}
	s.running = txn.UnitBalance
}

func (s *folioScanner) checkClosing() {
	closing := s.res.ClosingUnitBalance
	if !closing.Valid || !s.running.Valid {
		return
	}
	if !closeEnough(s.running.Decimal, closing.Decimal) {
		s.anomaly(models.AnomalyBalanceMismatch, 0, "",
			fmt.Sprintf("running balance %s, closing %s", s.running.Decimal, closing.Decimal))
	}
}

func (s *folioScanner) scanValuation(line string) {
	if m := navOnDatePattern.FindStringSubmatch(line); m != nil && !s.res.NAVOnDate.Valid {
		s.res.NAVOnDate = ParseNumber(m[2])
		if d, err := models.ParseDate(m[1]); err == nil {
			s.res.ValuationDate = d
		}
	}
	if m := totalCostPattern.FindStringSubmatch(line); m != nil && !s.res.TotalCostValue.Valid {
		s.res.TotalCostValue = ParseNumber(m[1])
	}
	if m := marketValuePattern.FindStringSubmatch(line); m != nil && !s.res.MarketValue.Valid {
		s.res.MarketValue = ParseNumber(m[2])
		if s.res.ValuationDate.IsZero() {
			if d, err := models.ParseDate(m[1]); err == nil {
				s.res.ValuationDate = d
			}
		}
	}
}

func (s *folioScanner) number(tok string, lineNo int, line string) decimal.NullDecimal {
	v := ParseNumber(tok)
	if !v.Valid && strings.TrimSpace(tok) != "" {
		s.anomaly(models.AnomalyUnparseableNumber, lineNo, line, fmt.Sprintf("cannot parse %q", tok))
	}
	return v
}

func (s *folioScanner) anomaly(kind string, lineNo int, line, detail string) {
	s.res.Anomalies = append(s.res.Anomalies, models.Anomaly{
		Kind:        kind,
		FolioNumber: s.folioNumber,
		Line:        lineNo,
		Text:        line,
		Detail:      detail,
	})
}

func closeEnough(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(balanceTolerance)
}
