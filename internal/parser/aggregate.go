package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

var (
	// "G357-Aditya Birla Sun Life Small Cap Fund - Growth - ISIN: INF209K01EN2(Advisor: ARN-123456) Registrar : CAMS"
	// The scheme code prefix always contains a digit.
	schemeHeaderPattern = regexp.MustCompile(`^(?:[A-Za-z]*\d[A-Za-z0-9]*-)?(.+?)\s*-?\s*ISIN\s*:\s*([A-Z]{2}[A-Z0-9]{9}\d)`)
	advisorPattern      = regexp.MustCompile(`(?:\()?Advisor[:\s]+([A-Z0-9]+-?[A-Z0-9]*)(?:\))?`)
	registrarPattern    = regexp.MustCompile(`(?i)Registrar\s*:\s*([A-Za-z][A-Za-z ]*?)\s*$`)
	// "Folio No: 1234567 / 89   PAN: ABCDE1234F"
	folioMarkerPattern = regexp.MustCompile(`(?i)^Folio\s*(?:No|Number)?\.?\s*:\s*([0-9A-Z]+(?:\s*/\s*[0-9A-Z]+)?)`)
	panPattern         = regexp.MustCompile(`\bPAN\s*:\s*([A-Z]{5}\d{4}[A-Z])`)
)

type schemeHeader struct {
	models.SchemeInfo
}

func parseSchemeHeader(line string) (schemeHeader, bool) {
	m := schemeHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return schemeHeader{}, false
	}
	h := schemeHeader{models.SchemeInfo{
		SchemeName: strings.TrimRight(collapseSpaces(m[1]), " -"),
		ISIN:       m[2],
	}}
	if a := advisorPattern.FindStringSubmatch(line); a != nil {
		h.Advisor = a[1]
	}
	if r := registrarPattern.FindStringSubmatch(line); r != nil {
		h.Registrar = strings.TrimSpace(r[1])
	}
	return h, true
}

type folioMarker struct {
	number string
	pan    string
	line   int
}

func parseFolioMarker(line string, lineNo int) (folioMarker, bool) {
	m := folioMarkerPattern.FindStringSubmatch(line)
	if m == nil {
		return folioMarker{}, false
	}
	fm := folioMarker{number: strings.ReplaceAll(m[1], " ", ""), line: lineNo}
	if p := panPattern.FindStringSubmatch(line); p != nil {
		fm.pan = maskPAN(p[1])
	}
	return fm, true
}

// headerFollows reports whether a scheme header appears after a folio marker
// before any transaction content. CAMS prints the folio above the scheme;
// KFintech prints it below.
func headerFollows(lines []string, from int) bool {
	for _, raw := range lines[from:] {
		line := strings.TrimSpace(raw)
		if _, ok := parseSchemeHeader(line); ok {
			return true
		}
		if folioMarkerPattern.MatchString(line) {
			return false
		}
		switch ClassifyLine(line, false) {
		case OpeningBalanceMarker, ClosingBalanceMarker, DateTransactionStart:
			return false
		}
	}
	return false
}

// openFolio is a folio whose lines are still being collected.
type openFolio struct {
	marker folioMarker
	header schemeHeader
	start  int
	lines  []string
}

type fundBuilder struct {
	p         *Parser
	portfolio *models.PortfolioData
	funds     []models.Fund
	index     map[string]int
	cur       int
	header    schemeHeader
	folio     *openFolio
	anomalies []models.Anomaly
}

func (b *fundBuilder) enterFund(h schemeHeader) {
	b.closeFolio()
	b.header = h
	if i, ok := b.index[h.ISIN]; ok {
		b.cur = i
		return
	}
	fund := models.Fund{
		SchemeName: h.SchemeName,
		ISIN:       h.ISIN,
		Advisor:    h.Advisor,
		Registrar:  h.Registrar,
		Folios:     []models.Folio{},
	}
	if s, ok := b.portfolio.SchemeByISIN(h.ISIN); ok {
		if s.SchemeName != "" {
			fund.SchemeName = s.SchemeName
		}
		if fund.Advisor == "" {
			fund.Advisor = s.Advisor
		}
		if fund.Registrar == "" {
			fund.Registrar = s.Registrar
		}
	}
	b.funds = append(b.funds, fund)
	b.cur = len(b.funds) - 1
	b.index[h.ISIN] = b.cur
}

func (b *fundBuilder) openFolio(m folioMarker) {
	b.closeFolio()
	b.folio = &openFolio{marker: m, header: b.header, start: m.line}
}

func (b *fundBuilder) closeFolio() {
	of := b.folio
	if of == nil {
		return
	}
	b.folio = nil

	parsed := b.p.parseFolio(of.marker.number, strings.Join(of.lines, "\n"), of.start)
	b.anomalies = append(b.anomalies, parsed.Anomalies...)

	fund := &b.funds[b.cur]
	advisor := of.header.Advisor
	if advisor == "" {
		advisor = fund.Advisor
	}
	fund.Folios = append(fund.Folios, models.Folio{
		FolioNumber:        of.marker.number,
		SchemeName:         fund.SchemeName,
		ISIN:               fund.ISIN,
		OpeningUnitBalance: parsed.OpeningUnitBalance,
		ClosingUnitBalance: parsed.ClosingUnitBalance,
		NAVOnDate:          parsed.NAVOnDate,
		ValuationDate:      parsed.ValuationDate,
		TotalCostValue:     parsed.TotalCostValue,
		MarketValue:        parsed.MarketValue,
		Advisor:            advisor,
		PAN:                of.marker.pan,
		Transactions:       parsed.Transactions,
	})
}

// ExtractFundTransactions slices the statement text into funds (by scheme
// ISIN header) and folios (by folio marker), runs the folio parser over each
// folio, and assembles the nested result. portfolio may be nil.
func (p *Parser) ExtractFundTransactions(text string, portfolio *models.PortfolioData) (*models.ExtractionResult, error) {
	lines := strings.Split(text, "\n")
	b := &fundBuilder{p: p, portfolio: portfolio, index: make(map[string]int), cur: -1}
	var pending *folioMarker

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if h, ok := parseSchemeHeader(line); ok {
			b.enterFund(h)
			if pending != nil {
				pending.line = lineNo
				b.openFolio(*pending)
				pending = nil
			}
			continue
		}

		if m, ok := parseFolioMarker(line, lineNo); ok {
			b.closeFolio()
			if b.cur >= 0 && !headerFollows(lines, i+1) {
				b.openFolio(m)
			} else {
				pending = &m
			}
			continue
		}

		if b.folio != nil {
			b.folio.lines = append(b.folio.lines, raw)
		}
	}
	b.closeFolio()
	if pending != nil {
		p.log.Debug().Str("folio", pending.number).Int("line", pending.line).Msg("folio marker without a scheme")
	}

	if len(b.funds) == 0 {
		return nil, ErrNoTransactionData
	}

	result := &models.ExtractionResult{Funds: b.funds, Anomalies: b.anomalies}
	for i := range result.Funds {
		fund := &result.Funds[i]
		if len(fund.Folios) == 0 {
			a := models.Anomaly{Kind: models.AnomalyFundWithoutFolio, Text: fund.ISIN, Detail: fund.SchemeName}
			result.Anomalies = append(result.Anomalies, a)
			p.report(a)
		}
		cost, market := decimal.Zero, decimal.Zero
		for _, folio := range fund.Folios {
			fund.TransactionCount += len(folio.Transactions)
			if folio.TotalCostValue.Valid {
				cost = cost.Add(folio.TotalCostValue.Decimal)
			}
			if folio.MarketValue.Valid {
				market = market.Add(folio.MarketValue.Decimal)
			}
		}
		fund.TotalCostValue, fund.MarketValue = cost, market
		result.TotalTransactions += fund.TransactionCount
		result.TotalCostValue = result.TotalCostValue.Add(cost)
		result.MarketValue = result.MarketValue.Add(market)
	}
	result.TotalFolios = result.DistinctFolios()
	result.FundCount = len(result.Funds)
	if portfolio != nil && portfolio.FundCount > 0 {
		result.FundCount = portfolio.FundCount
	}
	return result, nil
}
