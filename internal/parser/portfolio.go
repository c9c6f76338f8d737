package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

var (
	portfolioSummaryPattern = regexp.MustCompile(`(?i)portfolio\s+summary`)
	// "Aditya Birla Sun Life Mutual Fund   2,50,000.00   9,14,287.60"
	summaryRowPattern = regexp.MustCompile(`^(.*?[A-Za-z].*?)\s+(\(?-?[\d,]+\.\d{2}\)?)\s+(\(?-?[\d,]+\.\d{2}\)?)$`)
	emailPattern      = regexp.MustCompile(`(?i)Email\s*(?:Id)?\s*:\s*([^\s@]+@[^\s@]+\.[^\s@]+)`)
	hasDigitPattern   = regexp.MustCompile(`\d`)
)

// ExtractPortfolioSummary scrapes the statement period, investor details, the
// per-fund-house cost and market value table, and every scheme header.
func (p *Parser) ExtractPortfolioSummary(text string) *models.PortfolioData {
	data := &models.PortfolioData{
		PortfolioSummary: []models.FundHouseSummary{},
		Schemes:          []models.SchemeInfo{},
	}
	if m := periodPattern.FindStringSubmatch(text); m != nil {
		data.StatementPeriod = m[1] + " To " + m[2]
	}

	lines := strings.Split(text, "\n")
	inSummary := false
	seen := make(map[string]bool)
	for i, raw := range lines {
		line := collapseSpaces(raw)
		if line == "" {
			continue
		}

		if data.Email == "" {
			if m := emailPattern.FindStringSubmatch(line); m != nil {
				data.Email = m[1]
				data.InvestorName = investorNameAfter(lines, i+1)
			}
		}

		if h, ok := parseSchemeHeader(line); ok {
			inSummary = false
			if !seen[h.ISIN] {
				seen[h.ISIN] = true
				data.Schemes = append(data.Schemes, h.SchemeInfo)
			}
			continue
		}

		if portfolioSummaryPattern.MatchString(line) {
			inSummary = true
			continue
		}
		if !inSummary {
			continue
		}
		m := summaryRowPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		cost, market := ParseNumber(m[2]), ParseNumber(m[3])
		if strings.HasPrefix(strings.ToLower(m[1]), "total") {
			data.TotalCostValue, data.TotalMarketValue = cost.Decimal, market.Decimal
			inSummary = false
			continue
		}
		data.PortfolioSummary = append(data.PortfolioSummary, models.FundHouseSummary{
			FundHouse:   m[1],
			CostValue:   cost.Decimal,
			MarketValue: market.Decimal,
		})
	}

	if data.TotalCostValue.IsZero() && data.TotalMarketValue.IsZero() {
		cost, market := decimal.Zero, decimal.Zero
		for _, row := range data.PortfolioSummary {
			cost = cost.Add(row.CostValue)
			market = market.Add(row.MarketValue)
		}
		data.TotalCostValue, data.TotalMarketValue = cost, market
	}
	data.FundCount = len(data.Schemes)
	return data
}

// investorNameAfter returns the first following line that reads like a name.
func investorNameAfter(lines []string, from int) string {
	for i := from; i < len(lines) && i < from+3; i++ {
		line := collapseSpaces(lines[i])
		if line == "" || hasDigitPattern.MatchString(line) || strings.Contains(line, "@") || isBoilerplate(line) {
			continue
		}
		return line
	}
	return ""
}
