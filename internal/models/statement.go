package models

import "github.com/shopspring/decimal"

// Issuer identifies which registrar generated the consolidated statement.
type Issuer string

const (
	IssuerCAMS     Issuer = "cams"
	IssuerKFintech Issuer = "kfintech"
)

// Folio groups the transactions of one investor account within one scheme.
type Folio struct {
	FolioNumber        string              `json:"folioNumber"`
	SchemeName         string              `json:"schemeName"`
	ISIN               string              `json:"isin"`
	OpeningUnitBalance decimal.NullDecimal `json:"openingUnitBalance"`
	ClosingUnitBalance decimal.NullDecimal `json:"closingUnitBalance"`
	NAVOnDate          decimal.NullDecimal `json:"navOnDate"`
	ValuationDate      Date                `json:"valuationDate"`
	TotalCostValue     decimal.NullDecimal `json:"totalCostValue"`
	MarketValue        decimal.NullDecimal `json:"marketValue"`
	Advisor            string              `json:"advisor"`
	PAN                string              `json:"pan"`
	Transactions       []Transaction       `json:"transactions"`
}

// Fund groups folios under one scheme, identified by its ISIN.
type Fund struct {
	SchemeName       string          `json:"schemeName"`
	ISIN             string          `json:"isin"`
	Advisor          string          `json:"advisor,omitempty"`
	Registrar        string          `json:"registrar,omitempty"`
	Folios           []Folio         `json:"folios"`
	TransactionCount int             `json:"transactionCount"`
	TotalCostValue   decimal.Decimal `json:"totalCostValue"`
	MarketValue      decimal.Decimal `json:"marketValue"`
}

// ExtractionResult is the nested funds → folios → transactions tree.
type ExtractionResult struct {
	Funds             []Fund          `json:"funds"`
	TotalFolios       int             `json:"totalFolios"`
	FundCount         int             `json:"fundCount"`
	TotalTransactions int             `json:"totalTransactions"`
	TotalCostValue    decimal.Decimal `json:"totalCostValue"`
	MarketValue       decimal.Decimal `json:"marketValue"`
	Anomalies         []Anomaly       `json:"anomalies,omitempty"`
}

// CountTransactions sums the transactions across every folio.
func (r *ExtractionResult) CountTransactions() int {
	n := 0
	for _, f := range r.Funds {
		for _, fo := range f.Folios {
			n += len(fo.Transactions)
		}
	}
	return n
}

// DistinctFolios counts folio numbers across all funds, deduplicated by value.
func (r *ExtractionResult) DistinctFolios() int {
	seen := make(map[string]struct{})
	for _, f := range r.Funds {
		for _, fo := range f.Folios {
			seen[fo.FolioNumber] = struct{}{}
		}
	}
	return len(seen)
}

// FundHouseSummary is one row of the statement's portfolio summary table.
type FundHouseSummary struct {
	FundHouse   string          `json:"fundHouse"`
	CostValue   decimal.Decimal `json:"costValue"`
	MarketValue decimal.Decimal `json:"marketValue"`
}

// SchemeInfo describes a scheme header found in the statement.
type SchemeInfo struct {
	SchemeName string `json:"schemeName"`
	ISIN       string `json:"isin"`
	Advisor    string `json:"advisor,omitempty"`
	Registrar  string `json:"registrar,omitempty"`
}

// PortfolioData is the output of the portfolio summary scraper.
type PortfolioData struct {
	StatementPeriod  string             `json:"statementPeriod,omitempty"`
	InvestorName     string             `json:"investorName,omitempty"`
	Email            string             `json:"email,omitempty"`
	PortfolioSummary []FundHouseSummary `json:"portfolioSummary"`
	Schemes          []SchemeInfo       `json:"schemes"`
	FundCount        int                `json:"fundCount"`
	TotalCostValue   decimal.Decimal    `json:"totalCostValue"`
	TotalMarketValue decimal.Decimal    `json:"totalMarketValue"`
}

// SchemeByISIN returns the scheme entry for isin, if present.
func (p *PortfolioData) SchemeByISIN(isin string) (SchemeInfo, bool) {
	if p == nil {
		return SchemeInfo{}, false
	}
	for _, s := range p.Schemes {
		if s.ISIN == isin {
			return s, true
		}
	}
	return SchemeInfo{}, false
}

// Summary holds the headline counts reported alongside every extraction.
type Summary struct {
	TotalFunds        int `json:"totalFunds"`
	TotalFolios       int `json:"totalFolios"`
	TotalTransactions int `json:"totalTransactions"`
}

// Statement is everything extracted from one CAS document.
type Statement struct {
	Issuer       Issuer            `json:"issuer,omitempty"`
	Portfolio    *PortfolioData    `json:"portfolioData"`
	Transactions *ExtractionResult `json:"transactionData"`
	Summary      Summary           `json:"summary"`
}

// Anomaly kinds recorded while parsing. None of them abort extraction.
const (
	AnomalyUnparseableNumber = "unparseable_number"
	AnomalyUnparseableDate   = "unparseable_date"
	AnomalyUnclassified      = "unclassified_description"
	AnomalyBalanceMismatch   = "balance_mismatch"
	AnomalyNoOpeningBalance  = "missing_opening_balance"
	AnomalyFundWithoutFolio  = "fund_without_folio"
	AnomalyUndatedMarker     = "undated_marker"
	AnomalyExtraColumns      = "extra_columns"
)

// Anomaly captures a line- or field-level data-quality problem.
type Anomaly struct {
	Kind        string `json:"kind"`
	FolioNumber string `json:"folioNumber,omitempty"`
	Line        int    `json:"line,omitempty"`
	Text        string `json:"text,omitempty"`
	Detail      string `json:"detail,omitempty"`
}
