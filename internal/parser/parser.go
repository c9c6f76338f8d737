package parser

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// MinTextLength is the shortest extracted text worth parsing. Anything shorter
// is an image-only or empty PDF.
const MinTextLength = 100

var (
	ErrTextTooShort      = errors.New("could not extract sufficient text from PDF")
	ErrNoPortfolioData   = errors.New("no portfolio data found in the PDF")
	ErrNoTransactionData = errors.New("no transaction data found in the PDF")
)

// Parser turns CAS statement text into structured data.
type Parser struct {
	log       zerolog.Logger
	onAnomaly func(models.Anomaly)
}

// Option configures a Parser.
type Option func(*Parser)

// WithAnomalyHook registers a callback invoked for every data-quality anomaly.
func WithAnomalyHook(fn func(models.Anomaly)) Option {
	return func(p *Parser) { p.onAnomaly = fn }
}

// New returns a Parser that logs through log.
func New(log zerolog.Logger, opts ...Option) *Parser {
	p := &Parser{log: log.With().Str("component", "parser").Logger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Detect identifies the registrar that issued the statement. It is
// informational; both layouts go through the same parser.
func Detect(text string) (models.Issuer, error) {
	// Scheme headers name either registrar, so only issuer furniture counts.
	if containsAny(text, []string{"Computer Age Management Services", "CAMSCASWS", "camsonline.com"}) {
		return models.IssuerCAMS, nil
	}
	if containsAny(text, []string{"KFin Technologies", "Karvy Fintech", "kfintech.com"}) {
		return models.IssuerKFintech, nil
	}
	return "", errors.New("could not detect the statement issuer")
}

// Parse runs the whole pipeline: portfolio summary, then per-fund, per-folio
// transactions.
func (p *Parser) Parse(text string) (*models.Statement, error) {
	if len(strings.TrimSpace(text)) < MinTextLength {
		return nil, ErrTextTooShort
	}

	portfolio := p.ExtractPortfolioSummary(text)
	if len(portfolio.PortfolioSummary) == 0 && len(portfolio.Schemes) == 0 {
		return nil, ErrNoPortfolioData
	}

	txns, err := p.ExtractFundTransactions(text, portfolio)
	if err != nil {
		return nil, err
	}

	issuer, err := Detect(text)
	if err != nil {
		p.log.Debug().Err(err).Msg("issuer unknown")
	}
	p.log.Info().
		Str("issuer", string(issuer)).
		Int("funds", len(txns.Funds)).
		Int("folios", txns.TotalFolios).
		Int("transactions", txns.TotalTransactions).
		Int("anomalies", len(txns.Anomalies)).
		Msg("statement parsed")

	return &models.Statement{
		Issuer:       issuer,
		Portfolio:    portfolio,
		Transactions: txns,
		Summary: models.Summary{
			TotalFunds:        txns.FundCount,
			TotalFolios:       txns.TotalFolios,
			TotalTransactions: txns.TotalTransactions,
		},
	}, nil
}

// parseFolio runs the folio state machine and reports its anomalies.
func (p *Parser) parseFolio(folioNumber, text string, lineOffset int) *FolioParse {
	res := parseFolioBlock(folioNumber, text, lineOffset)
	for _, a := range res.Anomalies {
		p.report(a)
	}
	return res
}

func (p *Parser) report(a models.Anomaly) {
	ev := p.log.Debug()
	switch a.Kind {
	case models.AnomalyUnclassified, models.AnomalyBalanceMismatch, models.AnomalyFundWithoutFolio:
		ev = p.log.Warn()
	}
	ev.Str("kind", a.Kind).
		Str("folio", a.FolioNumber).
		Int("line", a.Line).
		Str("text", a.Text).
		Msg(a.Detail)
	if p.onAnomaly != nil {
		p.onAnomaly(a)
	}
}
