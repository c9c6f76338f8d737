package filter

import (
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// Reconstruct rebuilds funds and folios from filtered rows. Funds and folios
// appear in the order their first row does; folio and fund metadata come from
// original when it has a match. original may be nil.
func Reconstruct(rows []models.FlatTransaction, original *models.ExtractionResult) *models.ExtractionResult {
	type folioKey struct{ isin, folio string }

	result := &models.ExtractionResult{Funds: []models.Fund{}}
	fundIdx := make(map[string]int)
	folioIdx := make(map[folioKey]int)

	for _, r := range rows {
		fi, ok := fundIdx[r.ISIN]
		if !ok {
			fund := models.Fund{SchemeName: r.SchemeName, ISIN: r.ISIN, Folios: []models.Folio{}}
			if of := findFund(original, r.ISIN); of != nil {
				fund.SchemeName, fund.Advisor, fund.Registrar = of.SchemeName, of.Advisor, of.Registrar
			}
			result.Funds = append(result.Funds, fund)
			fi = len(result.Funds) - 1
			fundIdx[r.ISIN] = fi
		}
		fund := &result.Funds[fi]

		key := folioKey{r.ISIN, r.FolioNumber}
		fo, ok := folioIdx[key]
		if !ok {
			folio := models.Folio{FolioNumber: r.FolioNumber, SchemeName: fund.SchemeName, ISIN: r.ISIN}
			if of := findFolio(original, r.ISIN, r.FolioNumber); of != nil {
				folio = *of
			}
			folio.Transactions = []models.Transaction{}
			fund.Folios = append(fund.Folios, folio)
			fo = len(fund.Folios) - 1
			folioIdx[key] = fo
		}
		fund.Folios[fo].Transactions = append(fund.Folios[fo].Transactions, r.Transaction)
	}

	for i := range result.Funds {
		fund := &result.Funds[i]
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
	return result
}

func findFund(r *models.ExtractionResult, isin string) *models.Fund {
	if r == nil {
		return nil
	}
	for i := range r.Funds {
		if r.Funds[i].ISIN == isin {
			return &r.Funds[i]
		}
	}
	return nil
}

func findFolio(r *models.ExtractionResult, isin, number string) *models.Folio {
	f := findFund(r, isin)
	if f == nil {
		return nil
	}
	for i := range f.Folios {
		if f.Folios[i].FolioNumber == number {
			return &f.Folios[i]
		}
	}
	return nil
}
