package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.ObserveExtraction(OutcomeSuccess, 12)
	m.ObserveExtraction(OutcomeSuccess, 3)
	m.ObserveExtraction(OutcomePasswordRequired, 0)
	m.ObserveAnomaly(models.Anomaly{Kind: models.AnomalyBalanceMismatch})

	out := scrape(t, m)
	assert.Contains(t, out, `cas_extractions_total{outcome="success"} 2`)
	assert.Contains(t, out, `cas_extractions_total{outcome="password_required"} 1`)
	assert.Contains(t, out, "cas_transactions_extracted_total 15")
	assert.Contains(t, out, `cas_parse_anomalies_total{kind="balance_mismatch"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction(OutcomeSuccess, 1)
		m.ObserveAnomaly(models.Anomaly{Kind: models.AnomalyUnclassified})
	})
}
