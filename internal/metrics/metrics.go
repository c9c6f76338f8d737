package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// Extraction outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomePasswordRequired = "password_required"
	OutcomeUnreadable       = "unreadable"
	OutcomeParseError       = "parse_error"
)

// Metrics holds the service counters on a private registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	extractions  *prometheus.CounterVec
	transactions prometheus.Counter
	anomalies    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_extractions_total",
			Help: "Statement extractions by outcome.",
		}, []string{"outcome"}),
		transactions: factory.NewCounter(prometheus.CounterOpts{
			Name: "cas_transactions_extracted_total",
			Help: "Transactions extracted across all statements.",
		}),
		anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_parse_anomalies_total",
			Help: "Data-quality anomalies reported while parsing, by kind.",
		}, []string{"kind"}),
	}
}

// ObserveExtraction records one extraction attempt.
func (m *Metrics) ObserveExtraction(outcome string, transactions int) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	if transactions > 0 {
		m.transactions.Add(float64(transactions))
	}
}

// ObserveAnomaly has the signature of a parser anomaly hook.
func (m *Metrics) ObserveAnomaly(a models.Anomaly) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(a.Kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
