package receipt

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zombor/expensevision/internal/classifier"
)

// Scan outcomes recorded in the scans counter
const (
	outcomeOK            = "ok"
	outcomeNoProvider    = "no_provider"
	outcomeUpstreamError = "upstream_error"
	outcomeError         = "error"
)

// Metrics holds the Prometheus collectors for scanning and classification.
// A nil *Metrics records nothing.
type Metrics struct {
	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	predictions  *prometheus.CounterVec
	trainings    *prometheus.CounterVec
	keywords     *prometheus.GaugeVec

	// labelled holds the categories allowed as label values. Categories
	// learned at runtime are counted under classifier.OtherCategory.
	labelled map[string]struct{}
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labelled := map[string]struct{}{classifier.OtherCategory: {}}
	for _, category := range classifier.DefaultModel().Categories {
		labelled[category] = struct{}{}
	}
	return &Metrics{
		labelled: labelled,
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensevision",
			Name:      "receipt_scans_total",
			Help:      "Receipt scans by provider and outcome.",
		}, []string{"provider", "outcome"}),
		scanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expensevision",
			Name:      "receipt_scan_duration_seconds",
			Help:      "Time spent extracting and parsing a receipt.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensevision",
			Name:      "category_predictions_total",
			Help:      "Category predictions by predicted category.",
		}, []string{"category"}),
		trainings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensevision",
			Name:      "classifier_trainings_total",
			Help:      "Classifier training events by whether the model was persisted.",
		}, []string{"persisted"}),
		keywords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "expensevision",
			Name:      "classifier_keywords",
			Help:      "Keywords per built-in category.",
		}, []string{"category"}),
	}
}

func (m *Metrics) observeScan(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "none"
	}
	m.scans.WithLabelValues(provider, outcome).Inc()
	if outcome != outcomeNoProvider {
		m.scanDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observePrediction(category string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(m.categoryLabel(category)).Inc()
}

func (m *Metrics) observeTraining(persisted bool, category string, keywords int) {
	if m == nil {
		return
	}
	m.trainings.WithLabelValues(strconv.FormatBool(persisted)).Inc()
	if label := m.categoryLabel(category); label == category {
		m.keywords.WithLabelValues(label).Set(float64(keywords))
	}
}

func (m *Metrics) categoryLabel(category string) string {
	if _, ok := m.labelled[category]; ok {
		return category
	}
	return classifier.OtherCategory
}
