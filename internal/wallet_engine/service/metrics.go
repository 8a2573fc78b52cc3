package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	metricOperations   = "wallet_engine_operations_total"
	metricErrors       = "wallet_engine_errors_total"
	metricDuration     = "wallet_engine_operation_duration_seconds"
	metricTokensIssued = "wallet_engine_tokens_issued_total"
	metricPriceLookups = "wallet_engine_price_lookups_total"
)

// Operation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the engine's Prometheus collectors. It is created once per
// process and read back through Snapshot.
type Metrics struct {
	gatherer prometheus.Gatherer

	Operations   *prometheus.CounterVec
	Errors       *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	TokensIssued prometheus.Counter
	PriceLookups *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: registry,
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricOperations,
				Help: "Total wallet engine operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricErrors,
				Help: "Total wallet engine errors by error code.",
			},
			[]string{"operation", "code"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricDuration,
				Help:    "Wallet engine operation duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		TokensIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricTokensIssued,
				Help: "Total tokens credited by plan issuance.",
			},
		),
		PriceLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPriceLookups,
				Help: "Total reference price lookups by status.",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.Operations,
		m.Errors,
		m.Duration,
		m.TokensIssued,
		m.PriceLookups,
	)
	return m
}

func (m *Metrics) observe(operation, outcome, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	if code != "" {
		m.Errors.WithLabelValues(operation, code).Inc()
	}
	m.Duration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) addTokensIssued(tokens decimal.Decimal) {
	if m == nil {
		return
	}
	m.TokensIssued.Add(tokens.InexactFloat64())
}

func (m *Metrics) incPriceLookup(status string) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(status).Inc()
}

// OperationStats summarizes one engine operation
type OperationStats struct {
	Success      uint64            `json:"success"`
	Replayed     uint64            `json:"replayed"`
	Rejected     uint64            `json:"rejected"`
	Failed       uint64            `json:"failed"`
	Errors       map[string]uint64 `json:"errors,omitempty"`
	AvgLatencyMs float64           `json:"avg_latency_ms"`
}

// MetricsSnapshot is a point-in-time copy of the engine counters
type MetricsSnapshot struct {
	Operations   map[string]*OperationStats `json:"operations"`
	TokensIssued float64                    `json:"tokens_issued"`
	PriceLookups map[string]uint64          `json:"price_lookups"`
	CapturedAt   time.Time                  `json:"captured_at"`
}

// Snapshot reads the current values back from the registry.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Operations:   map[string]*OperationStats{},
		PriceLookups: map[string]uint64{},
		CapturedAt:   time.Now().UTC(),
	}
	if m == nil {
		return snapshot
	}

	// Gather returns whatever it could collect alongside an error.
	families, _ := m.gatherer.Gather()

	stats := func(operation string) *OperationStats {
		s, ok := snapshot.Operations[operation]
		if !ok {
			s = &OperationStats{Errors: map[string]uint64{}}
			snapshot.Operations[operation] = s
		}
		return s
	}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make(map[string]string, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}

			switch family.GetName() {
			case metricOperations:
				s := stats(labels["operation"])
				count := uint64(metric.GetCounter().GetValue())
				switch labels["outcome"] {
				case OutcomeSuccess:
					s.Success += count
				case OutcomeReplayed:
					s.Replayed += count
				case OutcomeRejected:
					s.Rejected += count
				case OutcomeFailed:
					s.Failed += count
				}
			case metricErrors:
				stats(labels["operation"]).Errors[labels["code"]] += uint64(metric.GetCounter().GetValue())
			case metricDuration:
				h := metric.GetHistogram()
				if h.GetSampleCount() > 0 {
					stats(labels["operation"]).AvgLatencyMs = h.GetSampleSum() / float64(h.GetSampleCount()) * 1000
				}
			case metricTokensIssued:
				snapshot.TokensIssued = metric.GetCounter().GetValue()
			case metricPriceLookups:
				snapshot.PriceLookups[labels["status"]] = uint64(metric.GetCounter().GetValue())
			}
		}
	}

	return snapshot
}
