package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes recorded per holding in a refresh session.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches         *prometheus.CounterVec
	sessions        *prometheus.HistogramVec
	holdings        prometheus.Gauge
	portfolioValue  prometheus.Gauge
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foliopulse",
				Name:      "holding_fetches_total",
				Help:      "Per-holding fetch results in refresh sessions",
			},
			[]string{"outcome"},
		),
		sessions: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "foliopulse",
				Name:      "refresh_session_duration_seconds",
				Help:      "Duration of full-portfolio refresh sessions",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"forced"},
		),
		holdings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "foliopulse",
			Name:      "holdings",
			Help:      "Number of holdings in the portfolio",
		}),
		portfolioValue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "foliopulse",
			Name:      "portfolio_value",
			Help:      "Current total market value of the portfolio",
		}),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "foliopulse",
				Subsystem: "provider",
				Name:      "latency_seconds",
				Help:      "Latency of quote provider calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		providerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foliopulse",
				Subsystem: "provider",
				Name:      "errors_total",
				Help:      "Errors by quote provider endpoint",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordFetch counts one per-holding fetch outcome.
func (r *Recorder) RecordFetch(outcome string) {
	r.fetches.WithLabelValues(outcome).Inc()
}

// ObserveSession records how long a refresh session ran.
func (r *Recorder) ObserveSession(forced bool, d time.Duration) {
	label := "false"
	if forced {
		label = "true"
	}
	r.sessions.WithLabelValues(label).Observe(d.Seconds())
}

func (r *Recorder) SetHoldings(n int) {
	r.holdings.Set(float64(n))
}

func (r *Recorder) SetPortfolioValue(v float64) {
	r.portfolioValue.Set(v)
}

// ObserveProviderCall records latency and, when err is non-nil, an error.
func (r *Recorder) ObserveProviderCall(endpoint string, d time.Duration, err error) {
	r.providerLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		r.providerErrors.WithLabelValues(endpoint).Inc()
	}
}
