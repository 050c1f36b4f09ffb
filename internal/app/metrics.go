package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch results recorded on hitokoto_fetch_total.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultCanceled = "canceled"
)

// Metrics holds the prometheus collectors for quote fetching and widget
// sessions. Collectors are registered on the Registerer given to NewMetrics
// so tests can use a private registry.
type Metrics struct {
	fetchTotal     *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	fetchDiscarded prometheus.Counter
	sessionsOpened prometheus.Counter
}

// NewMetrics creates and registers the collectors. A nil Registerer gets a
// throwaway registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &Metrics{
		fetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitokoto_fetch_total",
				Help: "Quote fetches by result",
			},
			[]string{"result"}, // success, failure, canceled
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hitokoto_fetch_duration_seconds",
				Help:    "Time spent fetching one quote",
				Buckets: prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms to ~12.8s
			},
		),
		fetchDiscarded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hitokoto_fetch_discarded_total",
				Help: "Completed fetches dropped because a newer fetch superseded them",
			},
		),
		sessionsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hitokoto_sessions_opened_total",
				Help: "Widget sessions created",
			},
		),
	}
}

// RegisterSessionGauge exposes the live session count. Called once the
// store exists.
func RegisterSessionGauge(reg prometheus.Registerer, count func() int) {
	if reg == nil {
		return
	}

	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "hitokoto_sessions_active",
			Help: "Widget sessions currently held in memory",
		},
		func() float64 { return float64(count()) },
	)
}
