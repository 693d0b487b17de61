package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterLogins         *prometheus.CounterVec
	CounterAPIRequests    *prometheus.CounterVec
	CounterSessionExpired prometheus.Counter
	CounterUnauthorized   prometheus.Counter

	// gauges
	GaugeSessionActive prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("backoffice", "test_client", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("backoffice", "test_client", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterLogins := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "logins",
		Help:      "The total number of login attempts, by outcome",
	}, []string{"outcome"})
	counterAPIRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "api_requests",
		Help:      "The total number of back-office API requests",
	}, []string{"resource", "method", "status"})
	counterSessionExpired := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_expired",
		Help:      "The total number of sessions ended by the expiry sweep",
	})
	counterUnauthorized := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "unauthorized_responses",
		Help:      "The total number of 401 responses on authenticated calls",
	})

	gaugeSessionActive := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_active",
		Help:      "Whether an authenticated session is currently active",
	})

	histReqDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets: []float64{
			0.001, 0.0025, 0.005, 0.0075, 0.01,
			0.025, 0.05, 0.075, 0.1, 0.25, 0.5,
			0.75, 1, 2.5, 5, 10, 30,
		},
		Name: "request_duration_seconds",
		Help: "Total duration of back-office API requests",
	})

	return &Manager{
		CounterLogins:         counterLogins,
		CounterAPIRequests:    counterAPIRequests,
		CounterSessionExpired: counterSessionExpired,
		CounterUnauthorized:   counterUnauthorized,
		GaugeSessionActive:    gaugeSessionActive,
		HistRequestDuration:   histReqDuration,
	}
}
