package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckoutMetrics is safe to use through a nil pointer; every method is then
// a no-op.
type CheckoutMetrics struct {
	ChannelRequests *prometheus.CounterVec
	ChannelLatency  *prometheus.HistogramVec
	Fallthroughs    *prometheus.CounterVec
	PhaseOutcomes   *prometheus.CounterVec
	Mints           *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		ChannelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "channel_requests_total",
			Help:      "Gateway invocations per transport channel and outcome.",
		}, []string{"channel", "operation", "outcome"}),
		ChannelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout",
			Name:      "channel_request_duration_ms",
			Help:      "Gateway invocation latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"channel"}),
		Fallthroughs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "channel_fallthrough_total",
			Help:      "Direct invocations that fell through to the proxy.",
		}, []string{"reason"}),
		PhaseOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "phase_outcomes_total",
			Help:      "Checkout phase results by error class.",
		}, []string{"phase", "outcome"}),
		Mints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "token_mints_total",
			Help:      "Checkout token mint attempts.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.ChannelRequests, m.ChannelLatency, m.Fallthroughs, m.PhaseOutcomes, m.Mints)
	return m
}

func (m *CheckoutMetrics) ObserveChannel(channel, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChannelRequests.WithLabelValues(channel, operation, outcome).Inc()
	m.ChannelLatency.WithLabelValues(channel).Observe(float64(elapsed.Milliseconds()))
}

func (m *CheckoutMetrics) Fallthrough(reason string) {
	if m == nil {
		return
	}
	m.Fallthroughs.WithLabelValues(reason).Inc()
}

func (m *CheckoutMetrics) Phase(phase, outcome string) {
	if m == nil {
		return
	}
	m.PhaseOutcomes.WithLabelValues(phase, outcome).Inc()
}

func (m *CheckoutMetrics) Mint(result string) {
	if m == nil {
		return
	}
	m.Mints.WithLabelValues(result).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
