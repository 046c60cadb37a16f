package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCheckoutMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.ObserveChannel("direct", "preview_quote", "ok", 20*time.Millisecond)
	m.Fallthrough("unauthorized")
	m.Fallthrough("unauthorized")
	m.Phase("quote", "ok")
	m.Mint("minted")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelRequests.WithLabelValues("direct", "preview_quote", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Fallthroughs.WithLabelValues("unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseOutcomes.WithLabelValues("quote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mints.WithLabelValues("minted")))
}

func TestCheckoutMetrics_NilSafe(t *testing.T) {
	var m *CheckoutMetrics

	assert.NotPanics(t, func() {
		m.ObserveChannel("proxy", "create_order", "error", time.Second)
		m.Fallthrough("network")
		m.Phase("order", "gateway_error")
		m.Mint("failed")
	})
}
