package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewSinkRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSink(reg)

	s.RequestsTotal.Inc()
	s.RequestsRejected.WithLabelValues("bad_frame_length").Inc()
	s.ResponsesSent.Inc()
	s.BatchesClosed.Inc()
	s.BatchSize.Observe(12)

	require.Equal(t, float64(1), testutil.ToFloat64(s.RequestsTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(s.RequestsRejected.WithLabelValues("bad_frame_length")))
	require.Equal(t, float64(1), testutil.ToFloat64(s.ResponsesSent))
	require.Equal(t, float64(1), testutil.ToFloat64(s.BatchesClosed))
}

func TestNewSinkPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewSink(reg)
	require.Panics(t, func() { NewSink(reg) })
}
