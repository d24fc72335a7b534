package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveScan(2 * time.Second)
	m.IncEvaluation("match")
	m.IncEvaluation("match")
	m.IncEvaluation("error")
	m.IncSignal("scan")
	m.SetTrackedSymbols(12)
	m.SetActiveFollowUps(3)
	m.IncFollowUpOutcome("expired")
	m.IncCommand("set_rsi")
	m.IncDeliveryFailure()
	m.IncSignalLogError()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanTicks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsFired.WithLabelValues("scan")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.TrackedSymbols))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveFollowUps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FollowUpOutcomes.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("set_rsi")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalLogErrors))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScan(time.Second)
		m.IncEvaluation("miss")
		m.IncSignal("scan")
		m.IncDeliveryFailure()
		m.SetTrackedSymbols(1)
		m.SetActiveFollowUps(1)
		m.IncFollowUpOutcome("fired")
		m.IncCommand("start")
		m.IncSignalLogError()
	})
}

func TestServer_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.IncSignal("follow_up")

	var paused atomic.Bool
	srv := httptest.NewServer(NewServer(":0", reg, func() error {
		if paused.Load() {
			return errors.New("paused")
		}
		return nil
	}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `sentry_signals_fired_total{source="follow_up"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	paused.Store(true)
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "paused", string(body))
}
