package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"binance-market-sentry/internal/metrics"
	"binance-market-sentry/internal/storage"
	"binance-market-sentry/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLog struct {
	mu      sync.Mutex
	records []types.SignalRecord
}

func (m *memoryLog) Record(_ context.Context, rec types.SignalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryLog) CountSince(_ context.Context, _ string, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func TestSupervisor_UniqueAndCapped(t *testing.T) {
	snaps := &scriptedSnapshots{steps: []step{{snap: missSnap()}}}

	outcomes := make(chan Outcome, 4)
	sup := NewSupervisor(snaps, staticThresholds{PriceDrop: 1}, &recordingSink{}, Config{
		Interval:  time.Hour,
		Duration:  24 * time.Hour,
		MaxActive: 2,
	}, WithOutcomeHook(func(_ string, o Outcome) { outcomes <- o }))

	assert.True(t, sup.Spawn("AUSDT"))
	assert.False(t, sup.Spawn("AUSDT"), "同一交易对只允许一个监控")
	assert.True(t, sup.Spawn("BUSDT"))
	assert.False(t, sup.Spawn("CUSDT"), "达到上限")
	assert.Equal(t, 2, sup.Active())
	assert.True(t, isActive(sup, "AUSDT"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))

	assert.Equal(t, OutcomeCancelled, <-outcomes)
	assert.Equal(t, OutcomeCancelled, <-outcomes)
	assert.Equal(t, 0, sup.Active())
	assert.False(t, sup.Spawn("DUSDT"), "关闭后不再接受新的监控")
}

func TestSupervisor_FireRecordsSignal(t *testing.T) {
	snaps := &scriptedSnapshots{steps: []step{{snap: missSnap()}, {snap: matchSnap()}}}
	sink := &recordingSink{}
	log := &memoryLog{}
	recorder := storage.NewSignalRecorder(log, time.Hour, nil)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	done := make(chan Outcome, 1)
	sup := NewSupervisor(snaps, staticThresholds{PriceDrop: 1}, sink, Config{
		Interval: 20 * time.Second,
		Duration: 2 * time.Hour,
	},
		WithClock(newFakeClock()),
		WithSignalRecorder(recorder),
		WithMetrics(m),
		WithOutcomeHook(func(_ string, o Outcome) { done <- o }),
	)

	require.True(t, sup.Spawn("BTCUSDT"))
	select {
	case o := <-done:
		assert.Equal(t, OutcomeFired, o)
	case <-time.After(5 * time.Second):
		t.Fatal("跟踪监控未结束")
	}
	recorder.Wait()

	assert.Equal(t, 1, sink.Len())
	require.Len(t, log.records, 1)
	assert.Equal(t, "BTCUSDT", log.records[0].Symbol)
	assert.Equal(t, types.SourceFollowUp, log.records[0].Source)
	assert.False(t, isActive(sup, "BTCUSDT"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsFired.WithLabelValues("follow_up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FollowUpOutcomes.WithLabelValues("fired")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveFollowUps))

	// 结束后可以再次为该交易对启动
	assert.True(t, sup.Spawn("BTCUSDT"))
	require.NoError(t, sup.Shutdown(context.Background()))
}

func isActive(s *Supervisor, symbol string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.active[symbol]
	return ok
}
