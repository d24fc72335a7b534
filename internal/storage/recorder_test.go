package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"binance-market-sentry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySignalLog struct {
	mu      sync.Mutex
	records []types.SignalRecord
	err     error
}

func (m *memorySignalLog) Record(_ context.Context, rec types.SignalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySignalLog) CountSince(_ context.Context, symbol string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, r := range m.records {
		if r.Symbol == symbol && !r.SignalTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func TestSignalRecorder_Record(t *testing.T) {
	log := &memorySignalLog{}
	sr := NewSignalRecorder(log, time.Hour, nil)

	now := time.Now()
	sr.Record(types.SignalRecord{Symbol: "BTCUSDT", Source: types.SourceScan, SignalTime: now})
	sr.Record(types.SignalRecord{Symbol: "ETHUSDT", Source: types.SourceFollowUp, SignalTime: now})
	sr.Wait()

	n, err := log.CountSince(context.Background(), "BTCUSDT", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSignalRecorder_Error(t *testing.T) {
	var failures atomic.Int32
	sr := NewSignalRecorder(&memorySignalLog{err: errors.New("db down")}, 0, func() { failures.Add(1) })

	sr.Record(types.SignalRecord{Symbol: "BTCUSDT", SignalTime: time.Now()})
	sr.Wait()
	assert.Equal(t, int32(1), failures.Load())
	assert.Equal(t, 24*time.Hour, sr.window)
}

func TestSignalRecorder_NilLog(t *testing.T) {
	sr := NewSignalRecorder(nil, time.Hour, nil)
	assert.NotPanics(t, func() {
		sr.Record(types.SignalRecord{Symbol: "X"})
		sr.Wait()
	})

	var nilRecorder *SignalRecorder
	assert.NotPanics(t, func() {
		nilRecorder.Record(types.SignalRecord{Symbol: "X"})
		nilRecorder.Wait()
	})
}

func TestMultiSignalLog(t *testing.T) {
	broken := &memorySignalLog{err: errors.New("redis down")}
	ok := &memorySignalLog{}
	ml := MultiSignalLog{broken, ok}

	now := time.Now()
	err := ml.Record(context.Background(), types.SignalRecord{Symbol: "BTCUSDT", SignalTime: now})
	assert.Error(t, err)
	assert.Len(t, ok.records, 1)

	n, err := ml.CountSince(context.Background(), "BTCUSDT", now.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = MultiSignalLog{broken}.CountSince(context.Background(), "BTCUSDT", now)
	assert.Error(t, err)
}

type repeatingLog struct {
	memorySignalLog
	asked atomic.Int32
}

func (r *repeatingLog) HasRepeated(_ context.Context, symbol string, n int) (bool, error) {
	r.asked.Add(1)
	count, _ := r.CountSince(context.Background(), symbol, time.Time{})
	return count >= int64(n), nil
}

func TestMultiSignalLog_HasRepeated(t *testing.T) {
	repeating := &repeatingLog{}
	ml := MultiSignalLog{&memorySignalLog{}, repeating}

	sr := NewSignalRecorder(ml, time.Hour, nil)
	for i := 0; i < 3; i++ {
		sr.Record(types.SignalRecord{Symbol: "BTCUSDT", Source: types.SourceScan, SignalTime: time.Now()})
	}
	sr.Wait()
	assert.Equal(t, int32(3), repeating.asked.Load())

	repeated, err := ml.HasRepeated(context.Background(), "BTCUSDT", 3)
	require.NoError(t, err)
	assert.True(t, repeated)

	repeated, err = MultiSignalLog{&memorySignalLog{}}.HasRepeated(context.Background(), "BTCUSDT", 3)
	require.NoError(t, err)
	assert.False(t, repeated)
}

type healthLog struct {
	memorySignalLog
	health error
}

func (h *healthLog) Health() error { return h.health }

func TestMultiSignalLog_Health(t *testing.T) {
	down := errors.New("connection refused")

	assert.NoError(t, MultiSignalLog{&memorySignalLog{}, &healthLog{}}.Health())
	assert.ErrorIs(t, MultiSignalLog{&healthLog{}, &healthLog{health: down}}.Health(), down)
	assert.NoError(t, MultiSignalLog{}.Health())
}
