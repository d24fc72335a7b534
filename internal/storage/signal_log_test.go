package storage

import (
	"context"
	"testing"
	"time"

	"binance-market-sentry/pkg/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisLog(t *testing.T, retention time.Duration) (*RedisSignalLog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisSignalLog(client, retention), mr
}

func TestNewRedisSignalLog_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisSignalLog(ctx, types.RedisConfig{URL: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewRedisSignalLog_Health(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	l, err := NewRedisSignalLog(context.Background(), types.RedisConfig{URL: mr.Addr(), Retention: time.Hour})
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, time.Hour, l.retention)
	assert.NoError(t, l.Health())

	mr.Close()
	assert.Error(t, l.Health())
}

func TestRedisSignalLog_DefaultRetention(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	l := newRedisSignalLog(client, 0)
	assert.Equal(t, 7*24*time.Hour, l.retention)

	l = newRedisSignalLog(client, time.Hour)
	assert.Equal(t, time.Hour, l.retention)
}

func TestSignalKey(t *testing.T) {
	assert.Equal(t, "sentry:signal:BTCUSDT", signalKey("BTCUSDT"))
}

func TestRedisSignalLog_RecordTrimsBeyondRetention(t *testing.T) {
	l, mr := newMiniRedisLog(t, time.Hour)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	for _, at := range []time.Time{now.Add(-2 * time.Hour), now.Add(-30 * time.Minute), now} {
		require.NoError(t, l.Record(ctx, types.SignalRecord{Symbol: "BTCUSDT", Source: types.SourceScan, SignalTime: at}))
	}
	require.NoError(t, l.Record(ctx, types.SignalRecord{Symbol: "ETHUSDT", Source: types.SourceFollowUp, SignalTime: now}))

	// 两小时前的记录超出保留期，写入后续记录时被清理
	n, err := l.CountSince(ctx, "BTCUSDT", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = l.CountSince(ctx, "BTCUSDT", now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = l.CountSince(ctx, "ETHUSDT", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, time.Hour, mr.TTL(signalKey("BTCUSDT")))
}

func TestRedisSignalLog_RecentNewestFirst(t *testing.T) {
	l, _ := newMiniRedisLog(t, time.Hour)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	for i := 3; i >= 1; i-- {
		require.NoError(t, l.Record(ctx, types.SignalRecord{
			Symbol:     "SOLUSDT",
			Source:     types.SourceScan,
			SignalTime: now.Add(-time.Duration(i) * time.Minute),
		}))
	}

	records, err := l.Recent(ctx, "SOLUSDT", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].SignalTime.Equal(now.Add(-time.Minute)))
	assert.True(t, records[1].SignalTime.Equal(now.Add(-2*time.Minute)))
	assert.Equal(t, types.SourceScan, records[0].Source)

	records, err = l.Recent(ctx, "SOLUSDT", 10)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = l.Recent(ctx, "SOLUSDT", 0)
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestRedisSignalLog_HasRepeated(t *testing.T) {
	l, _ := newMiniRedisLog(t, time.Hour)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	repeated, err := l.HasRepeated(ctx, "BNBUSDT", 3)
	require.NoError(t, err)
	assert.False(t, repeated)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(ctx, types.SignalRecord{
			Symbol:     "BNBUSDT",
			Source:     types.SourceScan,
			SignalTime: now.Add(time.Duration(i) * time.Second),
		}))
		repeated, err = l.HasRepeated(ctx, "BNBUSDT", 3)
		require.NoError(t, err)
		assert.Equal(t, i == 2, repeated)
	}

	repeated, err = l.HasRepeated(ctx, "BNBUSDT", 0)
	require.NoError(t, err)
	assert.False(t, repeated)
}
