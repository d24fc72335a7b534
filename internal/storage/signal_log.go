package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"binance-market-sentry/pkg/types"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const signalKeyPrefix = "sentry:signal:"

// RedisSignalLog 基于Redis Sorted Set的信号日志，以信号时间为分数
type RedisSignalLog struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisSignalLog 连接Redis，连接失败时返回错误由调用方降级
func NewRedisSignalLog(ctx context.Context, cfg types.RedisConfig) (*RedisSignalLog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}
	zap.L().Info("✅ Redis连接成功", zap.String("addr", cfg.URL))

	return newRedisSignalLog(client, cfg.Retention), nil
}

func newRedisSignalLog(client *redis.Client, retention time.Duration) *RedisSignalLog {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &RedisSignalLog{client: client, retention: retention}
}

// Record 追加一条信号记录，并清理保留期之外的旧数据
func (l *RedisSignalLog) Record(ctx context.Context, rec types.SignalRecord) error {
	key := signalKey(rec.Symbol)
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化信号记录失败: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(rec.SignalTime.UnixMilli()),
		Member: value,
	})
	pipe.Expire(ctx, key, l.retention)
	cutoff := rec.SignalTime.Add(-l.retention).UnixMilli()
	pipe.ZRemRangeByScore(ctx, key, "0", "("+strconv.FormatInt(cutoff, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Redis存储失败 %s: %w", rec.Symbol, err)
	}
	return nil
}

// CountSince 统计某个交易对 since 之后的信号次数
func (l *RedisSignalLog) CountSince(ctx context.Context, symbol string, since time.Time) (int64, error) {
	return l.client.ZCount(ctx, signalKey(symbol), strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
}

// HasRepeated 保留期内最近的信号是否已有 n 条
func (l *RedisSignalLog) HasRepeated(ctx context.Context, symbol string, n int) (bool, error) {
	if n < 1 {
		return false, nil
	}
	recent, err := l.Recent(ctx, symbol, int64(n))
	if err != nil {
		return false, err
	}
	return len(recent) == n, nil
}

// Recent 获取某个交易对最近的 n 条信号记录，按时间倒序
func (l *RedisSignalLog) Recent(ctx context.Context, symbol string, n int64) ([]types.SignalRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	values, err := l.client.ZRevRange(ctx, signalKey(symbol), 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]types.SignalRecord, 0, len(values))
	for _, v := range values {
		var rec types.SignalRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			zap.L().Warn("⚠️ 解析信号记录失败", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Health 检查Redis连接
func (l *RedisSignalLog) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.client.Ping(ctx).Err()
}

// Close 关闭连接
func (l *RedisSignalLog) Close() error {
	return l.client.Close()
}

func signalKey(symbol string) string {
	return signalKeyPrefix + symbol
}
