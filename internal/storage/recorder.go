package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
)

// SignalLog 只追加的信号日志，写入失败不影响信号判定
type SignalLog interface {
	Record(ctx context.Context, rec types.SignalRecord) error
	CountSince(ctx context.Context, symbol string, since time.Time) (int64, error)
}

// RepeatChecker 能判断交易对最近是否反复触发的信号日志
type RepeatChecker interface {
	HasRepeated(ctx context.Context, symbol string, n int) (bool, error)
}

// HealthChecker 能报告后端连接状态的信号日志
type HealthChecker interface {
	Health() error
}

// repeatThreshold 最近信号条数达到该值视为反复触发
const repeatThreshold = 3

// MultiSignalLog 同时写入多个信号日志
type MultiSignalLog []SignalLog

func (ml MultiSignalLog) Record(ctx context.Context, rec types.SignalRecord) error {
	var errs []error
	for _, l := range ml {
		if err := l.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CountSince 返回第一个成功的统计结果
func (ml MultiSignalLog) CountSince(ctx context.Context, symbol string, since time.Time) (int64, error) {
	var errs []error
	for _, l := range ml {
		n, err := l.CountSince(ctx, symbol, since)
		if err == nil {
			return n, nil
		}
		errs = append(errs, err)
	}
	return 0, errors.Join(errs...)
}

// HasRepeated 交给第一个支持该查询的日志
func (ml MultiSignalLog) HasRepeated(ctx context.Context, symbol string, n int) (bool, error) {
	for _, l := range ml {
		if rc, ok := l.(RepeatChecker); ok {
			return rc.HasRepeated(ctx, symbol, n)
		}
	}
	return false, nil
}

// Health 汇总所有支持健康检查的日志
func (ml MultiSignalLog) Health() error {
	var errs []error
	for _, l := range ml {
		if hc, ok := l.(HealthChecker); ok {
			if err := hc.Health(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// SignalRecorder 异步写入信号日志
type SignalRecorder struct {
	log     SignalLog
	window  time.Duration // 统计近期信号次数的时间窗口
	timeout time.Duration
	onError func()
	wg      sync.WaitGroup
}

// NewSignalRecorder 创建异步记录器，log 为空时 Record 为空操作
func NewSignalRecorder(log SignalLog, window time.Duration, onError func()) *SignalRecorder {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &SignalRecorder{
		log:     log,
		window:  window,
		timeout: 5 * time.Second,
		onError: onError,
	}
}

// Record 后台写入一条信号记录，并输出该交易对在时间窗口内的信号次数
func (sr *SignalRecorder) Record(rec types.SignalRecord) {
	if sr == nil || sr.log == nil {
		return
	}

	sr.wg.Add(1)
	go func() {
		defer sr.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sr.timeout)
		defer cancel()

		if err := sr.log.Record(ctx, rec); err != nil {
			zap.L().Warn("⚠️ 信号记录写入失败", zap.String("symbol", rec.Symbol), zap.Error(err))
			if sr.onError != nil {
				sr.onError()
			}
			return
		}

		count, err := sr.log.CountSince(ctx, rec.Symbol, rec.SignalTime.Add(-sr.window))
		if err != nil {
			zap.L().Debug("统计信号次数失败", zap.String("symbol", rec.Symbol), zap.Error(err))
			return
		}
		zap.L().Info("📝 信号已记录",
			zap.String("symbol", rec.Symbol),
			zap.String("source", string(rec.Source)),
			zap.Int64("recent_count", count),
			zap.Duration("window", sr.window))

		if rc, ok := sr.log.(RepeatChecker); ok {
			repeated, err := rc.HasRepeated(ctx, rec.Symbol, repeatThreshold)
			if err == nil && repeated {
				zap.L().Info("🔁 该交易对已多次触发信号", zap.String("symbol", rec.Symbol), zap.Int("times", repeatThreshold))
			}
		}
	}()
}

// Wait 等待所有写入完成
func (sr *SignalRecorder) Wait() {
	if sr == nil {
		return
	}
	sr.wg.Wait()
}
