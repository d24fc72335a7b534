package scheduler

import (
	"context"
	"sync"
	"time"

	"binance-market-sentry/internal/analyzer"
	"binance-market-sentry/internal/metrics"
	"binance-market-sentry/internal/notifier"
	"binance-market-sentry/internal/storage"
	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
)

// Snapshotter 指标快照来源
type Snapshotter interface {
	Snapshot(ctx context.Context, symbol string) (*types.IndicatorSnapshot, error)
}

// Spawner 一次性模式下触发后接管交易对的跟踪监控
type Spawner interface {
	Spawn(symbol string) bool
}

// Config 扫描配置
type Config struct {
	Interval  time.Duration
	Workers   int
	Direction string // 仅用于推送展示
}

// TickStats 单轮扫描统计
type TickStats struct {
	Evaluated int
	Matched   int
	Fired     int
	Failed    int
	Skipped   int
}

// Scheduler 调度器：固定间隔扫描全部交易对
type Scheduler struct {
	snapshots Snapshotter
	policy    analyzer.Policy
	tracker   storage.SignalTracker
	settings  *storage.Settings
	sink      notifier.Interface
	symbols   []string
	config    Config

	spawner  Spawner
	recorder *storage.SignalRecorder
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option 可选配置
type Option func(*Scheduler)

// WithSpawner 触发后启动跟踪监控
func WithSpawner(spawner Spawner) Option {
	return func(s *Scheduler) { s.spawner = spawner }
}

// WithSignalRecorder 触发时写入信号日志
func WithSignalRecorder(recorder *storage.SignalRecorder) Option {
	return func(s *Scheduler) { s.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(snapshots Snapshotter, policy analyzer.Policy, tracker storage.SignalTracker, settings *storage.Settings,
	sink notifier.Interface, symbols []string, config Config, opts ...Option) *Scheduler {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Interval <= 0 {
		config.Interval = 20 * time.Second
	}

	s := &Scheduler{
		snapshots: snapshots,
		policy:    policy,
		tracker:   tracker,
		settings:  settings,
		sink:      sink,
		symbols:   symbols,
		config:    config,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 阻塞运行扫描循环直到 ctx 取消，上一轮结束后才开始计时下一轮
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("🚀 调度器启动",
		zap.Int("symbols", len(s.symbols)),
		zap.Duration("interval", s.config.Interval),
		zap.Int("workers", s.config.Workers),
		zap.String("policy", s.policy.Name()))

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			zap.L().Info("📴 调度器已停止")
			return
		case <-time.After(s.config.Interval):
		}
	}
}

// RunOnce 执行一轮扫描，运行标志关闭时直接跳过
func (s *Scheduler) RunOnce(ctx context.Context) TickStats {
	var stats TickStats
	if !s.settings.Running() {
		zap.L().Debug("⏸️ 监控已暂停，跳过本轮扫描")
		return stats
	}

	start := s.now()
	jobs := make(chan string)
	var (
		mutex sync.Mutex
		wg    sync.WaitGroup
	)

	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				r := s.evaluate(ctx, symbol)
				mutex.Lock()
				stats.add(r)
				mutex.Unlock()
			}
		}()
	}

dispatch:
	for _, symbol := range s.symbols {
		if s.tracker.Suppressed(symbol) {
			stats.Skipped++
			continue
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- symbol:
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := s.now().Sub(start)
	s.metrics.ObserveScan(elapsed)
	s.metrics.SetTrackedSymbols(s.tracker.Len())

	zap.L().Info("📊 本轮扫描完成",
		zap.Int("evaluated", stats.Evaluated),
		zap.Int("matched", stats.Matched),
		zap.Int("fired", stats.Fired),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("tracked", s.tracker.Len()),
		zap.Duration("elapsed", elapsed))
	return stats
}

type result int

const (
	resultMiss result = iota
	resultMatch
	resultFired
	resultError
)

func (ts *TickStats) add(r result) {
	switch r {
	case resultError:
		ts.Failed++
		return
	case resultFired:
		ts.Fired++
		ts.Matched++
	case resultMatch:
		ts.Matched++
	}
	ts.Evaluated++
}

// evaluate 判定单个交易对，错误只记录不中断本轮
func (s *Scheduler) evaluate(ctx context.Context, symbol string) result {
	logger := zap.L().With(zap.String("symbol", symbol))

	snap, err := s.snapshots.Snapshot(ctx, symbol)
	if err != nil {
		logger.Warn("⚠️ 获取指标失败", zap.Error(err))
		s.metrics.IncEvaluation("error")
		return resultError
	}

	th := s.settings.Thresholds()
	match := s.policy.Match(*snap, th)
	tr := s.tracker.Observe(symbol, match)

	if !match {
		s.metrics.IncEvaluation("miss")
		return resultMiss
	}
	s.metrics.IncEvaluation("match")

	if tr.Count > 0 {
		logger.Info("📈 满足条件",
			zap.Int("count", tr.Count),
			zap.Float64("price_15m", snap.Price15m),
			zap.Float64("price_30m", snap.Price30m),
			zap.Float64("rsi_15m", snap.RSI15m),
			zap.Float64("rsi_1h", snap.RSI1h))
	}
	if !tr.Fired {
		return resultMatch
	}

	s.fire(ctx, symbol, *snap, th)
	return resultFired
}

func (s *Scheduler) fire(ctx context.Context, symbol string, snap types.IndicatorSnapshot, th types.Thresholds) {
	alert := types.SignalAlert{
		Symbol:     symbol,
		Source:     types.SourceScan,
		Snapshot:   snap,
		Thresholds: th,
		RSIGated:   s.policy.GatesRSI(),
		Direction:  s.config.Direction,
		AlertTime:  s.now(),
	}
	zap.L().Info("🚨 信号触发", zap.String("symbol", symbol), zap.String("policy", s.policy.Name()))

	s.metrics.IncSignal(string(types.SourceScan))
	if err := s.sink.Send(ctx, types.Message{Text: notifier.FormatAlert(alert)}); err != nil {
		zap.L().Error("❌ 信号推送失败", zap.String("symbol", symbol), zap.Error(err))
		s.metrics.IncDeliveryFailure()
	}

	s.recorder.Record(types.SignalRecord{
		Symbol:     symbol,
		Source:     types.SourceScan,
		SignalTime: alert.AlertTime,
	})

	if s.spawner != nil && !s.spawner.Spawn(symbol) {
		zap.L().Debug("跟踪监控未启动", zap.String("symbol", symbol))
	}
}
