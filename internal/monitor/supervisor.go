package monitor

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

// Config 跟踪监控配置
type Config struct {
	Interval  time.Duration
	Duration  time.Duration
	MaxActive int
	Direction string // 仅用于推送展示
}

// Supervisor 管理全部跟踪监控：同一交易对同时只有一个，总数不超过 MaxActive，关闭时取消并等待
type Supervisor struct {
	snapshots Snapshotter
	settings  ThresholdSource
	sink      notifier.Interface
	config    Config
	clock     Clock
	recorder  *storage.SignalRecorder
	metrics   *metrics.Metrics
	onDone    func(symbol string, outcome Outcome)

	ctx    context.Context
	cancel context.CancelFunc
	active map[string]context.CancelFunc
	closed bool
	mutex  sync.Mutex
	wg     sync.WaitGroup
}

// Option 可选配置
type Option func(*Supervisor)

func WithClock(clock Clock) Option {
	return func(s *Supervisor) { s.clock = clock }
}

// WithSignalRecorder 触发时写入信号日志
func WithSignalRecorder(recorder *storage.SignalRecorder) Option {
	return func(s *Supervisor) { s.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithOutcomeHook 每个监控结束时回调
func WithOutcomeHook(fn func(symbol string, outcome Outcome)) Option {
	return func(s *Supervisor) { s.onDone = fn }
}

// NewSupervisor 创建跟踪监控管理器
func NewSupervisor(snapshots Snapshotter, settings ThresholdSource, sink notifier.Interface, config Config, opts ...Option) *Supervisor {
	if config.MaxActive <= 0 {
		config.MaxActive = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		snapshots: snapshots,
		settings:  settings,
		sink:      sink,
		config:    config,
		clock:     RealClock(),
		ctx:       ctx,
		cancel:    cancel,
		active:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn 为交易对启动跟踪监控，不阻塞
// 已有同名监控、达到上限或已关闭时返回 false
func (s *Supervisor) Spawn(symbol string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return false
	}
	if _, exists := s.active[symbol]; exists {
		return false
	}
	if len(s.active) >= s.config.MaxActive {
		zap.L().Warn("⚠️ 跟踪监控数量已达上限，跳过", zap.String("symbol", symbol), zap.Int("max_active", s.config.MaxActive))
		return false
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.active[symbol] = cancel
	s.metrics.SetActiveFollowUps(len(s.active))

	m := &FollowUpMonitor{
		symbol:    symbol,
		snapshots: s.snapshots,
		settings:  s.settings,
		sink:      s.sink,
		rule:      analyzer.FollowUpRule{},
		clock:     s.clock,
		interval:  s.config.Interval,
		duration:  s.config.Duration,
		direction: s.config.Direction,
		onFire:    s.fired,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcome := m.Run(ctx)
		s.finish(symbol, outcome)
	}()

	zap.L().Info("👀 启动跟踪监控", zap.String("symbol", symbol), zap.Duration("duration", s.config.Duration))
	return true
}

func (s *Supervisor) fired(alert types.SignalAlert, sendErr error) {
	s.metrics.IncSignal(string(types.SourceFollowUp))
	if sendErr != nil {
		s.metrics.IncDeliveryFailure()
	}
	s.recorder.Record(types.SignalRecord{
		Symbol:     alert.Symbol,
		Source:     alert.Source,
		SignalTime: alert.AlertTime,
	})
}

func (s *Supervisor) finish(symbol string, outcome Outcome) {
	s.mutex.Lock()
	if cancel, ok := s.active[symbol]; ok {
		cancel()
		delete(s.active, symbol)
	}
	s.metrics.SetActiveFollowUps(len(s.active))
	s.mutex.Unlock()

	s.metrics.IncFollowUpOutcome(outcome.String())
	if s.onDone != nil {
		s.onDone(symbol, outcome)
	}
}

// Active 正在运行的监控数量
func (s *Supervisor) Active() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.active)
}

// Shutdown 取消全部监控并等待退出，ctx 到期时返回其错误
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
