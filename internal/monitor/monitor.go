package monitor

import (
	"context"
	"time"

	"binance-market-sentry/internal/analyzer"
	"binance-market-sentry/internal/notifier"
	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
)

// Outcome 跟踪监控的结束方式
type Outcome int

const (
	OutcomeFired Outcome = iota
	OutcomeExpired
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFired:
		return "fired"
	case OutcomeExpired:
		return "expired"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Snapshotter 指标快照来源
type Snapshotter interface {
	Snapshot(ctx context.Context, symbol string) (*types.IndicatorSnapshot, error)
}

// ThresholdSource 阈值来源，每轮读取一次
type ThresholdSource interface {
	Thresholds() types.Thresholds
}

// FollowUpMonitor 单个交易对的限时跟踪监控
// 在 duration 内每隔 interval 判定一次更严格的条件，命中后推送一次即结束，超时则静默结束
type FollowUpMonitor struct {
	symbol    string
	snapshots Snapshotter
	settings  ThresholdSource
	sink      notifier.Interface
	rule      analyzer.Policy
	clock     Clock
	interval  time.Duration
	duration  time.Duration
	direction string
	onFire    func(alert types.SignalAlert, sendErr error)
}

// Run 阻塞运行直到命中、超时或 ctx 取消
func (m *FollowUpMonitor) Run(ctx context.Context) Outcome {
	deadline := m.clock.Now().Add(m.duration)
	logger := zap.L().With(zap.String("symbol", m.symbol))
	logger.Debug("👀 跟踪监控开始", zap.Time("deadline", deadline))

	for {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}
		if !m.clock.Now().Before(deadline) {
			logger.Info("⌛ 跟踪监控到期，未触发")
			return OutcomeExpired
		}

		if m.evaluate(ctx, logger) {
			return OutcomeFired
		}

		select {
		case <-ctx.Done():
			return OutcomeCancelled
		case <-m.clock.After(m.interval):
		}
	}
}

// evaluate 判定一次，命中时推送并返回 true；拉取或计算失败视为未命中
func (m *FollowUpMonitor) evaluate(ctx context.Context, logger *zap.Logger) bool {
	snap, err := m.snapshots.Snapshot(ctx, m.symbol)
	if err != nil {
		logger.Debug("跟踪监控获取指标失败", zap.Error(err))
		return false
	}

	th := m.settings.Thresholds()
	if !m.rule.Match(*snap, th) {
		return false
	}

	alert := types.SignalAlert{
		Symbol:     m.symbol,
		Source:     types.SourceFollowUp,
		Snapshot:   *snap,
		Thresholds: th,
		RSIGated:   m.rule.GatesRSI(),
		Direction:  m.direction,
		AlertTime:  m.clock.Now(),
	}
	logger.Info("🔔 跟踪监控触发", zap.Float64("price_15m", snap.Price15m), zap.Float64("price_4h", snap.Price4h))

	err = m.sink.Send(ctx, types.Message{Text: notifier.FormatAlert(alert)})
	if err != nil {
		logger.Error("❌ 跟踪监控推送失败", zap.Error(err))
	}
	if m.onFire != nil {
		m.onFire(alert, err)
	}
	return true
}
