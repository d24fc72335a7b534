package analyzer

import (
	"context"
	"fmt"
	"math"

	"binance-market-sentry/internal/indicators"
	"binance-market-sentry/pkg/types"
)

// MarketData K线数据源
type MarketData interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*types.KLine, error)
}

// AnalysisEngine 指标分析引擎，负责拉取多周期K线并生成指标快照
type AnalysisEngine struct {
	market     MarketData
	lookback   types.LookbackConfig
	rsiWindow  int
	limit      int
	requireRSI bool // 为 false 时RSI只用于展示，算不出来记为 NaN
}

// NewAnalysisEngine 创建分析引擎
func NewAnalysisEngine(market MarketData, strategy types.StrategyConfig, limit int) *AnalysisEngine {
	return &AnalysisEngine{
		market:     market,
		lookback:   strategy.Lookback,
		rsiWindow:  strategy.RSIWindow,
		limit:      limit,
		requireRSI: strategy.Policy != types.PolicyPriceDrop,
	}
}

// Snapshot 计算单个交易对当前的指标快照
// 任一周期拉取失败或数据不足都会返回错误，调用方跳过该交易对即可
func (ae *AnalysisEngine) Snapshot(ctx context.Context, symbol string) (*types.IndicatorSnapshot, error) {
	k15m, err := ae.market.GetKlines(ctx, symbol, types.Interval15m, ae.limit)
	if err != nil {
		return nil, err
	}
	k1h, err := ae.market.GetKlines(ctx, symbol, types.Interval1h, ae.limit)
	if err != nil {
		return nil, err
	}
	k4h, err := ae.market.GetKlines(ctx, symbol, types.Interval4h, ae.limit)
	if err != nil {
		return nil, err
	}

	return ae.Compute(k15m, k1h, k4h)
}

// Compute 根据三个周期的K线计算指标快照
func (ae *AnalysisEngine) Compute(k15m, k1h, k4h []*types.KLine) (*types.IndicatorSnapshot, error) {
	var (
		snap types.IndicatorSnapshot
		err  error
	)

	if snap.Price15m, err = indicators.PriceChange(k15m, ae.lookback.Price15m); err != nil {
		return nil, fmt.Errorf("15m价格变化: %w", err)
	}
	if snap.Price30m, err = indicators.PriceChange(k15m, ae.lookback.Price30m); err != nil {
		return nil, fmt.Errorf("30m价格变化: %w", err)
	}
	if snap.Price1h, err = indicators.PriceChange(k1h, ae.lookback.Price1h); err != nil {
		return nil, fmt.Errorf("1h价格变化: %w", err)
	}
	if snap.Price4h, err = indicators.PriceChange(k4h, ae.lookback.Price4h); err != nil {
		return nil, fmt.Errorf("4h价格变化: %w", err)
	}
	if snap.Volume1h, err = indicators.VolumeChange(k1h, ae.lookback.Volume1h); err != nil {
		return nil, fmt.Errorf("1h成交量变化: %w", err)
	}
	if snap.Volume4h, err = indicators.VolumeChange(k4h, ae.lookback.Volume4h); err != nil {
		return nil, fmt.Errorf("4h成交量变化: %w", err)
	}
	if snap.RSI15m, err = ae.rsi(k15m); err != nil {
		return nil, fmt.Errorf("15m RSI: %w", err)
	}
	if snap.RSI1h, err = ae.rsi(k1h); err != nil {
		return nil, fmt.Errorf("1h RSI: %w", err)
	}

	return &snap, nil
}

func (ae *AnalysisEngine) rsi(klines []*types.KLine) (float64, error) {
	value, err := indicators.RSI(klines, ae.rsiWindow)
	if err != nil && !ae.requireRSI {
		return math.NaN(), nil
	}
	return value, err
}
