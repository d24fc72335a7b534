package analyzer

import (
	"context"
	"fmt"
	"math"
	"testing"

	"binance-market-sentry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*types.KLine, error) {
	args := m.Called(ctx, symbol, interval, limit)
	klines, _ := args.Get(0).([]*types.KLine)
	return klines, args.Error(1)
}

func flatKlines(n int, price, volume float64) []*types.KLine {
	klines := make([]*types.KLine, n)
	for i := range klines {
		klines[i] = &types.KLine{Open: price, Close: price, Volume: volume}
	}
	return klines
}

func testStrategy() types.StrategyConfig {
	return types.StrategyConfig{
		RSIWindow: 14,
		Lookback: types.LookbackConfig{
			Price15m: 15,
			Price30m: 2,
			Price1h:  1,
			Price4h:  1,
			Volume1h: 2,
			Volume4h: 2,
		},
	}
}

func TestAnalysisEngine_Snapshot(t *testing.T) {
	k15m := flatKlines(20, 100, 10)
	k15m[19].Close = 95

	k1h := flatKlines(20, 100, 10)
	k1h[19].Close = 99
	k1h[19].Volume = 5

	k4h := flatKlines(20, 100, 10)
	k4h[19].Close = 98
	k4h[19].Volume = 0

	market := new(MockMarketData)
	market.On("GetKlines", mock.Anything, "BTCUSDT", types.Interval15m, 20).Return(k15m, nil)
	market.On("GetKlines", mock.Anything, "BTCUSDT", types.Interval1h, 20).Return(k1h, nil)
	market.On("GetKlines", mock.Anything, "BTCUSDT", types.Interval4h, 20).Return(k4h, nil)

	ae := NewAnalysisEngine(market, testStrategy(), 20)
	snap, err := ae.Snapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, -5.0, snap.Price15m)
	assert.Equal(t, -5.0, snap.Price30m)
	assert.Equal(t, -1.0, snap.Price1h)
	assert.Equal(t, -2.0, snap.Price4h)
	require.NotNil(t, snap.Volume1h)
	assert.Equal(t, -50.0, *snap.Volume1h)
	require.NotNil(t, snap.Volume4h)
	assert.Equal(t, -100.0, *snap.Volume4h)
	assert.Equal(t, 0.0, snap.RSI15m)
	assert.Equal(t, 0.0, snap.RSI1h)

	market.AssertExpectations(t)
}

func TestAnalysisEngine_SnapshotFetchError(t *testing.T) {
	market := new(MockMarketData)
	market.On("GetKlines", mock.Anything, "FOOUSDT", types.Interval15m, 20).Return(flatKlines(20, 1, 1), nil)
	market.On("GetKlines", mock.Anything, "FOOUSDT", types.Interval1h, 20).
		Return(nil, fmt.Errorf("%w: timeout", types.ErrFetch))

	ae := NewAnalysisEngine(market, testStrategy(), 20)
	_, err := ae.Snapshot(context.Background(), "FOOUSDT")
	assert.ErrorIs(t, err, types.ErrFetch)
	market.AssertNotCalled(t, "GetKlines", mock.Anything, "FOOUSDT", types.Interval4h, 20)
}

func TestAnalysisEngine_ComputeInsufficientData(t *testing.T) {
	ae := NewAnalysisEngine(nil, testStrategy(), 20)

	_, err := ae.Compute(flatKlines(10, 100, 1), flatKlines(20, 100, 1), flatKlines(20, 100, 1))
	assert.ErrorIs(t, err, types.ErrInsufficientData)

	// RSI需要 window+1 根K线
	strategy := testStrategy()
	strategy.Lookback.Price15m = 2
	ae = NewAnalysisEngine(nil, strategy, 20)
	_, err = ae.Compute(flatKlines(14, 100, 1), flatKlines(20, 100, 1), flatKlines(20, 100, 1))
	assert.ErrorIs(t, err, types.ErrInsufficientData)

	_, err = ae.Compute(flatKlines(15, 100, 1), flatKlines(20, 100, 1), flatKlines(20, 100, 1))
	assert.NoError(t, err)
}

func TestAnalysisEngine_ComputeZeroVolumeBase(t *testing.T) {
	k1h := flatKlines(20, 100, 10)
	k1h[18].Volume = 0

	ae := NewAnalysisEngine(nil, testStrategy(), 20)
	snap, err := ae.Compute(flatKlines(20, 100, 1), k1h, flatKlines(20, 100, 1))
	require.NoError(t, err)
	assert.Nil(t, snap.Volume1h)
	require.NotNil(t, snap.Volume4h)
	assert.Equal(t, 100.0, snap.RSI15m)
}

func TestAnalysisEngine_ComputeRSIBestEffortForPriceDrop(t *testing.T) {
	strategy := testStrategy()
	strategy.Policy = types.PolicyPriceDrop
	ae := NewAnalysisEngine(nil, strategy, 20)

	// 1h只有10根K线，价格指标够用但RSI不够
	snap, err := ae.Compute(flatKlines(20, 100, 1), flatKlines(10, 100, 1), flatKlines(20, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.RSI15m)
	assert.True(t, math.IsNaN(snap.RSI1h))

	strategy.Policy = types.PolicyRSIGated
	ae = NewAnalysisEngine(nil, strategy, 20)
	_, err = ae.Compute(flatKlines(20, 100, 1), flatKlines(10, 100, 1), flatKlines(20, 100, 1))
	assert.ErrorIs(t, err, types.ErrInsufficientData)
}
