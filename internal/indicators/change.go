package indicators

import (
	"fmt"

	"binance-market-sentry/pkg/types"
	"github.com/shopspring/decimal"
)

// Round2 保留两位小数，按浮点数的精确值做银行家舍入，2.675 -> 2.67，-0.125 -> -0.12
func Round2(v float64) float64 {
	return decimal.NewFromFloatWithExponent(v, -20).RoundBank(2).InexactFloat64()
}

// PriceChange 计算价格变化百分比
// 以倒数第 period 根K线的开盘价为基期，最新一根K线的收盘价为现值
func PriceChange(klines []*types.KLine, period int) (float64, error) {
	base, err := baseKLine(klines, period)
	if err != nil {
		return 0, err
	}
	if base.Open == 0 {
		return 0, fmt.Errorf("%w: 基期开盘价为0", types.ErrInsufficientData)
	}

	last := klines[len(klines)-1]
	return Round2((last.Close - base.Open) / base.Open * 100), nil
}

// VolumeChange 计算成交量变化百分比
// 基期成交量为0时没有可用的值，返回nil
func VolumeChange(klines []*types.KLine, period int) (*float64, error) {
	base, err := baseKLine(klines, period)
	if err != nil {
		return nil, err
	}
	if base.Volume == 0 {
		return nil, nil
	}

	last := klines[len(klines)-1]
	change := Round2((last.Volume - base.Volume) / base.Volume * 100)
	return &change, nil
}

// baseKLine 取倒数第 period 根K线
func baseKLine(klines []*types.KLine, period int) (*types.KLine, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: period=%d", types.ErrInsufficientData, period)
	}
	if len(klines) < period {
		return nil, fmt.Errorf("%w: 需要%d根K线，实际%d根", types.ErrInsufficientData, period, len(klines))
	}
	return klines[len(klines)-period], nil
}
