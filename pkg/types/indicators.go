package types

// IndicatorSnapshot 单个交易对某一时刻的指标快照，百分比均保留两位小数
type IndicatorSnapshot struct {
	Price15m float64  `json:"price_15m"`
	Price30m float64  `json:"price_30m"`
	Price1h  float64  `json:"price_1h"`
	Price4h  float64  `json:"price_4h"`
	Volume1h *float64 `json:"volume_1h"` // 基期成交量为0时为nil
	Volume4h *float64 `json:"volume_4h"`
	RSI15m   float64  `json:"rsi_15m"`
	RSI1h    float64  `json:"rsi_1h"`
}

// Thresholds 运行期可调的阈值
type Thresholds struct {
	RSI15m    float64 `json:"rsi_15m"`
	RSI1h     float64 `json:"rsi_1h"`
	PriceDrop float64 `json:"price_drop"` // 正数，表示跌幅需小于 -PriceDrop%
}
