package analyzer

import (
	"fmt"

	"binance-market-sentry/pkg/types"
)

// Policy 阈值判定策略，纯函数
type Policy interface {
	Name() string
	Match(snap types.IndicatorSnapshot, th types.Thresholds) bool
	// GatesRSI 推送内容中是否附带RSI阈值
	GatesRSI() bool
}

// NewPolicy 根据配置创建判定策略
func NewPolicy(name, direction string) (Policy, error) {
	switch name {
	case types.PolicyPriceDrop:
		return PriceDrop{}, nil
	case types.PolicyRSIGated:
		switch direction {
		case types.DirectionBelow, types.DirectionAbove:
			return RSIGated{Direction: direction}, nil
		}
		return nil, fmt.Errorf("未知的RSI方向: %q", direction)
	default:
		return nil, fmt.Errorf("未知的判定策略: %q", name)
	}
}

// PriceDrop 反转前兆：短周期跌幅超过阈值，长周期下跌且成交量萎缩
type PriceDrop struct{}

func (PriceDrop) Name() string { return types.PolicyPriceDrop }

func (PriceDrop) GatesRSI() bool { return false }

func (PriceDrop) Match(snap types.IndicatorSnapshot, th types.Thresholds) bool {
	return snap.Price15m < -th.PriceDrop &&
		snap.Price30m < -th.PriceDrop &&
		snap.Price1h < 0 &&
		snap.Price4h < 0 &&
		negative(snap.Volume1h) &&
		negative(snap.Volume4h)
}

// RSIGated 在 PriceDrop 基础上要求两个周期的RSI同向越过阈值
// below 为超卖，above 为动量
type RSIGated struct {
	Direction string
}

func (p RSIGated) Name() string { return types.PolicyRSIGated }

func (RSIGated) GatesRSI() bool { return true }

func (p RSIGated) Match(snap types.IndicatorSnapshot, th types.Thresholds) bool {
	if !(PriceDrop{}).Match(snap, th) {
		return false
	}
	return p.cross(snap.RSI15m, th.RSI15m) && p.cross(snap.RSI1h, th.RSI1h)
}

func (p RSIGated) cross(value, threshold float64) bool {
	if p.Direction == types.DirectionAbove {
		return value > threshold
	}
	return value < threshold
}

// FollowUpRule 跟踪监控使用的更严格条件：四个周期全部跌幅超过阈值，且两个周期成交量萎缩
type FollowUpRule struct{}

func (FollowUpRule) Name() string { return "follow_up" }

func (FollowUpRule) GatesRSI() bool { return false }

func (FollowUpRule) Match(snap types.IndicatorSnapshot, th types.Thresholds) bool {
	return snap.Price15m < -th.PriceDrop &&
		snap.Price30m < -th.PriceDrop &&
		snap.Price1h < -th.PriceDrop &&
		snap.Price4h < -th.PriceDrop &&
		negative(snap.Volume1h) &&
		negative(snap.Volume4h)
}

// negative 成交量变化存在且为负
func negative(v *float64) bool {
	return v != nil && *v < 0
}
