package control

import (
	"fmt"
	"strings"

	"binance-market-sentry/pkg/types"
	"github.com/shopspring/decimal"
)

// Kind 指令类型
type Kind string

const (
	KindSetRSI       Kind = "set_rsi"
	KindSetPriceDrop Kind = "set_price_drop"
	KindStart        Kind = "start"
	KindRestart      Kind = "restart"
	KindStop         Kind = "stop"
	KindStatus       Kind = "status"
	KindMenu         Kind = "menu"
	KindUnknown      Kind = "unknown"
)

// RSI阈值作用的周期
const (
	TargetAll = "all"
	Target15m = "15m"
	Target1h  = "1h"
)

// Command 解码后的控制指令
type Command struct {
	Kind   Kind
	Target string  // 仅 KindSetRSI 使用
	Value  float64 // KindSetRSI / KindSetPriceDrop 的数值
}

var (
	rsiPrefixes = map[string]string{
		"rsi15m_": Target15m,
		"rsi1h_":  Target1h,
		"rsi_":    TargetAll,
	}

	textCommands = map[string]Kind{
		"/settings": KindStatus,
		"/status":   KindStatus,
		"/menu":     KindMenu,
		"/start":    KindMenu,
		"/stop":     KindStop,
	}
)

// Parse 解码一条更新，按钮回调优先
func Parse(u types.Update) (Command, error) {
	if u.IsCallback() {
		return ParseCallback(u.Callback)
	}
	return ParseText(u.Text)
}

// ParseCallback 解码按钮回调数据
// rsi_60 / rsi15m_45 / rsi1h_55 / price_drop_1.0 / start / restart / stop / status
func ParseCallback(data string) (Command, error) {
	data = strings.TrimSpace(data)

	switch data {
	case "start":
		return Command{Kind: KindStart}, nil
	case "restart":
		return Command{Kind: KindRestart}, nil
	case "stop":
		return Command{Kind: KindStop}, nil
	case "status":
		return Command{Kind: KindStatus}, nil
	}

	if raw, ok := strings.CutPrefix(data, "price_drop_"); ok {
		value, err := parseValue(raw, 0, 100)
		if err != nil {
			return unknown(data, err)
		}
		return Command{Kind: KindSetPriceDrop, Value: value}, nil
	}

	for prefix, target := range rsiPrefixes {
		raw, ok := strings.CutPrefix(data, prefix)
		if !ok {
			continue
		}
		value, err := parseValue(raw, 0, 100)
		if err != nil {
			return unknown(data, err)
		}
		return Command{Kind: KindSetRSI, Target: target, Value: value}, nil
	}

	return unknown(data, nil)
}

// ParseText 解码文本指令，支持 /status@BotName 形式
func ParseText(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return unknown(text, nil)
	}

	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	if kind, ok := textCommands[name]; ok {
		return Command{Kind: kind}, nil
	}
	return unknown(text, nil)
}

// parseValue 解析阈值，超出 [min, max] 视为无效
func parseValue(raw string, min, max float64) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if d.LessThan(decimal.NewFromFloat(min)) || d.GreaterThan(decimal.NewFromFloat(max)) {
		return 0, fmt.Errorf("数值 %s 超出范围 [%v, %v]", raw, min, max)
	}
	return d.InexactFloat64(), nil
}

func unknown(input string, cause error) (Command, error) {
	if cause != nil {
		return Command{Kind: KindUnknown}, fmt.Errorf("%w: %q: %v", types.ErrInvalidCommand, input, cause)
	}
	return Command{Kind: KindUnknown}, fmt.Errorf("%w: %q", types.ErrInvalidCommand, input)
}
