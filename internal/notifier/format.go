package notifier

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"binance-market-sentry/pkg/types"
	"github.com/samber/lo"
)

// 常见计价币种，用于拆分交易对生成交易链接
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "TUSD", "BTC", "ETH", "BNB", "TRY", "EUR"}

// buildTradingURL 根据交易对生成币安现货交易链接
func buildTradingURL(symbol string) string {
	quote, ok := lo.Find(quoteAssets, func(q string) bool {
		return len(symbol) > len(q) && strings.HasSuffix(symbol, q)
	})
	if !ok {
		return fmt.Sprintf("https://www.binance.com/zh-CN/trade/%s?type=spot", symbol)
	}
	return fmt.Sprintf("https://www.binance.com/zh-CN/trade/%s_%s?type=spot", strings.TrimSuffix(symbol, quote), quote)
}

// comparator RSI比较方向的展示符号
func comparator(direction string) string {
	if direction == types.DirectionAbove {
		return ">"
	}
	return "<"
}

func formatVolume(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

// formatRSI K线不足算不出RSI时为 NaN
func formatRSI(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatAlert 生成信号推送文本
func FormatAlert(alert types.SignalAlert) string {
	s := alert.Snapshot
	th := alert.Thresholds
	cmp := comparator(alert.Direction)

	title := "🚨 信号触发"
	if alert.Source == types.SourceFollowUp {
		title = "🔔 跟踪监控信号"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", title, alert.Symbol)
	sb.WriteString("\n📉 价格变化:\n")
	fmt.Fprintf(&sb, "  • 15m: %.2f%%\n", s.Price15m)
	fmt.Fprintf(&sb, "  • 30m: %.2f%%\n", s.Price30m)
	fmt.Fprintf(&sb, "  • 1h: %.2f%%\n", s.Price1h)
	fmt.Fprintf(&sb, "  • 4h: %.2f%%\n", s.Price4h)
	sb.WriteString("\n📊 成交量变化:\n")
	fmt.Fprintf(&sb, "  • 1h: %s\n", formatVolume(s.Volume1h))
	fmt.Fprintf(&sb, "  • 4h: %s\n", formatVolume(s.Volume4h))
	sb.WriteString("\n📈 RSI:\n")
	if alert.RSIGated {
		fmt.Fprintf(&sb, "  • 15m: %s (阈值: %s%s)\n", formatRSI(s.RSI15m), cmp, formatNumber(th.RSI15m))
		fmt.Fprintf(&sb, "  • 1h: %s (阈值: %s%s)\n", formatRSI(s.RSI1h), cmp, formatNumber(th.RSI1h))
	} else {
		fmt.Fprintf(&sb, "  • 15m: %s\n", formatRSI(s.RSI15m))
		fmt.Fprintf(&sb, "  • 1h: %s\n", formatRSI(s.RSI1h))
	}
	fmt.Fprintf(&sb, "\n跌幅阈值: < -%s%%\n", formatNumber(th.PriceDrop))
	fmt.Fprintf(&sb, "🕐 %s\n", alert.AlertTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "🔗 %s", buildTradingURL(alert.Symbol))
	return sb.String()
}

// FormatStatus 生成当前阈值与运行状态
func FormatStatus(th types.Thresholds, direction string, running bool) string {
	cmp := comparator(direction)
	state := "⏸ 已暂停"
	if running {
		state = "▶ 运行中"
	}
	return fmt.Sprintf("📊 当前阈值\n• RSI 15m: %s %s\n• RSI 1h: %s %s\n• 价格跌幅: < -%s%%\n\n状态: %s",
		cmp, formatNumber(th.RSI15m),
		cmp, formatNumber(th.RSI1h),
		formatNumber(th.PriceDrop),
		state)
}

// WelcomeText 指令通道启动时发送的欢迎语
const WelcomeText = "👋 欢迎使用行情哨兵！请设置RSI和价格跌幅阈值，然后点击 ▶ 开始。"

// MainKeyboard 阈值设置与启停的内联键盘
func MainKeyboard(direction string) types.Keyboard {
	cmp := comparator(direction)
	rsiRow := lo.Map([]int{40, 50, 60, 70}, func(v int, _ int) types.Button {
		return types.Button{Text: fmt.Sprintf("RSI %s %d", cmp, v), Data: fmt.Sprintf("rsi_%d", v)}
	})
	return types.Keyboard{
		rsiRow,
		{
			{Text: "跌幅 > 0.5%", Data: "price_drop_0.5"},
			{Text: "跌幅 > 1%", Data: "price_drop_1.0"},
		},
		{
			{Text: "▶ 开始", Data: "start"},
			{Text: "🔁 重启", Data: "restart"},
			{Text: "⏸ 暂停", Data: "stop"},
			{Text: "📊 状态", Data: "status"},
		},
	}
}

// formatNumber 去掉多余的0，60 -> "60"，0.5 -> "0.5"
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
