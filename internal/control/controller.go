package control

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"binance-market-sentry/internal/metrics"
	"binance-market-sentry/internal/notifier"
	"binance-market-sentry/internal/storage"
	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
)

// Controller 执行控制指令并回复确认消息
type Controller struct {
	settings  *storage.Settings
	sink      notifier.Interface
	direction string
	pause     time.Duration // restart 时 stop 与 start 之间的间隔
	metrics   *metrics.Metrics
}

// NewController 创建指令处理器
func NewController(settings *storage.Settings, sink notifier.Interface, direction string, pause time.Duration, m *metrics.Metrics) *Controller {
	return &Controller{
		settings:  settings,
		sink:      sink,
		direction: direction,
		pause:     pause,
		metrics:   m,
	}
}

// Handle 解码并执行一条更新，确认消息发回来源会话
// 无法识别的指令不修改任何状态，只回复兜底文本
func (c *Controller) Handle(ctx context.Context, u types.Update) error {
	cmd, err := Parse(u)
	if err != nil {
		zap.L().Debug("无法识别的指令", zap.Int64("chat_id", u.ChatID), zap.Error(err))
	}
	c.metrics.IncCommand(string(cmd.Kind))

	reply, err := c.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	reply.ChatID = u.ChatID
	return c.sink.Send(ctx, reply)
}

// Execute 执行指令并返回待发送的回复
func (c *Controller) Execute(ctx context.Context, cmd Command) (types.Message, error) {
	cmp := "<"
	if c.direction == types.DirectionAbove {
		cmp = ">"
	}

	switch cmd.Kind {
	case KindSetRSI:
		label := "RSI"
		switch cmd.Target {
		case Target15m:
			c.settings.SetRSI15m(cmd.Value)
			label = "15m RSI"
		case Target1h:
			c.settings.SetRSI1h(cmd.Value)
			label = "1h RSI"
		default:
			c.settings.SetRSI(cmd.Value)
		}
		zap.L().Info("⚙️ RSI阈值已更新", zap.String("target", cmd.Target), zap.Float64("value", cmd.Value))
		return types.Message{Text: fmt.Sprintf("✅ %s阈值已设置为 %s %s", label, cmp, formatValue(cmd.Value))}, nil

	case KindSetPriceDrop:
		c.settings.SetPriceDrop(cmd.Value)
		zap.L().Info("⚙️ 价格跌幅阈值已更新", zap.Float64("value", cmd.Value))
		return types.Message{Text: fmt.Sprintf("✅ 价格跌幅阈值已设置为 > %s%%", formatValue(cmd.Value))}, nil

	case KindStart:
		c.settings.Start()
		zap.L().Info("▶️ 监控已启动")
		return types.Message{Text: "▶ 监控已启动"}, nil

	case KindStop:
		c.settings.Stop()
		zap.L().Info("⏸️ 监控已暂停")
		return types.Message{Text: "⏸ 监控已暂停"}, nil

	case KindRestart:
		c.settings.Stop()
		select {
		case <-ctx.Done():
			return types.Message{}, ctx.Err()
		case <-time.After(c.pause):
		}
		c.settings.Start()
		zap.L().Info("🔁 监控已重启")
		return types.Message{Text: "🔁 监控已重启"}, nil

	case KindStatus:
		return types.Message{Text: notifier.FormatStatus(c.settings.Thresholds(), c.direction, c.settings.Running())}, nil

	case KindMenu:
		return c.Welcome(), nil
	}

	return types.Message{Text: notifier.UnknownMessage}, nil
}

// Welcome 欢迎语 + 主键盘
func (c *Controller) Welcome() types.Message {
	return types.Message{Text: notifier.WelcomeText, Keyboard: notifier.MainKeyboard(c.direction)}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
