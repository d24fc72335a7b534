package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
)

// UnknownMessage 待发送文本为空时的兜底内容
const UnknownMessage = "❓ 未知消息"

// Interface 通知接口
// 投递失败返回包装了 types.ErrDelivery 的错误，调用方只记录日志不重试
type Interface interface {
	Send(ctx context.Context, msg types.Message) error
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	// 使用utf8.RuneCountInString计算实际显示字符数，而不是字节数
	runeCount := utf8.RuneCountInString(content)
	padding := totalWidth - runeCount - 4 // 4是边框字符数
	if padding < 0 {
		padding = 0
	}
	return padding
}

// textOrFallback 空消息替换为兜底文本
func textOrFallback(text string) string {
	if strings.TrimSpace(text) == "" {
		return UnknownMessage
	}
	return text
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct {
	print func(a ...any)
}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{print: func(a ...any) { fmt.Println(a...) }}
}

func (cn *ConsoleNotifier) Send(_ context.Context, msg types.Message) error {
	cn.print(cn.render(msg))
	return nil
}

// render 生成带边框的控制台输出
func (cn *ConsoleNotifier) render(msg types.Message) string {
	const width = 60
	var sb strings.Builder

	sb.WriteString("\n╔" + strings.Repeat("═", width) + "╗\n")
	for _, line := range strings.Split(textOrFallback(msg.Text), "\n") {
		sb.WriteString(fmt.Sprintf("║ %s%s ║\n", line, strings.Repeat(" ", safePadding(line, width+2))))
	}

	// 控制台无法交互，按钮只展示回调数据
	for _, row := range msg.Keyboard {
		labels := make([]string, 0, len(row))
		for _, btn := range row {
			labels = append(labels, fmt.Sprintf("[%s → %s]", btn.Text, btn.Data))
		}
		line := strings.Join(labels, " ")
		sb.WriteString(fmt.Sprintf("║ %s%s ║\n", line, strings.Repeat(" ", safePadding(line, width+2))))
	}
	sb.WriteString("╚" + strings.Repeat("═", width) + "╝")
	return sb.String()
}

// MultiNotifier 同时推送到多个渠道，单个渠道失败不影响其余渠道
type MultiNotifier struct {
	sinks []Interface
}

// NewMultiNotifier 组合多个通知渠道，只有一个时直接返回该渠道
func NewMultiNotifier(sinks ...Interface) Interface {
	filtered := make([]Interface, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	switch len(filtered) {
	case 0:
		return NewConsoleNotifier()
	case 1:
		return filtered[0]
	}
	return &MultiNotifier{sinks: filtered}
}

func (mn *MultiNotifier) Send(ctx context.Context, msg types.Message) error {
	var errs []error
	for _, s := range mn.sinks {
		if err := s.Send(ctx, msg); err != nil {
			zap.L().Warn("⚠️ 通知渠道发送失败", zap.String("sink", fmt.Sprintf("%T", s)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliveryError 包装投递错误
func deliveryError(channel string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrDelivery, channel, err)
}
