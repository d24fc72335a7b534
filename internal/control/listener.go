package control

import (
	"context"
	"time"

	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
)

// CommandSource 指令来源，offset 之前的更新视为已确认
type CommandSource interface {
	PollUpdates(ctx context.Context, offset int) ([]types.Update, error)
}

// Listener 长轮询指令通道并交给 Controller 处理
type Listener struct {
	source     CommandSource
	controller *Controller
	retryDelay time.Duration
	offset     int
}

// NewListener 创建指令监听器
func NewListener(source CommandSource, controller *Controller) *Listener {
	return &Listener{
		source:     source,
		controller: controller,
		retryDelay: 5 * time.Second,
	}
}

// Run 阻塞运行直到 ctx 取消，启动时先向默认会话发送欢迎键盘
func (l *Listener) Run(ctx context.Context) {
	if err := l.controller.sink.Send(ctx, l.controller.Welcome()); err != nil {
		zap.L().Warn("⚠️ 欢迎消息发送失败", zap.Error(err))
	}
	zap.L().Info("🎧 指令监听已启动")

	for {
		updates, err := l.source.PollUpdates(ctx, l.offset)
		if err != nil {
			if ctx.Err() != nil {
				zap.L().Info("📴 指令监听已停止")
				return
			}
			zap.L().Warn("⚠️ 拉取指令失败，稍后重试", zap.Error(err), zap.Duration("retry", l.retryDelay))
			select {
			case <-ctx.Done():
				zap.L().Info("📴 指令监听已停止")
				return
			case <-time.After(l.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			l.offset = u.ID + 1
			if u.ChatID == 0 {
				continue
			}
			if err := l.controller.Handle(ctx, u); err != nil {
				zap.L().Warn("⚠️ 指令处理失败", zap.Int64("chat_id", u.ChatID), zap.Error(err))
			}
		}

		if ctx.Err() != nil {
			zap.L().Info("📴 指令监听已停止")
			return
		}
	}
}

// Offset 下一次拉取的起始位置
func (l *Listener) Offset() int {
	return l.offset
}
