package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"binance-market-sentry/pkg/types"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramNotifier Telegram机器人：推送消息，同时作为指令通道的数据源
type TelegramNotifier struct {
	bot         *tgbotapi.BotAPI
	chatID      int64
	pollTimeout time.Duration
}

// NewTelegramNotifier 创建Telegram通知器，会调用一次getMe校验token
func NewTelegramNotifier(cfg types.TelegramConfig, networkConfig types.NetworkConfig) (*TelegramNotifier, error) {
	return newTelegramNotifier(cfg, networkConfig, tgbotapi.APIEndpoint)
}

func newTelegramNotifier(cfg types.TelegramConfig, networkConfig types.NetworkConfig, endpoint string) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("%w: telegram.bot_token / telegram.chat_id", types.ErrMissingCredentials)
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 25 * time.Second
	}

	// 长轮询需要比HTTP超时更短
	timeout := networkConfig.Timeout
	if timeout < pollTimeout+10*time.Second {
		timeout = pollTimeout + 10*time.Second
	}

	transport := &http.Transport{}
	if networkConfig.Proxy != "" {
		proxyURL, err := url.Parse(networkConfig.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, &http.Client{Timeout: timeout, Transport: transport})
	if err != nil {
		return nil, fmt.Errorf("初始化Telegram机器人失败: %w", err)
	}
	zap.L().Info("✅ 已配置Telegram通知服务", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", cfg.ChatID))

	return &TelegramNotifier{
		bot:         bot,
		chatID:      cfg.ChatID,
		pollTimeout: pollTimeout,
	}, nil
}

// Send 发送文本消息，ChatID为0时发往默认会话
func (tn *TelegramNotifier) Send(_ context.Context, msg types.Message) error {
	chatID := msg.ChatID
	if chatID == 0 {
		chatID = tn.chatID
	}

	out := tgbotapi.NewMessage(chatID, textOrFallback(msg.Text))
	out.DisableWebPagePreview = true
	if len(msg.Keyboard) > 0 {
		out.ReplyMarkup = toInlineKeyboard(msg.Keyboard)
	}

	if _, err := tn.bot.Send(out); err != nil {
		return deliveryError("telegram", err)
	}
	return nil
}

// PollUpdates 长轮询获取 offset 之后的更新，按钮回调会立即应答
func (tn *TelegramNotifier) PollUpdates(ctx context.Context, offset int) ([]types.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := tn.bot.GetUpdates(tgbotapi.UpdateConfig{
		Offset:  offset,
		Timeout: int(tn.pollTimeout / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: telegram getUpdates: %v", types.ErrFetch, err)
	}

	updates := make([]types.Update, 0, len(raw))
	for _, u := range raw {
		update, ok := convertUpdate(u)
		if !ok {
			// 不关心的更新类型也需要推进游标
			updates = append(updates, types.Update{ID: u.UpdateID})
			continue
		}
		if update.CallbackID != "" {
			if _, err := tn.bot.Request(tgbotapi.NewCallback(update.CallbackID, "")); err != nil {
				zap.L().Warn("⚠️ 应答按钮回调失败", zap.Error(err))
			}
		}
		updates = append(updates, update)
	}
	return updates, nil
}

func convertUpdate(u tgbotapi.Update) (types.Update, bool) {
	switch {
	case u.CallbackQuery != nil:
		update := types.Update{
			ID:         u.UpdateID,
			Callback:   u.CallbackQuery.Data,
			CallbackID: u.CallbackQuery.ID,
		}
		if u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil {
			update.ChatID = u.CallbackQuery.Message.Chat.ID
		} else if u.CallbackQuery.From != nil {
			update.ChatID = u.CallbackQuery.From.ID
		}
		return update, true
	case u.Message != nil && u.Message.Chat != nil:
		return types.Update{
			ID:     u.UpdateID,
			ChatID: u.Message.Chat.ID,
			Text:   u.Message.Text,
		}, true
	}
	return types.Update{}, false
}

func toInlineKeyboard(kb types.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
