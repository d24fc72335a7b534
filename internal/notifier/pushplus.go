package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
)

const pushPlusEndpoint = "http://www.pushplus.plus/send"

// PushPlusNotifier PushPlus通知器
type PushPlusNotifier struct {
	userToken  string
	to         string // 好友令牌，多人用逗号分隔
	endpoint   string
	httpClient *http.Client
	fallback   Interface
}

type PushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
	To       string `json:"to,omitempty"` // 好友令牌，给朋友发送通知
}

type PushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

// NewPushPlusNotifier 创建PushPlus通知器，未配置token时返回控制台通知器
func NewPushPlusNotifier(userToken, to string) Interface {
	if userToken == "" {
		zap.L().Info("🔧 未配置PushPlus User Token，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	if to != "" {
		zap.L().Info("✅ 已配置PushPlus通知服务（包含好友推送）", zap.String("to", to))
	} else {
		zap.L().Info("✅ 已配置PushPlus通知服务")
	}

	return &PushPlusNotifier{
		userToken: userToken,
		to:        to,
		endpoint:  pushPlusEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		fallback: NewConsoleNotifier(),
	}
}

// Send 发送HTML消息，失败时降级为控制台输出
func (ppn *PushPlusNotifier) Send(ctx context.Context, msg types.Message) error {
	text := textOrFallback(msg.Text)
	title, _, _ := strings.Cut(text, "\n")

	if err := ppn.sendPushPlusMessage(ctx, title, buildHTMLContent(text)); err != nil {
		zap.L().Error("❌ PushPlus发送失败，降级为控制台输出", zap.Error(err))
		_ = ppn.fallback.Send(ctx, msg)
		return deliveryError("pushplus", err)
	}

	zap.L().Debug("✅ PushPlus通知已发送", zap.String("title", title))
	return nil
}

// buildHTMLContent 纯文本包装为带边框的HTML
func buildHTMLContent(text string) string {
	body := strings.ReplaceAll(html.EscapeString(text), "\n", "<br/>")
	return fmt.Sprintf(`
<div style="border: 2px solid #FF4444; border-radius: 10px; padding: 20px; margin: 10px; background-color: #f9f9f9;">
    <div style="background-color: white; padding: 15px; border-radius: 8px; margin: 10px 0; font-size: 15px; line-height: 1.6;">%s</div>
</div>
`, body)
}

func (ppn *PushPlusNotifier) sendPushPlusMessage(ctx context.Context, title, content string) error {
	// 构建请求数据
	reqData := PushPlusRequest{
		Token:    ppn.userToken,
		Title:    title,
		Content:  content,
		Template: "html",
		To:       ppn.to,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ppn.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ppn.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	// 解析响应
	var pushResp PushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}

	// 检查返回结果
	if pushResp.Code != 200 {
		return fmt.Errorf("PushPlus API错误: %s", pushResp.Msg)
	}

	return nil
}
