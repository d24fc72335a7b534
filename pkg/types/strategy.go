package types

import "time"

// SignalSource 信号来源
type SignalSource string

const (
	SourceScan     SignalSource = "scan"
	SourceFollowUp SignalSource = "follow_up"
)

// SignalAlert 触发后用于推送的信号数据
type SignalAlert struct {
	Symbol     string            `json:"symbol"`
	Source     SignalSource      `json:"source"`
	Snapshot   IndicatorSnapshot `json:"snapshot"`
	Thresholds Thresholds        `json:"thresholds"`
	RSIGated   bool              `json:"rsi_gated"` // 是否展示RSI阈值
	Direction  string            `json:"direction"` // below / above
	AlertTime  time.Time         `json:"alert_time"`
}

// SignalRecord 信号日志记录
type SignalRecord struct {
	Symbol     string       `json:"symbol"`
	Source     SignalSource `json:"source"`
	SignalTime time.Time    `json:"signal_time"`
}

// Button 内联按钮
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"` // 回调数据
}

// Keyboard 内联键盘，按行组织
type Keyboard [][]Button

// Message 待发送的消息
type Message struct {
	ChatID   int64    `json:"chat_id"` // 0 表示默认会话
	Text     string   `json:"text"`
	Keyboard Keyboard `json:"keyboard,omitempty"`
}

// Update 指令通道收到的一条更新：文本消息或按钮回调
type Update struct {
	ID         int    `json:"id"`
	ChatID     int64  `json:"chat_id"`
	Text       string `json:"text,omitempty"`
	Callback   string `json:"callback,omitempty"`
	CallbackID string `json:"callback_id,omitempty"`
}

// IsCallback 是否为按钮回调
func (u Update) IsCallback() bool {
	return u.CallbackID != "" || u.Callback != ""
}
