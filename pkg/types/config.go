package types

import (
	"fmt"
	"strings"
	"time"
)

// Config 主配置结构
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	DingTalk DingTalkConfig `mapstructure:"dingtalk"`
	PushPlus PushPlusConfig `mapstructure:"pushplus"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Scan     ScanConfig     `mapstructure:"scan"`
	FollowUp FollowUpConfig `mapstructure:"follow_up"`
	Control  ControlConfig  `mapstructure:"control"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Network  NetworkConfig  `mapstructure:"network"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出路径名，为空时只输出到控制台
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// BinanceConfig 币安配置
type BinanceConfig struct {
	APIKey       string   `mapstructure:"api_key"`
	APISecret    string   `mapstructure:"api_secret"`
	BaseURL      string   `mapstructure:"base_url"`      // 为空时使用官方地址
	QuoteAsset   string   `mapstructure:"quote_asset"`   // 计价币种后缀，默认USDT
	KlineLimit   int      `mapstructure:"kline_limit"`   // 每次获取的K线数量
	ExcludeBases []string `mapstructure:"exclude_bases"` // 下架/杠杆代币等需要排除的基础币种
}

// TelegramConfig Telegram机器人配置
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	ChatID      int64         `mapstructure:"chat_id"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"` // getUpdates长轮询超时
}

// DingTalkConfig 钉钉配置
type DingTalkConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
}

// PushPlusConfig PushPlus配置
type PushPlusConfig struct {
	UserToken string `mapstructure:"user_token"`
	To        string `mapstructure:"to"` // 好友令牌，多人用逗号分隔
}

// RedisConfig Redis配置
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Retention time.Duration `mapstructure:"retention"` // 信号记录保留时长
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string       `mapstructure:"driver"` // mysql / sqlite，为空时不启用
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// StrategyConfig 信号策略配置
type StrategyConfig struct {
	Mode               string         `mapstructure:"mode"`          // debounce / oneshot
	Policy             string         `mapstructure:"policy"`        // rsi_gated / price_drop
	RSIDirection       string         `mapstructure:"rsi_direction"` // below / above
	Confirmations      int            `mapstructure:"confirmations"` // 连续确认次数
	RSIWindow          int            `mapstructure:"rsi_window"`
	RSI15mThreshold    float64        `mapstructure:"rsi_15m_threshold"`
	RSI1hThreshold     float64        `mapstructure:"rsi_1h_threshold"`
	PriceDropThreshold float64        `mapstructure:"price_drop_threshold"`
	AutoStart          bool           `mapstructure:"auto_start"`
	Lookback           LookbackConfig `mapstructure:"lookback"`
}

// LookbackConfig 各指标回看的K线根数
type LookbackConfig struct {
	Price15m int `mapstructure:"price_15m"` // 15m K线
	Price30m int `mapstructure:"price_30m"` // 15m K线
	Price1h  int `mapstructure:"price_1h"`  // 1h K线
	Price4h  int `mapstructure:"price_4h"`  // 4h K线
	Volume1h int `mapstructure:"volume_1h"` // 1h K线
	Volume4h int `mapstructure:"volume_4h"` // 4h K线
}

// ScanConfig 扫描调度配置
type ScanConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers"`
}

// FollowUpConfig 跟踪监控配置
type FollowUpConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Duration  time.Duration `mapstructure:"duration"`
	MaxActive int           `mapstructure:"max_active"`
}

// ControlConfig 指令通道配置
type ControlConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	RestartPause time.Duration `mapstructure:"restart_pause"`
}

// MetricsConfig 监控指标配置
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // 为空时不暴露 /metrics
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}

const (
	ModeDebounce = "debounce"
	ModeOneShot  = "oneshot"

	PolicyRSIGated  = "rsi_gated"
	PolicyPriceDrop = "price_drop"

	DirectionBelow = "below"
	DirectionAbove = "above"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Validate 校验配置，启动阶段失败即退出
func (c *Config) Validate() error {
	switch c.Strategy.Mode {
	case ModeDebounce, ModeOneShot:
	default:
		return fmt.Errorf("strategy.mode 取值无效: %q", c.Strategy.Mode)
	}
	switch c.Strategy.Policy {
	case PolicyRSIGated, PolicyPriceDrop:
	default:
		return fmt.Errorf("strategy.policy 取值无效: %q", c.Strategy.Policy)
	}
	switch c.Strategy.RSIDirection {
	case DirectionBelow, DirectionAbove:
	default:
		return fmt.Errorf("strategy.rsi_direction 取值无效: %q", c.Strategy.RSIDirection)
	}
	if c.Strategy.Confirmations < 1 {
		return fmt.Errorf("strategy.confirmations 必须大于0")
	}
	if c.Strategy.RSIWindow < 1 {
		return fmt.Errorf("strategy.rsi_window 必须大于0")
	}
	if c.Scan.Interval <= 0 || c.FollowUp.Interval <= 0 || c.FollowUp.Duration <= 0 {
		return fmt.Errorf("scan.interval / follow_up.interval / follow_up.duration 必须大于0")
	}
	if strings.TrimSpace(c.Binance.QuoteAsset) == "" {
		return fmt.Errorf("binance.quote_asset 不能为空")
	}
	if c.Binance.KlineLimit < c.Strategy.RSIWindow+1 {
		return fmt.Errorf("binance.kline_limit 至少需要 %d", c.Strategy.RSIWindow+1)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("%w: 已配置telegram.bot_token但缺少telegram.chat_id", ErrMissingCredentials)
	}
	switch c.Database.Driver {
	case "", DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("database.driver 取值无效: %q", c.Database.Driver)
	}
	return nil
}
