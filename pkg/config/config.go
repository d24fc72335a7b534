package config

import (
	"errors"
	"strings"
	"time"

	"binance-market-sentry/pkg/types"
	"github.com/spf13/viper"
)

// Load 加载配置
// file 不为空时直接读取该文件，否则依次尝试 config.local.yaml、config.yaml
func Load(file string) (*types.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取环境变量，telegram.bot_token -> TELEGRAM_BOT_TOKEN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 优先尝试读取本地配置文件
		v.SetConfigName("config.local")
		if err := v.ReadInConfig(); err != nil {
			// 如果本地配置文件不存在，尝试读取默认配置文件
			v.SetConfigName("config")
			if err := v.ReadInConfig(); err != nil {
				var configFileNotFoundError viper.ConfigFileNotFoundError
				if !errors.As(err, &configFileNotFoundError) {
					return nil, err
				}
			}
		}
	}

	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// 跟踪间隔未配置时沿用扫描间隔
	if config.FollowUp.Interval <= 0 {
		config.FollowUp.Interval = config.Scan.Interval
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "logs/sentry.log")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("binance.api_key", "")
	v.SetDefault("binance.api_secret", "")
	v.SetDefault("binance.base_url", "")
	v.SetDefault("binance.quote_asset", "USDT")
	v.SetDefault("binance.kline_limit", 100)
	v.SetDefault("binance.exclude_bases", []string{})

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.poll_timeout", 25*time.Second)

	v.SetDefault("dingtalk.webhook_url", "")
	v.SetDefault("dingtalk.secret", "")
	v.SetDefault("pushplus.user_token", "")
	v.SetDefault("pushplus.to", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.retention", 7*24*time.Hour)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "root")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "market_sentry")
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 100)
	v.SetDefault("database.sqlite.path", "signals.db")

	v.SetDefault("strategy.mode", types.ModeDebounce)
	v.SetDefault("strategy.policy", types.PolicyRSIGated)
	v.SetDefault("strategy.rsi_direction", types.DirectionBelow)
	v.SetDefault("strategy.confirmations", 3)
	v.SetDefault("strategy.rsi_window", 14)
	v.SetDefault("strategy.rsi_15m_threshold", 50.0)
	v.SetDefault("strategy.rsi_1h_threshold", 50.0)
	v.SetDefault("strategy.price_drop_threshold", 0.0)
	v.SetDefault("strategy.auto_start", false)
	v.SetDefault("strategy.lookback.price_15m", 15)
	v.SetDefault("strategy.lookback.price_30m", 2)
	v.SetDefault("strategy.lookback.price_1h", 1)
	v.SetDefault("strategy.lookback.price_4h", 1)
	v.SetDefault("strategy.lookback.volume_1h", 2)
	v.SetDefault("strategy.lookback.volume_4h", 2)

	v.SetDefault("scan.interval", 20*time.Second)
	v.SetDefault("scan.workers", 4)

	v.SetDefault("follow_up.interval", 0)
	v.SetDefault("follow_up.duration", 2*time.Hour)
	v.SetDefault("follow_up.max_active", 100)

	v.SetDefault("control.enabled", true)
	v.SetDefault("control.restart_pause", time.Second)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("network.proxy", "")
	v.SetDefault("network.timeout", 30*time.Second)
}
