package main

import (
	"log"

	"binance-market-sentry/pkg/config"
	"binance-market-sentry/pkg/logger"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "配置文件路径，默认依次查找 configs/config.local.yaml、configs/config.yaml")
	pflag.Parse()

	// 加载配置
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("加载配置失败: ", err)
	}

	// 初始化日志
	appLogger, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatal("初始化日志失败: ", err)
	}
	defer func() { _ = appLogger.Sync() }()

	app := NewApp(cfg)
	if err := app.Start(); err != nil {
		app.Stop()
		zap.L().Fatal("❌ 启动失败", zap.Error(err))
	}

	app.WaitForShutdown()
	app.Stop()
}
