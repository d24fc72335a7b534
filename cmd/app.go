package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"binance-market-sentry/internal/analyzer"
	"binance-market-sentry/internal/control"
	"binance-market-sentry/internal/database"
	"binance-market-sentry/internal/fetcher"
	"binance-market-sentry/internal/metrics"
	"binance-market-sentry/internal/monitor"
	"binance-market-sentry/internal/notifier"
	"binance-market-sentry/internal/scheduler"
	"binance-market-sentry/internal/storage"
	"binance-market-sentry/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	supervisor    *monitor.Supervisor
	recorder      *storage.SignalRecorder
	metricsServer *metrics.Server
	closers       []io.Closer
}

// NewApp 创建应用程序实例
func NewApp(config *types.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 组装并启动全部模块，返回的错误均为启动期致命错误
func (app *App) Start() error {
	cfg := app.config
	zap.L().Info("🚀 Binance Market Sentry 启动中...")

	marketData := fetcher.NewBinanceFetcher(cfg.Binance, cfg.Network)

	// 交易对列表只在启动时获取一次
	symbols, err := marketData.ListSymbols(app.ctx, cfg.Binance.QuoteAsset)
	if err != nil {
		return fmt.Errorf("获取交易对列表失败: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("%w: 没有以 %s 结尾的交易对", types.ErrEmptyUniverse, cfg.Binance.QuoteAsset)
	}
	zap.L().Info("📋 交易对列表已加载", zap.Int("count", len(symbols)), zap.String("quote", cfg.Binance.QuoteAsset))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	telegram, sink, err := app.buildNotifier()
	if err != nil {
		return err
	}
	signalLog := app.buildSignalLog()
	app.recorder = storage.NewSignalRecorder(signalLog, 24*time.Hour, m.IncSignalLogError)

	policy, err := analyzer.NewPolicy(cfg.Strategy.Policy, cfg.Strategy.RSIDirection)
	if err != nil {
		return err
	}
	engine := analyzer.NewAnalysisEngine(marketData, cfg.Strategy, cfg.Binance.KlineLimit)

	controlEnabled := cfg.Control.Enabled && telegram != nil
	running := initialRunning(cfg.Strategy.AutoStart, controlEnabled)
	settings := storage.NewSettings(types.Thresholds{
		RSI15m:    cfg.Strategy.RSI15mThreshold,
		RSI1h:     cfg.Strategy.RSI1hThreshold,
		PriceDrop: cfg.Strategy.PriceDropThreshold,
	}, running)

	opts := []scheduler.Option{
		scheduler.WithSignalRecorder(app.recorder),
		scheduler.WithMetrics(m),
	}

	var tracker storage.SignalTracker
	switch cfg.Strategy.Mode {
	case types.ModeOneShot:
		tracker = storage.NewOneShotTracker()
		app.supervisor = monitor.NewSupervisor(engine, settings, sink, monitor.Config{
			Interval:  cfg.FollowUp.Interval,
			Duration:  cfg.FollowUp.Duration,
			MaxActive: cfg.FollowUp.MaxActive,
			Direction: cfg.Strategy.RSIDirection,
		}, monitor.WithSignalRecorder(app.recorder), monitor.WithMetrics(m))
		opts = append(opts, scheduler.WithSpawner(app.supervisor))
	default:
		tracker = storage.NewDebounceTracker(cfg.Strategy.Confirmations)
	}

	taskScheduler := scheduler.NewScheduler(engine, policy, tracker, settings, sink, symbols, scheduler.Config{
		Interval:  cfg.Scan.Interval,
		Workers:   cfg.Scan.Workers,
		Direction: cfg.Strategy.RSIDirection,
	}, opts...)

	if cfg.Metrics.Addr != "" {
		app.metricsServer = metrics.NewServer(cfg.Metrics.Addr, reg, healthCheck(settings.Running, signalLog))
		app.metricsServer.Start()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		taskScheduler.Start(app.ctx)
	}()

	if controlEnabled {
		controller := control.NewController(settings, sink, cfg.Strategy.RSIDirection, cfg.Control.RestartPause, m)
		listener := control.NewListener(telegram, controller)
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			listener.Run(app.ctx)
		}()
	}

	zap.L().Info("✅ Binance Market Sentry 已启动",
		zap.String("mode", cfg.Strategy.Mode),
		zap.String("policy", policy.Name()),
		zap.Bool("running", running),
		zap.Bool("control", controlEnabled))
	return nil
}

// initialRunning 默认等待 ▶ 开始指令，没有指令通道时无法手动启动，强制开启
func initialRunning(autoStart, controlEnabled bool) bool {
	return autoStart || !controlEnabled
}

var errPaused = errors.New("paused")

// healthCheck 扫描暂停或信号日志后端不可用时 /healthz 返回 503
func healthCheck(running func() bool, log storage.SignalLog) func() error {
	hc, _ := log.(storage.HealthChecker)
	return func() error {
		if !running() {
			return errPaused
		}
		if hc != nil {
			if err := hc.Health(); err != nil {
				return fmt.Errorf("signal log unhealthy: %w", err)
			}
		}
		return nil
	}
}

// buildNotifier 组合通知渠道：Telegram + 钉钉 > PushPlus > 控制台
func (app *App) buildNotifier() (*notifier.TelegramNotifier, notifier.Interface, error) {
	cfg := app.config
	var sinks []notifier.Interface

	var telegram *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn, err := notifier.NewTelegramNotifier(cfg.Telegram, cfg.Network)
		if err != nil {
			return nil, nil, fmt.Errorf("初始化Telegram失败: %w", err)
		}
		telegram = tn
		sinks = append(sinks, tn)
	}

	if cfg.DingTalk.WebhookURL != "" {
		sinks = append(sinks, notifier.NewDingTalkNotifier(cfg.DingTalk.WebhookURL, cfg.DingTalk.Secret))
	} else if cfg.PushPlus.UserToken != "" {
		sinks = append(sinks, notifier.NewPushPlusNotifier(cfg.PushPlus.UserToken, cfg.PushPlus.To))
	}

	// 一个渠道都没有时 NewMultiNotifier 返回控制台
	return telegram, notifier.NewMultiNotifier(sinks...), nil
}

// buildSignalLog 信号日志尽力而为，连接失败只告警
func (app *App) buildSignalLog() storage.SignalLog {
	cfg := app.config
	var logs storage.MultiSignalLog

	if cfg.Redis.URL != "" {
		redisLog, err := storage.NewRedisSignalLog(app.ctx, cfg.Redis)
		if err != nil {
			zap.L().Warn("⚠️ Redis连接失败，信号不会写入Redis", zap.Error(err))
		} else {
			logs = append(logs, redisLog)
			app.closers = append(app.closers, redisLog)
		}
	}

	if cfg.Database.Driver != "" {
		db, err := database.NewManager(cfg.Database)
		if err != nil {
			zap.L().Warn("⚠️ 数据库初始化失败，信号不会写入数据库", zap.Error(err))
		} else {
			logs = append(logs, db)
			app.closers = append(app.closers, db)
		}
	}

	if len(logs) == 0 {
		zap.L().Info("📝 未配置信号日志")
		return nil
	}
	return logs
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		if app.supervisor != nil {
			if err := app.supervisor.Shutdown(ctx); err != nil {
				zap.L().Warn("⚠️ 跟踪监控未能全部退出", zap.Error(err))
			}
		}
		app.recorder.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ Binance Market Sentry 已安全关闭")
	case <-ctx.Done():
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	if app.metricsServer != nil {
		if err := app.metricsServer.Stop(ctx); err != nil {
			zap.L().Warn("⚠️ 指标服务关闭失败", zap.Error(err))
		}
	}
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			zap.L().Warn("⚠️ 关闭连接失败", zap.Error(err))
		}
	}
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
