package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics 哨兵运行指标，所有方法在 nil 上调用都是空操作
type Metrics struct {
	ScanTicks        prometheus.Counter
	ScanDuration     prometheus.Histogram
	Evaluations      *prometheus.CounterVec // result: match / miss / error
	SignalsFired     *prometheus.CounterVec // source: scan / follow_up
	DeliveryFailures prometheus.Counter
	TrackedSymbols   prometheus.Gauge
	ActiveFollowUps  prometheus.Gauge
	FollowUpOutcomes *prometheus.CounterVec // outcome: fired / expired / cancelled
	Commands         *prometheus.CounterVec // kind
	SignalLogErrors  prometheus.Counter
}

// NewMetrics 创建并注册全部指标，reg 为空时使用默认注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ScanTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_scan_ticks_total",
			Help: "Total scan passes executed",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentry_scan_duration_seconds",
			Help:    "Duration of one scan pass over the symbol universe",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_symbol_evaluations_total",
			Help: "Per-symbol evaluations by result",
		}, []string{"result"}),
		SignalsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_signals_fired_total",
			Help: "Signals fired by source",
		}, []string{"source"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_alert_delivery_failures_total",
			Help: "Alerts that could not be delivered",
		}),
		TrackedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentry_tracked_symbols",
			Help: "Symbols held in the signal state map",
		}),
		ActiveFollowUps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentry_active_followups",
			Help: "Follow-up monitors currently running",
		}),
		FollowUpOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_followup_outcomes_total",
			Help: "Finished follow-up monitors by outcome",
		}, []string{"outcome"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_commands_total",
			Help: "Control commands handled by kind",
		}, []string{"kind"}),
		SignalLogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_signal_log_errors_total",
			Help: "Failed writes to the signal log",
		}),
	}

	reg.MustRegister(
		m.ScanTicks,
		m.ScanDuration,
		m.Evaluations,
		m.SignalsFired,
		m.DeliveryFailures,
		m.TrackedSymbols,
		m.ActiveFollowUps,
		m.FollowUpOutcomes,
		m.Commands,
		m.SignalLogErrors,
	)
	return m
}

// ObserveScan 记录一次扫描
func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.ScanTicks.Inc()
	m.ScanDuration.Observe(d.Seconds())
}

// IncEvaluation 记录单个交易对的判定结果
func (m *Metrics) IncEvaluation(result string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSignal(source string) {
	if m == nil {
		return
	}
	m.SignalsFired.WithLabelValues(source).Inc()
}

func (m *Metrics) IncDeliveryFailure() {
	if m == nil {
		return
	}
	m.DeliveryFailures.Inc()
}

func (m *Metrics) SetTrackedSymbols(n int) {
	if m == nil {
		return
	}
	m.TrackedSymbols.Set(float64(n))
}

func (m *Metrics) SetActiveFollowUps(n int) {
	if m == nil {
		return
	}
	m.ActiveFollowUps.Set(float64(n))
}

func (m *Metrics) IncFollowUpOutcome(outcome string) {
	if m == nil {
		return
	}
	m.FollowUpOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCommand(kind string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncSignalLogError() {
	if m == nil {
		return
	}
	m.SignalLogErrors.Inc()
}

// Server 暴露 /metrics 和 /healthz
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer 创建指标服务，gatherer 为空时使用默认注册表
// health 返回非空错误时 /healthz 响应 503 并输出错误原因
func NewServer(addr string, gatherer prometheus.Gatherer, health func() error) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start 在后台启动HTTP服务
func (s *Server) Start() {
	go func() {
		zap.L().Info("📈 指标服务已启动", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("❌ 指标服务异常退出", zap.Error(err))
		}
	}()
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler 用于测试
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
