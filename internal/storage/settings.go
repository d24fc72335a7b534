package storage

import (
	"sync"
	"sync/atomic"

	"binance-market-sentry/pkg/types"
)

// Settings 运行期共享配置：阈值 + 运行开关
// 指令通道写入，扫描任务和跟踪监控每轮读取一次快照
type Settings struct {
	thresholds types.Thresholds
	mutex      sync.RWMutex
	running    atomic.Bool
}

// NewSettings 创建运行期配置
func NewSettings(thresholds types.Thresholds, running bool) *Settings {
	s := &Settings{thresholds: thresholds}
	s.running.Store(running)
	return s
}

// Thresholds 获取阈值快照
func (s *Settings) Thresholds() types.Thresholds {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.thresholds
}

// SetRSI 同时设置15m和1h的RSI阈值
func (s *Settings) SetRSI(value float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.thresholds.RSI15m = value
	s.thresholds.RSI1h = value
}

// SetRSI15m 设置15m RSI阈值
func (s *Settings) SetRSI15m(value float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.thresholds.RSI15m = value
}

// SetRSI1h 设置1h RSI阈值
func (s *Settings) SetRSI1h(value float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.thresholds.RSI1h = value
}

// SetPriceDrop 设置价格跌幅阈值
func (s *Settings) SetPriceDrop(value float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.thresholds.PriceDrop = value
}

func (s *Settings) Start() { s.running.Store(true) }

func (s *Settings) Stop() { s.running.Store(false) }

// Running 扫描是否开启
func (s *Settings) Running() bool {
	return s.running.Load()
}
