package storage

import (
	"sync"
)

// Transition 一次判定后的信号状态
type Transition struct {
	Count int  // 当前连续确认次数
	Fired bool // 本次是否触发推送
}

// SignalTracker 每个交易对的信号状态机
// 状态在首次观察时创建，进程生命周期内不清理
type SignalTracker interface {
	// Observe 记录一次判定结果并推进状态
	Observe(symbol string, match bool) Transition
	// Suppressed 该交易对是否已被永久屏蔽
	Suppressed(symbol string) bool
	// Len 已跟踪的交易对数量
	Len() int
}

// DebounceTracker 连续确认去抖：连续 N 次命中触发一次并归零，任意一次未命中立即归零
type DebounceTracker struct {
	counters      map[string]int
	confirmations int
	mutex         sync.Mutex
}

// NewDebounceTracker 创建去抖状态机
func NewDebounceTracker(confirmations int) *DebounceTracker {
	if confirmations < 1 {
		confirmations = 1
	}
	return &DebounceTracker{
		counters:      make(map[string]int),
		confirmations: confirmations,
	}
}

func (dt *DebounceTracker) Observe(symbol string, match bool) Transition {
	dt.mutex.Lock()
	defer dt.mutex.Unlock()

	if !match {
		dt.counters[symbol] = 0
		return Transition{}
	}

	count := dt.counters[symbol] + 1
	if count >= dt.confirmations {
		dt.counters[symbol] = 0
		return Transition{Count: count, Fired: true}
	}

	dt.counters[symbol] = count
	return Transition{Count: count}
}

// Suppressed 去抖模式下不屏蔽任何交易对
func (dt *DebounceTracker) Suppressed(string) bool {
	return false
}

func (dt *DebounceTracker) Len() int {
	dt.mutex.Lock()
	defer dt.mutex.Unlock()
	return len(dt.counters)
}

// Count 获取当前确认次数
func (dt *DebounceTracker) Count(symbol string) int {
	dt.mutex.Lock()
	defer dt.mutex.Unlock()
	return dt.counters[symbol]
}

// OneShotTracker 一次性触发：命中后永久屏蔽，由跟踪监控接管
type OneShotTracker struct {
	triggered map[string]struct{}
	mutex     sync.RWMutex
}

// NewOneShotTracker 创建一次性触发状态机
func NewOneShotTracker() *OneShotTracker {
	return &OneShotTracker{
		triggered: make(map[string]struct{}),
	}
}

func (ot *OneShotTracker) Observe(symbol string, match bool) Transition {
	if !match {
		return Transition{}
	}

	ot.mutex.Lock()
	defer ot.mutex.Unlock()

	if _, exists := ot.triggered[symbol]; exists {
		return Transition{Count: 1}
	}
	ot.triggered[symbol] = struct{}{}
	return Transition{Count: 1, Fired: true}
}

func (ot *OneShotTracker) Suppressed(symbol string) bool {
	ot.mutex.RLock()
	defer ot.mutex.RUnlock()

	_, exists := ot.triggered[symbol]
	return exists
}

func (ot *OneShotTracker) Len() int {
	ot.mutex.RLock()
	defer ot.mutex.RUnlock()
	return len(ot.triggered)
}
