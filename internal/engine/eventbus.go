package engine

import (
	"sync"
	"sync/atomic"

	"gopherex.com/xmatch/pkg/metrics"
)

// ChanBus actor 到 publisher 的单向事件通道
// 只有非阻塞写：下游慢就丢，按 symbol 计数
type ChanBus struct {
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
}

func NewChanBus(size int) *ChanBus {
	if size <= 0 {
		size = 1 << 16
	}
	return &ChanBus{ch: make(chan Event, size)}
}

// TryPublish 只能在 actor goroutine 里调，Close 之后不能再调
func (b *ChanBus) TryPublish(ev Event) bool {
	select {
	case b.ch <- ev:
		return true
	default:
		b.dropped.Add(1)
		metrics.EventsDroppedTotal.WithLabelValues(ev.Symbol).Inc()
		return false
	}
}

func (b *ChanBus) C() <-chan Event { return b.ch }
func (b *ChanBus) Dropped() uint64 { return b.dropped.Load() }
func (b *ChanBus) Len() int        { return len(b.ch) }

// Close 所有 actor 退出后调用，消费方读完剩余事件后拿到 !ok
func (b *ChanBus) Close() {
	b.once.Do(func() { close(b.ch) })
}
