package gateway

import (
	"context"
	"sync"
)

type MemBroker struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	bufLen int
}

func NewMemBroker() *MemBroker {
	return &MemBroker{subs: make(map[string][]chan Message), bufLen: 4096}
}

func (b *MemBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	// fanout：at-most-once，慢订阅者直接丢
	msg := Message{Topic: topic, Payload: payload}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	ch := make(chan Message, b.bufLen)
	b.mu.Lock()
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], ch)
	}
	b.mu.Unlock()

	// ctx 结束：先摘掉订阅再关 channel，Publish 持读锁所以不会写到已关闭的 channel
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for _, t := range topics {
			list := b.subs[t]
			for i, c := range list {
				if c == ch {
					b.subs[t] = append(list[:i], list[i+1:]...)
					break
				}
			}
			if len(b.subs[t]) == 0 {
				delete(b.subs, t)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (b *MemBroker) Close() error { return nil }
