package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"gopherex.com/xmatch/pkg/metrics"
	"gopherex.com/xmatch/pkg/safe"
)

// bucket 一个 key（ip+route）一个令牌桶
type bucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// Store 按 key 懒创建令牌桶，janitor 定期清掉 ttl 内没访问过的 key
type Store struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
}

func NewStore(limit rate.Limit, burst int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if burst <= 0 {
		burst = 1
	}
	return &Store{
		buckets: make(map[string]*bucket, 1024),
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
	}
}

func (s *Store) bucket(key string) *rate.Limiter {
	now := time.Now().UnixNano()
	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	s.mu.Unlock()
	b.lastSeen.Store(now)
	return b.lim
}

// Allow 不等待，没有令牌直接返回 false
func (s *Store) Allow(key string) bool { return s.bucket(key).Allow() }

// Wait 阻塞到拿到令牌或 ctx 结束
func (s *Store) Wait(ctx context.Context, key string) error { return s.bucket(key).Wait(ctx) }

// Len 当前桶数量
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *Store) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	safe.GoCtx(ctx, func(ctx context.Context) {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.sweep()
			}
		}
	})
}

func (s *Store) sweep() {
	cut := time.Now().Add(-s.ttl).UnixNano()
	s.mu.Lock()
	for k, b := range s.buckets {
		if b.lastSeen.Load() < cut {
			delete(s.buckets, k)
		}
	}
	n := len(s.buckets)
	s.mu.Unlock()
	metrics.RateLimitKeys.Set(float64(n))
}
