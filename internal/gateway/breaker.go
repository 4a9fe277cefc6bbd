package gateway

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"gopherex.com/xmatch/pkg/logger"
)

type BreakerConfig struct {
	Name                    string
	Timeout                 time.Duration // Open 持续多久后进入 Half-Open
	Interval                time.Duration // Closed 状态计数窗口
	TripConsecutiveFailures uint32        // 连续失败阈值
}

// BreakerLastTrade 给 last trade 缓存加熔断：redis 挂了就快速失败，不拖慢 publisher
type BreakerLastTrade struct {
	next LastTradeStore
	cb   *gobreaker.CircuitBreaker[LastTrade]
}

func NewBreakerLastTrade(next LastTradeStore, cfg BreakerConfig) *BreakerLastTrade {
	if cfg.Name == "" {
		cfg.Name = "last-trade"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.TripConsecutiveFailures == 0 {
		cfg.TripConsecutiveFailures = 5
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.TripConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &BreakerLastTrade{next: next, cb: gobreaker.NewCircuitBreaker[LastTrade](st)}
}

func (b *BreakerLastTrade) Put(ctx context.Context, lt LastTrade) error {
	_, err := b.cb.Execute(func() (LastTrade, error) {
		return lt, b.next.Put(ctx, lt)
	})
	return err
}

func (b *BreakerLastTrade) Get(ctx context.Context, symbol string) (LastTrade, bool, error) {
	var found bool
	lt, err := b.cb.Execute(func() (LastTrade, error) {
		v, ok, err := b.next.Get(ctx, symbol)
		found = ok
		return v, err
	})
	if err != nil {
		return LastTrade{}, false, err
	}
	return lt, found, nil
}

func (b *BreakerLastTrade) State() gobreaker.State { return b.cb.State() }
