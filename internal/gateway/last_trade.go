package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"

	"gopherex.com/xmatch/pkg/metrics"
)

// LastTrade 每个交易对最近一次撮合的摘要
type LastTrade struct {
	Symbol      string   `json:"symbol"`
	Seq         uint64   `json:"seq"`
	TakerID     string   `json:"taker_id"`
	Side        string   `json:"side"`
	ContraIDs   []string `json:"contra_ids"`
	ExecutedQty int64    `json:"executed_qty"`
	AvgPrice    string   `json:"avg_price"`
	Ts          int64    `json:"ts"` // unix milli
}

type LastTradeStore interface {
	Put(ctx context.Context, lt LastTrade) error
	Get(ctx context.Context, symbol string) (LastTrade, bool, error)
}

type MemLastTrade struct {
	mu sync.RWMutex
	m  map[string]LastTrade
}

func NewMemLastTrade() *MemLastTrade {
	return &MemLastTrade{m: make(map[string]LastTrade)}
}

func (s *MemLastTrade) Put(_ context.Context, lt LastTrade) error {
	s.mu.Lock()
	s.m[lt.Symbol] = lt
	s.mu.Unlock()
	return nil
}

func (s *MemLastTrade) Get(_ context.Context, symbol string) (LastTrade, bool, error) {
	s.mu.RLock()
	lt, ok := s.m[symbol]
	s.mu.RUnlock()
	return lt, ok, nil
}

const lastTradeKeyPrefix = "xmatch:last:"

// RedisLastTrade key: xmatch:last:<symbol>，value 是 JSON
type RedisLastTrade struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisLastTrade(rdb redis.UniversalClient, ttl time.Duration) *RedisLastTrade {
	return &RedisLastTrade{rdb: rdb, ttl: ttl}
}

func (s *RedisLastTrade) Put(ctx context.Context, lt LastTrade) error {
	b, err := json.Marshal(lt)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.rdb.Set(ctx, lastTradeKeyPrefix+lt.Symbol, b, s.ttl).Err()
	observeRedis("set", start, err)
	return err
}

func (s *RedisLastTrade) Get(ctx context.Context, symbol string) (LastTrade, bool, error) {
	start := time.Now()
	b, err := s.rdb.Get(ctx, lastTradeKeyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		observeRedis("get", start, nil)
		return LastTrade{}, false, nil
	}
	observeRedis("get", start, err)
	if err != nil {
		return LastTrade{}, false, err
	}
	var lt LastTrade
	if err := json.Unmarshal(b, &lt); err != nil {
		return LastTrade{}, false, err
	}
	return lt, true, nil
}

func observeRedis(cmd string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		metrics.RedisErrors.WithLabelValues(cmd).Inc()
	}
	metrics.RedisCmdDuration.WithLabelValues(cmd, status).Observe(time.Since(start).Seconds())
}
