package gateway

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherex.com/xmatch/internal/engine"
)

func TestTopicSubjectMapping(t *testing.T) {
	topic := Topic("BTC-USDT")
	assert.Equal(t, "xmatch:events:BTC-USDT", topic)
	assert.Equal(t, "xmatch.events.BTC-USDT", topicToSubject(topic))
	assert.Equal(t, topic, subjectToTopic(topicToSubject(topic)))
}

func TestMemBroker_PublishSubscribe(t *testing.T) {
	b := NewMemBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, []string{Topic("BTC-USDT")})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), Topic("BTC-USDT"), []byte("a")))
	require.NoError(t, b.Publish(context.Background(), Topic("ETH-USDT"), []byte("b")))

	select {
	case m := <-ch:
		assert.Equal(t, "a", string(m.Payload))
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}

	cancel()
	// ctx 结束后 channel 被关闭
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, b.Publish(context.Background(), Topic("BTC-USDT"), []byte("c")))
}

func TestPublisher_FanOutAndLastTrade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := make(chan engine.Event, 4)
	broker := NewMemBroker()
	last := NewMemLastTrade()
	sub, err := broker.Subscribe(ctx, []string{Topic("BTC-USDT")})
	require.NoError(t, err)

	p := NewPublisher(src, broker, last)
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	src <- engine.Event{Type: engine.EvRested, Symbol: "BTC-USDT", Seq: 1, OrderID: "1", Qty: 200}
	src <- engine.Event{
		Type: engine.EvMatched, Symbol: "BTC-USDT", Seq: 2, OrderID: "2", Side: "sell",
		Qty: 200, ContraIDs: []string{"1"}, AvgPrice: "100",
	}

	var got []engine.Event
	for len(got) < 2 {
		select {
		case m := <-sub:
			var ev engine.Event
			require.NoError(t, json.Unmarshal(m.Payload, &ev))
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %d", len(got))
		}
	}
	assert.Equal(t, engine.EvRested, got[0].Type)
	assert.Equal(t, engine.EvMatched, got[1].Type)
	assert.Equal(t, []string{"1"}, got[1].ContraIDs)

	require.Eventually(t, func() bool {
		_, ok, _ := last.Get(ctx, "BTC-USDT")
		return ok
	}, time.Second, 10*time.Millisecond)
	lt, _, _ := last.Get(ctx, "BTC-USDT")
	assert.Equal(t, int64(200), lt.ExecutedQty)
	assert.Equal(t, "100", lt.AvgPrice)
	assert.Equal(t, int64(1700000000000), lt.Ts)

	close(src)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}

type failingStore struct{ calls int }

func (f *failingStore) Put(context.Context, LastTrade) error {
	f.calls++
	return errors.New("redis down")
}

func (f *failingStore) Get(context.Context, string) (LastTrade, bool, error) {
	f.calls++
	return LastTrade{}, false, errors.New("redis down")
}

func TestBreakerLastTrade_Trips(t *testing.T) {
	fs := &failingStore{}
	b := NewBreakerLastTrade(fs, BreakerConfig{TripConsecutiveFailures: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Put(context.Background(), LastTrade{Symbol: "BTC-USDT"}))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Put(context.Background(), LastTrade{Symbol: "BTC-USDT"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, fs.calls, "open breaker must not call through")
}

func TestBreakerLastTrade_PassThrough(t *testing.T) {
	b := NewBreakerLastTrade(NewMemLastTrade(), BreakerConfig{})
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "BTC-USDT")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Put(ctx, LastTrade{Symbol: "BTC-USDT", ExecutedQty: 7}))
	lt, ok, err := b.Get(ctx, "BTC-USDT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), lt.ExecutedQty)
}

// 需要真实 redis：XMATCH_REDIS_ADDR=127.0.0.1:6379
func TestRedisLastTrade(t *testing.T) {
	addr := os.Getenv("XMATCH_REDIS_ADDR")
	if addr == "" {
		t.Skip("XMATCH_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()

	s := NewRedisLastTrade(rdb, time.Minute)
	sym := "TEST-" + time.Now().Format("150405.000")
	_, ok, err := s.Get(ctx, sym)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, LastTrade{Symbol: sym, ExecutedQty: 3, AvgPrice: "100.5"}))
	lt, ok, err := s.Get(ctx, sym)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "100.5", lt.AvgPrice)
	require.NoError(t, rdb.Del(ctx, lastTradeKeyPrefix+sym).Err())
}
