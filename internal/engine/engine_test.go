package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherex.com/xmatch/internal/matching"
)

func newCmd(id, symbol string, side matching.Side, typ matching.OrderType, price, qty int64) Command {
	return Command{
		Kind:  matching.EventNew,
		ReqID: "req-" + id,
		Order: matching.Order{ID: id, Symbol: symbol, Side: side, Type: typ, Price: price, Qty: qty},
	}
}

func submit(t *testing.T, e *Engine, cmd Command) Reply {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := e.Submit(ctx, cmd)
	require.NoError(t, err)
	return r
}

func TestEngine_SubmitPartialThenRest(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Stop()
	ctx := context.Background()

	r := submit(t, e, newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 200))
	require.NoError(t, r.Err)
	assert.Nil(t, r.Result)
	assert.Equal(t, uint64(1), r.Seq)

	r = submit(t, e, newCmd("2", "BTC-USDT", matching.Sell, matching.Limit, 100, 300))
	require.NoError(t, r.Err)
	require.NotNil(t, r.Result)
	assert.Equal(t, int64(200), r.Result.ExecutedQty)
	assert.Equal(t, []string{"1"}, r.Result.ContraIDs)

	o, ok, err := e.Lookup(ctx, "BTC-USDT", "2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), o.Qty)

	d, err := e.Depth(ctx, "BTC-USDT", 5)
	require.NoError(t, err)
	assert.Empty(t, d.Bids)
	assert.Equal(t, []matching.LevelView{{Price: 100, Qty: 100, Orders: 1}}, d.Asks)
}

func TestEngine_HasBookHasNoSideEffect(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Stop()
	ctx := context.Background()

	ok, err := e.HasBook(ctx, "ETH-USDT")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, e.Symbols(), "HasBook must not create an actor")

	_, err = e.Depth(ctx, "ETH-USDT", 1)
	assert.ErrorIs(t, err, ErrUnknownSym)

	submit(t, e, newCmd("1", "ETH-USDT", matching.Buy, matching.Limit, 10, 1))
	ok, err = e.HasBook(ctx, "ETH-USDT")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_RejectsInvalidOrder(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Stop()

	r := submit(t, e, newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 0))
	assert.ErrorIs(t, r.Err, matching.ErrInvalidOrder)

	ok, err := e.HasBook(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	assert.False(t, ok, "rejected order must not create a book")

	_, err = e.Submit(context.Background(), Command{Kind: matching.EventNew})
	assert.ErrorIs(t, err, ErrBadCommand)
	_, err = e.Submit(context.Background(), Command{Kind: 9, Order: matching.Order{Symbol: "X"}})
	assert.ErrorIs(t, err, ErrBadCommand)
}

func TestEngine_CancelIsIgnored(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Stop()
	ctx := context.Background()

	submit(t, e, newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 5))
	cmd := newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 5)
	cmd.Kind = matching.EventCancel
	r := submit(t, e, cmd)
	require.NoError(t, r.Err)
	assert.Nil(t, r.Result)

	o, ok, err := e.Lookup(ctx, "BTC-USDT", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), o.Qty)
}

func TestEngine_EventsOrdered(t *testing.T) {
	e := NewEngine(EngineConfig{EventBusSize: 64})
	defer e.Stop()

	submit(t, e, newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 200))
	submit(t, e, newCmd("2", "BTC-USDT", matching.Sell, matching.Limit, 100, 300))

	want := []EventType{
		EvAccepted, EvBookCreated, EvRested, // 第一笔：建簿 + 挂单
		EvAccepted, EvMatched, EvRested, // 第二笔：成交 200，剩余 100 挂单
	}
	var got []Event
	for len(got) < len(want) {
		select {
		case ev := <-e.Events():
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %d events", len(got))
		}
	}
	for i, ev := range got {
		assert.Equal(t, want[i], ev.Type, "event %d", i)
		assert.Equal(t, "BTC-USDT", ev.Symbol)
	}
	assert.Equal(t, uint16(0), got[3].Idx)
	assert.Equal(t, uint16(1), got[4].Idx)
	assert.Equal(t, uint64(2), got[4].Seq)
	assert.Equal(t, "req-2", got[4].ReqID)
	assert.Equal(t, int64(200), got[4].Qty)
	assert.Equal(t, int64(100), got[4].Remaining)
	assert.Equal(t, "100", got[4].AvgPrice)
}

func TestEngine_LazyCreateActorOnlyOnce(t *testing.T) {
	e := NewEngine(EngineConfig{ActorCfg: ActorConfig{MailboxSize: 1 << 12}})
	defer e.Stop()

	const N = 200
	start := make(chan struct{})
	var wg sync.WaitGroup
	errCh := make(chan error, N)
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			cmd := newCmd(strconv.Itoa(i), "AAPL", matching.Buy, matching.Limit, 100, 1)
			if err := e.TrySubmit(cmd); err != nil {
				errCh <- err
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("unexpected error: %v", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.actors, 1)
	assert.NotNil(t, e.actors["AAPL"])
}

func TestActor_Backpressure(t *testing.T) {
	// actor 不启动，mailbox 很快被塞满
	a := NewSymbolActor("BTC-USDT", matching.NewEngine(), ActorConfig{MailboxSize: 4, BatchMax: 1}, nil, nil, nil)
	var busy bool
	for i := 0; i < 10; i++ {
		if err := a.TryEnqueue(newCmd("x", "BTC-USDT", matching.Buy, matching.Limit, 1, 1)); errors.Is(err, ErrEngineBusy) {
			busy = true
			break
		}
	}
	assert.True(t, busy, "expected ErrEngineBusy")
	assert.Equal(t, uint64(1), a.MailboxFull())
}

func TestEngine_SubmitAfterStop(t *testing.T) {
	e := NewEngine(EngineConfig{})
	submit(t, e, newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 5))
	e.Stop()

	_, err := e.Submit(context.Background(), newCmd("2", "BTC-USDT", matching.Buy, matching.Limit, 100, 5))
	assert.ErrorIs(t, err, ErrEngineStopped)
	_, err = e.Submit(context.Background(), newCmd("3", "ETH-USDT", matching.Buy, matching.Limit, 100, 5))
	assert.ErrorIs(t, err, ErrEngineStopped)
}

func TestEngine_SweepDepthConfig(t *testing.T) {
	e := NewEngine(EngineConfig{MatchDepth: matching.DepthSweep})
	defer e.Stop()

	submit(t, e, newCmd("1", "BTC-USDT", matching.Sell, matching.Limit, 100, 100))
	submit(t, e, newCmd("2", "BTC-USDT", matching.Sell, matching.Limit, 101, 200))
	r := submit(t, e, newCmd("3", "BTC-USDT", matching.Buy, matching.Market, 0, 300))
	require.NoError(t, r.Err)
	require.NotNil(t, r.Result)
	assert.Equal(t, "100.667", r.Result.AvgPrice.Round(3).String())
}

func TestEngine_StopDrainsAndClosesEvents(t *testing.T) {
	e := NewEngine(EngineConfig{EventBusSize: 64})
	submit(t, e, newCmd("1", "BTC-USDT", matching.Buy, matching.Limit, 100, 5))
	e.Stop()
	e.Stop()

	var types []EventType
	for ev := range e.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EvAccepted, EvBookCreated, EvRested}, types)
	assert.Zero(t, e.Bus().Len())
}

func TestEngine_DuplicateIDRejected(t *testing.T) {
	e := NewEngine(EngineConfig{EventBusSize: 64})
	defer e.Stop()
	ctx := context.Background()

	submit(t, e, newCmd("x", "BTC-USDT", matching.Buy, matching.Limit, 100, 10))
	r := submit(t, e, newCmd("x", "BTC-USDT", matching.Buy, matching.Limit, 99, 10))
	assert.ErrorIs(t, r.Err, matching.ErrInvalidOrder)
	assert.Equal(t, uint64(2), r.Seq)

	o, ok, err := e.Lookup(ctx, "BTC-USDT", "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), o.Price)
	d, err := e.Depth(ctx, "BTC-USDT", 0)
	require.NoError(t, err)
	assert.Equal(t, []matching.LevelView{{Price: 100, Qty: 10, Orders: 1}}, d.Bids)

	want := []EventType{EvAccepted, EvBookCreated, EvRested, EvRejected}
	for i, w := range want {
		select {
		case ev := <-e.Events():
			assert.Equal(t, w, ev.Type, "event %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timeout at event %d", i)
		}
	}
}

func TestEngine_StopWhileCreatingActors(t *testing.T) {
	for round := 0; round < 20; round++ {
		e := NewEngine(EngineConfig{})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sym := fmt.Sprintf("S%d-%d", round, i)
				err := e.TrySubmit(newCmd("1", sym, matching.Buy, matching.Limit, 1, 1))
				if err != nil {
					assert.ErrorIs(t, err, ErrEngineStopped)
				}
			}(i)
		}
		e.Stop()
		wg.Wait()
		_, err := e.Submit(context.Background(), newCmd("2", "LATE", matching.Buy, matching.Limit, 1, 1))
		assert.ErrorIs(t, err, ErrEngineStopped)
	}
}
