package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limit(id string, side Side, price, qty int64, seq uint64) *Order {
	return &Order{ID: id, Symbol: "BTC-USDT", Side: side, Type: Limit, Price: price, Qty: qty, Seq: seq}
}

func TestBook_BestPrices(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	b.Rest(limit("1", Sell, 101, 1, 1))
	b.Rest(limit("2", Sell, 100, 1, 2))
	b.Rest(limit("3", Buy, 98, 1, 3))
	b.Rest(limit("4", Buy, 99, 1, 4))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(100), ask)

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(99), bid)

	_, _, crossed := b.Crossed()
	assert.False(t, crossed)
}

func TestBook_BestContraLevel(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	b.Rest(limit("1", Sell, 101, 1, 1))
	b.Rest(limit("2", Sell, 100, 1, 2))

	mkt := &Order{ID: "m", Side: Buy, Type: Market, Qty: 1}
	lv := b.BestContraLevel(mkt)
	require.NotNil(t, lv)
	assert.Equal(t, int64(100), lv.Price, "market picks the best opposite level")

	// 限价只找同价位，不找更优价位
	assert.Nil(t, b.BestContraLevel(limit("x", Buy, 102, 1, 0)))
	lv = b.BestContraLevel(limit("y", Buy, 101, 1, 0))
	require.NotNil(t, lv)
	assert.Equal(t, int64(101), lv.Price)
}

func TestBook_LevelRemovedWhenDrained(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	b.Rest(limit("1", Buy, 100, 5, 1))
	b.Rest(limit("2", Buy, 100, 5, 2))

	res, err := b.AttemptMatch(limit("3", Sell, 100, 10, 3))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(10), res.ExecutedQty)
	assert.Equal(t, []string{"1", "2"}, res.ContraIDs)

	assert.Nil(t, b.Level(Buy, 100))
	_, ok := b.BestBid()
	assert.False(t, ok)
	_, ok = b.Lookup("1")
	assert.False(t, ok)
	assert.Equal(t, 0, b.Resting())
}

func TestBook_AttemptMatchNoContra(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	b.Rest(limit("1", Buy, 100, 5, 1))

	res, err := b.AttemptMatch(limit("2", Sell, 101, 5, 2))
	require.NoError(t, err)
	assert.Nil(t, res)

	// 对手盘不动
	lv := b.Level(Buy, 100)
	require.NotNil(t, lv)
	assert.Equal(t, int64(5), lv.TotalQty())
}

func TestBook_AttemptMatchDoesNotTouchTakerQty(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	b.Rest(limit("1", Buy, 100, 5, 1))

	taker := limit("2", Sell, 100, 8, 2)
	res, err := b.AttemptMatch(taker)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(5), res.ExecutedQty)
	assert.Equal(t, int64(8), taker.Qty)
}

func TestBook_SingleLevelDepth(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	b.Rest(limit("1", Buy, 101, 100, 1))
	b.Rest(limit("2", Buy, 100, 100, 2))

	res, err := b.AttemptMatch(&Order{ID: "3", Side: Sell, Type: Market, Qty: 150})
	require.NoError(t, err)
	require.NotNil(t, res)
	// 只吃最优一档
	assert.Equal(t, int64(100), res.ExecutedQty)
	assert.Equal(t, []string{"1"}, res.ContraIDs)
	assert.NotNil(t, b.Level(Buy, 100))
}

func TestBook_SweepDepth(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSweep)
	b.Rest(limit("1", Sell, 100, 100, 1))
	b.Rest(limit("2", Sell, 101, 200, 2))
	b.Rest(limit("3", Sell, 103, 50, 3))

	res, err := b.AttemptMatch(limit("4", Buy, 102, 400, 4))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(300), res.ExecutedQty)
	assert.Equal(t, []string{"1", "2"}, res.ContraIDs)
	assert.Equal(t, "100.667", res.AvgPrice.Round(3).String())

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(103), ask, "levels beyond the limit stay")
}

func TestBook_Depth(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	b.Rest(limit("1", Buy, 99, 1, 1))
	b.Rest(limit("2", Buy, 100, 2, 2))
	b.Rest(limit("3", Buy, 100, 3, 3))
	b.Rest(limit("4", Sell, 105, 4, 4))
	b.Rest(limit("5", Sell, 104, 5, 5))

	d := b.Depth(1)
	assert.Equal(t, []LevelView{{Price: 100, Qty: 5, Orders: 2}}, d.Bids)
	assert.Equal(t, []LevelView{{Price: 104, Qty: 5, Orders: 1}}, d.Asks)

	all := b.Depth(0)
	assert.Len(t, all.Bids, 2)
	assert.Len(t, all.Asks, 2)
	assert.Equal(t, int64(105), all.Asks[1].Price)
}

func TestBook_StalePricesCompacted(t *testing.T) {
	b := NewOrderBook("BTC-USDT", DepthSingle)
	for i := int64(1); i <= 500; i++ {
		b.Rest(limit("m", Sell, i, 1, uint64(i)))
		_, err := b.AttemptMatch(limit("t", Buy, i, 1, uint64(1000+i)))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, b.asks.prices.Len(), 64+1)
	_, ok := b.BestAsk()
	assert.False(t, ok)
}
