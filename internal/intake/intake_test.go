package intake

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/internal/matching"
)

func TestReader(t *testing.T) {
	in := `# seed
{"id":"1","symbol":"BTC-USDT","side":"sell","type":"limit","price":"100","qty":300}

{"kind":"cancel","id":"1","symbol":"BTC-USDT"}
{"id":
`
	r := NewReader(strings.NewReader(in))

	req, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "sell", req.Side)
	assert.Equal(t, int64(300), req.Qty)
	assert.Equal(t, 2, r.Line())

	req, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "cancel", req.Kind)
	assert.Equal(t, 4, r.Line())

	_, err = r.Next()
	var le *LineError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 5, le.Line)
	assert.Contains(t, err.Error(), "line 5")

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestRequest_Command(t *testing.T) {
	tk := Ticks{Decimals: 2}

	req := Request{ID: "1", Symbol: "BTC-USDT", Side: "buy", Type: "limit", Price: "100.25", Qty: 3, Ts: 9}
	cmd, err := req.Command(tk, "rid")
	require.NoError(t, err)
	assert.Equal(t, matching.EventNew, cmd.Kind)
	assert.Equal(t, "rid", cmd.ReqID)
	assert.Equal(t, int64(9), cmd.ClientTs)
	assert.Equal(t, matching.Order{ID: "1", Symbol: "BTC-USDT", Side: matching.Buy, Type: matching.Limit, Price: 10025, Qty: 3}, cmd.Order)

	// 市价单不需要价格
	req = Request{ID: "2", Symbol: "BTC-USDT", Side: "sell", Type: "market", Qty: 1}
	_, err = req.Command(tk, "")
	require.NoError(t, err)

	// cancel 不校验订单内容
	req = Request{Kind: "cancel", ID: "1", Symbol: "BTC-USDT"}
	cmd, err = req.Command(tk, "")
	require.NoError(t, err)
	assert.Equal(t, matching.EventCancel, cmd.Kind)

	req = Request{Kind: "amend", ID: "1", Symbol: "BTC-USDT"}
	_, err = req.Command(tk, "")
	assert.ErrorIs(t, err, matching.ErrInvalidOrder)

	req = Request{ID: "1", Symbol: "BTC-USDT", Side: "buy", Type: "limit", Qty: 1}
	_, err = req.Command(tk, "")
	assert.ErrorIs(t, err, matching.ErrInvalidOrder)
	// 价格回绕、超过撮合上限
	req = Request{ID: "1", Symbol: "BTC-USDT", Side: "buy", Type: "limit", Price: "184467440737095517.17", Qty: 1}
	_, err = req.Command(tk, "")
	assert.ErrorIs(t, err, ErrBadPrice)

	req = Request{ID: "1", Symbol: "BTC-USDT", Side: "buy", Type: "limit", Price: "1000000000", Qty: 1}
	_, err = req.Command(tk, "")
	assert.ErrorIs(t, err, matching.ErrInvalidOrder)

	req = Request{ID: "1", Symbol: "BTC-USDT", Side: "buy", Type: "limit", Price: "1", Qty: matching.MaxQty + 1}
	_, err = req.Command(tk, "")
	assert.ErrorIs(t, err, matching.ErrInvalidOrder)
}

func TestNewResult(t *testing.T) {
	tk := Ticks{Decimals: 2}
	cmd := engine.Command{Kind: matching.EventNew, ReqID: "r", Order: matching.Order{ID: "2", Qty: 500}}

	res := NewResult(cmd, engine.Reply{Seq: 2}, tk)
	assert.False(t, res.Matched)
	assert.Equal(t, int64(500), res.RemainingQty)
	assert.Equal(t, []string{}, res.ContraIDs)

	res = NewResult(cmd, engine.Reply{Seq: 3, Result: &matching.MatchingResult{
		ContraIDs: []string{"1"}, ExecutedQty: 200, AvgPrice: decimal.NewFromInt(10000),
	}}, tk)
	assert.True(t, res.Matched)
	assert.Equal(t, "100", res.AvgPrice)
	assert.Equal(t, int64(300), res.RemainingQty)

	res = NewResult(cmd, engine.Reply{Seq: 4, Err: matching.ErrInvalidOrder}, tk)
	assert.Equal(t, "invalid order", res.Error)
}
