package engine

import (
	"context"

	"go.uber.org/zap"

	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/metrics"
)

// busEmitter 把 matching 的回调转成 Event 发到 bus
// 每条命令一个，idx 在同一 cmdSeq 内递增
type busEmitter struct {
	bus    *ChanBus
	symbol string
	seq    uint64
	req    string
	idx    uint16
}

func (e *busEmitter) next() uint16 { i := e.idx; e.idx++; return i }

func (e *busEmitter) pub(ev Event) {
	if e.bus == nil {
		return
	}
	ev.Symbol = e.symbol
	ev.Seq = e.seq
	ev.ReqID = e.req
	ev.Idx = e.next()
	e.bus.TryPublish(ev)
}

func (e *busEmitter) Accepted(o *matching.Order) {
	e.pub(Event{Type: EvAccepted, OrderID: o.ID, Side: o.Side.String(), Price: o.Price, Qty: o.Qty})
}

func (e *busEmitter) Rejected(o *matching.Order, reason string) {
	e.pub(Event{Type: EvRejected, OrderID: o.ID, Reason: reason})
}

func (e *busEmitter) BookCreated(symbol string) {
	metrics.Books.Inc()
	logger.Info(context.Background(), "order book created", zap.String("symbol", symbol))
	e.pub(Event{Type: EvBookCreated})
}

func (e *busEmitter) Matched(taker *matching.Order, res *matching.MatchingResult) {
	metrics.TradesTotal.WithLabelValues(e.symbol).Inc()
	metrics.ExecutedQtyTotal.WithLabelValues(e.symbol).Add(float64(res.ExecutedQty))
	e.pub(Event{
		Type:      EvMatched,
		OrderID:   taker.ID,
		Side:      taker.Side.String(),
		Qty:       res.ExecutedQty,
		ContraIDs: append([]string(nil), res.ContraIDs...),
		AvgPrice:  res.AvgPrice.String(),
		Remaining: taker.Qty,
	})
}

func (e *busEmitter) Rested(o *matching.Order) {
	e.pub(Event{Type: EvRested, OrderID: o.ID, Side: o.Side.String(), Price: o.Price, Qty: o.Qty})
}

func (e *busEmitter) Ignored(kind matching.EventKind, o *matching.Order) {
	logger.Debug(context.Background(), "event ignored",
		zap.String("symbol", e.symbol),
		zap.String("kind", kind.String()),
		zap.String("order_id", o.ID),
	)
	e.pub(Event{Type: EvIgnored, OrderID: o.ID, Reason: kind.String() + " not supported"})
}

func (e *busEmitter) Crossed(symbol string, bestBid, bestAsk int64) {
	metrics.CrossedTotal.WithLabelValues(symbol).Inc()
	logger.Warn(context.Background(), "order book crossed",
		zap.String("symbol", symbol),
		zap.Int64("best_bid", bestBid),
		zap.Int64("best_ask", bestAsk),
	)
	e.pub(Event{Type: EvCrossed, BestBid: bestBid, BestAsk: bestAsk})
}

// 回放阶段只重建簿内状态，不对外 emit
type replayEmitter struct{}

func (replayEmitter) BookCreated(string)                                {}
func (replayEmitter) Matched(*matching.Order, *matching.MatchingResult) {}
func (replayEmitter) Rested(*matching.Order)                            {}
func (replayEmitter) Ignored(matching.EventKind, *matching.Order)       {}
func (replayEmitter) Crossed(string, int64, int64)                      {}
