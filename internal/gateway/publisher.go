package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/metrics"
)

// Publisher 消费引擎事件：编码后发到 broker，成交事件顺便写 last trade
// 不在撮合线程里，允许阻塞
type Publisher struct {
	src    <-chan engine.Event
	broker Broker
	last   LastTradeStore // 可以为空
	codec  engine.EvCodec
	now    func() time.Time
}

func NewPublisher(src <-chan engine.Event, broker Broker, last LastTradeStore) *Publisher {
	return &Publisher{
		src:    src,
		broker: broker,
		last:   last,
		codec:  engine.JSONEvCodec{},
		now:    time.Now,
	}
}

func (p *Publisher) Run(ctx context.Context) error {
	buf := make([]byte, 0, 512)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.src:
			if !ok {
				return nil
			}
			var err error
			buf, err = p.codec.Encode(buf, ev)
			if err != nil {
				logger.Error(ctx, "encode event failed", zap.Uint64("seq", ev.Seq), zap.Error(err))
				continue
			}
			p.handle(ctx, ev, buf)
		}
	}
}

func (p *Publisher) handle(ctx context.Context, ev engine.Event, payload []byte) {
	// broker 可能持有 payload，复制一份
	msg := append([]byte(nil), payload...)
	if err := p.broker.Publish(ctx, Topic(ev.Symbol), msg); err != nil {
		metrics.BrokerPublishTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "broker publish failed",
			zap.String("symbol", ev.Symbol),
			zap.Uint64("seq", ev.Seq),
			zap.Error(err),
		)
	} else {
		metrics.BrokerPublishTotal.WithLabelValues("ok").Inc()
	}

	if ev.Type != engine.EvMatched || p.last == nil {
		return
	}
	lt := LastTrade{
		Symbol:      ev.Symbol,
		Seq:         ev.Seq,
		TakerID:     ev.OrderID,
		Side:        ev.Side,
		ContraIDs:   ev.ContraIDs,
		ExecutedQty: ev.Qty,
		AvgPrice:    ev.AvgPrice,
		Ts:          p.now().UnixMilli(),
	}
	if err := p.last.Put(ctx, lt); err != nil {
		logger.Warn(ctx, "last trade cache failed", zap.String("symbol", ev.Symbol), zap.Error(err))
	}
}
