package matching

import (
	"fmt"
	"sort"
)

// Emitter 核心不打日志，所有可观测的事情都通过它往外报
// nil 表示不关心
type Emitter interface {
	BookCreated(symbol string)
	Matched(taker *Order, res *MatchingResult)
	Rested(o *Order)
	Ignored(kind EventKind, o *Order)
	Crossed(symbol string, bestBid, bestAsk int64)
}

type noopEmitter struct{}

func (noopEmitter) BookCreated(string)              {}
func (noopEmitter) Matched(*Order, *MatchingResult) {}
func (noopEmitter) Rested(*Order)                   {}
func (noopEmitter) Ignored(EventKind, *Order)       {}
func (noopEmitter) Crossed(string, int64, int64)    {}

type Option func(*Engine)

func WithMatchDepth(d MatchDepth) Option {
	return func(e *Engine) { e.depth = d }
}

// Engine symbol -> OrderBook
// 单线程使用：一个事件处理完（撮合+挂单）才处理下一个，并发由上层（每个 symbol 一个 actor）保证
type Engine struct {
	books map[string]*OrderBook
	seq   uint64 // 到达序号，单调递增
	depth MatchDepth
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{books: make(map[string]*OrderBook, 16)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasBook 是否已经有这个交易对的订单簿，无副作用
func (e *Engine) HasBook(symbol string) bool {
	_, ok := e.books[symbol]
	return ok
}

// Book 只读查询用，调用方不要在撮合之外修改它
func (e *Engine) Book(symbol string) *OrderBook { return e.books[symbol] }

func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LastSeq 最后分配的到达序号
func (e *Engine) LastSeq() uint64 { return e.seq }

// Submit 唯一入口：按事件类型分发
func (e *Engine) Submit(kind EventKind, o *Order) (*MatchingResult, error) {
	return e.Apply(kind, o, nil)
}

// Apply 同 Submit，带 Emitter
// 引擎会持有 o（剩余部分挂在簿上），调用方之后不要再修改它
func (e *Engine) Apply(kind EventKind, o *Order, emit Emitter) (*MatchingResult, error) {
	if emit == nil {
		emit = noopEmitter{}
	}
	switch kind {
	case EventNew:
		return e.ProcessNewOrder(o, emit)
	case EventReplace, EventCancel:
		// 占位：不动订单簿
		emit.Ignored(kind, o)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, kind)
	}
}

// ProcessNewOrder 新订单：撮合，剩余挂单
func (e *Engine) ProcessNewOrder(o *Order, emit Emitter) (*MatchingResult, error) {
	if emit == nil {
		emit = noopEmitter{}
	}
	if err := e.CheckNew(o); err != nil {
		return nil, err
	}
	e.stamp(o)

	book, ok := e.books[o.Symbol]
	if !ok {
		// 新交易对不可能有对手盘
		e.books[o.Symbol] = NewOrderBook(o.Symbol, e.depth)
		if book = e.books[o.Symbol]; book == nil {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, o.Symbol)
		}
		emit.BookCreated(o.Symbol)
		book.InsertFirst(o)
		emit.Rested(o)
		return nil, nil
	}

	res, err := book.AttemptMatch(o)
	if err != nil {
		return nil, err
	}
	if res == nil {
		book.Rest(o)
		emit.Rested(o)
		e.checkCrossed(book, emit)
		return nil, nil
	}
	if res.ExecutedQty > o.Qty {
		return nil, fmt.Errorf("%w: order %s executed %d with only %d remaining", ErrInvariant, o.ID, res.ExecutedQty, o.Qty)
	}
	o.Qty -= res.ExecutedQty
	emit.Matched(o, res)
	if o.Qty > 0 {
		book.Rest(o)
		emit.Rested(o)
	}
	e.checkCrossed(book, emit)
	return res, nil
}

// CheckNew 新订单入簿前的校验：字段合法，且 id 不能和簿上的挂单重复
// 已经完全成交的 id 不在索引里，可以再用
func (e *Engine) CheckNew(o *Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if b := e.books[o.Symbol]; b != nil && b.Has(o.ID) {
		return fmt.Errorf("%w: duplicate order id %s", ErrInvalidOrder, o.ID)
	}
	return nil
}

// stamp 分配到达序号；回放时订单自带序号，只把计数器往前推
func (e *Engine) stamp(o *Order) {
	if o.Seq == 0 {
		e.seq++
		o.Seq = e.seq
		return
	}
	if o.Seq > e.seq {
		e.seq = o.Seq
	}
}

func (e *Engine) checkCrossed(b *OrderBook, emit Emitter) {
	if bid, ask, crossed := b.Crossed(); crossed {
		emit.Crossed(b.Symbol, bid, ask)
	}
}
