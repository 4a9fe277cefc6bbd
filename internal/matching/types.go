package matching

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// 定义数据结构
// 买卖方向
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// 订单类型
type OrderType uint8

const (
	Market OrderType = iota + 1
	Limit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	default:
		return "unknown"
	}
}

// 事件类型：Replace / Cancel 目前只是占位
type EventKind uint8

const (
	EventNew EventKind = iota + 1
	EventReplace
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "new"
	case EventReplace:
		return "replace"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// 订单
type Order struct {
	ID     string
	Symbol string
	Side   Side
	Type   OrderType
	Price  int64  // 限价（tick），市价单不参与比较
	Qty    int64  // 剩余数量
	Seq    uint64 // 到达序号：同一价位内的时间优先，由引擎单调分配
}

// Less 只比较到达序号，只在同一个 Level 内使用
func (o *Order) Less(other *Order) bool {
	return o.Seq < other.Seq
}

// 价格 / 数量上限：MaxPrice*MaxQty < 2^63
// 一次撮合的总成交量不超过 taker 的 Qty，每个 maker 价格不超过 MaxPrice，所以 Notional 不会溢出
const (
	MaxPrice int64 = 1 << 32 // tick
	MaxQty   int64 = 1 << 30
)

// Validate 是 intake 的职责，核心本身假设输入已校验
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if o.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidOrder)
	}
	if o.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, o.Side)
	}
	if o.Type != Market && o.Type != Limit {
		return fmt.Errorf("%w: unknown type %d", ErrInvalidOrder, o.Type)
	}
	if o.Qty <= 0 {
		return fmt.Errorf("%w: qty must be positive, got %d", ErrInvalidOrder, o.Qty)
	}
	if o.Qty > MaxQty {
		return fmt.Errorf("%w: qty %d exceeds %d", ErrInvalidOrder, o.Qty, MaxQty)
	}
	if o.Type == Limit && o.Price <= 0 {
		return fmt.Errorf("%w: limit price must be positive, got %d", ErrInvalidOrder, o.Price)
	}
	if o.Price < 0 || o.Price > MaxPrice {
		return fmt.Errorf("%w: price %d out of range [0, %d]", ErrInvalidOrder, o.Price, MaxPrice)
	}
	return nil
}

// MatchingResult 一次撮合的结果
// nil 表示没有撮合（没有对手盘），和 ExecutedQty == 0 不是一回事
type MatchingResult struct {
	ContraIDs   []string        // 按成交顺序（最早挂单在前）
	ExecutedQty int64           // 成交总量
	Notional    int64           // Σ price*qty（tick）
	AvgPrice    decimal.Decimal // 成交均价（tick），ExecutedQty == 0 时为 0
}

// merge 用于 sweep 模式下把多个价位的结果合并
func (r *MatchingResult) merge(other *MatchingResult) {
	if other == nil {
		return
	}
	r.ContraIDs = append(r.ContraIDs, other.ContraIDs...)
	r.ExecutedQty += other.ExecutedQty
	r.Notional += other.Notional
	r.AvgPrice = avgPrice(r.Notional, r.ExecutedQty)
}

func avgPrice(notional, qty int64) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(notional).Div(decimal.NewFromInt(qty))
}

// 撮合深度策略
type MatchDepth uint8

const (
	// DepthSingle 每次只撮合一个对手价位（市价取最优价位，限价取同价位）
	DepthSingle MatchDepth = iota
	// DepthSweep 逐个吃掉可成交的对手价位，直到成交完或不再交叉
	DepthSweep
)

func ParseMatchDepth(s string) (MatchDepth, error) {
	switch s {
	case "", "single":
		return DepthSingle, nil
	case "sweep":
		return DepthSweep, nil
	default:
		return DepthSingle, fmt.Errorf("unknown match depth %q", s)
	}
}

// 定义错误
var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrUnknownEvent = errors.New("unknown event kind")
	ErrBookNotFound = errors.New("order book not found")
	ErrInvariant    = errors.New("order book invariant violated")
)
