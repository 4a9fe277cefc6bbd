package intake

import (
	"fmt"

	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/internal/matching"
)

// Request 对外的下单请求（http body / jsonl 的一行）
type Request struct {
	Kind   string `json:"kind" binding:"omitempty,oneof=new replace cancel"`
	ID     string `json:"id" binding:"required,max=64"`
	Symbol string `json:"symbol" binding:"required,max=32"`
	Side   string `json:"side" binding:"omitempty,oneof=buy sell"`
	Type   string `json:"type" binding:"omitempty,oneof=market limit"`
	Price  string `json:"price,omitempty"`                    // 市价单可以不填
	Qty    int64  `json:"qty" binding:"gte=0,lte=1073741824"` // matching.MaxQty
	Ts     int64  `json:"ts,omitempty"`
}

var (
	kinds = map[string]matching.EventKind{"": matching.EventNew, "new": matching.EventNew,
		"replace": matching.EventReplace, "cancel": matching.EventCancel}
	sides      = map[string]matching.Side{"buy": matching.Buy, "sell": matching.Sell}
	orderTypes = map[string]matching.OrderType{"market": matching.Market, "limit": matching.Limit}
)

// Command 请求 -> 引擎命令；new 在这里先校验一遍，actor 里还会再校验
func (r *Request) Command(ticks Ticks, reqID string) (engine.Command, error) {
	kind, ok := kinds[r.Kind]
	if !ok {
		return engine.Command{}, fmt.Errorf("%w: unknown kind %q", matching.ErrInvalidOrder, r.Kind)
	}
	o := matching.Order{
		ID:     r.ID,
		Symbol: r.Symbol,
		Side:   sides[r.Side],
		Type:   orderTypes[r.Type],
		Qty:    r.Qty,
	}
	if r.Price != "" {
		p, err := ticks.ToTicks(r.Price)
		if err != nil {
			return engine.Command{}, err
		}
		o.Price = p
	}
	if kind == matching.EventNew {
		if err := o.Validate(); err != nil {
			return engine.Command{}, err
		}
	}
	return engine.Command{Kind: kind, ReqID: reqID, ClientTs: r.Ts, Order: o}, nil
}

// Result 一条命令的结果
type Result struct {
	ReqID        string   `json:"req_id,omitempty"`
	OrderID      string   `json:"order_id"`
	Seq          uint64   `json:"seq"`
	Matched      bool     `json:"matched"`
	ExecutedQty  int64    `json:"executed_qty"`
	AvgPrice     string   `json:"avg_price,omitempty"`
	ContraIDs    []string `json:"contra_ids"`
	RemainingQty int64    `json:"remaining_qty"`
	Error        string   `json:"error,omitempty"`
}

func NewResult(cmd engine.Command, r engine.Reply, ticks Ticks) Result {
	out := Result{ReqID: cmd.ReqID, OrderID: cmd.Order.ID, Seq: r.Seq, ContraIDs: []string{}}
	if res := r.Result; res != nil {
		out.Matched = true
		out.ExecutedQty = res.ExecutedQty
		out.AvgPrice = ticks.AvgPrice(res.AvgPrice)
		out.ContraIDs = res.ContraIDs
	}
	if cmd.Kind == matching.EventNew {
		out.RemainingQty = cmd.Order.Qty - out.ExecutedQty
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}
