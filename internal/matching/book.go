package matching

import "fmt"

// OrderBook 单个交易对的订单簿
// bids 按价格降序、asks 按价格升序，两边的最优价位都是“第一个”
type OrderBook struct {
	Symbol string
	bids   *bookSide
	asks   *bookSide
	byID   map[string]*levelNode // 订单索引：orderID -> node（查询 / 将来的撤单改单）
	depth  MatchDepth
}

func NewOrderBook(symbol string, depth MatchDepth) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newBookSide(Buy),
		asks:   newBookSide(Sell),
		byID:   make(map[string]*levelNode, 1024),
		depth:  depth,
	}
}

func (b *OrderBook) sideOf(s Side) *bookSide {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// InsertFirst 新交易对的第一笔订单：直接建一个只有它的价位
func (b *OrderBook) InsertFirst(o *Order) {
	lv := newLevel(o.Side, o.Price)
	side := b.sideOf(o.Side)
	if old := side.get(o.Price); old != nil {
		// 正常情况下不会走到这里，退化成普通挂单
		b.byID[o.ID] = old.add(o)
		return
	}
	b.byID[o.ID] = lv.add(o)
	side.put(lv)
}

// BestContraLevel 选出要撮合的对手价位
// 市价：对手盘最优价位；限价：对手盘上和限价完全相同的价位
func (b *OrderBook) BestContraLevel(o *Order) *Level {
	contra := b.sideOf(o.Side.Opposite())
	if o.Type == Market {
		return contra.best()
	}
	return contra.get(o.Price)
}

// AttemptMatch 撮合但不挂单，不修改 taker 的剩余数量（由上层扣减）
// 返回 nil 表示没有成交
func (b *OrderBook) AttemptMatch(o *Order) (*MatchingResult, error) {
	if b.depth == DepthSweep {
		return b.sweep(o)
	}
	lv := b.BestContraLevel(o)
	if lv == nil {
		return nil, nil
	}
	res, err := b.matchLevel(lv, o.Qty)
	if err != nil {
		return nil, err
	}
	if res.ExecutedQty == 0 {
		return nil, nil
	}
	return res, nil
}

// sweep 从最优价位开始，逐个吃掉可成交的对手价位
func (b *OrderBook) sweep(o *Order) (*MatchingResult, error) {
	contra := b.sideOf(o.Side.Opposite())
	var total *MatchingResult
	for total == nil || total.ExecutedQty < o.Qty {
		lv := contra.best()
		if lv == nil || !crossable(o, lv) {
			break
		}
		want := o.Qty
		if total != nil {
			want -= total.ExecutedQty
		}
		res, err := b.matchLevel(lv, want)
		if err != nil {
			return nil, err
		}
		if total == nil {
			total = res
		} else {
			total.merge(res)
		}
	}
	if total == nil || total.ExecutedQty == 0 {
		return nil, nil
	}
	return total, nil
}

func (b *OrderBook) matchLevel(lv *Level, qty int64) (*MatchingResult, error) {
	if lv.Empty() {
		return nil, fmt.Errorf("%w: empty %s level %d still reachable in %s", ErrInvariant, lv.Side, lv.Price, b.Symbol)
	}
	res, empty := lv.Match(qty)
	// 吃完的 maker 已经摘链，删除索引
	for _, id := range res.ContraIDs {
		if n := b.byID[id]; n != nil && n.lv == nil {
			delete(b.byID, id)
		}
	}
	// 桶吃空了：删除桶
	if empty {
		b.sideOf(lv.Side).remove(lv.Price)
	}
	return res, nil
}

// Rest 剩余数量挂单入簿（变成 maker）
func (b *OrderBook) Rest(o *Order) {
	lv := b.sideOf(o.Side).getOrCreate(o.Price)
	b.byID[o.ID] = lv.add(o)
}

// Has id 是否有挂单
func (b *OrderBook) Has(id string) bool {
	n := b.byID[id]
	return n != nil && n.lv != nil
}

// Lookup 按 id 查询挂单（返回副本）
func (b *OrderBook) Lookup(id string) (Order, bool) {
	n := b.byID[id]
	if n == nil || n.lv == nil {
		return Order{}, false
	}
	return *n.order, true
}

// Level 某一方向某一价位的桶，不存在返回 nil
func (b *OrderBook) Level(side Side, price int64) *Level {
	return b.sideOf(side).get(price)
}

// BestBid 返回当前最优买价（最高价）
func (b *OrderBook) BestBid() (int64, bool) {
	if lv := b.bids.best(); lv != nil {
		return lv.Price, true
	}
	return 0, false
}

// BestAsk 返回当前最优卖价（最低价）
func (b *OrderBook) BestAsk() (int64, bool) {
	if lv := b.asks.best(); lv != nil {
		return lv.Price, true
	}
	return 0, false
}

// Crossed 买一 >= 卖一
// 单价位撮合策略下限价单只找同价位，所以可能留下交叉的簿
func (b *OrderBook) Crossed() (bid, ask int64, crossed bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	return bid, ask, okB && okA && bid >= ask
}

// Resting 挂单数量
func (b *OrderBook) Resting() int { return len(b.byID) }

type LevelView struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}

type Depth struct {
	Symbol string      `json:"symbol"`
	Bids   []LevelView `json:"bids"`
	Asks   []LevelView `json:"asks"`
}

// Depth 前 n 档快照，n <= 0 表示全部
func (b *OrderBook) Depth(n int) Depth {
	return Depth{
		Symbol: b.Symbol,
		Bids:   levelViews(b.bids.sorted(), n),
		Asks:   levelViews(b.asks.sorted(), n),
	}
}

func levelViews(levels []*Level, n int) []LevelView {
	if n > 0 && len(levels) > n {
		levels = levels[:n]
	}
	out := make([]LevelView, 0, len(levels))
	for _, lv := range levels {
		out = append(out, LevelView{Price: lv.Price, Qty: lv.TotalQty(), Orders: lv.Len()})
	}
	return out
}
