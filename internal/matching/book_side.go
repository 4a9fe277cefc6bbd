package matching

import (
	"container/heap"
	"slices"
)

// priceHeap：买盘用最大堆，卖盘用最小堆，堆顶就是最优价
type priceHeap struct {
	prices []int64
	desc   bool
}

func (h *priceHeap) Len() int { return len(h.prices) }

func (h *priceHeap) Less(i, j int) bool {
	if h.desc {
		return h.prices[i] > h.prices[j]
	}
	return h.prices[i] < h.prices[j]
}

func (h *priceHeap) Swap(i, j int) { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x any) { h.prices = append(h.prices, x.(int64)) }

func (h *priceHeap) Pop() any {
	old := h.prices
	n := len(old)
	x := old[n-1]
	h.prices = old[:n-1]
	return x
}

func (h *priceHeap) top() int64 { return h.prices[0] }

// bookSide：price -> level 直接可变访问 + 价格堆排序
type bookSide struct {
	side   Side
	levels map[int64]*Level
	prices *priceHeap
}

func newBookSide(side Side) *bookSide {
	s := &bookSide{
		side:   side,
		levels: make(map[int64]*Level, 64),
		prices: &priceHeap{prices: make([]int64, 0, 64), desc: side == Buy},
	}
	heap.Init(s.prices)
	return s
}

func (s *bookSide) get(price int64) *Level { return s.levels[price] }

func (s *bookSide) getOrCreate(price int64) *Level {
	lv := s.levels[price]
	if lv == nil {
		lv = newLevel(s.side, price)
		s.put(lv)
	}
	return lv
}

func (s *bookSide) put(lv *Level) {
	s.levels[lv.Price] = lv
	heap.Push(s.prices, lv.Price) // 新价位出现：入堆
}

// remove 只删 map，堆里的价格 lazy 删除
func (s *bookSide) remove(price int64) {
	delete(s.levels, price)
	// 堆里堆积了太多过期价位就重建一次
	if s.prices.Len() > 2*len(s.levels)+64 {
		s.compact()
	}
}

// best 从堆顶拿最优价位；堆顶对应桶已不存在就弹出继续找
func (s *bookSide) best() *Level {
	for s.prices.Len() > 0 {
		p := s.prices.top()
		if lv := s.levels[p]; lv != nil && !lv.Empty() {
			return lv
		}
		heap.Pop(s.prices)
	}
	return nil
}

func (s *bookSide) compact() {
	s.prices.prices = s.prices.prices[:0]
	for p := range s.levels {
		s.prices.prices = append(s.prices.prices, p)
	}
	heap.Init(s.prices)
}

func (s *bookSide) len() int { return len(s.levels) }

// sorted 按撮合优先级排好的价位（只在快照时用，不在热路径）
func (s *bookSide) sorted() []*Level {
	ps := make([]int64, 0, len(s.levels))
	for p := range s.levels {
		ps = append(ps, p)
	}
	slices.Sort(ps)
	if s.side == Buy {
		slices.Reverse(ps)
	}
	out := make([]*Level, 0, len(ps))
	for _, p := range ps {
		out = append(out, s.levels[p])
	}
	return out
}

// crossable 对手价位是否能和 taker 成交
func crossable(taker *Order, lv *Level) bool {
	if taker.Type == Market {
		return true
	}
	if taker.Side == Buy {
		return lv.Price <= taker.Price
	}
	return lv.Price >= taker.Price
}
