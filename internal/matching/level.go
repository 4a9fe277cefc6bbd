package matching

// Level：同一方向、同一价位的所有挂单
// 双向链表，按到达序号升序 => 同价时间优先
type Level struct {
	Price int64
	Side  Side
	head  *levelNode // 头部：最早的挂单
	tail  *levelNode // 尾部
	size  int        // 订单个数
	qty   int64      // 桶内剩余总量
}

type levelNode struct {
	prev  *levelNode
	next  *levelNode
	order *Order
	lv    *Level // 所属价位；摘链后置 nil，book 用它判断订单是否已离开簿
}

func newLevel(side Side, price int64) *Level {
	return &Level{Side: side, Price: price}
}

// add 挂单入桶，返回节点供 book 建立 id 索引
func (l *Level) add(o *Order) *levelNode {
	n := &levelNode{order: o}
	l.insert(n)
	return n
}

// insert 按到达序号插入
// 正常情况下序号单调递增，直接落在队尾；
// 序号乱序（回放）时从队尾往前找位置。相等序号排在后面，不会互相覆盖
func (l *Level) insert(n *levelNode) {
	n.lv = l
	at := l.tail
	for at != nil && n.order.Less(at.order) {
		at = at.prev
	}
	if at == nil {
		// 新的头部
		n.prev, n.next = nil, l.head
		if l.head != nil {
			l.head.prev = n
		} else {
			l.tail = n
		}
		l.head = n
	} else {
		n.prev, n.next = at, at.next
		if at.next != nil {
			at.next.prev = n
		} else {
			l.tail = n
		}
		at.next = n
	}
	l.size++
	l.qty += n.order.Qty
}

// 摘链
func (l *Level) remove(n *levelNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		// n 是 head
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		// n 是 tail
		l.tail = n.prev
	}
	l.qty -= n.order.Qty
	// 断开节点指针，避免误用
	n.prev, n.next, n.lv = nil, nil, nil
	l.size--
}

// Match 用 incoming 数量从队头开始吃单
// 返回本价位的成交结果，以及价位是否已经吃空（由 book 决定是否删桶）
func (l *Level) Match(incoming int64) (*MatchingResult, bool) {
	res := &MatchingResult{ContraIDs: make([]string, 0, 4)}
	remaining := incoming
	for remaining > 0 && l.head != nil {
		head := l.head
		maker := head.order
		res.ContraIDs = append(res.ContraIDs, maker.ID)

		switch {
		case maker.Qty == remaining:
			// 刚好吃完：两边都归零
			res.Notional += maker.Price * remaining
			l.qty -= remaining
			maker.Qty = 0
			remaining = 0
			l.remove(head)
		case maker.Qty > remaining:
			// 部分成交：maker 留在队头
			res.Notional += maker.Price * remaining
			l.qty -= remaining
			maker.Qty -= remaining
			remaining = 0
		default:
			// maker 被吃完，继续下一个
			exec := maker.Qty
			res.Notional += maker.Price * exec
			l.qty -= exec
			maker.Qty = 0
			remaining -= exec
			l.remove(head)
		}
	}
	res.ExecutedQty = incoming - remaining
	res.AvgPrice = avgPrice(res.Notional, res.ExecutedQty)
	return res, l.Empty()
}

func (l *Level) Empty() bool     { return l.size == 0 }
func (l *Level) Len() int        { return l.size }
func (l *Level) TotalQty() int64 { return l.qty }

// Front 队头订单（下一个被成交的）
func (l *Level) Front() *Order {
	if l.head == nil {
		return nil
	}
	return l.head.order
}

// Orders 按 FIFO 顺序返回订单快照
func (l *Level) Orders() []Order {
	out := make([]Order, 0, l.size)
	for n := l.head; n != nil; n = n.next {
		out = append(out, *n.order)
	}
	return out
}
