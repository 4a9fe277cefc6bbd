package engine

import (
	"errors"

	"gopherex.com/xmatch/internal/matching"
)

// 命令：进 mailbox、写 cmd.wal 的单位
// Submit 会等 reply；TrySubmit 入队即返回，结果只通过事件返回
type Command struct {
	Kind     matching.EventKind
	ReqID    string // 上游幂等/追踪用
	ClientTs int64  // 可选：审计
	Order    matching.Order

	reply chan Reply                 // 同步等待结果，不落盘
	query func(eng *matching.Engine) // 只读查询，在 actor 线程里执行，不落盘
}

// Reply 一条命令的执行结果
type Reply struct {
	Seq    uint64
	Result *matching.MatchingResult
	Err    error
}

type EventType uint8

const (
	EvAccepted    EventType = iota + 1 // 命令已受理
	EvRejected                         // 校验失败
	EvBookCreated                      // 新交易对的订单簿
	EvMatched                          // 撮合成交
	EvRested                           // 挂单入簿
	EvIgnored                          // replace / cancel 占位
	EvCrossed                          // 买一 >= 卖一
)

func (t EventType) String() string {
	switch t {
	case EvAccepted:
		return "accepted"
	case EvRejected:
		return "rejected"
	case EvBookCreated:
		return "book_created"
	case EvMatched:
		return "matched"
	case EvRested:
		return "rested"
	case EvIgnored:
		return "ignored"
	case EvCrossed:
		return "crossed"
	default:
		return "unknown"
	}
}

type Event struct {
	Type   EventType `json:"type"`
	Symbol string    `json:"symbol"`

	// 同一 symbol Actor 内单调递增，用于对齐/回放/排查
	Seq   uint64 `json:"seq"`
	ReqID string `json:"req_id,omitempty"`
	Idx   uint16 `json:"idx"` // 同一 cmdSeq 内事件序号

	OrderID string `json:"order_id,omitempty"`
	Side    string `json:"side,omitempty"`
	Price   int64  `json:"price,omitempty"`
	Qty     int64  `json:"qty,omitempty"` // matched: 成交量；rested: 挂单量

	// Matched 字段
	ContraIDs []string `json:"contra_ids,omitempty"`
	AvgPrice  string   `json:"avg_price,omitempty"`
	Remaining int64    `json:"remaining,omitempty"`

	// Crossed 字段
	BestBid int64 `json:"best_bid,omitempty"`
	BestAsk int64 `json:"best_ask,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// 定义错误
var (
	ErrEngineBusy    = errors.New("engine busy: mailbox full")
	ErrUnknownSym    = errors.New("unknown symbol")
	ErrBadCommand    = errors.New("bad command")
	ErrEngineStopped = errors.New("engine stopped")
	ErrWALFailed     = errors.New("cmd wal write failed")
)
