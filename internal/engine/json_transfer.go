package engine

import (
	"github.com/segmentio/encoding/json"

	"gopherex.com/xmatch/internal/matching"
)

type orderJSON struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Side   uint8  `json:"side"`
	Type   uint8  `json:"type"`
	Price  int64  `json:"price"`
	Qty    int64  `json:"qty"`
	Seq    uint64 `json:"seq,omitempty"`
}

type cmdJSON struct {
	V        uint8     `json:"v"`
	Seq      uint64    `json:"seq"`
	Kind     uint8     `json:"kind"`
	ReqID    string    `json:"req_id,omitempty"`
	ClientTs int64     `json:"client_ts,omitempty"`
	Order    orderJSON `json:"order"`
}

// JSONCmdCodec 可读的 cmd.wal，排查问题时用
type JSONCmdCodec struct{ Version uint8 }

func (c JSONCmdCodec) Encode(dst []byte, seq uint64, cmd Command) ([]byte, error) {
	o := cmd.Order
	rec := cmdJSON{
		V: c.Version, Seq: seq, Kind: uint8(cmd.Kind), ReqID: cmd.ReqID, ClientTs: cmd.ClientTs,
		Order: orderJSON{
			ID: o.ID, Symbol: o.Symbol, Side: uint8(o.Side), Type: uint8(o.Type),
			Price: o.Price, Qty: o.Qty, Seq: o.Seq,
		},
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(dst[:0], b...), nil
}

func (c JSONCmdCodec) Decode(payload []byte) (uint64, Command, error) {
	var rec cmdJSON
	if err := json.Unmarshal(payload, &rec); err != nil {
		return 0, Command{}, err
	}
	kind := matching.EventKind(rec.Kind)
	if kind < matching.EventNew || kind > matching.EventCancel {
		return 0, Command{}, ErrBadCmdKind
	}
	o := rec.Order
	return rec.Seq, Command{
		Kind:     kind,
		ReqID:    rec.ReqID,
		ClientTs: rec.ClientTs,
		Order: matching.Order{
			ID: o.ID, Symbol: o.Symbol, Side: matching.Side(o.Side), Type: matching.OrderType(o.Type),
			Price: o.Price, Qty: o.Qty, Seq: o.Seq,
		},
	}, nil
}

type EvCodec interface {
	Encode(dst []byte, ev Event) ([]byte, error)
	Decode(payload []byte) (Event, error)
}

// JSONEvCodec 对外发布的事件格式
type JSONEvCodec struct{}

func (JSONEvCodec) Encode(dst []byte, ev Event) ([]byte, error) {
	return json.Append(dst[:0], ev, 0)
}

func (JSONEvCodec) Decode(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
