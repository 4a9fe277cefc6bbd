package engine

import (
	"encoding/binary"
	"errors"
	"math"

	"gopherex.com/xmatch/internal/matching"
)

type CmdCodec interface {
	Encode(dst []byte, seq uint64, cmd Command) ([]byte, error)
	Decode(payload []byte) (seq uint64, cmd Command, err error)
}

const (
	cmdWalVersion = 2
	cmdFixedLen   = 44

	offVer      = 0
	offKind     = 1
	offSeq      = 2  // uint64
	offClientTs = 10 // int64 as uint64
	offSide     = 18 // uint8
	offType     = 19 // uint8
	offPrice    = 20 // int64 as uint64
	offQty      = 28 // int64 as uint64
	offOrderSeq = 36 // uint64
	// 之后是三个 u16 长度前缀的字符串：reqID, orderID, symbol
)

var (
	ErrBadCmdRecordLen = errors.New("wal cmd: bad record length")
	ErrBadCmdVersion   = errors.New("wal cmd: bad version")
	ErrBadCmdKind      = errors.New("wal cmd: bad cmd kind")
	ErrCmdStrTooLong   = errors.New("wal cmd: string field too long")
)

// 栈上数组的大小：常见长度的 id/symbol 不会触发分配
const cmdRecordHint = cmdFixedLen + 3*2 + 96

type BinaryCmdCodec struct{}

func (BinaryCmdCodec) Encode(dst []byte, cmdSeq uint64, cmd Command) ([]byte, error) {
	o := &cmd.Order
	for _, s := range [...]string{cmd.ReqID, o.ID, o.Symbol} {
		if len(s) > math.MaxUint16 {
			return nil, ErrCmdStrTooLong
		}
	}
	n := cmdFixedLen + 6 + len(cmd.ReqID) + len(o.ID) + len(o.Symbol)
	if cap(dst) < n {
		dst = make([]byte, n)
	} else {
		dst = dst[:n]
	}

	dst[offVer] = byte(cmdWalVersion)
	dst[offKind] = byte(cmd.Kind)
	binary.LittleEndian.PutUint64(dst[offSeq:offSeq+8], cmdSeq)
	binary.LittleEndian.PutUint64(dst[offClientTs:offClientTs+8], uint64(cmd.ClientTs))
	dst[offSide] = byte(o.Side)
	dst[offType] = byte(o.Type)
	binary.LittleEndian.PutUint64(dst[offPrice:offPrice+8], uint64(o.Price))
	binary.LittleEndian.PutUint64(dst[offQty:offQty+8], uint64(o.Qty))
	binary.LittleEndian.PutUint64(dst[offOrderSeq:offOrderSeq+8], o.Seq)

	off := cmdFixedLen
	off = putStr(dst, off, cmd.ReqID)
	off = putStr(dst, off, o.ID)
	putStr(dst, off, o.Symbol)
	return dst, nil
}

func (BinaryCmdCodec) Decode(payload []byte) (cmdSeq uint64, cmd Command, err error) {
	if len(payload) < cmdFixedLen+6 {
		return 0, Command{}, ErrBadCmdRecordLen
	}
	if int(payload[offVer]) != cmdWalVersion {
		return 0, Command{}, ErrBadCmdVersion
	}
	kind := matching.EventKind(payload[offKind])
	if kind < matching.EventNew || kind > matching.EventCancel {
		return 0, Command{}, ErrBadCmdKind
	}

	cmdSeq = binary.LittleEndian.Uint64(payload[offSeq : offSeq+8])
	cmd.Kind = kind
	cmd.ClientTs = int64(binary.LittleEndian.Uint64(payload[offClientTs : offClientTs+8]))
	cmd.Order.Side = matching.Side(payload[offSide])
	cmd.Order.Type = matching.OrderType(payload[offType])
	cmd.Order.Price = int64(binary.LittleEndian.Uint64(payload[offPrice : offPrice+8]))
	cmd.Order.Qty = int64(binary.LittleEndian.Uint64(payload[offQty : offQty+8]))
	cmd.Order.Seq = binary.LittleEndian.Uint64(payload[offOrderSeq : offOrderSeq+8])

	off := cmdFixedLen
	var ok bool
	if cmd.ReqID, off, ok = getStr(payload, off); !ok {
		return 0, Command{}, ErrBadCmdRecordLen
	}
	if cmd.Order.ID, off, ok = getStr(payload, off); !ok {
		return 0, Command{}, ErrBadCmdRecordLen
	}
	if cmd.Order.Symbol, off, ok = getStr(payload, off); !ok {
		return 0, Command{}, ErrBadCmdRecordLen
	}
	if off != len(payload) {
		return 0, Command{}, ErrBadCmdRecordLen
	}
	return cmdSeq, cmd, nil
}

func putStr(dst []byte, off int, s string) int {
	binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(s)))
	off += 2
	return off + copy(dst[off:], s)
}

func getStr(src []byte, off int) (string, int, bool) {
	if off+2 > len(src) {
		return "", off, false
	}
	n := int(binary.LittleEndian.Uint16(src[off : off+2]))
	off += 2
	if off+n > len(src) {
		return "", off, false
	}
	return string(src[off : off+n]), off + n, true
}
