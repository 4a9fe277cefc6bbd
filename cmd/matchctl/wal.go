package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"

	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/pkg/wal"
)

type walRecord struct {
	Offset   int64  `json:"offset"`
	Seq      uint64 `json:"seq"`
	Kind     string `json:"kind"`
	ReqID    string `json:"req_id,omitempty"`
	ClientTs int64  `json:"client_ts,omitempty"`
	OrderID  string `json:"order_id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    int64  `json:"price"`
	Qty      int64  `json:"qty"`
	OrderSeq uint64 `json:"order_seq"`
}

// walCmd matchctl wal dump -f BTC-USDT.cmd.wal
func walCmd(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "dump" {
		return errors.New("usage: matchctl wal dump -f <file> [-codec binary|json] [-from offset]")
	}
	fs := flag.NewFlagSet("wal dump", flag.ContinueOnError)
	file := fs.String("f", "", "cmd.wal file")
	codecName := fs.String("codec", "binary", "record codec: binary | json")
	from := fs.Int64("from", 0, "start offset")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-f is required")
	}
	var codec engine.CmdCodec
	switch *codecName {
	case "binary":
		codec = engine.BinaryCmdCodec{}
	case "json":
		codec = engine.JSONCmdCodec{Version: 1}
	default:
		return fmt.Errorf("unknown codec %q", *codecName)
	}
	return dumpWAL(*file, *from, codec, out)
}

func dumpWAL(path string, from int64, codec engine.CmdCodec, out io.Writer) error {
	r, err := wal.OpenReader(path, from, wal.ReaderOptions{AllowTruncatedTail: true})
	if err != nil {
		return err
	}
	defer r.Close()

	enc := json.NewEncoder(out)
	for {
		off := r.Offset()
		payload, _, err := r.Next()
		if errors.Is(err, io.EOF) {
			if r.TruncatedTail() {
				return fmt.Errorf("truncated tail at offset %d", r.Offset())
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("offset %d: %w", off, err)
		}
		seq, cmd, err := codec.Decode(payload)
		if err != nil {
			return fmt.Errorf("offset %d: %w", off, err)
		}
		o := cmd.Order
		if err := enc.Encode(walRecord{
			Offset: off, Seq: seq, Kind: cmd.Kind.String(), ReqID: cmd.ReqID, ClientTs: cmd.ClientTs,
			OrderID: o.ID, Symbol: o.Symbol, Side: o.Side.String(), Type: o.Type.String(),
			Price: o.Price, Qty: o.Qty, OrderSeq: o.Seq,
		}); err != nil {
			return err
		}
	}
}
