package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/encoding/json"

	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/internal/intake"
	"gopherex.com/xmatch/internal/matching"
)

// replayCmd 每行一个下单请求，每行输出一个结果；坏行输出 error 后继续
func replayCmd(args []string, stdin io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	file := fs.String("f", "-", "jsonl file, - for stdin")
	depth := fs.String("depth", "single", "match depth: single | sweep")
	decimals := fs.Int("ticks", 2, "tick decimals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	md, err := matching.ParseMatchDepth(*depth)
	if err != nil {
		return err
	}

	in := stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	// 只看同步结果，事件没人消费
	eng := engine.NewEngine(engine.EngineConfig{MatchDepth: md, EventBusSize: 1})
	defer eng.Stop()
	return replay(context.Background(), eng, intake.NewReader(in), intake.Ticks{Decimals: int32(*decimals)}, out)
}

func replay(ctx context.Context, eng *engine.Engine, r *intake.Reader, ticks intake.Ticks, out io.Writer) error {
	enc := json.NewEncoder(out)
	for {
		req, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var le *intake.LineError
		if err != nil && !errors.As(err, &le) {
			return err
		}
		var res intake.Result
		if err == nil {
			res, err = submitOne(ctx, eng, &req, ticks, fmt.Sprintf("line-%d", r.Line()))
		}
		if err != nil {
			res = intake.Result{ReqID: fmt.Sprintf("line-%d", r.Line()), OrderID: req.ID, ContraIDs: []string{}, Error: err.Error()}
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
}

func submitOne(ctx context.Context, eng *engine.Engine, req *intake.Request, ticks intake.Ticks, reqID string) (intake.Result, error) {
	cmd, err := req.Command(ticks, reqID)
	if err != nil {
		return intake.Result{}, err
	}
	reply, err := eng.Submit(ctx, cmd)
	if err != nil {
		return intake.Result{}, err
	}
	return intake.NewResult(cmd, reply, ticks), nil
}
