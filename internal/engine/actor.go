package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/metrics"
)

type ActorConfig struct {
	MailboxSize int // mailbox 容量，满了直接拒绝（背压）
	BatchMax    int // 一轮最多处理多少条
}

type walWriter interface {
	Append(payload []byte) error
	Flush() error
	Close() error
}

// SymbolActor 一个 symbol 一个 actor，独占自己的 matching.Engine
// 所有对订单簿的读写都在 Run 的 goroutine 里串行执行
type SymbolActor struct {
	symbol string
	eng    *matching.Engine
	in     chan Command
	cfg    ActorConfig

	seq uint64 // 命令序号，同时作为订单的到达序号

	mailboxFull uint64
	wal         walWriter
	cmdCodec    CmdCodec
	bus         *ChanBus
	done        chan struct{} // Run 退出后关闭
}

func NewSymbolActor(symbol string, eng *matching.Engine, cfg ActorConfig, wal walWriter, bus *ChanBus, cmdCodec CmdCodec) *SymbolActor {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 4096
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 256
	}
	if cmdCodec == nil {
		cmdCodec = BinaryCmdCodec{}
	}
	return &SymbolActor{
		symbol:   symbol,
		eng:      eng,
		in:       make(chan Command, cfg.MailboxSize),
		cfg:      cfg,
		wal:      wal,
		bus:      bus,
		cmdCodec: cmdCodec,
		done:     make(chan struct{}),
	}
}

// TryEnqueue 非阻塞入队，mailbox 满了返回 ErrEngineBusy
func (a *SymbolActor) TryEnqueue(cmd Command) error {
	select {
	case <-a.done:
		return ErrEngineStopped
	default:
	}
	select {
	case a.in <- cmd:
		return nil
	default:
		atomic.AddUint64(&a.mailboxFull, 1)
		metrics.MailboxFullTotal.WithLabelValues(a.symbol).Inc()
		return ErrEngineBusy
	}
}

func (a *SymbolActor) MailboxFull() uint64   { return atomic.LoadUint64(&a.mailboxFull) }
func (a *SymbolActor) Done() <-chan struct{} { return a.done }

func (a *SymbolActor) Run(ctx context.Context) {
	defer close(a.done)
	if a.wal != nil {
		defer func() {
			if err := a.wal.Close(); err != nil {
				logger.Error(ctx, "cmd wal close failed", zap.String("symbol", a.symbol), zap.Error(err))
			}
		}()
	}

	// 复用 batch slice，避免每轮分配
	batch := make([]Command, 0, a.cfg.BatchMax)
	seqs := make([]uint64, 0, a.cfg.BatchMax)
	for {
		var first Command
		// 先阻塞拿 1 条，再尽量多拿几条（不阻塞）
		select {
		case <-ctx.Done():
			return
		case first = <-a.in:
		}
		batch = batch[:0]
		batch = append(batch, first)
		for len(batch) < a.cfg.BatchMax {
			select {
			case cmd := <-a.in:
				batch = append(batch, cmd)
			default:
				goto PROCESS
			}
		}
	PROCESS:
		metrics.BatchSize.Observe(float64(len(batch)))

		// ---------- Phase 1: 分配序号 + 写 cmd.wal ----------
		seqs = seqs[:0]
		for i := range batch {
			if batch[i].query != nil {
				seqs = append(seqs, 0)
				continue
			}
			a.seq++
			seqs = append(seqs, a.seq)
			if batch[i].Kind == matching.EventNew {
				batch[i].Order.Seq = a.seq
			}
		}
		if err := a.appendWAL(batch, seqs); err != nil {
			// WAL 写失败：这一批都不 apply，actor 退出
			logger.Error(ctx, "cmd wal write failed, actor stopped",
				zap.String("symbol", a.symbol), zap.Error(err))
			for i := range batch {
				reply(batch[i], Reply{Seq: seqs[i], Err: errors.Join(ErrWALFailed, err)})
			}
			return
		}

		// ---------- Phase 2: Apply ----------
		for i := range batch {
			a.apply(batch[i], seqs[i])
		}
	}
}

func (a *SymbolActor) appendWAL(batch []Command, seqs []uint64) error {
	if a.wal == nil {
		return nil
	}
	var n int
	for i := range batch {
		if batch[i].query != nil {
			continue
		}
		// 栈上数组：常见长度不分配
		var rec [cmdRecordHint]byte
		payload, err := a.cmdCodec.Encode(rec[:0], seqs[i], batch[i])
		if err != nil {
			return err
		}
		if err := a.wal.Append(payload); err != nil {
			return err
		}
		n++
	}
	if n == 0 {
		return nil
	}
	start := time.Now()
	err := a.wal.Flush()
	metrics.WALFlushDuration.Observe(time.Since(start).Seconds())
	return err
}

func (a *SymbolActor) apply(cmd Command, seq uint64) {
	if cmd.query != nil {
		cmd.query(a.eng)
		reply(cmd, Reply{})
		return
	}

	emit := &busEmitter{bus: a.bus, symbol: a.symbol, seq: seq, req: cmd.ReqID}
	o := cmd.Order // 引擎会持有这个订单（挂单），每条命令一份
	kind := cmd.Kind.String()

	if cmd.Kind == matching.EventNew {
		if err := a.eng.CheckNew(&o); err != nil {
			metrics.CommandsTotal.WithLabelValues(a.symbol, kind, "rejected").Inc()
			emit.Rejected(&o, err.Error())
			reply(cmd, Reply{Seq: seq, Err: err})
			return
		}
		emit.Accepted(&o)
	}

	res, err := a.eng.Apply(cmd.Kind, &o, emit)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(a.symbol, kind, "error").Inc()
		logger.Error(context.Background(), "apply command failed",
			zap.String("symbol", a.symbol),
			zap.Uint64("seq", seq),
			zap.String("req_id", cmd.ReqID),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		reply(cmd, Reply{Seq: seq, Err: err})
		return
	}
	metrics.CommandsTotal.WithLabelValues(a.symbol, kind, "ok").Inc()
	reply(cmd, Reply{Seq: seq, Result: res})
}

func reply(cmd Command, r Reply) {
	if cmd.reply == nil {
		return
	}
	// reply 容量为 1，等待方可能已经超时走了，不能阻塞撮合线程
	select {
	case cmd.reply <- r:
	default:
	}
}
