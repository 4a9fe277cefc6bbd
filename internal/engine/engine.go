package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/metrics"
	"gopherex.com/xmatch/pkg/safe"
	"gopherex.com/xmatch/pkg/wal"
)

var tracer = otel.Tracer("gopherex.com/xmatch/internal/engine")

type EngineConfig struct {
	EventBusSize int                 // bus 容量
	ActorCfg     ActorConfig         // actor 配置
	MatchDepth   matching.MatchDepth // 撮合深度策略
	WALDir       string              // cmd.wal 目录
	EnableCmdWAL bool                // 是否写 cmd.wal（重启回放重建订单簿）
	WALBufSize   int                 // wal 写缓冲
	CmdCodec     CmdCodec
	Bus          *ChanBus // 为空则按 EventBusSize 新建
}

// Engine 按 symbol 把命令分发给对应的 actor
// actor 在某个 symbol 第一次出现时懒创建
type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	actors map[string]*SymbolActor
	bus    *ChanBus
	cfg    EngineConfig
	wg     sync.WaitGroup
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.EventBusSize <= 0 {
		cfg.EventBusSize = 1 << 16
	}
	if cfg.CmdCodec == nil {
		cfg.CmdCodec = BinaryCmdCodec{}
	}
	if cfg.Bus == nil {
		cfg.Bus = NewChanBus(cfg.EventBusSize)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		ctx:    ctx,
		cancel: cancel,
		actors: make(map[string]*SymbolActor, 64),
		bus:    cfg.Bus,
		cfg:    cfg,
	}
}

// 对外推送的事件
func (e *Engine) Events() <-chan Event  { return e.bus.C() }
func (e *Engine) Bus() *ChanBus         { return e.bus }
func (e *Engine) DroppedEvents() uint64 { return e.bus.Dropped() }

func (e *Engine) actor(symbol string) *SymbolActor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.actors[symbol]
}

func (e *Engine) getOrCreateActor(symbol string) (*SymbolActor, error) {
	// 1) 快路径：读锁查
	if a := e.actor(symbol); a != nil {
		return a, nil
	}

	// 2) 慢路径：写锁双检 + 创建
	e.mu.Lock()
	defer e.mu.Unlock()
	if a := e.actors[symbol]; a != nil {
		return a, nil
	}
	if e.ctx.Err() != nil {
		return nil, ErrEngineStopped
	}
	if e.cfg.EnableCmdWAL && e.cfg.WALDir == "" {
		return nil, fmt.Errorf("WALDir is empty but cmd wal is enabled")
	}

	eng := matching.NewEngine(matching.WithMatchDepth(e.cfg.MatchDepth))

	// 3) 回放 cmd.wal 重建订单簿，然后打开写端
	var (
		lastSeq   uint64
		cmdWriter walWriter
	)
	if e.cfg.EnableCmdWAL {
		if err := os.MkdirAll(e.cfg.WALDir, 0o755); err != nil {
			return nil, err
		}
		cmdPath := cmdWalPath(e.cfg.WALDir, symbol)
		var err error
		lastSeq, err = replayCmdWAL(cmdPath, eng, e.cfg.CmdCodec)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", cmdPath, err)
		}
		w, err := wal.OpenWrite(cmdPath, e.cfg.WALBufSize)
		if err != nil {
			return nil, err
		}
		cmdWriter = w
	}

	// 4) 创建 actor，保证重启后 seq 连续（新命令从 lastSeq+1 开始）
	a := NewSymbolActor(symbol, eng, e.cfg.ActorCfg, cmdWriter, e.bus, e.cfg.CmdCodec)
	a.seq = lastSeq
	e.actors[symbol] = a
	if eng.HasBook(symbol) {
		metrics.Books.Inc()
	}

	e.wg.Add(1)
	safe.Go(func() {
		defer e.wg.Done()
		a.Run(e.ctx)
	})
	return a, nil
}

func validKind(k matching.EventKind) bool {
	return k >= matching.EventNew && k <= matching.EventCancel
}

// TrySubmit 入队即返回，结果只通过事件返回
func (e *Engine) TrySubmit(cmd Command) error {
	if !validKind(cmd.Kind) || cmd.Order.Symbol == "" {
		return ErrBadCommand
	}
	a, err := e.getOrCreateActor(cmd.Order.Symbol)
	if err != nil {
		return err
	}
	cmd.reply, cmd.query = nil, nil
	return a.TryEnqueue(cmd)
}

// Submit 入队并等待 actor 处理完成
// 业务错误（校验失败、不变量被破坏）在 Reply.Err 里，入队/等待失败走第二个返回值
func (e *Engine) Submit(ctx context.Context, cmd Command) (r Reply, err error) {
	ctx, span := tracer.Start(ctx, "engine.Submit", trace.WithAttributes(
		attribute.String("xmatch.symbol", cmd.Order.Symbol),
		attribute.String("xmatch.kind", cmd.Kind.String()),
	))
	defer func() {
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case r.Err != nil:
			// 业务拒绝，不算 span 失败
			span.RecordError(r.Err)
		}
		span.SetAttributes(attribute.Int64("xmatch.seq", int64(r.Seq)))
		span.End()
	}()

	if !validKind(cmd.Kind) || cmd.Order.Symbol == "" {
		return Reply{}, ErrBadCommand
	}
	a, err := e.getOrCreateActor(cmd.Order.Symbol)
	if err != nil {
		return Reply{}, err
	}
	cmd.query = nil
	cmd.reply = make(chan Reply, 1)
	if err := a.TryEnqueue(cmd); err != nil {
		return Reply{}, err
	}
	return wait(ctx, a, cmd.reply)
}

func wait(ctx context.Context, a *SymbolActor, ch <-chan Reply) (Reply, error) {
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-a.Done():
		// actor 退出前可能已经回复
		select {
		case r := <-ch:
			return r, nil
		default:
			return Reply{}, ErrEngineStopped
		}
	}
}

// query 在 actor 线程里执行只读操作；symbol 没有 actor 时返回 ErrUnknownSym，不会创建
func (e *Engine) query(ctx context.Context, symbol string, fn func(eng *matching.Engine)) error {
	a := e.actor(symbol)
	if a == nil {
		return ErrUnknownSym
	}
	cmd := Command{query: fn, reply: make(chan Reply, 1)}
	if err := a.TryEnqueue(cmd); err != nil {
		return err
	}
	_, err := wait(ctx, a, cmd.reply)
	return err
}

// HasBook 是否已经有这个交易对的订单簿，无副作用
func (e *Engine) HasBook(ctx context.Context, symbol string) (bool, error) {
	var ok bool
	err := e.query(ctx, symbol, func(eng *matching.Engine) { ok = eng.HasBook(symbol) })
	if errors.Is(err, ErrUnknownSym) {
		return false, nil
	}
	return ok, err
}

// Depth 前 levels 档快照
func (e *Engine) Depth(ctx context.Context, symbol string, levels int) (matching.Depth, error) {
	var (
		d     matching.Depth
		found bool
	)
	err := e.query(ctx, symbol, func(eng *matching.Engine) {
		if b := eng.Book(symbol); b != nil {
			d, found = b.Depth(levels), true
		}
	})
	if err != nil {
		return matching.Depth{}, err
	}
	if !found {
		return matching.Depth{}, ErrUnknownSym
	}
	return d, nil
}

// Lookup 查询挂单
func (e *Engine) Lookup(ctx context.Context, symbol, orderID string) (matching.Order, bool, error) {
	var (
		o  matching.Order
		ok bool
	)
	err := e.query(ctx, symbol, func(eng *matching.Engine) {
		if b := eng.Book(symbol); b != nil {
			o, ok = b.Lookup(orderID)
		}
	})
	if errors.Is(err, ErrUnknownSym) {
		return matching.Order{}, false, nil
	}
	return o, ok, err
}

// Symbols 已经创建 actor 的交易对
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	out := make([]string, 0, len(e.actors))
	for s := range e.actors {
		out = append(out, s)
	}
	e.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Stop 停止所有 actor，等它们关闭 cmd.wal 后关闭事件通道，可重复调用
func (e *Engine) Stop() {
	// 和 getOrCreateActor 互斥：cancel 之后不会再有 wg.Add
	e.mu.Lock()
	e.cancel()
	e.mu.Unlock()
	e.wg.Wait()
	e.bus.Close()
}

func cmdWalPath(dir, symbol string) string {
	// 文件名里不安全字符替换掉
	s := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r == '_' || r == '-' {
			s = append(s, r)
		} else {
			s = append(s, '_')
		}
	}
	return filepath.Join(dir, string(s)+".cmd.wal")
}

// replayCmdWAL 回放 cmd.wal，返回最后一条命令的 seq
// 尾部半写的记录会被截掉，后续 append 接在最后一条完整记录后面
func replayCmdWAL(cmdPath string, eng *matching.Engine, codec CmdCodec) (lastSeq uint64, err error) {
	st, err := wal.Replay(cmdPath, wal.ReplayOptions{
		AllowTruncatedTail: true,
	}, func(payload []byte) error {
		seq, cmd, err := codec.Decode(payload)
		if err != nil {
			return err
		}
		if seq > lastSeq {
			lastSeq = seq
		}
		return applyReplayed(eng, cmd)
	})
	if err != nil {
		return 0, err
	}
	if st.TruncatedTail {
		logger.Warn(context.Background(), "cmd wal truncated tail, repairing",
			zap.String("path", cmdPath),
			zap.Int64("last_good_offset", st.LastGoodOffset),
		)
		if err := wal.TruncateTo(cmdPath, st.LastGoodOffset); err != nil {
			return 0, err
		}
	}
	if st.Records > 0 {
		logger.Info(context.Background(), "cmd wal replayed",
			zap.String("path", cmdPath),
			zap.Int("records", st.Records),
			zap.Uint64("last_seq", lastSeq),
		)
	}
	return lastSeq, nil
}

func applyReplayed(eng *matching.Engine, cmd Command) error {
	o := cmd.Order
	if cmd.Kind == matching.EventNew && eng.CheckNew(&o) != nil {
		// 当时就被拒了（字段非法或 id 重复），不影响订单簿
		return nil
	}
	_, err := eng.Apply(cmd.Kind, &o, replayEmitter{})
	return err
}
