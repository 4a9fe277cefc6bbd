package safe

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"gopherex.com/xmatch/pkg/logger"
)

// Go 安全启动协程，panic 只记日志不崩进程
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx 带 context 启动，日志里保留 trace_id
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer Recover(ctx, "goroutine")
		fn(ctx)
	}()
}

// Recover 只能在 defer 中直接调用
func Recover(ctx context.Context, where string) {
	if r := recover(); r != nil {
		logger.Error(ctx, "panic recovered",
			zap.String("where", where),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
	}
}
