package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/internal/intake"
	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/common"
	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/xerr"
)

// Matcher handler 需要的引擎能力
type Matcher interface {
	Submit(ctx context.Context, cmd engine.Command) (engine.Reply, error)
	HasBook(ctx context.Context, symbol string) (bool, error)
	Depth(ctx context.Context, symbol string, levels int) (matching.Depth, error)
	Lookup(ctx context.Context, symbol, orderID string) (matching.Order, bool, error)
	Symbols() []string
}

type Order struct {
	eng   Matcher
	ticks intake.Ticks
	wait  time.Duration
}

func NewOrder(eng Matcher, ticks intake.Ticks, wait time.Duration) *Order {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Order{eng: eng, ticks: ticks, wait: wait}
}

// Place POST /api/v1/orders
func (h *Order) Place(c *gin.Context) {
	var req intake.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailErr(c, xerr.Wrap(err, xerr.RequestParamsError, ""))
		return
	}
	cmd, err := req.Command(h.ticks, common.RequestIDFromGin(c))
	if err != nil {
		common.FailErr(c, codeErr(err))
		return
	}

	// ctx 只限制等待时间，命令入队后一定会被处理
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.wait)
	defer cancel()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("xmatch.symbol", cmd.Order.Symbol),
		attribute.String("xmatch.kind", cmd.Kind.String()),
		attribute.String("xmatch.order_id", cmd.Order.ID),
	)

	r, err := h.eng.Submit(ctx, cmd)
	if err == nil {
		err = r.Err
	}
	if err != nil {
		common.FailErr(c, codeErr(err))
		return
	}

	res := intake.NewResult(cmd, r, h.ticks)
	logger.Debug(ctx, "order handled",
		zap.String("symbol", cmd.Order.Symbol),
		zap.String("order_id", cmd.Order.ID),
		zap.Uint64("seq", r.Seq),
		zap.Bool("matched", res.Matched),
	)
	common.Success(c, res)
}
