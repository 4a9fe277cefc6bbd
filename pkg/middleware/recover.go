package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gopherex.com/xmatch/pkg/common"
	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/metrics"
	"gopherex.com/xmatch/pkg/xerr"
)

// Recover handler panic 时回 500 业务码，堆栈只进日志
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			r := route(c)
			metrics.HTTPPanicTotal.WithLabelValues(r).Inc()
			logger.Error(c.Request.Context(), "http panic",
				zap.String("request_id", common.RequestIDFromGin(c)),
				zap.String("method", c.Request.Method),
				zap.String("route", r),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			if !c.Writer.Written() {
				common.FailErr(c, xerr.Wrap(fmt.Errorf("panic: %v", p), xerr.ServerCommonError, ""))
			}
			c.Abort()
		}()
		c.Next()
	}
}
