package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"gopherex.com/xmatch/pkg/common"
	"gopherex.com/xmatch/pkg/logger"
)

// ReqId 合法的 X-Request-Id 原样透传，否则重新生成
// 同一个 id 也作为日志 trace_id 的兜底，以及撮合命令的 req_id
func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(common.HeaderRequestID)
		if !common.ValidRequestID(rid) {
			rid = common.NewRequestID()
		}
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.TraceIdKey, rid))
		c.Next()
	}
}
