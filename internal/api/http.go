package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"gopherex.com/xmatch/internal/api/handler"
	"gopherex.com/xmatch/internal/api/router"
	"gopherex.com/xmatch/internal/gateway"
	"gopherex.com/xmatch/internal/intake"
	"gopherex.com/xmatch/pkg/middleware"
	"gopherex.com/xmatch/pkg/ratelimit"
)

type Options struct {
	Service    string
	Engine     handler.Matcher
	LastTrade  gateway.LastTradeStore
	Ticks      intake.Ticks
	SubmitWait time.Duration
	Limiter    *ratelimit.Store // 为空不限流
	// 为空不挂 /metrics（测试里多次 new router，ginprom 重复注册会刷错误日志）
	Prometheus *ginprom.Prometheus
}

func NewRouter(opts Options) *gin.Engine {
	if opts.Service == "" {
		opts.Service = "matchd"
	}
	r := gin.New()
	// 监控
	if opts.Prometheus != nil {
		opts.Prometheus.Use(r)
	}
	r.Use(
		otelgin.Middleware(opts.Service),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
	)
	if opts.Limiter != nil {
		r.Use(middleware.RateLimit(opts.Limiter))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := r.Group("/api/v1")
	router.Orders(api, handler.NewOrder(opts.Engine, opts.Ticks, opts.SubmitWait))
	router.Books(api, handler.NewBook(opts.Engine, opts.LastTrade, opts.Ticks))
	return r
}

// NewPrometheus 全进程只能建一个：指标注册在默认 registry
func NewPrometheus() *ginprom.Prometheus {
	p := ginprom.NewPrometheus("xmatch")
	// 按路由模板聚合，/books/BTC-USDT 和 /books/ETH-USDT 算一条
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		if fp := c.FullPath(); fp != "" {
			return fp
		}
		return "unknown"
	}
	return p
}

func NewServer(addr string, h http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        h,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
