package metrics

import "github.com/prometheus/client_golang/prometheus"

// 需要显式注册的指标（测试里会多次 new router，避免 promauto 重复注册 panic）
var (
	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xmatch",
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"route"},
	)

	HTTPPanicTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "http_panic_total",
		Help:      "Handler panics recovered by middleware.",
	}, []string{"route"})

	RateLimitKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "xmatch",
		Name:      "ratelimit_keys",
		Help:      "Live rate limit buckets after the last sweep.",
	})
)

func MustRegister() {
	prometheus.MustRegister(RateLimitBlockTotal, HTTPPanicTotal, RateLimitKeys)
}
