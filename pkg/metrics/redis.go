package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RedisCmdDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xmatch",
		Name:      "redis_cmd_duration_seconds",
		Help:      "Redis command latency",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"cmd", "status"})
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "redis_errors_total",
		Help:      "Redis errors",
	}, []string{"cmd"})

	BrokerPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "broker_publish_total",
		Help:      "Events published to the broker",
	}, []string{"result"})
)
