package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "engine_commands_total",
		Help:      "Commands applied by symbol actors",
	}, []string{"symbol", "kind", "result"}) // result: ok/rejected/error

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "engine_matches_total",
		Help:      "Matching results with executed quantity > 0",
	}, []string{"symbol"})

	ExecutedQtyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "engine_executed_qty_total",
		Help:      "Total executed quantity",
	}, []string{"symbol"})

	CrossedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "engine_crossed_book_total",
		Help:      "Times a book was observed crossed after an event",
	}, []string{"symbol"})

	MailboxFullTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "engine_mailbox_full_total",
		Help:      "Commands rejected because the actor mailbox was full",
	}, []string{"symbol"})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xmatch",
		Name:      "engine_events_dropped_total",
		Help:      "Events dropped because the event bus was full",
	}, []string{"symbol"})

	Books = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "xmatch",
		Name:      "engine_books",
		Help:      "Active symbol actors",
	})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "xmatch",
		Name:      "engine_batch_size",
		Help:      "Commands drained from the mailbox per actor turn",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1 ~ 512
	})

	WALFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "xmatch",
		Name:      "engine_wal_flush_seconds",
		Help:      "cmd.wal flush+fsync latency",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 100us ~ 1.6s
	})
)
