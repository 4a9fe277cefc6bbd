package gateway

import "context"

type Message struct {
	Topic   string
	Payload []byte
}

// Broker 撮合事件对外扇出：单机用 MemBroker，多机用 NatsBroker
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topics []string) (<-chan Message, error)
	Close() error
}

const topicPrefix = "xmatch:events:"

// Topic 每个交易对一个 topic：xmatch:events:<symbol>
func Topic(symbol string) string { return topicPrefix + symbol }
