package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher sends advisor output to session topics
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Subscriber receives dashboard input from session topics
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// Client is the broker connection shared by the agent and the health checker
type Client interface {
	Publisher
	Subscriber

	// Connect blocks until the broker accepts the connection or ctx ends
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// MessageHandler receives one inbound message
type MessageHandler func(Message)

// Message is an inbound message on an ea/{session}/... topic
type Message interface {
	Topic() string
	Payload() []byte
	Ack()
}

// PublishJSON marshals v and publishes it unretained
func PublishJSON(p Publisher, topic string, qos byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}
	return p.Publish(topic, qos, false, payload)
}
