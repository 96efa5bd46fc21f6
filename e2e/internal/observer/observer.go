package observer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/saaga0h/ea-advisor/pkg/mqtt"
)

// CapturedMessage represents a single MQTT message captured during observation
type CapturedMessage struct {
	Timestamp time.Time   `json:"timestamp"`
	Topic     string      `json:"topic"`
	Payload   interface{} `json:"payload"`
}

// Topic returns the full topic of a session suffix
func Topic(session, suffix string) string {
	return mqtt.SessionTopic(session, suffix)
}

// Latest returns the most recent message on topic
func Latest(messages []CapturedMessage, topic string) (CapturedMessage, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Topic == topic {
			return messages[i], true
		}
	}
	return CapturedMessage{}, false
}

// Observer captures all traffic of one advisor session
type Observer struct {
	client    pahomqtt.Client
	broker    string
	session   string
	startTime time.Time
	logger    *slog.Logger

	mu       sync.RWMutex
	messages []CapturedMessage
}

// NewObserver creates an observer for ea/{session}/#
func NewObserver(broker, session string, logger *slog.Logger) *Observer {
	return &Observer{
		broker:  broker,
		session: session,
		logger:  logger,
	}
}

// Start connects and subscribes
func (o *Observer) Start() error {
	o.startTime = time.Now()
	filter := Topic(o.session, "#")

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.broker)
	opts.SetClientID(fmt.Sprintf("ea-observer-%s-%d", o.session, o.startTime.UnixNano()))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
		o.logger.Warn("Observer connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		token := client.Subscribe(filter, 0, o.handle)
		token.Wait()
		if token.Error() != nil {
			o.logger.Error("Observer subscribe failed", "filter", filter, "error", token.Error())
			return
		}
		o.logger.Info("Observer subscribed", "filter", filter)
	})

	o.client = pahomqtt.NewClient(opts)
	token := o.client.Connect()
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

func (o *Observer) handle(_ pahomqtt.Client, msg pahomqtt.Message) {
	o.Record(msg.Topic(), msg.Payload())
}

// Record stores one message; payloads that are not JSON are kept as strings
func (o *Observer) Record(topic string, raw []byte) {
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		payload = string(raw)
	}

	o.mu.Lock()
	o.messages = append(o.messages, CapturedMessage{Timestamp: time.Now(), Topic: topic, Payload: payload})
	o.mu.Unlock()

	o.logger.Debug("Captured", "elapsed", time.Since(o.startTime).Round(time.Millisecond), "topic", topic, "bytes", len(raw))
}

// Messages returns a copy of everything captured so far
func (o *Observer) Messages() []CapturedMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]CapturedMessage, len(o.messages))
	copy(out, o.messages)
	return out
}

// SaveCapture writes the capture as indented JSON, creating directories as needed
func (o *Observer) SaveCapture(filename string) error {
	data, err := json.MarshalIndent(o.Messages(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	return nil
}

// Stop disconnects from the MQTT broker
func (o *Observer) Stop() {
	if o.client != nil && o.client.IsConnected() {
		o.client.Disconnect(250)
	}
}
