package executor

import (
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPlayer publishes scenario messages to the broker
type MQTTPlayer struct {
	client pahomqtt.Client
	logger *slog.Logger
}

// NewMQTTPlayer connects a publishing client
func NewMQTTPlayer(broker string, logger *slog.Logger) (*MQTTPlayer, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("ea-scenario-player-%d", time.Now().UnixNano()))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Info("Scenario player connected", "broker", broker)
	return &MQTTPlayer{client: client, logger: logger}, nil
}

// Publish sends payload with QoS 1 and waits for the broker
func (p *MQTTPlayer) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *MQTTPlayer) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
