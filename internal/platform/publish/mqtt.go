package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTT publishes JSON messages at QoS 0 to topics named by prefix followed
// by the subject joined with "/".
type MQTT struct {
	client mqtt.Client
	prefix string
	wait   time.Duration
}

// NewMQTT connects to brokerURL (tcp://host:1883) and keeps the connection
// alive with automatic reconnects.
func NewMQTT(brokerURL, prefix string, logger zerolog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("ed-forecast-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return newMQTTWithClient(client, prefix), nil
}

func newMQTTWithClient(client mqtt.Client, prefix string) *MQTT {
	return &MQTT{client: client, prefix: prefix, wait: 2 * time.Second}
}

func (m *MQTT) Publish(ctx context.Context, subject Subject, payload interface{}) error {
	topic, err := subject.join("/")
	if err != nil {
		return err
	}
	if m.prefix != "" {
		topic = m.prefix + "/" + topic
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	token := m.client.Publish(topic, 0, false, data)
	wait := m.wait
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

func (m *MQTT) Backend() string { return "mqtt" }

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
