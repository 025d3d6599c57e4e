package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Item is the JSON payload of MQTT and Kafka deliveries.
type Item struct {
	Source string    `json:"source"`
	Key    string    `json:"key"`
	Value  string    `json:"value"`
	Time   time.Time `json:"time"`
}

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSender publishes items to <topic>/<key>.
type MQTTSender struct {
	client mqttPublisher
	topic  string
	source string
	closer func()
}

// DialMQTT connects to broker and returns a sender publishing under topic.
func DialMQTT(ctx context.Context, broker, clientID, topic, source string, log *slog.Logger) (*MQTTSender, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return &MQTTSender{
		client: client,
		topic:  topic,
		source: source,
		closer: func() { client.Disconnect(250) },
	}, nil
}

// Name implements Sender.
func (m *MQTTSender) Name() string { return "mqtt" }

// Send implements Sender.
func (m *MQTTSender) Send(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(Item{Source: m.source, Key: key, Value: value, Time: time.Now().UTC()})
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic+"/"+key, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %s: %w", key, ctx.Err())
	}
	return token.Error()
}

// Close implements Sender.
func (m *MQTTSender) Close() error {
	if m.closer != nil {
		m.closer()
	}
	return nil
}
