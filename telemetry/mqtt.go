package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/edaniels/golog"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

const (
	connectTimeout = 5 * time.Second
	disconnectMs   = 250
)

// A Publisher sends snapshots somewhere. Publish must not block the control loop.
type Publisher interface {
	Publish(s Snapshot) error
}

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes snapshots to a single topic with QoS 0.
type MQTTPublisher struct {
	client client
	topic  string
	logger golog.Logger

	mu      sync.Mutex
	pending mqtt.Token
	failing bool
}

// Dial connects to broker and returns a publisher for topic.
func Dial(broker, clientID, topic string, logger golog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(mqtt.Client) {
		logger.Infow("connected to MQTT broker", "broker", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warnw("MQTT connection lost", "error", err)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.Disconnect(0)
		return nil, errors.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connecting to MQTT broker %s", broker)
	}
	return newMQTTPublisher(c, topic, logger), nil
}

func newMQTTPublisher(c client, topic string, logger golog.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: c, topic: topic, logger: logger}
}

// Topic returns the topic snapshots are published to.
func (p *MQTTPublisher) Topic() string {
	return p.topic
}

// Publish queues s. Delivery failures surface in the log on the following call.
func (p *MQTTPublisher) Publish(s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding telemetry")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkPending()
	p.pending = p.client.Publish(p.topic, 0, false, payload)
	return nil
}

func (p *MQTTPublisher) checkPending() {
	if p.pending == nil {
		return
	}
	select {
	case <-p.pending.Done():
	default:
		return
	}
	err := p.pending.Error()
	switch {
	case err != nil && !p.failing:
		p.logger.Warnw("telemetry publish error", "topic", p.topic, "error", err)
	case err == nil && p.failing:
		p.logger.Infow("telemetry publishing recovered", "topic", p.topic)
	}
	p.failing = err != nil
	p.pending = nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(disconnectMs)
	return nil
}
