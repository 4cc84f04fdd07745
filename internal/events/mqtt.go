package events

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/config"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("events: mqtt not connected")

// connectWait bounds how long DialMQTT waits for the first connection.
const connectWait = 5 * time.Second

// MQTT publishes payloads to a broker. The client reconnects on its own; while
// it is down Publish fails fast.
type MQTT struct {
	client    mqtt.Client
	qos       byte
	timeout   time.Duration
	connected atomic.Bool
	logger    *zap.Logger
}

// DialMQTT connects to cfg.Broker as clientID. A broker that does not answer
// within a few seconds is not an error: the client keeps retrying in the
// background and Publish reports ErrNotConnected until it succeeds.
func DialMQTT(cfg config.EventsConfig, clientID string, logger *zap.Logger) (*MQTT, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MQTT{qos: cfg.QoS, timeout: cfg.Timeout, logger: logger}
	if m.timeout <= 0 {
		m.timeout = 2 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		m.connected.Store(true)
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.connected.Store(false)
		logger.Warn("mqtt connection lost, reconnecting", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(connectWait) {
		logger.Warn("mqtt broker not reachable yet, retrying in background", zap.String("broker", cfg.Broker))
		return m, nil
	}
	if err := token.Error(); err != nil {
		m.client.Disconnect(0)
		return nil, fmt.Errorf("events: mqtt connect %s: %w", cfg.Broker, err)
	}
	m.connected.Store(true)
	return m, nil
}

// Publish sends payload to topic and waits for the client to hand it off.
func (m *MQTT) Publish(topic string, payload []byte) error {
	if !m.connected.Load() {
		return ErrNotConnected
	}
	token := m.client.Publish(topic, m.qos, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("events: publish %s: timeout after %v", topic, m.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("events: publish %s: %w", topic, err)
	}
	return nil
}

// Connected reports whether the broker connection is up.
func (m *MQTT) Connected() bool { return m.connected.Load() }

// Close disconnects, allowing a short grace period for in-flight messages.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
	m.connected.Store(false)
	m.logger.Info("mqtt disconnected")
}
