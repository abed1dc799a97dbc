// Package mqtt connects the engine to an MQTT broker: remote commands come in
// on <prefix>/commands, journal events and status snapshots go out.
package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/config"
)

// Client wraps the Paho MQTT client. Subscriptions are remembered and
// restored after every reconnect.
type Client struct {
	client paho.Client
	url    string
	log    *zap.Logger

	mu   sync.Mutex
	subs map[string]paho.MessageHandler
}

// NewClient creates a new MQTT client but does not connect. The broker keeps
// a retained "false" on <prefix>/online as last will.
func NewClient(cfg config.MQTTConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		url:  cfg.URL,
		log:  log,
		subs: make(map[string]paho.MessageHandler),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetKeepAlive(30*time.Second).
		SetWill(cfg.TopicPrefix+"/online", "false", 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", zap.String("broker", cfg.URL), zap.Error(err))
		})

	c.client = paho.NewClient(opts)
	return c
}

// onConnect restores subscriptions. Paho calls it on the first connect and
// after each automatic reconnect.
func (c *Client) onConnect(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		token := pc.Subscribe(topic, 1, h)
		if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
			c.log.Warn("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
	c.log.Info("mqtt connected", zap.String("broker", c.url), zap.Int("subscriptions", len(subs)))
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnected() {
		return nil
	}
	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return &TimeoutError{Op: "subscribe", Topic: topic}
	}
	return token.Error()
}

// Publish sends payload at QoS 1.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// TimeoutError indicates a subscribe or publish timed out.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Topic
}
