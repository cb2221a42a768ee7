package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/Brent1981/AIProject/internal/config"
	"github.com/Brent1981/AIProject/internal/metrics"
)

const (
	queueSize       = 64
	inboundLimit    = 100
	inboundInterval = time.Second
)

// ErrNotConnected is returned by Publish before the first connection.
var ErrNotConnected = errors.New("mqtt: not connected")

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
}

// Bridge is a unit of MQTT behaviour sharing the client's connection.
type Bridge interface {
	// Name labels the bridge in logs and metrics.
	Name() string
	// Subscriptions lists the topic filters the bridge handles.
	Subscriptions() []string
	// OnConnect runs after every (re-)connect, after subscribing.
	OnConnect(ctx context.Context, pub Publisher)
	// HandleMessage is called for each message matching a subscription.
	HandleMessage(ctx context.Context, pub Publisher, topic string, payload []byte)
}

// Runner is implemented by bridges that need a background loop for the
// lifetime of the client.
type Runner interface {
	Run(ctx context.Context, pub Publisher)
}

type message struct {
	topic   string
	payload []byte
}

type registration struct {
	bridge  Bridge
	filters []string
	queue   chan message
	pub     Publisher
}

// Client owns the broker connection and fans messages out to bridges.
type Client struct {
	cfg          config.MQTTConfig
	availability string
	bridges      []*registration
	limiter      *messageRateLimiter
	metrics      *metrics.Metrics
	logger       *slog.Logger
	cm           atomic.Pointer[autopaho.ConnectionManager]
}

// NewClient creates a Client but does not connect. availabilityTopic
// receives the retained online/offline status and the will message.
func NewClient(cfg config.MQTTConfig, availabilityTopic string, logger *slog.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mqtt")
	return &Client{
		cfg:          cfg,
		availability: availabilityTopic,
		limiter:      newMessageRateLimiter(inboundLimit, inboundInterval, logger),
		metrics:      m,
		logger:       logger,
	}
}

// Register adds a bridge. It must be called before Start.
func (c *Client) Register(b Bridge) {
	reg := &registration{
		bridge:  b,
		filters: b.Subscriptions(),
		queue:   make(chan message, queueSize),
	}
	reg.pub = &bridgePublisher{client: c, bridge: b.Name()}
	c.bridges = append(c.bridges, reg)
}

// Start connects to the broker and blocks until ctx is cancelled.
// Connection failures are retried in the background.
func (c *Client) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(c.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: c.cfg.Username,
		ConnectPassword: []byte(c.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   c.availability,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.cm.Store(cm)
			c.logger.Info("mqtt connected to broker", "broker", c.cfg.Broker)
			c.onConnect(ctx, cm)
		},
		OnConnectError: func(err error) {
			c.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					c.dispatch(pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				c.logger.Warn("mqtt client error", "error", err)
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := cm.AwaitConnection(connCtx); err != nil {
		c.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	connCancel()

	c.run(ctx)
	return nil
}

// run starts the per-bridge workers and blocks until ctx is done.
func (c *Client) run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.limiter.start(ctx)
	}()

	for _, reg := range c.bridges {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.drain(ctx, reg)
		}()
		if r, ok := reg.bridge.(Runner); ok {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Run(ctx, reg.pub)
			}()
		}
	}

	wg.Wait()
}

// Stop publishes "offline" and disconnects.
func (c *Client) Stop(ctx context.Context) error {
	cm := c.cm.Load()
	if cm == nil {
		return nil
	}
	c.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

// AwaitConnection blocks until the broker connection is up or ctx
// expires.
func (c *Client) AwaitConnection(ctx context.Context) error {
	cm := c.cm.Load()
	if cm == nil {
		return ErrNotConnected
	}
	return cm.AwaitConnection(ctx)
}

// Publish sends a QoS 1 message.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	cm := c.cm.Load()
	if cm == nil {
		return ErrNotConnected
	}
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  retain,
	})
	return err
}

func (c *Client) onConnect(ctx context.Context, cm *autopaho.ConnectionManager) {
	var subs []paho.SubscribeOptions
	for _, reg := range c.bridges {
		for _, f := range reg.filters {
			subs = append(subs, paho.SubscribeOptions{Topic: f, QoS: 1})
		}
	}
	if len(subs) > 0 {
		if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
			c.logger.Error("mqtt subscribe failed", "error", err)
		} else {
			c.logger.Debug("mqtt subscribed", "filters", len(subs))
		}
	}

	c.publishAvailability(ctx, cm, "online")

	for _, reg := range c.bridges {
		reg.bridge.OnConnect(ctx, reg.pub)
	}
}

func (c *Client) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   c.availability,
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		c.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
		return
	}
	c.logger.Info("mqtt availability published", "status", status)
}

// dispatch queues an inbound message for every bridge whose filters
// match. It never blocks: full queues drop the message.
func (c *Client) dispatch(topic string, payload []byte) {
	if !c.limiter.allow() {
		return
	}
	for _, reg := range c.bridges {
		if !reg.matches(topic) {
			continue
		}
		select {
		case reg.queue <- message{topic: topic, payload: payload}:
			c.metrics.MQTTMessage(reg.bridge.Name(), "in")
		default:
			c.logger.Warn("mqtt bridge queue full, dropping message",
				"bridge", reg.bridge.Name(), "topic", topic)
		}
	}
}

func (c *Client) drain(ctx context.Context, reg *registration) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-reg.queue:
			c.handle(ctx, reg, msg)
		}
	}
}

func (c *Client) handle(ctx context.Context, reg *registration, msg message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("mqtt handler panicked",
				"bridge", reg.bridge.Name(), "topic", msg.topic, "panic", r)
		}
	}()
	reg.bridge.HandleMessage(ctx, reg.pub, msg.topic, msg.payload)
}

func (r *registration) matches(topic string) bool {
	for _, f := range r.filters {
		if TopicMatches(f, topic) {
			return true
		}
	}
	return false
}

// bridgePublisher attributes outbound messages to a bridge in metrics.
type bridgePublisher struct {
	client *Client
	bridge string
}

func (p *bridgePublisher) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	err := p.client.Publish(ctx, topic, payload, retain)
	if err == nil {
		p.client.metrics.MQTTMessage(p.bridge, "out")
	}
	return err
}
