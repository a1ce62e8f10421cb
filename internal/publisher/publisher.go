// Package publisher mirrors printer snapshots to an MQTT broker.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"printerbot/internal/config"
	"printerbot/internal/logger"
	"printerbot/internal/printer"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectWait = 250 // ms

	availabilitySuffix = "/availability"
	payloadOnline      = "online"
	payloadOffline     = "offline"
)

// ErrNoBroker is returned by Dial when no broker is configured.
var ErrNoBroker = errors.New("mqtt broker not configured")

// Client is the subset of an MQTT connection the publisher uses.
type Client interface {
	Publish(topic string, retained bool, payload []byte) error
	Close()
}

// Publisher sends a retained snapshot to the state topic whenever it changes.
type Publisher struct {
	client Client
	topic  string
	log    *logger.Logger
	last   []byte
}

// New wraps an established client.
func New(client Client, topic string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{client: client, topic: topic, log: log.Named("mqtt")}
}

// Publish sends snap unless it matches the previous payload.
func (p *Publisher) Publish(snap printer.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if bytes.Equal(payload, p.last) {
		return nil
	}
	if err := p.client.Publish(p.topic, true, payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	p.last = payload
	return nil
}

// Run publishes src() every tick until ctx is done, then marks the bot
// offline and closes the client.
func (p *Publisher) Run(ctx context.Context, tick time.Duration, src func() printer.Snapshot) {
	defer p.client.Close()

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		if err := p.Publish(src()); err != nil {
			p.log.Warnw("mqtt_publish_failed", "err", err)
		}
		select {
		case <-ctx.Done():
			if err := p.client.Publish(p.topic+availabilitySuffix, true, []byte(payloadOffline)); err != nil {
				p.log.Debugw("mqtt_offline_failed", "err", err)
			}
			return
		case <-t.C:
		}
	}
}

type pahoClient struct {
	client mqtt.Client
}

func (c *pahoClient) Publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timed out")
	}
	return token.Error()
}

func (c *pahoClient) Close() {
	c.client.Disconnect(disconnectWait)
}

// Dial connects to the configured broker. The connection announces itself on
// the availability topic and leaves a will that marks it offline.
func Dial(cfg config.MQTT, log *logger.Logger) (*Publisher, error) {
	broker := strings.TrimSpace(cfg.Broker)
	if broker == "" {
		return nil, ErrNoBroker
	}
	availability := cfg.Topic + availabilitySuffix

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(availability, payloadOffline, 0, true)
	opts.OnConnect = func(c mqtt.Client) {
		c.Publish(availability, 0, true, payloadOnline)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	return New(&pahoClient{client: client}, cfg.Topic, log), nil
}
