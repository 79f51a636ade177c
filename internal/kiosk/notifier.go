// Package kiosk pushes CareLoop events to the kiosk device over MQTT.
// The device subscribes to its topic prefix and wakes the speaker when
// a new action is queued, instead of polling the HTTP API.
package kiosk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/events"
)

// Notifier manages the MQTT connection and forwards bus events to the
// broker. It publishes a retained availability message and uses a will
// so the device can tell a crashed backend from a quiet one.
type Notifier struct {
	cfg    config.MQTTConfig
	bus    *events.Bus
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Notifier but does not connect. Call [Notifier.Start]
// to begin forwarding events.
func New(cfg config.MQTTConfig, bus *events.Bus, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With("component", "kiosk"),
	}
}

// Start begins connecting to the broker and forwards bus events in the
// background until ctx is cancelled. It returns once the connection
// manager is running; autopaho retries the broker on its own.
func (n *Notifier) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(n.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := n.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: n.cfg.Username,
		ConnectPassword: []byte(n.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			n.logger.Info("mqtt connected to broker", "broker", n.cfg.Broker)
			n.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			n.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "careloop-" + n.cfg.DeviceName,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	n.cm = cm

	go func() {
		connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := cm.AwaitConnection(connCtx); err != nil {
			// autopaho keeps retrying in the background.
			n.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
		}
		connCancel()
		n.forward(ctx)
	}()
	return nil
}

// Stop publishes an "offline" availability message and disconnects.
func (n *Notifier) Stop(ctx context.Context) error {
	if n.cm == nil {
		return nil
	}
	n.publishAvailability(ctx, n.cm, "offline")
	return n.cm.Disconnect(ctx)
}

// forward subscribes to the bus and relays kiosk-relevant events until
// ctx is cancelled.
func (n *Notifier) forward(ctx context.Context) {
	ch := n.bus.Subscribe(64)
	defer n.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !kioskRelevant(ev.Kind) {
				continue
			}
			n.publishEvent(ctx, ev)
		}
	}
}

// kioskRelevant filters the bus down to what wakes the device.
func kioskRelevant(kind string) bool {
	switch kind {
	case events.KindActionQueued, events.KindReminderDelivered:
		return true
	}
	return false
}

func (n *Notifier) publishEvent(ctx context.Context, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("mqtt marshal event", "kind", ev.Kind, "error", err)
		return
	}

	topic := n.baseTopic() + "/" + ev.Kind
	if _, err := n.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
	}); err != nil {
		n.logger.Warn("mqtt event publish failed", "topic", topic, "error", err)
		return
	}
	n.logger.Debug("mqtt event published", "topic", topic)
}

func (n *Notifier) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   n.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		n.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
		return
	}
	n.logger.Info("mqtt availability published", "status", status)
}

func (n *Notifier) baseTopic() string {
	return n.cfg.TopicPrefix + "/" + n.cfg.DeviceName
}

func (n *Notifier) availabilityTopic() string {
	return n.baseTopic() + "/availability"
}
