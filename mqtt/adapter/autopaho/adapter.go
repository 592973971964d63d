// Package autopaho connects the mqtt package to a broker using the eclipse paho autopaho client.
package autopaho

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	pglog "github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/mqtt"
)

// Connection is a managed broker connection that reconnects on its own. Subscriptions are remembered and sent again
// after every reconnect, since the session may have expired in the meantime.
type Connection struct {
	cm     *autopaho.ConnectionManager
	router *paho.StandardRouter

	mu            sync.Mutex
	subscriptions map[string]paho.SubscribeOptions

	log *slog.Logger
}

var _ mqtt.Client = &Connection{}

// Dial starts a connection described by config and waits until it is up or ctx is done. Callbacks in config are kept,
// OnConnectionUp is wrapped to restore subscriptions first.
func Dial(ctx context.Context, config autopaho.ClientConfig) (*Connection, error) {
	c := &Connection{
		router:        paho.NewStandardRouter(),
		subscriptions: map[string]paho.SubscribeOptions{},

		log: pglog.ForComponent("autopaho"),
	}

	onConnectionUp := config.OnConnectionUp
	config.OnConnectionUp = func(cm *autopaho.ConnectionManager, connack *paho.Connack) {
		c.resubscribe(ctx, cm)

		if onConnectionUp != nil {
			onConnectionUp(cm, connack)
		}
	}

	config.OnPublishReceived = append(config.OnPublishReceived, func(rx autopaho.PublishReceived) (bool, error) {
		c.router.Route(rx.Packet.Packet())
		return true, nil
	})

	cm, err := autopaho.NewConnection(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	c.mu.Lock()
	c.cm = cm
	c.mu.Unlock()

	if err = cm.AwaitConnection(ctx); err != nil {
		return nil, fmt.Errorf("mqtt: wait for connection: %w", err)
	}

	return c, nil
}

// Disconnect closes the connection. No handler is called after it returns.
func (c *Connection) Disconnect(ctx context.Context) error {
	return c.cm.Disconnect(ctx)
}

func (c *Connection) resubscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	c.mu.Lock()
	subs := slices.Collect(maps.Values(c.subscriptions))
	c.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	c.log.With(slog.Int("subscriptions", len(subs))).Debug("Restoring subscriptions")
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		// The next reconnect tries again.
		c.log.With(pglog.Error(err)).Error("Failed to restore mqtt subscriptions")
	}
}

func (c *Connection) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	c.log.With(slog.String("topic", topic), slog.Any("options", options), slog.Int("size", len(value))).Debug("Publishing")

	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(options.QoS),
		Retain:  options.Retain,
		Payload: value,
	})

	return err
}

func (c *Connection) Subscribe(ctx context.Context, handler mqtt.Handler, subscriptions ...mqtt.Subscription) error {
	if len(subscriptions) == 0 {
		return nil
	}

	opts := make([]paho.SubscribeOptions, 0, len(subscriptions))

	c.mu.Lock()
	for _, s := range subscriptions {
		o := paho.SubscribeOptions{
			Topic:             s.Topic,
			QoS:               byte(s.Options.QoS),
			RetainHandling:    byte(s.Options.RetainHandling),
			NoLocal:           s.Options.NoLocal,
			RetainAsPublished: s.Options.RetainAsPublished,
		}

		c.subscriptions[s.Topic] = o
		opts = append(opts, o)

		c.router.RegisterHandler(s.Topic, func(p *paho.Publish) {
			handler.ServeMQTT(c, p.Topic, p.Payload)
		})
	}
	c.mu.Unlock()

	c.log.With(slog.Any("subscriptions", subscriptions)).Debug("Subscribing")
	_, err := c.cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: opts})
	return err
}

func (c *Connection) Unsubscribe(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}

	c.mu.Lock()
	for _, t := range topics {
		delete(c.subscriptions, t)
		c.router.UnregisterHandler(t)
	}
	c.mu.Unlock()

	c.log.With(slog.Any("topics", topics)).Debug("Unsubscribing")
	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: topics})
	return err
}
