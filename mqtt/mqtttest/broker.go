// Package mqtttest provides an in-memory mqtt.Writer and mqtt.Subscriber for tests.
package mqtttest

import (
	"context"
	"strings"
	"sync"

	"github.com/mephdrac/powergroup/mqtt"
)

// Message is a payload captured by Broker.WriteTopic.
type Message struct {
	Topic   string
	Options mqtt.WriteOptions
	Payload []byte
}

// Broker records every write and routes published payloads to subscribed handlers. Retained payloads are replayed to
// new subscriptions, like a real broker does.
type Broker struct {
	mu sync.Mutex

	messages []Message
	retained map[string][]byte
	handlers map[string]mqtt.Handler

	// Err is returned by WriteTopic when set.
	Err error
}

var _ mqtt.Client = &Broker{}

func New() *Broker {
	return &Broker{
		retained: map[string][]byte{},
		handlers: map[string]mqtt.Handler{},
	}
}

func (b *Broker) WriteTopic(_ context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	b.mu.Lock()
	if b.Err != nil {
		defer b.mu.Unlock()
		return b.Err
	}

	payload := append([]byte(nil), value...)
	b.messages = append(b.messages, Message{Topic: topic, Options: options, Payload: payload})
	if options.Retain {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = payload
		}
	}
	b.mu.Unlock()

	b.Deliver(topic, payload)
	return nil
}

func (b *Broker) Subscribe(_ context.Context, handler mqtt.Handler, subscriptions ...mqtt.Subscription) error {
	b.mu.Lock()
	var replay []Message
	for _, s := range subscriptions {
		b.handlers[s.Topic] = handler
		for topic, payload := range b.retained {
			if Match(s.Topic, topic) {
				replay = append(replay, Message{Topic: topic, Payload: payload})
			}
		}
	}
	b.mu.Unlock()

	for _, m := range replay {
		handler.ServeMQTT(b, m.Topic, m.Payload)
	}

	return nil
}

func (b *Broker) Unsubscribe(_ context.Context, topics ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range topics {
		delete(b.handlers, t)
	}

	return nil
}

// Deliver routes payload to every handler whose subscription matches topic without recording it.
func (b *Broker) Deliver(topic string, payload []byte) {
	b.mu.Lock()
	var matched []mqtt.Handler
	for filter, h := range b.handlers {
		if Match(filter, topic) {
			matched = append(matched, h)
		}
	}
	b.mu.Unlock()

	for _, h := range matched {
		h.ServeMQTT(b, topic, payload)
	}
}

// Messages returns a copy of every payload written so far.
func (b *Broker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Message(nil), b.messages...)
}

// Last returns the most recent payload written to topic.
func (b *Broker) Last(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.messages) - 1; i >= 0; i-- {
		if b.messages[i].Topic == topic {
			return b.messages[i].Payload, true
		}
	}

	return nil, false
}

// Retained returns the retained payload for topic.
func (b *Broker) Retained(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.retained[topic]
	return v, ok
}

// Match reports whether topic matches the subscription filter, honoring the + and # wildcards.
func Match(filter, topic string) bool {
	f := strings.Split(filter, mqtt.TopicSeparator)
	t := strings.Split(topic, mqtt.TopicSeparator)

	for i, level := range f {
		if level == "#" {
			return true
		}

		if i >= len(t) {
			return false
		}

		if level != "+" && level != t[i] {
			return false
		}
	}

	return len(f) == len(t)
}
