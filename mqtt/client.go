package mqtt

import (
	"context"
	"log/slog"
)

// Writer publishes raw payloads.
type Writer interface {
	// WriteTopic publishes value to topic. A nil value with Retain set clears the retained message of topic.
	WriteTopic(ctx context.Context, topic string, options WriteOptions, value []byte) error
}

// Error drops the value half of a (value, error) pair, so several writes can be combined with errors.Join.
func Error[T any](_ T, err error) error {
	return err
}

// Subscription is a topic filter, which may contain wildcards, and the options it is subscribed with.
type Subscription struct {
	Topic   string
	Options ReadOptions
}

func (s Subscription) String() string {
	return s.Topic
}

func (s Subscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("topic", s.Topic),
		slog.Any("options", s.Options),
	)
}

// Handler receives the messages of a subscription, like http.Handler does for requests. Handlers are called from the
// connection's receive path, so they must return quickly and hand longer work to another goroutine. message is only
// valid until ServeMQTT returns.
type Handler interface {
	ServeMQTT(w Writer, topic string, message []byte)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(Writer, string, []byte)

func (f HandlerFunc) ServeMQTT(w Writer, topic string, message []byte) {
	f(w, topic, message)
}

// Subscriber routes messages matching subscriptions to handlers.
type Subscriber interface {
	// Subscribe sends the messages of every subscription to handler.
	Subscribe(ctx context.Context, handler Handler, subscriptions ...Subscription) error

	// Unsubscribe stops delivery for the given topic filters.
	Unsubscribe(ctx context.Context, topics ...string) error
}

// Client is a broker connection that can both publish and subscribe.
type Client interface {
	Writer
	Subscriber
}
