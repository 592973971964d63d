package mqtt

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/mephdrac/powergroup/log"
)

type watcher[T any] struct {
	id int
	fn func(T)
}

// RemoteValue is something another client publishes to a topic, such as the status of Home Assistant. It is a Handler
// that keeps the last value received and notifies watchers. A RemoteValue is safe for concurrent use.
type RemoteValue[T any] struct {
	topic       string
	unmarshaler ValueUnmarshaler[T]
	opts        ReadOptions

	mu       sync.Mutex
	last     *T
	watchers []watcher[T]
	nextID   int

	log *slog.Logger
}

var _ Handler = &RemoteValue[string]{}

// NewRemoteValue constructs a RemoteValue for topic subscribed with the zero ReadOptions. A nil unmarshaler decodes
// payloads as JSON.
func NewRemoteValue[T any](topic string, unmarshaler ValueUnmarshaler[T]) *RemoteValue[T] {
	return NewRemoteValueWithOptions(topic, unmarshaler, ReadOptions{})
}

// NewRemoteValueWithOptions constructs a RemoteValue for topic subscribed with opts.
func NewRemoteValueWithOptions[T any](topic string, unmarshaler ValueUnmarshaler[T], opts ReadOptions) *RemoteValue[T] {
	if unmarshaler == nil {
		unmarshaler = JsonValueUnmarshaler[T]()
	}

	return &RemoteValue[T]{
		topic:       topic,
		unmarshaler: unmarshaler,
		opts:        opts,

		log: log.ForComponent("mqtt.remote").With(slog.String("topic", topic)),
	}
}

// FullyQualifiedTopic returns the topic of v under prefix, or "" for a nil RemoteValue.
func (v *RemoteValue[T]) FullyQualifiedTopic(prefix string) string {
	if v == nil {
		return ""
	}

	return JoinTopic(prefix, v.topic)
}

// AppendSubscribeOptions appends the subscription v needs to existing. Nil values and values without a topic append
// nothing.
func (v *RemoteValue[T]) AppendSubscribeOptions(existing []Subscription, prefix string) []Subscription {
	if v == nil || v.topic == "" {
		return existing
	}

	return append(existing, Subscription{Topic: v.FullyQualifiedTopic(prefix), Options: v.opts})
}

// ServeMQTT decodes payloads published to the topic of v and passes them to every watcher, in the order the watchers
// were added. Payloads of other topics are ignored, undecodable ones are logged and dropped.
func (v *RemoteValue[T]) ServeMQTT(_ Writer, topic string, payload []byte) {
	if v == nil || topic != v.topic {
		return
	}

	parsed, err := v.unmarshaler(payload)
	if err != nil {
		v.log.With(log.Error(err)).Warn("Failed to unmarshal payload from mqtt")
		return
	}

	v.mu.Lock()
	v.last = &parsed
	watchers := slices.Clone(v.watchers)
	v.mu.Unlock()

	v.log.With(slog.Any("value", parsed), slog.Int("watchers", len(watchers))).Debug("Received value")
	for _, w := range watchers {
		w.fn(parsed)
	}
}

// Get returns the last value received and whether there was one.
func (v *RemoteValue[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.last == nil {
		var zero T
		return zero, false
	}

	return *v.last, true
}

// Watch calls fn with every value received from now on and returns an id for Unwatch. fn runs on the receive path of
// the connection and must not block.
func (v *RemoteValue[T]) Watch(fn func(T)) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	v.watchers = append(v.watchers, watcher[T]{id: id, fn: fn})

	return id
}

// Unwatch removes a watcher. Unknown ids are ignored.
func (v *RemoteValue[T]) Unwatch(id int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.watchers = slices.DeleteFunc(v.watchers, func(w watcher[T]) bool { return w.id == id })
}

// DesiredValue returns a predicate for Await that matches want.
func DesiredValue[T comparable](want T) func(T) bool {
	return func(got T) bool {
		return got == want
	}
}

// Await waits until v holds a value matching desired and returns it. A value received before the call counts. It
// returns the cause of ctx if ctx is done first.
func (v *RemoteValue[T]) Await(ctx context.Context, desired func(T) bool) (T, error) {
	found := make(chan T, 1)
	id := v.Watch(func(t T) {
		if !desired(t) {
			return
		}

		select {
		case found <- t:
		default:
		}
	})
	defer v.Unwatch(id)

	if current, ok := v.Get(); ok && desired(current) {
		return current, nil
	}

	select {
	case got := <-found:
		return got, nil
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	}
}
