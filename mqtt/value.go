package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoMarshaler is returned by Value.Write when the Value was built without a ValueMarshaler.
	ErrNoMarshaler = errors.New("no marshaler configured")
	// ErrNeverWritten is returned by Value.Republish before the first Write.
	ErrNeverWritten = errors.New("value was never written")
)

// Value is something this process publishes to a topic, such as the state of a sensor. It remembers the last value
// written so it can be sent again. A Value is safe for concurrent use.
type Value[T any] struct {
	topic     string
	marshaler ValueMarshaler[T]
	opts      WriteOptions

	mu   sync.Mutex
	last *T
}

// NewValue constructs a Value for topic published with the zero WriteOptions.
func NewValue[T any](topic string, marshal ValueMarshaler[T]) *Value[T] {
	return NewValueWithOptions(topic, marshal, WriteOptions{})
}

// NewValueWithOptions constructs a Value for topic published with opts.
func NewValueWithOptions[T any](topic string, marshal ValueMarshaler[T], opts WriteOptions) *Value[T] {
	return &Value[T]{topic: topic, marshaler: marshal, opts: opts}
}

// Topic returns the topic of v below the prefix it is written under. A nil Value has no topic.
func (v *Value[T]) Topic() string {
	if v == nil {
		return ""
	}

	return v.topic
}

// FullyQualifiedTopic returns the topic v is written to under prefix, or "" for a nil Value so optional values can be
// passed around without checks.
func (v *Value[T]) FullyQualifiedTopic(prefix string) string {
	if v == nil {
		return ""
	}

	return JoinTopic(prefix, v.topic)
}

// Get returns the last value written and whether there was one.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.last == nil {
		var zero T
		return zero, false
	}

	return *v.last, true
}

// Write encodes value and publishes it under prefix. The value is remembered even if publishing fails, so a later
// Republish sends it again.
func (v *Value[T]) Write(ctx context.Context, w Writer, prefix string, value T) (T, error) {
	if v.marshaler == nil {
		return value, ErrNoMarshaler
	}

	data, err := v.marshaler(value)
	if err != nil {
		return value, fmt.Errorf("marshal %v for %s: %w", value, v.topic, err)
	}

	v.mu.Lock()
	v.last = &value
	v.mu.Unlock()

	return value, w.WriteTopic(ctx, v.FullyQualifiedTopic(prefix), v.opts, data)
}

// Republish writes the last value again.
func (v *Value[T]) Republish(ctx context.Context, w Writer, prefix string) (T, error) {
	current, ok := v.Get()
	if !ok {
		return current, ErrNeverWritten
	}

	return v.Write(ctx, w, prefix, current)
}
