package discovery

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"time"

	"github.com/mephdrac/powergroup/mqtt"
)

var (
	// ErrValueRequired is returned for a required field that holds the zero value of its type.
	ErrValueRequired = errors.New("value is required")
	// ErrTopicRequired is returned for a required topic that is empty, usually because its mqtt.Value is nil.
	ErrTopicRequired = errors.New("topic is required")

	// Marshalers encode standard library types the way discovery payloads expect them: URLs as strings and durations
	// as whole seconds.
	Marshalers = json.JoinMarshalers(
		json.MarshalToFunc(func(e *jsontext.Encoder, u *url.URL) error {
			return e.WriteToken(jsontext.String(u.String()))
		}),
		json.MarshalToFunc(func(e *jsontext.Encoder, d time.Duration) error {
			return e.WriteToken(jsontext.Int(int64(d.Seconds())))
		}),
	)
)

func writeField(e *jsontext.Encoder, k string, v any) error {
	return errors.Join(
		e.WriteToken(jsontext.String(k)),
		json.MarshalEncode(e, v, json.WithMarshalers(Marshalers)),
	)
}

// MaybeMarshalTopic writes k unless topic is empty.
func MaybeMarshalTopic(e *jsontext.Encoder, k string, topic string) error {
	if topic == "" {
		return nil
	}

	return errors.Join(
		e.WriteToken(jsontext.String(k)),
		e.WriteToken(jsontext.String(topic)),
	)
}

// MarshalRequiredTopic writes k, or fails with ErrTopicRequired if topic is empty. name identifies the field in the
// error.
func MarshalRequiredTopic(name string, e *jsontext.Encoder, k string, topic string) error {
	if topic == "" {
		return fmt.Errorf("%s: %w", name, ErrTopicRequired)
	}

	return MaybeMarshalTopic(e, k, topic)
}

// MaybeMarshalValueTopic writes the topic of v under prefix unless v is nil.
func MaybeMarshalValueTopic[T any](e *jsontext.Encoder, k string, v *mqtt.Value[T], prefix string) error {
	return MaybeMarshalTopic(e, k, v.FullyQualifiedTopic(prefix))
}

// MarshalRequiredValueTopic writes the topic of v under prefix, or fails with ErrTopicRequired if v is nil.
func MarshalRequiredValueTopic[T any](name string, e *jsontext.Encoder, k string, v *mqtt.Value[T], prefix string) error {
	return MarshalRequiredTopic(name, e, k, v.FullyQualifiedTopic(prefix))
}

// MaybeMarshalStd writes *v with Marshalers unless v is nil.
func MaybeMarshalStd[T any](e *jsontext.Encoder, k string, v *T) error {
	if v == nil {
		return nil
	}

	return writeField(e, k, v)
}

// MarshalStd writes *v with Marshalers, or fails with ErrValueRequired if v is nil.
func MarshalStd[T any](name string, e *jsontext.Encoder, k string, v *T) error {
	if v == nil {
		return fmt.Errorf("%s: %w", name, ErrValueRequired)
	}

	return writeField(e, k, v)
}

// MaybeMarshalStdSlice writes v unless it is empty.
func MaybeMarshalStdSlice[T any](e *jsontext.Encoder, k string, v []T) error {
	if len(v) == 0 {
		return nil
	}

	return writeField(e, k, v)
}

// MaybeMarshalStdComparable writes v unless it is the zero value.
func MaybeMarshalStdComparable[T comparable](e *jsontext.Encoder, k string, v T) error {
	var zero T
	if v == zero {
		return nil
	}

	return writeField(e, k, v)
}

// MarshalStdComparable writes v, or fails with ErrValueRequired if it is the zero value.
func MarshalStdComparable[T comparable](name string, e *jsontext.Encoder, k string, v T) error {
	var zero T
	if v == zero {
		return fmt.Errorf("%s: %w", name, ErrValueRequired)
	}

	return writeField(e, k, v)
}

// MaybeInlineMarshalStd writes every entry of v as a field of the object being encoded, in key order.
func MaybeInlineMarshalStd[T any, TMap ~map[string]T](e *jsontext.Encoder, v TMap) error {
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(v)) {
		errs = append(errs, writeField(e, k, v[k]))
	}

	return errors.Join(errs...)
}
