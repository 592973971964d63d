package mqtt

import (
	"fmt"
	"log/slog"
)

// QualityOfService is the delivery guarantee of a publish or subscription.
type QualityOfService uint8

const (
	// QOSAtMostOnce is fire and forget. It is the zero value.
	QOSAtMostOnce QualityOfService = iota
	// QOSAtLeastOnce waits for a PUBACK and may deliver duplicates.
	QOSAtLeastOnce
	// QOSExactlyOnce uses the PUBREC/PUBREL/PUBCOMP handshake.
	QOSExactlyOnce
)

var qosNames = [...]string{
	QOSAtMostOnce:  "at most once (0)",
	QOSAtLeastOnce: "at least once (1)",
	QOSExactlyOnce: "exactly once (2)",
}

func (q QualityOfService) String() string {
	if int(q) >= len(qosNames) {
		return fmt.Sprintf("invalid qos (%d)", q)
	}

	return qosNames[q]
}

func (q QualityOfService) LogValue() slog.Value {
	return slog.StringValue(q.String())
}

// WriteOptions control how a message is published. The zero value publishes with QoS 0 and without retain.
type WriteOptions struct {
	QoS QualityOfService

	// Retain makes the broker keep the message and hand it to every future subscriber of the topic. Sensor states are
	// retained so Home Assistant sees them after it restarts.
	Retain bool
}

func (w WriteOptions) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("qos", w.QoS),
		slog.Bool("retain", w.Retain),
	)
}

// RetainHandling tells the broker when to send retained messages to a new subscription.
type RetainHandling uint8

const (
	// RetainHandlingSendOnSubscribe sends retained messages on every subscribe, including re-subscribes after a
	// reconnect. It is the zero value.
	RetainHandlingSendOnSubscribe RetainHandling = iota
	// RetainHandlingSendOnNewSubscribe only sends them if the subscription did not exist yet.
	RetainHandlingSendOnNewSubscribe
	// RetainHandlingIgnoreRetained never sends them.
	RetainHandlingIgnoreRetained
)

var retainHandlingNames = [...]string{
	RetainHandlingSendOnSubscribe:    "send on subscribe (0)",
	RetainHandlingSendOnNewSubscribe: "send on new subscribe (1)",
	RetainHandlingIgnoreRetained:     "ignore retained (2)",
}

func (r RetainHandling) String() string {
	if int(r) >= len(retainHandlingNames) {
		return fmt.Sprintf("invalid retain handling (%d)", r)
	}

	return retainHandlingNames[r]
}

func (r RetainHandling) LogValue() slog.Value {
	return slog.StringValue(r.String())
}

// ReadOptions are the options of a subscription. The zero value subscribes with QoS 0 and receives retained messages.
type ReadOptions struct {
	// QoS is the highest QoS the broker may deliver with.
	QoS QualityOfService

	// NoLocal suppresses messages this client published itself.
	NoLocal bool

	// RetainAsPublished keeps the retain flag of forwarded messages instead of clearing it.
	RetainAsPublished bool

	RetainHandling RetainHandling
}

func (r ReadOptions) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("qos", r.QoS),
		slog.Bool("no_local", r.NoLocal),
		slog.Bool("retain_as_published", r.RetainAsPublished),
		slog.Any("retain_handling", r.RetainHandling),
	)
}
