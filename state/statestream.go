package state

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mephdrac/powergroup/clock"
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/mqtt"
)

// Topic levels published by the Home Assistant mqtt_statestream integration below its base topic.
const (
	StatestreamState = "state"
	StatestreamUnit  = "unit_of_measurement"
)

// StatestreamHandler feeds a Store from the topics the mqtt_statestream integration publishes:
// <base>/<domain>/<object_id>/state carries the raw state and <base>/<domain>/<object_id>/unit_of_measurement the json
// encoded unit. Enable publish_attributes in mqtt_statestream for units to be available.
//
// See https://www.home-assistant.io/integrations/mqtt_statestream/.
type StatestreamHandler struct {
	store  *Store
	prefix string
	clock  clock.Clock

	log *slog.Logger
}

var _ mqtt.Handler = &StatestreamHandler{}

// NewStatestreamHandler constructs a handler for statestream topics below prefix. The clock stamps received states.
func NewStatestreamHandler(store *Store, prefix string, c clock.Clock) *StatestreamHandler {
	return &StatestreamHandler{
		store:  store,
		prefix: prefix,
		clock:  c,

		log: log.ForComponent("state.statestream").With(slog.String("prefix", prefix)),
	}
}

// Subscriptions returns the subscriptions the handler must receive messages for.
func (h *StatestreamHandler) Subscriptions() []mqtt.Subscription {
	return []mqtt.Subscription{
		{Topic: mqtt.JoinTopic(h.prefix, "+", "+", StatestreamState)},
		{Topic: mqtt.JoinTopic(h.prefix, "+", "+", StatestreamUnit)},
	}
}

func (h *StatestreamHandler) ServeMQTT(_ mqtt.Writer, topic string, message []byte) {
	levels, ok := mqtt.SplitTopic(h.prefix, topic)
	if !ok || len(levels) != 3 {
		return
	}

	id, err := hass.ParseEntityID(levels[0] + "." + levels[1])
	if err != nil {
		h.log.With(slog.String("topic", topic), log.Error(err)).Debug("Ignoring statestream topic")
		return
	}

	switch levels[2] {
	case StatestreamState:
		h.store.SetState(string(id), string(message), h.clock.Now())
	case StatestreamUnit:
		h.store.SetUnit(string(id), decodeAttribute(message))
	}
}

// decodeAttribute unwraps a json string. Payloads that are not a json string are used as is.
func decodeAttribute(payload []byte) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}

	return strings.TrimSpace(string(payload))
}
