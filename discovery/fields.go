// Package discovery holds the abbreviated keys of Home Assistant MQTT discovery payloads and helpers to encode them.
// Retained discovery payloads are stored by the broker for every entity, so only the short forms are used.
//
// See https://www.home-assistant.io/integrations/mqtt/#supported-abbreviations-in-mqtt-discovery-messages.
package discovery

import (
	"strings"

	"github.com/mephdrac/powergroup/mqtt"
)

// Device level keys.
const (
	FieldDevice     = "dev"
	FieldOrigin     = "o"
	FieldComponents = "cmps"
)

// Keys shared by every component.
const (
	FieldPlatform          = "p"
	FieldUniqueID          = "uniq_id"
	FieldDefaultEntityID   = "def_ent_id"
	FieldIcon              = "ic"
	FieldStateTopic        = "stat_t"
	FieldAttributesTopic   = "json_attr_t"
	FieldAvailabilityTopic = "avty_t"
)

// Keys of the sensor and binary_sensor platforms.
const (
	FieldDeviceClass               = "dev_cla"
	FieldStateClass                = "stat_cla"
	FieldUnitOfMeasurement         = "unit_of_meas"
	FieldSuggestedDisplayPrecision = "sug_dsp_prc"
	FieldExpireMeasurementsAfter   = "exp_aft"
	FieldOptions                   = "ops"
)

// IDSep joins the parts of a generated device id and replaces characters that are not allowed in one.
const IDSep = "__"

// IDSanitizer makes a string safe to use as a topic level. MQTT wildcards are replaced too, so an id can never widen a
// subscription.
var IDSanitizer = strings.NewReplacer(
	" ", IDSep,
	":", IDSep,
	".", IDSep,
	"!", IDSep,
	"?", IDSep,
	"#", IDSep,
	"+", IDSep,
	mqtt.TopicSeparator, IDSep,
)
