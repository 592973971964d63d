package powergroup

import (
	"encoding/json/jsontext"
	"errors"

	"github.com/mephdrac/powergroup/discovery"
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/mqtt"
)

// Platform is an entity type of the platform package.
type Platform interface {
	// PlatformName is the value of the platform key, e.g. "sensor".
	PlatformName() string

	// MarshalDiscoveryTo writes the platform specific keys. Topics are qualified with prefix.
	MarshalDiscoveryTo(e *jsontext.Encoder, prefix string) error
}

// Component is one entity of a Device. It encodes to its entry in the cmps object of the device discovery payload.
type Component[TPlatform Platform] struct {
	Platform TPlatform

	// TopicPrefix qualifies every topic of the component.
	TopicPrefix string

	// Name is appended to the device name in the frontend. An empty name is sent as null, which makes the entity use
	// the device name alone.
	Name string

	Icon string

	// DefaultEntityID is the entity id Home Assistant assigns on first discovery, e.g. "sensor.home_kitchen_power".
	DefaultEntityID string

	UniqueID string `powergroup:"required"`

	Availability *mqtt.Value[hass.Availability] `powergroup:"required"`
}

func (c *Component[TPlatform]) MarshalJSONTo(e *jsontext.Encoder) error {
	name := jsontext.Null
	if c.Name != "" {
		name = jsontext.String(c.Name)
	}

	return errors.Join(
		e.WriteToken(jsontext.BeginObject),
		discovery.MarshalStdComparable("platform", e, discovery.FieldPlatform, c.Platform.PlatformName()),
		e.WriteToken(jsontext.String("name")),
		e.WriteToken(name),
		discovery.MarshalStdComparable("unique id", e, discovery.FieldUniqueID, c.UniqueID),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldDefaultEntityID, c.DefaultEntityID),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldIcon, c.Icon),
		discovery.MarshalRequiredValueTopic("availability", e, discovery.FieldAvailabilityTopic, c.Availability, c.TopicPrefix),
		c.Platform.MarshalDiscoveryTo(e, c.TopicPrefix),
		e.WriteToken(jsontext.EndObject),
	)
}

// RemoveComponent deletes a component from its device. Home Assistant treats an entry that only carries the platform
// as a removal.
type RemoveComponent struct {
	Platform string
}

func (r RemoveComponent) MarshalJSONTo(e *jsontext.Encoder) error {
	return errors.Join(
		e.WriteToken(jsontext.BeginObject),
		discovery.MarshalStdComparable("platform", e, discovery.FieldPlatform, r.Platform),
		e.WriteToken(jsontext.EndObject),
	)
}
