package powergroup

import (
	"bytes"
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"
	"strings"

	"github.com/mephdrac/powergroup/discovery"
	"github.com/mephdrac/powergroup/mqtt"
)

// ErrInvalidDevice is returned by Device.Configure for a device without identifiers.
var ErrInvalidDevice = errors.New("device needs at least one identifier")

// Device is the Home Assistant device that groups the sensors of one configuration. Home Assistant learns about the
// device and all of its components from a single retained payload.
//
// See https://www.home-assistant.io/integrations/mqtt/#device-discovery-payload
type Device struct {
	// DiscoveryID is the id in the discovery topic. ID derives one when it is empty.
	DiscoveryID string `json:"-"`

	Name            string   `json:"name,omitempty"`
	Manufacturer    string   `json:"mf,omitempty"`
	Model           string   `json:"mdl,omitempty"`
	SoftwareVersion string   `json:"sw,omitempty"`
	Identifiers     []string `json:"ids,omitempty"`

	// Origin is sent alongside the device. DefaultOrigin is used when nil.
	Origin *Origin `json:"-"`
}

// ID returns DiscoveryID, or the sanitized identifiers, name, manufacturer and model joined with discovery.IDSep.
func (d *Device) ID() string {
	if d.DiscoveryID != "" {
		return d.DiscoveryID
	}

	var parts []string
	for _, p := range append(append([]string(nil), d.Identifiers...), d.Name, d.Manufacturer, d.Model) {
		if p != "" {
			parts = append(parts, discovery.IDSanitizer.Replace(p))
		}
	}

	return strings.Join(parts, discovery.IDSep)
}

// ConfigTopic returns the retained topic of the discovery payload.
func (d *Device) ConfigTopic(discoveryPrefix string) string {
	return mqtt.JoinTopic(discoveryPrefix, "device", d.ID(), "config")
}

// Configure publishes the discovery payload of the device with components keyed by unique id. Components that were
// published before and are missing from components stay in Home Assistant, pass a RemoveComponent to delete them.
func (d *Device) Configure(ctx context.Context, w mqtt.Writer, discoveryPrefix string, components map[string]json.MarshalerTo) error {
	if len(d.Identifiers) == 0 {
		return ErrInvalidDevice
	}

	origin := DefaultOrigin()
	if d.Origin != nil {
		origin = *d.Origin
	}

	var buf bytes.Buffer
	e := jsontext.NewEncoder(&buf, jsontext.CanonicalizeRawFloats(true))

	err := errors.Join(
		e.WriteToken(jsontext.BeginObject),
		discovery.MarshalStd("device", e, discovery.FieldDevice, d),
		discovery.MarshalStd("origin", e, discovery.FieldOrigin, &origin),
		e.WriteToken(jsontext.String(discovery.FieldComponents)),
		e.WriteToken(jsontext.BeginObject),
		discovery.MaybeInlineMarshalStd(e, components),
		e.WriteToken(jsontext.EndObject),
		e.WriteToken(jsontext.EndObject),
	)
	if err != nil {
		return fmt.Errorf("marshal discovery payload of %s: %w", d.ID(), err)
	}

	return w.WriteTopic(ctx, d.ConfigTopic(discoveryPrefix), mqtt.WriteOptions{Retain: true, QoS: mqtt.QOSAtLeastOnce}, buf.Bytes())
}

// Remove clears the retained discovery payload, which makes Home Assistant delete the device and all of its entities.
func (d *Device) Remove(ctx context.Context, w mqtt.Writer, discoveryPrefix string) error {
	return w.WriteTopic(ctx, d.ConfigTopic(discoveryPrefix), mqtt.WriteOptions{Retain: true, QoS: mqtt.QOSAtLeastOnce}, nil)
}
