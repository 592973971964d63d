// Package hassmqtt publishes the sensors of a monitor to Home Assistant using MQTT device discovery. Every
// configuration becomes one device, and every group and fleet metric becomes one of its components.
package hassmqtt

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mephdrac/powergroup"
	"github.com/mephdrac/powergroup/config"
	"github.com/mephdrac/powergroup/discovery"
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/monitor"
	"github.com/mephdrac/powergroup/mqtt"
)

const (
	// DefaultTopicPrefix is the prefix of every state topic.
	DefaultTopicPrefix = "powergroup"

	fleetTopic        = "fleet"
	availabilityTopic = "availability"
	attributesTopic   = "attributes"
)

// ErrUnknownSensor is returned when publishing to a sensor that was not announced by Configure.
var ErrUnknownSensor = errors.New("unknown sensor")

// Options configure a Publisher. The zero value uses the Home Assistant defaults.
type Options struct {
	DiscoveryPrefix string
	TopicPrefix     string
	// ExpireAfter makes Home Assistant mark values as unavailable if they are not refreshed in time. Zero disables it.
	ExpireAfter time.Duration
}

// EnergyAttributes are the state attributes of daily energy sensors.
type EnergyAttributes struct {
	LastReset time.Time `json:"last_reset"`
}

type noAttributes struct{}

// sensor is the announced form of a monitor.SensorKey. Exactly one of value and state is set.
type sensor struct {
	uniqueID string
	platform string

	value *mqtt.Value[float64]
	state *mqtt.Value[hass.PowerState]
	attrs *mqtt.Value[EnergyAttributes]

	component json.MarshalerTo
}

// Publisher implements monitor.Publisher on top of an mqtt.Writer. It is safe for concurrent use.
type Publisher struct {
	w       mqtt.Writer
	entryID string
	opts    Options

	availability *mqtt.Value[hass.Availability]

	mu      sync.Mutex
	device  *powergroup.Device
	sensors map[monitor.SensorKey]*sensor

	log *slog.Logger
}

var _ monitor.Publisher = &Publisher{}

// New constructs a Publisher for the configuration identified by entryID, which must stay the same across restarts
// so Home Assistant keeps the entities and their history.
func New(w mqtt.Writer, entryID string, opts Options) *Publisher {
	if opts.DiscoveryPrefix == "" {
		opts.DiscoveryPrefix = discovery.DefaultPrefix
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultTopicPrefix
	}

	entryID = config.Slug(entryID)
	return &Publisher{
		w:       w,
		entryID: entryID,
		opts:    opts,

		availability: mqtt.NewValueWithOptions(
			mqtt.JoinTopic(entryID, availabilityTopic),
			hass.AvailabilityMarshaler,
			mqtt.WriteOptions{Retain: true, QoS: mqtt.QOSAtLeastOnce},
		),
		sensors: map[monitor.SensorKey]*sensor{},

		log: log.ForComponent("hassmqtt").With(slog.String("entry", entryID)),
	}
}

// AvailabilityTopic returns the fully qualified availability topic of the entry, e.g. for the last will of the MQTT
// connection the Publisher is later created on. An empty topicPrefix means DefaultTopicPrefix.
func AvailabilityTopic(topicPrefix, entryID string) string {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}

	return mqtt.JoinTopic(topicPrefix, config.Slug(entryID), availabilityTopic)
}

// AvailabilityTopic is the fully qualified availability topic of the Publisher.
func (p *Publisher) AvailabilityTopic() string {
	return p.availability.FullyQualifiedTopic(p.opts.TopicPrefix)
}

// SetAvailability marks every sensor as available or unavailable.
func (p *Publisher) SetAvailability(ctx context.Context, a hass.Availability) error {
	return mqtt.Error(p.availability.Write(ctx, p.w, p.opts.TopicPrefix, a))
}

// Configure announces one component per group metric and fleet metric of cfg. Components of sensors that were
// announced before but are no longer part of cfg are removed from the device and their retained state is cleared.
func (p *Publisher) Configure(ctx context.Context, cfg config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	device := &powergroup.Device{
		DiscoveryID:     p.entryID,
		Name:            cfg.Name,
		Manufacturer:    powergroup.Manufacturer,
		Model:           powergroup.Model,
		SoftwareVersion: powergroup.Version,
		Identifiers:     []string{p.entryID},
	}

	next := make(map[monitor.SensorKey]*sensor, len(cfg.Groups)*len(monitor.GroupMetrics)+len(monitor.FleetMetrics))
	for _, g := range cfg.Groups {
		if len(g.Entities) == 0 {
			continue
		}

		for _, m := range monitor.GroupMetrics {
			key := monitor.GroupKey(g.ID, m)
			next[key] = p.sensorFor(key, g.Name)
		}
	}
	if len(next) > 0 {
		for _, m := range monitor.FleetMetrics {
			key := monitor.FleetKey(m)
			next[key] = p.sensorFor(key, "")
		}
	}

	components := make(map[string]json.MarshalerTo, len(next))
	for _, s := range next {
		components[s.uniqueID] = s.component
	}

	var removed []*sensor
	for key, s := range p.sensors {
		if _, keep := next[key]; !keep {
			components[s.uniqueID] = powergroup.RemoveComponent{Platform: s.platform}
			removed = append(removed, s)
		}
	}

	p.log.With(slog.Int("components", len(next)), slog.Int("removed", len(removed))).Debug("Configuring device")
	if err := device.Configure(ctx, p.w, p.opts.DiscoveryPrefix, components); err != nil {
		return fmt.Errorf("configure %s: %w", p.entryID, err)
	}

	p.device = device
	p.sensors = next

	errs := []error{p.SetAvailability(ctx, hass.Available)}
	for _, s := range removed {
		errs = append(errs, s.clear(ctx, p.w, p.opts.TopicPrefix))
	}

	return errors.Join(errs...)
}

// Remove deletes the device and all of its entities from Home Assistant.
func (p *Publisher) Remove(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	device := p.device
	if device == nil {
		device = &powergroup.Device{DiscoveryID: p.entryID, Identifiers: []string{p.entryID}}
	}

	errs := []error{device.Remove(ctx, p.w, p.opts.DiscoveryPrefix)}
	for _, s := range p.sensors {
		errs = append(errs, s.clear(ctx, p.w, p.opts.TopicPrefix))
	}
	errs = append(errs, p.w.WriteTopic(ctx, p.AvailabilityTopic(), mqtt.WriteOptions{Retain: true}, nil))

	p.device = nil
	p.sensors = map[monitor.SensorKey]*sensor{}

	return errors.Join(errs...)
}

func (p *Publisher) lookup(key monitor.SensorKey) (*sensor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sensors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSensor, key)
	}

	return s, nil
}

func (p *Publisher) PublishValue(ctx context.Context, key monitor.SensorKey, v float64) error {
	s, err := p.lookup(key)
	if err != nil {
		return err
	}
	if s.value == nil {
		return fmt.Errorf("%s: not a numeric sensor", key)
	}

	return mqtt.Error(s.value.Write(ctx, p.w, p.opts.TopicPrefix, v))
}

func (p *Publisher) PublishState(ctx context.Context, key monitor.SensorKey, on bool) error {
	s, err := p.lookup(key)
	if err != nil {
		return err
	}
	if s.state == nil {
		return fmt.Errorf("%s: not a binary sensor", key)
	}

	return mqtt.Error(s.state.Write(ctx, p.w, p.opts.TopicPrefix, hass.PowerStateOf(on)))
}

func (p *Publisher) PublishLastReset(ctx context.Context, key monitor.SensorKey, at time.Time) error {
	s, err := p.lookup(key)
	if err != nil {
		return err
	}
	if s.attrs == nil {
		return fmt.Errorf("%s: sensor has no last reset", key)
	}

	return mqtt.Error(s.attrs.Write(ctx, p.w, p.opts.TopicPrefix, EnergyAttributes{LastReset: at}))
}

// clear removes the retained state of s from the broker.
func (s *sensor) clear(ctx context.Context, w mqtt.Writer, prefix string) error {
	topics := []string{s.value.FullyQualifiedTopic(prefix), s.state.FullyQualifiedTopic(prefix), s.attrs.FullyQualifiedTopic(prefix)}

	var errs []error
	for _, t := range topics {
		if t != "" {
			errs = append(errs, w.WriteTopic(ctx, t, mqtt.WriteOptions{Retain: true}, nil))
		}
	}

	return errors.Join(errs...)
}
