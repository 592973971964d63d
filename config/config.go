// Package config holds the definition of a power group monitor: its name and the ordered list of groups, each a set of
// Home Assistant entities with a standby threshold. It is stored as YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mephdrac/powergroup/hass"
)

var (
	// ErrInvalid is wrapped by every error returned from Config.Validate.
	ErrInvalid = errors.New("invalid config")

	// AllowedDomains are the entity domains a group may contain.
	AllowedDomains = []string{"sensor", "switch", "light"}
)

// Config is one monitor instance. Groups keep their configured order.
type Config struct {
	Name   string  `yaml:"name"`
	Groups []Group `yaml:"groups"`
}

// Group is a named set of entities whose power is summed.
type Group struct {
	// ID never changes once assigned, so renaming a group keeps its energy.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Standby is the standby threshold in watts as entered by the user. Both "." and "," are accepted as the decimal
	// separator. An empty string means 0.
	Standby  string   `yaml:"standby"`
	Entities []string `yaml:"entities"`
}

// NewGroupID returns a fresh random group id.
func NewGroupID() string {
	return uuid.NewString()
}

// NewGroup constructs a Group with a new id.
func NewGroup(name, standby string, entities ...string) Group {
	return Group{ID: NewGroupID(), Name: name, Standby: standby, Entities: entities}
}

// StandbyThreshold parses Standby.
func (g Group) StandbyThreshold() (float64, error) {
	s := strings.TrimSpace(g.Standby)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("group %q: standby %q is not a number", g.Name, g.Standby)
	}

	return v, nil
}

// Slug returns the name in the form used for unique ids and topics.
func (g Group) Slug() string {
	return Slug(g.Name)
}

// Equal reports whether g and o describe the same group.
func (g Group) Equal(o Group) bool {
	return g.ID == o.ID && g.Name == o.Name && g.Standby == o.Standby && slices.Equal(g.Entities, o.Entities)
}

// Group returns the group with the given id.
func (c *Config) Group(id string) (Group, bool) {
	i := c.index(id)
	if i < 0 {
		return Group{}, false
	}

	return c.Groups[i], true
}

func (c *Config) index(id string) int {
	return slices.IndexFunc(c.Groups, func(g Group) bool { return g.ID == id })
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	groups := make([]Group, len(c.Groups))
	for i, g := range c.Groups {
		g.Entities = slices.Clone(g.Entities)
		groups[i] = g
	}

	return Config{Name: c.Name, Groups: groups}
}

// TotalStandbyThreshold sums the standby threshold of every group with entities. Groups without entities have no
// power and are left out. Call Validate first; unparseable thresholds count as 0.
func (c *Config) TotalStandbyThreshold() float64 {
	var total float64
	for _, g := range c.Groups {
		if len(g.Entities) == 0 {
			continue
		}

		v, _ := g.StandbyThreshold()
		total += v
	}

	return total
}

// Validate checks that the config has a name, and that every group has a unique id, a name, a non-negative standby
// threshold and only entities of AllowedDomains. Groups without entities are allowed.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}

	seen := map[string]bool{}
	for i, g := range c.Groups {
		switch {
		case g.ID == "":
			errs = append(errs, fmt.Errorf("group %d: id is required", i))
		case seen[g.ID]:
			errs = append(errs, fmt.Errorf("group %d: duplicate id %q", i, g.ID))
		}
		seen[g.ID] = true

		errs = append(errs, g.validate(i)...)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return nil
}

func (g Group) validate(i int) []error {
	var errs []error
	if strings.TrimSpace(g.Name) == "" {
		errs = append(errs, fmt.Errorf("group %d: name is required", i))
	}

	if v, err := g.StandbyThreshold(); err != nil {
		errs = append(errs, err)
	} else if v < 0 {
		errs = append(errs, fmt.Errorf("group %q: standby must not be negative", g.Name))
	}

	for _, e := range g.Entities {
		id, err := hass.ParseEntityID(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %q: %w", g.Name, err))
			continue
		}

		if !slices.Contains(AllowedDomains, id.Domain()) {
			errs = append(errs, fmt.Errorf("group %q: entity %q is not one of %v", g.Name, e, AllowedDomains))
		}
	}

	return errs
}

// Parse decodes and validates a YAML config.
func Parse(data []byte) (*Config, error) {
	var c Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Load reads and parses the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

// Save validates c and writes it to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s, replaces every run of characters other than a-z and 0-9 with a single underscore and trims
// leading and trailing underscores, e.g. "Küche & Bad" becomes "k_che_bad".
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}
