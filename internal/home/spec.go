package home

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/homebase/internal/lighting"
)

// Kind is the capability class of a light.
type Kind string

const (
	KindSimple   Kind = "Simple"
	KindDimmable Kind = "Dimmable"
	KindColor    Kind = "Color"
)

// ErrInvalidSpec is returned for home specs that cannot be turned into a tree.
var ErrInvalidSpec = errors.New("invalid home spec")

// Spec is the YAML description of a home.
type Spec struct {
	Config *ConfigSpec `yaml:"config"`
	Rooms  []RoomSpec  `yaml:"rooms"`
}

// RoomSpec describes a room and its main light group.
type RoomSpec struct {
	Name    string       `yaml:"name"`
	Config  *ConfigSpec  `yaml:"config"`
	Lights  GroupSpec    `yaml:"lights"`
	Remotes []RemoteSpec `yaml:"remotes"`
}

// RemoteSpec describes a remote control bound to a room. Buttons maps the
// bridge's button resource IDs to button names; Actions overrides or extends
// the preset's bindings.
type RemoteSpec struct {
	Name    string                `yaml:"name"`
	Preset  string                `yaml:"preset"`
	Buttons map[string]string     `yaml:"buttons"`
	Actions map[string]ActionSpec `yaml:"actions"`
}

// ActionSpec binds a remote action to a command. Target is a group or light
// path below the room; empty targets the room.
type ActionSpec struct {
	Command string         `yaml:"command"`
	Target  string         `yaml:"target"`
	Args    map[string]any `yaml:"args"`
}

// GroupSpec describes a light group.
type GroupSpec struct {
	Name      string      `yaml:"name"`
	Config    *ConfigSpec `yaml:"config"`
	Singles   []LightSpec `yaml:"singles"`
	Subgroups []GroupSpec `yaml:"subgroups"`
}

// LightSpec describes a single physical light.
type LightSpec struct {
	Name   string      `yaml:"name"`
	Kind   Kind        `yaml:"kind"`
	Model  string      `yaml:"model"`
	ID     string      `yaml:"id"`
	Config *ConfigSpec `yaml:"config"`
}

// LoadSpec reads and decodes a home spec file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read home spec: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes a home spec.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse home spec: %w", err)
	}
	return &spec, nil
}

// Room is a room of the home. Its node wraps the room's main light group.
type Room struct {
	Name    string
	Node    *lighting.Group
	Lights  *lighting.Group
	Remotes []RemoteSpec
}

// Home is the root of the light hierarchy.
type Home struct {
	Root  *lighting.Group
	Rooms []Room
}

// Build turns the spec into a light tree.
func (s *Spec) Build() (*Home, error) {
	if len(s.Rooms) == 0 {
		return nil, fmt.Errorf("%w: no rooms", ErrInvalidSpec)
	}

	b := builder{seen: make(map[lighting.Topic]bool)}
	h := &Home{}
	children := make([]lighting.Node, 0, len(s.Rooms))
	for _, rs := range s.Rooms {
		if rs.Name == "" {
			return nil, fmt.Errorf("%w: room without name", ErrInvalidSpec)
		}
		lights, err := b.group(rs.Name, nil, rs.Lights)
		if err != nil {
			return nil, err
		}
		topic := ForRoom(rs.Name)
		if err := b.claim(topic); err != nil {
			return nil, err
		}
		cfg, err := nodeConfig(topic, rs.Config)
		if err != nil {
			return nil, err
		}
		node := lighting.NewGroup(topic, rs.Name, cfg, lights)
		h.Rooms = append(h.Rooms, Room{Name: rs.Name, Node: node, Lights: lights, Remotes: rs.Remotes})
		children = append(children, node)
	}
	if err := b.claim(RootTopic); err != nil {
		return nil, err
	}
	cfg, err := nodeConfig(RootTopic, s.Config)
	if err != nil {
		return nil, err
	}
	h.Root = lighting.NewGroup(RootTopic, "home", cfg, children...)
	return h, nil
}

func nodeConfig(topic lighting.Topic, cs *ConfigSpec) (lighting.Config, error) {
	cfg, err := cs.Config()
	if err != nil {
		return cfg, fmt.Errorf("config of %s: %w", topic, err)
	}
	return cfg, nil
}

type builder struct {
	seen map[lighting.Topic]bool
}

func (b *builder) claim(topic lighting.Topic) error {
	if b.seen[topic] {
		return fmt.Errorf("%w: duplicate topic %s", ErrInvalidSpec, topic)
	}
	b.seen[topic] = true
	return nil
}

func (b *builder) group(room string, parent []string, gs GroupSpec) (*lighting.Group, error) {
	if gs.Name == "" {
		return nil, fmt.Errorf("%w: group without name in room %q", ErrInvalidSpec, room)
	}
	path := append(append([]string(nil), parent...), gs.Name)
	topic := ForGroup(room, path...)
	if err := b.claim(topic); err != nil {
		return nil, err
	}

	children := make([]lighting.Node, 0, len(gs.Singles)+len(gs.Subgroups))
	for _, ls := range gs.Singles {
		light, err := b.light(room, path, ls)
		if err != nil {
			return nil, err
		}
		children = append(children, light)
	}
	for _, sub := range gs.Subgroups {
		g, err := b.group(room, path, sub)
		if err != nil {
			return nil, err
		}
		children = append(children, g)
	}
	cfg, err := nodeConfig(topic, gs.Config)
	if err != nil {
		return nil, err
	}
	return lighting.NewGroup(topic, gs.Name, cfg, children...), nil
}

func (b *builder) light(room string, path []string, ls LightSpec) (*lighting.Concrete, error) {
	if ls.Name == "" {
		return nil, fmt.Errorf("%w: light without name in %s", ErrInvalidSpec, ForGroup(room, path...))
	}
	if ls.ID == "" {
		return nil, fmt.Errorf("%w: light %q has no id", ErrInvalidSpec, ls.Name)
	}
	var dimmable, color bool
	switch ls.Kind {
	case KindSimple:
	case KindDimmable:
		dimmable = true
	case KindColor:
		dimmable, color = true, true
	default:
		return nil, fmt.Errorf("%w: light %q has unknown kind %q", ErrInvalidSpec, ls.Name, ls.Kind)
	}
	topic := ForDevice(room, path, ls.Name)
	if err := b.claim(topic); err != nil {
		return nil, err
	}
	cfg, err := nodeConfig(topic, ls.Config)
	if err != nil {
		return nil, err
	}
	return lighting.NewConcrete(topic, ls.Name, ls.ID, dimmable, color, cfg), nil
}
