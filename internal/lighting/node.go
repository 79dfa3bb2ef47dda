package lighting

// Topic is the address of a node in the light hierarchy. The core only
// compares topics for equality.
type Topic string

func (t Topic) String() string { return string(t) }

// Node is a light hierarchy node. It is implemented only by *Concrete and
// *Group.
type Node interface {
	Topic() Topic
	Name() string
	// Config returns the node's own configuration for in-place mutation by
	// the single writer that owns the tree.
	Config() *Config
	State() State
	IsDimmable() bool
	IsColor() bool
	Flatten() []*Concrete

	node()
}

// Concrete is a single physical light.
type Concrete struct {
	topic    Topic
	name     string
	deviceID string
	dimmable bool
	color    bool
	cfg      Config
	state    State
}

// NewConcrete creates a physical light node.
func NewConcrete(topic Topic, name, deviceID string, dimmable, color bool, cfg Config) *Concrete {
	return &Concrete{
		topic:    topic,
		name:     name,
		deviceID: deviceID,
		dimmable: dimmable,
		color:    color,
		cfg:      cfg,
		state:    Max(),
	}
}

func (c *Concrete) Topic() Topic     { return c.topic }
func (c *Concrete) Name() string     { return c.name }
func (c *Concrete) Config() *Config  { return &c.cfg }
func (c *Concrete) State() State     { return c.state }
func (c *Concrete) IsDimmable() bool { return c.dimmable }
func (c *Concrete) IsColor() bool    { return c.color }
func (c *Concrete) node()            {}

// DeviceID is the vendor identifier used to address the device.
func (c *Concrete) DeviceID() string { return c.deviceID }

// UpdateState records the last known state without touching the device.
func (c *Concrete) UpdateState(s State) { c.state = s.Clamp() }

// Flatten returns the light itself.
func (c *Concrete) Flatten() []*Concrete { return []*Concrete{c} }

// Group is an ordered collection of nodes.
type Group struct {
	topic    Topic
	name     string
	children []Node
	cfg      Config
}

// NewGroup creates a group node. The children slice is copied.
func NewGroup(topic Topic, name string, cfg Config, children ...Node) *Group {
	return &Group{
		topic:    topic,
		name:     name,
		children: append([]Node(nil), children...),
		cfg:      cfg,
	}
}

func (g *Group) Topic() Topic    { return g.topic }
func (g *Group) Name() string    { return g.name }
func (g *Group) Config() *Config { return &g.cfg }
func (g *Group) node()           {}

// Children returns the group's direct members in order.
func (g *Group) Children() []Node { return append([]Node(nil), g.children...) }

// State averages the members' states.
func (g *Group) State() State {
	states := make([]State, 0, len(g.children))
	for _, child := range g.children {
		states = append(states, child.State())
	}
	return Average(states)
}

// IsDimmable reports whether any member can be dimmed.
func (g *Group) IsDimmable() bool {
	for _, child := range g.children {
		if child.IsDimmable() {
			return true
		}
	}
	return false
}

// IsColor reports whether any member can display colors.
func (g *Group) IsColor() bool {
	for _, child := range g.children {
		if child.IsColor() {
			return true
		}
	}
	return false
}

// Flatten returns every light reachable from the group, depth-first.
func (g *Group) Flatten() []*Concrete {
	var lights []*Concrete
	for _, child := range g.children {
		lights = append(lights, child.Flatten()...)
	}
	return lights
}

// Flatten returns every light reachable from n in depth-first order.
func Flatten(n Node) []*Concrete {
	if n == nil {
		return nil
	}
	return n.Flatten()
}

// CompileConfig finds the node with the given topic below root and returns its
// configuration merged with every ancestor's on the path from root, nearest
// ancestor first. It returns false when the topic is not reachable.
func CompileConfig(root Node, topic Topic) (Config, bool) {
	if root == nil {
		return Config{}, false
	}
	if root.Topic() == topic {
		return *root.Config(), true
	}
	g, ok := root.(*Group)
	if !ok {
		return Config{}, false
	}
	for _, child := range g.children {
		if cfg, ok := CompileConfig(child, topic); ok {
			return cfg.WithParent(g.cfg), true
		}
	}
	return Config{}, false
}

// Walk visits root and its descendants depth-first. Ancestors are passed
// nearest-first. Returning false from fn stops the walk.
func Walk(root Node, fn func(n Node, ancestors []Node) bool) {
	walk(root, nil, fn)
}

func walk(n Node, ancestors []Node, fn func(Node, []Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, ancestors) {
		return false
	}
	g, ok := n.(*Group)
	if !ok {
		return true
	}
	chain := make([]Node, 0, len(ancestors)+1)
	chain = append(chain, g)
	chain = append(chain, ancestors...)
	for _, child := range g.children {
		if !walk(child, chain, fn) {
			return false
		}
	}
	return true
}
