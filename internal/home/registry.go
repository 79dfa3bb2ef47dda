package home

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dokzlo13/homebase/internal/lighting"
)

// ErrDeviceNotFound is returned for topics that address no node.
var ErrDeviceNotFound = errors.New("device not found")

// Target is the resolved state of a single physical light.
type Target struct {
	Topic    lighting.Topic
	Name     string
	DeviceID string
	Dimmable bool
	Color    bool
	State    lighting.State
}

// Eviction records temporary overrides dropped from a node.
type Eviction struct {
	Topic  lighting.Topic
	Fields []string
	At     time.Time
}

// NodeInfo describes a node for read-only consumers.
type NodeInfo struct {
	Topic    lighting.Topic   `json:"topic"`
	Name     string           `json:"name"`
	Parent   lighting.Topic   `json:"parent,omitempty"`
	Group    bool             `json:"group"`
	DeviceID string           `json:"device_id,omitempty"`
	Dimmable bool             `json:"dimmable"`
	Color    bool             `json:"color"`
	State    lighting.State   `json:"state"`
	Children []lighting.Topic `json:"children,omitempty"`
}

// Options configures a Registry.
type Options struct {
	// Location is the time zone the baseline is evaluated in.
	Location *time.Location
	// TTL is the age after which temporary overrides are evicted.
	TTL time.Duration
	// OnEvict is called outside the lock for every node that lost overrides.
	OnEvict func(Eviction)
}

// Registry indexes the light tree by topic and serializes access to node
// configuration. Writers hold the lock exclusively; resolution sweeps stale
// temporary overrides first, so it is a writer too.
type Registry struct {
	mu      sync.RWMutex
	root    *lighting.Group
	nodes   map[lighting.Topic]lighting.Node
	parents map[lighting.Topic]lighting.Topic
	order   []lighting.Topic

	// defaults holds each node's configuration as built from the home spec.
	defaults map[lighting.Topic]lighting.Config

	loc     *time.Location
	ttl     time.Duration
	onEvict func(Eviction)
}

// NewRegistry indexes the home's tree.
func NewRegistry(h *Home, opts Options) *Registry {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	r := &Registry{
		root:     h.Root,
		nodes:    make(map[lighting.Topic]lighting.Node),
		parents:  make(map[lighting.Topic]lighting.Topic),
		defaults: make(map[lighting.Topic]lighting.Config),
		loc:      loc,
		ttl:      opts.TTL,
		onEvict:  opts.OnEvict,
	}
	lighting.Walk(h.Root, func(n lighting.Node, ancestors []lighting.Node) bool {
		r.nodes[n.Topic()] = n
		r.defaults[n.Topic()] = *n.Config()
		r.order = append(r.order, n.Topic())
		if len(ancestors) > 0 {
			r.parents[n.Topic()] = ancestors[0].Topic()
		}
		return true
	})
	return r
}

// Topics returns every topic in tree order.
func (r *Registry) Topics() []lighting.Topic {
	return append([]lighting.Topic(nil), r.order...)
}

// Has reports whether topic addresses a node.
func (r *Registry) Has(topic lighting.Topic) bool {
	_, ok := r.nodes[topic]
	return ok
}

// Baseline returns the dynamic baseline at now in the registry's time zone.
func (r *Registry) Baseline(now time.Time) lighting.State {
	return lighting.Recommended(now.In(r.loc))
}

// Location returns the time zone the baseline is evaluated in.
func (r *Registry) Location() *time.Location {
	return r.loc
}

// Describe returns read-only information about a node.
func (r *Registry) Describe(topic lighting.Topic) (NodeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[topic]
	if !ok {
		return NodeInfo{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, topic)
	}
	info := NodeInfo{
		Topic:    n.Topic(),
		Name:     n.Name(),
		Parent:   r.parents[topic],
		Dimmable: n.IsDimmable(),
		Color:    n.IsColor(),
		State:    n.State(),
	}
	switch node := n.(type) {
	case *lighting.Concrete:
		info.DeviceID = node.DeviceID()
	case *lighting.Group:
		info.Group = true
		for _, child := range node.Children() {
			info.Children = append(info.Children, child.Topic())
		}
	}
	return info, nil
}

// Lights returns the physical lights below topic without resolving them.
func (r *Registry) Lights(topic lighting.Topic) ([]NodeInfo, error) {
	r.mu.RLock()
	n, ok := r.nodes[topic]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, topic)
	}

	lights := lighting.Flatten(n)
	infos := make([]NodeInfo, 0, len(lights))
	for _, l := range lights {
		info, err := r.Describe(l.Topic())
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Mutate runs fn on the node's own configuration under the write lock.
func (r *Registry) Mutate(topic lighting.Topic, fn func(n lighting.Node, cfg *lighting.Config) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, topic)
	}
	return fn(n, n.Config())
}

// Config returns a node's own and effective configuration.
func (r *Registry) Config(topic lighting.Topic, now time.Time) (own, effective lighting.Config, err error) {
	r.mu.Lock()
	n, ok := r.nodes[topic]
	if !ok {
		r.mu.Unlock()
		return own, effective, fmt.Errorf("%w: %s", ErrDeviceNotFound, topic)
	}
	evictions := r.sweepLocked(now)
	own = *n.Config()
	effective = r.compileLocked(topic)
	r.mu.Unlock()

	r.notify(evictions)
	return own, effective, nil
}

// Resolve computes the target state of the node at topic.
func (r *Registry) Resolve(topic lighting.Topic, now time.Time) (lighting.State, error) {
	r.mu.Lock()
	if _, ok := r.nodes[topic]; !ok {
		r.mu.Unlock()
		return lighting.State{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, topic)
	}
	evictions := r.sweepLocked(now)
	s := lighting.Resolve(r.compileLocked(topic), r.Baseline(now))
	r.mu.Unlock()

	r.notify(evictions)
	return s, nil
}

// Targets resolves every physical light below topic.
func (r *Registry) Targets(topic lighting.Topic, now time.Time) ([]Target, error) {
	r.mu.Lock()
	n, ok := r.nodes[topic]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, topic)
	}
	evictions := r.sweepLocked(now)
	baseline := r.Baseline(now)

	lights := lighting.Flatten(n)
	targets := make([]Target, 0, len(lights))
	for _, l := range lights {
		targets = append(targets, Target{
			Topic:    l.Topic(),
			Name:     l.Name(),
			DeviceID: l.DeviceID(),
			Dimmable: l.IsDimmable(),
			Color:    l.IsColor(),
			State:    lighting.Resolve(r.compileLocked(l.Topic()), baseline),
		})
	}
	r.mu.Unlock()

	r.notify(evictions)
	return targets, nil
}

// UpdateState records the last known state of a physical light.
func (r *Registry) UpdateState(topic lighting.Topic, s lighting.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, topic)
	}
	light, ok := n.(*lighting.Concrete)
	if !ok {
		return fmt.Errorf("%s is a group", topic)
	}
	light.UpdateState(s)
	return nil
}

// Sweep evicts stale temporary overrides from every node.
func (r *Registry) Sweep(now time.Time) []Eviction {
	r.mu.Lock()
	evictions := r.sweepLocked(now)
	r.mu.Unlock()

	r.notify(evictions)
	return evictions
}

// Snapshot copies what commands changed in every node's configuration:
// temporary values, and permanent values that differ from the home spec.
func (r *Registry) Snapshot() map[lighting.Topic]lighting.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[lighting.Topic]lighting.Config, len(r.nodes))
	for topic, n := range r.nodes {
		snap[topic] = n.Config().Delta(r.defaults[topic])
	}
	return snap
}

// Restore layers a snapshot over the configuration built from the home spec,
// so spec values the snapshot does not override survive spec edits. Topics
// that no longer exist are skipped and returned.
func (r *Registry) Restore(snap map[lighting.Topic]lighting.Config) []lighting.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	var unknown []lighting.Topic
	for topic, cfg := range snap {
		n, ok := r.nodes[topic]
		if !ok {
			unknown = append(unknown, topic)
			continue
		}
		*n.Config() = cfg.WithParent(r.defaults[topic])
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return unknown
}

// compileLocked merges a node's configuration with its ancestors',
// nearest first. Caller holds the lock.
func (r *Registry) compileLocked(topic lighting.Topic) lighting.Config {
	cfg := *r.nodes[topic].Config()
	for p, ok := r.parents[topic]; ok; p, ok = r.parents[p] {
		cfg = cfg.WithParent(*r.nodes[p].Config())
	}
	return cfg
}

func (r *Registry) sweepLocked(now time.Time) []Eviction {
	if r.ttl <= 0 {
		return nil
	}
	var evictions []Eviction
	for _, topic := range r.order {
		n := r.nodes[topic]
		cfg, fields := n.Config().Evict(now, r.ttl)
		if len(fields) == 0 {
			continue
		}
		*n.Config() = cfg
		evictions = append(evictions, Eviction{Topic: topic, Fields: fields, At: now})
	}
	return evictions
}

func (r *Registry) notify(evictions []Eviction) {
	if r.onEvict == nil {
		return
	}
	for _, e := range evictions {
		r.onEvict(e)
	}
}
