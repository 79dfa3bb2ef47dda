// Package remote turns remote control presses into commands for the room the
// remote belongs to.
package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/homebase/internal/command"
	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/hue"
	"github.com/dokzlo13/homebase/internal/lighting"
)

// Source tags commands issued by remotes.
const Source = "remote"

// ErrInvalidRemote is returned for remote declarations that cannot be bound.
var ErrInvalidRemote = errors.New("invalid remote")

// eventNamespace derives command IDs from bridge event IDs.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("homebase/remote-event"))

// Submitter runs commands. *command.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, cmd command.Command) (command.Result, error)
}

// Topics reports whether a topic addresses a node. *home.Registry implements it.
type Topics interface {
	Has(topic lighting.Topic) bool
}

// Binding is the command an action issues.
type Binding struct {
	Kind  command.Kind   `json:"command"`
	Topic lighting.Topic `json:"topic"`
	Args  map[string]any `json:"args,omitempty"`
}

// Remote is a remote control with its resolved bindings.
type Remote struct {
	Name     string             `json:"name"`
	Room     string             `json:"room"`
	Bindings map[string]Binding `json:"bindings"`
}

type buttonRef struct {
	remote *Remote
	button string
}

// Options configures a Router.
type Options struct {
	// RotaryQuiet is how long a dial must rest before its steps are submitted.
	RotaryQuiet time.Duration
	// RotaryStep is the brightness change per rotary step.
	RotaryStep float64
	// Timeout bounds a single command submission.
	Timeout time.Duration
}

// Router maps bridge events to remote bindings and submits their commands.
type Router struct {
	submit  Submitter
	remotes []*Remote
	buttons map[string]buttonRef
	opts    Options

	mu         sync.Mutex
	collectors map[string]*quietCollector
}

// NewRouter binds the remotes declared in the home's rooms.
func NewRouter(h *home.Home, topics Topics, submit Submitter, opts Options) (*Router, error) {
	if opts.RotaryQuiet <= 0 {
		opts.RotaryQuiet = 250 * time.Millisecond
	}
	if opts.RotaryStep <= 0 {
		opts.RotaryStep = 1.0 / 300
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	r := &Router{
		submit:     submit,
		buttons:    make(map[string]buttonRef),
		opts:       opts,
		collectors: make(map[string]*quietCollector),
	}
	for _, room := range h.Rooms {
		for _, spec := range room.Remotes {
			remote, err := bind(room.Name, spec, topics)
			if err != nil {
				return nil, err
			}
			for resourceID, button := range spec.Buttons {
				if prev, ok := r.buttons[resourceID]; ok {
					return nil, fmt.Errorf("%w: resource %s bound by %q and %q", ErrInvalidRemote, resourceID, prev.remote.Name, remote.Name)
				}
				r.buttons[resourceID] = buttonRef{remote: remote, button: button}
			}
			r.remotes = append(r.remotes, remote)
		}
	}
	log.Debug().Int("remotes", len(r.remotes)).Int("resources", len(r.buttons)).Msg("Remotes bound")
	return r, nil
}

func bind(room string, spec home.RemoteSpec, topics Topics) (*Remote, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: remote without name in room %q", ErrInvalidRemote, room)
	}
	roomTopic := home.ForRoom(room)
	remote := &Remote{Name: spec.Name, Room: room, Bindings: make(map[string]Binding)}

	if spec.Preset != "" {
		preset, ok := presets[strings.ToLower(spec.Preset)]
		if !ok {
			return nil, fmt.Errorf("%w: remote %q has unknown preset %q", ErrInvalidRemote, spec.Name, spec.Preset)
		}
		for action, p := range preset {
			remote.Bindings[action] = Binding{Kind: p.kind, Topic: roomTopic, Args: p.args}
		}
	}

	for action, as := range spec.Actions {
		kind, err := command.ParseKind(as.Command)
		if err != nil {
			return nil, fmt.Errorf("%w: remote %q action %q: %v", ErrInvalidRemote, spec.Name, action, err)
		}
		topic := roomTopic
		if as.Target != "" {
			topic = home.ParseTopic(string(roomTopic) + "/" + as.Target)
		}
		if !topics.Has(topic) {
			return nil, fmt.Errorf("%w: remote %q action %q targets unknown %s", ErrInvalidRemote, spec.Name, action, topic)
		}
		remote.Bindings[action] = Binding{Kind: kind, Topic: topic, Args: as.Args}
	}

	if len(remote.Bindings) == 0 {
		return nil, fmt.Errorf("%w: remote %q has no preset and no actions", ErrInvalidRemote, spec.Name)
	}
	return remote, nil
}

// Remotes returns the bound remotes sorted by room and name.
func (r *Router) Remotes() []*Remote {
	out := append([]*Remote(nil), r.remotes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Room != out[j].Room {
			return out[i].Room < out[j].Room
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Handle routes a bridge event. Button events are submitted right away;
// rotary steps are summed until the dial rests.
func (r *Router) Handle(ctx context.Context, ev hue.Event) {
	ref, ok := r.buttons[ev.ResourceID]
	if !ok {
		return
	}

	switch ev.Kind {
	case hue.EventButton:
		action, ok := buttonAction(ref.button, ev.Action)
		if !ok {
			return
		}
		r.fire(ctx, ref.remote, action, nil, ev.EventID)

	case hue.EventRotary:
		steps := ev.Steps
		if ev.Direction != "clock_wise" {
			steps = -steps
		}
		r.collector(ref.remote, ev.ResourceID).add(steps, ev.EventID)
	}
}

func (r *Router) collector(remote *Remote, resourceID string) *quietCollector {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collectors[resourceID]
	if !ok {
		c = newQuietCollector(r.opts.RotaryQuiet, func(steps int, eventID string) {
			action := ActionRotateClockwise
			if steps < 0 {
				action = ActionRotateCounterClockwise
			}
			step := math.Min(1, math.Abs(float64(steps))*r.opts.RotaryStep)
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
			defer cancel()
			r.fire(ctx, remote, action, map[string]any{"step": step}, eventID)
		})
		r.collectors[resourceID] = c
	}
	return c
}

// fire submits the binding of action. Binding args take precedence over extra.
func (r *Router) fire(ctx context.Context, remote *Remote, action string, extra map[string]any, eventID string) {
	b, ok := remote.Bindings[action]
	if !ok {
		log.Debug().Str("remote", remote.Name).Str("action", action).Msg("Remote action not bound")
		return
	}

	args := make(map[string]any, len(extra)+len(b.Args))
	if b.Kind == command.KindDimUp || b.Kind == command.KindDimDown {
		for k, v := range extra {
			args[k] = v
		}
	}
	for k, v := range b.Args {
		args[k] = v
	}

	cmd := command.New(b.Kind, b.Topic, args)
	if eventID != "" {
		cmd.ID = uuid.NewSHA1(eventNamespace, []byte(eventID))
	}
	cmd.Source = Source

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	res, err := r.submit.Submit(ctx, cmd)
	if err != nil {
		log.Error().Err(err).
			Str("remote", remote.Name).
			Str("action", action).
			Str("command", b.Kind.String()).
			Str("topic", b.Topic.String()).
			Msg("Remote command failed")
		return
	}
	log.Info().
		Str("remote", remote.Name).
		Str("action", action).
		Str("command", b.Kind.String()).
		Str("topic", b.Topic.String()).
		Bool("duplicate", res.Duplicate).
		Msg("Remote command executed")
}

// Close stops pending rotary collectors.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.collectors {
		c.close()
	}
}
