package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/homebase/internal/clock"
	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/ledger"
	"github.com/dokzlo13/homebase/internal/lighting"
)

// Ledger records executed commands.
type Ledger interface {
	Append(ctx context.Context, rec ledger.Record) error
	HasApplied(ctx context.Context, idempotencyKey string) bool
}

// Trigger schedules reconciliation of the lights below a topic. Forced
// reconciliation resends states even when they did not change.
type Trigger interface {
	Trigger(topic lighting.Topic, force bool)
}

// StateReader reads the state a light actually shows.
type StateReader interface {
	ReadState(ctx context.Context, deviceID string) (lighting.State, error)
}

// Recorder counts executed commands.
type Recorder interface {
	CommandExecuted(kind string, err error)
}

// Executor applies commands to the registry, one configuration mutation per
// command.
type Executor struct {
	registry *home.Registry
	ledger   Ledger
	trigger  Trigger
	reader   StateReader
	metrics  Recorder
	clock    clock.Clock
}

// ExecutorOption configures optional collaborators.
type ExecutorOption func(*Executor)

// WithStateReader lets ReportState without arguments read the device.
func WithStateReader(r StateReader) ExecutorOption {
	return func(e *Executor) { e.reader = r }
}

// WithRecorder counts executed commands.
func WithRecorder(m Recorder) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) ExecutorOption {
	return func(e *Executor) { e.clock = c }
}

// NewExecutor creates an executor.
func NewExecutor(registry *home.Registry, l Ledger, trigger Trigger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		ledger:   l,
		trigger:  trigger,
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies cmd, records it in the ledger and triggers reconciliation of
// the affected lights. A command whose ID was already applied is skipped.
func (e *Executor) Execute(ctx context.Context, cmd Command) (Result, error) {
	result := Result{ID: cmd.ID, Kind: cmd.Kind, Topic: cmd.Topic}
	key := cmd.ID.String()

	if e.ledger != nil && e.ledger.HasApplied(ctx, key) {
		log.Debug().Str("id", key).Msg("Command already applied, skipping")
		result.Duplicate = true
		var err error
		result.State, err = e.registry.Resolve(cmd.Topic, e.clock.Now())
		return result, err
	}

	log.Info().
		Str("id", key).
		Str("command", cmd.Kind.String()).
		Str("topic", string(cmd.Topic)).
		Msg("Executing command")

	now := e.clock.Now()
	force, err := e.apply(ctx, cmd, now)
	if e.metrics != nil {
		e.metrics.CommandExecuted(cmd.Kind.String(), err)
	}
	e.record(ctx, cmd, err)
	if err != nil {
		return result, err
	}

	if e.trigger != nil {
		e.trigger.Trigger(cmd.Topic, force)
	}
	result.State, err = e.registry.Resolve(cmd.Topic, now)
	return result, err
}

func (e *Executor) record(ctx context.Context, cmd Command, execErr error) {
	if e.ledger == nil {
		return
	}
	rec := ledger.Record{
		Type:           ledger.EventCommandApplied,
		Topic:          string(cmd.Topic),
		Source:         cmd.Source,
		IdempotencyKey: cmd.ID.String(),
		Payload:        map[string]any{"kind": cmd.Kind.String()},
	}
	if len(cmd.Args) > 0 {
		rec.Payload["args"] = cmd.Args
	}
	if execErr != nil {
		rec.Type = ledger.EventCommandFailed
		rec.Payload["error"] = execErr.Error()
	}
	if err := e.ledger.Append(ctx, rec); err != nil {
		log.Error().Err(err).Str("id", rec.IdempotencyKey).Msg("Failed to record command")
	}
}

// apply performs the mutation. It reports whether reconciliation must resend
// unchanged states.
func (e *Executor) apply(ctx context.Context, cmd Command, now time.Time) (bool, error) {
	switch cmd.Kind {
	case KindToggle:
		current, err := e.registry.Resolve(cmd.Topic, now)
		if err != nil {
			return false, err
		}
		return false, e.mutate(cmd.Topic, func(n lighting.Node, cfg *lighting.Config) error {
			cfg.OverrideToggledOnTemporarily(!current.On, now)
			clearBelow(n, clearToggledOn)
			return nil
		})

	case KindTurnOn, KindTurnOff:
		on := cmd.Kind == KindTurnOn
		return false, e.mutate(cmd.Topic, func(n lighting.Node, cfg *lighting.Config) error {
			cfg.OverrideToggledOnTemporarily(on, now)
			clearBelow(n, clearToggledOn)
			return nil
		})

	case KindDimUp, KindDimDown:
		args := dimArgs{Step: DefaultDimStep}
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		if args.Step <= 0 || args.Step > 1 {
			return false, fmt.Errorf("%w: step %v outside (0,1]", ErrInvalidArgs, args.Step)
		}
		step := args.Step
		if cmd.Kind == KindDimDown {
			step = -step
		}
		return false, e.dim(cmd.Topic, step, now)

	case KindSetBrightness:
		var args brightnessArgs
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		if args.Brightness == nil {
			return false, fmt.Errorf("%w: brightness is required", ErrInvalidArgs)
		}
		return false, e.setBrightness(cmd.Topic, *args.Brightness, now)

	case KindEnableDynamic, KindDisableDynamic:
		var args temporaryArgs
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		on := cmd.Kind == KindEnableDynamic
		return false, e.mutate(cmd.Topic, func(_ lighting.Node, cfg *lighting.Config) error {
			if args.Temporary {
				cfg.OverrideDynamicTemporarily(on, now)
			} else {
				cfg.OverrideDynamic(on)
			}
			return nil
		})

	case KindEnableColorful, KindDisableColorful:
		var args temporaryArgs
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		on := cmd.Kind == KindEnableColorful
		return false, e.mutate(cmd.Topic, func(_ lighting.Node, cfg *lighting.Config) error {
			if args.Temporary {
				cfg.OverrideColorfulTemporarily(on, now)
			} else {
				cfg.OverrideColorful(on)
			}
			return nil
		})

	case KindSetModifier:
		var args modifierArgs
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		if args.Value == nil {
			return false, fmt.Errorf("%w: value is required", ErrInvalidArgs)
		}
		if !lighting.ValidChannel(args.Channel) {
			return false, fmt.Errorf("%w: unknown channel %q", ErrInvalidArgs, args.Channel)
		}
		if *args.Value < -1 || *args.Value > 1 {
			return false, fmt.Errorf("%w: modifier %v outside [-1,1]", ErrInvalidArgs, *args.Value)
		}
		return false, e.mutate(cmd.Topic, func(_ lighting.Node, cfg *lighting.Config) error {
			cfg.SetModifier(args.Channel, *args.Value, args.Temporary, now)
			return nil
		})

	case KindShiftColor:
		args := shiftArgs{Steps: 1}
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		return false, e.mutate(cmd.Topic, func(_ lighting.Node, cfg *lighting.Config) error {
			if args.Temporary {
				cfg.AdaptColorOffsetTemporarily(args.Steps, now)
			} else {
				cfg.AdaptColorOffset(args.Steps)
			}
			return nil
		})

	case KindSetStatic:
		var args staticArgs
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		return false, e.mutate(cmd.Topic, func(_ lighting.Node, cfg *lighting.Config) error {
			if args.Temporary {
				cfg.Static.SetTemp(args.State.Clamp(), now)
			} else {
				cfg.OverrideStatic(args.State)
			}
			return nil
		})

	case KindInherit:
		var args inheritArgs
		if err := decodeArgs(cmd.Args, &args); err != nil {
			return false, err
		}
		return false, e.mutate(cmd.Topic, func(_ lighting.Node, cfg *lighting.Config) error {
			return inherit(cfg, args.Field)
		})

	case KindReportState:
		return false, e.reportState(ctx, cmd, now)

	case KindRefresh:
		if !e.registry.Has(cmd.Topic) {
			return false, fmt.Errorf("%w: %s", home.ErrDeviceNotFound, cmd.Topic)
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
}

func (e *Executor) mutate(topic lighting.Topic, fn func(lighting.Node, *lighting.Config) error) error {
	return e.registry.Mutate(topic, fn)
}

// dim moves the resolved brightness of the node by step.
func (e *Executor) dim(topic lighting.Topic, step float64, now time.Time) error {
	current, err := e.registry.Resolve(topic, now)
	if err != nil {
		return err
	}
	return e.setBrightness(topic, math.Max(0, math.Min(1, current.Brightness+step)), now)
}

// setBrightness makes the next resolve of the node produce brightness.
func (e *Executor) setBrightness(topic lighting.Topic, brightness float64, now time.Time) error {
	adapt, err := e.brightnessMutation(topic, brightness, now)
	if err != nil {
		return err
	}
	return e.mutate(topic, func(n lighting.Node, cfg *lighting.Config) error {
		adapt(cfg)
		clearBelow(n, clearBrightness)
		return nil
	})
}

// clearBelow drops temporary values from every node below a group so the
// group's own value reaches all of its lights.
func clearBelow(n lighting.Node, clear func(*lighting.Config)) {
	if _, ok := n.(*lighting.Group); !ok {
		return
	}
	lighting.Walk(n, func(d lighting.Node, _ []lighting.Node) bool {
		if d != n {
			clear(d.Config())
		}
		return true
	})
}

func clearToggledOn(cfg *lighting.Config) { cfg.ToggledOn.ClearTemp() }

func clearBrightness(cfg *lighting.Config) {
	cfg.Brightness.ClearTemp()
	cfg.Static.ClearTemp()
}

// brightnessMutation computes the change that makes the node resolve to
// brightness. Static nodes change their static brightness, dynamic nodes get
// a temporary brightness modifier relative to the baseline. Brightness below
// lighting.OffThreshold resolves to zero, which turns the light off.
func (e *Executor) brightnessMutation(topic lighting.Topic, brightness float64, now time.Time) (func(*lighting.Config), error) {
	if math.IsNaN(brightness) || brightness < 0 || brightness > 1 {
		return nil, fmt.Errorf("%w: brightness %v outside [0,1]", ErrInvalidArgs, brightness)
	}
	if brightness < lighting.OffThreshold {
		brightness = 0
	}
	_, effective, err := e.registry.Config(topic, now)
	if err != nil {
		return nil, err
	}
	if !effective.Dynamic.ValueOr(true) {
		s := effective.Static.ValueOr(lighting.Max())
		s.Brightness = brightness
		s.On = brightness > 0
		return func(cfg *lighting.Config) { cfg.Static.SetTemp(s.Clamp(), now) }, nil
	}

	mod, err := lighting.AccommodateBrightness(e.registry.Baseline(now), brightness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return func(cfg *lighting.Config) { cfg.SetBrightnessModTemporarily(mod, now) }, nil
}

// reportState records what a physical light actually shows and adapts its
// configuration so the next resolve keeps it.
func (e *Executor) reportState(ctx context.Context, cmd Command, now time.Time) error {
	info, err := e.registry.Describe(cmd.Topic)
	if err != nil {
		return err
	}
	if info.Group {
		return fmt.Errorf("%w: report_state needs a single light, %s is a group", ErrInvalidArgs, cmd.Topic)
	}

	var args brightnessArgs
	if err := decodeArgs(cmd.Args, &args); err != nil {
		return err
	}

	var reported lighting.State
	switch {
	case args.Brightness != nil:
		reported = info.State
		reported.Brightness = *args.Brightness
		reported.On = *args.Brightness > 0
	case e.reader != nil:
		reported, err = e.reader.ReadState(ctx, info.DeviceID)
		if err != nil {
			return fmt.Errorf("failed to read state of %s: %w", cmd.Topic, err)
		}
	default:
		return fmt.Errorf("%w: brightness is required", ErrInvalidArgs)
	}
	reported = reported.Clamp()

	adapt := func(*lighting.Config) {}
	if info.Dimmable && reported.On {
		adapt, err = e.brightnessMutation(cmd.Topic, reported.Brightness, now)
		if err != nil {
			return err
		}
	}
	if err := e.registry.UpdateState(cmd.Topic, reported); err != nil {
		return err
	}
	return e.mutate(cmd.Topic, func(_ lighting.Node, cfg *lighting.Config) error {
		cfg.OverrideToggledOnTemporarily(reported.On, now)
		adapt(cfg)
		return nil
	})
}

// inherit clears one field of the node's own configuration so the value is
// inherited from its ancestors again. "all" clears everything.
func inherit(cfg *lighting.Config, field string) error {
	switch field {
	case "all":
		*cfg = lighting.Config{}
	case "colorful":
		cfg.InheritColorful()
	case "dynamic":
		cfg.InheritDynamic()
	case "on":
		cfg.InheritToggledOn()
	case "static":
		cfg.InheritStatic()
	case "color_offset":
		cfg.ColorOffset.Clear()
	default:
		if !cfg.InheritModifier(lighting.Channel(field)) {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidArgs, field)
		}
	}
	return nil
}

// IsClientError reports whether err was caused by the request rather than the
// system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgs) || errors.Is(err, ErrUnknownCommand)
}
