package reconcile

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/homebase/internal/home"
)

// Applier pushes a resolved target to its physical light.
type Applier interface {
	Apply(ctx context.Context, target home.Target) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, target home.Target) error

// Apply calls f.
func (f ApplierFunc) Apply(ctx context.Context, target home.Target) error {
	return f(ctx, target)
}

// LogApplier only logs targets. Used for dry runs and when no bridge is configured.
type LogApplier struct{}

// Apply logs the target.
func (LogApplier) Apply(_ context.Context, target home.Target) error {
	log.Info().
		Str("topic", target.Topic.String()).
		Str("device_id", target.DeviceID).
		Bool("on", target.State.On).
		Float64("brightness", target.State.Brightness).
		Float64("white_temp", target.State.WhiteTemp).
		Float64("hue", target.State.Color.H).
		Float64("saturation", target.State.Color.S).
		Msg("Dry run: would apply state to light")
	return nil
}
