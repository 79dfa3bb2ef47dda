// Package hue talks to a Philips Hue bridge: it applies resolved light
// states, reads actual light states and listens to the bridge event stream.
package hue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/lighting"
)

// Lights is the part of the bridge API used for single lights.
// *huego.Bridge implements it.
type Lights interface {
	GetLight(id int) (*huego.Light, error)
	SetLightState(id int, state huego.State) (*huego.Response, error)
}

// Connect creates a bridge client and checks that the bridge accepts the username.
func Connect(address, username string) (*huego.Bridge, error) {
	bridge := huego.New(address, username)
	cfg, err := bridge.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Hue bridge at %s: %w", address, err)
	}
	log.Info().
		Str("address", address).
		Str("bridge", cfg.Name).
		Str("api_version", cfg.APIVersion).
		Msg("Connected to Hue bridge")
	return bridge, nil
}

// Applier writes resolved targets to Hue lights.
type Applier struct {
	lights Lights
}

// NewApplier creates a new light applier.
func NewApplier(lights Lights) *Applier {
	return &Applier{lights: lights}
}

// Apply writes the target state to its light.
func (a *Applier) Apply(ctx context.Context, t home.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := lightID(t.DeviceID)
	if err != nil {
		return err
	}

	state := ToHueState(t)
	log.Info().
		Str("topic", t.Topic.String()).
		Str("light", t.DeviceID).
		Interface("state", state).
		Msg("Applying state to light")

	if _, err := a.lights.SetLightState(id, state); err != nil {
		return fmt.Errorf("failed to set state of light %s: %w", t.DeviceID, err)
	}
	return nil
}

// Reader reads the state Hue lights actually show.
type Reader struct {
	lights Lights
}

// NewReader creates a new light state reader.
func NewReader(lights Lights) *Reader {
	return &Reader{lights: lights}
}

// ReadState fetches the current state of a light from the bridge.
func (r *Reader) ReadState(ctx context.Context, deviceID string) (lighting.State, error) {
	if err := ctx.Err(); err != nil {
		return lighting.State{}, err
	}
	id, err := lightID(deviceID)
	if err != nil {
		return lighting.State{}, err
	}
	light, err := r.lights.GetLight(id)
	if err != nil {
		return lighting.State{}, fmt.Errorf("failed to get light %s: %w", deviceID, err)
	}
	if light.State == nil {
		return lighting.Off(), nil
	}
	return FromHueState(*light.State), nil
}

func lightID(deviceID string) (int, error) {
	id, err := strconv.Atoi(deviceID)
	if err != nil {
		return 0, fmt.Errorf("invalid Hue light id %q: %w", deviceID, err)
	}
	return id, nil
}
