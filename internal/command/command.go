// Package command turns user and device requests into configuration
// mutations on the light hierarchy.
package command

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/dokzlo13/homebase/internal/lighting"
)

var (
	// ErrUnknownCommand is returned for command names that do not exist.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgs is returned when a command's arguments cannot be used.
	ErrInvalidArgs = errors.New("invalid command arguments")
)

// DefaultDimStep is the brightness step of DimUp and DimDown.
const DefaultDimStep = 0.2

// Command is a request to change a node.
type Command struct {
	ID     uuid.UUID      `json:"id"`
	Kind   Kind           `json:"kind"`
	Topic  lighting.Topic `json:"topic"`
	Args   map[string]any `json:"args,omitempty"`
	Source string         `json:"source,omitempty"`
}

// New creates a command with a fresh ID.
func New(kind Kind, topic lighting.Topic, args map[string]any) Command {
	return Command{ID: uuid.New(), Kind: kind, Topic: topic, Args: args}
}

// Result describes the outcome of an executed command.
type Result struct {
	ID        uuid.UUID      `json:"id"`
	Kind      Kind           `json:"kind"`
	Topic     lighting.Topic `json:"topic"`
	State     lighting.State `json:"state"`
	Duplicate bool           `json:"duplicate,omitempty"`
}

type temporaryArgs struct {
	Temporary bool `json:"temporary"`
}

type dimArgs struct {
	Step float64 `json:"step"`
}

type brightnessArgs struct {
	Brightness *float64 `json:"brightness"`
}

type modifierArgs struct {
	Channel   lighting.Channel `json:"channel"`
	Value     *float64         `json:"value"`
	Temporary bool             `json:"temporary"`
}

type shiftArgs struct {
	Steps     int  `json:"steps"`
	Temporary bool `json:"temporary"`
}

type staticArgs struct {
	State     lighting.State `json:"state"`
	Temporary bool           `json:"temporary"`
}

type inheritArgs struct {
	Field string `json:"field"`
}

// decodeArgs decodes a command's loosely typed arguments into out. Strings
// are accepted for numbers and booleans; unknown keys are rejected.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}
