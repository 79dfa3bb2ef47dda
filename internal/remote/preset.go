package remote

import "github.com/dokzlo13/homebase/internal/command"

// Action names built from bridge reports. Button actions are
// "<button>_click", "<button>_hold" and "<button>_release".
const (
	ActionRotateClockwise        = "rotate_clockwise"
	ActionRotateCounterClockwise = "rotate_counter_clockwise"
)

type presetBinding struct {
	kind command.Kind
	args map[string]any
}

// presets are the default bindings of the supported remote models.
var presets = map[string]map[string]presetBinding{
	"dimmer": {
		"on_click":   {kind: command.KindTurnOn},
		"off_click":  {kind: command.KindTurnOff},
		"up_click":   {kind: command.KindDimUp},
		"down_click": {kind: command.KindDimDown},
	},
	"multi": {
		"toggle_click":          {kind: command.KindToggle},
		"arrow_left_click":      {kind: command.KindShiftColor, args: map[string]any{"steps": -1}},
		"arrow_right_click":     {kind: command.KindShiftColor, args: map[string]any{"steps": 1}},
		"brightness_down_click": {kind: command.KindDimDown},
		"brightness_up_click":   {kind: command.KindDimUp},
		"brightness_up_hold":    {kind: command.KindDisableDynamic},
		"brightness_down_hold":  {kind: command.KindEnableDynamic},
		"arrow_left_hold":       {kind: command.KindEnableColorful},
		"arrow_right_hold":      {kind: command.KindDisableColorful},
	},
	"dial": {
		"button_click":               {kind: command.KindToggle},
		ActionRotateClockwise:        {kind: command.KindDimUp},
		ActionRotateCounterClockwise: {kind: command.KindDimDown},
	},
}

// Presets returns the names of the built-in presets.
func Presets() []string {
	return []string{"dial", "dimmer", "multi"}
}

// buttonAction maps a bridge button event to an action suffix. Presses and
// repeats are ignored.
func buttonAction(button, event string) (string, bool) {
	switch event {
	case "short_release":
		return button + "_click", true
	case "long_press":
		return button + "_hold", true
	case "long_release":
		return button + "_release", true
	}
	return "", false
}
