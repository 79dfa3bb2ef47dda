package lighting

import (
	"fmt"
	"math"
)

// HSV is a color with hue, saturation and value each in [0, 1].
type HSV struct {
	H float64 `json:"h" yaml:"h"`
	S float64 `json:"s" yaml:"s"`
	V float64 `json:"v" yaml:"v"`
}

// White is full-value white.
var White = HSV{H: 0, S: 0, V: 1}

// State is the light state of a node: baseline, static override or resolved target.
type State struct {
	On         bool    `json:"on" yaml:"on"`
	Brightness float64 `json:"brightness" yaml:"brightness"`
	WhiteTemp  float64 `json:"white_temp" yaml:"white_temp"`
	Color      HSV     `json:"color" yaml:"color"`
}

// Max returns the fully-on, full-brightness white state.
func Max() State {
	return State{On: true, Brightness: 1, WhiteTemp: 1, Color: White}
}

// Off returns a switched-off state.
func Off() State {
	return State{On: false, Brightness: 0, WhiteTemp: 0, Color: White}
}

// Clamp bounds every channel to [0, 1].
func (s State) Clamp() State {
	s.Brightness = clamp01(s.Brightness)
	s.WhiteTemp = clamp01(s.WhiteTemp)
	s.Color.H = clamp01(s.Color.H)
	s.Color.S = clamp01(s.Color.S)
	s.Color.V = clamp01(s.Color.V)
	return s
}

// Equal compares two states channel by channel within tol.
func (s State) Equal(other State, tol float64) bool {
	return s.On == other.On &&
		math.Abs(s.Brightness-other.Brightness) <= tol &&
		math.Abs(s.WhiteTemp-other.WhiteTemp) <= tol &&
		math.Abs(s.Color.H-other.Color.H) <= tol &&
		math.Abs(s.Color.S-other.Color.S) <= tol &&
		math.Abs(s.Color.V-other.Color.V) <= tol
}

func (s State) String() string {
	onoff := "off"
	if s.On {
		onoff = "on"
	}
	return fmt.Sprintf("<%s bri=%.2f white=%.2f hsv=(%.2f,%.2f,%.2f)>",
		onoff, s.Brightness, s.WhiteTemp, s.Color.H, s.Color.S, s.Color.V)
}

// Average combines member states into a group state. A group is on when any
// member is on; channels are averaged over all members.
func Average(states []State) State {
	if len(states) == 0 {
		return Off()
	}
	var avg State
	n := float64(len(states))
	for _, s := range states {
		avg.On = avg.On || s.On
		avg.Brightness += s.Brightness / n
		avg.WhiteTemp += s.WhiteTemp / n
		avg.Color.H += s.Color.H / n
		avg.Color.S += s.Color.S / n
		avg.Color.V += s.Color.V / n
	}
	return avg.Clamp()
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func bounded(v, least, greatest float64) float64 {
	if v < least {
		return least
	}
	if v > greatest {
		return greatest
	}
	return v
}
