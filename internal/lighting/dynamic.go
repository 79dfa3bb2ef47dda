package lighting

import (
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Zone is an entry of the circadian color schedule.
type Zone struct {
	Hour  int
	Color HSV
	Label string
}

// stepsPerHour sets the ramp granularity to 30 minutes.
const stepsPerHour = 2

var (
	darkGreen = HSV{H: 0.33, S: 1, V: 0.2}
	red       = HSV{H: 0.00, S: 1, V: 1}
	orange    = HSV{H: 0.10, S: 1, V: 1}
	yellow    = HSV{H: 0.17, S: 1, V: 1}
)

var zones = [...]Zone{
	{Hour: 0, Color: darkGreen, Label: "midnight"},
	{Hour: 2, Color: red, Label: "night"},
	{Hour: 4, Color: orange, Label: "early morning"},
	{Hour: 7, Color: yellow, Label: "morning"},
	{Hour: 11, Color: White, Label: "day"},
	{Hour: 15, Color: yellow, Label: "afternoon"},
	{Hour: 18, Color: orange, Label: "evening"},
}

// Zones returns a copy of the schedule.
func Zones() []Zone {
	return append([]Zone(nil), zones[:]...)
}

// Recommended returns the baseline state for the wall-clock time of t in its
// own location. It must be evaluated per resolution pass.
func Recommended(t time.Time) State {
	h := hourOfDay(t)
	brightness := RecommendedBrightness(h)
	return State{
		On:         true,
		Brightness: brightness,
		WhiteTemp:  brightness,
		Color:      recommendedColor(h),
	}
}

// RecommendedBrightness is triangular over the day: 1 at noon, 0 at midnight.
func RecommendedBrightness(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return clamp01(1 - math.Abs(12-h)/12)
}

// ZoneAt returns the zone active at t.
func ZoneAt(t time.Time) Zone {
	start, _ := bracket(hourOfDay(t))
	return start
}

func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// bracket returns the zone containing h and the zone that follows it. The
// last zone is closed by a virtual zone at 24 carrying the first zone's color.
func bracket(h float64) (Zone, Zone) {
	for i := 0; i+1 < len(zones); i++ {
		if float64(zones[i].Hour) <= h && h < float64(zones[i+1].Hour) {
			return zones[i], zones[i+1]
		}
	}
	first := zones[0]
	return zones[len(zones)-1], Zone{Hour: 24, Color: first.Color, Label: first.Label}
}

func recommendedColor(h float64) HSV {
	start, end := bracket(h)
	ramp := colorRamp(start.Color, end.Color, (end.Hour-start.Hour)*stepsPerHour)

	// A step begins strictly after the half hour.
	step := (int(math.Floor(h)) - start.Hour) * stepsPerHour
	if h-math.Floor(h) > 1.0/stepsPerHour {
		step++
	}
	if step >= len(ramp) {
		step = len(ramp) - 1
	}
	return ramp[step]
}

// colorRamp returns n evenly spaced colors from start to end inclusive.
func colorRamp(start, end HSV, n int) []HSV {
	if n <= 1 {
		return []HSV{start}
	}
	from := colorful.Hsv(start.H*360, start.S, start.V)
	to := colorful.Hsv(end.H*360, end.S, end.V)
	ramp := make([]HSV, n)
	for i := range ramp {
		c := from.BlendHsv(to, float64(i)/float64(n-1))
		h, s, v := c.Hsv()
		ramp[i] = HSV{H: clamp01(h / 360), S: clamp01(s), V: clamp01(v)}
	}
	return ramp
}
