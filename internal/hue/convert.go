package hue

import (
	"math"

	"github.com/amimof/huego"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/lighting"
)

// Bridge value ranges (CLIP v1).
const (
	minBri    = 1
	maxBri    = 254
	maxHue    = 65535
	maxSat    = 254
	coolMirek = 153
	warmMirek = 500
)

// ToHueState converts a resolved target into the bridge state for its light.
// Simple lights only switch; dimmable lights also get brightness; color
// lights get a color when saturated and a white temperature otherwise.
func ToHueState(t home.Target) huego.State {
	if !t.State.On {
		return huego.State{On: false}
	}
	s := huego.State{On: true}
	if !t.Dimmable && !t.Color {
		return s
	}
	s.Bri = brightnessToBri(t.State.Brightness)
	if !t.Color {
		return s
	}
	if t.State.Color.S > 0 {
		s.Xy = colorToXy(t.State.Color)
	} else {
		s.Ct = whiteTempToCt(t.State.WhiteTemp)
	}
	return s
}

// FromHueState converts a bridge light state into a lighting state.
func FromHueState(s huego.State) lighting.State {
	out := lighting.State{
		On:         s.On,
		Brightness: briToBrightness(s.Bri),
		Color:      lighting.White,
	}
	if s.Ct > 0 {
		out.WhiteTemp = ctToWhiteTemp(s.Ct)
	}
	switch s.ColorMode {
	case "xy":
		if len(s.Xy) == 2 {
			out.Color = xyToColor(s.Xy)
		}
	case "hs":
		out.Color = lighting.HSV{
			H: float64(s.Hue) / maxHue,
			S: float64(s.Sat) / maxSat,
			V: 1,
		}
	}
	return out.Clamp()
}

func brightnessToBri(b float64) uint8 {
	b = math.Max(0, math.Min(1, b))
	return uint8(math.Round(minBri + b*(maxBri-minBri)))
}

func briToBrightness(bri uint8) float64 {
	if bri <= minBri {
		return 0
	}
	return float64(bri-minBri) / (maxBri - minBri)
}

// whiteTempToCt maps 0 to the warmest and 1 to the coolest white.
func whiteTempToCt(w float64) uint16 {
	w = math.Max(0, math.Min(1, w))
	return uint16(math.Round(warmMirek - w*(warmMirek-coolMirek)))
}

func ctToWhiteTemp(ct uint16) float64 {
	c := math.Max(coolMirek, math.Min(warmMirek, float64(ct)))
	return (warmMirek - c) / (warmMirek - coolMirek)
}

func colorToXy(c lighting.HSV) []float32 {
	x, y, _ := colorful.Hsv(c.H*360, c.S, 1).Xyy()
	return []float32{float32(x), float32(y)}
}

// xyToColor recovers the fully bright color of a chromaticity. Linear RGB is
// scaled so its largest channel is 1 before gamma is applied.
func xyToColor(xy []float32) lighting.HSV {
	r, g, b := colorful.XyzToLinearRgb(colorful.XyyToXyz(float64(xy[0]), float64(xy[1]), 1))
	r, g, b = math.Max(r, 0), math.Max(g, 0), math.Max(b, 0)
	peak := math.Max(r, math.Max(g, b))
	if peak == 0 {
		return lighting.White
	}
	h, s, _ := colorful.LinearRgb(r/peak, g/peak, b/peak).Hsv()
	return lighting.HSV{H: h / 360, S: s, V: 1}
}
