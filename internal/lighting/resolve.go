package lighting

import "math"

// OffThreshold is the level below which brightness, white temperature and
// color value snap to exactly zero.
const OffThreshold = 0.05

// colorOffsetStep is the hue rotation per color offset step.
const colorOffsetStep = 0.2

// Resolve combines an effective Config with the baseline into the target state.
//
// With dynamic disabled the static state is used (fully-on white when unset)
// and only on/off is taken from the config. Otherwise the relative modifiers
// are applied to the baseline; the node is on only if the config allows it and
// the resulting brightness is non-zero. A non-colorful node is desaturated to
// white.
func Resolve(cfg Config, baseline State) State {
	if !cfg.Dynamic.ValueOr(true) {
		s := cfg.Static.ValueOr(Max())
		s.On = cfg.ToggledOn.ValueOr(s.On)
		return finalize(s)
	}

	s := baseline.Clamp()
	s.Brightness = ScaleRelative(s.Brightness, cfg.Brightness.ValueOr(0))
	s.WhiteTemp = ScaleRelative(s.WhiteTemp, cfg.WhiteTemp.ValueOr(0))
	s.Color.H = ScaleRelative(s.Color.H, cfg.Hue.ValueOr(0))
	s.Color.S = ScaleRelative(s.Color.S, cfg.Saturation.ValueOr(0))
	s.Color.V = ScaleRelative(s.Color.V, cfg.Luminance.ValueOr(0))
	if offset := cfg.ColorOffset.ValueOr(0); offset != 0 {
		s.Color.H = rotateHue(s.Color.H, float64(offset)*colorOffsetStep)
	}

	s = finalize(s)
	s.On = cfg.ToggledOn.ValueOr(baseline.On) && s.Brightness > 0

	if !cfg.Colorful.ValueOr(true) {
		s.Color.H = 0
		s.Color.S = 0
	}
	return s
}

// finalize clamps every channel and snaps near-zero light output to zero.
func finalize(s State) State {
	s = s.Clamp()
	s.Brightness = snap(s.Brightness)
	s.WhiteTemp = snap(s.WhiteTemp)
	s.Color.V = snap(s.Color.V)
	return s
}

func snap(v float64) float64 {
	if v < OffThreshold {
		return 0
	}
	return v
}

func rotateHue(h, by float64) float64 {
	h = math.Mod(h+by, 1)
	if h < 0 {
		h++
	}
	return h
}
