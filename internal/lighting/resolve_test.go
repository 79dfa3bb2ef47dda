package lighting

import (
	"math"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	baseline := State{On: true, Brightness: 0.4, WhiteTemp: 0.4, Color: HSV{H: 0.1, S: 1, V: 1}}

	tests := []struct {
		name     string
		cfg      Config
		baseline State
		expected State
	}{
		{
			name:     "empty_config_follows_baseline",
			cfg:      Config{},
			baseline: baseline,
			expected: baseline,
		},
		{
			name:     "static_when_not_dynamic",
			cfg:      Config{Dynamic: Perm(false), Static: Perm(Max())},
			baseline: baseline,
			expected: Max(),
		},
		{
			name:     "static_defaults_to_max",
			cfg:      Config{Dynamic: Perm(false)},
			baseline: baseline,
			expected: Max(),
		},
		{
			name:     "static_respects_toggled_off",
			cfg:      Config{Dynamic: Perm(false), ToggledOn: Perm(false)},
			baseline: baseline,
			expected: State{On: false, Brightness: 1, WhiteTemp: 1, Color: White},
		},
		{
			name:     "brightness_modifier",
			cfg:      Config{Brightness: Perm(0.5)},
			baseline: baseline,
			expected: State{On: true, Brightness: 0.7, WhiteTemp: 0.4, Color: HSV{H: 0.1, S: 1, V: 1}},
		},
		{
			name:     "toggled_off",
			cfg:      Config{ToggledOn: Temp(false, t0)},
			baseline: baseline,
			expected: State{On: false, Brightness: 0.4, WhiteTemp: 0.4, Color: HSV{H: 0.1, S: 1, V: 1}},
		},
		{
			name:     "not_colorful_is_white",
			cfg:      Config{Colorful: Perm(false)},
			baseline: baseline,
			expected: State{On: true, Brightness: 0.4, WhiteTemp: 0.4, Color: HSV{H: 0, S: 0, V: 1}},
		},
		{
			name:     "zero_brightness_is_off",
			cfg:      Config{Brightness: Perm(-1.0), ToggledOn: Perm(true)},
			baseline: baseline,
			expected: State{On: false, Brightness: 0, WhiteTemp: 0.4, Color: HSV{H: 0.1, S: 1, V: 1}},
		},
		{
			name:     "dim_brightness_snaps_to_zero",
			cfg:      Config{Brightness: Perm(-0.9)},
			baseline: baseline,
			expected: State{On: false, Brightness: 0, WhiteTemp: 0.4, Color: HSV{H: 0.1, S: 1, V: 1}},
		},
		{
			name:     "color_offset_rotates_hue",
			cfg:      Config{ColorOffset: Perm(5)},
			baseline: baseline,
			expected: State{On: true, Brightness: 0.4, WhiteTemp: 0.4, Color: HSV{H: 0.1, S: 1, V: 1}},
		},
		{
			name:     "color_offset_wraps",
			cfg:      Config{ColorOffset: Perm(2)},
			baseline: State{On: true, Brightness: 1, WhiteTemp: 1, Color: HSV{H: 0.9, S: 1, V: 1}},
			expected: State{On: true, Brightness: 1, WhiteTemp: 1, Color: HSV{H: 0.3, S: 1, V: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.cfg, tt.baseline)
			if !got.Equal(tt.expected, 1e-9) {
				t.Errorf("Resolve() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResolve_ScenarioA_StaticIgnoresTime(t *testing.T) {
	static := State{On: true, Brightness: 1, WhiteTemp: 1, Color: White}
	cfg := Config{Dynamic: Perm(false), Static: Perm(static)}

	for h := 0; h < 24; h++ {
		at := time.Date(2024, 6, 1, h, 17, 0, 0, time.UTC)
		if got := Resolve(cfg, Recommended(at)); !got.Equal(static, 0) {
			t.Fatalf("at %v Resolve() = %v, want %v", at, got, static)
		}
	}
}

func TestResolve_ScenarioB_BrightnessModifier(t *testing.T) {
	cfg := Config{Brightness: Perm(0.5)}
	got := Resolve(cfg, State{On: true, Brightness: 0.4, WhiteTemp: 0.4, Color: White})
	if math.Abs(got.Brightness-0.7) > 1e-9 {
		t.Errorf("brightness = %v, want 0.7", got.Brightness)
	}
}

func TestResolve_ChannelsInUnitInterval(t *testing.T) {
	mods := []float64{-1, -0.6, -0.1, 0, 0.3, 0.8, 1}
	for h := 0; h < 24; h++ {
		baseline := Recommended(time.Date(2024, 6, 1, h, 45, 0, 0, time.UTC))
		for _, m := range mods {
			cfg := Config{
				Brightness:  Perm(m),
				WhiteTemp:   Perm(-m),
				Hue:         Perm(m),
				Saturation:  Perm(-m),
				Luminance:   Perm(m),
				ColorOffset: Perm(3),
			}
			s := Resolve(cfg, baseline)
			for _, v := range []float64{s.Brightness, s.WhiteTemp, s.Color.H, s.Color.S, s.Color.V} {
				if v < 0 || v > 1 {
					t.Fatalf("hour %d mod %v: channel %v outside [0,1] in %v", h, m, v, s)
				}
			}
			for _, v := range []float64{s.Brightness, s.WhiteTemp, s.Color.V} {
				if v > 0 && v < OffThreshold {
					t.Fatalf("hour %d mod %v: light channel %v below threshold not snapped", h, m, v)
				}
			}
		}
	}
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	static := State{On: true, Brightness: 0.5, WhiteTemp: 0.5, Color: White}
	cfg := Config{Dynamic: Perm(false), Static: Perm(static), ToggledOn: Perm(false)}

	_ = Resolve(cfg, Max())
	if got := cfg.Static.ValueOr(Off()); !got.On {
		t.Error("Resolve must not modify the static state held by the config")
	}
}
