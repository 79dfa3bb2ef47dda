package lighting

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func TestScaleRelative_Identity(t *testing.T) {
	for i := 0; i <= 100; i++ {
		v := float64(i) / 100
		if got := ScaleRelative(v, 0); math.Abs(got-v) > eps {
			t.Errorf("ScaleRelative(%v, 0) = %v, want %v", v, got, v)
		}
	}
}

func TestScaleRelative(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		scale    float64
		expected float64
	}{
		{name: "push_toward_one", value: 0.4, scale: 0.5, expected: 0.7},
		{name: "pull_toward_zero", value: 0.4, scale: -0.5, expected: 0.2},
		{name: "full_push", value: 0.3, scale: 1, expected: 1},
		{name: "full_pull", value: 0.3, scale: -1, expected: 0},
		{name: "zero_stays_zero_when_pulled", value: 0, scale: -0.7, expected: 0},
		{name: "one_stays_one_when_pushed", value: 1, scale: 0.7, expected: 1},
		{name: "scale_out_of_range_is_bounded", value: 0.5, scale: 3, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScaleRelative(tt.value, tt.scale)
			if math.Abs(got-tt.expected) > eps {
				t.Errorf("ScaleRelative(%v, %v) = %v, want %v", tt.value, tt.scale, got, tt.expected)
			}
		})
	}
}

func TestScaleRelative_StaysInUnitInterval(t *testing.T) {
	for i := 0; i <= 20; i++ {
		for j := -20; j <= 20; j++ {
			v := float64(i) / 20
			s := float64(j) / 20
			got := ScaleRelative(v, s)
			if got < 0 || got > 1 {
				t.Fatalf("ScaleRelative(%v, %v) = %v, outside [0,1]", v, s, got)
			}
		}
	}
}

func TestEngineerModifier(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		desired  float64
		expected float64
	}{
		{name: "equal", actual: 0.4, desired: 0.4, expected: 0},
		{name: "increase", actual: 0.4, desired: 0.7, expected: 0.5},
		{name: "decrease", actual: 0.4, desired: 0.2, expected: -0.5},
		{name: "from_zero_to_one", actual: 0, desired: 1, expected: 1},
		{name: "from_one_to_zero", actual: 1, desired: 0, expected: -1},
		{name: "both_zero", actual: 0, desired: 0, expected: 0},
		{name: "both_one", actual: 1, desired: 1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EngineerModifier(tt.actual, tt.desired)
			if err != nil {
				t.Fatalf("EngineerModifier(%v, %v) error: %v", tt.actual, tt.desired, err)
			}
			if math.Abs(got-tt.expected) > eps {
				t.Errorf("EngineerModifier(%v, %v) = %v, want %v", tt.actual, tt.desired, got, tt.expected)
			}
		})
	}
}

func TestEngineerModifier_RoundTrip(t *testing.T) {
	for i := 0; i <= 50; i++ {
		for j := 0; j <= 50; j++ {
			a := float64(i) / 50
			d := float64(j) / 50
			scale, err := EngineerModifier(a, d)
			if err != nil {
				t.Fatalf("EngineerModifier(%v, %v) error: %v", a, d, err)
			}
			if got := ScaleRelative(a, scale); math.Abs(got-d) > 1e-9 {
				t.Fatalf("ScaleRelative(%v, EngineerModifier(%v, %v)) = %v, want %v", a, a, d, got, d)
			}
		}
	}
}

func TestEngineerModifier_Domain(t *testing.T) {
	cases := [][2]float64{
		{-0.1, 0.5},
		{0.5, 1.1},
		{math.NaN(), 0.5},
		{0.5, math.Inf(1)},
	}
	for _, c := range cases {
		if _, err := EngineerModifier(c[0], c[1]); !errors.Is(err, ErrModifierDomain) {
			t.Errorf("EngineerModifier(%v, %v) error = %v, want ErrModifierDomain", c[0], c[1], err)
		}
	}
}

func TestAccommodateBrightness_ScenarioC(t *testing.T) {
	baseline := State{On: true, Brightness: 0.4, WhiteTemp: 0.4, Color: White}

	mod, err := AccommodateBrightness(baseline, 0.7)
	if err != nil {
		t.Fatalf("AccommodateBrightness error: %v", err)
	}
	if math.Abs(mod-0.5) > eps {
		t.Fatalf("modifier = %v, want 0.5", mod)
	}
	if got := ScaleRelative(0.4, mod); math.Abs(got-0.7) > eps {
		t.Errorf("ScaleRelative(0.4, %v) = %v, want 0.7", mod, got)
	}

	var cfg Config
	cfg.Brightness = Perm(mod)
	if got := Resolve(cfg, baseline).Brightness; math.Abs(got-0.7) > eps {
		t.Errorf("resolved brightness = %v, want 0.7", got)
	}
}
