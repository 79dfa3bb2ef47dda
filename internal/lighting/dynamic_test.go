package lighting

import (
	"math"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 6, 1, h, m, 0, 0, time.UTC)
}

func closeHSV(a, b HSV, tol float64) bool {
	dh := math.Abs(a.H - b.H)
	if dh > 0.5 {
		dh = 1 - dh
	}
	return dh <= tol && math.Abs(a.S-b.S) <= tol && math.Abs(a.V-b.V) <= tol
}

func TestRecommended_NoonIsBrightest(t *testing.T) {
	s := Recommended(at(12, 0))
	if s.Brightness != 1.0 {
		t.Errorf("brightness at noon = %v, want 1.0", s.Brightness)
	}
	if !s.On {
		t.Error("baseline is always on")
	}
}

func TestRecommended_Cyclic(t *testing.T) {
	midnight := Recommended(at(0, 0))
	almost := Recommended(time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC))

	if math.Abs(midnight.Brightness-almost.Brightness) > 0.01 {
		t.Errorf("brightness 0:00 = %v, 23:59:59 = %v", midnight.Brightness, almost.Brightness)
	}
	if !closeHSV(midnight.Color, almost.Color, 1e-3) {
		t.Errorf("color 0:00 = %+v, 23:59:59 = %+v", midnight.Color, almost.Color)
	}
	if !closeHSV(midnight.Color, darkGreen, 1e-3) {
		t.Errorf("color at midnight = %+v, want dark green %+v", midnight.Color, darkGreen)
	}
}

func TestRecommendedBrightness(t *testing.T) {
	tests := []struct {
		hour     float64
		expected float64
	}{
		{hour: 0, expected: 0},
		{hour: 6, expected: 0.5},
		{hour: 12, expected: 1},
		{hour: 18, expected: 0.5},
		{hour: 24, expected: 0},
		{hour: 30, expected: 0.5},
		{hour: -6, expected: 0.5},
	}
	for _, tt := range tests {
		if got := RecommendedBrightness(tt.hour); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("RecommendedBrightness(%v) = %v, want %v", tt.hour, got, tt.expected)
		}
	}
}

func TestRecommended_ZoneStartsAtZoneColor(t *testing.T) {
	for _, z := range Zones() {
		s := Recommended(at(z.Hour, 0))
		if !closeHSV(s.Color, z.Color, 1e-3) {
			t.Errorf("%s at %02d:00 color = %+v, want %+v", z.Label, z.Hour, s.Color, z.Color)
		}
	}
}

func TestRecommended_DiscreteSteps(t *testing.T) {
	// Within one 30-minute step the color does not move.
	a := Recommended(at(8, 1)).Color
	b := Recommended(at(8, 29)).Color
	if a != b {
		t.Errorf("8:01 %+v and 8:29 %+v should share a step", a, b)
	}

	if c := Recommended(at(8, 30)).Color; a != c {
		t.Errorf("8:30 sharp still belongs to the first step, got %+v want %+v", c, a)
	}
	if c := Recommended(at(8, 31)).Color; a == c {
		t.Errorf("8:31 should advance to the next step, still %+v", c)
	}
}

func TestRecommended_RampEndsAtNextZone(t *testing.T) {
	// The last step of the morning ramp (10:30-11:00) is the day color.
	s := Recommended(at(10, 45))
	if !closeHSV(s.Color, White, 1e-3) {
		t.Errorf("10:45 color = %+v, want white", s.Color)
	}
}

func TestZoneAt(t *testing.T) {
	tests := []struct {
		t     time.Time
		label string
	}{
		{t: at(0, 0), label: "midnight"},
		{t: at(1, 59), label: "midnight"},
		{t: at(3, 0), label: "night"},
		{t: at(12, 0), label: "day"},
		{t: at(23, 59), label: "evening"},
	}
	for _, tt := range tests {
		if got := ZoneAt(tt.t).Label; got != tt.label {
			t.Errorf("ZoneAt(%v) = %q, want %q", tt.t.Format("15:04"), got, tt.label)
		}
	}
}

func TestColorRamp(t *testing.T) {
	ramp := colorRamp(red, yellow, 4)
	if len(ramp) != 4 {
		t.Fatalf("len = %d, want 4", len(ramp))
	}
	if !closeHSV(ramp[0], red, 1e-3) || !closeHSV(ramp[3], yellow, 1e-3) {
		t.Errorf("ramp endpoints = %+v .. %+v", ramp[0], ramp[3])
	}
	for i := 1; i < len(ramp); i++ {
		if ramp[i].H < ramp[i-1].H {
			t.Errorf("hue should increase from red to yellow: %+v", ramp)
		}
	}
}
