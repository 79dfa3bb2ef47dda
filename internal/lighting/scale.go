package lighting

import (
	"errors"
	"fmt"
	"math"
)

// ErrModifierDomain is returned when the accommodator is called outside its
// domain. It indicates a caller bug and is never clamped away.
var ErrModifierDomain = errors.New("modifier input outside [0,1]")

// ScaleRelative perturbs value in [0,1] by scale in [-1,+1]. Negative scales
// pull toward 0, positive scales push toward 1, zero is the identity.
func ScaleRelative(value, scale float64) float64 {
	value = clamp01(value)
	scale = bounded(scale, -1, 1)
	if scale < 0 {
		return value * (1 + scale)
	}
	// EngineerModifier inverts this branch; keep them in sync.
	return value + scale*(1-value)
}

// EngineerModifier returns the scale for which ScaleRelative(actual, scale)
// equals desired.
func EngineerModifier(actual, desired float64) (float64, error) {
	if !inUnit(actual) || !inUnit(desired) {
		return 0, fmt.Errorf("%w: actual=%v desired=%v", ErrModifierDomain, actual, desired)
	}
	switch {
	case desired == actual:
		return 0, nil
	case desired > actual:
		// actual < desired <= 1, so 1-actual > 0
		return (desired - actual) / (1 - actual), nil
	default:
		// actual > desired >= 0, so actual > 0
		return desired/actual - 1, nil
	}
}

// AccommodateBrightness returns the brightness modifier that makes the next
// Resolve of cfg against baseline produce the desired brightness.
func AccommodateBrightness(baseline State, desired float64) (float64, error) {
	return EngineerModifier(clamp01(baseline.Brightness), desired)
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
