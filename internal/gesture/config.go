package gesture

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the geometric and temporal thresholds of the interpreter.
type Config struct {
	// Debounce is the minimum time between two accepted actions.
	Debounce time.Duration

	// VolumeMinDistance and VolumeMaxDistance bound the thumb-to-index distance
	// mapped linearly onto 0..100 percent.
	VolumeMinDistance float64
	VolumeMaxDistance float64

	// Index-tip x below SeekForwardBelow seeks forward, above SeekRewindAbove rewinds.
	SeekForwardBelow float64
	SeekRewindAbove  float64
	SeekOffset       time.Duration

	// IntersectEpsilon is the collinearity tolerance of the play/pause crossing test.
	IntersectEpsilon float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Debounce:          800 * time.Millisecond,
		VolumeMinDistance: 0.02,
		VolumeMaxDistance: 0.1,
		SeekForwardBelow:  0.3,
		SeekRewindAbove:   0.7,
		SeekOffset:        10 * time.Second,
		IntersectEpsilon:  0,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	var errs []error
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative, got %s", c.Debounce))
	}
	if c.VolumeMaxDistance <= c.VolumeMinDistance {
		errs = append(errs, fmt.Errorf("volume distance range [%g, %g] is empty", c.VolumeMinDistance, c.VolumeMaxDistance))
	}
	if c.SeekForwardBelow > c.SeekRewindAbove {
		errs = append(errs, fmt.Errorf("seek forward threshold %g is above rewind threshold %g", c.SeekForwardBelow, c.SeekRewindAbove))
	}
	if c.SeekOffset <= 0 {
		errs = append(errs, fmt.Errorf("seek offset must be positive, got %s", c.SeekOffset))
	}
	if c.IntersectEpsilon < 0 {
		errs = append(errs, fmt.Errorf("intersect epsilon must not be negative, got %g", c.IntersectEpsilon))
	}
	return errors.Join(errs...)
}
