package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSpeed is returned for rates outside Speeds.
var ErrUnsupportedSpeed = errors.New("unsupported playback speed")

// Speeds are the playback rates offered to the reader, slowest first.
var Speeds = []float64{0.5, 1, 1.5, 2}

// ValidateSpeed checks that s is one of Speeds.
func ValidateSpeed(s float64) error {
	for _, v := range Speeds {
		if v == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %g", ErrUnsupportedSpeed, s)
}

// NextSpeed returns the next faster step, or s when already fastest.
func NextSpeed(s float64) float64 {
	for _, v := range Speeds {
		if v > s {
			return v
		}
	}
	return s
}

// PrevSpeed returns the next slower step, or s when already slowest.
func PrevSpeed(s float64) float64 {
	for i := len(Speeds) - 1; i >= 0; i-- {
		if Speeds[i] < s {
			return Speeds[i]
		}
	}
	return s
}
