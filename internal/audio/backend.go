package audio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyClip is returned when a clip has no audio data.
	ErrEmptyClip = errors.New("audio clip is empty")

	// ErrUnsupportedFormat is returned for clips that cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Backend starts playback of clip sources.
type Backend interface {
	// Start begins playing src at the given rate. The returned voice is
	// already audible.
	Start(ctx context.Context, src string, speed float64) (Voice, error)
}

// Voice is one sounding clip.
type Voice interface {
	// Position is the media time reached, independent of speed.
	Position() time.Duration
	// Done is closed when the clip has played out or was stopped.
	Done() <-chan struct{}
	// Err reports a playback failure after Done is closed.
	Err() error
	// Stop silences the voice and releases it. Safe to call repeatedly.
	Stop()
}
