// Package player controls the media player that gestures are dispatched to.
package player

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoMedia is returned when an operation needs a loaded track and there is none.
	ErrNoMedia = errors.New("no media loaded")
	// ErrUnsupported is returned when a backend cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by player")
)

// Player is the media-control surface driven by dispatched actions.
type Player interface {
	IsPlaying(ctx context.Context) (bool, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	// SetVolume sets the output volume in percent; values outside 0..100 are clamped.
	SetVolume(ctx context.Context, percent int) error
	// SeekBy moves the playback position by offset. See SeekTarget.
	SeekBy(ctx context.Context, offset time.Duration) error
	// Open loads the media at uri, replacing the current track.
	Open(ctx context.Context, uri string) error
	Close() error
}

// SeekTarget computes the position a seek by offset lands on.
//
// The target is clamped to [0, length]. ok is false when the resulting change
// is smaller than 1% of length, in which case the seek should be skipped.
// ErrNoMedia is returned for a non-positive length.
func SeekTarget(position, length, offset time.Duration) (target time.Duration, ok bool, err error) {
	if length <= 0 {
		return 0, false, ErrNoMedia
	}

	target = position + offset
	if target < 0 {
		target = 0
	}
	if target > length {
		target = length
	}

	delta := target - position
	if delta < 0 {
		delta = -delta
	}
	if delta < length/100 {
		return position, false, nil
	}
	return target, true, nil
}

// ClampVolume limits percent to 0..100.
func ClampVolume(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}
