package repositories

import (
	"context"
	"time"
)

// CaptureDevice is an exclusively owned microphone.
type CaptureDevice interface {
	Name() string
	// Open claims the device and starts delivering fixed-size windows of
	// samples in [-1,1]. The channel is closed when capture ends.
	Open(ctx context.Context) (<-chan []float32, error)
	// Close stops capture and releases the claim. Safe to call more than once.
	Close() error
}

// OutputDevice is an exclusively owned speaker with its own playback clock.
type OutputDevice interface {
	Name() string
	// Open claims the device and starts its clock at zero.
	Open(ctx context.Context) error
	// Now returns the current position of the output clock.
	Now() time.Duration
	// Play schedules samples to start at the given clock position.
	Play(at time.Duration, samples []float32) error
	// Flush discards scheduled audio that has not been played yet.
	Flush() error
	// Close discards pending audio and releases the claim. Safe to call more than once.
	Close() error
}
