package device

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain/repositories"
)

// MemoryCapture is a capture device fed programmatically. It backs headless
// deployments and tests.
type MemoryCapture struct {
	name     string
	registry *Registry
	logger   *zap.Logger

	mu      sync.Mutex
	frames  chan []float32
	release func()
}

// Ensure MemoryCapture implements the CaptureDevice interface
var _ repositories.CaptureDevice = (*MemoryCapture)(nil)

func NewMemoryCapture(name string, registry *Registry, logger *zap.Logger) *MemoryCapture {
	return &MemoryCapture{name: name, registry: registry, logger: logger}
}

func (c *MemoryCapture) Name() string {
	return c.name
}

func (c *MemoryCapture) Open(ctx context.Context) (<-chan []float32, error) {
	release, err := c.registry.Claim(c.name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = make(chan []float32, 16)
	c.release = release
	return c.frames, nil
}

// Push delivers one window. It reports false when the device is closed or the
// consumer is behind.
func (c *MemoryCapture) Push(frame []float32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames == nil {
		return false
	}
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

func (c *MemoryCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames == nil {
		return nil
	}
	close(c.frames)
	c.frames = nil
	c.release()
	c.release = nil
	return nil
}

// PlayedChunk is one buffer handed to a MemoryOutput.
type PlayedChunk struct {
	At      time.Duration
	Samples []float32
}

// MemoryOutput records scheduled audio instead of playing it. Its clock is
// wall time since Open.
type MemoryOutput struct {
	name     string
	registry *Registry
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	origin  time.Time
	release func()
	played  []PlayedChunk
	flushed int
}

// Ensure MemoryOutput implements the OutputDevice interface
var _ repositories.OutputDevice = (*MemoryOutput)(nil)

func NewMemoryOutput(name string, registry *Registry, logger *zap.Logger) *MemoryOutput {
	return &MemoryOutput{name: name, registry: registry, logger: logger, now: time.Now}
}

func (o *MemoryOutput) Name() string {
	return o.name
}

func (o *MemoryOutput) Open(ctx context.Context) error {
	release, err := o.registry.Claim(o.name)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.release = release
	o.origin = o.now()
	o.played = nil
	return nil
}

func (o *MemoryOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.release == nil {
		return 0
	}
	return o.now().Sub(o.origin)
}

func (o *MemoryOutput) Play(at time.Duration, samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.release == nil {
		return errOutputClosed
	}
	o.played = append(o.played, PlayedChunk{At: at, Samples: samples})
	return nil
}

// Flush drops chunks scheduled at or after the current clock.
func (o *MemoryOutput) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.release == nil {
		return errOutputClosed
	}
	now := o.now().Sub(o.origin)
	kept := o.played[:0]
	for _, c := range o.played {
		if c.At < now {
			kept = append(kept, c)
		} else {
			o.flushed++
		}
	}
	o.played = kept
	return nil
}

func (o *MemoryOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.release == nil {
		return nil
	}
	o.release()
	o.release = nil
	return nil
}

// Played returns a copy of the recorded chunks.
func (o *MemoryOutput) Played() []PlayedChunk {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]PlayedChunk(nil), o.played...)
}

// Flushed returns how many chunks were discarded by Flush.
func (o *MemoryOutput) Flushed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushed
}
