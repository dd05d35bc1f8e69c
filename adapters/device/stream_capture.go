package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/internal/audio"
)

// ReaderOpener starts a raw s16le mono PCM source.
type ReaderOpener func(ctx context.Context) (io.ReadCloser, error)

// StreamCapture turns a PCM byte stream into fixed-size sample windows.
type StreamCapture struct {
	name       string
	windowSize int
	open       ReaderOpener
	registry   *Registry
	logger     *zap.Logger

	mu      sync.Mutex
	src     io.ReadCloser
	release func()
	done    chan struct{}
}

// Ensure StreamCapture implements the CaptureDevice interface
var _ repositories.CaptureDevice = (*StreamCapture)(nil)

// NewStreamCapture creates a capture device reading windowSize samples at a time.
func NewStreamCapture(name string, windowSize int, open ReaderOpener, registry *Registry, logger *zap.Logger) *StreamCapture {
	if windowSize <= 0 {
		windowSize = entities.CaptureWindowSize
	}
	return &StreamCapture{
		name:       name,
		windowSize: windowSize,
		open:       open,
		registry:   registry,
		logger:     logger,
	}
}

func (c *StreamCapture) Name() string {
	return c.name
}

// Open claims the device and starts reading. Windows are dropped rather than
// queued when the consumer falls behind.
func (c *StreamCapture) Open(ctx context.Context) (<-chan []float32, error) {
	release, err := c.registry.Claim(c.name)
	if err != nil {
		return nil, err
	}

	src, err := c.open(ctx)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: failed to open %s: %v", domain.ErrDeviceUnavailable, c.name, err)
	}

	c.mu.Lock()
	c.src = src
	c.release = release
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	frames := make(chan []float32, 8)
	go c.readLoop(src, frames, done)

	c.logger.Info("Capture device opened", zap.String("device", c.name), zap.Int("window", c.windowSize))
	return frames, nil
}

func (c *StreamCapture) readLoop(src io.Reader, frames chan<- []float32, done <-chan struct{}) {
	defer close(frames)

	buf := make([]byte, c.windowSize*2)
	dropped := 0
	for {
		if _, err := io.ReadFull(src, buf); err != nil {
			select {
			case <-done:
			default:
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					c.logger.Warn("Capture read failed", zap.String("device", c.name), zap.Error(err))
				}
			}
			if dropped > 0 {
				c.logger.Debug("Capture windows dropped", zap.String("device", c.name), zap.Int("dropped", dropped))
			}
			return
		}

		samples, err := audio.Decode(buf)
		if err != nil {
			continue
		}
		select {
		case frames <- samples:
		case <-done:
			return
		default:
			dropped++
		}
	}
}

// Close stops the source and releases the claim.
func (c *StreamCapture) Close() error {
	c.mu.Lock()
	src, release, done := c.src, c.release, c.done
	c.src, c.release, c.done = nil, nil, nil
	c.mu.Unlock()

	if src == nil {
		return nil
	}
	close(done)
	err := src.Close()
	release()
	c.logger.Info("Capture device closed", zap.String("device", c.name))
	return err
}
