package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/internal/audio"
)

// WriterOpener starts a raw s16le mono PCM sink that plays in real time.
type WriterOpener func(ctx context.Context) (io.WriteCloser, error)

var errOutputClosed = errors.New("output device is not open")

// StreamOutput is an output device backed by a real-time PCM writer such as
// an ffplay process. Its clock is wall time since Open. Play turns the
// requested start position into leading silence so the writer sees one
// contiguous stream.
type StreamOutput struct {
	name       string
	sampleRate int
	open       WriterOpener
	registry   *Registry
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	w       io.WriteCloser
	release func()
	origin  time.Time
	// written is the clock position where the audio handed to w ends.
	written time.Duration
	queue   [][]byte
	wake    chan struct{}
	stop    chan struct{}
	pumpWG  sync.WaitGroup
}

// Ensure StreamOutput implements the OutputDevice interface
var _ repositories.OutputDevice = (*StreamOutput)(nil)

// NewStreamOutput creates an output device playing at sampleRate.
func NewStreamOutput(name string, sampleRate int, open WriterOpener, registry *Registry, logger *zap.Logger) *StreamOutput {
	return &StreamOutput{
		name:       name,
		sampleRate: sampleRate,
		open:       open,
		registry:   registry,
		logger:     logger,
		now:        time.Now,
	}
}

func (o *StreamOutput) Name() string {
	return o.name
}

// Open claims the device, starts the writer and resets the clock to zero.
func (o *StreamOutput) Open(ctx context.Context) error {
	release, err := o.registry.Claim(o.name)
	if err != nil {
		return err
	}

	w, err := o.open(ctx)
	if err != nil {
		release()
		return fmt.Errorf("%w: failed to open %s: %v", domain.ErrDeviceUnavailable, o.name, err)
	}

	o.mu.Lock()
	o.ctx = ctx
	o.w = w
	o.release = release
	o.origin = o.now()
	o.written = 0
	o.queue = nil
	o.wake = make(chan struct{}, 1)
	o.stop = make(chan struct{})
	wake, stop := o.wake, o.stop
	o.mu.Unlock()

	o.pumpWG.Add(1)
	go o.pump(wake, stop)

	o.logger.Info("Output device opened", zap.String("device", o.name), zap.Int("sample_rate", o.sampleRate))
	return nil
}

// Now returns the time since Open.
func (o *StreamOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w == nil {
		return 0
	}
	return o.now().Sub(o.origin)
}

// Play queues samples to start at the given clock position. It does not block
// on the writer.
func (o *StreamOutput) Play(at time.Duration, samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w == nil {
		return errOutputClosed
	}

	// The writer drains in real time, so anything before now has played.
	cursor := o.written
	if now := o.now().Sub(o.origin); now > cursor {
		cursor = now
	}

	var buf []byte
	if gap := at - cursor; gap > 0 {
		buf = make([]byte, o.samplesFor(gap)*2)
		cursor = at
	}
	buf = append(buf, audio.Int16ToBytes(audio.Encode(samples))...)
	o.written = cursor + time.Duration(len(samples))*time.Second/time.Duration(o.sampleRate)

	o.queue = append(o.queue, buf)
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

func (o *StreamOutput) samplesFor(d time.Duration) int {
	return int(d * time.Duration(o.sampleRate) / time.Second)
}

func (o *StreamOutput) pump(wake <-chan struct{}, stop <-chan struct{}) {
	defer o.pumpWG.Done()
	for {
		select {
		case <-stop:
			return
		case <-wake:
		}

		for {
			o.mu.Lock()
			if len(o.queue) == 0 || o.w == nil {
				o.mu.Unlock()
				break
			}
			buf := o.queue[0]
			o.queue = o.queue[1:]
			w := o.w
			o.mu.Unlock()

			if _, err := w.Write(buf); err != nil {
				select {
				case <-stop:
					return
				default:
				}
				o.logger.Warn("Failed to write audio to output", zap.String("device", o.name), zap.Error(err))
			}
		}
	}
}

// Flush discards queued audio and restarts the writer so nothing buffered in
// it is played either. The clock keeps running.
func (o *StreamOutput) Flush() error {
	o.mu.Lock()
	if o.w == nil {
		o.mu.Unlock()
		return errOutputClosed
	}
	old := o.w
	o.queue = nil
	w, err := o.open(o.ctx)
	if err != nil {
		o.w = nil
		o.mu.Unlock()
		old.Close()
		return fmt.Errorf("failed to restart %s: %w", o.name, err)
	}
	o.w = w
	o.written = o.now().Sub(o.origin)
	o.mu.Unlock()

	if err := old.Close(); err != nil {
		o.logger.Debug("Closing flushed writer", zap.String("device", o.name), zap.Error(err))
	}
	return nil
}

// Close discards pending audio, stops the writer and releases the claim.
func (o *StreamOutput) Close() error {
	o.mu.Lock()
	w, release, stop := o.w, o.release, o.stop
	o.w, o.release, o.stop = nil, nil, nil
	o.queue = nil
	o.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	var err error
	if w != nil {
		err = w.Close()
	}
	o.pumpWG.Wait()
	if release != nil {
		release()
		o.logger.Info("Output device closed", zap.String("device", o.name))
	}
	return err
}
