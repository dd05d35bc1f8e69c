package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/internal/audio"
)

const (
	DefaultTalkingWindow = 500 * time.Millisecond
	DefaultOutboxSize    = 32

	dropLogInterval = time.Second
)

// Config holds the per-session settings.
type Config struct {
	Live repositories.LiveConfig
	// TalkingWindow is how long the talking indicator stays on after a chunk.
	TalkingWindow time.Duration
	// OutboxSize bounds the encoded frames waiting to be written. When full
	// the oldest frame is dropped.
	OutboxSize int
}

func (c Config) withDefaults() Config {
	if c.Live.InputSampleRate <= 0 {
		c.Live.InputSampleRate = entities.CaptureSampleRate
	}
	if c.Live.OutputSampleRate <= 0 {
		c.Live.OutputSampleRate = entities.PlaybackSampleRate
	}
	if c.TalkingWindow <= 0 {
		c.TalkingWindow = DefaultTalkingWindow
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = DefaultOutboxSize
	}
	return c
}

// Stats are counters collected over the life of a session.
type Stats struct {
	FramesSent    int64
	FramesDropped int64
	ChunksPlayed  int64
	DecodeErrors  int64
}

// Session owns one bidirectional voice conversation: the capture device, the
// output device and the transport connection. A session is single use; once
// CLOSED a new one must be created.
type Session struct {
	id        string
	cfg       Config
	transport repositories.LiveTransport
	capture   repositories.CaptureDevice
	output    repositories.OutputDevice
	observer  Observer
	logger    *zap.Logger

	mu        sync.Mutex
	state     entities.SessionState
	cancel    context.CancelFunc
	acquired  bool
	conn      repositories.LiveConnection
	scheduler *audio.Scheduler
	talking   bool
	talkTimer *time.Timer
	// talkMu orders talking notifications so a late "on" cannot follow the
	// final "off" sent at teardown.
	talkMu sync.Mutex

	// disposed is set once by Stop or an async close. Every loop checks it
	// before touching devices or the connection.
	disposed     atomic.Bool
	sendMu       sync.Mutex
	outbox       chan entities.EncodedAudioPayload
	wg           sync.WaitGroup
	teardownOnce sync.Once

	framesSent    atomic.Int64
	framesDropped atomic.Int64
	chunksPlayed  atomic.Int64
	decodeErrors  atomic.Int64
	lastDropLog   atomic.Int64
}

// NewSession creates an IDLE session. A nil observer discards events.
func NewSession(
	cfg Config,
	transport repositories.LiveTransport,
	capture repositories.CaptureDevice,
	output repositories.OutputDevice,
	observer Observer,
	logger *zap.Logger,
) *Session {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	id := uuid.New().String()
	return &Session{
		id:        id,
		cfg:       cfg,
		transport: transport,
		capture:   capture,
		output:    output,
		observer:  observer,
		logger:    logger.With(zap.String("session_id", id)),
		state:     entities.SessionStateIdle,
		outbox:    make(chan entities.EncodedAudioPayload, cfg.OutboxSize),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		FramesSent:    s.framesSent.Load(),
		FramesDropped: s.framesDropped.Load(),
		ChunksPlayed:  s.chunksPlayed.Load(),
		DecodeErrors:  s.decodeErrors.Load(),
	}
}

// Start acquires both devices, opens the transport and begins streaming. It
// is valid only from IDLE. On any failure every acquired resource is released,
// the session ends CLOSED and the error wraps domain.ErrConnectionFailed.
// The session becomes OPEN asynchronously when the backend acknowledges setup.
func (s *Session) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.disposed.Load() || !s.moveLocked(entities.SessionStateConnecting) {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", domain.ErrInvalidState, state)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	// Stop waits for Start to unwind.
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.observer.OnStateChange(entities.SessionStateConnecting)

	// Dialing aborts on either the caller's context or Stop.
	openCtx, stopOpen := context.WithCancel(ctx)
	defer stopOpen()
	unlink := context.AfterFunc(runCtx, stopOpen)
	defer unlink()

	var releases []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(releases) - 1; i >= 0; i-- {
			if rerr := releases[i](); rerr != nil {
				s.logger.Warn("Failed to release resource", zap.Error(rerr))
			}
		}
		cancel()
		if s.disposed.Load() {
			err = fmt.Errorf("%w: %w", domain.ErrSessionClosed, err)
		}
		s.logger.Error("Failed to start live session", zap.Error(err))
		s.moveTo(entities.SessionStateClosed)
	}()

	frames, err := s.capture.Open(runCtx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}
	releases = append(releases, s.capture.Close)

	if err = s.output.Open(runCtx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}
	releases = append(releases, s.output.Close)

	conn, err := s.transport.Connect(openCtx, s.cfg.Live)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}
	releases = append(releases, conn.Close)

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return fmt.Errorf("%w: stopped while connecting", domain.ErrConnectionFailed)
	}
	s.conn = conn
	s.scheduler = audio.NewScheduler(s.output, s.cfg.Live.OutputSampleRate, s.logger)
	s.acquired = true
	s.wg.Add(3)
	s.mu.Unlock()

	go s.captureLoop(runCtx, frames)
	go s.writeLoop(runCtx, conn)
	go s.receiveLoop(conn)

	s.logger.Info("Live session connecting",
		zap.String("capture", s.capture.Name()),
		zap.String("output", s.output.Name()),
		zap.String("model", s.cfg.Live.Model))
	return nil
}

// Stop releases every resource and moves the session to CLOSED. It is safe to
// call from any state and more than once. When Stop returns no further audio
// is submitted or played.
func (s *Session) Stop() {
	s.mu.Lock()
	s.disposed.Store(true)
	closing := s.moveLocked(entities.SessionStateClosing)
	s.mu.Unlock()
	if closing {
		s.observer.OnStateChange(entities.SessionStateClosing)
	}

	s.teardown()
	s.wg.Wait()
	s.moveTo(entities.SessionStateClosed)
}

// terminate handles a close or fault raised by the transport or a device.
// A nil cause is a normal remote close.
func (s *Session) terminate(cause error) {
	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return
	}
	s.disposed.Store(true)
	if cause == nil && s.state != entities.SessionStateOpen {
		cause = errors.New("connection closed before setup completed")
	}
	failed := cause != nil && s.moveLocked(entities.SessionStateError)
	s.mu.Unlock()

	if failed {
		err := fmt.Errorf("%w: %w", domain.ErrSessionError, cause)
		s.logger.Error("Live session failed", zap.Error(err))
		s.observer.OnStateChange(entities.SessionStateError)
		s.observer.OnError(err)
	} else {
		s.logger.Info("Live session closed by backend")
	}

	s.teardown()
	s.moveTo(entities.SessionStateClosed)
}

func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		acquired := s.acquired
		conn := s.conn
		scheduler := s.scheduler
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		// Closing first fails a send stuck on the socket.
		if acquired {
			if err := conn.Close(); err != nil {
				s.logger.Warn("Failed to close live connection", zap.Error(err))
			}
		}
		// Wait out a send that already passed its disposed check.
		s.sendMu.Lock()
		s.sendMu.Unlock() //nolint:staticcheck

		if acquired {
			scheduler.Close()
			if err := s.output.Close(); err != nil {
				s.logger.Warn("Failed to close output device", zap.Error(err))
			}
			if err := s.capture.Close(); err != nil {
				s.logger.Warn("Failed to close capture device", zap.Error(err))
			}
			stats := s.Stats()
			s.logger.Info("Live session released",
				zap.Int64("frames_sent", stats.FramesSent),
				zap.Int64("frames_dropped", stats.FramesDropped),
				zap.Int64("chunks_played", stats.ChunksPlayed),
				zap.Int64("decode_errors", stats.DecodeErrors),
				zap.Int("underruns", scheduler.Underruns()))
		}

		s.talkMu.Lock()
		defer s.talkMu.Unlock()
		s.mu.Lock()
		wasTalking := s.talking
		s.talking = false
		if s.talkTimer != nil {
			s.talkTimer.Stop()
		}
		s.mu.Unlock()
		if wasTalking {
			s.observer.OnTalking(false)
		}
	})
}

func (s *Session) captureLoop(ctx context.Context, frames <-chan []float32) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				if !s.disposed.Load() {
					s.terminate(fmt.Errorf("%w: capture stream ended", domain.ErrDeviceUnavailable))
				}
				return
			}
			s.submit(frame)
		}
	}
}

// submit encodes one capture window and queues it without blocking. Frames
// arriving before OPEN or after Stop are dropped.
func (s *Session) submit(frame []float32) {
	if s.disposed.Load() || s.State() != entities.SessionStateOpen {
		s.framesDropped.Add(1)
		return
	}

	payload := audio.EncodeFrame(entities.AudioFrame{
		SampleRate: s.cfg.Live.InputSampleRate,
		Channels:   1,
		Samples:    frame,
	})
	select {
	case s.outbox <- payload:
		return
	default:
	}

	// Outbox full: drop the oldest frame to stay close to real time.
	select {
	case <-s.outbox:
		s.dropped()
	default:
	}
	select {
	case s.outbox <- payload:
	default:
		s.dropped()
	}
}

// dropped counts an outbox overflow and logs at most once per interval.
func (s *Session) dropped() {
	total := s.framesDropped.Add(1)
	now := time.Now().UnixNano()
	last := s.lastDropLog.Load()
	if now-last < int64(dropLogInterval) || !s.lastDropLog.CompareAndSwap(last, now) {
		return
	}
	s.logger.Warn("Outbound audio backlog full, dropping oldest frame",
		zap.Int("outbox_size", s.cfg.OutboxSize),
		zap.Int64("frames_dropped", total))
}

func (s *Session) writeLoop(ctx context.Context, conn repositories.LiveConnection) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.outbox:
			if err := s.send(conn, payload); err != nil {
				s.terminate(fmt.Errorf("failed to send audio frame: %w", err))
				return
			}
		}
	}
}

func (s *Session) send(conn repositories.LiveConnection, payload entities.EncodedAudioPayload) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.disposed.Load() {
		return nil
	}
	if err := conn.SendAudio(payload); err != nil {
		return err
	}
	s.framesSent.Add(1)
	return nil
}

func (s *Session) receiveLoop(conn repositories.LiveConnection) {
	defer s.wg.Done()
	for {
		msg, err := conn.Receive()
		if err != nil {
			if s.disposed.Load() {
				return
			}
			if errors.Is(err, io.EOF) {
				s.terminate(nil)
			} else {
				s.terminate(err)
			}
			return
		}
		if s.disposed.Load() {
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg *repositories.LiveMessage) {
	if msg.SetupComplete {
		s.moveTo(entities.SessionStateOpen)
		s.logger.Info("Live session open")
	}

	if msg.Interrupted {
		s.interrupt()
	}

	if len(msg.Audio) > 0 && s.State() == entities.SessionStateOpen {
		for _, payload := range msg.Audio {
			s.play(payload)
		}
	}

	if msg.TurnComplete {
		s.logger.Debug("Backend turn complete")
	}
	if msg.GoAway {
		s.logger.Info("Backend announced disconnect")
	}
}

func (s *Session) play(payload entities.EncodedAudioPayload) {
	outRate := s.cfg.Live.OutputSampleRate
	frame, err := audio.DecodeFrame(payload, outRate)
	if err != nil {
		s.decodeErrors.Add(1)
		s.logger.Warn("Dropping inbound audio chunk", zap.Error(err))
		return
	}
	if len(frame.Samples) == 0 {
		return
	}
	samples := frame.Samples
	if frame.SampleRate != outRate {
		samples = audio.Resample(samples, frame.SampleRate, outRate)
	}

	slot, err := s.scheduler.Schedule(samples)
	if err != nil {
		s.logger.Warn("Failed to schedule inbound audio", zap.Error(err))
		return
	}
	if slot.Duration == 0 {
		return
	}
	s.chunksPlayed.Add(1)
	s.markTalking()
}

// interrupt discards audio the backend no longer wants played.
func (s *Session) interrupt() {
	if s.disposed.Load() {
		return
	}
	if err := s.output.Flush(); err != nil {
		s.logger.Warn("Failed to flush output device", zap.Error(err))
	}
	s.scheduler.Reset()
	s.clearTalking()
}

func (s *Session) markTalking() {
	s.talkMu.Lock()
	defer s.talkMu.Unlock()
	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return
	}
	started := !s.talking
	s.talking = true
	if s.talkTimer == nil {
		s.talkTimer = time.AfterFunc(s.cfg.TalkingWindow, s.clearTalking)
	} else {
		s.talkTimer.Reset(s.cfg.TalkingWindow)
	}
	s.mu.Unlock()

	if started {
		s.observer.OnTalking(true)
	}
}

func (s *Session) clearTalking() {
	s.talkMu.Lock()
	defer s.talkMu.Unlock()
	s.mu.Lock()
	if !s.talking || s.disposed.Load() {
		s.mu.Unlock()
		return
	}
	s.talking = false
	s.mu.Unlock()
	s.observer.OnTalking(false)
}
