package audio

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock is the output device's playback clock.
type Clock interface {
	Now() time.Duration
}

// Sink plays a buffer starting at an absolute position of its clock.
type Sink interface {
	Clock
	Play(at time.Duration, samples []float32) error
}

// Slot is the time range a buffer was scheduled into.
type Slot struct {
	Start    time.Duration
	Duration time.Duration
}

// End returns the end of the slot.
func (s Slot) End() time.Duration {
	return s.Start + s.Duration
}

// Scheduler sequences inbound chunks back to back on a Sink. It keeps a single
// cursor, nextStart, which only moves forward. When the cursor falls behind
// the clock the scheduler jumps to now and accepts the gap instead of
// building a backlog.
type Scheduler struct {
	mu         sync.Mutex
	sink       Sink
	sampleRate int
	nextStart  time.Duration
	closed     bool
	underruns  int
	logger     *zap.Logger
}

// NewScheduler creates a scheduler whose cursor starts at the sink's current time.
func NewScheduler(sink Sink, sampleRate int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sink:       sink,
		sampleRate: sampleRate,
		nextStart:  sink.Now(),
		logger:     logger,
	}
}

// Schedule plays samples right after the previously scheduled chunk. A
// zero-length chunk or a closed scheduler yields an empty slot.
func (s *Scheduler) Schedule(samples []float32) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(samples) == 0 || s.sampleRate <= 0 {
		return Slot{}, nil
	}

	now := s.sink.Now()
	if s.nextStart < now {
		s.logger.Debug("Playback underrun, resyncing to output clock",
			zap.Duration("behind", now-s.nextStart))
		s.underruns++
		s.nextStart = now
	}

	slot := Slot{
		Start:    s.nextStart,
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(s.sampleRate),
	}
	if err := s.sink.Play(slot.Start, samples); err != nil {
		return Slot{}, err
	}
	s.nextStart = slot.End()
	return slot, nil
}

// NextStart returns the cursor.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Underruns returns how many times the cursor was resynced to the clock.
func (s *Scheduler) Underruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.underruns
}

// Reset moves the cursor to the current clock, used after pending audio was
// flushed from the sink.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextStart = s.sink.Now()
}

// Close turns every later Schedule into a no-op. An in-flight Schedule
// finishes before Close returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
