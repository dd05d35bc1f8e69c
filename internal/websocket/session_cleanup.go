package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxSessionAge matches the backend's limit for audio-only live sessions.
	DefaultMaxSessionAge = 15 * time.Minute

	defaultCleanupInterval = 30 * time.Second
)

// SessionCleanupService stops live sessions that outlive their time limit
type SessionCleanupService struct {
	hub      *Hub
	maxAge   time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionCleanupService creates a new session cleanup service. A
// non-positive maxAge uses DefaultMaxSessionAge.
func NewSessionCleanupService(hub *Hub, maxAge time.Duration, logger *zap.Logger) *SessionCleanupService {
	if maxAge <= 0 {
		maxAge = DefaultMaxSessionAge
	}
	interval := defaultCleanupInterval
	if maxAge < interval {
		interval = maxAge
	}
	return &SessionCleanupService{
		hub:      hub,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started", zap.Duration("maxAge", s.maxAge))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Info("Session cleanup service stopped")
	})
}

func (s *SessionCleanupService) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup(time.Now())
		}
	}
}

// runCleanup stops every session started before now minus maxAge.
func (s *SessionCleanupService) runCleanup(now time.Time) int {
	cutoff := now.Add(-s.maxAge)
	expired := 0
	for _, client := range s.hub.snapshot() {
		if client.expireSession(cutoff) {
			expired++
		}
	}
	if expired > 0 {
		s.logger.Info("Expired live sessions", zap.Int("count", expired))
	}
	return expired
}
