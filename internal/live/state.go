package live

import (
	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain/entities"
)

// Observer receives lifecycle and presentation events from a Session.
// Callbacks run on session goroutines and must not call Session.Stop
// synchronously.
type Observer interface {
	OnStateChange(state entities.SessionState)
	// OnTalking reports the inbound speech indicator. It is asserted after
	// each played chunk and clears itself after a short window.
	OnTalking(talking bool)
	// OnError reports a fault that ended the session.
	OnError(err error)
}

type nopObserver struct{}

func (nopObserver) OnStateChange(entities.SessionState) {}
func (nopObserver) OnTalking(bool)                      {}
func (nopObserver) OnError(error)                       {}

// State returns the current lifecycle state.
func (s *Session) State() entities.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// moveLocked applies a transition if the state machine allows it. The caller
// holds s.mu and notifies the observer after unlocking.
func (s *Session) moveLocked(next entities.SessionState) bool {
	if !s.state.CanTransition(next) {
		return false
	}
	s.logger.Debug("Live session state change",
		zap.String("from", string(s.state)),
		zap.String("to", string(next)))
	s.state = next
	return true
}

func (s *Session) moveTo(next entities.SessionState) {
	s.mu.Lock()
	changed := s.moveLocked(next)
	s.mu.Unlock()
	if changed {
		s.observer.OnStateChange(next)
	}
}
