package entities

// SessionState is the lifecycle state of a live voice session.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateConnecting SessionState = "connecting"
	SessionStateOpen       SessionState = "open"
	SessionStateClosing    SessionState = "closing"
	SessionStateClosed     SessionState = "closed"
	SessionStateError      SessionState = "error"
)

var sessionTransitions = map[SessionState][]SessionState{
	SessionStateIdle:       {SessionStateConnecting, SessionStateClosed},
	SessionStateConnecting: {SessionStateOpen, SessionStateClosing, SessionStateError, SessionStateClosed},
	SessionStateOpen:       {SessionStateClosing, SessionStateError, SessionStateClosed},
	SessionStateClosing:    {SessionStateClosed},
	SessionStateError:      {SessionStateClosed},
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s SessionState) CanTransition(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateClosed
}
