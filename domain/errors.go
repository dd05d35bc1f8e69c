package domain

import "errors"

// Error taxonomy shared by the live session, the audio codec and the
// capability clients. Callers match with errors.Is; concrete errors wrap one
// of these with fmt.Errorf("...: %w", err).
var (
	// ErrDeviceUnavailable means the microphone or speaker could not be acquired.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrConnectionFailed means a live session could not be started. It is
	// retryable by creating a new session and starting it again.
	ErrConnectionFailed = errors.New("live connection failed")

	// ErrSessionError is an asynchronous transport fault after the session opened.
	ErrSessionError = errors.New("live session error")

	// ErrDecode marks a malformed audio payload.
	ErrDecode = errors.New("malformed audio payload")

	// ErrCapabilityCallFailed wraps any failed request/response capability call.
	ErrCapabilityCallFailed = errors.New("capability call failed")

	// ErrInvalidState is returned when a lifecycle operation is not valid in the
	// current session state.
	ErrInvalidState = errors.New("invalid session state")

	// ErrSessionClosed is returned when the session was stopped while starting.
	ErrSessionClosed = errors.New("live session closed")

	// ErrInvalidInput marks a request rejected before any capability call.
	ErrInvalidInput = errors.New("invalid input")
)
