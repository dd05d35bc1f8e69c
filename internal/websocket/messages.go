package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Client to server.
	MessageTypeStart MessageType = "start"
	MessageTypeStop  MessageType = "stop"
	MessageTypePing  MessageType = "ping"

	// Server to client.
	MessageTypeState   MessageType = "state"
	MessageTypeTalking MessageType = "talking"
	MessageTypeError   MessageType = "error"
	MessageTypePong    MessageType = "pong"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage    = "invalid_message"
	ErrorCodeSessionActive     = "session_active"
	ErrorCodeNoSession         = "no_active_session"
	ErrorCodeSessionExpired    = "session_expired"
	ErrorCodeDeviceUnavailable = "device_unavailable"
	ErrorCodeConnectionFailed  = "connection_failed"
	ErrorCodeSessionError      = "session_error"
	ErrorCodeSessionClosed     = "session_closed"
	ErrorCodeInvalidState      = "invalid_state"
	ErrorCodeInternal          = "internal_error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// StartMessage asks for a new live voice session
type StartMessage struct {
	BaseMessage
}

// StopMessage ends the current live voice session
type StopMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// StateMessage reports a live session state change
type StateMessage struct {
	BaseMessage
	SessionID string                `json:"session_id"`
	State     entities.SessionState `json:"state"`
}

// TalkingMessage turns the assistant talking indicator on or off
type TalkingMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
	Talking   bool   `json:"talking"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	if base.Type == "" {
		return nil, fmt.Errorf("type is required")
	}
	if base.Timestamp == "" {
		base.Timestamp = now()
	}

	switch base.Type {
	case MessageTypeStart:
		return &StartMessage{BaseMessage: base}, nil

	case MessageTypeStop:
		return &StopMessage{BaseMessage: base}, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		msg.BaseMessage = base
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: now()},
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{Type: MessageTypePong, Timestamp: now()},
		Data:        data,
	}
}

// CreateStateMessage creates a session state message
func CreateStateMessage(sessionID string, state entities.SessionState) *StateMessage {
	return &StateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeState, Timestamp: now()},
		SessionID:   sessionID,
		State:       state,
	}
}

// CreateTalkingMessage creates a talking indicator message
func CreateTalkingMessage(sessionID string, talking bool) *TalkingMessage {
	return &TalkingMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTalking, Timestamp: now()},
		SessionID:   sessionID,
		Talking:     talking,
	}
}

// CreateSessionErrorMessage maps a live session error onto an error message
// with a stable code. Details carry the underlying error text.
func CreateSessionErrorMessage(err error) *ErrorMessage {
	code, message := classifyError(err)
	return CreateErrorMessage(code, message, err.Error())
}

func classifyError(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return ErrorCodeDeviceUnavailable, "Microphone or speaker is unavailable"
	case errors.Is(err, domain.ErrSessionClosed):
		return ErrorCodeSessionClosed, "Session was stopped while connecting"
	case errors.Is(err, domain.ErrConnectionFailed):
		return ErrorCodeConnectionFailed, "Could not connect to the voice assistant"
	case errors.Is(err, domain.ErrSessionError):
		return ErrorCodeSessionError, "The voice session ended unexpectedly"
	case errors.Is(err, domain.ErrInvalidState):
		return ErrorCodeInvalidState, "The session cannot do that right now"
	default:
		return ErrorCodeInternal, "Internal error"
	}
}
