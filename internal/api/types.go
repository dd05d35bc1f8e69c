package api

import "github.com/satriahrh/medicinal/domain/entities"

// ScanRequest is the JSON form of a scan upload
type ScanRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	MimeType    string `json:"mime_type,omitempty"`
}

// ChatTurn is one prior turn sent by the UI
type ChatTurn struct {
	Role entities.MessageRole `json:"role" validate:"required,oneof=user assistant"`
	Text string               `json:"text"`
}

// ChatRequest represents the request payload for a chat reply
type ChatRequest struct {
	History     []ChatTurn `json:"history"`
	Message     string     `json:"message" validate:"required"`
	UseThinking bool       `json:"use_thinking"`
}

// ChatEvent is one server-sent event of a chat reply stream. Exactly one
// field is set.
type ChatEvent struct {
	Delta   string                `json:"delta,omitempty"`
	Message *entities.ChatMessage `json:"message,omitempty"`
	Error   *ErrorResponse        `json:"error,omitempty"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Clients int    `json:"clients"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
