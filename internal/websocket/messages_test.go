package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name     string
		message  string
		wantType interface{}
		wantErr  bool
	}{
		{name: "start", message: `{"type":"start"}`, wantType: &StartMessage{}},
		{name: "stop", message: `{"type":"stop","timestamp":"2026-01-01T00:00:00Z"}`, wantType: &StopMessage{}},
		{name: "ping", message: `{"type":"ping","data":"abc"}`, wantType: &PingMessage{}},
		{name: "missing type", message: `{"data":"abc"}`, wantErr: true},
		{name: "unknown type", message: `{"type":"audio_chunk"}`, wantErr: true},
		{name: "malformed", message: `{"type":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if fmt.Sprintf("%T", msg) != fmt.Sprintf("%T", tt.wantType) {
				t.Errorf("Expected %T, got %T", tt.wantType, msg)
			}
		})
	}
}

func TestMessageValidator_PingKeepsData(t *testing.T) {
	msg, err := NewMessageValidator().ValidateMessage([]byte(`{"type":"ping","data":"hello"}`))
	if err != nil {
		t.Fatal(err)
	}
	ping := msg.(*PingMessage)
	if ping.Data != "hello" {
		t.Errorf("Expected data hello, got %q", ping.Data)
	}
	if ping.Timestamp == "" {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestCreateMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  interface{}
		want map[string]interface{}
	}{
		{
			name: "state",
			msg:  CreateStateMessage("s1", entities.SessionStateOpen),
			want: map[string]interface{}{"type": "state", "session_id": "s1", "state": "open"},
		},
		{
			name: "talking",
			msg:  CreateTalkingMessage("s1", true),
			want: map[string]interface{}{"type": "talking", "talking": true},
		},
		{
			name: "pong",
			msg:  CreatePongMessage("x"),
			want: map[string]interface{}{"type": "pong", "data": "x"},
		},
		{
			name: "error",
			msg:  CreateErrorMessage(ErrorCodeNoSession, "No voice session is running", ""),
			want: map[string]interface{}{"type": "error", "error_code": ErrorCodeNoSession},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			var got map[string]interface{}
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatal(err)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Field %s: expected %v, got %v", k, v, got[k])
				}
			}
			if got["timestamp"] == "" {
				t.Error("Expected timestamp")
			}
		})
	}
}

func TestCreateSessionErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "device conflict inside connection failure",
			err:      fmt.Errorf("%w: %w", domain.ErrConnectionFailed, domain.ErrDeviceUnavailable),
			wantCode: ErrorCodeDeviceUnavailable,
		},
		{
			name:     "stopped while connecting",
			err:      fmt.Errorf("%w: %w", domain.ErrSessionClosed, domain.ErrConnectionFailed),
			wantCode: ErrorCodeSessionClosed,
		},
		{"connection", fmt.Errorf("%w: dial refused", domain.ErrConnectionFailed), ErrorCodeConnectionFailed},
		{"async", fmt.Errorf("%w: reset", domain.ErrSessionError), ErrorCodeSessionError},
		{"state", domain.ErrInvalidState, ErrorCodeInvalidState},
		{"other", errors.New("boom"), ErrorCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := CreateSessionErrorMessage(tt.err)
			if msg.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, msg.Code)
			}
			if msg.Details != tt.err.Error() {
				t.Errorf("Expected details %q, got %q", tt.err.Error(), msg.Details)
			}
		})
	}
}
