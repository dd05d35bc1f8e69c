package repositories

import (
	"context"

	"github.com/satriahrh/medicinal/domain/entities"
)

// LiveConfig describes the live session requested from the backend.
type LiveConfig struct {
	Model             string
	Voice             string
	SystemInstruction string
	InputSampleRate   int
	OutputSampleRate  int
}

// LiveMessage is one message received on a live connection.
type LiveMessage struct {
	// SetupComplete is the backend's open acknowledgment.
	SetupComplete bool
	Audio         []entities.EncodedAudioPayload
	TurnComplete  bool
	Interrupted   bool
	GoAway        bool
}

// LiveConnection is a persistent bidirectional session with the backend.
type LiveConnection interface {
	// SendAudio submits one encoded capture frame.
	SendAudio(payload entities.EncodedAudioPayload) error
	// Receive blocks until the next message. It returns io.EOF when the
	// backend closed the session normally.
	Receive() (*LiveMessage, error)
	// Close tears down the connection and unblocks Receive.
	Close() error
}

// LiveTransport opens live connections.
type LiveTransport interface {
	Connect(ctx context.Context, config LiveConfig) (LiveConnection, error)
}
