package device

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

const (
	BackendFFmpeg = "ffmpeg"
	BackendMemory = "memory"

	defaultBackend    = BackendFFmpeg
	captureDeviceName = "microphone"
	outputDeviceName  = "speaker"
)

// Config selects the audio backend used by live sessions.
// Optional fields with defaults:
// - Backend: "ffmpeg" or "memory" (default: "ffmpeg")
// - InputDevice: ffmpeg input name (default: platform default microphone)
type Config struct {
	Backend     string
	InputDevice string
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	switch config.Backend {
	case "", BackendFFmpeg, BackendMemory:
		return nil
	default:
		return fmt.Errorf("unknown audio backend %q, expected %s or %s", config.Backend, BackendFFmpeg, BackendMemory)
	}
}

// NewConfigFromEnv reads AUDIO_BACKEND and AUDIO_INPUT_DEVICE.
func NewConfigFromEnv() Config {
	return Config{
		Backend:     os.Getenv("AUDIO_BACKEND"),
		InputDevice: os.Getenv("AUDIO_INPUT_DEVICE"),
	}
}

// Devices builds the capture and output device pair for the configured
// backend. Both are claimed through registry when opened.
func Devices(config Config, registry *Registry, logger *zap.Logger) (repositories.CaptureDevice, repositories.OutputDevice, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, nil, err
	}

	backend := config.Backend
	if backend == "" {
		backend = defaultBackend
		logger.Info("Using default audio backend", zap.String("backend", backend))
	}

	switch backend {
	case BackendMemory:
		return NewMemoryCapture(captureDeviceName, registry, logger),
			NewMemoryOutput(outputDeviceName, registry, logger), nil
	default:
		capture := NewStreamCapture(captureDeviceName, entities.CaptureWindowSize,
			FFmpegInput(config.InputDevice, entities.CaptureSampleRate), registry, logger)
		output := NewStreamOutput(outputDeviceName, entities.PlaybackSampleRate,
			FFplayOutput(entities.PlaybackSampleRate), registry, logger)
		return capture, output, nil
	}
}
