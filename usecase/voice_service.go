package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/internal/live"
)

// DeviceFactory builds a fresh capture and output device pair. Devices are
// claimed when a session opens them, not when they are built.
type DeviceFactory func() (repositories.CaptureDevice, repositories.OutputDevice, error)

// VoiceService creates live voice sessions
type VoiceService struct {
	config    live.Config
	transport repositories.LiveTransport
	devices   DeviceFactory
	logger    *zap.Logger
}

// NewVoiceService creates a new voice service
func NewVoiceService(config live.Config, transport repositories.LiveTransport, devices DeviceFactory, logger *zap.Logger) *VoiceService {
	return &VoiceService{
		config:    config,
		transport: transport,
		devices:   devices,
		logger:    logger,
	}
}

// NewSession returns an IDLE session reporting to observer. The caller owns
// it and must Stop it.
func (s *VoiceService) NewSession(observer live.Observer) (*live.Session, error) {
	capture, output, err := s.devices()
	if err != nil {
		return nil, fmt.Errorf("failed to build audio devices: %w", err)
	}

	session := live.NewSession(s.config, s.transport, capture, output, observer, s.logger)
	s.logger.Info("Live session created", zap.String("sessionID", session.ID()))
	return session, nil
}
