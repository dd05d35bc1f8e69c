package live

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/internal/audio"
)

var errLoopbackClosed = errors.New("loopback connection closed")

// Loopback is an offline transport that acknowledges setup and echoes every
// captured frame back as output-rate audio. It backs mock mode.
type Loopback struct {
	logger *zap.Logger
}

// Ensure Loopback implements the LiveTransport interface
var _ repositories.LiveTransport = (*Loopback)(nil)

func NewLoopback(logger *zap.Logger) *Loopback {
	return &Loopback{logger: logger}
}

func (l *Loopback) Connect(ctx context.Context, config repositories.LiveConfig) (repositories.LiveConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outRate := config.OutputSampleRate
	if outRate <= 0 {
		outRate = entities.PlaybackSampleRate
	}
	conn := &loopbackConn{
		outRate: outRate,
		msgs:    make(chan *repositories.LiveMessage, 64),
		done:    make(chan struct{}),
		logger:  l.logger,
	}
	conn.msgs <- &repositories.LiveMessage{SetupComplete: true}
	l.logger.Info("Loopback live session connected", zap.String("model", config.Model))
	return conn, nil
}

type loopbackConn struct {
	outRate int
	msgs    chan *repositories.LiveMessage
	done    chan struct{}
	once    sync.Once
	logger  *zap.Logger
}

func (c *loopbackConn) SendAudio(payload entities.EncodedAudioPayload) error {
	select {
	case <-c.done:
		return errLoopbackClosed
	default:
	}

	samples, err := audio.DecodePayload(payload)
	if err != nil {
		return err
	}
	inRate, err := audio.ParseRate(payload.MIMEType)
	if err != nil {
		return err
	}

	echo := audio.EncodePayload(audio.Resample(samples, inRate, c.outRate), c.outRate)
	select {
	case c.msgs <- &repositories.LiveMessage{Audio: []entities.EncodedAudioPayload{echo}}:
	default:
		c.logger.Debug("Loopback queue full, dropping echo")
	}
	return nil
}

func (c *loopbackConn) Receive() (*repositories.LiveMessage, error) {
	select {
	case <-c.done:
		return nil, errLoopbackClosed
	case msg := <-c.msgs:
		return msg, nil
	}
}

func (c *loopbackConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
