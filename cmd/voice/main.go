// Command voice runs one live voice session against the local microphone and
// speaker, without the HTTP server. Press Ctrl+C to end it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/adapters/device"
	"github.com/satriahrh/medicinal/adapters/live"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/internal/config"
	livesession "github.com/satriahrh/medicinal/internal/live"
)

// printer shows session events on the terminal.
type printer struct {
	done chan struct{}
}

func (p *printer) OnStateChange(state entities.SessionState) {
	fmt.Printf("[%s]\n", state)
	if state == entities.SessionStateClosed {
		select {
		case <-p.done:
		default:
			close(p.done)
		}
	}
}

func (p *printer) OnTalking(talking bool) {
	if talking {
		fmt.Println("assistant is speaking...")
	}
}

func (p *printer) OnError(err error) {
	fmt.Println("error:", err)
}

func main() {
	// Create logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	var transport repositories.LiveTransport
	if cfg.LLMBackend == config.BackendMock {
		transport = live.NewLoopback(logger)
	} else {
		transport, err = live.NewGeminiLive(cfg.GeminiLive, logger)
		if err != nil {
			logger.Fatal("Failed to create live transport", zap.Error(err))
		}
	}

	capture, output, err := device.Devices(cfg.Audio, device.NewRegistry(), logger)
	if err != nil {
		logger.Fatal("Failed to create audio devices", zap.Error(err))
	}

	observer := &printer{done: make(chan struct{})}
	session := livesession.NewSession(livesession.Config{Live: cfg.LiveSessionConfig()}, transport, capture, output, observer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		logger.Fatal("Failed to start live session", zap.Error(err))
	}
	fmt.Println("Speak now. Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
	case <-observer.done:
	}
	session.Stop()

	stats := session.Stats()
	logger.Info("Session finished",
		zap.Int64("frames_sent", stats.FramesSent),
		zap.Int64("chunks_played", stats.ChunksPlayed))
}
