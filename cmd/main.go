package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/adapters/device"
	"github.com/satriahrh/medicinal/adapters/live"
	"github.com/satriahrh/medicinal/adapters/llm"
	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/internal/api"
	"github.com/satriahrh/medicinal/internal/config"
	livesession "github.com/satriahrh/medicinal/internal/live"
	"github.com/satriahrh/medicinal/internal/websocket"
	"github.com/satriahrh/medicinal/usecase"
)

// capabilities is satisfied by both the Gemini client and its mock.
type capabilities interface {
	repositories.MedicineVision
	repositories.DoctorChat
	repositories.MedicineSearch
	repositories.FacilityLocator
}

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// Initialize adapters
	var backend capabilities
	var transport repositories.LiveTransport
	switch cfg.LLMBackend {
	case config.BackendMock:
		backend = llm.NewMockGemini()
		transport = live.NewLoopback(logger)
		logger.Warn("Running with the mock LLM backend")
	default:
		gemini, err := llm.NewGemini(cfg.Gemini, logger)
		if err != nil {
			logger.Fatal("Failed to create Gemini client", zap.Error(err))
		}
		backend = gemini
		transport, err = live.NewGeminiLive(cfg.GeminiLive, logger)
		if err != nil {
			logger.Fatal("Failed to create Gemini Live transport", zap.Error(err))
		}
	}

	registry := device.NewRegistry()
	devices := func() (repositories.CaptureDevice, repositories.OutputDevice, error) {
		return device.Devices(cfg.Audio, registry, logger)
	}

	// Initialize usecase services
	services := api.Services{
		Scanner:   usecase.NewScannerService(backend, logger),
		Chat:      usecase.NewChatService(backend, logger),
		Discovery: usecase.NewDiscoveryService(backend, backend, logger),
	}
	voice := usecase.NewVoiceService(livesession.Config{Live: cfg.LiveSessionConfig()}, transport, devices, logger)

	// Initialize WebSocket hub with the voice service
	hub := websocket.NewHub(voice, logger)
	go hub.Run()

	cleanup := websocket.NewSessionCleanupService(hub, cfg.Live.MaxSessionAge, logger)
	cleanup.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("12M"))

	// Initialize API routes
	api.InitRoutes(e, services, hub, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("llm_backend", cfg.LLMBackend),
		zap.String("env", cfg.Env))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	// Live sessions hold the audio devices; release them first.
	cleanup.Stop()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
