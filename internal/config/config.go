package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/adapters/device"
	"github.com/satriahrh/medicinal/adapters/live"
	"github.com/satriahrh/medicinal/adapters/llm"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

const (
	BackendGemini = "gemini"
	BackendMock   = "mock"

	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultPort      = "8080"
	defaultLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	defaultLiveVoice = "Fenrir"
)

// LiveConfig holds the voice session settings that are not transport specific
// Optional fields with defaults:
// - Model: native audio model (default: "gemini-2.5-flash-native-audio-preview-12-2025")
// - Voice: prebuilt voice name (default: "Fenrir")
// - MaxSessionAge: sessions are stopped after this long (default: 15m)
type LiveConfig struct {
	Model         string
	Voice         string
	MaxSessionAge time.Duration
}

// Config is the full application configuration
type Config struct {
	Port       string
	Env        string
	LLMBackend string
	Gemini     llm.GeminiConfig
	GeminiLive live.GeminiLiveConfig
	Live       LiveConfig
	Audio      device.Config
}

// Load reads .env when present, then the environment, and validates the
// result. Defaults are applied and logged.
func Load(logger *zap.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	config := NewConfigFromEnv()
	config.applyDefaults(logger)
	if err := ValidateConfig(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() Config {
	config := Config{
		Port:       os.Getenv("PORT"),
		Env:        os.Getenv("APP_ENV"),
		LLMBackend: os.Getenv("LLM_BACKEND"),
		Gemini:     llm.NewGeminiConfigFromEnv(),
		GeminiLive: live.NewGeminiLiveConfigFromEnv(),
		Live: LiveConfig{
			Model: os.Getenv("GEMINI_LIVE_MODEL"),
			Voice: os.Getenv("GEMINI_LIVE_VOICE"),
		},
		Audio: device.NewConfigFromEnv(),
	}

	if minutesStr := os.Getenv("LIVE_MAX_SESSION_MINUTES"); minutesStr != "" {
		if minutes, err := strconv.Atoi(minutesStr); err == nil && minutes > 0 {
			config.Live.MaxSessionAge = time.Duration(minutes) * time.Minute
		}
	}

	return config
}

func (c *Config) applyDefaults(logger *zap.Logger) {
	if c.Port == "" {
		c.Port = defaultPort
		logger.Info("Using default port", zap.String("port", c.Port))
	}
	if c.Env == "" {
		c.Env = EnvProduction
	}
	if c.LLMBackend == "" {
		c.LLMBackend = BackendGemini
		logger.Info("Using default LLM backend", zap.String("backend", c.LLMBackend))
	}
	if c.Live.Model == "" {
		c.Live.Model = defaultLiveModel
		logger.Info("Using default live model", zap.String("model", c.Live.Model))
	}
	if c.Live.Voice == "" {
		c.Live.Voice = defaultLiveVoice
		logger.Info("Using default live voice", zap.String("voice", c.Live.Voice))
	}
}

// ValidateConfig validates the Config. Gemini credentials are only required
// for the gemini backend.
func ValidateConfig(config Config) error {
	if port, err := strconv.Atoi(config.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", config.Port)
	}
	switch config.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown APP_ENV %q, expected %s or %s", config.Env, EnvDevelopment, EnvProduction)
	}
	if err := device.ValidateConfig(config.Audio); err != nil {
		return err
	}

	switch config.LLMBackend {
	case BackendMock:
		return nil
	case BackendGemini:
		if err := llm.ValidateGeminiConfig(config.Gemini); err != nil {
			return fmt.Errorf("invalid gemini config: %w", err)
		}
		if err := live.ValidateGeminiLiveConfig(config.GeminiLive); err != nil {
			return fmt.Errorf("invalid gemini live config: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown LLM_BACKEND %q, expected %s or %s", config.LLMBackend, BackendGemini, BackendMock)
	}
}

// IsDevelopment reports whether APP_ENV selects development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// LiveSessionConfig returns the backend settings requested for every live
// session.
func (c Config) LiveSessionConfig() repositories.LiveConfig {
	return repositories.LiveConfig{
		Model:             c.Live.Model,
		Voice:             c.Live.Voice,
		SystemInstruction: llm.LiveSystemInstruction,
		InputSampleRate:   entities.CaptureSampleRate,
		OutputSampleRate:  entities.PlaybackSampleRate,
	}
}
