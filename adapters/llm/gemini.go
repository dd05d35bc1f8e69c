package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/medicinal/domain/repositories"
)

const (
	defaultVisionModel    = "gemini-3-pro-preview"
	defaultChatModel      = "gemini-3-pro-preview"
	defaultSearchModel    = "gemini-3-flash-preview"
	defaultMapsModel      = "gemini-2.5-flash" // maps grounding is not available on every model
	defaultTimeoutSeconds = 60
	defaultThinkingBudget = 2048

	maxAttempts = 3
)

// GeminiConfig holds configuration for the Gemini capability clients
// Required fields:
// - APIKey: Gemini API key
// Optional fields with defaults:
// - BaseURL: API endpoint override
// - VisionModel: model for medicine photos (default: "gemini-3-pro-preview")
// - ChatModel: model for the assistant chat (default: "gemini-3-pro-preview")
// - SearchModel: model for search grounding (default: "gemini-3-flash-preview")
// - MapsModel: model for maps grounding (default: "gemini-2.5-flash")
// - TimeoutSeconds: per call timeout (default: 60)
// - ThinkingBudget: tokens allowed for extended reasoning (default: 2048)
type GeminiConfig struct {
	APIKey         string
	BaseURL        string
	VisionModel    string
	ChatModel      string
	SearchModel    string
	MapsModel      string
	TimeoutSeconds int
	ThinkingBudget int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("gemini API key is required")
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	if config.ThinkingBudget < 0 {
		return fmt.Errorf("thinking budget must be positive, got %d", config.ThinkingBudget)
	}
	return nil
}

// NewGeminiConfigFromEnv creates a new GeminiConfig from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}

	config := GeminiConfig{
		APIKey:      apiKey,
		BaseURL:     os.Getenv("GEMINI_BASE_URL"),
		VisionModel: os.Getenv("GEMINI_VISION_MODEL"),
		ChatModel:   os.Getenv("GEMINI_CHAT_MODEL"),
		SearchModel: os.Getenv("GEMINI_SEARCH_MODEL"),
		MapsModel:   os.Getenv("GEMINI_MAPS_MODEL"),
	}

	if timeoutStr := os.Getenv("GEMINI_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	if budgetStr := os.Getenv("GEMINI_THINKING_BUDGET"); budgetStr != "" {
		if budget, err := strconv.Atoi(budgetStr); err == nil && budget > 0 {
			config.ThinkingBudget = budget
		}
	}

	return config
}

// Gemini implements the four capability interfaces on top of Google's Gemini API
type Gemini struct {
	client         *genai.Client
	logger         *zap.Logger
	visionModel    string
	chatModel      string
	searchModel    string
	mapsModel      string
	timeout        time.Duration
	thinkingBudget int32
	retryDelay     time.Duration
}

// Ensure Gemini implements the capability interfaces
var (
	_ repositories.MedicineVision  = (*Gemini)(nil)
	_ repositories.DoctorChat      = (*Gemini)(nil)
	_ repositories.MedicineSearch  = (*Gemini)(nil)
	_ repositories.FacilityLocator = (*Gemini)(nil)
)

// NewGemini creates a new Gemini client
func NewGemini(config GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	visionModel := config.VisionModel
	if visionModel == "" {
		visionModel = defaultVisionModel
		logger.Info("Using default vision model", zap.String("model", visionModel))
	}

	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = defaultChatModel
		logger.Info("Using default chat model", zap.String("model", chatModel))
	}

	searchModel := config.SearchModel
	if searchModel == "" {
		searchModel = defaultSearchModel
		logger.Info("Using default search model", zap.String("model", searchModel))
	}

	mapsModel := config.MapsModel
	if mapsModel == "" {
		mapsModel = defaultMapsModel
		logger.Info("Using default maps model", zap.String("model", mapsModel))
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}

	thinkingBudget := config.ThinkingBudget
	if thinkingBudget == 0 {
		thinkingBudget = defaultThinkingBudget
	}

	return &Gemini{
		client:         client,
		logger:         logger,
		visionModel:    visionModel,
		chatModel:      chatModel,
		searchModel:    searchModel,
		mapsModel:      mapsModel,
		timeout:        time.Duration(timeoutSeconds) * time.Second,
		thinkingBudget: int32(thinkingBudget),
		retryDelay:     time.Second,
	}, nil
}

// generate runs a single-shot call with a timeout and a bounded retry.
func (g *Gemini) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, model, contents, config)
		if err == nil {
			return response, nil
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			}
		}
	}
	return nil, err
}
