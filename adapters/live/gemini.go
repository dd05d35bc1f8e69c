package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

const defaultConnectTimeout = 10 * time.Second

// GeminiLiveConfig holds configuration for the Gemini Live transport
// Required fields:
// - APIKey: Gemini API key
// Optional fields with defaults:
// - URL: ws or wss API base URL (default: the public endpoint)
// - ConnectTimeout: dial plus setup write timeout (default: 10s)
type GeminiLiveConfig struct {
	APIKey         string
	URL            string
	ConnectTimeout time.Duration
}

// ValidateGeminiLiveConfig validates the GeminiLiveConfig
func ValidateGeminiLiveConfig(config GeminiLiveConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("gemini API key is required")
	}
	if config.URL != "" {
		u, err := url.Parse(config.URL)
		if err != nil {
			return fmt.Errorf("invalid live URL: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("live URL must use ws or wss, got %q", u.Scheme)
		}
	}
	return nil
}

// NewGeminiLiveConfigFromEnv reads GEMINI_API_KEY (or API_KEY) and GEMINI_LIVE_URL.
func NewGeminiLiveConfigFromEnv() GeminiLiveConfig {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}
	return GeminiLiveConfig{
		APIKey: apiKey,
		URL:    os.Getenv("GEMINI_LIVE_URL"),
	}
}

// GeminiLive opens sessions on the Gemini Live API through the genai client.
type GeminiLive struct {
	client  *genai.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Ensure GeminiLive implements the LiveTransport interface
var _ repositories.LiveTransport = (*GeminiLive)(nil)

// NewGeminiLive creates a new Gemini Live transport
func NewGeminiLive(config GeminiLiveConfig, logger *zap.Logger) (*GeminiLive, error) {
	if err := ValidateGeminiLiveConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.URL != "" {
		clientConfig.HTTPOptions.BaseURL = config.URL
	} else {
		logger.Info("Using default live endpoint")
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	timeout := config.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	return &GeminiLive{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}, nil
}

type connectResult struct {
	session *genai.Session
	err     error
}

// Connect dials the endpoint and sends the setup message. The backend answers
// with setupComplete, which the caller receives through Receive.
//
// The genai dial does not observe ctx, so it runs in its own goroutine and a
// session that arrives after ctx is done is closed.
func (g *GeminiLive) Connect(ctx context.Context, config repositories.LiveConfig) (repositories.LiveConnection, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan connectResult, 1)
	go func() {
		session, err := g.client.Live.Connect(ctx, config.Model, newConnectConfig(config))
		done <- connectResult{session: session, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to live endpoint: %w", res.err)
		}
		g.logger.Info("Connected to Gemini Live",
			zap.String("model", config.Model),
			zap.String("voice", config.Voice))
		return &geminiConn{session: res.session, logger: g.logger}, nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.session != nil {
				res.session.Close()
			}
		}()
		return nil, fmt.Errorf("failed to connect to live endpoint: %w", ctx.Err())
	}
}

type geminiConn struct {
	session *genai.Session
	logger  *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *geminiConn) SendAudio(payload entities.EncodedAudioPayload) error {
	input, err := newAudioInput(payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.session.SendRealtimeInput(input)
}

// Receive reads until it can decode a message. A normal close from the
// backend is reported as io.EOF.
func (c *geminiConn) Receive() (*repositories.LiveMessage, error) {
	for {
		msg, err := c.session.Receive()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, fmt.Errorf("live session closed by backend (%d): %s", closeErr.Code, closeErr.Text)
			}
			if isDecodeError(err) {
				c.logger.Warn("Skipping unparsable live message", zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("failed to read from live endpoint: %w", err)
		}
		return toLiveMessage(msg), nil
	}
}

// Close drops the socket without waiting for writers. gorilla allows Close
// concurrently with a pending write, which then fails.
func (c *geminiConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.session.Close()
	})
	return c.closeErr
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
