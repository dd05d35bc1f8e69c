package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/internal/websocket"
	"github.com/satriahrh/medicinal/usecase"
)

// Services groups the use cases served over HTTP
type Services struct {
	Scanner   *usecase.ScannerService
	Chat      *usecase.ChatService
	Discovery *usecase.DiscoveryService
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, services Services, hub *websocket.Hub, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		clients := 0
		if hub != nil {
			clients = hub.ClientCount()
		}
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "medicinal",
			Clients: clients,
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/medicines/scan", func(c echo.Context) error {
		return scanMedicine(c, services.Scanner, logger)
	})
	v1.POST("/chat", func(c echo.Context) error {
		return chatReply(c, services.Chat, logger)
	})
	v1.GET("/search", func(c echo.Context) error {
		return searchMedicine(c, services.Discovery, logger)
	})
	v1.GET("/facilities", func(c echo.Context) error {
		return findFacilities(c, services.Discovery, logger)
	})

	// Live voice session bridge
	e.GET("/ws/live", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

// errorResponse maps a use case error onto a status and a user-visible body.
// Backend details are logged by the use case and never returned.
func errorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": "),
		}
	case errors.Is(err, domain.ErrCapabilityCallFailed):
		return http.StatusBadGateway, ErrorResponse{
			Error:   "capability_call_failed",
			Message: "The assistant could not complete the request. Please try again.",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		}
	}
}

func respondError(c echo.Context, err error) error {
	status, body := errorResponse(err)
	return c.JSON(status, body)
}

func scanMedicine(c echo.Context, scanner *usecase.ScannerService, logger *zap.Logger) error {
	image, mimeType, err := readScanImage(c)
	if err != nil {
		logger.Warn("Failed to read scan upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	result, err := scanner.Scan(c.Request().Context(), image, mimeType)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// readScanImage accepts a multipart "image" file or a JSON body with base64
// data. A data URL prefix in the base64 field is stripped.
func readScanImage(c echo.Context) ([]byte, string, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		file, err := c.FormFile("image")
		if err != nil {
			return nil, "", fmt.Errorf("image file is required")
		}
		if file.Size > usecase.MaxImageSize {
			return nil, "", fmt.Errorf("image exceeds %d bytes", usecase.MaxImageSize)
		}
		src, err := file.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open image: %w", err)
		}
		defer src.Close()
		data, err := io.ReadAll(io.LimitReader(src, usecase.MaxImageSize+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read image: %w", err)
		}
		return data, file.Header.Get(echo.HeaderContentType), nil
	}

	var req ScanRequest
	if err := c.Bind(&req); err != nil {
		return nil, "", fmt.Errorf("invalid request format")
	}
	encoded := req.ImageBase64
	mimeType := req.MimeType
	if strings.HasPrefix(encoded, "data:") {
		header, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		encoded = payload
	}
	if encoded == "" {
		return nil, "", fmt.Errorf("image_base64 is required")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("image_base64 is not valid base64")
	}
	return data, mimeType, nil
}

func chatReply(c echo.Context, chat *usecase.ChatService, logger *zap.Logger) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	history := make([]entities.ChatMessage, 0, len(req.History))
	for _, turn := range req.History {
		msg := entities.NewChatMessage(turn.Role, turn.Text)
		if err := msg.Validate(); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: err.Error(),
			})
		}
		history = append(history, msg)
	}
	conv := entities.NewConversation(history)

	// The stream starts with the first delta, so failures before it can still
	// be reported with a proper status.
	res := c.Response()
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set("Cache-Control", "no-cache")
		res.Header().Set("Connection", "keep-alive")
		res.WriteHeader(http.StatusOK)
	}
	emit := func(event ChatEvent) {
		start()
		if err := writeEvent(res, event); err != nil {
			logger.Debug("Failed to write chat event", zap.Error(err))
		}
	}

	reply, err := chat.Reply(c.Request().Context(), conv, req.Message, req.UseThinking, func(delta string) {
		emit(ChatEvent{Delta: delta})
	})
	if err != nil {
		if !started {
			return respondError(c, err)
		}
		_, body := errorResponse(err)
		emit(ChatEvent{Error: &body})
		return nil
	}

	emit(ChatEvent{Message: &reply})
	return nil
}

func writeEvent(res *echo.Response, event ChatEvent) error {
	var buf strings.Builder
	buf.WriteString("data: ")
	// Markdown in replies is sent unescaped.
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event); err != nil {
		return err
	}
	buf.WriteString("\n")
	if _, err := io.WriteString(res, buf.String()); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func searchMedicine(c echo.Context, discovery *usecase.DiscoveryService, logger *zap.Logger) error {
	result, err := discovery.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return respondError(c, err)
	}
	logger.Debug("Search answered", zap.Int("sources", len(result.Sources)))
	return c.JSON(http.StatusOK, result)
}

func findFacilities(c echo.Context, discovery *usecase.DiscoveryService, logger *zap.Logger) error {
	lat, errLat := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if errLat != nil || errLng != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "lat and lng must be numbers",
		})
	}

	category := c.QueryParam("type")
	if category == "" {
		category = string(entities.FacilityHospital)
	}

	result, err := discovery.FindFacilities(c.Request().Context(), lat, lng, category)
	if err != nil {
		return respondError(c, err)
	}
	logger.Debug("Facilities found", zap.String("type", category), zap.Int("places", len(result.Places)))
	return c.JSON(http.StatusOK, result)
}
