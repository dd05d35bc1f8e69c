package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/medicinal/adapters/llm"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
	"github.com/satriahrh/medicinal/usecase"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// failingBackend fails every capability call.
type failingBackend struct{}

func (failingBackend) AnalyzeImage(context.Context, []byte, string) (*entities.MedicineDetails, error) {
	return nil, errors.New("upstream timeout")
}

func (failingBackend) StreamReply(context.Context, []entities.ChatMessage, string, bool) (<-chan repositories.ChatDelta, error) {
	out := make(chan repositories.ChatDelta, 2)
	out <- repositories.ChatDelta{Text: "Partial"}
	out <- repositories.ChatDelta{Err: errors.New("stream reset")}
	close(out)
	return out, nil
}

func (failingBackend) Search(context.Context, string) (*entities.SearchResult, error) {
	return nil, errors.New("upstream timeout")
}

func (failingBackend) FindNearby(context.Context, float64, float64, entities.FacilityCategory) (*entities.FacilityResult, error) {
	return nil, errors.New("upstream timeout")
}

type backend interface {
	repositories.MedicineVision
	repositories.DoctorChat
	repositories.MedicineSearch
	repositories.FacilityLocator
}

func setupTestEcho(t *testing.T, b backend) *echo.Echo {
	t.Helper()
	logger := zaptest.NewLogger(t)
	e := echo.New()
	InitRoutes(e, Services{
		Scanner:   usecase.NewScannerService(b, logger),
		Chat:      usecase.NewChatService(b, logger),
		Discovery: usecase.NewDiscoveryService(b, b, logger),
	}, nil, logger)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	e := setupTestEcho(t, llm.NewMockGemini())
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body HealthResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "ok" || body.Service != "medicinal" {
		t.Errorf("Unexpected health body %+v", body)
	}
}

func TestScanMedicine_Multipart(t *testing.T) {
	e := setupTestEcho(t, llm.NewMockGemini())

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "box.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(jpegHeader)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/medicines/scan", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result entities.ScanResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.ID == "" || result.Details.Name != "Paracetamol 500mg" {
		t.Errorf("Unexpected scan result %+v", result)
	}
}

func TestScanMedicine_JSON(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(jpegHeader)

	tests := []struct {
		name       string
		backend    backend
		body       string
		wantStatus int
	}{
		{"plain base64", llm.NewMockGemini(), `{"image_base64":"` + encoded + `"}`, http.StatusOK},
		{"data url", llm.NewMockGemini(), `{"image_base64":"data:image/jpeg;base64,` + encoded + `"}`, http.StatusOK},
		{"missing image", llm.NewMockGemini(), `{}`, http.StatusBadRequest},
		{"bad base64", llm.NewMockGemini(), `{"image_base64":"***"}`, http.StatusBadRequest},
		{"not an image", llm.NewMockGemini(), `{"image_base64":"` + base64.StdEncoding.EncodeToString([]byte("hello")) + `"}`, http.StatusBadRequest},
		{"backend failure", failingBackend{}, `{"image_base64":"` + encoded + `"}`, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupTestEcho(t, tt.backend)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/medicines/scan", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := serve(e, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusBadGateway {
				body := decodeError(t, rec)
				if strings.Contains(body.Message, "upstream timeout") {
					t.Error("Backend error details leaked to the client")
				}
			}
		})
	}
}

func readEvents(t *testing.T, body string) []ChatEvent {
	t.Helper()
	var events []ChatEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event ChatEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("Invalid event %q: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestChatReply_Stream(t *testing.T) {
	e := setupTestEcho(t, llm.NewMockGemini())

	body := `{"history":[{"role":"user","text":"hi"},{"role":"assistant","text":"Hello!"}],"message":"aspirin","use_thinking":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Errorf("Expected event stream, got %q", ct)
	}

	events := readEvents(t, rec.Body.String())
	if len(events) < 2 {
		t.Fatalf("Expected deltas and a final message, got %d events", len(events))
	}
	var text strings.Builder
	for _, ev := range events[:len(events)-1] {
		text.WriteString(ev.Delta)
	}
	final := events[len(events)-1].Message
	if final == nil {
		t.Fatal("Expected the last event to carry the message")
	}
	if final.Role != entities.MessageRoleAssistant || final.Text != text.String() {
		t.Errorf("Final message does not match streamed text: %q vs %q", final.Text, text.String())
	}
	if final.IsThinking {
		t.Error("Final message should not be thinking")
	}
}

func TestChatReply_Errors(t *testing.T) {
	tests := []struct {
		name       string
		backend    backend
		body       string
		wantStatus int
	}{
		{"empty message", llm.NewMockGemini(), `{"message":"  "}`, http.StatusBadRequest},
		{"bad role", llm.NewMockGemini(), `{"history":[{"role":"system","text":"x"}],"message":"hi"}`, http.StatusBadRequest},
		{"malformed", llm.NewMockGemini(), `{"message":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupTestEcho(t, tt.backend)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := serve(e, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestChatReply_FailsMidStream(t *testing.T) {
	e := setupTestEcho(t, failingBackend{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)

	events := readEvents(t, rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("Expected a delta and an error event, got %d", len(events))
	}
	if events[0].Delta != "Partial" {
		t.Errorf("Unexpected first event %+v", events[0])
	}
	if events[1].Error == nil || events[1].Error.Error != "capability_call_failed" {
		t.Errorf("Expected capability error event, got %+v", events[1])
	}
}

func TestSearchMedicine(t *testing.T) {
	tests := []struct {
		name       string
		backend    backend
		query      string
		wantStatus int
	}{
		{"ok", llm.NewMockGemini(), "?q=ibuprofen", http.StatusOK},
		{"missing query", llm.NewMockGemini(), "", http.StatusBadRequest},
		{"backend failure", failingBackend{}, "?q=ibuprofen", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupTestEcho(t, tt.backend)
			rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/v1/search"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				var result entities.SearchResult
				json.Unmarshal(rec.Body.Bytes(), &result)
				if result.Text == "" || len(result.Sources) == 0 {
					t.Errorf("Unexpected search result %+v", result)
				}
			}
		})
	}
}

func TestFindFacilities(t *testing.T) {
	tests := []struct {
		name       string
		backend    backend
		query      string
		wantStatus int
	}{
		{"default type", llm.NewMockGemini(), "?lat=-6.2&lng=106.8", http.StatusOK},
		{"pharmacy", llm.NewMockGemini(), "?lat=-6.2&lng=106.8&type=pharmacy", http.StatusOK},
		{"missing coordinates", llm.NewMockGemini(), "?type=pharmacy", http.StatusBadRequest},
		{"out of range", llm.NewMockGemini(), "?lat=100&lng=0", http.StatusBadRequest},
		{"not a number", llm.NewMockGemini(), "?lat=NaN&lng=0", http.StatusBadRequest},
		{"infinite", llm.NewMockGemini(), "?lat=0&lng=Inf", http.StatusBadRequest},
		{"unknown type", llm.NewMockGemini(), "?lat=0&lng=0&type=clinic", http.StatusBadRequest},
		{"backend failure", failingBackend{}, "?lat=0&lng=0", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupTestEcho(t, tt.backend)
			rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/v1/facilities"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), `"places":[]`) {
				t.Errorf("Expected an empty places list, got %s", rec.Body.String())
			}
		})
	}
}
