package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

// MockGemini is an offline stand-in for the Gemini capabilities, used when
// LLM_BACKEND=mock.
type MockGemini struct{}

var (
	_ repositories.MedicineVision  = (*MockGemini)(nil)
	_ repositories.DoctorChat      = (*MockGemini)(nil)
	_ repositories.MedicineSearch  = (*MockGemini)(nil)
	_ repositories.FacilityLocator = (*MockGemini)(nil)
)

// NewMockGemini creates a new mock Gemini client
func NewMockGemini() *MockGemini {
	return &MockGemini{}
}

func (m *MockGemini) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*entities.MedicineDetails, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image cannot be empty")
	}
	generic := "Acetaminophen"
	confidence := 0.9
	return &entities.MedicineDetails{
		Name:            "Paracetamol 500mg",
		GenericName:     &generic,
		Purpose:         "Relief of mild to moderate pain and fever.",
		Dosage:          "1-2 tablets every 4-6 hours, no more than 8 tablets in 24 hours.",
		SideEffects:     []string{"Nausea", "Rash"},
		Warnings:        []string{"Do not exceed the stated dose.", "Avoid alcohol."},
		ConfidenceScore: &confidence,
	}, nil
}

func (m *MockGemini) StreamReply(ctx context.Context, history []entities.ChatMessage, message string, useThinking bool) (<-chan repositories.ChatDelta, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	var deltas []repositories.ChatDelta
	if useThinking {
		deltas = append(deltas, repositories.ChatDelta{Text: "Considering the question.", Thought: true})
	}
	reply := fmt.Sprintf("You asked about %q. Please consult a pharmacist or doctor for advice specific to you.", message)
	for _, word := range strings.SplitAfter(reply, " ") {
		deltas = append(deltas, repositories.ChatDelta{Text: word})
	}

	out := make(chan repositories.ChatDelta, len(deltas))
	for _, d := range deltas {
		out <- d
	}
	close(out)
	return out, nil
}

func (m *MockGemini) Search(ctx context.Context, query string) (*entities.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	return &entities.SearchResult{
		Text: fmt.Sprintf("No recent safety updates were found for %s.", query),
		Sources: []entities.Source{
			{Kind: entities.SourceKindWeb, Title: "Drug Safety Communications", URI: "https://www.fda.gov/drugs/drug-safety-and-availability"},
		},
	}, nil
}

func (m *MockGemini) FindNearby(ctx context.Context, latitude, longitude float64, category entities.FacilityCategory) (*entities.FacilityResult, error) {
	if _, err := entities.ParseFacilityCategory(string(category)); err != nil {
		return nil, err
	}
	return &entities.FacilityResult{
		Text:    fmt.Sprintf("1. **City %s** (4.5 stars)", string(category)),
		Places:  []entities.Place{},
		Sources: []entities.Source{},
	}, nil
}
