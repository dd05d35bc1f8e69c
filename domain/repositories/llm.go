package repositories

import (
	"context"

	"github.com/satriahrh/medicinal/domain/entities"
)

// MedicineVision extracts structured medicine details from a photo.
type MedicineVision interface {
	// AnalyzeImage sends the image with a fixed instruction prompt and returns
	// details conforming to the medicine schema.
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*entities.MedicineDetails, error)
}

// ChatDelta is one increment of a streamed assistant reply. A delta with a
// non-nil Err is always the last one on the channel.
type ChatDelta struct {
	Text    string
	Thought bool
	Err     error
}

// DoctorChat abstracts the conversational assistant.
type DoctorChat interface {
	// StreamReply returns a lazy, finite stream of reply deltas. The channel is
	// closed when the reply is complete and must be consumed exactly once.
	StreamReply(ctx context.Context, history []entities.ChatMessage, message string, useThinking bool) (<-chan ChatDelta, error)
}

// MedicineSearch answers a query with web search grounding.
type MedicineSearch interface {
	Search(ctx context.Context, query string) (*entities.SearchResult, error)
}

// FacilityLocator finds nearby medical facilities with maps grounding.
type FacilityLocator interface {
	FindNearby(ctx context.Context, latitude, longitude float64, category entities.FacilityCategory) (*entities.FacilityResult, error)
}
