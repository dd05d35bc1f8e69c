package entities

import (
	"fmt"
	"math"
)

// SourceKind tells where a grounding citation came from
type SourceKind string

const (
	SourceKindWeb  SourceKind = "web"
	SourceKindMaps SourceKind = "maps"
)

// Source is a citation attached to a grounded answer.
type Source struct {
	Kind  SourceKind `json:"kind"`
	Title string     `json:"title"`
	URI   string     `json:"uri"`
}

// SearchResult is the answer of a grounded web search.
type SearchResult struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// FacilityCategory selects the kind of nearby facility to look up.
type FacilityCategory string

const (
	FacilityHospital FacilityCategory = "hospital"
	FacilityPharmacy FacilityCategory = "pharmacy"
)

// ParseFacilityCategory validates a category received from a caller
func ParseFacilityCategory(s string) (FacilityCategory, error) {
	switch FacilityCategory(s) {
	case FacilityHospital, FacilityPharmacy:
		return FacilityCategory(s), nil
	default:
		return "", fmt.Errorf("unsupported facility category: %q", s)
	}
}

// ValidateCoordinates rejects points off the globe, including NaN and
// infinities.
func ValidateCoordinates(latitude, longitude float64) error {
	if math.IsNaN(latitude) || math.IsNaN(longitude) || math.IsInf(latitude, 0) || math.IsInf(longitude, 0) {
		return fmt.Errorf("coordinates must be finite numbers")
	}
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return fmt.Errorf("coordinates out of range: %f, %f", latitude, longitude)
	}
	return nil
}

// Place is a best-effort structured record for a nearby facility.
type Place struct {
	Name            string   `json:"name"`
	Address         *string  `json:"address,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	UserRatingCount *int     `json:"userRatingCount,omitempty"`
	MapsURI         string   `json:"googleMapsUri,omitempty"`
}

// FacilityResult is the ranked markdown answer of a nearby lookup. Places may
// be empty even when Text is not.
type FacilityResult struct {
	Text    string   `json:"text"`
	Places  []Place  `json:"places"`
	Sources []Source `json:"sources"`
}
