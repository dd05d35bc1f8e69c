package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/medicinal/domain/entities"
)

// Search answers query with Google Search grounding.
func (g *Gemini) Search(ctx context.Context, query string) (*entities.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	g.logger.Info("Searching with grounding", zap.String("model", g.searchModel), zap.String("query", query))

	response, err := g.generate(ctx, g.searchModel, genai.Text(query), config)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	text := response.Text()
	if strings.TrimSpace(text) == "" {
		text = noSearchResultText
	}
	return &entities.SearchResult{
		Text:    text,
		Sources: sourcesFromResponse(response),
	}, nil
}

// FindNearby ranks nearby facilities with Google Maps grounding.
func (g *Gemini) FindNearby(ctx context.Context, latitude, longitude float64, category entities.FacilityCategory) (*entities.FacilityResult, error) {
	if err := entities.ValidateCoordinates(latitude, longitude); err != nil {
		return nil, err
	}
	if _, err := entities.ParseFacilityCategory(string(category)); err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
		ToolConfig: &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(latitude),
					Longitude: genai.Ptr(longitude),
				},
			},
		},
	}

	g.logger.Info("Finding nearby facilities",
		zap.String("model", g.mapsModel),
		zap.String("category", string(category)))

	response, err := g.generate(ctx, g.mapsModel, genai.Text(facilitiesPrompt(category)), config)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby %s: %w", category, err)
	}

	text := response.Text()
	if strings.TrimSpace(text) == "" {
		text = noFacilityResultText
	}
	sources := sourcesFromResponse(response)
	return &entities.FacilityResult{
		Text:    text,
		Places:  placesFromSources(sources),
		Sources: sources,
	}, nil
}

// sourcesFromResponse collects web and maps citations, dropping duplicates.
func sourcesFromResponse(response *genai.GenerateContentResponse) []entities.Source {
	sources := []entities.Source{}
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].GroundingMetadata == nil {
		return sources
	}

	seen := make(map[string]bool)
	for _, chunk := range response.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil {
			continue
		}
		var src entities.Source
		switch {
		case chunk.Web != nil:
			src = entities.Source{Kind: entities.SourceKindWeb, Title: chunk.Web.Title, URI: chunk.Web.URI}
		case chunk.Maps != nil:
			src = entities.Source{Kind: entities.SourceKindMaps, Title: chunk.Maps.Title, URI: chunk.Maps.URI}
		default:
			continue
		}
		if src.URI == "" || seen[src.URI] {
			continue
		}
		seen[src.URI] = true
		if src.Title == "" {
			src.Title = src.URI
		}
		sources = append(sources, src)
	}
	return sources
}

// placesFromSources turns maps citations into place records. Ratings and
// addresses are not part of grounding chunks, so only name and link are set.
func placesFromSources(sources []entities.Source) []entities.Place {
	places := []entities.Place{}
	for _, src := range sources {
		if src.Kind != entities.SourceKindMaps {
			continue
		}
		places = append(places, entities.Place{Name: src.Title, MapsURI: src.URI})
	}
	return places
}
