package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

// DiscoveryService serves grounded drug searches and nearby facility lookups
type DiscoveryService struct {
	search  repositories.MedicineSearch
	locator repositories.FacilityLocator
	logger  *zap.Logger
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(search repositories.MedicineSearch, locator repositories.FacilityLocator, logger *zap.Logger) *DiscoveryService {
	return &DiscoveryService{search: search, locator: locator, logger: logger}
}

// Search runs a grounded web search for query.
func (s *DiscoveryService) Search(ctx context.Context, query string) (*entities.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	result, err := s.search.Search(ctx, query)
	if err != nil {
		s.logger.Error("Search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCapabilityCallFailed, err)
	}
	return result, nil
}

// FindFacilities looks up facilities of the given category around a point.
func (s *DiscoveryService) FindFacilities(ctx context.Context, latitude, longitude float64, category string) (*entities.FacilityResult, error) {
	if err := entities.ValidateCoordinates(latitude, longitude); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	c, err := entities.ParseFacilityCategory(category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	result, err := s.locator.FindNearby(ctx, latitude, longitude, c)
	if err != nil {
		s.logger.Error("Facility lookup failed", zap.String("category", category), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCapabilityCallFailed, err)
	}
	if result.Places == nil {
		result.Places = []entities.Place{}
	}
	return result, nil
}
