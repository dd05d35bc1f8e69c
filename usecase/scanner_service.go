package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

// MaxImageSize bounds the photos accepted for analysis.
const MaxImageSize = 10 << 20

// ScannerService turns medicine photos into structured details
type ScannerService struct {
	vision repositories.MedicineVision
	logger *zap.Logger
}

// NewScannerService creates a new scanner service
func NewScannerService(vision repositories.MedicineVision, logger *zap.Logger) *ScannerService {
	return &ScannerService{vision: vision, logger: logger}
}

// Scan analyses one photo. When mimeType is empty it is sniffed from the
// image bytes. Backend failures wrap domain.ErrCapabilityCallFailed.
func (s *ScannerService) Scan(ctx context.Context, image []byte, mimeType string) (*entities.ScanResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", domain.ErrInvalidInput)
	}
	if len(image) > MaxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, MaxImageSize)
	}

	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %s", domain.ErrInvalidInput, mimeType)
	}

	details, err := s.vision.AnalyzeImage(ctx, image, mimeType)
	if err != nil {
		s.logger.Error("Medicine scan failed", zap.String("mimeType", mimeType), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCapabilityCallFailed, err)
	}
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCapabilityCallFailed, err)
	}

	result := &entities.ScanResult{
		ID:        uuid.New().String(),
		ScannedAt: time.Now(),
		Details:   *details,
	}
	s.logger.Info("Medicine scanned", zap.String("scanID", result.ID), zap.String("name", details.Name))
	return result, nil
}
