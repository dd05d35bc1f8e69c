package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MedicineDetails is the structured result of analysing a medicine photo.
type MedicineDetails struct {
	Name            string   `json:"name"`
	GenericName     *string  `json:"genericName,omitempty"`
	Purpose         string   `json:"purpose"`
	Dosage          string   `json:"dosage,omitempty"`
	SideEffects     []string `json:"sideEffects"`
	Warnings        []string `json:"warnings"`
	Manufacturer    *string  `json:"manufacturer,omitempty"`
	ExpiryDate      *string  `json:"expiryDate,omitempty"`
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`
}

// Validate enforces the schema-required fields. A nil slice means the field
// was absent from the model output, which is not the same as an empty list.
func (m *MedicineDetails) Validate() error {
	if m == nil {
		return errors.New("medicine details are empty")
	}
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(m.Purpose) == "" {
		return errors.New("purpose is required")
	}
	if m.SideEffects == nil {
		return errors.New("sideEffects is required")
	}
	if m.Warnings == nil {
		return errors.New("warnings is required")
	}
	if m.ConfidenceScore != nil && (*m.ConfidenceScore < 0 || *m.ConfidenceScore > 1) {
		return fmt.Errorf("confidenceScore must be between 0 and 1, got %f", *m.ConfidenceScore)
	}
	return nil
}

// ScanResult wraps a successful analysis so the caller can keep its own history.
type ScanResult struct {
	ID        string          `json:"id"`
	ScannedAt time.Time       `json:"scanned_at"`
	Details   MedicineDetails `json:"details"`
}
