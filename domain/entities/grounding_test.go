package entities

import (
	"math"
	"testing"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		wantErr  bool
	}{
		{"jakarta", -6.2, 106.8, false},
		{"poles and antimeridian", 90, -180, false},
		{"latitude too high", 90.1, 0, true},
		{"longitude too low", 0, -180.5, true},
		{"nan latitude", math.NaN(), 0, true},
		{"nan longitude", 0, math.NaN(), true},
		{"infinite latitude", math.Inf(-1), 0, true},
		{"infinite longitude", 0, math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateCoordinates(tt.lat, tt.lng); (err != nil) != tt.wantErr {
				t.Errorf("ValidateCoordinates() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
