package services

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64 // meters
		tolerance              float64
	}{
		{"same point", 52.52, 13.405, 52.52, 13.405, 0, 0.001},
		{"berlin to hamburg", 52.52, 13.405, 53.5511, 9.9937, 255_000, 3_000},
		{"equator degree", 0, 0, 0, 1, 111_195, 200},
		{"antipodal", 0, 0, 0, 180, 20_015_000, 10_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineDistance(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Fatalf("distance = %.0f m, want %.0f ± %.0f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := haversineDistance(48.8566, 2.3522, 40.7128, -74.006)
	b := haversineDistance(40.7128, -74.006, 48.8566, 2.3522)
	if math.Abs(a-b) > 0.001 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}
