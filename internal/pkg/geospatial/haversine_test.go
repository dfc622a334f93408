package geospatial

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 43.2627, -2.9253, 43.2627, -2.9253, 0, 1e-9},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 1},
		{"Bilbao to Donostia", 43.2627, -2.9253, 43.3183, -1.9812, 76700, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Haversine = %.1f, want %.1f ± %.1f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestSpeed(t *testing.T) {
	if got := Speed(100, 10); got != 10 {
		t.Errorf("Speed = %v, want 10", got)
	}
	if got := Speed(100, 0); got != 0 {
		t.Errorf("Speed with zero duration = %v, want 0", got)
	}
}
