package overlay_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/overlay"
)

func TestDistanceToAngle(t *testing.T) {
	tests := []struct {
		name       string
		lat        float64
		meters     float64
		dLat, dLon float64
	}{
		{"equator 1km", 0, 1000, 0.009, 0.009},
		{"zero radius", 43.26, 0, 0, 0},
		{"60 degrees doubles longitude", 60, 1000, 0.009, 0.018},
		{"southern hemisphere", -60, 2000, 0.018, 0.036},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dLat, dLon := overlay.DistanceToAngle(tt.lat, tt.meters)
			assert.InDelta(t, tt.dLat, dLat, 1e-12)
			assert.InDelta(t, tt.dLon, dLon, 1e-12)
		})
	}
}

func TestGeoBounds_CenteredAndSymmetric(t *testing.T) {
	for lat := -84.5; lat < 85; lat += 13 {
		for _, acc := range []float64{0, 1, 35, 1000, 25000} {
			in := domain.Coordinates{Latitude: lat, Longitude: lat / 2, Accuracy: acc}
			g := overlay.NewGeoBounds(in)

			assert.Equal(t, in.Point(), g.Center)

			wantLat := acc / 1e3 * 0.009
			wantLon := wantLat / math.Cos(lat*math.Pi/180)
			assert.InDelta(t, wantLat, g.HalfLat, 1e-12)
			assert.InDelta(t, wantLon, g.HalfLon, 1e-9)

			b := g.Bounds()
			assert.InDelta(t, g.Center.Lat-b.MinLat, b.MaxLat-g.Center.Lat, 1e-9)
			assert.InDelta(t, g.Center.Lon-b.MinLon, b.MaxLon-g.Center.Lon, 1e-9)
			assert.Equal(t, b.SouthWest(), g.SouthWest())
			assert.Equal(t, b.NorthEast(), g.NorthEast())
		}
	}
}
