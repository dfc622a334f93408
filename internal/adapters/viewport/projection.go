package viewport

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

const (
	tileSize = 256

	// halfWorld is half the width of the Web Mercator plane in meters.
	halfWorld = math.Pi * orb.EarthRadius

	// MaxLatitude is the northern edge of the square Web Mercator world.
	MaxLatitude = 85.05112878

	MinZoom = 0
	MaxZoom = 22
)

func worldSize(zoom int) float64 {
	return tileSize * math.Exp2(float64(zoom))
}

// worldPixel returns p in global pixel coordinates at zoom, with (0,0) at
// the north-west corner of the world. Latitudes beyond MaxLatitude land on
// the world's edge.
func worldPixel(p domain.GeoPoint, zoom int) domain.Pixel {
	p.Lat = max(-MaxLatitude, min(MaxLatitude, p.Lat))
	m := project.WGS84.ToMercator(p.Orb())
	size := worldSize(zoom)
	return domain.Pixel{
		X: (m.X() + halfWorld) / (2 * halfWorld) * size,
		Y: (halfWorld - m.Y()) / (2 * halfWorld) * size,
	}
}

func fromWorldPixel(px domain.Pixel, zoom int) domain.GeoPoint {
	size := worldSize(zoom)
	m := orb.Point{
		px.X/size*2*halfWorld - halfWorld,
		halfWorld - px.Y/size*2*halfWorld,
	}
	return domain.GeoPointFromOrb(project.Mercator.ToWGS84(m))
}

// Projection maps coordinates to pixels relative to the top-left corner of
// a viewport.
type Projection struct {
	zoom   int
	origin domain.Pixel
}

func newProjection(v domain.Viewport) Projection {
	c := worldPixel(v.Center, v.Zoom)
	return Projection{
		zoom: v.Zoom,
		origin: domain.Pixel{
			X: c.X - float64(v.Width)/2,
			Y: c.Y - float64(v.Height)/2,
		},
	}
}

// ToPixel implements ports.Projection.
func (p Projection) ToPixel(g domain.GeoPoint) domain.Pixel {
	w := worldPixel(g, p.zoom)
	return domain.Pixel{X: w.X - p.origin.X, Y: w.Y - p.origin.Y}
}

// FromPixel is the inverse of ToPixel.
func (p Projection) FromPixel(px domain.Pixel) domain.GeoPoint {
	return fromWorldPixel(domain.Pixel{X: px.X + p.origin.X, Y: px.Y + p.origin.Y}, p.zoom)
}

// viewportBounds unprojects the corners of v. Viewports crossing the
// antimeridian yield longitudes beyond ±180.
func viewportBounds(v domain.Viewport) domain.Bounds {
	p := newProjection(v)
	sw := p.FromPixel(domain.Pixel{X: 0, Y: float64(v.Height)})
	ne := p.FromPixel(domain.Pixel{X: float64(v.Width), Y: 0})
	return domain.Bounds{MinLat: sw.Lat, MinLon: sw.Lon, MaxLat: ne.Lat, MaxLon: ne.Lon}
}

// TileKey names the z/x/y map tile containing p.
func TileKey(p domain.GeoPoint, zoom int) string {
	t := maptile.At(p.Orb(), maptile.Zoom(zoom))
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Validate checks that v can be rendered.
func Validate(v domain.Viewport) error {
	switch {
	case v.Zoom < MinZoom || v.Zoom > MaxZoom:
		return fmt.Errorf("%w: zoom must be %d-%d, got %d", ErrInvalidViewport, MinZoom, MaxZoom, v.Zoom)
	case v.Width <= 0 || v.Width > 4096 || v.Height <= 0 || v.Height > 4096:
		return fmt.Errorf("%w: size must be 1-4096 px, got %dx%d", ErrInvalidViewport, v.Width, v.Height)
	case math.Abs(v.Center.Lat) > MaxLatitude:
		return fmt.Errorf("%w: center latitude %.6f out of range", ErrInvalidViewport, v.Center.Lat)
	case math.Abs(v.Center.Lon) > 180:
		return fmt.Errorf("%w: center longitude %.6f out of range", ErrInvalidViewport, v.Center.Lon)
	}
	return nil
}
