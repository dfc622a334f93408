package ports

import (
	"context"
	"errors"
	"io"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// Layer is a custom overlay the map host drives. The host calls OnAdd once
// after Attach, Draw whenever the viewport or projection changes, and
// OnRemove after Detach.
type Layer interface {
	OnAdd()
	OnRemove()
	Draw()
}

// MapHost is the map surface an overlay attaches to.
type MapHost interface {
	// Attach schedules layer.OnAdd at a time chosen by the host.
	Attach(layer Layer)
	// Detach schedules layer.OnRemove.
	Detach(layer Layer)

	ViewportBounds() domain.Bounds
	Projection() Projection

	CreateMarker(opts domain.MarkerOptions) MarkerRenderer
	CreateRectRegion(className string) ShapeRenderer
	// Mount appends shape to the named pane.
	Mount(pane domain.Pane, shape ShapeRenderer)
}

// Projection converts geographic coordinates to pixels of the current view.
type Projection interface {
	ToPixel(p domain.GeoPoint) domain.Pixel
}

// MarkerRenderer is a point icon positioned in geographic coordinates.
type MarkerRenderer interface {
	SetPosition(p domain.GeoPoint)
	Position() *domain.GeoPoint
	SetVisible(visible bool)
	Visible() bool
	// Destroy removes the marker from the map.
	Destroy()
}

// ShapeRenderer is a rectangular element positioned in pixels.
type ShapeRenderer interface {
	AddClass(name string)
	RemoveClass(name string)
	HasClass(name string) bool
	SetPixelGeometry(r domain.PixelRect)
	// Detach removes the element from its pane.
	Detach()
}

// ErrHostClosed is returned for work sent to a host whose loop has stopped.
var ErrHostClosed = errors.New("map host closed")

// SceneHost is a MapHost that owns an event loop and can report the scene
// it renders. Methods other than Run, Do and Stopped must be called from
// the loop.
type SceneHost interface {
	MapHost
	Run(ctx context.Context) error
	Do(ctx context.Context, fn func()) error
	Stopped() <-chan struct{}
	SetViewport(v domain.Viewport) error
	Viewport() domain.Viewport
	Frame() domain.Frame
}

// FrameRenderer rasterizes a frame.
type FrameRenderer interface {
	Render(f domain.Frame, w io.Writer) error
}
