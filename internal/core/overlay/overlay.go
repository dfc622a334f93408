// Package overlay implements the "my location" map overlay: a position
// marker plus an accuracy region that follows a geolocation fix and stays in
// sync with the host map's viewport.
//
// A LocationOverlay is not safe for concurrent use. All of its methods,
// including the OnAdd/Draw/OnRemove callbacks, are expected to run on the
// host map's event loop.
package overlay

import (
	"fmt"

	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/ports"
)

type phase int

const (
	phaseDetached phase = iota
	phaseAttaching
	phaseAttached
	phaseRemoved
)

func (p phase) String() string {
	switch p {
	case phaseDetached:
		return "detached"
	case phaseAttaching:
		return "attaching"
	case phaseAttached:
		return "attached"
	case phaseRemoved:
		return "removed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// state is the mutable part of an overlay. hidden is the caller's
// visibility intent; Draw toggles the renderers without touching it.
type state struct {
	bounds         *GeoBounds
	initialized    bool
	hidden         bool
	phase          phase
	initialization *Signal
}

// refs are the renderer handles, owned by the overlay between OnAdd and
// OnRemove.
type refs struct {
	marker   ports.MarkerRenderer
	accuracy ports.ShapeRenderer
}

// LocationOverlay draws a location marker and its accuracy region on a map
// host.
type LocationOverlay struct {
	opts  Options
	host  ports.MapHost
	state state
	ref   refs
}

var _ ports.Layer = (*LocationOverlay)(nil)

// New creates an overlay. When host is non-nil the overlay immediately asks
// it to attach; OnAdd then runs whenever the host decides.
//
// Passing OnAdded without a host fails with ErrInvalidUsage, as does an
// unknown pane.
func New(opts Options, host ports.MapHost) (*LocationOverlay, error) {
	if host == nil && opts.OnAdded != nil {
		return nil, fmt.Errorf("%w: a map host is required when using the OnAdded callback", ErrInvalidUsage)
	}

	opts = opts.withDefaults()
	if !opts.Pane.Valid() {
		return nil, fmt.Errorf("%w: unknown pane %q", ErrInvalidUsage, opts.Pane)
	}

	o := &LocationOverlay{
		opts:  opts,
		state: state{hidden: true},
	}

	if host != nil {
		o.setHost(host)
	}
	return o, nil
}

// setHost requests attachment to host. Only the first host is used;
// attaching again after removal is not supported.
func (o *LocationOverlay) setHost(host ports.MapHost) {
	if o.state.phase != phaseDetached {
		return
	}
	o.host = host
	o.state.phase = phaseAttaching
	host.Attach(o)
}

// Initialize returns a signal that completes once the overlay is attached.
// If host is non-nil it also requests attachment.
//
// The first call made before attachment replaces the OnAdded callback with
// the signal; later calls return the same signal. Once attached, every call
// returns an already completed signal.
func (o *LocationOverlay) Initialize(host ports.MapHost) *Signal {
	if o.state.initialized {
		return resolvedSignal(o)
	}

	if o.state.initialization == nil {
		sig := newSignal()
		o.state.initialization = sig
		o.opts.OnAdded = sig.resolve
	}

	if host != nil {
		o.setHost(host)
	}
	return o.state.initialization
}

// Remove asks the host to detach the overlay. OnRemove follows.
func (o *LocationOverlay) Remove() {
	if o.host == nil || o.state.phase == phaseDetached || o.state.phase == phaseRemoved {
		return
	}
	o.host.Detach(o)
}

// SetCoordinates moves the overlay to c. Unless keepHidden is set, the
// overlay is shown and redrawn right away.
func (o *LocationOverlay) SetCoordinates(c domain.Coordinates, keepHidden bool) {
	bounds := NewGeoBounds(c)
	o.state.bounds = &bounds

	if o.ref.marker != nil {
		o.ref.marker.SetPosition(bounds.Center)
	}

	if !keepHidden {
		o.Show(false)
		o.Draw()
	}
}

// SetAccuracy changes the accuracy radius, in meters, around the current
// center. It fails with ErrInvalidState when no coordinates were set.
func (o *LocationOverlay) SetAccuracy(accuracy float64, keepHidden bool) error {
	if o.state.bounds == nil {
		return fmt.Errorf("%w: coordinates must be set before accuracy", ErrInvalidState)
	}

	center := o.state.bounds.Center
	o.SetCoordinates(domain.Coordinates{
		Latitude:  center.Lat,
		Longitude: center.Lon,
		Accuracy:  accuracy,
	}, keepHidden)
	return nil
}

// OnAdd creates the marker and the accuracy element. Called by the host.
func (o *LocationOverlay) OnAdd() {
	if o.state.phase != phaseAttaching {
		return
	}

	markerOpts := domain.MarkerOptions{
		Visible: o.opts.ShowMarker && !o.state.hidden,
		ZIndex:  0,
		Icon:    o.opts.MarkerIcon,
	}
	if o.state.bounds != nil {
		center := o.state.bounds.Center
		markerOpts.Position = &center
	}
	o.ref.marker = o.host.CreateMarker(markerOpts)

	accuracy := o.host.CreateRectRegion(o.opts.AccuracyClassName)
	accuracy.AddClass(o.opts.paneClass())
	if o.state.hidden {
		accuracy.AddClass(o.opts.hiddenClass())
	}
	o.host.Mount(o.opts.Pane, accuracy)
	o.ref.accuracy = accuracy

	o.state.initialized = true
	o.state.phase = phaseAttached

	if o.opts.OnAdded != nil {
		o.opts.OnAdded(o)
	}
}

// OnRemove destroys the marker and detaches the accuracy element. Called by
// the host; the overlay is unusable afterwards.
func (o *LocationOverlay) OnRemove() {
	if o.ref.marker != nil {
		o.ref.marker.Destroy()
		o.ref.marker = nil
	}
	if o.ref.accuracy != nil {
		o.ref.accuracy.Detach()
		o.ref.accuracy = nil
	}
	o.state.phase = phaseRemoved
}

// Draw fits the accuracy element to the current projection. Outside the
// viewport the renderers are hidden without changing the caller's
// visibility intent.
func (o *LocationOverlay) Draw() {
	if o.state.hidden || o.state.bounds == nil {
		return
	}
	if !o.rendered() {
		return
	}

	bounds := o.state.bounds.Bounds()
	inView := o.host.ViewportBounds().Intersects(bounds)

	o.ToggleTo(inView, true)
	if !inView {
		return
	}

	proj := o.host.Projection()
	sw := proj.ToPixel(bounds.SouthWest())
	ne := proj.ToPixel(bounds.NorthEast())

	o.ref.accuracy.SetPixelGeometry(domain.PixelRect{
		Left:   sw.X,
		Top:    ne.Y,
		Width:  ne.X - sw.X,
		Height: sw.Y - ne.Y,
	})
}

// Show makes the overlay visible. With skipStateUpdate the stored intent is
// left alone and only the renderers change.
func (o *LocationOverlay) Show(skipStateUpdate bool) {
	if !skipStateUpdate {
		o.state.hidden = false
	}

	if !o.rendered() || o.state.bounds == nil {
		return
	}

	if o.opts.ShowAccuracy {
		o.ref.accuracy.RemoveClass(o.opts.hiddenClass())
	}
	if o.opts.ShowMarker {
		o.ref.marker.SetVisible(true)
	}
}

// Hide is the inverse of Show.
func (o *LocationOverlay) Hide(skipStateUpdate bool) {
	if !skipStateUpdate {
		o.state.hidden = true
	}

	if !o.rendered() || o.state.bounds == nil {
		return
	}

	if o.opts.ShowAccuracy {
		o.ref.accuracy.AddClass(o.opts.hiddenClass())
	}
	if o.opts.ShowMarker {
		o.ref.marker.SetVisible(false)
	}
}

// Toggle inverts the stored visibility intent. It does not look at the
// renderers, which Draw may have hidden on its own.
func (o *LocationOverlay) Toggle(skipStateUpdate bool) {
	o.ToggleTo(o.state.hidden, skipStateUpdate)
}

// ToggleTo shows the overlay when visible is true and hides it otherwise.
func (o *LocationOverlay) ToggleTo(visible, skipStateUpdate bool) {
	if visible {
		o.Show(skipStateUpdate)
	} else {
		o.Hide(skipStateUpdate)
	}
}

// rendered reports whether renderer handles exist.
func (o *LocationOverlay) rendered() bool {
	return o.state.initialized && o.ref.marker != nil && o.ref.accuracy != nil
}

// Marker returns the marker handle, nil before OnAdd and after OnRemove.
func (o *LocationOverlay) Marker() ports.MarkerRenderer {
	return o.ref.marker
}

// AccuracyElement returns the accuracy element handle, nil before OnAdd and
// after OnRemove.
func (o *LocationOverlay) AccuracyElement() ports.ShapeRenderer {
	return o.ref.accuracy
}

// Bounds returns the current accuracy region.
func (o *LocationOverlay) Bounds() (GeoBounds, bool) {
	if o.state.bounds == nil {
		return GeoBounds{}, false
	}
	return *o.state.bounds, true
}

func (o *LocationOverlay) Hidden() bool { return o.state.hidden }

func (o *LocationOverlay) Initialized() bool { return o.state.initialized }

// Phase names the attachment state: detached, attaching, attached or removed.
func (o *LocationOverlay) Phase() string { return o.state.phase.String() }

func (o *LocationOverlay) Options() Options { return o.opts }
