package overlay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/overlay"
	"github.com/samirrijal/mylocation/internal/core/ports"
)

// --- Fake map host ---

type fakeMarker struct {
	opts         domain.MarkerOptions
	position     *domain.GeoPoint
	visible      bool
	visibleCalls int
	destroyed    bool
}

func (m *fakeMarker) SetPosition(p domain.GeoPoint) { m.position = &p }
func (m *fakeMarker) Position() *domain.GeoPoint    { return m.position }
func (m *fakeMarker) SetVisible(v bool)             { m.visible = v; m.visibleCalls++ }
func (m *fakeMarker) Visible() bool                 { return m.visible }
func (m *fakeMarker) Destroy()                      { m.destroyed = true }

type fakeShape struct {
	classes       []string
	classOps      int
	rect          *domain.PixelRect
	geometryCalls int
	detached      bool
}

func (s *fakeShape) AddClass(name string) {
	s.classOps++
	if !s.HasClass(name) {
		s.classes = append(s.classes, name)
	}
}

func (s *fakeShape) RemoveClass(name string) {
	s.classOps++
	for i, c := range s.classes {
		if c == name {
			s.classes = append(s.classes[:i], s.classes[i+1:]...)
			return
		}
	}
}

func (s *fakeShape) HasClass(name string) bool {
	for _, c := range s.classes {
		if c == name {
			return true
		}
	}
	return false
}

func (s *fakeShape) SetPixelGeometry(r domain.PixelRect) { s.rect = &r; s.geometryCalls++ }
func (s *fakeShape) Detach()                             { s.detached = true }

// fakeProjection maps degrees linearly to pixels, y growing southwards.
type fakeProjection struct{ scale float64 }

func (p fakeProjection) ToPixel(g domain.GeoPoint) domain.Pixel {
	return domain.Pixel{X: (g.Lon + 180) * p.scale, Y: (90 - g.Lat) * p.scale}
}

type fakeHost struct {
	viewport domain.Bounds
	pending  []ports.Layer
	removing []ports.Layer
	markers  []*fakeMarker
	shapes   []*fakeShape
	mounts   map[domain.Pane][]ports.ShapeRenderer
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		viewport: domain.Bounds{MinLat: -1, MinLon: -1, MaxLat: 1, MaxLon: 1},
		mounts:   make(map[domain.Pane][]ports.ShapeRenderer),
	}
}

func (h *fakeHost) Attach(l ports.Layer)          { h.pending = append(h.pending, l) }
func (h *fakeHost) Detach(l ports.Layer)          { h.removing = append(h.removing, l) }
func (h *fakeHost) ViewportBounds() domain.Bounds { return h.viewport }
func (h *fakeHost) Projection() ports.Projection  { return fakeProjection{scale: 1000} }

func (h *fakeHost) CreateMarker(opts domain.MarkerOptions) ports.MarkerRenderer {
	m := &fakeMarker{opts: opts, position: opts.Position, visible: opts.Visible}
	h.markers = append(h.markers, m)
	return m
}

func (h *fakeHost) CreateRectRegion(className string) ports.ShapeRenderer {
	s := &fakeShape{classes: []string{className}}
	h.shapes = append(h.shapes, s)
	return s
}

func (h *fakeHost) Mount(pane domain.Pane, shape ports.ShapeRenderer) {
	h.mounts[pane] = append(h.mounts[pane], shape)
}

// flush runs the callbacks the host has scheduled, the way a map does on
// its next idle tick.
func (h *fakeHost) flush() {
	pending := h.pending
	h.pending = nil
	for _, l := range pending {
		l.OnAdd()
		l.Draw()
	}
	removing := h.removing
	h.removing = nil
	for _, l := range removing {
		l.OnRemove()
	}
}

const (
	baseClass   = overlay.DefaultAccuracyClassName
	hiddenClass = overlay.DefaultAccuracyClassName + "--hidden"
)

func attached(t *testing.T, opts overlay.Options) (*overlay.LocationOverlay, *fakeHost) {
	t.Helper()
	host := newFakeHost()
	o, err := overlay.New(opts, host)
	require.NoError(t, err)
	host.flush()
	require.True(t, o.Initialized())
	return o, host
}

// --- Construction ---

func TestNew_OnAddedWithoutHost(t *testing.T) {
	opts := overlay.DefaultOptions()
	opts.OnAdded = func(*overlay.LocationOverlay) {}

	o, err := overlay.New(opts, nil)
	assert.Nil(t, o)
	assert.ErrorIs(t, err, overlay.ErrInvalidUsage)
}

func TestNew_UnknownPane(t *testing.T) {
	opts := overlay.DefaultOptions()
	opts.Pane = "basement"

	_, err := overlay.New(opts, newFakeHost())
	assert.ErrorIs(t, err, overlay.ErrInvalidUsage)
}

func TestNew_WithoutHostStaysDetached(t *testing.T) {
	o, err := overlay.New(overlay.DefaultOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, "detached", o.Phase())
	assert.False(t, o.Initialized())
	assert.True(t, o.Hidden())
	assert.Nil(t, o.Marker())
	assert.Nil(t, o.AccuracyElement())
}

func TestNew_AttachIsDeferredToHost(t *testing.T) {
	var added *overlay.LocationOverlay
	calls := 0
	opts := overlay.DefaultOptions()
	opts.OnAdded = func(o *overlay.LocationOverlay) { added = o; calls++ }

	host := newFakeHost()
	o, err := overlay.New(opts, host)
	require.NoError(t, err)

	assert.Equal(t, "attaching", o.Phase())
	assert.False(t, o.Initialized())
	assert.Zero(t, calls)

	host.flush()

	assert.Equal(t, "attached", o.Phase())
	assert.True(t, o.Initialized())
	assert.Equal(t, 1, calls)
	assert.Same(t, o, added)
}

func TestOnAdd_CreatesRenderers(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())

	require.Len(t, host.markers, 1)
	require.Len(t, host.shapes, 1)
	assert.Same(t, host.markers[0], o.Marker())
	assert.Same(t, host.shapes[0], o.AccuracyElement())

	marker := host.markers[0]
	assert.False(t, marker.opts.Visible, "overlay starts hidden")
	assert.Equal(t, domain.DefaultMarkerIcon, marker.opts.Icon)

	shape := host.shapes[0]
	assert.ElementsMatch(t, []string{baseClass, baseClass + "--pane-overlayLayer", hiddenClass}, shape.classes)
	assert.Len(t, host.mounts[domain.PaneOverlayLayer], 1)
}

func TestOnAdd_CustomPaneAndClass(t *testing.T) {
	opts := overlay.DefaultOptions()
	opts.Pane = domain.PaneFloat
	opts.AccuracyClassName = "me"

	_, host := attached(t, opts)

	assert.Len(t, host.mounts[domain.PaneFloat], 1)
	assert.ElementsMatch(t, []string{"me", "me--pane-floatPane", "me--hidden"}, host.shapes[0].classes)
}

func TestOnAdd_UsesCoordinatesSetBeforeAttach(t *testing.T) {
	host := newFakeHost()
	o, err := overlay.New(overlay.DefaultOptions(), host)
	require.NoError(t, err)

	o.SetCoordinates(domain.Coordinates{Latitude: 0.1, Longitude: 0.2, Accuracy: 50}, false)
	assert.False(t, o.Hidden())

	host.flush()

	marker := host.markers[0]
	require.NotNil(t, marker.opts.Position)
	assert.Equal(t, domain.GeoPoint{Lat: 0.1, Lon: 0.2}, *marker.opts.Position)
	assert.True(t, marker.opts.Visible)

	shape := host.shapes[0]
	assert.False(t, shape.HasClass(hiddenClass))
	require.NotNil(t, shape.rect, "host draws after OnAdd")
}

// --- Initialize ---

func TestInitialize_ResolvesOnAttach(t *testing.T) {
	o, err := overlay.New(overlay.DefaultOptions(), nil)
	require.NoError(t, err)

	sig := o.Initialize(nil)
	assert.False(t, sig.Resolved())
	assert.Same(t, sig, o.Initialize(nil), "pending signal is shared")

	host := newFakeHost()
	assert.Same(t, sig, o.Initialize(host))
	host.flush()

	require.True(t, sig.Resolved())
	got, err := sig.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, o, got)
}

func TestInitialize_ReplacesOnAdded(t *testing.T) {
	calls := 0
	opts := overlay.DefaultOptions()
	opts.OnAdded = func(*overlay.LocationOverlay) { calls++ }

	host := newFakeHost()
	o, err := overlay.New(opts, host)
	require.NoError(t, err)

	sig := o.Initialize(nil)
	host.flush()

	assert.True(t, sig.Resolved())
	assert.Zero(t, calls)
}

func TestInitialize_Idempotent(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())

	first := o.Initialize(nil)
	second := o.Initialize(host)
	host.flush()

	assert.True(t, first.Resolved())
	assert.True(t, second.Resolved())
	assert.Len(t, host.markers, 1)
	assert.Len(t, host.shapes, 1)
}

func TestSignal_WaitHonoursContext(t *testing.T) {
	o, err := overlay.New(overlay.DefaultOptions(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = o.Initialize(nil).Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Coordinates ---

func TestSetCoordinates_EquatorScenario(t *testing.T) {
	o, _ := attached(t, overlay.DefaultOptions())

	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 1000}, false)

	g, ok := o.Bounds()
	require.True(t, ok)
	b := g.Bounds()
	assert.InDelta(t, -0.009, b.MinLat, 1e-12)
	assert.InDelta(t, -0.009, b.MinLon, 1e-12)
	assert.InDelta(t, 0.009, b.MaxLat, 1e-12)
	assert.InDelta(t, 0.009, b.MaxLon, 1e-12)
}

func TestSetCoordinates_MovesMarker(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())

	o.SetCoordinates(domain.Coordinates{Latitude: 0.5, Longitude: -0.25, Accuracy: 10}, true)

	marker := host.markers[0]
	require.NotNil(t, marker.position)
	assert.Equal(t, domain.GeoPoint{Lat: 0.5, Lon: -0.25}, *marker.position)
	assert.True(t, o.Hidden(), "keepHidden leaves intent alone")
	assert.Nil(t, host.shapes[0].rect, "keepHidden skips the redraw")
}

func TestSetCoordinates_ShowsAndDraws(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())

	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 1000}, false)

	assert.False(t, o.Hidden())
	assert.True(t, host.markers[0].visible)

	shape := host.shapes[0]
	assert.False(t, shape.HasClass(hiddenClass))
	require.NotNil(t, shape.rect)
	// 0.018° across at 1000 px per degree.
	assert.InDelta(t, (180-0.009)*1000, shape.rect.Left, 1e-6)
	assert.InDelta(t, (90-0.009)*1000, shape.rect.Top, 1e-6)
	assert.InDelta(t, 18, shape.rect.Width, 1e-6)
	assert.InDelta(t, 18, shape.rect.Height, 1e-6)
}

func TestSetAccuracy_BeforeCoordinates(t *testing.T) {
	o, _ := attached(t, overlay.DefaultOptions())

	err := o.SetAccuracy(25, false)
	assert.ErrorIs(t, err, overlay.ErrInvalidState)

	o.SetCoordinates(domain.Coordinates{Latitude: 0.1, Longitude: 0.1, Accuracy: 5}, false)
	assert.NoError(t, o.SetAccuracy(25, false), "usable once coordinates are set")
}

func TestSetAccuracy_KeepsCenter(t *testing.T) {
	o, _ := attached(t, overlay.DefaultOptions())

	in := domain.Coordinates{Latitude: 43.26271, Longitude: -2.92528, Accuracy: 120}
	o.SetCoordinates(in, true)
	require.NoError(t, o.SetAccuracy(3500, true))

	g, _ := o.Bounds()
	assert.Equal(t, in.Point(), g.Center)

	dLat, dLon := overlay.DistanceToAngle(in.Latitude, 3500)
	assert.Equal(t, dLat, g.HalfLat)
	assert.Equal(t, dLon, g.HalfLon)
}

// --- Draw ---

func TestDraw_OutsideThenInsideViewport(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())
	host.viewport = domain.Bounds{MinLat: 10, MinLon: 10, MaxLat: 11, MaxLon: 11}

	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 1000}, false)

	shape := host.shapes[0]
	assert.True(t, shape.HasClass(hiddenClass))
	assert.Zero(t, shape.geometryCalls)
	assert.False(t, host.markers[0].visible)
	assert.False(t, o.Hidden(), "viewport culling does not change intent")

	host.viewport = domain.Bounds{MinLat: -1, MinLon: -1, MaxLat: 1, MaxLon: 1}
	o.Draw()

	assert.False(t, shape.HasClass(hiddenClass))
	assert.True(t, host.markers[0].visible)
	assert.Equal(t, 1, shape.geometryCalls)
	require.NotNil(t, shape.rect)
	assert.InDelta(t, 18, shape.rect.Width, 1e-6)
}

func TestDraw_NoopWhenHiddenOrEmpty(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())
	shape := host.shapes[0]

	o.Draw()
	assert.Zero(t, shape.geometryCalls, "no bounds yet")

	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, true)
	o.Draw()
	assert.Zero(t, shape.geometryCalls, "hidden")
}

func TestDraw_BeforeAttachIsNoop(t *testing.T) {
	o, err := overlay.New(overlay.DefaultOptions(), nil)
	require.NoError(t, err)

	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, false)
	o.Draw()
	o.Hide(false)
	o.Show(false)
	assert.False(t, o.Hidden())
	o.Toggle(false)
	assert.True(t, o.Hidden())

	assert.Nil(t, o.Marker())
	assert.Nil(t, o.AccuracyElement())
}

// --- Show / Hide / Toggle ---

func TestShowHide_AccuracyDisabled(t *testing.T) {
	opts := overlay.DefaultOptions()
	opts.ShowAccuracy = false
	o, host := attached(t, opts)
	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, true)

	shape := host.shapes[0]
	marker := host.markers[0]
	opsBefore := shape.classOps
	callsBefore := marker.visibleCalls

	o.Hide(false)
	assert.False(t, marker.visible)
	o.Show(false)
	assert.True(t, marker.visible)

	assert.Equal(t, opsBefore, shape.classOps, "accuracy class never toggled")
	assert.Equal(t, callsBefore+2, marker.visibleCalls)
}

func TestShowHide_MarkerDisabled(t *testing.T) {
	opts := overlay.DefaultOptions()
	opts.ShowMarker = false
	o, host := attached(t, opts)
	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, true)

	o.Show(false)
	assert.False(t, host.shapes[0].HasClass(hiddenClass))
	assert.Zero(t, host.markers[0].visibleCalls)
	assert.False(t, host.markers[0].visible)
}

func TestShowHide_SkipStateUpdate(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())
	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, false)

	o.Hide(true)
	assert.False(t, o.Hidden())
	assert.True(t, host.shapes[0].HasClass(hiddenClass))

	o.Show(false)
	o.Hide(false)
	assert.True(t, o.Hidden())
}

func TestShow_WithoutBoundsOnlyRecordsIntent(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())

	o.Show(false)

	assert.False(t, o.Hidden())
	assert.True(t, host.shapes[0].HasClass(hiddenClass))
	assert.Zero(t, host.markers[0].visibleCalls)
}

func TestToggle_InvertsIntent(t *testing.T) {
	o, _ := attached(t, overlay.DefaultOptions())
	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, true)

	require.True(t, o.Hidden())
	o.Toggle(false)
	assert.False(t, o.Hidden())
	o.Toggle(false)
	assert.True(t, o.Hidden())
}

func TestToggle_ReadsIntentNotRenderers(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())
	host.viewport = domain.Bounds{MinLat: 10, MinLon: 10, MaxLat: 11, MaxLon: 11}
	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, false)

	// Culled by Draw: renderers hidden, intent still visible.
	require.True(t, host.shapes[0].HasClass(hiddenClass))
	require.False(t, o.Hidden())

	// Toggle goes by intent, so it hides what is already hidden.
	o.Toggle(false)
	assert.True(t, o.Hidden())
	assert.True(t, host.shapes[0].HasClass(hiddenClass))
}

func TestToggleTo(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())
	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, true)

	o.ToggleTo(true, false)
	assert.False(t, o.Hidden())
	assert.True(t, host.markers[0].visible)

	o.ToggleTo(false, false)
	assert.True(t, o.Hidden())
	assert.False(t, host.markers[0].visible)
}

// --- Teardown ---

func TestRemove_TearsDownRenderers(t *testing.T) {
	o, host := attached(t, overlay.DefaultOptions())
	o.SetCoordinates(domain.Coordinates{Latitude: 0, Longitude: 0, Accuracy: 10}, false)

	o.Remove()
	host.flush()

	assert.Equal(t, "removed", o.Phase())
	assert.True(t, host.markers[0].destroyed)
	assert.True(t, host.shapes[0].detached)
	assert.Nil(t, o.Marker())
	assert.Nil(t, o.AccuracyElement())
	assert.True(t, o.Initialized(), "initialized never reverts")

	geometryCalls := host.shapes[0].geometryCalls
	o.SetCoordinates(domain.Coordinates{Latitude: 0.2, Longitude: 0.2, Accuracy: 10}, false)
	o.Hide(false)
	o.Draw()
	assert.Equal(t, geometryCalls, host.shapes[0].geometryCalls)
}
