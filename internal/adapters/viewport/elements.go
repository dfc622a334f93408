package viewport

import (
	"slices"

	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/ports"
)

// Marker is a point icon on the host. It implements ports.MarkerRenderer.
type Marker struct {
	host      *Host
	opts      domain.MarkerOptions
	position  *domain.GeoPoint
	visible   bool
	destroyed bool
}

var _ ports.MarkerRenderer = (*Marker)(nil)

func (m *Marker) SetPosition(p domain.GeoPoint) {
	m.position = &p
	m.host.markDirty()
}

func (m *Marker) Position() *domain.GeoPoint {
	if m.position == nil {
		return nil
	}
	p := *m.position
	return &p
}

func (m *Marker) SetVisible(visible bool) {
	if m.visible == visible {
		return
	}
	m.visible = visible
	m.host.markDirty()
}

func (m *Marker) Visible() bool { return m.visible }

func (m *Marker) Destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	m.host.markers = slices.DeleteFunc(m.host.markers, func(x *Marker) bool { return x == m })
	m.host.markDirty()
}

// RectRegion is an absolutely positioned element inside a pane. It
// implements ports.ShapeRenderer.
type RectRegion struct {
	host    *Host
	classes []string
	rect    *domain.PixelRect
	pane    domain.Pane
	mounted bool
}

var _ ports.ShapeRenderer = (*RectRegion)(nil)

func (r *RectRegion) AddClass(name string) {
	if r.HasClass(name) {
		return
	}
	r.classes = append(r.classes, name)
	r.host.markDirty()
}

func (r *RectRegion) RemoveClass(name string) {
	i := slices.Index(r.classes, name)
	if i < 0 {
		return
	}
	r.classes = slices.Delete(r.classes, i, i+1)
	r.host.markDirty()
}

func (r *RectRegion) HasClass(name string) bool {
	return slices.Contains(r.classes, name)
}

// Classes returns a copy of the class list.
func (r *RectRegion) Classes() []string {
	return slices.Clone(r.classes)
}

func (r *RectRegion) SetPixelGeometry(rect domain.PixelRect) {
	r.rect = &rect
	r.host.markDirty()
}

// Rect returns the pixel geometry, nil if never set.
func (r *RectRegion) Rect() *domain.PixelRect {
	if r.rect == nil {
		return nil
	}
	rect := *r.rect
	return &rect
}

func (r *RectRegion) Detach() {
	if !r.mounted {
		return
	}
	r.host.panes[r.pane] = slices.DeleteFunc(r.host.panes[r.pane], func(x *RectRegion) bool { return x == r })
	r.mounted = false
	r.host.markDirty()
}

func (r *RectRegion) state() domain.ElementState {
	return domain.ElementState{
		Pane:    r.pane,
		Classes: r.Classes(),
		Rect:    r.Rect(),
		Mounted: r.mounted,
	}
}
