package domain

import (
	"time"
)

// Coordinates is a single geolocation reading as reported by a device.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"` // meters
}

// Point returns the coordinate without its accuracy.
func (c Coordinates) Point() GeoPoint {
	return GeoPoint{Lat: c.Latitude, Lon: c.Longitude}
}

// Fix is a timestamped location reading for a device.
type Fix struct {
	DeviceID    string      `json:"device_id"`
	Time        time.Time   `json:"time"`
	Coordinates Coordinates `json:"coordinates"`
	Source      string      `json:"source,omitempty"` // http, feeder, ...
}

// Pane is a named, z-ordered rendering layer of the host map.
type Pane string

const (
	PaneMap                Pane = "mapPane"
	PaneOverlayLayer       Pane = "overlayLayer"
	PaneMarkerLayer        Pane = "markerLayer"
	PaneFloatShadow        Pane = "floatShadow" // renders accuracy above markers
	PaneOverlayImage       Pane = "overlayImage"
	PaneOverlayMouseTarget Pane = "overlayMouseTarget"
	PaneFloat              Pane = "floatPane"
)

// Panes lists every pane in z-order, bottom first.
var Panes = []Pane{
	PaneMap,
	PaneOverlayLayer,
	PaneMarkerLayer,
	PaneFloatShadow,
	PaneOverlayImage,
	PaneOverlayMouseTarget,
	PaneFloat,
}

// Valid reports whether p names a known pane.
func (p Pane) Valid() bool {
	for _, known := range Panes {
		if p == known {
			return true
		}
	}
	return false
}

// Pixel is a screen coordinate; y grows downward.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PixelRect is an axis-aligned screen rectangle.
type PixelRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MarkerIcon describes a vector marker symbol.
type MarkerIcon struct {
	Path         string   `json:"path"`
	Anchor       Pixel    `json:"anchor"`
	FillColor    string   `json:"fill_color"`
	FillOpacity  *float64 `json:"fill_opacity,omitempty"` // nil is opaque
	Scale        float64  `json:"scale"`
	StrokeColor  string   `json:"stroke_color"`
	StrokeWeight float64  `json:"stroke_weight"`
}

var opaque = 1.0

// DefaultMarkerIcon is a 15px blue dot with a white outline.
var DefaultMarkerIcon = MarkerIcon{
	Path:         "M 10, 10 m -7.5, 0 a 7.5,7.5 0 .1,0 15,0 a 7.5,7.5 0 .1,0 -15,0",
	Anchor:       Pixel{X: 10, Y: 10},
	FillColor:    "#4285f4",
	FillOpacity:  &opaque,
	Scale:        0.9,
	StrokeColor:  "#ffffff",
	StrokeWeight: 1,
}

// MarkerOptions configures a marker created by the map host.
type MarkerOptions struct {
	Position  *GeoPoint
	Visible   bool
	Clickable bool
	Draggable bool
	ZIndex    int
	Icon      MarkerIcon
}

// Viewport is the visible part of a map.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   int      `json:"zoom"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
}

// MarkerState is the rendered state of a marker.
type MarkerState struct {
	Position *GeoPoint  `json:"position,omitempty"`
	Pixel    *Pixel     `json:"pixel,omitempty"`
	Visible  bool       `json:"visible"`
	Icon     MarkerIcon `json:"icon"`
	Tile     string     `json:"tile,omitempty"`
}

// ElementState is the rendered state of a pixel-positioned element.
type ElementState struct {
	Pane    Pane       `json:"pane"`
	Classes []string   `json:"classes"`
	Rect    *PixelRect `json:"rect,omitempty"`
	Mounted bool       `json:"mounted"`
}

// Frame is a snapshot of a map scene.
type Frame struct {
	SessionID string         `json:"session_id,omitempty"`
	Seq       uint64         `json:"seq"`
	Time      time.Time      `json:"time"`
	Viewport  Viewport       `json:"viewport"`
	Bounds    Bounds         `json:"bounds"`
	Markers   []MarkerState  `json:"markers"`
	Elements  []ElementState `json:"elements"`
}

// Session is an overlay bound to a viewport that follows one device.
type Session struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStatus describes a session and the overlay it drives.
type SessionStatus struct {
	Session
	Phase    string    `json:"phase"`
	Hidden   bool      `json:"hidden"`
	Center   *GeoPoint `json:"center,omitempty"`
	Accuracy *Bounds   `json:"accuracy_bounds,omitempty"`
	Viewport Viewport  `json:"viewport"`
}
