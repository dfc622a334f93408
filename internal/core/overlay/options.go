package overlay

import "github.com/samirrijal/mylocation/internal/core/domain"

// DefaultAccuracyClassName is the base class of the accuracy element.
const DefaultAccuracyClassName = "gmaps-overlay-mylocation-accuracy"

// Options configures a LocationOverlay. They are fixed at construction.
type Options struct {
	ShowMarker   bool
	ShowAccuracy bool
	// Pane the accuracy element is mounted into. Panes above markerLayer
	// render the accuracy element over markers.
	Pane              domain.Pane
	MarkerIcon        domain.MarkerIcon
	AccuracyClassName string
	// OnAdded is called with the overlay once it is attached to its host.
	OnAdded func(*LocationOverlay)
}

// DefaultOptions shows both the marker and the accuracy element in the
// overlay layer.
func DefaultOptions() Options {
	return Options{
		ShowMarker:        true,
		ShowAccuracy:      true,
		Pane:              domain.PaneOverlayLayer,
		MarkerIcon:        domain.DefaultMarkerIcon,
		AccuracyClassName: DefaultAccuracyClassName,
	}
}

// withDefaults fills empty fields; booleans are taken as given.
func (o Options) withDefaults() Options {
	if o.Pane == "" {
		o.Pane = domain.PaneOverlayLayer
	}
	if o.MarkerIcon == (domain.MarkerIcon{}) {
		o.MarkerIcon = domain.DefaultMarkerIcon
	}
	if o.AccuracyClassName == "" {
		o.AccuracyClassName = DefaultAccuracyClassName
	}
	return o
}

func (o Options) hiddenClass() string {
	return o.AccuracyClassName + "--hidden"
}

func (o Options) paneClass() string {
	return o.AccuracyClassName + "--pane-" + string(o.Pane)
}
