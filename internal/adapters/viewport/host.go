// Package viewport is a headless map host. It keeps a viewport, a Web
// Mercator projection, the standard panes and the elements overlays create,
// and runs every overlay callback on a single event loop goroutine.
package viewport

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/ports"
)

var (
	ErrInvalidViewport = errors.New("viewport: invalid viewport")
	ErrUnknownPane     = errors.New("viewport: unknown pane")
	ErrClosed          = ports.ErrHostClosed
)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithOnChange registers fn to receive a frame after every loop task that
// changed the scene. fn runs on the loop goroutine.
func WithOnChange(fn func(domain.Frame)) Option {
	return func(h *Host) { h.onChange = fn }
}

// Host implements ports.MapHost.
//
// Fields below the queue are owned by the loop goroutine. Methods of the
// ports.MapHost interface, SetViewport and Frame must only be called from
// the loop, that is from inside a function passed to Do.
type Host struct {
	log      *slog.Logger
	onChange func(domain.Frame)

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	running bool

	view    domain.Viewport
	layers  []ports.Layer
	markers []*Marker
	panes   map[domain.Pane][]*RectRegion
	dirty   bool
	seq     uint64
}

var _ ports.SceneHost = (*Host)(nil)

// New creates a host showing v. Call Run to start its loop.
func New(v domain.Viewport, opts ...Option) (*Host, error) {
	if err := Validate(v); err != nil {
		return nil, err
	}

	h := &Host{
		log:     slog.Default(),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		view:    v,
		panes:   make(map[domain.Pane][]*RectRegion, len(domain.Panes)),
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Run processes queued tasks until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return errors.New("viewport: loop already running")
	}
	h.running = true
	h.mu.Unlock()

	defer close(h.stopped)

	for {
		for {
			task, ok := h.next()
			if !ok {
				break
			}
			task()
			h.flushChange()
		}

		select {
		case <-ctx.Done():
			h.log.Debug("viewport loop stopped", "reason", ctx.Err())
			return nil
		case <-h.wake:
		}
	}
}

func (h *Host) next() (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return nil, false
	}
	task := h.queue[0]
	h.queue[0] = nil
	h.queue = h.queue[1:]
	return task, true
}

// post queues fn for a later loop iteration without waiting.
func (h *Host) post(fn func()) {
	h.mu.Lock()
	h.queue = append(h.queue, fn)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it. It must not be called from the
// loop itself.
func (h *Host) Do(ctx context.Context, fn func()) error {
	select {
	case <-h.stopped:
		return ErrClosed
	default:
	}

	done := make(chan struct{})
	h.post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-h.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped is closed when the loop exits.
func (h *Host) Stopped() <-chan struct{} {
	return h.stopped
}

// Attach queues layer.OnAdd followed by a first Draw.
func (h *Host) Attach(layer ports.Layer) {
	h.post(func() {
		if slices.Contains(h.layers, layer) {
			return
		}
		layer.OnAdd()
		h.layers = append(h.layers, layer)
		layer.Draw()
		h.markDirty()
	})
}

// Detach queues layer.OnRemove.
func (h *Host) Detach(layer ports.Layer) {
	h.post(func() {
		i := slices.Index(h.layers, layer)
		if i < 0 {
			return
		}
		h.layers = slices.Delete(h.layers, i, i+1)
		layer.OnRemove()
		h.markDirty()
	})
}

// Layers reports how many layers are attached.
func (h *Host) Layers() int {
	return len(h.layers)
}

func (h *Host) ViewportBounds() domain.Bounds {
	return viewportBounds(h.view)
}

func (h *Host) Projection() ports.Projection {
	return newProjection(h.view)
}

func (h *Host) CreateMarker(opts domain.MarkerOptions) ports.MarkerRenderer {
	m := &Marker{
		host:    h,
		opts:    opts,
		visible: opts.Visible,
	}
	if opts.Position != nil {
		p := *opts.Position
		m.position = &p
	}
	h.markers = append(h.markers, m)
	h.markDirty()
	return m
}

func (h *Host) CreateRectRegion(className string) ports.ShapeRenderer {
	return &RectRegion{host: h, classes: []string{className}}
}

// Mount appends shape to pane. Shapes from other hosts and unknown panes
// are ignored.
func (h *Host) Mount(pane domain.Pane, shape ports.ShapeRenderer) {
	r, ok := shape.(*RectRegion)
	if !ok || r.host != h {
		h.log.Warn("mount: foreign element ignored", "pane", pane)
		return
	}
	if !pane.Valid() {
		h.log.Warn("mount failed", "pane", pane, "error", ErrUnknownPane)
		return
	}
	if r.mounted {
		r.Detach()
	}
	r.pane = pane
	r.mounted = true
	h.panes[pane] = append(h.panes[pane], r)
	h.markDirty()
}

// Viewport returns the current view.
func (h *Host) Viewport() domain.Viewport {
	return h.view
}

// SetViewport moves the view and redraws every attached layer.
func (h *Host) SetViewport(v domain.Viewport) error {
	if err := Validate(v); err != nil {
		return err
	}
	h.view = v
	h.markDirty()
	for _, l := range h.layers {
		l.Draw()
	}
	return nil
}

// Frame snapshots the scene.
func (h *Host) Frame() domain.Frame {
	proj := newProjection(h.view)

	f := domain.Frame{
		Seq:      h.seq,
		Time:     time.Now().UTC(),
		Viewport: h.view,
		Bounds:   viewportBounds(h.view),
		Markers:  make([]domain.MarkerState, 0, len(h.markers)),
		Elements: []domain.ElementState{},
	}

	for _, m := range h.markers {
		st := domain.MarkerState{
			Position: m.Position(),
			Visible:  m.visible,
			Icon:     m.opts.Icon,
		}
		if st.Position != nil {
			px := proj.ToPixel(*st.Position)
			st.Pixel = &px
			st.Tile = TileKey(*st.Position, h.view.Zoom)
		}
		f.Markers = append(f.Markers, st)
	}

	for _, pane := range domain.Panes {
		for _, r := range h.panes[pane] {
			f.Elements = append(f.Elements, r.state())
		}
	}
	return f
}

func (h *Host) markDirty() {
	h.dirty = true
}

func (h *Host) flushChange() {
	if !h.dirty {
		return
	}
	h.dirty = false
	h.seq++
	if h.onChange != nil {
		h.onChange(h.Frame())
	}
}

// Factory returns a constructor for hosts sharing opts, each reporting
// frames to its own onChange.
func Factory(opts ...Option) func(domain.Viewport, func(domain.Frame)) (ports.SceneHost, error) {
	return func(v domain.Viewport, onChange func(domain.Frame)) (ports.SceneHost, error) {
		h, err := New(v, append(slices.Clone(opts), WithOnChange(onChange))...)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}
