package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/overlay"
	"github.com/samirrijal/mylocation/internal/core/ports"
	"github.com/samirrijal/mylocation/internal/pkg/metrics"
	"github.com/samirrijal/mylocation/internal/pkg/telemetry"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session request")
	ErrSessionLimit    = errors.New("session limit reached")
)

// HostFactory builds a scene host for v. onChange receives every frame the
// host emits and runs on the host's loop.
type HostFactory func(v domain.Viewport, onChange func(domain.Frame)) (ports.SceneHost, error)

// LatestFixer looks up the most recent fix of a device.
type LatestFixer interface {
	Latest(ctx context.Context, deviceID string) (*domain.Fix, error)
}

// SessionDefaults apply to sessions created without explicit options.
type SessionDefaults struct {
	Viewport    domain.Viewport
	Overlay     overlay.Options
	MaxSessions int
}

// SessionOptions customise a new session. Nil fields take the defaults.
// Without a viewport, or with CenterOnFix set, the map is centered on the
// device's latest fix when there is one.
type SessionOptions struct {
	Viewport    *domain.Viewport
	Overlay     *overlay.Options
	CenterOnFix bool
}

// session fields other than meta, host and cancel belong to the host loop.
type session struct {
	meta   domain.Session
	host   ports.SceneHost
	cancel context.CancelFunc
	layer  *overlay.LocationOverlay
	pinned bool // hidden on request; fixes keep it hidden
}

// SessionService runs one location overlay per session, each on its own
// host loop, and keeps them in sync with incoming fixes.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*session
	pending  int // creates holding a slot but not yet registered

	newHost  HostFactory
	fixes    LatestFixer
	frames   ports.FramePublisher
	renderer ports.FrameRenderer
	defaults SessionDefaults
	log      *slog.Logger
}

// NewSessionService creates a SessionService. fixes, frames and renderer
// may be nil.
func NewSessionService(
	newHost HostFactory,
	fixes LatestFixer,
	frames ports.FramePublisher,
	renderer ports.FrameRenderer,
	defaults SessionDefaults,
) *SessionService {
	return &SessionService{
		sessions: make(map[string]*session),
		newHost:  newHost,
		fixes:    fixes,
		frames:   frames,
		renderer: renderer,
		defaults: defaults,
		log:      slog.Default().With("component", "sessions"),
	}
}

// Create starts a session following deviceID and waits until its overlay
// is attached.
func (s *SessionService) Create(ctx context.Context, deviceID string, opts SessionOptions) (*domain.Session, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidSession)
	}

	if !s.reserve() {
		return nil, ErrSessionLimit
	}
	registered := false
	defer func() {
		if !registered {
			s.mu.Lock()
			s.pending--
			s.mu.Unlock()
		}
	}()

	latest := s.latestFix(ctx, deviceID)

	v := s.defaults.Viewport
	if opts.Viewport != nil {
		v = *opts.Viewport
	}
	if (opts.Viewport == nil || opts.CenterOnFix) && latest != nil {
		v.Center = latest.Coordinates.Point()
	}

	overlayOpts := s.defaults.Overlay
	if opts.Overlay != nil {
		overlayOpts = *opts.Overlay
	}
	overlayOpts.OnAdded = nil

	id := uuid.NewString()
	host, err := s.newHost(v, func(f domain.Frame) { s.emit(id, f) })
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := host.Run(loopCtx); err != nil {
			s.log.Error("session loop failed", "session", id, "error", err)
		}
	}()

	var (
		sig      *overlay.Signal
		buildErr error
	)
	err = host.Do(ctx, func() {
		var o *overlay.LocationOverlay
		o, buildErr = overlay.New(overlayOpts, nil)
		if buildErr == nil {
			sig = o.Initialize(host)
		}
	})
	if err == nil {
		err = buildErr
	}
	if err != nil {
		cancel()
		if errors.Is(err, overlay.ErrInvalidUsage) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
		return nil, fmt.Errorf("create overlay: %w", err)
	}

	layer, err := sig.Wait(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("attach overlay: %w", err)
	}

	if latest != nil {
		if err := host.Do(ctx, func() { layer.SetCoordinates(latest.Coordinates, false) }); err != nil {
			cancel()
			return nil, fmt.Errorf("seed overlay: %w", err)
		}
	}

	ss := &session{
		meta: domain.Session{
			ID:        id,
			DeviceID:  deviceID,
			CreatedAt: time.Now().UTC(),
		},
		host:   host,
		layer:  layer,
		cancel: cancel,
	}

	s.mu.Lock()
	s.sessions[id] = ss
	s.pending--
	registered = true
	total := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(total))
	s.log.InfoContext(ctx, "session created", "session", id, "device", deviceID, "seeded", latest != nil)

	meta := ss.meta
	return &meta, nil
}

// reserve takes a session slot, counting creates still in flight.
func (s *SessionService) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaults.MaxSessions > 0 && len(s.sessions)+s.pending >= s.defaults.MaxSessions {
		return false
	}
	s.pending++
	return true
}

// Defaults returns the options applied to sessions created without any.
func (s *SessionService) Defaults() SessionDefaults {
	return s.defaults
}

func (s *SessionService) latestFix(ctx context.Context, deviceID string) *domain.Fix {
	if s.fixes == nil {
		return nil
	}
	fix, err := s.fixes.Latest(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.WarnContext(ctx, "latest fix lookup failed", "device", deviceID, "error", err)
		}
		return nil
	}
	return fix
}

// emit runs on a session loop.
func (s *SessionService) emit(id string, f domain.Frame) {
	f.SessionID = id
	metrics.OverlayFrames.WithLabelValues(frameVisibility(f)).Inc()

	if s.frames == nil {
		return
	}
	if err := s.frames.PublishFrame(context.Background(), &f); err != nil {
		s.log.Debug("publish frame failed", "session", id, "error", err)
	}
}

// frameVisibility labels a frame by its accuracy element: none, hidden or
// visible.
func frameVisibility(f domain.Frame) string {
	for _, el := range f.Elements {
		for _, c := range el.Classes {
			if strings.HasSuffix(c, "--hidden") {
				return "hidden"
			}
		}
		return "visible"
	}
	return "none"
}

func (s *SessionService) get(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ss, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ss, nil
}

// do runs fn on the loop of session id.
func (s *SessionService) do(ctx context.Context, id string, fn func(ss *session)) error {
	ss, err := s.get(id)
	if err != nil {
		return err
	}
	if err := ss.host.Do(ctx, func() { fn(ss) }); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return nil
}

// Get returns the status of a session.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.SessionStatus, error) {
	var st domain.SessionStatus
	err := s.do(ctx, id, func(ss *session) {
		st = domain.SessionStatus{
			Session:  ss.meta,
			Phase:    ss.layer.Phase(),
			Hidden:   ss.layer.Hidden(),
			Viewport: ss.host.Viewport(),
		}
		if b, ok := ss.layer.Bounds(); ok {
			center := b.Center
			bounds := b.Bounds()
			st.Center = &center
			st.Accuracy = &bounds
		}
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// List returns all sessions ordered by creation time.
func (s *SessionService) List() []domain.Session {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, ss := range s.sessions {
		out = append(out, ss.meta)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ApplyFix moves every session following fix.DeviceID to the fix. Sessions
// hidden on request stay hidden.
func (s *SessionService) ApplyFix(ctx context.Context, fix *domain.Fix) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanApplyFix)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrDeviceID, fix.DeviceID))

	s.mu.RLock()
	var targets []*session
	for _, ss := range s.sessions {
		if ss.meta.DeviceID == fix.DeviceID {
			targets = append(targets, ss)
		}
	}
	s.mu.RUnlock()

	var errs []error
	for _, ss := range targets {
		err := ss.host.Do(ctx, func() { ss.layer.SetCoordinates(fix.Coordinates, ss.pinned) })
		if err != nil && !errors.Is(err, ports.ErrHostClosed) {
			errs = append(errs, fmt.Errorf("session %s: %w", ss.meta.ID, err))
		}
	}
	return errors.Join(errs...)
}

// ApplyLocally returns a FixPublisher that publishes through next, when
// set, and then hands the fix to apply. It stands in for the fix
// subscriber when this instance cannot consume the fix stream.
func ApplyLocally(next ports.FixPublisher, apply func(ctx context.Context, fix *domain.Fix) error) ports.FixPublisher {
	return ports.FixPublisherFunc(func(ctx context.Context, fix *domain.Fix) error {
		if next != nil {
			if err := next.PublishFix(ctx, fix); err != nil {
				return err
			}
		}
		return apply(ctx, fix)
	})
}

// SetViewport moves the map of a session.
func (s *SessionService) SetViewport(ctx context.Context, id string, v domain.Viewport) (*domain.Frame, error) {
	var (
		f       domain.Frame
		viewErr error
	)
	err := s.do(ctx, id, func(ss *session) {
		if viewErr = ss.host.SetViewport(v); viewErr == nil {
			f = ss.host.Frame()
		}
	})
	if err != nil {
		return nil, err
	}
	if viewErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, viewErr)
	}
	f.SessionID = id
	return &f, nil
}

// SetAccuracy changes the accuracy radius of a session's overlay. It fails
// with overlay.ErrInvalidState before the first fix.
func (s *SessionService) SetAccuracy(ctx context.Context, id string, meters float64) (*domain.Frame, error) {
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return nil, fmt.Errorf("%w: accuracy must be a non-negative number of meters", ErrInvalidSession)
	}

	var accErr error
	f, err := s.mutate(ctx, id, func(ss *session) {
		accErr = ss.layer.SetAccuracy(meters, ss.pinned)
	})
	if err != nil {
		return nil, err
	}
	if accErr != nil {
		return nil, accErr
	}
	return f, nil
}

// Show reveals a session's overlay and redraws it.
func (s *SessionService) Show(ctx context.Context, id string) (*domain.Frame, error) {
	return s.mutate(ctx, id, func(ss *session) {
		ss.pinned = false
		ss.layer.Show(false)
		ss.layer.Draw()
	})
}

// Hide hides a session's overlay until Show or Toggle.
func (s *SessionService) Hide(ctx context.Context, id string) (*domain.Frame, error) {
	return s.mutate(ctx, id, func(ss *session) {
		ss.pinned = true
		ss.layer.Hide(false)
	})
}

// Toggle inverts a session's stored visibility.
func (s *SessionService) Toggle(ctx context.Context, id string) (*domain.Frame, error) {
	return s.mutate(ctx, id, func(ss *session) {
		ss.layer.Toggle(false)
		ss.pinned = ss.layer.Hidden()
		ss.layer.Draw()
	})
}

// mutate applies fn on the session loop and returns the resulting frame.
func (s *SessionService) mutate(ctx context.Context, id string, fn func(ss *session)) (*domain.Frame, error) {
	var f domain.Frame
	err := s.do(ctx, id, func(ss *session) {
		fn(ss)
		f = ss.host.Frame()
	})
	if err != nil {
		return nil, err
	}
	f.SessionID = id
	return &f, nil
}

// Frame returns the current scene of a session.
func (s *SessionService) Frame(ctx context.Context, id string) (*domain.Frame, error) {
	return s.mutate(ctx, id, func(*session) {})
}

// Snapshot renders the current scene of a session as PNG.
func (s *SessionService) Snapshot(ctx context.Context, id string, w io.Writer) error {
	if s.renderer == nil {
		return errors.New("snapshots are not enabled")
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRenderFrame)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrSessionID, id))

	f, err := s.Frame(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { metrics.SnapshotDuration.Observe(time.Since(start).Seconds()) }()
	return s.renderer.Render(*f, w)
}

// Close detaches the overlay and stops the session loop.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	ss, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	total := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	metrics.ActiveSessions.Set(float64(total))

	// Detach queues OnRemove; the empty task runs after it.
	err := ss.host.Do(ctx, ss.layer.Remove)
	if err == nil {
		err = ss.host.Do(ctx, func() {})
	}
	ss.cancel()

	select {
	case <-ss.host.Stopped():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.InfoContext(ctx, "session closed", "session", id)
	if err != nil && !errors.Is(err, ports.ErrHostClosed) {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

// CloseAll closes every session.
func (s *SessionService) CloseAll(ctx context.Context) {
	for _, meta := range s.List() {
		if err := s.Close(ctx, meta.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			s.log.WarnContext(ctx, "close session failed", "session", meta.ID, "error", err)
		}
	}
}

// RunFixApplier feeds fixes from sub into ApplyFix until ctx is done.
func (s *SessionService) RunFixApplier(ctx context.Context, sub ports.FixSubscriber) error {
	return sub.SubscribeFixes(ctx, s.ApplyFix)
}
