package overlay

import (
	"context"
	"sync"
)

// Signal completes once when an overlay finishes attaching to its host.
//
// Attachment is driven by the host and has no timeout: a Signal whose
// overlay never gets attached stays pending forever. The context passed to
// Wait only bounds how long the caller waits; it does not cancel the attach.
type Signal struct {
	done    chan struct{}
	once    sync.Once
	overlay *LocationOverlay
}

func newSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

func resolvedSignal(o *LocationOverlay) *Signal {
	s := newSignal()
	s.resolve(o)
	return s
}

func (s *Signal) resolve(o *LocationOverlay) {
	s.once.Do(func() {
		s.overlay = o
		close(s.done)
	})
}

// Done is closed once the overlay is attached.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Resolved reports whether the overlay is attached.
func (s *Signal) Resolved() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the overlay is attached or ctx is done.
func (s *Signal) Wait(ctx context.Context) (*LocationOverlay, error) {
	select {
	case <-s.done:
		return s.overlay, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
