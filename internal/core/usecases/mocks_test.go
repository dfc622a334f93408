package usecases_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// --- Mock FixRepository ---

type mockFixRepo struct {
	insertFn  func(ctx context.Context, fix *domain.Fix) error
	latestFn  func(ctx context.Context, deviceID string) (*domain.Fix, error)
	historyFn func(ctx context.Context, deviceID string, offset, limit int) ([]domain.Fix, error)
	countFn   func(ctx context.Context, deviceID string) (int, error)
	deleteFn  func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockFixRepo) Insert(ctx context.Context, fix *domain.Fix) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, fix)
	}
	return nil
}

func (m *mockFixRepo) Latest(ctx context.Context, deviceID string) (*domain.Fix, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, deviceID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockFixRepo) History(ctx context.Context, deviceID string, offset, limit int) ([]domain.Fix, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, deviceID, offset, limit)
	}
	return nil, nil
}

func (m *mockFixRepo) Count(ctx context.Context, deviceID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, deviceID)
	}
	return 0, nil
}

func (m *mockFixRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, cutoff)
	}
	return 0, nil
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttl: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttl[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock publishers ---

type mockFixPublisher struct {
	mu        sync.Mutex
	published []domain.Fix
	err       error
}

func (m *mockFixPublisher) PublishFix(ctx context.Context, fix *domain.Fix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, *fix)
	return nil
}

type mockFramePublisher struct {
	mu     sync.Mutex
	frames []domain.Frame
}

func (m *mockFramePublisher) PublishFrame(ctx context.Context, f *domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, *f)
	return nil
}

func (m *mockFramePublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func (m *mockFramePublisher) last() domain.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames[len(m.frames)-1]
}

type mockRenderer struct {
	rendered []domain.Frame
}

func (m *mockRenderer) Render(f domain.Frame, w io.Writer) error {
	m.rendered = append(m.rendered, f)
	_, err := w.Write([]byte("png"))
	return err
}

// --- Mock FixSubscriber ---

type mockSubscriber struct {
	fixes []domain.Fix
}

func (m *mockSubscriber) SubscribeFixes(ctx context.Context, handler func(ctx context.Context, fix *domain.Fix) error) error {
	for i := range m.fixes {
		if err := handler(ctx, &m.fixes[i]); err != nil {
			return err
		}
	}
	return nil
}
