package ports

import (
	"context"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// FixPublisher publishes accepted fixes to a message broker.
type FixPublisher interface {
	PublishFix(ctx context.Context, fix *domain.Fix) error
}

// FixPublisherFunc adapts a function to FixPublisher.
type FixPublisherFunc func(ctx context.Context, fix *domain.Fix) error

func (f FixPublisherFunc) PublishFix(ctx context.Context, fix *domain.Fix) error {
	return f(ctx, fix)
}

// FramePublisher publishes rendered scene frames of a session.
type FramePublisher interface {
	PublishFrame(ctx context.Context, frame *domain.Frame) error
}

// FixSubscriber delivers fixes from a message broker.
type FixSubscriber interface {
	SubscribeFixes(ctx context.Context, handler func(ctx context.Context, fix *domain.Fix) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
