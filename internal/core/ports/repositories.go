package ports

import (
	"context"
	"time"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// FixRepository persists location fixes.
type FixRepository interface {
	Insert(ctx context.Context, fix *domain.Fix) error
	Latest(ctx context.Context, deviceID string) (*domain.Fix, error)
	// History returns fixes newest first, skipping offset of them.
	History(ctx context.Context, deviceID string, offset, limit int) ([]domain.Fix, error)
	Count(ctx context.Context, deviceID string) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
