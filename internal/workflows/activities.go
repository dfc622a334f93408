package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/mylocation/internal/core/ports"
	"github.com/samirrijal/mylocation/internal/pkg/metrics"
)

// RetentionActivities holds the activity implementations for the retention
// workflow.
type RetentionActivities struct {
	Fixes ports.FixRepository
}

// PurgeFixes deletes fixes recorded before cutoff.
func (a *RetentionActivities) PurgeFixes(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := a.Fixes.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete fixes before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	metrics.RetentionPurged.Add(float64(n))
	slog.InfoContext(ctx, "fixes purged", "cutoff", cutoff, "deleted", n)
	return n, nil
}
