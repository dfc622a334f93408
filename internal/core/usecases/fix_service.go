package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/ports"
	"github.com/samirrijal/mylocation/internal/pkg/geospatial"
	"github.com/samirrijal/mylocation/internal/pkg/metrics"
	"github.com/samirrijal/mylocation/internal/pkg/telemetry"
)

// ErrInvalidFix is returned for fixes that fail validation.
var ErrInvalidFix = errors.New("invalid fix")

const (
	latestFixTTL     = 3600 // seconds
	maxHistoryLimit  = 500
	defaultHistLimit = 100
)

func latestFixKey(deviceID string) string {
	return "fix:latest:" + deviceID
}

// ValidateFix checks ranges and the device id.
func ValidateFix(fix *domain.Fix) error {
	c := fix.Coordinates
	switch {
	case strings.TrimSpace(fix.DeviceID) == "":
		return fmt.Errorf("%w: device id is required", ErrInvalidFix)
	case math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidFix, c.Latitude)
	case math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180:
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidFix, c.Longitude)
	case math.IsNaN(c.Accuracy) || math.IsInf(c.Accuracy, 0) || c.Accuracy < 0:
		return fmt.Errorf("%w: accuracy must be a non-negative number of meters", ErrInvalidFix)
	}
	return nil
}

// FixService accepts device location fixes.
type FixService struct {
	fixes     ports.FixRepository
	cache     ports.CacheService
	publisher ports.FixPublisher
	log       *slog.Logger
}

// NewFixService creates a new FixService. cache and publisher may be nil.
func NewFixService(
	fixes ports.FixRepository,
	cache ports.CacheService,
	publisher ports.FixPublisher,
) *FixService {
	return &FixService{
		fixes:     fixes,
		cache:     cache,
		publisher: publisher,
		log:       slog.Default().With("component", "fixes"),
	}
}

// Ingest validates, stores, caches and publishes a fix.
func (s *FixService) Ingest(ctx context.Context, fix *domain.Fix) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanIngestFix)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrDeviceID, fix.DeviceID),
		attribute.Float64(telemetry.AttrAccuracy, fix.Coordinates.Accuracy),
	)

	if err := ValidateFix(fix); err != nil {
		metrics.FixesRejected.WithLabelValues("validation").Inc()
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if fix.Time.IsZero() {
		fix.Time = time.Now().UTC()
	}
	if fix.Source == "" {
		fix.Source = "api"
	}

	prev := s.cachedLatest(ctx, fix.DeviceID)

	if err := s.fixes.Insert(ctx, fix); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("insert fix: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(fix); err == nil {
			_ = s.cache.Set(ctx, latestFixKey(fix.DeviceID), data, latestFixTTL)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishFix(ctx, fix); err != nil {
			span.RecordError(err)
			return fmt.Errorf("publish fix: %w", err)
		}
	}

	metrics.FixesIngested.WithLabelValues(fix.Source).Inc()
	metrics.FixAccuracy.Observe(fix.Coordinates.Accuracy)

	if prev != nil {
		d := geospatial.Haversine(
			prev.Coordinates.Latitude, prev.Coordinates.Longitude,
			fix.Coordinates.Latitude, fix.Coordinates.Longitude,
		)
		metrics.FixDisplacement.Observe(d)
		s.log.DebugContext(ctx, "fix ingested",
			"device", fix.DeviceID,
			"displacement_m", d,
			"speed_mps", geospatial.Speed(d, fix.Time.Sub(prev.Time).Seconds()),
		)
	}
	return nil
}

// Latest returns the most recent fix of a device, from cache when possible.
func (s *FixService) Latest(ctx context.Context, deviceID string) (*domain.Fix, error) {
	if fix := s.cachedLatest(ctx, deviceID); fix != nil {
		return fix, nil
	}

	fix, err := s.fixes.Latest(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(fix); err == nil {
			_ = s.cache.Set(ctx, latestFixKey(deviceID), data, latestFixTTL)
		}
	}
	return fix, nil
}

// History returns up to limit fixes of a device, newest first, after
// skipping offset of them.
func (s *FixService) History(ctx context.Context, deviceID string, offset, limit int) ([]domain.Fix, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultHistLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.fixes.History(ctx, deviceID, offset, limit)
}

// Count returns how many fixes are stored for a device.
func (s *FixService) Count(ctx context.Context, deviceID string) (int, error) {
	return s.fixes.Count(ctx, deviceID)
}

func (s *FixService) cachedLatest(ctx context.Context, deviceID string) *domain.Fix {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, latestFixKey(deviceID))
	if err != nil {
		metrics.CacheMisses.WithLabelValues("latest_fix").Inc()
		return nil
	}
	var fix domain.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil
	}
	metrics.CacheHits.WithLabelValues("latest_fix").Inc()
	return &fix
}
