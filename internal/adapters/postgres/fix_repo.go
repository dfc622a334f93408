package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// FixRepo implements ports.FixRepository.
type FixRepo struct {
	db *DB
}

func NewFixRepo(db *DB) *FixRepo {
	return &FixRepo{db: db}
}

func (r *FixRepo) Insert(ctx context.Context, fix *domain.Fix) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO location_fixes (time, device_id, location, accuracy, source)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6)
	`, fix.Time, fix.DeviceID,
		fix.Coordinates.Longitude, fix.Coordinates.Latitude,
		fix.Coordinates.Accuracy, fix.Source)
	return err
}

func (r *FixRepo) Latest(ctx context.Context, deviceID string) (*domain.Fix, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT time, device_id,
			ST_Y(location::geometry) AS lat,
			ST_X(location::geometry) AS lon,
			accuracy, source
		FROM location_fixes
		WHERE device_id = $1
		ORDER BY time DESC
		LIMIT 1
	`, deviceID)

	fix, err := scanFix(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fix, nil
}

func (r *FixRepo) History(ctx context.Context, deviceID string, offset, limit int) ([]domain.Fix, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT time, device_id,
			ST_Y(location::geometry) AS lat,
			ST_X(location::geometry) AS lon,
			accuracy, source
		FROM location_fixes
		WHERE device_id = $1
		ORDER BY time DESC
		OFFSET $2 LIMIT $3
	`, deviceID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fixes := []domain.Fix{}
	for rows.Next() {
		fix, err := scanFix(rows)
		if err != nil {
			return nil, err
		}
		fixes = append(fixes, *fix)
	}
	return fixes, rows.Err()
}

func (r *FixRepo) Count(ctx context.Context, deviceID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM location_fixes WHERE device_id = $1`, deviceID,
	).Scan(&n)
	return n, err
}

func (r *FixRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM location_fixes WHERE time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanFix(row pgx.Row) (*domain.Fix, error) {
	var fix domain.Fix
	if err := row.Scan(
		&fix.Time, &fix.DeviceID,
		&fix.Coordinates.Latitude, &fix.Coordinates.Longitude,
		&fix.Coordinates.Accuracy, &fix.Source,
	); err != nil {
		return nil, err
	}
	return &fix, nil
}
