package postgres

import (
	"context"
	"fmt"

	"github.com/rezkam/jobq/internal/domain"
)

// UpsertLocation inserts a location row keyed by key. On conflict the
// coordinates are refreshed and the existing row (with its original id) is
// returned, so repeated upserts of the same key stay idempotent.
func (s *Store) UpsertLocation(ctx context.Context, key string, lat, lon float64) (*domain.Location, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO locations (key, lat, lon)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon
		RETURNING id, key, lat, lon, created_at`,
		key, lat, lon,
	)

	var loc domain.Location
	if err := row.Scan(&loc.ID, &loc.Key, &loc.Lat, &loc.Lon, &loc.CreatedAt); err != nil {
		return nil, classify(fmt.Errorf("failed to upsert location %s: %w", key, err))
	}
	loc.CreatedAt = loc.CreatedAt.UTC()
	return &loc, nil
}
