package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/rezkam/jobq/internal/domain"
)

// LocationStore persists deduplicated location rows. The postgres store
// implements it; tests substitute a mock.
type LocationStore interface {
	// UpsertLocation inserts a locations row keyed by key, returning the
	// existing row on conflict.
	UpsertLocation(ctx context.Context, key string, lat, lon float64) (*domain.Location, error)
}

type locationPayload struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// LocationResult is the recorded outcome of a "location.upsert" job.
type LocationResult struct {
	LocationID  int64   `json:"locationId"`
	LocationKey string  `json:"locationKey"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// NewLocationUpsertHandler returns the built-in "location.upsert" handler.
// It validates coordinate ranges, rounds to 3 decimals with negative-zero
// normalization, and upserts the row keyed by "<lat>,<lon>".
func NewLocationUpsertHandler(store LocationStore) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var p locationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: payload is not valid JSON: %v", domain.ErrInvalidInput, err)
		}
		if p.Lat == nil || p.Lon == nil {
			return nil, fmt.Errorf("%w: lat and lon are required", domain.ErrInvalidInput)
		}
		if *p.Lat < -90 || *p.Lat > 90 {
			return nil, fmt.Errorf("%w: lat must be in [-90, 90]", domain.ErrInvalidInput)
		}
		if *p.Lon < -180 || *p.Lon > 180 {
			return nil, fmt.Errorf("%w: lon must be in [-180, 180]", domain.ErrInvalidInput)
		}

		lat := roundCoordinate(*p.Lat)
		lon := roundCoordinate(*p.Lon)
		key := LocationKey(lat, lon)

		loc, err := store.UpsertLocation(ctx, key, lat, lon)
		if err != nil {
			return nil, fmt.Errorf("upserting location %s: %w", key, err)
		}

		return LocationResult{
			LocationID:  loc.ID,
			LocationKey: loc.Key,
			Lat:         lat,
			Lon:         lon,
		}, nil
	}
}

// roundCoordinate rounds to 3 decimals and normalizes -0 to 0 so that values
// straddling zero map to one key with a stable sign.
func roundCoordinate(v float64) float64 {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		return 0
	}
	return r
}

// LocationKey renders the dedupe key with fixed 3-decimal precision,
// e.g. "43.255,-79.871".
func LocationKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 3, 64) + "," + strconv.FormatFloat(lon, 'f', 3, 64)
}
