// Package store implements the durable TTL cache backing price series,
// filing snapshots, the ticker identifier map, and screener metadata.
package store

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/screener-cli/internal/model"
)

// EntityType partitions the cache and selects the TTL applied on read.
type EntityType string

const (
	EntityPrices    EntityType = "prices"
	EntityFilings   EntityType = "filings"
	EntityTickerMap EntityType = "ticker_map"
	EntityScreener  EntityType = "screener"
	EntityUniverse  EntityType = "universe"
)

// TTL returns the maximum age before entries of this type read as a miss.
func (e EntityType) TTL() time.Duration {
	switch e {
	case EntityPrices:
		return 24 * time.Hour
	case EntityFilings:
		return 7 * 24 * time.Hour
	case EntityTickerMap:
		return 30 * 24 * time.Hour
	case EntityUniverse:
		return 7 * 24 * time.Hour
	case EntityScreener:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Store is the persistence interface shared by all pipeline components.
// Get returns (nil, nil) both when no entry exists and when the stored
// entry's age exceeds the entity type's TTL; it never errors on a miss.
// Put overwrites unconditionally and resets the age clock.
type Store interface {
	Get(ctx context.Context, entity EntityType, key string) ([]byte, error)
	// GetStale reads an entry regardless of age. Callers use it to fall
	// back to an expired copy when a refresh fails.
	GetStale(ctx context.Context, entity EntityType, key string) ([]byte, error)
	Put(ctx context.Context, entity EntityType, key string, payload []byte) error

	// Screener metadata, replaced wholesale per screener on sync.
	ReplaceScreenerRows(ctx context.Context, screener string, rows []model.ScreenerRow) error
	ScreenerRowsForDate(ctx context.Context, screener, onDate string) ([]model.ScreenerRow, error)

	// Scan run summaries.
	SaveScanSummary(ctx context.Context, summary model.ScanSummary) error

	Migrate(ctx context.Context) error
	Close() error
}

// GetJSON reads and decodes a cached entry. Decode failures are treated as
// a cache miss, never surfaced to the caller.
func GetJSON[T any](ctx context.Context, s Store, entity EntityType, key string) (*T, error) {
	payload, err := s.Get(ctx, entity, key)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		zap.L().Warn("cache: corrupt entry treated as miss",
			zap.String("entity", string(entity)),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, nil
	}
	return &v, nil
}

// GetStaleJSON reads and decodes a cached entry ignoring its age.
func GetStaleJSON[T any](ctx context.Context, s Store, entity EntityType, key string) (*T, error) {
	payload, err := s.GetStale(ctx, entity, key)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		zap.L().Warn("cache: corrupt entry treated as miss",
			zap.String("entity", string(entity)),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, nil
	}
	return &v, nil
}

// PutJSON encodes and stores a cache entry.
func PutJSON[T any](ctx context.Context, s Store, entity EntityType, key string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, entity, key, payload)
}
