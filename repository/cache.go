package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stock-analyzer/observability"

	"github.com/jackc/pgx/v5"
)

// GetCachedData retrieves a cached provider response for a symbol and data
// type. A miss or an expired entry returns nil without error.
func (r *Repository) GetCachedData(ctx context.Context, symbol, dataType string) (json.RawMessage, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "api_response_cache")

	var data []byte
	// Let the database handle expiry check to avoid timezone issues
	err := r.db.QueryRow(ctx, `
		SELECT data FROM api_response_cache
		WHERE symbol = $1 AND data_type = $2 AND expires_at > NOW()
	`, symbol, dataType).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "api_response_cache")
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	return json.RawMessage(data), nil
}

// SetCachedData stores a provider response with a TTL
func (r *Repository) SetCachedData(ctx context.Context, symbol, dataType string, data json.RawMessage, ttl time.Duration) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("failed to set cache: %s/%s is not valid JSON", symbol, dataType)
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "api_response_cache")

	_, err := r.db.Exec(ctx, `
		INSERT INTO api_response_cache (symbol, data_type, data, expires_at)
		VALUES ($1, $2, $3, NOW() + $4::interval)
		ON CONFLICT (symbol, data_type)
		DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, created_at = NOW()
	`, symbol, dataType, []byte(data), ttl.String())

	if err != nil {
		metrics.RecordDBError("upsert", "api_response_cache")
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// InvalidateCache removes cached data for a symbol and data type
func (r *Repository) InvalidateCache(ctx context.Context, symbol, dataType string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		DELETE FROM api_response_cache WHERE symbol = $1 AND data_type = $2
	`, symbol, dataType)

	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	return nil
}

// InvalidateAllCacheForSymbol removes all cached data for a symbol
func (r *Repository) InvalidateAllCacheForSymbol(ctx context.Context, symbol string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM api_response_cache WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// CleanExpiredCache removes all expired cache entries
func (r *Repository) CleanExpiredCache(ctx context.Context) (int64, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}
	result, err := r.db.Exec(ctx, `DELETE FROM api_response_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return result.RowsAffected(), nil
}
