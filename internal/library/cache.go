package library

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/franz/media-dock/internal/log"
)

// CachedMeta looks up a cached extraction result. The key binds ref, size
// and mtime, so a rewritten file misses and gets re-extracted.
func (s *Store) CachedMeta(cacheKey string) (*TrackMeta, bool) {
	var payload string
	err := s.db.QueryRow(
		"SELECT payload_json FROM extract_cache WHERE cache_key = ?", cacheKey,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		logger := log.WithComponent("library")
		logger.Warn().Err(err).Msg("extract cache lookup failed")
		return nil, false
	}

	meta := &TrackMeta{}
	if err := json.Unmarshal([]byte(payload), meta); err != nil {
		return nil, false
	}

	s.incrementCacheHit(cacheKey)
	return meta, true
}

// StoreMeta caches one extraction result. A failed write is logged, never
// fatal.
func (s *Store) StoreMeta(cacheKey, trackRef string, meta *TrackMeta) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return
	}

	_, err = s.db.Exec(`
		INSERT INTO extract_cache (cache_key, track_ref, payload_json)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			track_ref = excluded.track_ref,
			payload_json = excluded.payload_json,
			cached_at = CURRENT_TIMESTAMP
	`, cacheKey, trackRef, string(payload))
	if err != nil {
		logger := log.WithComponent("library")
		logger.Warn().Err(err).Msg("failed to cache extraction result")
	}
}

// CacheStats reports cache size and accumulated hits.
func (s *Store) CacheStats() (entries int, hits int, err error) {
	err = s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM extract_cache",
	).Scan(&entries, &hits)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return entries, hits, nil
}

func (s *Store) incrementCacheHit(cacheKey string) {
	_, err := s.db.Exec(
		"UPDATE extract_cache SET hit_count = hit_count + 1 WHERE cache_key = ?", cacheKey,
	)
	if err != nil {
		logger := log.WithComponent("library")
		logger.Debug().Err(err).Msg("failed to bump cache hit count")
	}
}
