package library

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// PlaybackSnapshot is the persisted playback position: the track that was
// playing and the queue around it. An empty TrackRef means nothing to
// restore.
type PlaybackSnapshot struct {
	TrackRef  string   `json:"track_ref"`
	QueueRefs []string `json:"queue_refs"`
}

// SavePlaybackState stores the playback snapshot, replacing any previous
// one.
func (s *Store) SavePlaybackState(snap *PlaybackSnapshot) error {
	queueJSON, err := json.Marshal(snap.QueueRefs)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO playback_state (id, track_ref, queue_json, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			track_ref = excluded.track_ref,
			queue_json = excluded.queue_json,
			updated_at = CURRENT_TIMESTAMP
	`, snap.TrackRef, string(queueJSON))
	if err != nil {
		return fmt.Errorf("failed to save playback state: %w", err)
	}
	return nil
}

// LoadPlaybackState retrieves the playback snapshot, nil when none was ever
// saved.
func (s *Store) LoadPlaybackState() (*PlaybackSnapshot, error) {
	var trackRef string
	var queueJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT COALESCE(track_ref, ''), queue_json
		FROM playback_state WHERE id = 1
	`).Scan(&trackRef, &queueJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load playback state: %w", err)
	}

	snap := &PlaybackSnapshot{TrackRef: trackRef}
	if queueJSON.Valid && queueJSON.String != "" {
		if err := json.Unmarshal([]byte(queueJSON.String), &snap.QueueRefs); err != nil {
			return nil, fmt.Errorf("failed to decode queue: %w", err)
		}
	}
	return snap, nil
}

// ClearPlaybackState drops the playback snapshot.
func (s *Store) ClearPlaybackState() error {
	_, err := s.db.Exec("DELETE FROM playback_state WHERE id = 1")
	if err != nil {
		return fmt.Errorf("failed to clear playback state: %w", err)
	}
	return nil
}
