package library

import (
	"database/sql"
	"fmt"
	"time"
)

// StorageRecord is the catalogue's memory of one storage.
type StorageRecord struct {
	StorageID     string
	Vendor        string
	Serial        string
	Name          string
	RootURI       string
	TrackCount    int
	LastSeenAt    time.Time
	LastIndexedAt time.Time
}

// TouchStorage records that a storage was seen attached.
func (s *Store) TouchStorage(rec *StorageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO storages (storage_id, vendor, serial, name, root_uri)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(storage_id) DO UPDATE SET
			vendor = excluded.vendor,
			serial = excluded.serial,
			name = excluded.name,
			root_uri = excluded.root_uri,
			last_seen_at = CURRENT_TIMESTAMP
	`, rec.StorageID, rec.Vendor, rec.Serial, rec.Name, rec.RootURI)
	if err != nil {
		return fmt.Errorf("failed to touch storage: %w", err)
	}
	return nil
}

// MarkStorageIndexed records a finished build and its track count.
func (s *Store) MarkStorageIndexed(storageID string, trackCount int) error {
	_, err := s.db.Exec(`
		UPDATE storages
		SET track_count = ?, last_indexed_at = CURRENT_TIMESTAMP
		WHERE storage_id = ?
	`, trackCount, storageID)
	if err != nil {
		return fmt.Errorf("failed to mark storage indexed: %w", err)
	}
	return nil
}

// StorageByID retrieves one storage record, nil when absent.
func (s *Store) StorageByID(storageID string) (*StorageRecord, error) {
	rec := &StorageRecord{}
	var lastIndexed sql.NullTime
	err := s.db.QueryRow(`
		SELECT storage_id, vendor, serial, COALESCE(name, ''),
		       COALESCE(root_uri, ''), COALESCE(track_count, 0),
		       last_seen_at, last_indexed_at
		FROM storages WHERE storage_id = ?
	`, storageID).Scan(
		&rec.StorageID, &rec.Vendor, &rec.Serial, &rec.Name,
		&rec.RootURI, &rec.TrackCount,
		&rec.LastSeenAt, &lastIndexed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get storage: %w", err)
	}
	if lastIndexed.Valid {
		rec.LastIndexedAt = lastIndexed.Time
	}
	return rec, nil
}

// Storages lists every storage the catalogue has seen, most recent first.
func (s *Store) Storages() ([]*StorageRecord, error) {
	rows, err := s.db.Query(`
		SELECT storage_id, vendor, serial, COALESCE(name, ''),
		       COALESCE(root_uri, ''), COALESCE(track_count, 0),
		       last_seen_at, last_indexed_at
		FROM storages ORDER BY last_seen_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list storages: %w", err)
	}
	defer rows.Close()

	var recs []*StorageRecord
	for rows.Next() {
		rec := &StorageRecord{}
		var lastIndexed sql.NullTime
		err := rows.Scan(
			&rec.StorageID, &rec.Vendor, &rec.Serial, &rec.Name,
			&rec.RootURI, &rec.TrackCount,
			&rec.LastSeenAt, &lastIndexed,
		)
		if err != nil {
			return nil, err
		}
		if lastIndexed.Valid {
			rec.LastIndexedAt = lastIndexed.Time
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteStorage forgets one storage record.
func (s *Store) DeleteStorage(storageID string) error {
	_, err := s.db.Exec("DELETE FROM storages WHERE storage_id = ?", storageID)
	if err != nil {
		return fmt.Errorf("failed to delete storage: %w", err)
	}
	return nil
}
