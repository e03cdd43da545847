package library

import (
	"database/sql"
	"fmt"
	"time"
)

// Track is one catalogued audio file.
type Track struct {
	ID          int64
	Ref         string
	StorageID   string
	Path        string
	Name        string
	SizeBytes   int64
	MtimeUnix   int64
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Year        int
	TrackNo     int
	TrackTotal  int
	DiscNo      int
	DiscTotal   int
	Format      string
	FromTags    bool
	FirstSeenAt time.Time
	LastUpdate  time.Time
}

const trackColumns = `
	id, track_ref, storage_id, path, COALESCE(name, ''),
	COALESCE(size_bytes, 0), COALESCE(mtime_unix, 0),
	COALESCE(title, ''), COALESCE(artist, ''), COALESCE(album, ''),
	COALESCE(album_artist, ''), COALESCE(genre, ''), COALESCE(year, 0),
	COALESCE(track_no, 0), COALESCE(track_total, 0),
	COALESCE(disc_no, 0), COALESCE(disc_total, 0),
	COALESCE(format, ''), COALESCE(from_tags, 0),
	first_seen_at, last_update_at`

func scanTrack(row interface{ Scan(...any) error }) (*Track, error) {
	t := &Track{}
	err := row.Scan(
		&t.ID, &t.Ref, &t.StorageID, &t.Path, &t.Name,
		&t.SizeBytes, &t.MtimeUnix,
		&t.Title, &t.Artist, &t.Album,
		&t.AlbumArtist, &t.Genre, &t.Year,
		&t.TrackNo, &t.TrackTotal,
		&t.DiscNo, &t.DiscTotal,
		&t.Format, &t.FromTags,
		&t.FirstSeenAt, &t.LastUpdate,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpsertTrack inserts or updates a track record keyed by its ref.
func (s *Store) UpsertTrack(t *Track) error {
	result, err := s.db.Exec(`
		INSERT INTO tracks (
			track_ref, storage_id, path, name, size_bytes, mtime_unix,
			title, artist, album, album_artist, genre, year,
			track_no, track_total, disc_no, disc_total, format, from_tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_ref) DO UPDATE SET
			storage_id = excluded.storage_id,
			path = excluded.path,
			name = excluded.name,
			size_bytes = excluded.size_bytes,
			mtime_unix = excluded.mtime_unix,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			album_artist = excluded.album_artist,
			genre = excluded.genre,
			year = excluded.year,
			track_no = excluded.track_no,
			track_total = excluded.track_total,
			disc_no = excluded.disc_no,
			disc_total = excluded.disc_total,
			format = excluded.format,
			from_tags = excluded.from_tags,
			last_update_at = CURRENT_TIMESTAMP
	`, t.Ref, t.StorageID, t.Path, t.Name, t.SizeBytes, t.MtimeUnix,
		t.Title, t.Artist, t.Album, t.AlbumArtist, t.Genre, t.Year,
		t.TrackNo, t.TrackTotal, t.DiscNo, t.DiscTotal, t.Format, t.FromTags,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}

	if t.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil && id != 0 {
			t.ID = id
		} else {
			err = s.db.QueryRow("SELECT id FROM tracks WHERE track_ref = ?", t.Ref).Scan(&t.ID)
			if err != nil {
				return fmt.Errorf("failed to get track ID: %w", err)
			}
		}
	}
	return nil
}

// TrackByRef retrieves a track by its ref, nil when absent.
func (s *Store) TrackByRef(ref string) (*Track, error) {
	t, err := scanTrack(s.db.QueryRow(
		"SELECT"+trackColumns+" FROM tracks WHERE track_ref = ?", ref,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return t, nil
}

// TracksForStorage lists a storage's tracks in path order.
func (s *Store) TracksForStorage(storageID string, limit, offset int) ([]*Track, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		"SELECT"+trackColumns+" FROM tracks WHERE storage_id = ? ORDER BY path LIMIT ? OFFSET ?",
		storageID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// CountTracks returns the number of catalogued tracks, optionally scoped to
// one storage.
func (s *Store) CountTracks(storageID string) (int, error) {
	var n int
	var err error
	if storageID == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM tracks WHERE storage_id = ?", storageID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

// DeleteTracksForStorage removes a storage's tracks and their cached
// extraction results. Returns how many tracks went away.
func (s *Store) DeleteTracksForStorage(storageID string) (int64, error) {
	_, err := s.db.Exec(`
		DELETE FROM extract_cache WHERE track_ref IN
			(SELECT track_ref FROM tracks WHERE storage_id = ?)
	`, storageID)
	if err != nil {
		return 0, fmt.Errorf("failed to prune extract cache: %w", err)
	}

	result, err := s.db.Exec("DELETE FROM tracks WHERE storage_id = ?", storageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tracks: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// StorageIDsWithTracks lists the distinct storage ids present in the
// catalogue.
func (s *Store) StorageIDsWithTracks() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT storage_id FROM tracks ORDER BY storage_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list storage ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NameCount is one row of a grouped count, keyed by format or artist.
type NameCount struct {
	Name  string
	Count int
}

// FormatCounts returns the catalogue's per-format track counts, most
// common first.
func (s *Store) FormatCounts() ([]NameCount, error) {
	return s.groupedCounts(`
		SELECT COALESCE(format, ''), COUNT(*) FROM tracks
		GROUP BY format ORDER BY COUNT(*) DESC, format
	`)
}

// TopArtists returns the artists with the most catalogued tracks.
func (s *Store) TopArtists(limit int) ([]NameCount, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.groupedCounts(`
		SELECT COALESCE(artist, ''), COUNT(*) FROM tracks
		WHERE artist IS NOT NULL AND artist != ''
		GROUP BY artist ORDER BY COUNT(*) DESC, artist LIMIT ?
	`, limit)
}

func (s *Store) groupedCounts(query string, args ...any) ([]NameCount, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	var counts []NameCount
	for rows.Next() {
		var c NameCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
