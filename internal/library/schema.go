package library

// Schema v1 - Initial database schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Storages ever seen attached
CREATE TABLE IF NOT EXISTS storages (
  storage_id TEXT PRIMARY KEY,
  vendor TEXT NOT NULL,
  serial TEXT NOT NULL,
  name TEXT,
  root_uri TEXT,
  track_count INTEGER DEFAULT 0,
  last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_indexed_at DATETIME
);

-- Tracks discovered on storages
CREATE TABLE IF NOT EXISTS tracks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  track_ref TEXT UNIQUE NOT NULL,
  storage_id TEXT NOT NULL,
  path TEXT NOT NULL,
  name TEXT,
  size_bytes INTEGER,
  mtime_unix INTEGER,
  title TEXT,
  artist TEXT,
  album TEXT,
  album_artist TEXT,
  genre TEXT,
  year INTEGER,
  track_no INTEGER,
  track_total INTEGER,
  disc_no INTEGER,
  disc_total INTEGER,
  format TEXT,
  from_tags INTEGER DEFAULT 0,
  first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_update_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tracks_storage ON tracks(storage_id);
CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album);
CREATE INDEX IF NOT EXISTS idx_tracks_title ON tracks(title);

-- Last playback position, single row
CREATE TABLE IF NOT EXISTS playback_state (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  track_ref TEXT,
  queue_json TEXT,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Tag-extraction results keyed by content identity, survives rebuilds
CREATE TABLE IF NOT EXISTS extract_cache (
  cache_key TEXT PRIMARY KEY,
  track_ref TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  cached_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  hit_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_extract_cache_ref ON extract_cache(track_ref);
`
