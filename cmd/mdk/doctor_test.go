package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/util"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	// Check a database that doesn't exist
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error - database will be created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message about database creation")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	// Create a real database
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := library.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Add a test track
	track := &library.Track{
		Ref:       util.TrackRef("acme:s1", "/Music/song.mp3"),
		StorageID: "acme:s1",
		Path:      "/Music/song.mp3",
		Name:      "song.mp3",
		Title:     "Song",
		SizeBytes: 1024,
		Format:    "mp3",
	}
	if err := st.UpsertTrack(track); err != nil {
		t.Fatalf("failed to insert test track: %v", err)
	}
	st.Close()

	// Now check the database
	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with database info")
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	// Test with empty database path
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckJournalMode_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkJournalMode(dbPath)

	if result.error || result.warning {
		t.Errorf("non-existent database should pass the journal check: %s", result.message)
	}
}

func TestCheckJournalMode_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := library.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	st.Close()

	// Open sets WAL, so an existing database must report it
	result := checkJournalMode(dbPath)

	if result.error || result.warning {
		t.Errorf("journal mode check failed: %s", result.message)
	}

	if result.message != "wal" {
		t.Errorf("expected wal journal mode, got %q", result.message)
	}
}

func TestCheckMountDirectory_Valid(t *testing.T) {
	dir := t.TempDir()

	result := checkMountDirectory(dir)

	if result.error {
		t.Errorf("mount directory check failed: %s", result.message)
	}
}

func TestCheckMountDirectory_NonExistent(t *testing.T) {
	result := checkMountDirectory("/nonexistent/path/that/does/not/exist")

	if !result.error {
		t.Error("expected error for non-existent directory")
	}
}

func TestCheckMountDirectory_File(t *testing.T) {
	// Create a file instead of directory
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkMountDirectory(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckSearchIndex_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	result := checkSearchIndex(dbPath)

	// Should not error - index will be created on first run
	if result.error {
		t.Errorf("non-existent index check should not error: %s", result.message)
	}
}

func TestCheckSearchIndex_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	search, err := library.OpenSearchIndex(searchIndexPath(dbPath))
	if err != nil {
		t.Fatalf("failed to create search index: %v", err)
	}
	search.Close()

	result := checkSearchIndex(dbPath)

	if result.error {
		t.Errorf("search index check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with document count")
	}
}

func TestCheckArtifactsDirectory_Valid(t *testing.T) {
	dir := t.TempDir()

	result := checkArtifactsDirectory(dir)

	if result.error {
		t.Errorf("artifacts directory check failed: %s", result.message)
	}
}

func TestCheckArtifactsDirectory_Create(t *testing.T) {
	tmpDir := t.TempDir()
	newDir := filepath.Join(tmpDir, "newdir")

	result := checkArtifactsDirectory(newDir)

	if result.error {
		t.Errorf("artifacts directory check failed: %s", result.message)
	}

	// Verify directory was created
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestCheckArtifactsDirectory_File(t *testing.T) {
	// Create a file instead of directory
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkArtifactsDirectory(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	// Use temp directory which should have disk space info
	dir := t.TempDir()

	result := checkDiskSpace(dir, "test")

	// Should not error
	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path", "test")

	// Should produce a warning (not error)
	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
