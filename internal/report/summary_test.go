package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/util"
)

func TestGenerateSummary(t *testing.T) {
	// Create temporary database
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "library.db")
	db, err := library.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Insert test data
	tracks := setupLibraryData(t, db)

	search, err := library.NewMemSearchIndex()
	if err != nil {
		t.Fatalf("Failed to open search index: %v", err)
	}
	defer search.Close()
	if err := search.IndexBatch(tracks); err != nil {
		t.Fatalf("Failed to seed search index: %v", err)
	}

	// Generate report
	summary, err := GenerateSummary(db, search, "test-events.jsonl")
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}

	// Verify statistics
	if summary.TracksTotal != 5 {
		t.Errorf("Expected 5 tracks, got %d", summary.TracksTotal)
	}
	if len(summary.Storages) != 2 {
		t.Errorf("Expected 2 storages, got %d", len(summary.Storages))
	}
	if summary.BytesOnDisk != 50_000_000 {
		t.Errorf("Expected 50000000 bytes on disk, got %d", summary.BytesOnDisk)
	}
	if summary.SearchDocs != 5 {
		t.Errorf("Expected 5 search documents, got %d", summary.SearchDocs)
	}
	if summary.EventLogPath != "test-events.jsonl" {
		t.Errorf("Expected event log path 'test-events.jsonl', got '%s'", summary.EventLogPath)
	}
	if summary.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}

	// Verify format breakdown (3 mp3, 2 flac)
	if len(summary.Formats) != 2 {
		t.Fatalf("Expected 2 formats, got %d", len(summary.Formats))
	}
	if summary.Formats[0].Name != "mp3" || summary.Formats[0].Count != 3 {
		t.Errorf("Expected top format mp3/3, got %s/%d", summary.Formats[0].Name, summary.Formats[0].Count)
	}

	// Verify artist breakdown
	if len(summary.TopArtists) == 0 {
		t.Fatal("Expected top artists, got none")
	}
	if summary.TopArtists[0].Name != "Kraftwerk" || summary.TopArtists[0].Count != 3 {
		t.Errorf("Expected top artist Kraftwerk/3, got %s/%d", summary.TopArtists[0].Name, summary.TopArtists[0].Count)
	}

	// Verify resume state resolved against the catalogue
	if !summary.HasResumeState {
		t.Error("Expected resume state to be present")
	}
	if summary.ResumeTrack != "Autobahn" {
		t.Errorf("Expected resume track 'Autobahn', got '%s'", summary.ResumeTrack)
	}
	if summary.ResumeQueue != 2 {
		t.Errorf("Expected 2 queued tracks, got %d", summary.ResumeQueue)
	}
}

func TestGenerateSummary_NoSearchIndex(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := library.Open(filepath.Join(tmpDir, "library.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	setupLibraryData(t, db)

	// A nil search index only suppresses the document count
	summary, err := GenerateSummary(db, nil, "")
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}
	if summary.SearchDocs != 0 {
		t.Errorf("Expected 0 search documents without an index, got %d", summary.SearchDocs)
	}
	if summary.TracksTotal != 5 {
		t.Errorf("Expected 5 tracks, got %d", summary.TracksTotal)
	}
}

func TestWriteMarkdown(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "reports", "summary.md")

	// Create a test report
	summary := &Summary{
		GeneratedAt: time.Now(),
		TracksTotal: 120,
		Storages: []StorageSummary{
			{
				StorageID:     "acme:stick-1",
				Name:          "STICK",
				Vendor:        "acme",
				RootURI:       "file:///mnt/stick",
				Tracks:        120,
				LastIndexedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
			{
				StorageID: "acme:stick-2",
				Name:      "SPARE",
				Vendor:    "acme",
				RootURI:   "file:///mnt/spare",
				Tracks:    0,
			},
		},
		Formats: []library.NameCount{
			{Name: "mp3", Count: 90},
			{Name: "flac", Count: 30},
		},
		TopArtists: []library.NameCount{
			{Name: "Kraftwerk", Count: 24},
			{Name: "Miles Davis", Count: 18},
		},
		BytesOnDisk:    500_000_000,
		CacheEntries:   80,
		CacheHits:      45,
		SearchDocs:     120,
		HasResumeState: true,
		ResumeTrack:    "Autobahn",
		ResumeQueue:    7,
		DatabasePath:   "/test/library.db",
		EventLogPath:   "/test/events.jsonl",
	}

	// Write report
	err := WriteMarkdown(summary, outputPath)
	if err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Fatalf("Report file was not created at %s", outputPath)
	}

	// Read and verify content
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report file: %v", err)
	}

	contentStr := string(content)

	// Verify headers
	if !strings.Contains(contentStr, "# Media Dock - Library Report") {
		t.Error("Report missing main header")
	}
	if !strings.Contains(contentStr, "## 📊 Overview") {
		t.Error("Report missing Overview section")
	}
	if !strings.Contains(contentStr, "## 💾 Storages") {
		t.Error("Report missing Storages section")
	}
	if !strings.Contains(contentStr, "## 🎵 Formats") {
		t.Error("Report missing Formats section")
	}
	if !strings.Contains(contentStr, "## 🎤 Top Artists") {
		t.Error("Report missing Top Artists section")
	}
	if !strings.Contains(contentStr, "## ▶️ Resume State") {
		t.Error("Report missing Resume State section")
	}

	// Verify statistics are present
	if !strings.Contains(contentStr, "| Tracks Catalogued | 120 |") {
		t.Error("Report missing track count")
	}
	if !strings.Contains(contentStr, "500 MB") { // Audio size
		t.Error("Report missing audio size")
	}
	if !strings.Contains(contentStr, "80 entries, 45 hits") {
		t.Error("Report missing cache statistics")
	}

	// Verify storage rows
	if !strings.Contains(contentStr, "STICK") {
		t.Error("Report missing storage name")
	}
	if !strings.Contains(contentStr, "never") { // SPARE was never indexed
		t.Error("Report missing 'never' for unindexed storage")
	}

	// Verify breakdown rows
	if !strings.Contains(contentStr, "| mp3 | 90 |") {
		t.Error("Report missing format row")
	}
	if !strings.Contains(contentStr, "| Kraftwerk | 24 |") {
		t.Error("Report missing artist row")
	}

	// Verify resume prose
	if !strings.Contains(contentStr, "Playback resumes at **Autobahn** with 7 queued tracks.") {
		t.Error("Report missing resume state prose")
	}

	// Verify database path
	if !strings.Contains(contentStr, "/test/library.db") {
		t.Error("Report missing database path")
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		maxLen int
	}{
		{
			name:   "Short path - no truncation",
			path:   "/music/song.mp3",
			maxLen: 50,
		},
		{
			name:   "Long path - truncate middle",
			path:   "/very/long/path/to/some/music/collection/artist/album/song.mp3",
			maxLen: 30,
		},
		{
			name:   "Exactly at limit",
			path:   "/music/test.mp3",
			maxLen: 16,
		},
		{
			name:   "Very long path",
			path:   "/extremely/long/path/that/needs/significant/truncation/to/fit/within/limits/file.mp3",
			maxLen: 40,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncatePath(tc.path, tc.maxLen)

			// Verify length constraint
			if len(result) > tc.maxLen {
				t.Errorf("Result length %d exceeds maxLen %d", len(result), tc.maxLen)
			}

			// Verify result contains "..." if truncated
			if len(tc.path) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("Expected truncated path to contain '...'")
			}

			// Verify no truncation for short paths
			if len(tc.path) <= tc.maxLen && result != tc.path {
				t.Errorf("Short path should not be truncated: expected '%s', got '%s'", tc.path, result)
			}
		})
	}
}

func TestMarkdownReportStructure(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "summary.md")

	// Minimal report
	summary := &Summary{
		GeneratedAt: time.Now(),
		TracksTotal: 10,
	}

	err := WriteMarkdown(summary, outputPath)
	if err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}

	content, _ := os.ReadFile(outputPath)
	contentStr := string(content)

	// Verify Markdown structure
	lines := strings.Split(contentStr, "\n")

	// Check for headers (should start with #)
	headerCount := 0
	tableCount := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			headerCount++
		}
		if strings.Contains(line, "|") {
			tableCount++
		}
	}

	if headerCount < 2 {
		t.Errorf("Expected at least 2 headers, got %d", headerCount)
	}
	if tableCount < 3 {
		t.Errorf("Expected at least 3 table rows, got %d", tableCount)
	}

	// Verify footer
	if !strings.Contains(contentStr, "Generated by") {
		t.Error("Report missing footer")
	}
}

func TestReportWithEmptyData(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "library.db")
	db, err := library.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Generate report from empty database
	summary, err := GenerateSummary(db, nil, "")
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}

	// Should not crash with empty data
	if summary.TracksTotal != 0 {
		t.Errorf("Expected 0 tracks for empty DB, got %d", summary.TracksTotal)
	}
	if summary.HasResumeState {
		t.Error("Expected no resume state for empty DB")
	}

	// Write report should work even with empty data
	outputPath := filepath.Join(tmpDir, "empty-summary.md")
	err = WriteMarkdown(summary, outputPath)
	if err != nil {
		t.Fatalf("WriteMarkdown failed on empty data: %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Error("Report file was not created for empty data")
	}
}

// setupLibraryData seeds two storages, five tracks and a playback snapshot.
// It returns the tracks so callers can feed a search index.
func setupLibraryData(t *testing.T, db *library.Store) []*library.Track {
	t.Helper()

	storages := []*library.StorageRecord{
		{StorageID: "acme:stick-1", Vendor: "acme", Serial: "stick-1", Name: "STICK", RootURI: "file:///mnt/stick"},
		{StorageID: "acme:stick-2", Vendor: "acme", Serial: "stick-2", Name: "SPARE", RootURI: "file:///mnt/spare"},
	}
	for _, rec := range storages {
		if err := db.TouchStorage(rec); err != nil {
			t.Fatalf("Failed to touch storage: %v", err)
		}
	}

	seeds := []struct {
		storage string
		path    string
		title   string
		artist  string
		format  string
	}{
		{"acme:stick-1", "Kraftwerk/Autobahn/01.mp3", "Autobahn", "Kraftwerk", "mp3"},
		{"acme:stick-1", "Kraftwerk/Autobahn/02.mp3", "Kometenmelodie", "Kraftwerk", "mp3"},
		{"acme:stick-1", "Kraftwerk/Autobahn/03.mp3", "Mitternacht", "Kraftwerk", "mp3"},
		{"acme:stick-2", "Miles Davis/Kind of Blue/01.flac", "So What", "Miles Davis", "flac"},
		{"acme:stick-2", "Miles Davis/Kind of Blue/02.flac", "Freddie Freeloader", "Miles Davis", "flac"},
	}

	var tracks []*library.Track
	for i, seed := range seeds {
		track := &library.Track{
			Ref:       util.TrackRef(seed.storage, seed.path),
			StorageID: seed.storage,
			Path:      seed.path,
			Name:      filepath.Base(seed.path),
			SizeBytes: 10_000_000,
			MtimeUnix: time.Now().Unix(),
			Title:     seed.title,
			Artist:    seed.artist,
			Album:     fmt.Sprintf("Album %d", i),
			Format:    seed.format,
			FromTags:  true,
		}
		if err := db.UpsertTrack(track); err != nil {
			t.Fatalf("Failed to upsert track: %v", err)
		}
		tracks = append(tracks, track)
	}

	if err := db.MarkStorageIndexed("acme:stick-1", 3); err != nil {
		t.Fatalf("Failed to mark storage indexed: %v", err)
	}

	resumeRef := util.TrackRef("acme:stick-1", "Kraftwerk/Autobahn/01.mp3")
	queue := []string{
		util.TrackRef("acme:stick-1", "Kraftwerk/Autobahn/02.mp3"),
		util.TrackRef("acme:stick-1", "Kraftwerk/Autobahn/03.mp3"),
	}
	if err := db.SavePlaybackState(&library.PlaybackSnapshot{TrackRef: resumeRef, QueueRefs: queue}); err != nil {
		t.Fatalf("Failed to save playback state: %v", err)
	}

	return tracks
}
