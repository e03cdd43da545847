package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"

	"github.com/franz/media-dock/internal/library"
)

// Summary represents a complete catalogue report
type Summary struct {
	GeneratedAt time.Time

	// Catalogue statistics
	TracksTotal  int
	Storages     []StorageSummary
	Formats      []library.NameCount
	TopArtists   []library.NameCount
	BytesOnDisk  int64
	CacheEntries int
	CacheHits    int
	SearchDocs   uint64

	// Resume state
	HasResumeState bool
	ResumeTrack    string
	ResumeQueue    int

	// Metadata
	DatabasePath string
	EventLogPath string
}

// StorageSummary represents one known storage in the report
type StorageSummary struct {
	StorageID     string
	Name          string
	Vendor        string
	RootURI       string
	Tracks        int
	LastIndexedAt time.Time
}

// GenerateSummary creates a catalogue report from the library store. The
// search index is optional and only contributes a document count.
func GenerateSummary(db *library.Store, search *library.SearchIndex, eventLogPath string) (*Summary, error) {
	s := &Summary{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
	}

	// Gather catalogue statistics
	s.TracksTotal, _ = db.CountTracks("")
	s.Formats, _ = db.FormatCounts()
	s.TopArtists, _ = db.TopArtists(10)
	s.CacheEntries, s.CacheHits, _ = db.CacheStats()

	storages, _ := db.Storages()
	for _, rec := range storages {
		s.Storages = append(s.Storages, StorageSummary{
			StorageID:     rec.StorageID,
			Name:          rec.Name,
			Vendor:        rec.Vendor,
			RootURI:       rec.RootURI,
			Tracks:        rec.TrackCount,
			LastIndexedAt: rec.LastIndexedAt,
		})
		tracks, _ := db.TracksForStorage(rec.StorageID, -1, 0)
		for _, tr := range tracks {
			s.BytesOnDisk += tr.SizeBytes
		}
	}

	if search != nil {
		s.SearchDocs, _ = search.DocCount()
	}

	// Gather resume state
	snap, _ := db.LoadPlaybackState()
	if snap != nil && snap.TrackRef != "" {
		s.HasResumeState = true
		s.ResumeQueue = len(snap.QueueRefs)
		if tr, _ := db.TrackByRef(snap.TrackRef); tr != nil {
			s.ResumeTrack = tr.Title
		}
	}

	return s, nil
}

// WriteMarkdown writes the report as Markdown, replacing the target file
// atomically so a crashed write never leaves a half report behind.
func WriteMarkdown(s *Summary, outputPath string) error {
	// Create output directory
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate markdown content
	var md strings.Builder

	// Header
	md.WriteString("# Media Dock - Library Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05")))

	if s.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", s.DatabasePath))
	}
	if s.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", s.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Tracks Catalogued | %d |\n", s.TracksTotal))
	md.WriteString(fmt.Sprintf("| Known Storages | %d |\n", len(s.Storages)))
	if s.BytesOnDisk > 0 {
		md.WriteString(fmt.Sprintf("| Audio Size | %s |\n", humanize.Bytes(uint64(s.BytesOnDisk))))
	}
	if s.SearchDocs > 0 {
		md.WriteString(fmt.Sprintf("| Search Documents | %d |\n", s.SearchDocs))
	}
	if s.CacheEntries > 0 {
		md.WriteString(fmt.Sprintf("| Extraction Cache | %d entries, %d hits |\n", s.CacheEntries, s.CacheHits))
	}
	md.WriteString("\n")

	// Storages
	if len(s.Storages) > 0 {
		md.WriteString("## 💾 Storages\n\n")
		md.WriteString("| Storage | Vendor | Tracks | Last Indexed | Root |\n")
		md.WriteString("|---------|--------|--------|--------------|------|\n")
		for _, st := range s.Storages {
			indexed := "never"
			if !st.LastIndexedAt.IsZero() {
				indexed = st.LastIndexedAt.Format("2006-01-02 15:04")
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %d | %s | `%s` |\n",
				st.Name, st.Vendor, st.Tracks, indexed, truncatePath(st.RootURI, 40)))
		}
		md.WriteString("\n")
	}

	// Formats
	if len(s.Formats) > 0 {
		md.WriteString("## 🎵 Formats\n\n")
		md.WriteString("| Format | Tracks |\n")
		md.WriteString("|--------|--------|\n")
		for _, f := range s.Formats {
			name := f.Name
			if name == "" {
				name = "(unknown)"
			}
			md.WriteString(fmt.Sprintf("| %s | %d |\n", name, f.Count))
		}
		md.WriteString("\n")
	}

	// Top artists
	if len(s.TopArtists) > 0 {
		md.WriteString("## 🎤 Top Artists\n\n")
		md.WriteString("| Artist | Tracks |\n")
		md.WriteString("|--------|--------|\n")
		for _, a := range s.TopArtists {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", a.Name, a.Count))
		}
		md.WriteString("\n")
	}

	// Resume state
	if s.HasResumeState {
		md.WriteString("## ▶️ Resume State\n\n")
		if s.ResumeTrack != "" {
			md.WriteString(fmt.Sprintf("Playback resumes at **%s**", s.ResumeTrack))
		} else {
			md.WriteString("Playback position persisted for a track no longer in the catalogue")
		}
		if s.ResumeQueue > 0 {
			md.WriteString(fmt.Sprintf(" with %d queued tracks", s.ResumeQueue))
		}
		md.WriteString(".\n\n")
	}

	// Footer
	md.WriteString("---\n\n")
	md.WriteString("*Generated by mdk - Media Dock*\n")

	// Write to file
	if err := renameio.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
