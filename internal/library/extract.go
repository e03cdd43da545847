package library

import (
	"fmt"

	"github.com/dhowden/tag"

	"github.com/franz/media-dock/internal/source"
	"github.com/franz/media-dock/internal/storage"
)

// TrackMeta is what extraction learns about one audio file.
type TrackMeta struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"album_artist"`
	Genre       string `json:"genre"`
	Format      string `json:"format"`
	Year        int    `json:"year"`
	TrackNo     int    `json:"track_no"`
	TrackTotal  int    `json:"track_total"`
	DiscNo      int    `json:"disc_no"`
	DiscTotal   int    `json:"disc_total"`
	FromTags    bool   `json:"from_tags"`
}

// ExtractMeta reads embedded tags through the chunked source. When the file
// carries no readable tags, metadata falls back to the filename and path.
func ExtractMeta(src *source.ChunkedSource, file storage.FileLike) *TrackMeta {
	m, err := tag.ReadFrom(source.NewReader(src))
	if err != nil {
		return metaFromFilename(file.Path)
	}

	meta := &TrackMeta{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		Genre:       m.Genre(),
		Format:      string(m.Format()),
		Year:        m.Year(),
		FromTags:    true,
	}
	meta.TrackNo, meta.TrackTotal = m.Track()
	meta.DiscNo, meta.DiscTotal = m.Disc()

	// Tags can be present but hollow; borrow the missing basics from the
	// filename.
	if meta.Title == "" || meta.Artist == "" || meta.Album == "" {
		fb := metaFromFilename(file.Path)
		if meta.Title == "" {
			meta.Title = fb.Title
		}
		if meta.Artist == "" {
			meta.Artist = fb.Artist
		}
		if meta.Album == "" {
			meta.Album = fb.Album
		}
		if meta.TrackNo == 0 {
			meta.TrackNo = fb.TrackNo
		}
		if meta.Year == 0 {
			meta.Year = fb.Year
		}
	}
	return meta
}

func metaFromFilename(path string) *TrackMeta {
	info := ParseFilename(path)
	meta := &TrackMeta{
		Title:   info.Title,
		Artist:  info.Artist,
		Album:   info.Album,
		TrackNo: info.Track,
	}
	if info.Year != "" {
		fmt.Sscanf(info.Year, "%d", &meta.Year)
	}
	return meta
}
