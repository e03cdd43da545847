package library

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// FilenameInfo holds metadata parsed from a filename and its path.
type FilenameInfo struct {
	Artist string
	Album  string
	Title  string
	Track  int
	Year   string
}

var (
	trackArtistTitleRe = regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+?)\s*-\s*(.+)$`)
	trackTitleRe       = regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+)$`)
	artistTitleRe      = regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`)
	discFolderRe       = regexp.MustCompile(`^(?i)(disc|cd|disk)\s*\d+$`)
	yearAlbumRe        = regexp.MustCompile(`^(\d{4})\s*[-_.]\s*(.+)$`)
	albumYearRe        = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)$`)
)

// ParseFilename extracts what metadata it can from an entry path. Patterns
// run most-specific first; whatever stays empty is inferred from the parent
// directories, which commonly follow Artist/Album/track layout.
func ParseFilename(p string) *FilenameInfo {
	base := path.Base(p)
	name := strings.TrimSuffix(base, path.Ext(base))
	info := &FilenameInfo{}

	switch {
	case matchInto(trackArtistTitleRe, name, func(m []string) {
		info.Track, _ = strconv.Atoi(m[1])
		info.Artist = strings.TrimSpace(m[2])
		info.Title = strings.TrimSpace(m[3])
	}):
	case matchInto(trackTitleRe, name, func(m []string) {
		info.Track, _ = strconv.Atoi(m[1])
		info.Title = cleanTitle(m[2])
	}):
	case matchInto(artistTitleRe, name, func(m []string) {
		info.Artist = strings.TrimSpace(m[1])
		info.Title = strings.TrimSpace(m[2])
	}):
	default:
		info.Title = cleanTitle(name)
	}

	info.inferFromPath(path.Dir(p))
	return info
}

func matchInto(re *regexp.Regexp, s string, fill func([]string)) bool {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	fill(m)
	return true
}

func cleanTitle(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
}

// inferFromPath fills artist/album from the directory structure.
func (info *FilenameInfo) inferFromPath(dir string) {
	if dir == "." || dir == "" {
		return
	}
	parts := strings.Split(dir, "/")

	// Common layout: Artist/Album/track. A trailing disc folder shifts the
	// window up one level.
	album := parts[len(parts)-1]
	artistIdx := len(parts) - 2
	if discFolderRe.MatchString(album) && len(parts) >= 2 {
		album = parts[len(parts)-2]
		artistIdx = len(parts) - 3
	}

	if info.Album == "" {
		info.Album = album
	}
	if info.Artist == "" && artistIdx >= 0 {
		info.Artist = parts[artistIdx]
	}

	// Year baked into the album folder: "2019 - Album" or "Album (2019)".
	if m := yearAlbumRe.FindStringSubmatch(info.Album); m != nil {
		info.Year = m[1]
		info.Album = strings.TrimSpace(m[2])
	} else if m := albumYearRe.FindStringSubmatch(info.Album); m != nil {
		info.Album = strings.TrimSpace(m[1])
		info.Year = m[2]
	}
}
