package storage

import (
	"mime"
	"path"
	"strings"
	"time"
)

// FileLike is one discovered entry on a storage: file or directory.
// Values are immutable once produced by enumeration.
type FileLike struct {
	StorageID string
	Path      string // slash-separated, relative to the storage root
	Name      string // display name
	Dir       bool
	Size      int64
	ModTime   time.Time
}

// AudioFile is a FileLike that passed audio classification. The indexing
// pipeline emits only these.
type AudioFile = FileLike

// audioTypes maps extensions the guesser must know regardless of the host's
// mime tables. Removable media regularly carries formats /etc/mime.types
// does not list.
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/x-wav",
	".m4a":  "audio/mp4",
	".m4b":  "audio/mp4",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
	".aif":  "audio/x-aiff",
	".aiff": "audio/x-aiff",
	".ape":  "audio/x-ape",
	".mpc":  "audio/x-musepack",
	".wv":   "audio/x-wavpack",
	".m3u":  "audio/x-mpegurl",
	".m3u8": "audio/x-mpegurl",
	".pls":  "audio/x-scpls",
}

// SanitizeFilename strips the characters that derail content-type guessing.
// Hash marks and friends read as URI syntax to some guessers and make them
// bail on otherwise fine names.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '#', '?', '%':
			return -1
		}
		return r
	}, name)
}

// ContentType guesses the MIME type for a file name. Names are sanitized
// before the extension is taken.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(SanitizeFilename(name)))
	if ext == "" {
		return ""
	}
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// isPlaylistType reports whether a content type is a playlist flavour.
// Playlists carry an audio/* type but are not playable entries.
func isPlaylistType(contentType string) bool {
	return strings.Contains(contentType, "mpegurl") || strings.Contains(contentType, "scpls")
}

// IsAudioFile reports whether a file name classifies as playable audio:
// the guessed type begins with "audio" and is not a playlist flavour.
func IsAudioFile(name string) bool {
	ct := ContentType(name)
	return strings.HasPrefix(ct, "audio") && !isPlaylistType(ct)
}
