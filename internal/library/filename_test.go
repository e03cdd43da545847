package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		path string
		want FilenameInfo
	}{
		{
			path: "01 - Nina Simone - Feeling Good.mp3",
			want: FilenameInfo{Track: 1, Artist: "Nina Simone", Title: "Feeling Good"},
		},
		{
			path: "07 - Intro.flac",
			want: FilenameInfo{Track: 7, Title: "Intro"},
		},
		{
			path: "Miles Davis - So What.mp3",
			want: FilenameInfo{Artist: "Miles Davis", Title: "So What"},
		},
		{
			path: "03_Blue_Train.mp3",
			want: FilenameInfo{Track: 3, Title: "Blue Train"},
		},
		{
			path: "ambient.ogg",
			want: FilenameInfo{Title: "ambient"},
		},
	}

	for _, tt := range tests {
		got := ParseFilename(tt.path)
		assert.Equal(t, tt.want.Track, got.Track, tt.path)
		assert.Equal(t, tt.want.Artist, got.Artist, tt.path)
		assert.Equal(t, tt.want.Title, got.Title, tt.path)
	}
}

func TestParseFilename_InfersFromPath(t *testing.T) {
	got := ParseFilename("Kraftwerk/Autobahn/01 - Autobahn.mp3")
	assert.Equal(t, "Kraftwerk", got.Artist)
	assert.Equal(t, "Autobahn", got.Album)
	assert.Equal(t, "Autobahn", got.Title)
	assert.Equal(t, 1, got.Track)
}

func TestParseFilename_DiscFolder(t *testing.T) {
	got := ParseFilename("Artist/Live Album/CD2/05 - Encore.mp3")
	assert.Equal(t, "Artist", got.Artist)
	assert.Equal(t, "Live Album", got.Album)
	assert.Equal(t, "Encore", got.Title)
}

func TestParseFilename_YearInAlbumFolder(t *testing.T) {
	got := ParseFilename("Artist/1977 - Low/02 - Sound.mp3")
	assert.Equal(t, "Low", got.Album)
	assert.Equal(t, "1977", got.Year)

	got = ParseFilename("Artist/Heroes (1977)/03 - Title.mp3")
	assert.Equal(t, "Heroes", got.Album)
	assert.Equal(t, "1977", got.Year)
}

func TestParseFilename_KeepsExplicitArtist(t *testing.T) {
	// The filename's own artist beats the directory guess.
	got := ParseFilename("Various/Compilation/04 - Real Artist - Song.mp3")
	assert.Equal(t, "Real Artist", got.Artist)
	assert.Equal(t, "Compilation", got.Album)
}
