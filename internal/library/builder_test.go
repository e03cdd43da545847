package library

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/index"
	"github.com/franz/media-dock/internal/storage"
	"github.com/franz/media-dock/internal/util"
)

// buildFixture wires a registry over an in-memory stick, a pipeline, and a
// fresh store. The stick's files carry no real tags, so extraction falls
// back to filename parsing, which is what the assertions key on.
func buildFixture(t *testing.T, search *SearchIndex) (*Builder, *Store, string) {
	t.Helper()

	fs := afero.NewMemMapFs()
	files := []string{
		"/mnt/stick/Kraftwerk/Autobahn/01 - Autobahn.mp3",
		"/mnt/stick/Kraftwerk/Autobahn/02 - Kometenmelodie.mp3",
		"/mnt/stick/Miles Davis/Kind of Blue/01 - So What.flac",
		"/mnt/stick/cover.jpg",
		"/mnt/stick/playlist.m3u",
	}
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("not-really-audio-"+f), 0o644))
	}

	reg := storage.NewRegistry()
	reg.RegisterDriver(device.ClassMassStorage, func(dev device.MediaDevice, root string) (storage.Driver, error) {
		return storage.NewMassStorage(fs, root, util.DefaultRetryConfig()), nil
	})
	dev := device.MediaDevice{Vendor: "acme", Serial: "s1", Class: device.ClassMassStorage, Name: "STICK"}
	loc, err := reg.AddDevice(dev, "/mnt/stick")
	require.NoError(t, err)

	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	b := NewBuilder(BuilderConfig{
		Store:    store,
		Registry: reg,
		Pipeline: index.NewPipeline(reg),
		Search:   search,
		Workers:  2,
	})
	return b, store, loc.ID()
}

func TestBuilder_CataloguesStorage(t *testing.T) {
	b, store, storageID := buildFixture(t, nil)

	res, err := b.Build(context.Background(), storageID)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Discovered)
	assert.Equal(t, 3, res.Catalogued)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.CacheHits)
	assert.False(t, res.Cancelled)
	// No real tags on the fixture files: everything fell back.
	assert.Equal(t, 3, res.TagMisses)

	tracks, err := store.TracksForStorage(storageID, 0, 0)
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	byTitle := map[string]*Track{}
	for _, tr := range tracks {
		byTitle[tr.Title] = tr
	}
	autobahn := byTitle["Autobahn"]
	require.NotNil(t, autobahn)
	assert.Equal(t, "Kraftwerk", autobahn.Artist)
	assert.Equal(t, "Autobahn", autobahn.Album)
	assert.Equal(t, 1, autobahn.TrackNo)
	assert.False(t, autobahn.FromTags)
	assert.Equal(t, util.TrackRef(storageID, autobahn.Path), autobahn.Ref)

	rec, err := store.StorageByID(storageID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 3, rec.TrackCount)
	assert.False(t, rec.LastIndexedAt.IsZero())
}

func TestBuilder_SecondPassHitsCache(t *testing.T) {
	b, _, storageID := buildFixture(t, nil)

	_, err := b.Build(context.Background(), storageID)
	require.NoError(t, err)

	res, err := b.Build(context.Background(), storageID)
	require.NoError(t, err)

	assert.Equal(t, 3, res.CacheHits)
	assert.Equal(t, 3, res.Catalogued)
}

func TestBuilder_FeedsSearchIndex(t *testing.T) {
	search, err := NewMemSearchIndex()
	require.NoError(t, err)
	defer search.Close()

	b, _, storageID := buildFixture(t, search)
	_, err = b.Build(context.Background(), storageID)
	require.NoError(t, err)

	n, err := search.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	hits, err := search.Search("kometenmelodie", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, storageID, hits[0].StorageID)
}

func TestBuilder_UnknownStorage(t *testing.T) {
	b, _, _ := buildFixture(t, nil)

	_, err := b.Build(context.Background(), "no-such-storage")
	assert.ErrorIs(t, err, storage.ErrUnknownStorage)
}

func TestBuilder_CancelledContext(t *testing.T) {
	b, store, storageID := buildFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := b.Build(ctx, storageID)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Cancelled)

	// An interrupted pass never marks the storage as indexed.
	rec, err := store.StorageByID(storageID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.LastIndexedAt.IsZero())
}
