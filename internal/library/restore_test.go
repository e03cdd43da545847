package library

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/storage"
)

// restoreFixture returns a store holding tracks for one attached and one
// long-gone storage, plus the registry knowing only the attached one.
func restoreFixture(t *testing.T) (*Store, *storage.Registry, string) {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := storage.NewRegistry()
	reg.RegisterDriver(device.ClassMassStorage, func(device.MediaDevice, string) (storage.Driver, error) {
		return storage.NewMassStorage(afero.NewMemMapFs(), "/mnt/s1", nil), nil
	})
	dev := device.MediaDevice{Vendor: "acme", Serial: "s1", Class: device.ClassMassStorage}
	loc, err := reg.AddDevice(dev, "/mnt/s1")
	require.NoError(t, err)

	for _, tr := range []*Track{
		{Ref: "here-1", StorageID: loc.ID(), Path: "a.mp3", Title: "A"},
		{Ref: "here-2", StorageID: loc.ID(), Path: "b.mp3", Title: "B"},
		{Ref: "gone-1", StorageID: "gone-storage", Path: "x.mp3", Title: "X"},
	} {
		require.NoError(t, store.UpsertTrack(tr))
	}
	return store, reg, loc.ID()
}

func TestRestore_ResolvesTrackAndQueue(t *testing.T) {
	store, reg, _ := restoreFixture(t)

	require.NoError(t, store.SavePlaybackState(&PlaybackSnapshot{
		TrackRef:  "here-1",
		QueueRefs: []string{"here-1", "here-2", "vanished", "gone-1"},
	}))

	res, err := Restore(store, reg)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "A", res.Track.Title)
	require.Len(t, res.Queue, 2)
	// The unknown ref and the detached storage's ref were dropped.
	assert.Equal(t, 2, res.Skipped)
}

func TestRestore_NothingPersisted(t *testing.T) {
	store, reg, _ := restoreFixture(t)

	res, err := Restore(store, reg)
	require.NoError(t, err)
	assert.Nil(t, res)

	// An empty ref means the same: nothing to restore.
	require.NoError(t, store.SavePlaybackState(&PlaybackSnapshot{TrackRef: ""}))
	res, err = Restore(store, reg)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRestore_UnknownTrackIsQuiet(t *testing.T) {
	store, reg, _ := restoreFixture(t)

	require.NoError(t, store.SavePlaybackState(&PlaybackSnapshot{TrackRef: "never-catalogued"}))
	res, err := Restore(store, reg)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRestore_DetachedStorageIsQuiet(t *testing.T) {
	store, reg, _ := restoreFixture(t)

	require.NoError(t, store.SavePlaybackState(&PlaybackSnapshot{TrackRef: "gone-1"}))
	res, err := Restore(store, reg)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestClean_DropsUnattachedStorages(t *testing.T) {
	store, reg, attachedID := restoreFixture(t)

	require.NoError(t, store.TouchStorage(&StorageRecord{
		StorageID: "gone-storage", Vendor: "acme", Serial: "old",
	}))
	store.StoreMeta("key-gone", "gone-1", &TrackMeta{Title: "X"})

	search, err := NewMemSearchIndex()
	require.NoError(t, err)
	defer search.Close()
	require.NoError(t, search.IndexBatch([]*Track{
		{Ref: "gone-1", StorageID: "gone-storage", Title: "X"},
		{Ref: "here-1", StorageID: attachedID, Title: "A"},
	}))

	res, err := Clean(store, reg, search)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TracksDeleted)
	assert.Equal(t, 1, res.StoragesDropped)
	assert.False(t, res.StateCleared)

	ids, err := store.StorageIDsWithTracks()
	require.NoError(t, err)
	assert.Equal(t, []string{attachedID}, ids)

	if _, ok := store.CachedMeta("key-gone"); ok {
		t.Error("expected stale cache entry to be pruned")
	}

	rec, err := store.StorageByID("gone-storage")
	require.NoError(t, err)
	assert.Nil(t, rec)

	n, err := search.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestClean_ClearsDanglingPlaybackState(t *testing.T) {
	store, reg, _ := restoreFixture(t)

	// State points into the storage that Clean is about to drop.
	require.NoError(t, store.SavePlaybackState(&PlaybackSnapshot{TrackRef: "gone-1"}))

	res, err := Clean(store, reg, nil)
	require.NoError(t, err)
	assert.True(t, res.StateCleared)

	snap, err := store.LoadPlaybackState()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestClean_KeepsAttachedState(t *testing.T) {
	store, reg, _ := restoreFixture(t)

	require.NoError(t, store.SavePlaybackState(&PlaybackSnapshot{TrackRef: "here-1"}))

	res, err := Clean(store, reg, nil)
	require.NoError(t, err)
	assert.False(t, res.StateCleared)

	snap, err := store.LoadPlaybackState()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "here-1", snap.TrackRef)
}
