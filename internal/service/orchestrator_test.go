package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/index"
	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/source"
	"github.com/franz/media-dock/internal/storage"
	"github.com/franz/media-dock/internal/util"
)

type stubPlayback struct {
	mu    sync.Mutex
	state PlaybackState
}

func (p *stubPlayback) PlaybackState() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *stubPlayback) set(s PlaybackState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

type recordingNotifier struct {
	mu       sync.Mutex
	failures []string
}

func (n *recordingNotifier) JobFailed(job string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, job)
}

func (n *recordingNotifier) failed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failures...)
}

// dockFixture is the whole stack over an in-memory stick. The files carry
// no real tags, so cataloguing falls back to filename parsing.
type dockFixture struct {
	fs        afero.Fs
	reg       *storage.Registry
	pipeline  *index.Pipeline
	builder   *library.Builder
	store     *library.Store
	search    *library.SearchIndex
	host      *recordingHost
	notes     *recordingNotifier
	playback  *stubPlayback
	restored  chan *library.RestoreResult
	indexed   chan index.Stats
	orch      *Orchestrator
	dev       device.MediaDevice
	storageID string
}

func newDockFixture(t *testing.T) *dockFixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	for _, f := range []string{
		"/mnt/stick/Kraftwerk/Autobahn/01 - Autobahn.mp3",
		"/mnt/stick/Kraftwerk/Autobahn/02 - Kometenmelodie.mp3",
		"/mnt/stick/Miles Davis/Kind of Blue/01 - So What.flac",
		"/mnt/stick/cover.jpg",
		"/mnt/stick/playlist.m3u",
	} {
		require.NoError(t, afero.WriteFile(fs, f, []byte("not-really-audio-"+f), 0o644))
	}

	reg := storage.NewRegistry()
	reg.RegisterDriver(device.ClassMassStorage, func(dev device.MediaDevice, root string) (storage.Driver, error) {
		return storage.NewMassStorage(fs, root, util.DefaultRetryConfig()), nil
	})
	dev := device.MediaDevice{Vendor: "acme", Serial: "dock1", Class: device.ClassMassStorage, Name: "STICK"}
	loc, err := reg.AddDevice(dev, "/mnt/stick")
	require.NoError(t, err)

	store, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	search, err := library.NewMemSearchIndex()
	require.NoError(t, err)
	t.Cleanup(func() { search.Close() })

	pl := index.NewPipeline(reg)
	builder := library.NewBuilder(library.BuilderConfig{
		Store:    store,
		Registry: reg,
		Pipeline: pl,
		Search:   search,
		Workers:  2,
	})
	listings, err := storage.NewListingCache(32)
	require.NoError(t, err)

	f := &dockFixture{
		fs:        fs,
		reg:       reg,
		pipeline:  pl,
		builder:   builder,
		store:     store,
		search:    search,
		host:      &recordingHost{},
		notes:     &recordingNotifier{},
		playback:  &stubPlayback{},
		restored:  make(chan *library.RestoreResult, 4),
		indexed:   make(chan index.Stats, 4),
		dev:       dev,
		storageID: loc.ID(),
	}
	f.orch = New(Config{
		Registry:  reg,
		Pipeline:  pl,
		Builder:   builder,
		Store:     store,
		Search:    search,
		Listings:  listings,
		Host:      f.host,
		Playback:  f.playback,
		Notifier:  f.notes,
		OnRestore: func(r *library.RestoreResult) { f.restored <- r },
		OnIndexed: func(s index.Stats) { f.indexed <- s },
	})
	return f
}

func TestOrchestrator_LibraryCreationRestoresWhenIdle(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	ref := util.TrackRef(f.storageID, "Kraftwerk/Autobahn/01 - Autobahn.mp3")
	require.NoError(t, f.store.SavePlaybackState(&library.PlaybackSnapshot{
		TrackRef:  ref,
		QueueRefs: []string{ref, "no-such-ref"},
	}))

	j, err := f.orch.StartLibraryCreation(ctx, f.storageID)
	require.NoError(t, err)
	require.NoError(t, j.Join(ctx))

	select {
	case res := <-f.restored:
		require.NotNil(t, res.Track)
		assert.Equal(t, ref, res.Track.Ref)
		assert.Len(t, res.Queue, 1)
		assert.Equal(t, 1, res.Skipped)
	case <-time.After(2 * time.Second):
		t.Fatal("restore result never arrived")
	}

	// Creation held the service with an indexing start.
	assert.Equal(t, PriorityForegroundRequested, f.orch.Machine().Priority())
	assert.Equal(t, ReasonIndexing, f.orch.Machine().LastStartReason())
	assert.Equal(t, 1, f.host.startCount())
	assert.Empty(t, f.notes.failed())
}

func TestOrchestrator_SkipsRestoreWhenPlaybackAdvanced(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()
	f.playback.set(PlaybackPlaying)

	ref := util.TrackRef(f.storageID, "Kraftwerk/Autobahn/01 - Autobahn.mp3")
	require.NoError(t, f.store.SavePlaybackState(&library.PlaybackSnapshot{TrackRef: ref}))

	j, err := f.orch.StartLibraryCreation(ctx, f.storageID)
	require.NoError(t, err)
	require.NoError(t, j.Join(ctx))

	select {
	case res := <-f.restored:
		t.Fatalf("unexpected restore while playing: %+v", res)
	default:
	}
}

func TestOrchestrator_FailedCreationNotifiesAndStillRestores(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	// Seed the catalogue with a clean pass, then persist a position.
	seed, err := f.orch.StartLibraryCreation(ctx, f.storageID)
	require.NoError(t, err)
	require.NoError(t, seed.Join(ctx))

	ref := util.TrackRef(f.storageID, "Miles Davis/Kind of Blue/01 - So What.flac")
	require.NoError(t, f.store.SavePlaybackState(&library.PlaybackSnapshot{TrackRef: ref}))

	j, err := f.orch.StartLibraryCreation(ctx, "no-such-storage")
	require.NoError(t, err)
	require.ErrorIs(t, j.Join(ctx), storage.ErrUnknownStorage)

	assert.Equal(t, []string{JobLibraryCreation}, f.notes.failed())
	select {
	case res := <-f.restored:
		require.NotNil(t, res.Track)
		assert.Equal(t, ref, res.Track.Ref)
	case <-time.After(2 * time.Second):
		t.Fatal("restore after failure never arrived")
	}
}

func TestOrchestrator_StartIndexingStreamsAndTracksJob(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	run, err := f.orch.StartIndexing(ctx, []string{f.storageID}, index.Options{})
	require.NoError(t, err)

	var audio int
	for range run.Files() {
		audio++
	}
	require.NoError(t, run.Wait())
	assert.Equal(t, 3, audio)

	require.Eventually(t, func() bool {
		return f.orch.Jobs().Get(JobIndexing) == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, ReasonIndexing, f.orch.Machine().LastStartReason())
}

func TestOrchestrator_CancelIndexingIsSticky(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	f.orch.CancelIndexing()

	run, err := f.orch.StartIndexing(ctx, []string{f.storageID}, index.Options{})
	require.NoError(t, err)
	var audio int
	for range run.Files() {
		audio++
	}
	assert.Zero(t, audio)
	assert.ErrorIs(t, run.Wait(), context.Canceled)

	loc, err := f.reg.LocationForID(f.storageID)
	require.NoError(t, err)
	assert.True(t, loc.IndexingCancelled())
}

func TestOrchestrator_IndexedCallbackFiresOnCompletion(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	run, err := f.orch.StartIndexing(ctx, []string{f.storageID}, index.Options{})
	require.NoError(t, err)
	for range run.Files() {
	}
	require.NoError(t, run.Wait())

	select {
	case stats := <-f.indexed:
		assert.Equal(t, 1, stats.Storages)
		assert.Equal(t, 3, stats.Audio)
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}

	// A cancelled pass must not report completion.
	g := newDockFixture(t)
	g.orch.CancelIndexing()
	run, err = g.orch.StartIndexing(ctx, []string{g.storageID}, index.Options{})
	require.NoError(t, err)
	for range run.Files() {
	}
	require.ErrorIs(t, run.Wait(), context.Canceled)

	require.Eventually(t, func() bool {
		return g.orch.Jobs().Get(JobIndexing) == nil
	}, time.Second, 10*time.Millisecond)
	select {
	case <-g.indexed:
		t.Fatal("cancelled pass reported completion")
	default:
	}
}

func TestOrchestrator_EjectCancelsJobsAndDetaches(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	j := f.orch.Jobs().Launch(ctx, JobLibraryBuild, func(jctx context.Context) error {
		<-jctx.Done()
		return jctx.Err()
	})

	require.NoError(t, f.orch.Eject())
	assert.ErrorIs(t, j.Join(ctx), context.Canceled)

	// Detached, but still registered and queryable.
	loc, err := f.reg.LocationForID(f.storageID)
	require.NoError(t, err)
	assert.True(t, loc.Detached())
}

func TestOrchestrator_DetachEventCancelsBeforeRemoval(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	j := f.orch.Jobs().Launch(ctx, JobLibraryBuild, func(jctx context.Context) error {
		<-jctx.Done()
		return jctx.Err()
	})

	f.orch.Apply(device.Event{Type: device.EventDetach, Device: f.dev})

	assert.ErrorIs(t, j.Join(ctx), context.Canceled)
	_, err := f.reg.LocationForID(f.storageID)
	assert.ErrorIs(t, err, storage.ErrUnknownStorage)
}

func TestOrchestrator_LoadChildrenServesFromCache(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	first, err := f.orch.LoadChildren(ctx, f.storageID, "")
	require.NoError(t, err)
	assert.Len(t, first, 4)

	// Mutate the stick underneath; the cached listing must survive.
	require.NoError(t, f.fs.Remove("/mnt/stick/cover.jpg"))
	second, err := f.orch.LoadChildren(ctx, f.storageID, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = f.orch.LoadChildren(ctx, "no-such-storage", "")
	assert.ErrorIs(t, err, storage.ErrUnknownStorage)
}

func TestOrchestrator_SearchRunsAsJob(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	seed, err := f.orch.StartLibraryCreation(ctx, f.storageID)
	require.NoError(t, err)
	require.NoError(t, seed.Join(ctx))

	hits, err := f.orch.Search(ctx, "kometenmelodie", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Kometenmelodie", hits[0].Title)

	bare := New(Config{
		Registry: f.reg,
		Pipeline: f.pipeline,
		Builder:  f.builder,
		Store:    f.store,
		Host:     &recordingHost{},
	})
	_, err = bare.Search(ctx, "anything", 10)
	assert.Error(t, err)
}

func TestOrchestrator_ShutdownDrainsAndStops(t *testing.T) {
	f := newDockFixture(t)
	ctx := context.Background()

	// Host already runs the service.
	f.orch.ConfirmForeground()

	j := f.orch.Jobs().Launch(ctx, JobLibraryBuild, func(jctx context.Context) error {
		<-jctx.Done()
		return jctx.Err()
	})

	require.NoError(t, f.orch.Shutdown(ctx))

	assert.ErrorIs(t, j.Err(), context.Canceled)
	assert.Equal(t, PriorityBackground, f.orch.Machine().Priority())
	assert.Equal(t, ReasonUnknown, f.orch.Machine().LastStartReason())
	assert.False(t, f.orch.Machine().Started())
	assert.Equal(t, 1, f.host.terminations())
	assert.Empty(t, f.orch.Jobs().Active())
}

func TestOrchestrator_StatusSnapshot(t *testing.T) {
	f := newDockFixture(t)

	st := f.orch.Status()
	assert.Equal(t, "background", st.Priority)
	assert.Equal(t, "unknown", st.LastStart)
	assert.Empty(t, st.ActiveJobs)
	assert.Len(t, st.Storages, 1)
	assert.Zero(t, st.OpenSources)
}

// gatedDriver blocks enumeration until its gate closes, which holds a
// build mid-flight: cancellation is only polled at entry boundaries, so a
// cancelled build stays running until the driver returns.
type gatedDriver struct {
	gate chan struct{}
}

func (d *gatedDriver) RootURI() string { return "gated://stick" }

func (d *gatedDriver) Enumerate(string) ([]storage.FileLike, error) {
	<-d.gate
	return nil, nil
}

func (d *gatedDriver) Open(string) (source.Handle, error) { return nil, os.ErrNotExist }

func (d *gatedDriver) Close() error { return nil }

type gatedFixture struct {
	orch      *Orchestrator
	gate      chan struct{}
	notes     *recordingNotifier
	restored  chan *library.RestoreResult
	storageID string
}

func newGatedFixture(t *testing.T) *gatedFixture {
	t.Helper()

	gate := make(chan struct{})
	reg := storage.NewRegistry()
	reg.RegisterDriver(device.ClassMassStorage, func(device.MediaDevice, string) (storage.Driver, error) {
		return &gatedDriver{gate: gate}, nil
	})
	dev := device.MediaDevice{Vendor: "acme", Serial: "slow1", Class: device.ClassMassStorage, Name: "SLOW"}
	loc, err := reg.AddDevice(dev, "/mnt/slow")
	require.NoError(t, err)

	store, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pl := index.NewPipeline(reg)
	b := library.NewBuilder(library.BuilderConfig{Store: store, Registry: reg, Pipeline: pl, Workers: 1})

	f := &gatedFixture{
		gate:      gate,
		notes:     &recordingNotifier{},
		restored:  make(chan *library.RestoreResult, 1),
		storageID: loc.ID(),
	}
	f.orch = New(Config{
		Registry:  reg,
		Pipeline:  pl,
		Builder:   b,
		Store:     store,
		Host:      &recordingHost{},
		Notifier:  f.notes,
		OnRestore: func(r *library.RestoreResult) { f.restored <- r },
	})
	return f
}

func TestOrchestrator_SecondCreationJoinsFirst(t *testing.T) {
	f := newGatedFixture(t)
	ctx := context.Background()

	first, err := f.orch.StartLibraryCreation(ctx, f.storageID)
	require.NoError(t, err)
	first.Cancel()

	// Cancelled but still blocked inside the driver.
	select {
	case <-first.Done():
		t.Fatal("first creation ended before the driver released it")
	case <-time.After(20 * time.Millisecond):
	}

	second := make(chan *Job, 1)
	go func() {
		j, err := f.orch.StartLibraryCreation(ctx, f.storageID)
		assert.NoError(t, err)
		second <- j
	}()

	select {
	case <-second:
		t.Fatal("second creation did not wait for the first to end")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.gate)
	require.ErrorIs(t, first.Join(ctx), context.Canceled)

	j := <-second
	require.NotNil(t, j)
	require.NoError(t, j.Join(ctx))
}

func TestOrchestrator_CancelledCreationSkipsRestore(t *testing.T) {
	f := newGatedFixture(t)
	ctx := context.Background()

	first, err := f.orch.StartLibraryCreation(ctx, f.storageID)
	require.NoError(t, err)
	first.Cancel()
	close(f.gate)

	require.ErrorIs(t, first.Join(ctx), context.Canceled)
	assert.Empty(t, f.notes.failed())
	select {
	case res := <-f.restored:
		t.Fatalf("unexpected restore after cancellation: %+v", res)
	default:
	}
}
