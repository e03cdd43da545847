package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/index"
	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/storage"
)

// Notifier receives failure notifications the surrounding UI should
// surface to the user.
type Notifier interface {
	JobFailed(job string, err error)
}

// Config wires the orchestrator's collaborators. Registry, Pipeline,
// Builder, Store and Host are required; the rest are optional.
type Config struct {
	Registry *storage.Registry
	Pipeline *index.Pipeline
	Builder  *library.Builder
	Store    *library.Store
	Search   *library.SearchIndex
	Listings *storage.ListingCache
	Host     Host
	Playback PlaybackStateProvider
	Notifier Notifier

	// OnRestore receives the resolved playback position after a
	// successful restore-from-persistent job, typically the player.
	OnRestore func(*library.RestoreResult)

	// OnIndexed fires once per indexing batch that drains to completion,
	// with the run's final stats. Cancelled or failed batches do not fire.
	OnIndexed func(index.Stats)
}

// Orchestrator owns the service-priority machine and the job registry and
// sequences the dock's background work: indexing, library creation,
// restore and cleanup.
type Orchestrator struct {
	registry  *storage.Registry
	pipeline  *index.Pipeline
	builder   *library.Builder
	store     *library.Store
	search    *library.SearchIndex
	listings  *storage.ListingCache
	playback  PlaybackStateProvider
	notifier  Notifier
	onRestore func(*library.RestoreResult)
	onIndexed func(index.Stats)

	machine *PriorityMachine
	jobs    *Jobs
	logger  zerolog.Logger
}

// New builds an orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		registry:  cfg.Registry,
		pipeline:  cfg.Pipeline,
		builder:   cfg.Builder,
		store:     cfg.Store,
		search:    cfg.Search,
		listings:  cfg.Listings,
		playback:  cfg.Playback,
		notifier:  cfg.Notifier,
		onRestore: cfg.OnRestore,
		onIndexed: cfg.OnIndexed,
		machine:   NewPriorityMachine(cfg.Host),
		jobs:      NewJobs(),
		logger:    log.WithComponent("orchestrator"),
	}
}

// Machine returns the priority machine, mainly for host wiring.
func (o *Orchestrator) Machine() *PriorityMachine { return o.machine }

// Jobs returns the job registry.
func (o *Orchestrator) Jobs() *Jobs { return o.jobs }

// ConfirmForeground forwards the host's start confirmation.
func (o *Orchestrator) ConfirmForeground() { o.machine.ConfirmForeground() }

// StopService requests a service stop for the given reason.
func (o *Orchestrator) StopService(reason StartStopReason) StopOutcome {
	return o.machine.Stop(reason)
}

// HandleMediaButton records a media-button press, which holds the service
// in the foreground.
func (o *Orchestrator) HandleMediaButton() {
	o.machine.RequireForeground(ReasonMediaButton)
}

// HandleSessionCallback records a media-session callback.
func (o *Orchestrator) HandleSessionCallback() {
	o.machine.RequireForeground(ReasonMediaSessionCallback)
}

// StartIndexing requires the foreground, starts an indexing run over the
// given storages and tracks it under the indexing job slot. The caller
// owns the run's file stream.
func (o *Orchestrator) StartIndexing(ctx context.Context, storageIDs []string, opts index.Options) (*index.Run, error) {
	o.machine.RequireForeground(ReasonIndexing)

	run, err := o.pipeline.IndexStorages(ctx, storageIDs, opts)
	if err != nil {
		return nil, err
	}
	o.jobs.Launch(ctx, JobIndexing, func(jctx context.Context) error {
		go func() {
			<-jctx.Done()
			run.Cancel()
		}()
		err := run.Wait()
		if err == nil && o.onIndexed != nil {
			o.onIndexed(run.Stats())
		}
		return err
	})
	return run, nil
}

// CancelIndexing cancels every indexing run and flags every attached
// storage so later passes in this attach cycle stop immediately.
func (o *Orchestrator) CancelIndexing() {
	o.pipeline.Cancel()
}

// IndexingStatuses reports the indexing status of every attached storage.
func (o *Orchestrator) IndexingStatuses() []storage.IndexingState {
	return o.registry.IndexingStatuses()
}

// StartLibraryCreation launches the full index-and-catalogue pass for one
// storage. If a previous creation job is still winding down it is joined
// first, so there is never more than one writer per storage index.
func (o *Orchestrator) StartLibraryCreation(ctx context.Context, storageID string) (*Job, error) {
	o.machine.RequireForeground(ReasonIndexing)

	// One writer per storage index: a previous creation job that is still
	// winding down, cancelled or not, must end before the next one starts.
	if prev := o.jobs.Get(JobLibraryCreation); prev != nil {
		o.logger.Info().Str("storage", storageID).Msg("joining previous library creation")
		select {
		case <-prev.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	j := o.jobs.Launch(ctx, JobLibraryCreation, func(jctx context.Context) error {
		return o.runLibraryCreation(jctx, storageID)
	})
	return j, nil
}

// runLibraryCreation drives the build stage and then decides whether to
// restore the persisted playback position: on success only while playback
// is at rest, on failure always, on cancellation never.
func (o *Orchestrator) runLibraryCreation(ctx context.Context, storageID string) error {
	build := o.jobs.Launch(ctx, JobLibraryBuild, func(bctx context.Context) error {
		_, err := o.builder.Build(bctx, storageID)
		return err
	})
	<-build.Done()
	err := build.Err()

	cancelled := ctx.Err() != nil || errors.Is(err, context.Canceled)
	switch {
	case cancelled:
		o.logger.Info().Str("storage", storageID).Msg("library creation cancelled")
		return err
	case err != nil:
		o.logger.Error().Str("storage", storageID).Err(err).Msg("library creation failed")
		if o.notifier != nil {
			o.notifier.JobFailed(JobLibraryCreation, err)
		}
		o.restoreAndWait(ctx)
		return err
	default:
		if state := o.playbackState(); !state.Resumable() {
			o.logger.Debug().
				Stringer("playback", state).
				Msg("playback advanced, skipping restore")
			return nil
		}
		o.restoreAndWait(ctx)
		return nil
	}
}

func (o *Orchestrator) restoreAndWait(ctx context.Context) {
	j := o.StartRestore(ctx)
	<-j.Done()
	if err := j.Err(); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn().Err(err).Msg("restore after library creation failed")
	}
}

// StartRestore launches a restore-from-persistent job that resolves the
// persisted playback position against the catalogue.
func (o *Orchestrator) StartRestore(ctx context.Context) *Job {
	return o.jobs.Launch(ctx, JobRestore, func(jctx context.Context) error {
		if err := jctx.Err(); err != nil {
			return err
		}
		res, err := library.Restore(o.store, o.registry)
		if err != nil {
			return err
		}
		if res != nil && o.onRestore != nil {
			o.onRestore(res)
		}
		return nil
	})
}

// StartClean launches a clean-persistent job that drops catalogue rows,
// search documents and dangling playback state for storages no longer
// attached.
func (o *Orchestrator) StartClean(ctx context.Context) *Job {
	return o.jobs.Launch(ctx, JobCleanPersistent, func(jctx context.Context) error {
		if err := jctx.Err(); err != nil {
			return err
		}
		_, err := library.Clean(o.store, o.registry, o.search)
		return err
	})
}

// Search runs a catalogue query under the search job slot.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) ([]library.Hit, error) {
	if o.search == nil {
		return nil, errors.New("search index not configured")
	}
	var hits []library.Hit
	j := o.jobs.Launch(ctx, JobSearch, func(jctx context.Context) error {
		if err := jctx.Err(); err != nil {
			return err
		}
		h, err := o.search.Search(query, limit)
		if err != nil {
			return err
		}
		hits = h
		return nil
	})
	if err := j.Join(ctx); err != nil {
		return nil, err
	}
	return hits, nil
}

// LoadChildren lists one directory of a storage as an ad-hoc job, serving
// from the listing cache when possible.
func (o *Orchestrator) LoadChildren(ctx context.Context, storageID, dir string) ([]storage.FileLike, error) {
	if o.listings != nil {
		if entries, ok := o.listings.Get(storageID, dir); ok {
			return entries, nil
		}
	}
	loc, err := o.registry.LocationForID(storageID)
	if err != nil {
		return nil, err
	}

	var entries []storage.FileLike
	j := o.jobs.LaunchAdHoc(ctx, func(jctx context.Context) error {
		if err := jctx.Err(); err != nil {
			return err
		}
		list, err := loc.List(dir)
		if err != nil {
			return err
		}
		entries = list
		return nil
	})
	if err := j.Join(ctx); err != nil {
		return nil, err
	}
	if o.listings != nil {
		o.listings.Put(storageID, dir, entries)
	}
	return entries, nil
}

// CancelAllJobs cancels every tracked job in the fixed slot order.
func (o *Orchestrator) CancelAllJobs() {
	o.jobs.CancelAll()
}

// Apply routes a device event. Removal and watcher errors cancel all jobs
// before the registry tears the storage down, so no job runs against a
// location that is about to vanish.
func (o *Orchestrator) Apply(ev device.Event) {
	switch ev.Type {
	case device.EventDetach, device.EventError:
		o.CancelAllJobs()
	}
	o.registry.Apply(ev)
}

// Eject cancels all jobs and detaches the active storage without removing
// it, the way a user-initiated eject does.
func (o *Orchestrator) Eject() error {
	loc, err := o.registry.PrimaryLocation()
	if err != nil {
		return err
	}
	o.CancelAllJobs()
	o.registry.DetachStorageForDevice(loc.Device())
	o.logger.Info().Str("storage", loc.ID()).Msg("storage ejected")
	return nil
}

// Shutdown performs the suspend/shutdown teardown: it holds the service in
// the foreground while cancelling and draining all jobs, then stops it.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.machine.RequireForeground(ReasonSuspendOrShutdown)
	o.CancelAllJobs()
	err := o.jobs.WaitAll(ctx)
	o.machine.Stop(ReasonSuspendOrShutdown)
	return err
}

// Status is a snapshot of the orchestrator for status surfaces.
type Status struct {
	Priority    string                  `json:"priority"`
	LastStart   string                  `json:"last_start_reason"`
	ActiveJobs  []string                `json:"active_jobs"`
	Storages    []storage.IndexingState `json:"storages"`
	OpenSources int                     `json:"open_sources"`
}

// Status reports the current priority, active jobs and storage states.
func (o *Orchestrator) Status() Status {
	return Status{
		Priority:    o.machine.Priority().String(),
		LastStart:   o.machine.LastStartReason().String(),
		ActiveJobs:  o.jobs.Active(),
		Storages:    o.registry.IndexingStatuses(),
		OpenSources: o.registry.OpenSourceCount(),
	}
}

func (o *Orchestrator) playbackState() PlaybackState {
	if o.playback == nil {
		return PlaybackIdle
	}
	return o.playback.PlaybackState()
}
