package library

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/media-dock/internal/index"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/storage"
	"github.com/franz/media-dock/internal/util"
)

const searchBatchSize = 256

// BuilderConfig wires a Builder.
type BuilderConfig struct {
	Store    *Store
	Registry *storage.Registry
	Pipeline *index.Pipeline
	Search   *SearchIndex // optional
	Workers  int
}

// Builder turns one storage's indexing stream into catalogue rows. Workers
// extract concurrently; a single goroutine owns all catalogue writes.
type Builder struct {
	store    *Store
	registry *storage.Registry
	pipeline *index.Pipeline
	search   *SearchIndex
	workers  int
	logger   zerolog.Logger
}

// NewBuilder creates a builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Builder{
		store:    cfg.Store,
		registry: cfg.Registry,
		pipeline: cfg.Pipeline,
		search:   cfg.Search,
		workers:  cfg.Workers,
		logger:   log.WithComponent("library"),
	}
}

// BuildResult summarises one build.
type BuildResult struct {
	StorageID  string
	Discovered int
	Catalogued int
	CacheHits  int
	TagMisses  int
	Failed     int
	Cancelled  bool
	Elapsed    time.Duration
}

// Build catalogues every audio file of one storage. Cancellation surfaces
// as context.Canceled with Cancelled set; rows written before the cut stay,
// but the storage is only marked indexed on a complete pass.
func (b *Builder) Build(ctx context.Context, storageID string) (*BuildResult, error) {
	loc, err := b.registry.LocationForID(storageID)
	if err != nil {
		return nil, err
	}

	dev := loc.Device()
	err = b.store.TouchStorage(&StorageRecord{
		StorageID: storageID,
		Vendor:    dev.Vendor,
		Serial:    dev.Serial,
		Name:      dev.Name,
		RootURI:   loc.RootURI(),
	})
	if err != nil {
		return nil, err
	}

	run, err := b.pipeline.IndexStorages(ctx, []string{storageID}, index.Options{})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result := &BuildResult{StorageID: storageID}
	b.logger.Info().Str("storage", storageID).Msg("library build started")

	var discovered, cacheHits, tagMisses, failed atomic.Int64
	tracks := make(chan *Track, b.workers*2)

	// All SQLite writes and search-index updates funnel through here.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		var batch []*Track
		flush := func() {
			if b.search == nil || len(batch) == 0 {
				return
			}
			if err := b.search.IndexBatch(batch); err != nil {
				b.logger.Warn().Err(err).Msg("failed to update search index")
			}
			batch = batch[:0]
		}
		for t := range tracks {
			if err := b.store.UpsertTrack(t); err != nil {
				failed.Add(1)
				b.logger.Error().Err(err).Str("path", t.Path).Msg("failed to catalogue track")
				continue
			}
			result.Catalogued++
			if b.search != nil {
				batch = append(batch, t)
				if len(batch) >= searchBatchSize {
					flush()
				}
			}
		}
		flush()
	}()

	workers := pool.New().WithMaxGoroutines(b.workers)
	for f := range run.Files() {
		f := f
		discovered.Add(1)
		workers.Go(func() {
			t, hit, err := b.extractOne(f)
			if err != nil {
				failed.Add(1)
				b.logger.Warn().Err(err).Str("path", f.Path).Msg("failed to extract track")
				return
			}
			if hit {
				cacheHits.Add(1)
			}
			if !t.FromTags {
				tagMisses.Add(1)
			}
			tracks <- t
		})
	}
	workers.Wait()
	close(tracks)
	<-writerDone

	runErr := run.Wait()

	result.Discovered = int(discovered.Load())
	result.CacheHits = int(cacheHits.Load())
	result.TagMisses = int(tagMisses.Load())
	result.Failed = int(failed.Load())
	result.Elapsed = time.Since(started)

	switch {
	case runErr == nil:
		count, err := b.store.CountTracks(storageID)
		if err == nil {
			if err := b.store.MarkStorageIndexed(storageID, count); err != nil {
				b.logger.Warn().Err(err).Msg("failed to mark storage indexed")
			}
		}
		b.logger.Info().
			Str("storage", storageID).
			Int("discovered", result.Discovered).
			Int("catalogued", result.Catalogued).
			Int("cache_hits", result.CacheHits).
			Dur("elapsed", result.Elapsed).
			Msg("library build finished")
		return result, nil

	case errors.Is(runErr, context.Canceled):
		result.Cancelled = true
		b.logger.Info().
			Str("storage", storageID).
			Int("catalogued", result.Catalogued).
			Msg("library build cancelled")
		return result, runErr

	default:
		b.logger.Error().Err(runErr).Str("storage", storageID).Msg("library build failed")
		return result, runErr
	}
}

// extractOne resolves one discovered file into a Track, consulting the
// extraction cache before touching the device.
func (b *Builder) extractOne(f storage.FileLike) (*Track, bool, error) {
	ref := util.TrackRef(f.StorageID, f.Path)
	key := util.CacheKey(ref, f.Size, f.ModTime.Unix())

	if meta, ok := b.store.CachedMeta(key); ok {
		return trackFrom(f, ref, meta), true, nil
	}

	src, err := b.registry.OpenSource(f.StorageID, f.Path)
	if err != nil {
		return nil, false, err
	}
	defer src.Close()

	meta := ExtractMeta(src, f)
	b.store.StoreMeta(key, ref, meta)
	return trackFrom(f, ref, meta), false, nil
}

func trackFrom(f storage.FileLike, ref string, meta *TrackMeta) *Track {
	return &Track{
		Ref:         ref,
		StorageID:   f.StorageID,
		Path:        f.Path,
		Name:        f.Name,
		SizeBytes:   f.Size,
		MtimeUnix:   f.ModTime.Unix(),
		Title:       meta.Title,
		Artist:      meta.Artist,
		Album:       meta.Album,
		AlbumArtist: meta.AlbumArtist,
		Genre:       meta.Genre,
		Year:        meta.Year,
		TrackNo:     meta.TrackNo,
		TrackTotal:  meta.TrackTotal,
		DiscNo:      meta.DiscNo,
		DiscTotal:   meta.DiscTotal,
		Format:      meta.Format,
		FromTags:    meta.FromTags,
	}
}
