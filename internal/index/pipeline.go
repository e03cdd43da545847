// Package index walks attached storages and streams the audio files found.
package index

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/storage"
)

// DefaultBuffer is the capacity of a run's output channel.
const DefaultBuffer = 64

// Options tune one indexing run.
type Options struct {
	// Buffer overrides the output channel capacity.
	Buffer int
	// Progress, when set, is invoked at file boundaries from the walking
	// goroutine.
	Progress func(Progress)
}

// Progress is a point-in-time view of a running pass.
type Progress struct {
	StorageID string
	Dirs      int
	Files     int
	Audio     int
}

// Stats summarises a finished pass.
type Stats struct {
	Storages int
	Dirs     int
	Files    int
	Audio    int
	Skipped  int
	Elapsed  time.Duration
}

// Pipeline produces indexing runs over registered storages.
type Pipeline struct {
	registry *storage.Registry
	logger   zerolog.Logger

	mu   sync.Mutex
	runs map[*Run]struct{}
}

// NewPipeline creates a pipeline backed by the registry.
func NewPipeline(reg *storage.Registry) *Pipeline {
	return &Pipeline{
		registry: reg,
		logger:   log.WithComponent("index"),
		runs:     make(map[*Run]struct{}),
	}
}

// Run is one indexing pass. Files delivers results while the pass runs;
// after it closes, Wait and Stats report the outcome. A consumer that stops
// draining must cancel the run, or the producer stays blocked.
type Run struct {
	files  chan storage.AudioFile
	done   chan struct{}
	cancel context.CancelFunc

	stats Stats
	err   error
}

// Files is the stream of discovered audio files, closed when the pass ends.
func (r *Run) Files() <-chan storage.AudioFile {
	return r.files
}

// Cancel requests cooperative termination of this run.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the pass has ended and returns its error, if any.
// Cancellation surfaces as context.Canceled.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Stats blocks until the pass has ended and returns its counters.
func (r *Run) Stats() Stats {
	<-r.done
	return r.stats
}

// IndexStorages starts a pass over the given storages, in the given order.
// Every id is resolved before any work starts; one unknown id fails the
// whole call. Storages are drained strictly one after another, so the
// stream groups files by storage in argument order.
func (p *Pipeline) IndexStorages(ctx context.Context, ids []string, opts Options) (*Run, error) {
	locs := make([]*storage.Location, 0, len(ids))
	for _, id := range ids {
		loc, err := p.registry.LocationForID(id)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return p.IndexLocations(ctx, locs, opts), nil
}

// IndexLocations starts a pass over already-resolved locations.
func (p *Pipeline) IndexLocations(ctx context.Context, locs []*storage.Location, opts Options) *Run {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		files:  make(chan storage.AudioFile, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	p.mu.Lock()
	p.runs[r] = struct{}{}
	p.mu.Unlock()

	go p.produce(runCtx, r, locs, opts)
	return r
}

// Cancel terminates every in-flight run and flags every registered storage,
// so the cancellation outlives the runs themselves. Safe to call repeatedly.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	for r := range p.runs {
		r.cancel()
	}
	p.mu.Unlock()

	for _, loc := range p.registry.Locations() {
		loc.CancelIndexing()
	}
	p.logger.Debug().Msg("indexing cancelled")
}

// Active reports how many runs are currently in flight.
func (p *Pipeline) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runs)
}

func (p *Pipeline) produce(ctx context.Context, r *Run, locs []*storage.Location, opts Options) {
	started := time.Now()
	defer func() {
		r.stats.Elapsed = time.Since(started)
		close(r.files)

		p.mu.Lock()
		delete(p.runs, r)
		p.mu.Unlock()

		r.cancel()
		close(r.done)

		p.logger.Info().
			Int("storages", r.stats.Storages).
			Int("dirs", r.stats.Dirs).
			Int("files", r.stats.Files).
			Int("audio", r.stats.Audio).
			Dur("elapsed", r.stats.Elapsed).
			Err(r.err).
			Msg("indexing pass finished")
	}()

	for _, loc := range locs {
		r.stats.Storages++
		loc.MarkIndexing()

		err := p.walk(ctx, r, loc, "", opts)
		if err == nil {
			loc.MarkCompleted()
			continue
		}

		loc.MarkCancelled()
		r.err = err
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn().Err(err).Str("storage", loc.ID()).Msg("indexing aborted")
		}
		return
	}
}

// walk recurses through one directory. Cancellation is observed at
// directory and file boundaries only; a read already under way finishes.
func (p *Pipeline) walk(ctx context.Context, r *Run, loc *storage.Location, dir string, opts Options) error {
	if err := checkpoint(ctx, loc); err != nil {
		return err
	}

	entries, err := loc.List(dir)
	if err != nil {
		return err
	}
	r.stats.Dirs++

	for _, entry := range entries {
		if err := checkpoint(ctx, loc); err != nil {
			return err
		}

		if entry.Dir {
			if err := p.walk(ctx, r, loc, entry.Path, opts); err != nil {
				return err
			}
			continue
		}

		r.stats.Files++
		if !storage.IsAudioFile(entry.Name) {
			r.stats.Skipped++
			continue
		}
		r.stats.Audio++

		select {
		case r.files <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}

		if opts.Progress != nil {
			opts.Progress(Progress{
				StorageID: loc.ID(),
				Dirs:      r.stats.Dirs,
				Files:     r.stats.Files,
				Audio:     r.stats.Audio,
			})
		}
	}
	return nil
}

func checkpoint(ctx context.Context, loc *storage.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if loc.IndexingCancelled() {
		return context.Canceled
	}
	return nil
}
