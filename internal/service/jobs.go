package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/log"
)

// Named job slots. Each holds at most one running job; launching a new one
// replaces the slot while the old job keeps running until it observes its
// cancelled context.
const (
	JobIndexing        = "indexing"
	JobLibraryBuild    = "library-build"
	JobRestore         = "restore-from-persistent"
	JobCleanPersistent = "clean-persistent"
	JobLibraryCreation = "library-creation"
	JobSearch          = "search"
)

// cancelOrder is the order CancelAll walks the named slots in. Ad-hoc
// load-children jobs are cancelled after all named ones.
var cancelOrder = []string{
	JobIndexing,
	JobLibraryBuild,
	JobRestore,
	JobCleanPersistent,
	JobLibraryCreation,
	JobSearch,
}

// Job is one tracked unit of background work with an explicit cancellation
// token.
type Job struct {
	name   string
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Name returns the slot name the job runs under.
func (j *Job) Name() string { return j.name }

// ID returns the job's identifier: the slot name for named jobs, a
// generated id for ad-hoc ones.
func (j *Job) ID() string { return j.id }

// Cancel signals the job's context. The job keeps running until its
// function returns.
func (j *Job) Cancel() { j.cancel() }

// Done is closed when the job's function has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job's final error. Valid only after Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Join blocks until the job ends or ctx is done. On a normal join it
// returns the job's own error.
func (j *Job) Join(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs tracks the named singleton jobs plus the ad-hoc load-children jobs
// spawned per browse request.
type Jobs struct {
	mu     sync.Mutex
	named  map[string]*Job
	adhoc  map[string]*Job
	logger zerolog.Logger
}

// NewJobs returns an empty job registry.
func NewJobs() *Jobs {
	return &Jobs{
		named:  make(map[string]*Job),
		adhoc:  make(map[string]*Job),
		logger: log.WithComponent("jobs"),
	}
}

// Launch runs fn under the named slot and returns the tracked job. The
// slot is released when fn returns; a job displaced from its slot by a
// newer launch finishes on its own without being tracked further.
func (js *Jobs) Launch(ctx context.Context, name string, fn func(context.Context) error) *Job {
	jctx, cancel := context.WithCancel(ctx)
	j := &Job{name: name, id: name, cancel: cancel, done: make(chan struct{})}

	js.mu.Lock()
	js.named[name] = j
	js.mu.Unlock()

	js.logger.Debug().Str("job", name).Msg("job started")
	go js.run(j, jctx, fn, js.releaseNamed)
	return j
}

// LaunchAdHoc runs fn as a load-children job with a generated id.
func (js *Jobs) LaunchAdHoc(ctx context.Context, fn func(context.Context) error) *Job {
	jctx, cancel := context.WithCancel(ctx)
	j := &Job{name: "load-children", id: uuid.NewString(), cancel: cancel, done: make(chan struct{})}

	js.mu.Lock()
	js.adhoc[j.id] = j
	js.mu.Unlock()

	js.logger.Debug().Str("job", j.name).Str("id", j.id).Msg("job started")
	go js.run(j, jctx, fn, js.releaseAdHoc)
	return j
}

func (js *Jobs) run(j *Job, ctx context.Context, fn func(context.Context) error, release func(*Job)) {
	j.err = fn(ctx)
	j.cancel()
	release(j)
	close(j.done)
	if j.err != nil {
		js.logger.Debug().Str("job", j.name).Err(j.err).Msg("job ended")
	} else {
		js.logger.Debug().Str("job", j.name).Msg("job ended")
	}
}

func (js *Jobs) releaseNamed(j *Job) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.named[j.name] == j {
		delete(js.named, j.name)
	}
}

func (js *Jobs) releaseAdHoc(j *Job) {
	js.mu.Lock()
	defer js.mu.Unlock()
	delete(js.adhoc, j.id)
}

// Get returns the job currently holding the named slot, or nil.
func (js *Jobs) Get(name string) *Job {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.named[name]
}

// CancelAll cancels every tracked job: the named slots in cancelOrder,
// then all ad-hoc jobs. It does not wait for them to finish.
func (js *Jobs) CancelAll() {
	js.mu.Lock()
	victims := make([]*Job, 0, len(js.named)+len(js.adhoc))
	for _, name := range cancelOrder {
		if j := js.named[name]; j != nil {
			victims = append(victims, j)
		}
	}
	for _, j := range js.adhoc {
		victims = append(victims, j)
	}
	js.mu.Unlock()

	if len(victims) == 0 {
		return
	}
	js.logger.Info().Int("jobs", len(victims)).Msg("cancelling all jobs")
	for _, j := range victims {
		j.Cancel()
	}
}

// WaitAll blocks until every job tracked at call time has ended or ctx is
// done.
func (js *Jobs) WaitAll(ctx context.Context) error {
	js.mu.Lock()
	all := make([]*Job, 0, len(js.named)+len(js.adhoc))
	for _, j := range js.named {
		all = append(all, j)
	}
	for _, j := range js.adhoc {
		all = append(all, j)
	}
	js.mu.Unlock()

	for _, j := range all {
		select {
		case <-j.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Active returns the names of all running jobs, named slots first.
func (js *Jobs) Active() []string {
	js.mu.Lock()
	defer js.mu.Unlock()
	names := make([]string, 0, len(js.named)+len(js.adhoc))
	for _, name := range cancelOrder {
		if js.named[name] != nil {
			names = append(names, name)
		}
	}
	for _, j := range js.adhoc {
		names = append(names, j.name+":"+j.id)
	}
	return names
}
