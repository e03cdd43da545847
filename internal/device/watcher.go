package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/log"
)

// EventType discriminates watcher notifications.
type EventType int

const (
	// EventAttach announces a newly available device together with its root path.
	EventAttach EventType = iota
	// EventDetach announces a disconnected device by identity.
	EventDetach
	// EventError signals a watcher failure; consumers must treat every known
	// storage as gone.
	EventError
)

// String returns the event type name used in logs.
func (t EventType) String() string {
	switch t {
	case EventAttach:
		return "attach"
	case EventDetach:
		return "detach"
	default:
		return "error"
	}
}

// Event is one attach/detach/error notification.
type Event struct {
	Type   EventType
	Device MediaDevice
	Root   string // mount path, set on attach
	Err    string // failure description, set on error
}

// WatcherConfig holds mount watcher configuration.
type WatcherConfig struct {
	// Root is the directory whose subdirectories are candidate mounts
	// (e.g. /media/usb or /run/media/<user>).
	Root string
	// Settle is how long to wait after a directory appears before probing it,
	// so an in-progress mount can finish.
	Settle time.Duration
	// Probe decides whether a directory is an attached device. Defaults to
	// ProbeMassStorage.
	Probe func(path string) (MediaDevice, bool)
}

// Watcher turns filesystem events under a mounts directory into device
// attach/detach events. It does not poll; consumers read Events until the
// run context ends.
type Watcher struct {
	cfg    WatcherConfig
	fsw    *fsnotify.Watcher
	events chan Event
	logger zerolog.Logger
}

// NewWatcher creates a watcher over cfg.Root. The directory must exist.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("watcher root is required")
	}
	if cfg.Settle == 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	if cfg.Probe == nil {
		cfg.Probe = ProbeMassStorage
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(cfg.Root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.Root, err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		events: make(chan Event, 16),
		logger: log.WithComponent("device"),
	}, nil
}

// Events returns the notification channel. It is never closed; stop reading
// when the Run context ends.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run watches until ctx is cancelled. Mounts already present under the root
// are announced before any filesystem event is processed.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.fsw.Close()
	}()

	// settled receives candidate paths whose settle timer has fired.
	settled := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	known := make(map[string]MediaDevice)

	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	w.announceExisting(ctx, known)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("event", "watcher.stopped").Msg("mount watcher stopped")
			return nil

		case path := <-settled:
			delete(timers, path)
			w.probeAndAttach(ctx, path, known)

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			path := event.Name
			if filepath.Dir(path) != filepath.Clean(w.cfg.Root) {
				continue
			}

			if event.Has(fsnotify.Create) {
				// Debounce: the automounter may still be wiring the mount up.
				if t, exists := timers[path]; exists {
					t.Stop()
				}
				p := path
				timers[path] = time.AfterFunc(w.cfg.Settle, func() {
					select {
					case settled <- p:
					case <-ctx.Done():
					}
				})
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if t, exists := timers[path]; exists {
					t.Stop()
					delete(timers, path)
				}
				if dev, exists := known[path]; exists {
					delete(known, path)
					w.logger.Info().
						Str("event", "device.detach").
						Str("device", dev.String()).
						Msg("device disconnected")
					w.emit(ctx, Event{Type: EventDetach, Device: dev})
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Str("event", "watcher.error").Msg("mount watcher error")
			w.emit(ctx, Event{Type: EventError, Err: err.Error()})
		}
	}
}

// announceExisting emits attach events for mounts present before Run started.
func (w *Watcher) announceExisting(ctx context.Context, known map[string]MediaDevice) {
	entries, err := os.ReadDir(w.cfg.Root)
	if err != nil {
		w.logger.Warn().Err(err).Str("root", w.cfg.Root).Msg("cannot scan existing mounts")
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		w.probeAndAttach(ctx, filepath.Join(w.cfg.Root, entry.Name()), known)
	}
}

func (w *Watcher) probeAndAttach(ctx context.Context, path string, known map[string]MediaDevice) {
	if _, exists := known[path]; exists {
		return
	}
	dev, ok := w.cfg.Probe(path)
	if !ok {
		w.logger.Debug().Str("path", path).Msg("directory is not an attached device")
		return
	}
	known[path] = dev
	w.logger.Info().
		Str("event", "device.attach").
		Str("device", dev.String()).
		Str("root", path).
		Msg("device attached")
	w.emit(ctx, Event{Type: EventAttach, Device: dev, Root: path})
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}
