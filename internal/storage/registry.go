package storage

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/source"
)

// NotificationType discriminates storage-set changes.
type NotificationType int

const (
	StorageAdded NotificationType = iota
	StorageRemoved
)

func (t NotificationType) String() string {
	switch t {
	case StorageAdded:
		return "added"
	case StorageRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Notification tells observers about one storage-set change. A removal with
// an empty StorageID means every known storage is gone. Location is set on
// additions and on removals of a known storage, so observers can still query
// it while reacting.
type Notification struct {
	Type      NotificationType
	StorageID string
	Location  *Location
}

// Observer receives storage notifications. Observers run synchronously on
// the mutating call, in registration order, and must not call back into the
// registry.
type Observer func(Notification)

// DriverFactory builds the class driver for an accepted device.
type DriverFactory func(dev device.MediaDevice, root string) (Driver, error)

// Registry owns the set of attached devices and their storage locations.
// Policy is one active slot: accepting a device evicts whatever held the
// slot before. Open data sources live in their own arena with a separate
// lock, so closing them never contends with storage lookups.
type Registry struct {
	mu        sync.Mutex
	slot      *Location
	observers []Observer
	factories map[device.Class]DriverFactory

	srcMu   sync.Mutex
	sources map[uint64]*trackedSource
	nextSrc uint64

	logger zerolog.Logger
}

type trackedSource struct {
	storageID string
	src       *source.ChunkedSource
}

// NewRegistry creates an empty registry. Drivers are registered per device
// class before the first attach.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[device.Class]DriverFactory),
		sources:   make(map[uint64]*trackedSource),
		logger:    log.WithComponent("registry"),
	}
}

// RegisterDriver installs the factory used for devices of one class.
func (r *Registry) RegisterDriver(class device.Class, f DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[class] = f
}

// Subscribe registers an observer. Registration order is invocation order.
func (r *Registry) Subscribe(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// AddDevice accepts a device and installs its storage location in the slot.
// An occupied slot is evicted first: its removal is announced, its sources
// are closed, then the new location is announced.
func (r *Registry) AddDevice(dev device.MediaDevice, root string) (*Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[dev.Class]
	if !ok {
		return nil, fmt.Errorf("no driver registered for device class %s", dev.Class)
	}

	driver, err := factory(dev, root)
	if err != nil {
		return nil, fmt.Errorf("driver for %s: %w", dev, err)
	}

	if r.slot != nil {
		r.evictLocked()
	}

	loc := NewLocation(dev, driver)
	r.slot = loc
	r.logger.Info().
		Str("storage", loc.ID()).
		Str("device", dev.String()).
		Str("root", root).
		Msg("storage added")
	r.notifyLocked(Notification{Type: StorageAdded, StorageID: loc.ID(), Location: loc})
	return loc, nil
}

// RemoveDevice handles a disconnect. A device matching the slot is evicted
// with its real id. An unknown device means the device set is out of sync,
// so every storage is treated as gone.
func (r *Registry) RemoveDevice(dev device.MediaDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot != nil && r.slot.Device().SameIdentity(dev) {
		r.evictLocked()
		return
	}
	r.removeAllLocked()
}

// RemoveAll drops every storage. Used when the watcher loses track of the
// device set and on shutdown.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeAllLocked()
}

// DetachStorageForDevice flags the matching location as detached without
// removing it. In-flight operations observe the flag and fail cleanly; the
// registry entry stays until the disconnect arrives.
func (r *Registry) DetachStorageForDevice(dev device.MediaDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot == nil || !r.slot.Device().SameIdentity(dev) {
		return
	}
	r.slot.MarkDetached()
	r.logger.Info().Str("storage", r.slot.ID()).Msg("storage detached")
}

// LocationForID resolves one storage id.
func (r *Registry) LocationForID(id string) (*Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot != nil && r.slot.ID() == id {
		return r.slot, nil
	}
	return nil, &UnknownStorageError{ID: id}
}

// PrimaryLocation returns the active storage location, if any.
func (r *Registry) PrimaryLocation() (*Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot == nil {
		return nil, ErrNoStorage
	}
	return r.slot, nil
}

// Locations snapshots the registered locations.
func (r *Registry) Locations() []*Location {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot == nil {
		return nil
	}
	return []*Location{r.slot}
}

// StorageIDs snapshots the registered storage ids.
func (r *Registry) StorageIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot == nil {
		return nil
	}
	return []string{r.slot.ID()}
}

// IndexingStatuses reports the indexing state of every registered storage.
func (r *Registry) IndexingStatuses() []IndexingState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot == nil {
		return nil
	}
	return []IndexingState{r.slot.State()}
}

// OpenSource opens a tracked chunked data source for one entry. Chunk size
// follows the device class. Sources close automatically when their storage
// leaves the registry.
func (r *Registry) OpenSource(storageID, path string) (*source.ChunkedSource, error) {
	loc, err := r.LocationForID(storageID)
	if err != nil {
		return nil, err
	}

	h, err := loc.Open(path)
	if err != nil {
		return nil, err
	}
	tuning := source.TuneFor(loc.Device().Class)

	r.srcMu.Lock()
	id := r.nextSrc
	r.nextSrc++
	src := source.NewChunked(source.Config{
		Handle:    h,
		ChunkSize: tuning.ChunkSize,
		OnClose:   func() { r.dropSource(id) },
	})
	r.sources[id] = &trackedSource{storageID: storageID, src: src}
	r.srcMu.Unlock()

	return src, nil
}

// OpenSourceCount reports how many tracked sources are currently open.
func (r *Registry) OpenSourceCount() int {
	r.srcMu.Lock()
	defer r.srcMu.Unlock()
	return len(r.sources)
}

// Apply routes one watcher event into the registry.
func (r *Registry) Apply(ev device.Event) {
	switch ev.Type {
	case device.EventAttach:
		if _, err := r.AddDevice(ev.Device, ev.Root); err != nil {
			r.logger.Warn().Err(err).Str("device", ev.Device.String()).Msg("device rejected")
		}
	case device.EventDetach:
		r.RemoveDevice(ev.Device)
	case device.EventError:
		r.logger.Error().Str("cause", ev.Err).Msg("device watcher failed, dropping all storages")
		r.RemoveAll()
	}
}

// evictLocked announces removal of the slot holder, then tears it down.
// Announce-before-clear lets observers query the location on its way out.
func (r *Registry) evictLocked() {
	loc := r.slot
	r.notifyLocked(Notification{Type: StorageRemoved, StorageID: loc.ID(), Location: loc})
	loc.MarkDetached()
	r.closeSourcesFor(loc.ID())
	if err := loc.Close(); err != nil {
		r.logger.Warn().Err(err).Str("storage", loc.ID()).Msg("closing storage driver failed")
	}
	r.slot = nil
	r.logger.Info().Str("storage", loc.ID()).Msg("storage removed")
}

func (r *Registry) removeAllLocked() {
	r.notifyLocked(Notification{Type: StorageRemoved, StorageID: ""})
	if r.slot != nil {
		loc := r.slot
		loc.MarkDetached()
		r.closeSourcesFor("")
		if err := loc.Close(); err != nil {
			r.logger.Warn().Err(err).Str("storage", loc.ID()).Msg("closing storage driver failed")
		}
		r.slot = nil
	} else {
		r.closeSourcesFor("")
	}
	r.logger.Info().Msg("all storages removed")
}

func (r *Registry) notifyLocked(n Notification) {
	for _, obs := range r.observers {
		obs(n)
	}
}

func (r *Registry) dropSource(id uint64) {
	r.srcMu.Lock()
	defer r.srcMu.Unlock()
	delete(r.sources, id)
}

// closeSourcesFor closes tracked sources belonging to one storage, or all
// of them for the empty id. Closing happens outside srcMu because Close
// re-enters dropSource through OnClose.
func (r *Registry) closeSourcesFor(storageID string) {
	r.srcMu.Lock()
	var victims []*source.ChunkedSource
	for id, t := range r.sources {
		if storageID == "" || t.storageID == storageID {
			victims = append(victims, t.src)
			delete(r.sources, id)
		}
	}
	r.srcMu.Unlock()

	for _, s := range victims {
		s.Close()
	}
}
