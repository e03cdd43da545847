package storage

import (
	"sync"

	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/source"
	"github.com/franz/media-dock/internal/util"
)

// IndexingStatus tracks one storage's indexing cycle. Within one attach it
// only moves forward: NotIndexed -> Indexing -> Completed or Cancelled. A
// fresh attach constructs a fresh location, which is what resets it.
type IndexingStatus int

const (
	StatusNotIndexed IndexingStatus = iota
	StatusIndexing
	StatusCompleted
	StatusCancelled
)

// String returns the status name used in logs and API responses.
func (s IndexingStatus) String() string {
	switch s {
	case StatusIndexing:
		return "indexing"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "not-indexed"
	}
}

// IndexingState is one storage's status snapshot, as reported to hosts.
type IndexingState struct {
	StorageID string         `json:"storage_id"`
	Status    IndexingStatus `json:"status"`
	Detached  bool           `json:"detached"`
}

// Driver is the per-class access capability a location binds to.
// Enumerate is non-recursive; entry paths are slash-separated and relative
// to the storage root.
type Driver interface {
	RootURI() string
	Enumerate(dir string) ([]FileLike, error)
	Open(path string) (source.Handle, error)
	Close() error
}

// Location is the addressable, enumerable, readable view of one attached
// device. The registry constructs one per accepted device and destroys it
// when the device disconnects; everyone else holds references only.
type Location struct {
	id     string
	device device.MediaDevice
	driver Driver

	mu                sync.Mutex
	status            IndexingStatus
	detached          bool
	indexingCancelled bool
}

// NewLocation binds a device to its class driver. The id derives from the
// device identity.
func NewLocation(dev device.MediaDevice, driver Driver) *Location {
	return &Location{
		id:     dev.ID(),
		device: dev,
		driver: driver,
	}
}

// ID returns the stable storage id.
func (l *Location) ID() string {
	return l.id
}

// Device returns the backing device record.
func (l *Location) Device() device.MediaDevice {
	return l.device
}

// RootURI returns the root the driver serves content under.
func (l *Location) RootURI() string {
	return l.driver.RootURI()
}

// List enumerates one directory, non-recursive. Entries carry this
// location's storage id. Fails with ErrDeviceDetached once detached.
func (l *Location) List(dir string) ([]FileLike, error) {
	if l.Detached() {
		return nil, NewTransportError("enumerate", dir, ErrDeviceDetached, true)
	}

	entries, err := l.driver.Enumerate(dir)
	if err != nil {
		return nil, NewTransportError("enumerate", dir, err, util.IsDetachError(err))
	}

	for i := range entries {
		entries[i].StorageID = l.id
	}
	return entries, nil
}

// Open opens a chunk-oriented handle for one entry path.
func (l *Location) Open(path string) (source.Handle, error) {
	if l.Detached() {
		return nil, NewTransportError("open", path, ErrDeviceDetached, true)
	}

	h, err := l.driver.Open(path)
	if err != nil {
		return nil, NewTransportError("open", path, err, util.IsDetachError(err))
	}
	return h, nil
}

// Status returns the current indexing status.
func (l *Location) Status() IndexingStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// State returns the host-facing snapshot of this location.
func (l *Location) State() IndexingState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return IndexingState{StorageID: l.id, Status: l.status, Detached: l.detached}
}

// MarkIndexing moves NotIndexed to Indexing. Later statuses stay where they
// are; the cycle never runs backwards within one attach.
func (l *Location) MarkIndexing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == StatusNotIndexed {
		l.status = StatusIndexing
		return true
	}
	return false
}

// MarkCompleted finishes the cycle from Indexing.
func (l *Location) MarkCompleted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == StatusIndexing {
		l.status = StatusCompleted
		return true
	}
	return false
}

// MarkCancelled finishes the cycle from Indexing.
func (l *Location) MarkCancelled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == StatusIndexing {
		l.status = StatusCancelled
		return true
	}
	return false
}

// CancelIndexing raises the cooperative cancellation flag. Enumerations poll
// it at entry boundaries; nothing is interrupted preemptively. The flag
// stays up for the rest of this attach.
func (l *Location) CancelIndexing() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.indexingCancelled = true
}

// IndexingCancelled reports the cooperative cancellation flag.
func (l *Location) IndexingCancelled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexingCancelled
}

// MarkDetached flags the backing device as gone without destroying the
// record, so in-flight readers observe detachment instead of dangling.
func (l *Location) MarkDetached() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detached = true
}

// Detached reports whether the backing device has disconnected.
func (l *Location) Detached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.detached
}

// Close shuts the driver down. The registry calls this on eviction.
func (l *Location) Close() error {
	return l.driver.Close()
}
