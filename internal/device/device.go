package device

import (
	"fmt"

	"github.com/franz/media-dock/internal/util"
)

// Class partitions attached devices by how their contents are accessed.
type Class int

const (
	ClassUnknown Class = iota
	// ClassMassStorage is a device exposed as a mounted filesystem.
	ClassMassStorage
	// ClassMediaTransfer is a device reachable only through a chunk-oriented
	// transfer protocol, with no mounted filesystem.
	ClassMediaTransfer
)

// String returns the class name used in logs and event records.
func (c Class) String() string {
	switch c {
	case ClassMassStorage:
		return "mass-storage"
	case ClassMediaTransfer:
		return "media-transfer"
	default:
		return "unknown"
	}
}

// MediaDevice identifies one attached device. Values are immutable once
// constructed; the registry references them for the attached lifetime.
type MediaDevice struct {
	Vendor string
	Serial string
	Class  Class
	Name   string
}

// ID returns the stable storage id derived from the device identity.
// The same physical device maps to the same id across attach cycles.
func (d MediaDevice) ID() string {
	return util.StorageID(d.Vendor, d.Serial)
}

// SameIdentity reports whether two device records describe the same
// physical unit, regardless of class or display name.
func (d MediaDevice) SameIdentity(other MediaDevice) bool {
	return d.Vendor == other.Vendor && d.Serial == other.Serial
}

func (d MediaDevice) String() string {
	return fmt.Sprintf("%s [%s %s]", d.Name, d.Class, d.ID())
}
