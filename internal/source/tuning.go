package source

import (
	"fmt"

	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/util"
)

// Tuning holds the read parameters one device class gets.
type Tuning struct {
	ChunkSize   int               // transport chunk size for data sources
	Concurrency int               // suggested parallel readers on this class
	Retry       *util.RetryConfig // retry posture for open/enumerate calls
}

// TuneFor returns the tuning for a device class. Mass-storage mounts take
// large chunks and tolerate parallel readers; chunk-protocol transports get
// small chunks and a single reader, since their firmware serialises access
// anyway and concurrent sessions starve each other.
func TuneFor(class device.Class) Tuning {
	switch class {
	case device.ClassMassStorage:
		return Tuning{
			ChunkSize:   128 * 1024,
			Concurrency: 4,
			Retry:       util.DefaultRetryConfig(),
		}
	case device.ClassMediaTransfer:
		return Tuning{
			ChunkSize:   16 * 1024,
			Concurrency: 1,
			Retry:       util.RemovableRetryConfig(),
		}
	default:
		return Tuning{
			ChunkSize:   DefaultChunkSize,
			Concurrency: 2,
			Retry:       util.DefaultRetryConfig(),
		}
	}
}

// Describe returns a human-readable rendering of a tuning, for doctor output.
func (t Tuning) Describe() string {
	return fmt.Sprintf("chunk %dKB, %d reader(s), %d retries",
		t.ChunkSize/1024, t.Concurrency, t.Retry.MaxAttempts)
}
