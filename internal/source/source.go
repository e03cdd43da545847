package source

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/log"
)

// DefaultChunkSize is used when no per-class tuning applies.
const DefaultChunkSize = 64 * 1024

// Config holds chunked-source configuration.
type Config struct {
	Handle    Handle
	ChunkSize int
	// OnClose is invoked exactly once when the source gives up its handle,
	// whichever path releases it. Used by the registry to drop the source
	// from its tracking arena.
	OnClose func()
}

// ChunkedSource serves arbitrary byte ranges over a transport that only
// reads fixed-size chunks efficiently. One instance is bound to exactly one
// open handle. Once closed or failed it is permanently inert; the flags are
// never cleared.
type ChunkedSource struct {
	mu      sync.Mutex
	handle  Handle
	scratch []byte // reusable chunk buffer
	chunk   int
	length  int64
	closed  bool
	hasErr  bool
	lastErr error
	onClose func()
	logger  zerolog.Logger
}

// NewChunked binds a source to an already-open handle.
func NewChunked(cfg Config) *ChunkedSource {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	s := &ChunkedSource{
		handle:  cfg.Handle,
		scratch: make([]byte, cfg.ChunkSize),
		chunk:   cfg.ChunkSize,
		onClose: cfg.OnClose,
		logger:  log.WithComponent("source"),
	}
	if cfg.Handle != nil {
		s.length = cfg.Handle.Length()
	}
	return s
}

// ChunkSize returns the fixed transport chunk size.
func (s *ChunkedSource) ChunkSize() int {
	return s.chunk
}

// Size returns the handle's cached length, or 0 once the source is unbound.
func (s *ChunkedSource) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.length
}

// Err returns the failure that moved the source into its error state, if any.
func (s *ChunkedSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ReadAt fills buf[offset:offset+size] with bytes starting at position.
// It returns the number of bytes read, 0 when the source is closed or the
// file is empty, and -1 once the source is in its error state or a transport
// read fails. The requested range is satisfied by reading chunk-aligned
// windows into the scratch buffer and copying the usable remainder out.
func (s *ChunkedSource) ReadAt(position int64, buf []byte, offset, size int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.hasErr || s.length <= 0 {
		if s.hasErr {
			return -1
		}
		return 0
	}

	n := size
	if remaining := s.length - position; int64(n) > remaining {
		n = int(remaining)
	}
	if n <= 0 {
		return 0
	}

	need := n
	out := offset
	start := position - (position % int64(s.chunk))

	for need > 0 {
		chunkLen := s.chunk
		if remain := s.length - start; int64(chunkLen) > remain {
			chunkLen = int(remain)
		}

		read, err := s.handle.ReadChunk(start, s.scratch[:chunkLen])
		if err != nil {
			s.fail(err, start)
			return -1
		}
		if read < chunkLen {
			// A short chunk mid-stream means the device state is
			// inconsistent; a graceful partial return would hide it.
			s.fail(errShortChunk{at: start, want: chunkLen, got: read}, start)
			return -1
		}

		skip := 0
		if start < position {
			skip = int(position - start)
		}
		usable := read - skip
		if usable > need {
			usable = need
		}
		copy(buf[out:out+usable], s.scratch[skip:skip+usable])

		out += usable
		need -= usable
		start += int64(s.chunk)
	}

	return n
}

// Close releases the handle. When the source is already closed or failed it
// merely drops the reference; closing an already-invalid handle on some
// transports raises. A close failure marks the source failed but is never
// propagated.
func (s *ChunkedSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}
	h := s.handle
	s.handle = nil

	if !s.closed && !s.hasErr {
		s.closed = true
		if err := h.Close(); err != nil {
			s.hasErr = true
			s.lastErr = err
			s.logger.Error().Err(err).Msg("closing source handle failed")
		}
	}

	if s.onClose != nil {
		cb := s.onClose
		s.onClose = nil
		cb()
	}
}

func (s *ChunkedSource) fail(err error, at int64) {
	s.hasErr = true
	s.lastErr = err
	s.logger.Error().Err(err).Int64("chunk_start", at).Msg("chunk read failed")
}

type errShortChunk struct {
	at   int64
	want int
	got  int
}

func (e errShortChunk) Error() string {
	return fmt.Sprintf("short chunk read at %d: got %d of %d bytes", e.at, e.got, e.want)
}
