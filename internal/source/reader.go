package source

import (
	"errors"
	"fmt"
	"io"
)

// ErrSourceFailed is returned by Reader once the underlying source has
// entered its error state.
var ErrSourceFailed = errors.New("data source failed")

// Reader adapts a ChunkedSource to io.ReadSeeker so stream-oriented
// consumers (metadata parsers, decoders) can work over chunked transports.
// It does not own the source; closing stays with the source's owner.
type Reader struct {
	src  *ChunkedSource
	pos  int64
	size int64
}

// NewReader wraps src. The size is captured once; a source that fails later
// surfaces ErrSourceFailed from Read.
func NewReader(src *ChunkedSource) *Reader {
	return &Reader{src: src, size: src.Size()}
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos >= r.size {
		return 0, io.EOF
	}

	n := r.src.ReadAt(r.pos, p, 0, len(p))
	if n < 0 {
		return 0, fmt.Errorf("read at %d: %w", r.pos, ErrSourceFailed)
	}
	if n == 0 {
		// Closed underneath us, or nothing left despite the cached size.
		return 0, io.EOF
	}
	r.pos += int64(n)
	return n, nil
}

func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = r.pos + offset
	case io.SeekEnd:
		next = r.size + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek: negative position %d", next)
	}
	r.pos = next
	return next, nil
}
