package source

// Handle is one open, chunk-oriented transport connection to a file on a
// device. ReadChunk must fill buf completely unless the read overlaps end of
// file; a shorter read is reported as an error by the caller. Length is the
// byte length known at open time. Implementations need not be safe for
// concurrent use; ChunkedSource serialises access.
type Handle interface {
	ReadChunk(start int64, buf []byte) (int, error)
	Length() int64
	Close() error
}
