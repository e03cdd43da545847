package util

import (
	"crypto/sha1"
	"fmt"
	"strings"
)

// StorageID derives a stable id for a device from its vendor/serial identity.
// The same physical device always maps to the same id across attach cycles.
func StorageID(vendor, serial string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s:%s", strings.ToLower(vendor), strings.ToLower(serial))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// TrackRef derives a stable reference for a file on a storage.
// Refs survive re-indexing as long as the path is unchanged, which is what
// persisted playback state needs to resolve against.
func TrackRef(storageID, path string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s:%s", storageID, path)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// CacheKey keys an extraction-cache entry on identity plus change detection.
// Size or mtime drift invalidates the cached metadata.
func CacheKey(trackRef string, size, mtimeUnix int64) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s:%d:%d", trackRef, size, mtimeUnix)
	return fmt.Sprintf("%x", h.Sum(nil))
}
