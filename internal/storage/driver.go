package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/franz/media-dock/internal/source"
	"github.com/franz/media-dock/internal/util"
)

// MassStorage serves a mounted filesystem as a storage driver. The afero
// abstraction keeps the driver testable against an in-memory filesystem.
type MassStorage struct {
	fs    afero.Fs
	root  string
	retry *util.RetryConfig
}

// NewMassStorage creates a driver rooted at root on fsys.
func NewMassStorage(fsys afero.Fs, root string, retry *util.RetryConfig) *MassStorage {
	if retry == nil {
		retry = util.DefaultRetryConfig()
	}
	return &MassStorage{fs: fsys, root: root, retry: retry}
}

// RootURI returns the mount root this driver serves.
func (d *MassStorage) RootURI() string {
	return d.root
}

// Enumerate lists one directory, non-recursive. Transient failures are
// retried; what comes back unwrapped is for the location to classify.
func (d *MassStorage) Enumerate(dir string) ([]FileLike, error) {
	full := d.resolve(dir)
	infos, err := util.RetryWithBackoff(d.retry, func() ([]os.FileInfo, error) {
		return afero.ReadDir(d.fs, full)
	}, fmt.Sprintf("enumerate(%s)", dir))
	if err != nil {
		return nil, err
	}

	entries := make([]FileLike, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, FileLike{
			Path:    path.Join(dir, info.Name()),
			Name:    info.Name(),
			Dir:     info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Open opens one entry and returns its chunk-transport handle.
func (d *MassStorage) Open(p string) (source.Handle, error) {
	full := d.resolve(p)
	f, err := util.RetryWithBackoff(d.retry, func() (afero.File, error) {
		return d.fs.Open(full)
	}, fmt.Sprintf("open(%s)", p))
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &fileHandle{file: f, length: info.Size()}, nil
}

// Close is a no-op; mounted filesystems hold no session state.
func (d *MassStorage) Close() error {
	return nil
}

// resolve maps a slash-relative entry path under the root. Leading the path
// through Clean("/"+rel) pins traversal inside the mount.
func (d *MassStorage) resolve(rel string) string {
	clean := path.Clean("/" + rel)
	return filepath.Join(d.root, filepath.FromSlash(clean[1:]))
}

// fileHandle adapts an open file to the chunk-transport contract.
type fileHandle struct {
	file   afero.File
	length int64
}

func (h *fileHandle) ReadChunk(start int64, buf []byte) (int, error) {
	n, err := h.file.ReadAt(buf, start)
	if err == io.EOF && n == len(buf) {
		// Exact-tail reads are complete reads.
		err = nil
	}
	return n, err
}

func (h *fileHandle) Length() int64 {
	return h.length
}

func (h *fileHandle) Close() error {
	return h.file.Close()
}
