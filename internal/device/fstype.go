package device

import (
	"bufio"
	"io"
	"strings"
)

// MountInfo describes the filesystem behind a mounted path.
type MountInfo struct {
	Removable bool   // Whether the filesystem type is one used by removable media
	FSType    string // Filesystem type name (vfat, exfat, ntfs, ...)
	MountPath string // Mount point that owns the path, when known
}

// removableFSTypes are the filesystem types removable media ships with.
// Fixed internal disks (ext4, xfs, btrfs, apfs) are deliberately absent.
var removableFSTypes = map[string]bool{
	"vfat":    true,
	"msdos":   true,
	"exfat":   true,
	"ntfs":    true,
	"ntfs3":   true,
	"fuseblk": true, // ntfs-3g mounts surface as fuseblk
	"iso9660": true,
	"udf":     true,
	"f2fs":    true,
}

// isRemovableFSType reports whether a filesystem type name belongs to
// removable media.
func isRemovableFSType(fsType string) bool {
	return removableFSTypes[strings.ToLower(fsType)]
}

// parseMountTable parses a mount table in /proc/mounts format into a
// mount-point to filesystem-type map.
func parseMountTable(r io.Reader) (map[string]string, error) {
	mounts := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		// device mountpoint fstype options dump pass
		mounts[fields[1]] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return mounts, nil
}

// IsRemovableMount reports whether path sits on a removable-media filesystem.
func IsRemovableMount(path string) bool {
	info, err := ProbeMount(path)
	if err != nil {
		return false
	}
	return info.Removable
}
