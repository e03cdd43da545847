//go:build darwin
// +build darwin

package device

import (
	"fmt"
	"path/filepath"
	"syscall"
)

// ProbeMount classifies the filesystem behind path using the statfs type
// name, which macOS reports directly.
func ProbeMount(path string) (*MountInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	fsType := int8ArrayToString(stat.Fstypename[:])
	info := &MountInfo{
		FSType:    fsType,
		MountPath: int8ArrayToString(stat.Mntonname[:]),
	}

	// macOS names differ from Linux: msdos covers FAT variants, cd9660 is iso9660.
	switch fsType {
	case "msdos", "exfat", "ntfs", "cd9660", "udf":
		info.Removable = true
	default:
		info.Removable = isRemovableFSType(fsType)
	}

	return info, nil
}

// int8ArrayToString converts a null-terminated int8 array to a Go string.
func int8ArrayToString(arr []int8) string {
	n := 0
	for n < len(arr) && arr[n] != 0 {
		n++
	}
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(arr[i])
	}
	return string(b)
}
