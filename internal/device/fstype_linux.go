//go:build linux
// +build linux

package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Linux kernel VFS magic numbers for removable-media filesystems.
// stat.Type is int64 on amd64 and int32 elsewhere; the magics fit uint32.
var removableMagics = map[uint32]string{
	0x4d44:     "vfat",    // MSDOS_SUPER_MAGIC
	0x2011bab0: "exfat",   // EXFAT_SUPER_MAGIC
	0x5346544e: "ntfs",    // NTFS_SB_MAGIC
	0x65735546: "fuseblk", // FUSE_SUPER_MAGIC (ntfs-3g)
	0x9660:     "iso9660", // ISOFS_SUPER_MAGIC
	0x15013346: "udf",     // UDF_SUPER_MAGIC
	0xf2f52010: "f2fs",    // F2FS_SUPER_MAGIC
}

// ProbeMount classifies the filesystem behind path. The statfs magic number
// is checked first; /proc/mounts confirms the type name and supplies the
// owning mount point.
func ProbeMount(path string) (*MountInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	info := &MountInfo{}
	if name, found := removableMagics[uint32(stat.Type)]; found {
		info.Removable = true
		info.FSType = name
	}

	mounts, err := readProcMounts()
	if err != nil {
		// No /proc on this system; the magic number check stands alone.
		return info, nil
	}

	bestMatch := ""
	for mountPoint, fsType := range mounts {
		if strings.HasPrefix(absPath, mountPoint) && len(mountPoint) > len(bestMatch) {
			bestMatch = mountPoint
			info.FSType = strings.ToLower(fsType)
			info.MountPath = mountPoint
			info.Removable = isRemovableFSType(fsType)
		}
	}

	return info, nil
}

func readProcMounts() (map[string]string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseMountTable(file)
}
