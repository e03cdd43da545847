package device

import (
	"os"
	"path/filepath"
	"syscall"
)

// IsMountPoint reports whether dir is the root of its own filesystem, by
// comparing device ids with its parent directory.
func IsMountPoint(dir string) (bool, error) {
	self, err := os.Stat(dir)
	if err != nil {
		return false, err
	}
	parent, err := os.Stat(filepath.Dir(dir))
	if err != nil {
		return false, err
	}

	sysSelf, ok1 := self.Sys().(*syscall.Stat_t)
	sysParent, ok2 := parent.Sys().(*syscall.Stat_t)
	if !ok1 || !ok2 {
		return false, nil
	}

	return sysSelf.Dev != sysParent.Dev, nil
}

// ProbeMassStorage accepts a directory as a mass-storage mount when it is a
// mount point carrying a removable filesystem. Identity derives from the
// mount directory name, which automounters set to the volume label.
func ProbeMassStorage(path string) (MediaDevice, bool) {
	mnt, err := IsMountPoint(path)
	if err != nil || !mnt {
		return MediaDevice{}, false
	}

	info, err := ProbeMount(path)
	if err != nil || !info.Removable {
		return MediaDevice{}, false
	}

	base := filepath.Base(path)
	return MediaDevice{
		Vendor: "usb-storage",
		Serial: base,
		Class:  ClassMassStorage,
		Name:   base,
	}, true
}
