//go:build !linux && !darwin
// +build !linux,!darwin

package device

// ProbeMount is a stub for unsupported platforms; nothing is treated as
// removable, so attach detection is disabled there.
func ProbeMount(path string) (*MountInfo, error) {
	return &MountInfo{}, nil
}
