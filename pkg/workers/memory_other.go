//go:build !darwin && !linux

package workers

// AvailableMemory is unknown on this platform
func AvailableMemory() uint64 {
	return 0
}
