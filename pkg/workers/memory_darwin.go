//go:build darwin

package workers

import "syscall"

// AvailableMemory estimates available memory as three quarters of physical memory
func AvailableMemory() uint64 {
	raw, err := syscall.Sysctl("hw.memsize")
	if err != nil {
		return 0
	}
	var total uint64
	for i := 0; i < len(raw) && i < 8; i++ {
		total |= uint64(raw[i]) << (8 * uint(i))
	}
	return total / 4 * 3
}
