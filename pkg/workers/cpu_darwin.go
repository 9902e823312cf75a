//go:build darwin

package workers

import (
	"runtime"
	"syscall"
)

// detectWorkers counts Apple Silicon performance cores, then physical cores
func detectWorkers() int {
	for _, name := range []string{"hw.perflevel0.physicalcpu", "hw.physicalcpu"} {
		if n := sysctlInt(name); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// sysctlInt reads a little-endian integer sysctl value, or 0
func sysctlInt(name string) int {
	raw, err := syscall.Sysctl(name)
	if err != nil {
		return 0
	}
	n := 0
	for i := 0; i < len(raw) && i < 4; i++ {
		n |= int(raw[i]) << (8 * i)
	}
	return n
}
