//go:build !linux && !darwin

package workers

import "runtime"

// detectWorkers fallback for operating systems without cgroups or sysctl
func detectWorkers() int {
	return runtime.NumCPU()
}
