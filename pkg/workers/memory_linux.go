//go:build linux

package workers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// AvailableMemory returns the memory available to new allocations in bytes, or 0
// when it cannot be determined. A cgroup memory limit lowers the host value.
func AvailableMemory() uint64 {
	avail := meminfoAvailable()
	if limit := cgroupMemoryLimit(); limit > 0 && (avail == 0 || limit < avail) {
		return limit
	}
	return avail
}

func meminfoAvailable() uint64 {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer file.Close()

	// older kernels lack MemAvailable
	var available, free, buffers, cached uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemAvailable":
			available = kb * 1024
		case "MemFree":
			free = kb * 1024
		case "Buffers":
			buffers = kb * 1024
		case "Cached":
			cached = kb * 1024
		}
	}
	if available > 0 {
		return available
	}
	return free + buffers + cached
}

func cgroupMemoryLimit() uint64 {
	for _, path := range []string{
		"/sys/fs/cgroup/memory.max",                   // cgroup v2
		"/sys/fs/cgroup/memory/memory.limit_in_bytes", // cgroup v1
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			// "max" means unlimited
			return 0
		}
		return v
	}
	return 0
}
