//go:build linux

package workers

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// detectWorkers honours a cgroup CPU quota so containers are not oversubscribed
func detectWorkers() int {
	cpus := runtime.NumCPU()

	if quota := cgroupQuota(); quota > 0 && quota < cpus {
		return quota
	}
	return cpus
}

// cgroupQuota returns the CPU limit in whole cores, or 0 when unlimited or unknown
func cgroupQuota() int {
	// cgroup v2: "<quota> <period>" or "max <period>"
	if data, err := os.ReadFile("/sys/fs/cgroup/cpu.max"); err == nil {
		fields := strings.Fields(string(data))
		if len(fields) == 2 && fields[0] != "max" {
			return cores(fields[0], fields[1])
		}
		return 0
	}

	// cgroup v1
	quota, err := os.ReadFile("/sys/fs/cgroup/cpu/cpu.cfs_quota_us")
	if err != nil {
		return 0
	}
	period, err := os.ReadFile("/sys/fs/cgroup/cpu/cpu.cfs_period_us")
	if err != nil {
		return 0
	}
	return cores(strings.TrimSpace(string(quota)), strings.TrimSpace(string(period)))
}

func cores(quotaStr, periodStr string) int {
	quota, err := strconv.ParseInt(quotaStr, 10, 64)
	if err != nil || quota <= 0 {
		return 0
	}
	period, err := strconv.ParseInt(periodStr, 10, 64)
	if err != nil || period <= 0 {
		return 0
	}
	n := int((quota + period - 1) / period)
	if n < 1 {
		n = 1
	}
	return n
}
