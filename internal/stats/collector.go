// Package stats captures a snapshot of host resources for the run log.
package stats

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot describes the worker host at a point in time.
type Snapshot struct {
	CPUUsage    float64 `json:"cpu_usage"`
	RAMUsage    float64 `json:"ram_usage"`
	RAMTotal    uint64  `json:"ram_total"`
	RAMUsed     uint64  `json:"ram_used"`
	Hostname    string  `json:"hostname"`
	OS          string  `json:"os"`
	Platform    string  `json:"platform"`
	CollectedAt int64   `json:"collected_at"`
}

// Collect gathers a best-effort snapshot. Probes that fail leave their
// fields zeroed rather than failing the collection.
func Collect() *Snapshot {
	snap := &Snapshot{
		CollectedAt: time.Now().Unix(),
	}

	cpuPercent, err := cpu.Percent(time.Second, false)
	if err == nil && len(cpuPercent) > 0 {
		snap.CPUUsage = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err == nil {
		snap.RAMUsage = memInfo.UsedPercent
		snap.RAMTotal = memInfo.Total
		snap.RAMUsed = memInfo.Used
	}

	hostInfo, err := host.Info()
	if err == nil {
		snap.Hostname = hostInfo.Hostname
		snap.OS = hostInfo.OS
		snap.Platform = hostInfo.Platform
	}

	return snap
}
