// Package hostinfo reports the host's CPU/memory pressure for the
// management API's stats endpoint, grounded on the teacher's use of
// gopsutil in its health handler.
package hostinfo

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Memory reports host memory pressure in megabytes.
type Memory struct {
	TotalMB     float64
	FreeMB      float64
	UsedMB      float64
	UsedPercent float64
}

// CPU reports host CPU pressure.
type CPU struct {
	NumCPU      int
	UsedPercent float64
	IdlePercent float64
}

// Snapshot is a point-in-time host stats sample.
type Snapshot struct {
	Memory Memory
	CPU    CPU
}

// Sample takes a CPU usage sample over window (200ms is a reasonable
// default) and the current memory snapshot.
func Sample(window time.Duration) Snapshot {
	if window <= 0 {
		window = 200 * time.Millisecond
	}
	var snap Snapshot
	snap.CPU.NumCPU = runtime.NumCPU()

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.Memory.TotalMB = float64(vm.Total) / 1024 / 1024
		snap.Memory.FreeMB = float64(vm.Available) / 1024 / 1024
		snap.Memory.UsedMB = float64(vm.Used) / 1024 / 1024
		snap.Memory.UsedPercent = vm.UsedPercent
	}

	if pct, err := cpu.Percent(window, false); err == nil && len(pct) > 0 {
		snap.CPU.UsedPercent = pct[0]
		snap.CPU.IdlePercent = 100.0 - pct[0]
	}

	return snap
}
