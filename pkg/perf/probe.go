package perf

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemProbe reports hardware capacity and live utilization. It is
// an interface so tests can simulate arbitrary machines.
type SystemProbe interface {
	// Cores returns the logical CPU count.
	Cores() (int, error)

	// MemoryBytes returns total physical memory.
	MemoryBytes() (uint64, error)

	// Utilization returns current process-wide CPU and memory usage
	// as percentages in [0,100].
	Utilization() (cpuPercent, memPercent float64, err error)
}

// HostProbe reads the real machine via gopsutil.
type HostProbe struct{}

func (HostProbe) Cores() (int, error) {
	return cpu.Counts(true)
}

func (HostProbe) MemoryBytes() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}

func (HostProbe) Utilization() (float64, float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	pcts, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, err
	}
	var cpuPct float64
	if len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	return cpuPct, vm.UsedPercent, nil
}
