package supervisor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Metrics is a point-in-time resource snapshot of the supervised process.
type Metrics struct {
	PID           int32
	CPUPercent    float64
	MemoryRSSMB   float64
	NumThreads    int32
	NumGoroutines int // supervisor-side, not the child's
}

// Metrics reports CPU/memory/thread usage for the currently running child
// process via gopsutil, which reads /proc on Linux and the platform's
// native process-info APIs elsewhere instead of shelling out to `ps`.
func (s *Supervisor) Metrics() (Metrics, error) {
	s.mu.RLock()
	cmd := s.cmd
	running := s.st == StateRunning
	s.mu.RUnlock()

	if !running || cmd == nil || cmd.Process == nil {
		return Metrics{}, ErrNotRunning
	}

	pid := int32(cmd.Process.Pid)
	proc, err := process.NewProcess(pid)
	if err != nil {
		return Metrics{}, fmt.Errorf("supervisor: metrics: %w", err)
	}

	cpuPct, err := proc.CPUPercent()
	if err != nil {
		return Metrics{}, fmt.Errorf("supervisor: cpu percent: %w", err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return Metrics{}, fmt.Errorf("supervisor: memory info: %w", err)
	}
	threads, err := proc.NumThreads()
	if err != nil {
		threads = 0
	}

	return Metrics{
		PID:         pid,
		CPUPercent:  cpuPct,
		MemoryRSSMB: float64(memInfo.RSS) / (1024 * 1024),
		NumThreads:  threads,
	}, nil
}
