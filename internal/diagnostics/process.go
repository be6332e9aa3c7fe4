package diagnostics

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const mb = 1024 * 1024

// sampler reads resource counters. Counters the platform cannot report are
// left at zero.
type sampler struct {
	proc *process.Process
}

func newSampler() *sampler {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &sampler{}
	}
	return &sampler{proc: p}
}

func (s *sampler) fill(snap *Snapshot) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap.Goroutines = runtime.NumGoroutine()
	snap.HeapAllocMB = float64(ms.HeapAlloc) / mb
	snap.NumGC = ms.NumGC

	if s.proc != nil {
		if info, err := s.proc.MemoryInfo(); err == nil {
			snap.RSSMB = float64(info.RSS) / mb
		}
		if fds, err := s.proc.NumFDs(); err == nil {
			snap.OpenFDs = int(fds)
		}
		if pct, err := s.proc.CPUPercent(); err == nil {
			snap.CPUPercent = pct
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.SystemMemoryPercent = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		snap.Load1 = avg.Load1
	}
}
