package admin

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const mb = 1024 * 1024

type MemoryMetrics struct {
	ResidentMB   uint64  `json:"residentMB"`
	VirtualMB    uint64  `json:"virtualMB"`
	HeapAllocMB  uint64  `json:"heapAllocMB"`
	HeapSysMB    uint64  `json:"heapSysMB"`
	HostTotalMB  uint64  `json:"hostTotalMB"`
	HostUsedPct  float64 `json:"hostUsedPercent"`
	NumGoroutine int     `json:"numGoroutine"`
}

type CPUMetrics struct {
	UserMs         float64 `json:"userMs"`
	SystemMs       float64 `json:"systemMs"`
	TotalMs        float64 `json:"totalMs"`
	ProcessorCount int     `json:"processorCount"`
}

type GCMetrics struct {
	NumGC         uint32        `json:"numGC"`
	NumForcedGC   uint32        `json:"numForcedGC"`
	PauseTotal    time.Duration `json:"pauseTotalNs"`
	LastGC        time.Time     `json:"lastGC"`
	GCPercent     int           `json:"gcPercent"`
	HeapObjects   uint64        `json:"heapObjects"`
	NextGCMB      uint64        `json:"nextGCMB"`
	TotalAllocMB  uint64        `json:"totalAllocMB"`
	MemoryLimitMB int64         `json:"memoryLimitMB"`
}

// SystemMetrics is a snapshot of process and host resource usage.
type SystemMetrics struct {
	Memory      MemoryMetrics `json:"memory"`
	CPU         CPUMetrics    `json:"cpu"`
	GC          GCMetrics     `json:"garbageCollection"`
	Threads     int32         `json:"threadCount"`
	Uptime      string        `json:"uptime"`
	UptimeHours float64       `json:"uptimeHours"`
	CollectedAt time.Time     `json:"collectedAt"`
}

// SystemSampler reads resource usage of the current process.
type SystemSampler interface {
	Sample(ctx context.Context) (SystemMetrics, error)
}

type processSampler struct {
	proc    *process.Process
	started time.Time
}

// NewProcessSampler returns a SystemSampler for this process backed by gopsutil.
func NewProcessSampler() (SystemSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, "opening current process")
	}
	started := time.Now()
	if ms, err := proc.CreateTime(); err == nil {
		started = time.UnixMilli(ms)
	}
	return &processSampler{proc: proc, started: started}, nil
}

func (s *processSampler) Sample(ctx context.Context) (SystemMetrics, error) {
	var out SystemMetrics
	info, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return out, errors.Wrap(err, "reading process memory")
	}
	times, err := s.proc.TimesWithContext(ctx)
	if err != nil {
		return out, errors.Wrap(err, "reading process cpu times")
	}
	threads, err := s.proc.NumThreadsWithContext(ctx)
	if err != nil {
		return out, errors.Wrap(err, "reading thread count")
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		cores = runtime.NumCPU()
	}
	out.Memory = MemoryMetrics{
		ResidentMB:   info.RSS / mb,
		VirtualMB:    info.VMS / mb,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.Memory.HostTotalMB = vm.Total / mb
		out.Memory.HostUsedPct = vm.UsedPercent
	}
	out.CPU = CPUMetrics{
		UserMs:         times.User * 1000,
		SystemMs:       times.System * 1000,
		TotalMs:        (times.User + times.System) * 1000,
		ProcessorCount: cores,
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out.Memory.HeapAllocMB = ms.HeapAlloc / mb
	out.Memory.HeapSysMB = ms.HeapSys / mb
	out.GC = gcMetrics(&ms)
	out.Threads = threads
	uptime := time.Since(s.started)
	out.Uptime = uptime.Round(time.Second).String()
	out.UptimeHours = uptime.Hours()
	out.CollectedAt = time.Now().UTC()
	return out, nil
}

func gcMetrics(ms *runtime.MemStats) GCMetrics {
	percent := debug.SetGCPercent(-1)
	debug.SetGCPercent(percent)
	g := GCMetrics{
		NumGC:         ms.NumGC,
		NumForcedGC:   ms.NumForcedGC,
		PauseTotal:    time.Duration(ms.PauseTotalNs),
		GCPercent:     percent,
		HeapObjects:   ms.HeapObjects,
		NextGCMB:      ms.NextGC / mb,
		TotalAllocMB:  ms.TotalAlloc / mb,
		MemoryLimitMB: debug.SetMemoryLimit(-1) / mb,
	}
	if ms.LastGC > 0 {
		g.LastGC = time.Unix(0, int64(ms.LastGC)).UTC()
	}
	return g
}

// GCResult reports the heap before and after a forced collection.
type GCResult struct {
	BeforeMB    uint64    `json:"beforeMemoryMB"`
	AfterMB     uint64    `json:"afterMemoryMB"`
	FreedMB     int64     `json:"freedMemoryMB"`
	CollectedAt time.Time `json:"collectedAt"`
}

func forceGC() GCResult {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	runtime.GC()
	debug.FreeOSMemory()
	runtime.ReadMemStats(&after)
	return GCResult{
		BeforeMB:    before.HeapAlloc / mb,
		AfterMB:     after.HeapAlloc / mb,
		FreedMB:     (int64(before.HeapAlloc) - int64(after.HeapAlloc)) / mb,
		CollectedAt: time.Now().UTC(),
	}
}
