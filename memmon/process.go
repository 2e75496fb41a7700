package memmon

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// ProcessStats is an aggregate snapshot of process memory.
type ProcessStats struct {
	// HeapAllocMB is live Go heap (runtime.MemStats.HeapAlloc).
	HeapAllocMB float64
	// SysMB is total memory obtained from the OS by the Go runtime.
	SysMB float64
	// RSSMB is the resident set size from /proc, zero where unavailable.
	RSSMB float64
	// Goroutines is the current goroutine count.
	Goroutines int
}

// UsedMB is the figure compared against process limits: RSS when the
// platform exposes it, runtime Sys otherwise.
func (p ProcessStats) UsedMB() float64 {
	if p.RSSMB > 0 {
		return p.RSSMB
	}
	return p.SysMB
}

const bytesPerMB = 1 << 20

// ReadProcessStats samples the Go runtime and, on Linux, /proc.
func ReadProcessStats() ProcessStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return ProcessStats{
		HeapAllocMB: float64(ms.HeapAlloc) / bytesPerMB,
		SysMB:       float64(ms.Sys) / bytesPerMB,
		RSSMB:       readRSSMB(),
		Goroutines:  runtime.NumGoroutine(),
	}
}

// readRSSMB parses the resident field of /proc/self/statm. Returns 0 on
// any failure (non-Linux platforms, restricted /proc).
func readRSSMB() float64 {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return float64(pages*uint64(os.Getpagesize())) / bytesPerMB
}
