// Package profiler writes CPU and heap profiles for a scan.
package profiler

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"
)

// Profiler handles profile collection
type Profiler struct {
	cpuFile   *os.File
	memFile   string
	startTime time.Time
}

// Config names the profile files. Empty names disable that profile.
type Config struct {
	CPUProfile string
	MemProfile string
}

// Enabled reports whether any profile is requested.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.MemProfile != ""
}

// New starts CPU profiling when requested.
func New(cfg Config) (*Profiler, error) {
	p := &Profiler{
		memFile:   cfg.MemProfile,
		startTime: time.Now(),
	}

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpuFile = f
	}

	return p, nil
}

// Stop ends CPU profiling and writes the heap profile. It is safe to call
// more than once.
func (p *Profiler) Stop() error {
	var errs []error

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close CPU profile: %w", err))
		}
		p.cpuFile = nil
	}

	if p.memFile != "" {
		runtime.GC()
		if err := writeHeap(p.memFile); err != nil {
			errs = append(errs, err)
		}
		p.memFile = ""
	}

	return errors.Join(errs...)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create memory profile: %w", err)
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("write memory profile: %w", err)
	}
	return f.Close()
}

// Duration returns the time since profiler started
func (p *Profiler) Duration() time.Duration {
	return time.Since(p.startTime)
}

// Stats returns current memory statistics
func Stats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemStats{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
	}
}

// MemStats contains memory statistics
type MemStats struct {
	Alloc      uint64 // Currently allocated bytes
	TotalAlloc uint64 // Total bytes allocated (cumulative)
	Sys        uint64 // Memory obtained from OS
	NumGC      uint32 // Number of GC runs
	HeapAlloc  uint64 // Heap bytes allocated
	HeapInuse  uint64 // Heap in-use bytes
}

// String formats the statistics
func (m MemStats) String() string {
	return fmt.Sprintf(
		"alloc=%s heap=%s total=%s sys=%s gc=%d",
		FormatBytes(m.Alloc),
		FormatBytes(m.HeapAlloc),
		FormatBytes(m.TotalAlloc),
		FormatBytes(m.Sys),
		m.NumGC,
	)
}

// FormatBytes converts bytes to human-readable format
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
