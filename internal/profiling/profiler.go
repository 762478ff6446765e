// Package profiling captures CPU, heap and trace profiles of a comparison
// run, so a slow backend can be inspected with go tool pprof.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// File names written into the profile directory.
const (
	CPUFile   = "cpu.prof"
	HeapFile  = "heap.prof"
	TraceFile = "trace.out"
)

// Session profiles everything between Start and Stop.
type Session struct {
	dir       string
	cpuFile   *os.File
	traceFile *os.File
	before    runtime.MemStats
}

// Start begins CPU profiling and execution tracing into dir, creating it.
func Start(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	s := &Session{dir: dir}
	runtime.ReadMemStats(&s.before)

	f, err := os.Create(filepath.Join(dir, CPUFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	s.cpuFile = f

	tf, err := os.Create(filepath.Join(dir, TraceFile))
	if err != nil {
		s.stopCPU()
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.Start(tf); err != nil {
		_ = tf.Close()
		s.stopCPU()
		return nil, fmt.Errorf("failed to start trace: %w", err)
	}
	s.traceFile = tf

	return s, nil
}

// Dir returns the directory profiles are written to.
func (s *Session) Dir() string { return s.dir }

// Stop ends CPU profiling and tracing, then writes a heap snapshot.
// It returns the allocation made while the session ran.
func (s *Session) Stop() (uint64, error) {
	var errs []error
	if s.traceFile != nil {
		trace.Stop()
		errs = append(errs, s.traceFile.Close())
		s.traceFile = nil
	}
	if s.cpuFile != nil {
		errs = append(errs, s.stopCPU())
	}

	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	errs = append(errs, WriteHeap(filepath.Join(s.dir, HeapFile)))

	return after.TotalAlloc - s.before.TotalAlloc, errors.Join(errs...)
}

func (s *Session) stopCPU() error {
	pprof.StopCPUProfile()
	err := s.cpuFile.Close()
	s.cpuFile = nil
	return err
}

// WriteHeap writes a heap profile to path after forcing a GC.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}

// FormatBytes formats bytes into human-readable form.
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
