package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	if filepath.Base(path) != "vecbench.log" {
		t.Errorf("DefaultLogPath should end with vecbench.log, got: %s", path)
	}
	if !strings.Contains(path, filepath.Join(".vecbench", "logs")) {
		t.Errorf("DefaultLogPath should live under .vecbench/logs, got: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("expected 10 MB x 5 files, got: %d MB x %d", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if cfg.Stderr != nil {
		t.Error("default config should not mirror to stderr")
	}
}

func TestSetup_WritesJSONToFileAndMirror(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "run.log")
	mirror := &bytes.Buffer{}

	logger, cleanup, err := Setup(Config{Level: "info", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 2, Stderr: mirror})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Debug("hidden_event")
	logger.Info("run_started", slog.Int("chunks", 3))
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"run_started"`) || !strings.Contains(string(data), `"chunks":3`) {
		t.Errorf("log file missing record: %s", data)
	}
	if strings.Contains(string(data), "hidden_event") {
		t.Error("debug record should be filtered at info level")
	}
	if !strings.Contains(mirror.String(), "run_started") {
		t.Error("mirror should receive the record")
	}
}

func TestSetup_NoFile(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Info("discarded")
}

func TestSetupDefault_InstallsLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	mirror := &bytes.Buffer{}

	cleanup, err := SetupDefault(Config{Level: "warn", Stderr: mirror})
	if err != nil {
		t.Fatalf("SetupDefault failed: %v", err)
	}
	defer cleanup()

	slog.Info("below_level")
	slog.Warn("backend_a_failed")

	if strings.Contains(mirror.String(), "below_level") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(mirror.String(), `"msg":"backend_a_failed"`) {
		t.Errorf("default logger should write to the mirror, got: %s", mirror.String())
	}
}

func TestSetupDefault_BadPathKeepsDefault(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := SetupDefault(Config{FilePath: filepath.Join(blocker, "sub", "run.log"), MaxSizeMB: 1, MaxFiles: 1})

	if err == nil {
		t.Fatal("expected an error for a log path under a regular file")
	}
	if slog.Default() != previous {
		t.Error("default logger should be unchanged on error")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.input); got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	if _, err := FindLogFile("/nonexistent/vecbench.log"); err == nil {
		t.Error("expected error for missing explicit path")
	}

	path := filepath.Join(t.TempDir(), "x.log")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FindLogFile(path)
	if err != nil || got != path {
		t.Errorf("FindLogFile(%q) = %q, %v", path, got, err)
	}
}

// ============================================================================
// Viewer Tests
// ============================================================================

const sampleLog = `{"time":"2026-05-06T07:08:09.100Z","level":"INFO","msg":"run_started","run_id":"r1","chunks":12}
{"time":"2026-05-06T07:08:09.200Z","level":"DEBUG","msg":"query_compared","run_id":"r1","overlap":0.8}
not json at all
{"time":"2026-05-06T07:08:10.000Z","level":"WARN","msg":"query_failed","run_id":"r2","backend":"A"}
{"time":"2026-05-06T07:08:11.000Z","level":"ERROR","msg":"backend_a_build_failed","run_id":"r2"}
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vecbench.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestViewer_Tail(t *testing.T) {
	path := writeSample(t)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Msg != "query_failed" || entries[1].Msg != "backend_a_build_failed" {
		t.Errorf("unexpected tail: %q, %q", entries[0].Msg, entries[1].Msg)
	}
}

func TestViewer_Tail_Filters(t *testing.T) {
	path := writeSample(t)
	tests := []struct {
		name string
		cfg  ViewerConfig
		want []string
	}{
		{"level", ViewerConfig{Level: "warn"}, []string{"not json at all", "query_failed", "backend_a_build_failed"}},
		{"run", ViewerConfig{RunID: "r1"}, []string{"run_started", "query_compared"}},
		{"pattern", ViewerConfig{Pattern: regexp.MustCompile(`overlap`)}, []string{"query_compared"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.NoColor = true
			entries, err := NewViewer(tt.cfg, &bytes.Buffer{}).Tail(path, 100)
			if err != nil {
				t.Fatalf("Tail failed: %v", err)
			}
			var got []string
			for _, e := range entries {
				if e.IsValid {
					got = append(got, e.Msg)
				} else {
					got = append(got, e.Raw)
				}
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewer_Tail_NonexistentFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	if _, err := v.Tail("/nonexistent/vecbench.log", 10); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entry := parseLine(`{"time":"2026-05-06T07:08:09.123Z","level":"WARN","msg":"query_failed","run_id":"r2","backend":"A"}`)

	got := v.FormatEntry(entry)

	want := "07:08:09.123 WARN  query_failed backend=A run_id=r2"
	if got != want {
		t.Errorf("FormatEntry = %q, want %q", got, want)
	}
	if raw := v.FormatEntry(parseLine("plain text")); raw != "plain text" {
		t.Errorf("invalid lines should print raw, got %q", raw)
	}
}

func TestViewer_Print(t *testing.T) {
	out := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, out)

	v.Print([]LogEntry{parseLine("one"), parseLine("two")})

	if out.String() != "one\ntwo\n" {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeSample(t)
	v := NewViewer(ViewerConfig{Level: "info"}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek to the end before appending.
	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"time":"2026-05-06T07:09:00Z","level":"DEBUG","msg":"skipped"}` + "\n")
	_, _ = f.WriteString(`{"time":"2026-05-06T07:09:01Z","level":"INFO","msg":"run_complete"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "run_complete" {
			t.Errorf("expected run_complete, got %q", e.Msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for followed entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}

// ============================================================================
// Writer Rotation Tests
// ============================================================================

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")
	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()
	w.maxSize = 1024

	data := bytes.Repeat([]byte("x"), 800)
	for i := 0; i < 2; i++ {
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Error("main log file should exist")
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Error("rotated file .1 should exist")
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "maxfiles.log")
	w, err := NewRotatingWriter(logPath, 1, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()
	w.maxSize = 512

	data := bytes.Repeat([]byte("y"), 400)
	for i := 0; i < 6; i++ {
		_, _ = w.Write(data)
	}

	if _, err := os.Stat(logPath + ".2"); err != nil {
		t.Error("rotated file .2 should exist")
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("rotated file .3 should not exist (beyond maxFiles)")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if _, err := w.Write([]byte("late\n")); err == nil {
		t.Error("write after close should fail")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewRotatingWriter(logPath, 10, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = fmt.Fprintf(w, `{"id":%d,"iter":%d}`+"\n", id, j)
			}
		}(i)
	}
	wg.Wait()
	if err := w.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 1000 {
		t.Errorf("expected 1000 lines, got %d", lines)
	}
}
