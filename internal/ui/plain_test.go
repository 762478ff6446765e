package ui

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating progress
	r.UpdateProgress(ProgressEvent{
		Stage:   StageSearch,
		Current: 1,
		Total:   2,
		Message: "What is the main topic?",
	})

	// Then: output is [STAGE] i/n - msg
	assert.Equal(t, "[SEARCH] 1/2 - What is the main topic?\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_ItemFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageIngest, Current: 3, Total: 10, Item: "docs/a.md"})

	assert.Contains(t, buf.String(), "[INGEST] 3/10 - docs/a.md")
}

func TestPlainRenderer_UpdateProgress_ZeroTotal(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating with zero total
	r.UpdateProgress(ProgressEvent{Stage: StageBuildB, Message: "Saving index"})
	r.UpdateProgress(ProgressEvent{Stage: StageBuildB})

	// Then: message is shown without a count and the empty event prints nothing
	assert.Equal(t, "[BUILD-B] Saving index\n", buf.String())
}

func TestPlainRenderer_AddError(t *testing.T) {
	tests := []struct {
		name  string
		event ErrorEvent
		want  string
	}{
		{"error with item", ErrorEvent{Item: "q1", Err: errors.New("boom")}, "ERROR: q1: boom\n"},
		{"warning", ErrorEvent{Item: "a.pdf", Err: errors.New("skipped"), IsWarn: true}, "WARN: a.pdf: skipped\n"},
		{"no item", ErrorEvent{Err: errors.New("offline")}, "ERROR: offline\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))
			r.AddError(tt.event)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with problems
	r.Complete(Summary{Files: 3, Chunks: 40, Queries: 2, Duration: 5 * time.Second, Errors: 1, Warnings: 2})

	// Then: summary is one line without ANSI codes
	out := buf.String()
	assert.Contains(t, out, "Complete: 3 files, 40 chunks, 2 queries in 5s")
	assert.Contains(t, out, "(1 errors, 2 warnings)")
	assert.NotContains(t, out, "\x1b[")
}

func TestPlainRenderer_ThreadSafe(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.UpdateProgress(ProgressEvent{Stage: StageIngest, Current: i, Total: 10})
			r.AddError(ErrorEvent{Err: errors.New("x"), IsWarn: i%2 == 0})
		}()
	}
	wg.Wait()

	assert.NotEmpty(t, buf.String())
}
