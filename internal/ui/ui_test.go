package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageIngest, "Ingest", "INGEST"},
		{StageBuildA, "Build A", "BUILD-A"},
		{StageBuildB, "Build B", "BUILD-B"},
		{StageSearch, "Search", "SEARCH"},
		{StageLLM, "LLM", "LLM"},
		{StageReport, "Report", "REPORT"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stage.String())
			assert.Equal(t, tt.icon, tt.stage.Icon())
		})
	}
}

func TestStages_RunOrder(t *testing.T) {
	require.Len(t, Stages, 6)
	for i := 1; i < len(Stages); i++ {
		assert.Less(t, Stages[i-1], Stages[i])
	}
}

func TestIsTTY_NonTerminal(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestNewConfig_Options(t *testing.T) {
	// Given: config with options
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf, WithForcePlain(true), WithNoColor(true), WithTitle("run"))

	// Then: options are applied
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "run", cfg.Title)

	assert.Equal(t, "vecbench", NewConfig(buf).Title)
}

func TestNewRenderer_PicksPlain(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"forced", NewConfig(&bytes.Buffer{}, WithForcePlain(true))},
		{"non-tty", NewConfig(&bytes.Buffer{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NewRenderer(tt.cfg).(*PlainRenderer)
			assert.True(t, ok, "expected PlainRenderer")
		})
	}
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestNop_DiscardsEverything(t *testing.T) {
	r := Nop()
	require.NoError(t, r.Start(t.Context()))
	r.UpdateProgress(ProgressEvent{Stage: StageSearch})
	r.AddError(ErrorEvent{})
	r.Complete(Summary{})
	require.NoError(t, r.Stop())
}

func TestGetStyles(t *testing.T) {
	// NoColor styles render text unchanged
	assert.Equal(t, "x", GetStyles(true).Error.Render("x"))
	assert.NotPanics(t, func() { _ = GetStyles(false).Header.Render("x") })
}
