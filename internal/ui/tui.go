package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer provides rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *runModel
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, errors.New("output is not a TTY")
	}

	model := newRunModel(cfg.Title)
	model.styles = GetStyles(cfg.NoColor || DetectNoColor())

	return &TUIRenderer{
		cfg:   cfg,
		model: model,
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	var runCtx context.Context
	runCtx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(runCtx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(progressMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(s))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program, cancel := r.program, r.cancel
	r.mu.Unlock()

	if program == nil {
		return nil
	}

	// Give the final view a chance to render before tearing down.
	select {
	case <-r.done:
	case <-time.After(500 * time.Millisecond):
		program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

type progressMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg Summary

// runModel is the bubbletea model for a comparison run.
type runModel struct {
	title    string
	width    int
	stage    Stage
	current  int
	total    int
	item     string
	message  string
	warnings int
	errs     int
	lastErr  string
	complete bool
	quitting bool
	summary  Summary

	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newRunModel(title string) *runModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	p := progress.New(
		progress.WithSolidFill(ColorAccent),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &runModel{
		title:       title,
		width:       80,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *runModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-24, 20)

	case progressMsg:
		m.apply(ProgressEvent(msg))

	case errorMsg:
		if msg.IsWarn {
			m.warnings++
		} else {
			m.errs++
		}
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}

	case completeMsg:
		m.complete = true
		m.stage = StageComplete
		m.summary = Summary(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *runModel) apply(e ProgressEvent) {
	if e.Stage != m.stage {
		m.current, m.total = 0, 0
		m.item, m.message = "", ""
	}
	m.stage = e.Stage
	m.current = e.Current
	m.total = e.Total
	m.item = e.Item
	m.message = e.Message
}

// View implements tea.Model.
func (m *runModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	sections := []string{
		m.renderStages(),
		m.styles.Border.Render(strings.Repeat("─", width)),
		m.renderProgress(),
	}
	if m.item != "" {
		sections = append(sections, m.styles.Dim.Render(truncate(m.item, width-2)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(m.title),
		panel.Render(strings.Join(sections, "\n")),
	) + "\n" + m.renderStatusBar()
}

func (m *runModel) renderStages() string {
	parts := make([]string, 0, len(Stages))
	for _, s := range Stages {
		switch {
		case s < m.stage:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == m.stage:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *runModel) renderProgress() string {
	label := m.message
	if label == "" {
		label = m.stage.String() + "..."
	}
	if m.total == 0 {
		return fmt.Sprintf("%s %s", m.spinner.View(), label)
	}

	pct := float64(m.current) / float64(m.total)
	bar := m.progressBar.ViewAs(min(pct, 1))
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d", m.current, m.total))
	return fmt.Sprintf("%s  %s\n%s", bar, count, m.styles.Label.Render(label))
}

func (m *runModel) renderStatusBar() string {
	var parts []string
	if m.warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.warnings)))
	}
	if m.errs > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.errs)))
	}
	if len(parts) == 0 {
		return m.styles.Dim.Render("ctrl+c to cancel")
	}
	status := strings.Join(parts, m.styles.Dim.Render("  │  "))
	if m.lastErr != "" {
		status += m.styles.Dim.Render("  │  " + truncate(m.lastErr, 60))
	}
	return status
}

func (m *runModel) renderComplete() string {
	s := m.summary
	lines := []string{
		m.styles.Success.Render("✓ Comparison complete"),
		"",
		fmt.Sprintf("%s   %d", m.styles.Label.Render("Files:"), s.Files),
		fmt.Sprintf("%s  %d", m.styles.Label.Render("Chunks:"), s.Chunks),
		fmt.Sprintf("%s %d", m.styles.Label.Render("Queries:"), s.Queries),
		fmt.Sprintf("%s    %s", m.styles.Label.Render("Took:"), s.Duration.Round(100*time.Millisecond)),
	}
	if s.Errors > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", s.Errors)))
	}
	if s.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", s.Warnings)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorGreen)).
		Padding(0, 2).
		Width(max(m.width-4, 40))
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// truncate shortens s to maxLen runes, keeping the tail.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return "..." + string(r[len(r)-maxLen+3:])
}

var _ Renderer = (*TUIRenderer)(nil)
