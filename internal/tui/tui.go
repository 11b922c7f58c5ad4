package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Ariequ/svn-auto-merge/internal/engine"
	"github.com/Ariequ/svn-auto-merge/internal/journal"
)

// CycleTUIModel is the bubbletea model for a merge cycle in progress
type CycleTUIModel struct {
	sourceBranch string
	spinner      spinner.Model
	runFunc      func(ctx context.Context) engine.CycleResult
	ctx          context.Context
	result       engine.CycleResult
	done         bool
	quitting     bool
	styles       cycleStyles
}

type cycleStyles struct {
	spinnerStyle    lipgloss.Style
	mergedStyle     lipgloss.Style
	skippedStyle    lipgloss.Style
	conflictedStyle lipgloss.Style
	failedStyle     lipgloss.Style
	revisionStyle   lipgloss.Style
	detailStyle     lipgloss.Style
	dimStyle        lipgloss.Style
}

// CycleResultMsg is sent when the merge cycle completes
type CycleResultMsg struct {
	Result engine.CycleResult
}

// NewCycleTUIModel creates a new cycle TUI model
func NewCycleTUIModel(ctx context.Context, sourceBranch string, runFunc func(ctx context.Context) engine.CycleResult) CycleTUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return CycleTUIModel{
		sourceBranch: sourceBranch,
		spinner:      s,
		runFunc:      runFunc,
		ctx:          ctx,
		styles: cycleStyles{
			spinnerStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
			mergedStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			skippedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			conflictedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			failedStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
			revisionStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
			detailStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			dimStyle:        lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

func (m CycleTUIModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCycle())
}

func (m CycleTUIModel) startCycle() tea.Cmd {
	return func() tea.Msg {
		return CycleResultMsg{Result: m.runFunc(m.ctx)}
	}
}

func (m CycleTUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case CycleResultMsg:
		m.result = msg.Result
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m CycleTUIModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	if !m.done {
		b.WriteString(fmt.Sprintf("  %s Checking %s for new revisions...\n", m.spinner.View(), m.styles.revisionStyle.Render(m.sourceBranch)))
		return b.String()
	}

	for _, attempt := range m.result.Attempts {
		b.WriteString(m.renderAttempt(attempt))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderSummary())
	b.WriteString("\n")

	return b.String()
}

func (m CycleTUIModel) renderAttempt(attempt journal.Attempt) string {
	var icon string
	var status string

	switch attempt.Outcome {
	case journal.OutcomeMerged:
		icon = m.styles.mergedStyle.Render("✓")
		status = m.styles.mergedStyle.Render("merged")
	case journal.OutcomeSkipped:
		icon = m.styles.skippedStyle.Render("○")
		status = m.styles.skippedStyle.Render("skipped")
	case journal.OutcomeConflicted:
		icon = m.styles.conflictedStyle.Render("⚠")
		status = m.styles.conflictedStyle.Render("conflicted, rolled back")
	default:
		icon = m.styles.failedStyle.Render("✗")
		status = m.styles.failedStyle.Render("failed")
	}

	revision := m.styles.revisionStyle.Render(fmt.Sprintf("r%d", attempt.Revision))
	line := fmt.Sprintf("  %s %s %s", icon, revision, status)

	if attempt.Detail != "" {
		line += " " + m.styles.detailStyle.Render(attempt.Detail)
	}

	return line
}

func (m CycleTUIModel) renderSummary() string {
	result := m.result

	if result.Failed {
		return m.styles.failedStyle.Render(fmt.Sprintf("Stopped on failure: %d merged, %d skipped, %d conflicted", result.Merged, result.Skipped, result.Conflicted))
	}
	if result.Err != nil {
		return m.styles.conflictedStyle.Render(fmt.Sprintf("Interrupted: %v", result.Err))
	}
	if result.Processed() == 0 {
		return m.styles.dimStyle.Render("Nothing to merge.")
	}
	return m.styles.mergedStyle.Render(fmt.Sprintf("✓ Cycle complete: %d merged, %d skipped, %d conflicted", result.Merged, result.Skipped, result.Conflicted))
}

// IsTTY reports whether an interactive view can run. Hook invocations and
// cron runs land on pipes, where the agent must stay plain text.
func IsTTY() bool {
	stdinTTY := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !stdinTTY || !stdoutTTY {
		return false
	}
	// Some daemon supervisors leave the std fds looking like terminals
	// while /dev/tty is gone.
	f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// RunCycleTUI runs one merge cycle behind a spinner and returns its result
func RunCycleTUI(ctx context.Context, sourceBranch string, runFunc func(ctx context.Context) engine.CycleResult) (engine.CycleResult, error) {
	m := NewCycleTUIModel(ctx, sourceBranch, runFunc)
	p := tea.NewProgram(m, tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	finalModel, err := p.Run()
	if err != nil {
		return engine.CycleResult{}, err
	}

	if final, ok := finalModel.(CycleTUIModel); ok {
		if final.quitting && !final.done {
			return engine.CycleResult{}, ErrCanceled
		}
		return final.result, nil
	}

	return engine.CycleResult{}, fmt.Errorf("unexpected model type")
}
