package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInteractiveDisabled is returned when interactive prompts are disabled via SVNMERGE_TEST_NO_INTERACTIVE
var ErrInteractiveDisabled = fmt.Errorf("interactive prompts are disabled (SVNMERGE_TEST_NO_INTERACTIVE is set)")

// ErrCanceled is returned when the user backs out of a prompt
var ErrCanceled = errors.New("canceled")

var (
	promptBoxStyle    = lipgloss.NewStyle().Margin(1, 0)
	promptTitleStyle  = lipgloss.NewStyle().Bold(true)
	promptActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	promptHelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// interactiveAllowed fails when prompts are disabled for testing.
func interactiveAllowed() error {
	if os.Getenv("SVNMERGE_TEST_NO_INTERACTIVE") != "" {
		return ErrInteractiveDisabled
	}
	return nil
}

// isCancel reports whether the key backs out of the current prompt.
func isCancel(msg tea.KeyMsg) bool {
	return msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc
}

// runPrompt drives one prompt model to completion on the real terminal.
func runPrompt(m tea.Model) (tea.Model, error) {
	if err := interactiveAllowed(); err != nil {
		return nil, err
	}
	p := tea.NewProgram(m, tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	return p.Run()
}

// textInputModel asks for one line of text.
type textInputModel struct {
	input  textinput.Model
	prompt string
	done   bool
	err    error
}

func (m textInputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m textInputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Type == tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case isCancel(key):
			m.err = ErrCanceled
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m textInputModel) View() string {
	if m.done {
		return ""
	}
	help := promptHelpStyle.Render("(Enter to submit, Ctrl+C to cancel)")
	return promptBoxStyle.Render(m.prompt + "\n" + m.input.View() + "\n\n" + help)
}

// PromptTextInput asks for a line of text, returning defaultValue when the
// user submits it unchanged.
func PromptTextInput(prompt, defaultValue string) (string, error) {
	input := textinput.New()
	input.SetValue(defaultValue)
	input.Focus()
	input.CharLimit = 200
	input.Width = 40

	final, err := runPrompt(textInputModel{input: input, prompt: prompt})
	if err != nil {
		return "", err
	}

	m, ok := final.(textInputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type %T", final)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.input.Value(), nil
}

// confirmModel asks a yes/no question.
type confirmModel struct {
	prompt string
	choice bool
	done   bool
	err    error
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Type == tea.KeyEnter:
		m.done = true
		return m, tea.Quit
	case isCancel(key):
		m.err = ErrCanceled
		m.done = true
		return m, tea.Quit
	}

	switch strings.ToLower(key.String()) {
	case "y":
		m.choice = true
		m.done = true
		return m, tea.Quit
	case "n":
		m.choice = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	hint := "[y/N]"
	if m.choice {
		hint = "[Y/n]"
	}
	help := promptHelpStyle.Render("(y or n, Enter keeps the default, Ctrl+C cancels)")
	return promptBoxStyle.Render(m.prompt + " " + hint + "\n\n" + help)
}

// PromptConfirm asks a yes/no question; Enter keeps defaultValue.
func PromptConfirm(prompt string, defaultValue bool) (bool, error) {
	final, err := runPrompt(confirmModel{prompt: prompt, choice: defaultValue})
	if err != nil {
		return false, err
	}

	m, ok := final.(confirmModel)
	if !ok {
		return false, fmt.Errorf("unexpected model type %T", final)
	}
	if m.err != nil {
		return false, m.err
	}
	return m.choice, nil
}

// SelectOption is one entry in a selection prompt.
type SelectOption struct {
	Label string // What to show
	Value string // Value to return
}

// SelectModel is a selection prompt with arrow key navigation.
type SelectModel struct {
	Options  []SelectOption
	Cursor   int
	Selected string
	Done     bool
	Err      error
	Title    string
}

// Init initializes the bubbletea model
func (m SelectModel) Init() tea.Cmd {
	return nil
}

// Update handles message updates for the bubbletea model
func (m SelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Type == tea.KeyEnter:
		if m.Cursor >= 0 && m.Cursor < len(m.Options) {
			m.Selected = m.Options[m.Cursor].Value
			m.Done = true
			return m, tea.Quit
		}
	case isCancel(key):
		m.Err = ErrCanceled
		m.Done = true
		return m, tea.Quit
	case key.Type == tea.KeyUp || key.Type == tea.KeyShiftTab:
		m.Cursor--
		if m.Cursor < 0 {
			m.Cursor = len(m.Options) - 1
		}
	case key.Type == tea.KeyDown || key.Type == tea.KeyTab:
		m.Cursor++
		if m.Cursor >= len(m.Options) {
			m.Cursor = 0
		}
	}
	return m, nil
}

// View renders the menu with the cursor on the active option.
func (m SelectModel) View() string {
	if m.Done {
		return ""
	}

	var b strings.Builder
	b.WriteString(promptTitleStyle.Render(m.Title))
	b.WriteString("\n\n")

	for i, opt := range m.Options {
		if i == m.Cursor {
			b.WriteString("  → " + promptActiveStyle.Render(opt.Label) + "\n")
		} else {
			b.WriteString("    " + opt.Label + "\n")
		}
	}

	b.WriteString(promptHelpStyle.Render("\n(↑/↓ to select, Enter to confirm, Ctrl+C to cancel)"))
	return promptBoxStyle.Render(b.String())
}

// PromptSelect shows a menu and returns the chosen option's value.
func PromptSelect(title string, options []SelectOption, defaultIndex int) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}

	cursor := defaultIndex
	if cursor < 0 || cursor >= len(options) {
		cursor = 0
	}

	final, err := runPrompt(SelectModel{Options: options, Cursor: cursor, Title: title})
	if err != nil {
		return "", err
	}

	m, ok := final.(SelectModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type %T", final)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Selected, nil
}
