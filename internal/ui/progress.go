package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Spinner frames
var SpinnerDot = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// CaseStartedMsg announces the case now running.
type CaseStartedMsg struct {
	Name string
}

// CaseResultMsg reports a finished case.
type CaseResultMsg struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Message  string
}

// RunDoneMsg ends the progress view.
type RunDoneMsg struct {
	Passed int
	Failed int
}

// ProgressModel shows a spinner for the running case and prints each
// result above it as it completes.
type ProgressModel struct {
	spinner spinner.Model
	current string
	results []CaseResultMsg
	done    *RunDoneMsg
	aborted bool
}

// NewProgressModel creates a progress view.
func NewProgressModel() *ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerDot,
		FPS:    time.Second / 10,
	}
	s.Style = InfoStyle

	return &ProgressModel{spinner: s}
}

func (m *ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.aborted = true
			return m, tea.Quit
		}
	case CaseStartedMsg:
		m.current = msg.Name
	case CaseResultMsg:
		m.current = ""
		m.results = append(m.results, msg)
		return m, tea.Println(FormatCaseResult(msg.Passed, msg.Name, msg.Duration, msg.Message))
	case RunDoneMsg:
		m.done = &msg
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ProgressModel) View() string {
	if m.done != nil {
		return FormatSummary(m.done.Passed, m.done.Failed) + "\n"
	}
	if m.current == "" {
		return ""
	}
	return "   " + m.spinner.View() + " " + SubtleStyle.Render(m.current) + "\n"
}

// Results returns the results received so far.
func (m *ProgressModel) Results() []CaseResultMsg {
	return m.results
}

// Aborted reports whether the user interrupted the view.
func (m *ProgressModel) Aborted() bool {
	return m.aborted
}
