package ui

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInterrupted is returned by Wait when the user pressed ctrl+c
var ErrInterrupted = errors.New("interrupted")

type finishedMsg struct{}

// waitModel animates a spinner until the work reports back
type waitModel struct {
	spinner     spinner.Model
	label       string
	finished    bool
	interrupted bool
}

func newWaitModel(label string) waitModel {
	return waitModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(neonCyan)),
		),
		label: label,
	}
}

func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.interrupted = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.finished || m.interrupted {
		return ""
	}
	return m.spinner.View() + " " + m.label + "\n"
}

// Wait runs fn while a spinner labelled label animates on w. Off a terminal
// fn simply runs. ctrl+c cancels the context handed to fn.
func Wait(ctx context.Context, w io.Writer, label string, fn func(context.Context) error) error {
	if !IsTerminal(w) {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newWaitModel(label), tea.WithOutput(w), tea.WithContext(ctx))
	result := make(chan error, 1)
	go func() {
		result <- fn(ctx)
		p.Send(finishedMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		// the terminal could not be driven; keep waiting without animation
		return <-result
	}
	if m, ok := final.(waitModel); ok && m.interrupted {
		cancel()
		<-result
		return ErrInterrupted
	}
	return <-result
}
