package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrInterrupted is returned by RunWithSpinner when the user presses ctrl+c
var ErrInterrupted = errors.New("interrupted")

// Task is work shown behind a spinner. It calls report to replace the
// detail text next to the spinner.
type Task func(ctx context.Context, report func(detail string)) error

type detailMsg string

type taskDoneMsg struct{ err error }

// spinnerModel shows a label, a spinner, the elapsed time, and the latest
// detail from the task until the task finishes.
type spinnerModel struct {
	spinner     spinner.Model
	label       string
	detail      string
	start       time.Time
	err         error
	done        bool
	interrupted bool
}

func newSpinnerModel(label string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return spinnerModel{
		spinner: s,
		label:   label,
		start:   time.Now(),
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}
	case detailMsg:
		m.detail = string(msg)
	case taskDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	line := fmt.Sprintf("  %s %s %s", m.spinner.View(), m.label, TroubleshootingItemStyle.Render(elapsed.String()))
	if m.detail != "" {
		line += "  " + SpinnerDetailStyle.Render(m.detail)
	}
	return line + "\n"
}

// RunWithSpinner runs task while a spinner renders to out. The task's ctx is
// cancelled if the user interrupts.
func RunWithSpinner(ctx context.Context, out io.Writer, label string, task Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(label), tea.WithOutput(out), tea.WithContext(ctx))

	finished := make(chan error, 1)
	go func() {
		err := task(ctx, func(detail string) { p.Send(detailMsg(detail)) })
		finished <- err
		p.Send(taskDoneMsg{err: err})
	}()

	final, runErr := p.Run()
	if m, ok := final.(spinnerModel); ok {
		if m.done {
			return m.err
		}
		if m.interrupted {
			cancel()
			<-finished
			return ErrInterrupted
		}
	}

	// The program was killed, usually by ctx; wait for the task to notice
	cancel()
	err := <-finished
	if err == nil {
		err = runErr
	}
	return err
}

// RunPlain runs task without a terminal UI, printing each detail on its own line
func RunPlain(ctx context.Context, out io.Writer, label string, task Task) error {
	_, _ = fmt.Fprintln(out, label)
	return task(ctx, func(detail string) {
		_, _ = fmt.Fprintln(out, "  "+detail)
	})
}
