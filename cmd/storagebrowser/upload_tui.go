package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

const uploadTickInterval = 100 * time.Millisecond

type uploadTickMsg time.Time

type uploadDoneMsg struct{ err error }

type uploadModel struct {
	tracker *uploadProgress
	bar     progress.Model
	cancel  context.CancelFunc

	done bool
	err  error
}

func newUploadModel(tracker *uploadProgress, cancel context.CancelFunc) uploadModel {
	return uploadModel{
		tracker: tracker,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		cancel:  cancel,
	}
}

func uploadTick() tea.Cmd {
	return tea.Tick(uploadTickInterval, func(t time.Time) tea.Msg {
		return uploadTickMsg(t)
	})
}

func (m uploadModel) Init() tea.Cmd {
	return uploadTick()
}

func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			return m, nil
		}

	case uploadTickMsg:
		return m, uploadTick()

	case uploadDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-20, 10), 80)
	}

	return m, nil
}

func (m uploadModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Uploading"))
	b.WriteString("\n\n  ")
	b.WriteString(m.bar.ViewAs(m.tracker.Fraction()))
	b.WriteString("\n\n  ")
	b.WriteString(fmt.Sprintf("%s / %s  %d/%d files",
		humanize.Bytes(uint64(m.tracker.Bytes())),
		humanize.Bytes(uint64(m.tracker.total)),
		m.tracker.completed.Load(),
		m.tracker.files,
	))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorStyle.Render("  " + m.err.Error()))
		b.WriteString("\n")
	case m.done:
		b.WriteString(focusedStyle.Render("  Done"))
		b.WriteString("\n")
	default:
		b.WriteString(helpStyle.Render("  Esc or Ctrl+C to abort."))
		b.WriteString("\n")
	}

	return b.String()
}

// RunUploadTUI runs fn while drawing a progress bar fed by tracker. It returns
// the error of fn.
func RunUploadTUI(ctx context.Context, tracker *uploadProgress, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newUploadModel(tracker, cancel), tea.WithContext(ctx))

	errCh := make(chan error, 1)
	go func() {
		err := fn(ctx)
		errCh <- err
		p.Send(uploadDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("upload ui: %w", err)
	}

	return <-errCh
}
