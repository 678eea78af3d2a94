package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

// noteModal collects the note a deferred transition needs (for example the reason a
// task is blocked) and persists it together with the stage change.
type noteModal struct {
	req        board.ManualEditRequest
	input      textarea.Model
	submitting bool
	err        string
}

// noteSubmittedMsg reports the outcome of persisting a manual edit.
type noteSubmittedMsg struct {
	req  board.ManualEditRequest
	task model.Task
	err  error
}

func newNoteModal(req board.ManualEditRequest, width int) *noteModal {
	ta := textarea.New()
	ta.Placeholder = "Why is this " + strings.ToLower(stageutil.Label(req.Target)) + "?"
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(modalWidth(width) - 6)
	ta.SetHeight(5)
	ta.Focus()
	return &noteModal{req: req, input: ta}
}

func modalWidth(screen int) int {
	w := 64
	if screen > 0 && screen-4 < w {
		w = screen - 4
	}
	if w < 24 {
		w = 24
	}
	return w
}

func submitNoteCmd(ctx context.Context, auth board.Authority, req board.ManualEditRequest, note string) tea.Cmd {
	return func() tea.Msg {
		t, err := board.SubmitManualEdit(ctx, auth, req, note)
		return noteSubmittedMsg{req: req, task: t, err: err}
	}
}

func (m appModel) updateNoteModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	nm := m.note
	if nm.submitting {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.note = nil
		cmd := m.showMinibuffer("Move cancelled")
		return m, cmd
	case key.Matches(msg, m.keys.SubmitMsg):
		note := strings.TrimSpace(nm.input.Value())
		if note == "" && stageutil.RequiresNote(nm.req.Target) {
			nm.err = "A note is required"
			return m, nil
		}
		nm.submitting = true
		nm.err = ""
		return m, submitNoteCmd(m.ctx, m.auth, nm.req, note)
	}
	var cmd tea.Cmd
	nm.input, cmd = nm.input.Update(msg)
	return m, cmd
}

func (m appModel) handleNoteSubmitted(msg noteSubmittedMsg) (tea.Model, tea.Cmd) {
	if m.note != nil && m.note.req.Task.ID == msg.req.Task.ID {
		if msg.err != nil {
			m.note.submitting = false
			m.note.err = msg.err.Error()
			return m, nil
		}
		m.note = nil
	}
	if msg.err != nil {
		cmd := m.showNotice(board.Notice{Level: board.NoticeError, Text: msg.err.Error(), TaskID: msg.req.Task.ID})
		return m, cmd
	}
	text := fmt.Sprintf("Moved %s to %s", msg.req.Task.ID, stageutil.Label(msg.req.Target))
	cmd := m.showMinibuffer(text)
	return m, tea.Batch(cmd, m.ctl.Refresh())
}

func (nm *noteModal) View(width int) string {
	title := strings.TrimSpace(nm.req.Task.Title)
	if title == "" {
		title = nm.req.Task.ID
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s %s %s", stageutil.Label(nm.req.From), glyphsFor(glyphPreference()).Arrow, stageutil.Label(nm.req.Target))),
		fitLine(title, modalWidth(width)-6),
		"",
		nm.input.View(),
		"",
	}
	switch {
	case nm.submitting:
		lines = append(lines, styleMuted().Render("Saving…"))
	case nm.err != "":
		lines = append(lines, errorStyle.Render(nm.err))
	default:
		lines = append(lines, styleMuted().Render("ctrl+s save · esc cancel"))
	}
	return modalStyle.Width(modalWidth(width) - 2).Render(strings.Join(lines, "\n"))
}
