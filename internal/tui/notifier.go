package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/board"
)

const defaultNoticeTTL = 4 * time.Second

// noticeMsg shows a notice in the minibuffer.
type noticeMsg struct{ notice board.Notice }

// noticeExpiredMsg clears the minibuffer unless a newer notice replaced it.
type noticeExpiredMsg struct{ seq int }

// openNoteMsg opens the note modal for a deferred transition.
type openNoteMsg struct{ req board.ManualEditRequest }

// programNotifier routes controller notices back into the program as messages.
type programNotifier struct{}

func (programNotifier) Notify(n board.Notice) tea.Cmd {
	return func() tea.Msg { return noticeMsg{notice: n} }
}

// noteEditor is the manual edit flow: it asks the program to open the note modal.
type noteEditor struct{}

func (noteEditor) OpenManualEdit(req board.ManualEditRequest) tea.Cmd {
	return func() tea.Msg { return openNoteMsg{req: req} }
}

func (m *appModel) showNotice(n board.Notice) tea.Cmd {
	m.notice = n
	m.noticeSeq++
	seq := m.noticeSeq
	return tea.Tick(m.noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

func (m *appModel) showMinibuffer(text string) tea.Cmd {
	return m.showNotice(board.Notice{Level: board.NoticeInfo, Text: text})
}
