package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"taskboard/internal/authority"
	"taskboard/internal/board"
	"taskboard/internal/model"
)

// noticeLog collects controller notices for commands that drive the board headless.
type noticeLog struct {
	notices []board.Notice
}

func (l *noticeLog) Notify(n board.Notice) tea.Cmd {
	l.notices = append(l.notices, n)
	return nil
}

func (l *noticeLog) firstError() error {
	for _, n := range l.notices {
		if n.Level == board.NoticeError {
			return errors.New(n.Text)
		}
	}
	return nil
}

// noteSubmitter is the manual edit flow for scripts: the note comes from --note and the
// change is persisted right away.
type noteSubmitter struct {
	ctx  context.Context
	auth board.Authority
	note string
}

type manualEditDoneMsg struct {
	req  board.ManualEditRequest
	task model.Task
	err  error
}

func (s noteSubmitter) OpenManualEdit(req board.ManualEditRequest) tea.Cmd {
	return func() tea.Msg {
		t, err := board.SubmitManualEdit(s.ctx, s.auth, req, s.note)
		return manualEditDoneMsg{req: req, task: t, err: err}
	}
}

// boardSession is a loaded board driven without a terminal.
type boardSession struct {
	ctl     *board.Controller
	client  *authority.Client
	notices *noticeLog
}

func (app *App) openBoard(cmd *cobra.Command, filter model.Filter, note string) (*boardSession, error) {
	client, err := app.client()
	if err != nil {
		return nil, err
	}
	ctx := app.context(cmd)
	nl := &noticeLog{}
	ctl := board.NewController(client,
		board.WithNotifier(nl),
		board.WithManualEditor(noteSubmitter{ctx: ctx, auth: client, note: note}),
		board.WithLogger(app.log),
		board.WithFilter(filter),
		board.WithContext(ctx),
	)
	ctl.Settle(ctl.Init())
	if err := ctl.View().FetchErr; err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	return &boardSession{ctl: ctl, client: client, notices: nl}, nil
}

// run settles cmd and reports the first failure. Changes that went through the manual
// edit flow are followed by a refresh so the board reflects them.
func (s *boardSession) run(cmd tea.Cmd) error {
	s.notices.notices = nil
	for _, msg := range s.ctl.Settle(cmd) {
		done, ok := msg.(manualEditDoneMsg)
		if !ok {
			continue
		}
		if done.err != nil {
			if errors.Is(done.err, board.ErrNoteRequired) {
				return fmt.Errorf("%w: pass --note", done.err)
			}
			return done.err
		}
		s.ctl.Settle(s.ctl.Refresh())
	}
	return s.notices.firstError()
}

func (s *boardSession) task(id string) (model.Stage, model.Task, error) {
	stage, t, ok := s.ctl.FindTask(id)
	if !ok {
		return "", model.Task{}, board.NotFoundError{Kind: "task", ID: id}
	}
	return stage, t, nil
}
