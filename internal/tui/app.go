package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

// boardTop is the screen row the columns start at (below the title bar).
const boardTop = 1

// dropSlack is how far (in cells) outside a surface a release still counts as a drop on it.
const dropSlack = 2

// commentSource is implemented by authorities that can list a task's comments.
type commentSource interface {
	Comments(ctx context.Context, taskID string) ([]model.Comment, error)
}

type commentsMsg struct {
	taskID   string
	comments []model.Comment
	err      error
}

type appModel struct {
	ctl  *board.Controller
	auth board.Authority
	ctx  context.Context
	log  logrus.FieldLogger
	now  func() time.Time
	act  *board.Activation

	width  int
	height int

	sel      selection
	keys     keyMap
	help     help.Model
	spin     spinner.Model
	glyphs   glyphs
	picking  bool
	note     *noteModal
	detail   bool
	comments map[string][]model.Comment

	notice    board.Notice
	noticeSeq int
	noticeTTL time.Duration
}

func newAppModel(auth board.Authority, cfg Config) appModel {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	var sensor board.Sensor = board.DefaultPointerSensor
	if cfg.Touch {
		sensor = board.DefaultTouchSensor
	}
	g := glyphsFor(glyphPreference())
	ctl := board.NewController(auth,
		board.WithNotifier(programNotifier{}),
		board.WithManualEditor(noteEditor{}),
		board.WithLogger(logger),
		board.WithFilter(cfg.Filter),
		board.WithContext(cfg.Context),
		board.WithClock(cfg.Now),
	)
	return appModel{
		ctl:      ctl,
		auth:     auth,
		ctx:      cfg.Context,
		log:      logger,
		now:      cfg.Now,
		act:      board.NewActivation(sensor),
		keys:     defaultKeyMap(),
		help:     help.New(),
		spin:     spinner.New(spinner.WithSpinner(spinner.Spinner{Frames: g.Spinner, FPS: time.Second / 10})),
		glyphs:   g,
		comments:  map[string][]model.Comment{},
		noticeTTL: defaultNoticeTTL,
	}
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.ctl.Init(), m.spin.Tick)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case board.FetchResultMsg, board.MutationResultMsg:
		cmd := m.ctl.Update(msg)
		m.sel = m.sel.clamp(m.ctl.View().Board)
		return m, cmd

	case noticeMsg:
		cmd := m.showNotice(msg.notice)
		return m, cmd

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = board.Notice{}
		}
		return m, nil

	case openNoteMsg:
		m.note = newNoteModal(msg.req, m.width)
		m.picking = false
		return m, textarea.Blink

	case noteSubmittedMsg:
		return m.handleNoteSubmitted(msg)

	case commentsMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).WithField("task", msg.taskID).Debug("loading comments failed")
			return m, nil
		}
		m.comments[msg.taskID] = msg.comments
		return m, nil

	case tea.MouseMsg:
		if m.note != nil {
			return m, nil
		}
		return m.handleMouse(msg)

	case tea.KeyMsg:
		if m.note != nil {
			return m.updateNoteModal(msg)
		}
		return m.handleKey(msg)
	}

	if m.note != nil {
		var cmd tea.Cmd
		m.note.input, cmd = m.note.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.ctl.View().Board

	if m.picking {
		m.picking = false
		if n, err := strconv.Atoi(msg.String()); err == nil {
			stages := model.Stages()
			if n >= 1 && n <= len(stages) {
				return m, m.ctl.MoveTask(m.sel.TaskID, stages[n-1])
			}
		}
		cmd := m.showMinibuffer("Move cancelled")
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		switch {
		case m.ctl.View().Drag == board.DragDragging:
			m.act.Release()
			m.ctl.DragCancelled()
		case m.detail:
			m.detail = false
		}
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.ctl.Refresh()
	case key.Matches(msg, m.keys.Left):
		m.sel = m.sel.column(snap, -1)
		return m, m.selectionChanged()
	case key.Matches(msg, m.keys.Right):
		m.sel = m.sel.column(snap, 1)
		return m, m.selectionChanged()
	case key.Matches(msg, m.keys.Up):
		m.sel = m.sel.step(snap, -1)
		return m, m.selectionChanged()
	case key.Matches(msg, m.keys.Down):
		m.sel = m.sel.step(snap, 1)
		return m, m.selectionChanged()
	}

	stage, t, ok := m.selectedTask()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.MovePrev), key.Matches(msg, m.keys.MoveNext):
		delta := 1
		if key.Matches(msg, m.keys.MovePrev) {
			delta = -1
		}
		to := stageutil.Neighbor(stage, delta)
		if to == stage {
			return m, nil
		}
		return m, m.ctl.MoveTask(t.ID, to)
	case key.Matches(msg, m.keys.SetStage):
		m.picking = true
		return m, nil
	case key.Matches(msg, m.keys.Priority):
		next := model.Priorities[(t.Priority.Rank()+1)%len(model.Priorities)]
		return m, m.ctl.EditTask(t.ID, model.TaskPatch{Priority: &next})
	case key.Matches(msg, m.keys.Unassign):
		if t.Assignee() == "" {
			cmd := m.showMinibuffer(t.ID + " is already unassigned")
			return m, cmd
		}
		return m, m.ctl.EditTask(t.ID, model.TaskPatch{Unassign: true})
	case key.Matches(msg, m.keys.Detail):
		m.detail = !m.detail
		if m.detail {
			return m, m.loadComments()
		}
	}
	return m, nil
}

func (m appModel) selectedTask() (model.Stage, model.Task, bool) {
	if strings.TrimSpace(m.sel.TaskID) == "" {
		return "", model.Task{}, false
	}
	return m.ctl.FindTask(m.sel.TaskID)
}

// selectionChanged keeps the detail pane's comments in step with the focused card.
func (m appModel) selectionChanged() tea.Cmd {
	if !m.detail {
		return nil
	}
	return m.loadComments()
}

func (m appModel) loadComments() tea.Cmd {
	src, ok := m.auth.(commentSource)
	id := m.sel.TaskID
	if !ok || id == "" {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		cs, err := src.Comments(ctx, id)
		return commentsMsg{taskID: id, comments: cs, err: err}
	}
}

func (m appModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	p := board.Point{X: msg.X, Y: msg.Y}
	layout := m.layout()
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		id, ok := layout.cardAt(p)
		if !ok {
			m.act.Press("", p, m.now())
			return m, nil
		}
		m.sel = selection{TaskID: id}.clamp(m.ctl.View().Board)
		m.act.Press(id, p, m.now())
		return m, nil

	case tea.MouseActionMotion:
		if m.act.Move(p, m.now()) {
			if !m.ctl.DragStarted(m.act.TaskID()) {
				m.act.Release()
				return m, nil
			}
		}
		if m.ctl.View().Drag == board.DragDragging {
			target, _ := board.NearestSurface(p, layout.Surfaces, dropSlack)
			m.ctl.DragOver(target)
		}
		return m, nil

	case tea.MouseActionRelease:
		if !m.act.Release() || m.ctl.View().Drag != board.DragDragging {
			return m, nil
		}
		target, ok := board.NearestSurface(p, layout.Surfaces, dropSlack)
		if !ok {
			m.ctl.DragCancelled()
			return m, nil
		}
		cmd := m.ctl.DragCompleted(target)
		m.sel = m.sel.clamp(m.ctl.View().Board)
		return m, cmd
	}
	return m, nil
}

// bodySize returns the size of the area between the title bar and the footer.
func (m appModel) bodySize() (int, int) {
	h := m.height - boardTop - lipgloss.Height(m.footerView())
	if h < 0 {
		h = 0
	}
	return m.width, h
}

func (m appModel) boardWidth() int {
	w, _ := m.bodySize()
	if m.detail && w >= 90 {
		return w * 3 / 5
	}
	if m.detail {
		return 0
	}
	return w
}

func (m appModel) layout() boardLayout {
	v := m.ctl.View()
	_, h := m.bodySize()
	st := renderState{
		sel:    m.sel,
		agg:    board.Aggregator{Now: m.now},
		glyphs: m.glyphs,
	}
	if v.Session != nil {
		st.dragging = v.Session.TaskID
		st.over = v.Session.Over
	}
	return renderColumns(v.Board, st, boardTop, m.boardWidth(), h)
}

func (m appModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	v := m.ctl.View()
	w, h := m.bodySize()

	var body string
	switch {
	case !v.Board.Loaded && v.FetchErr != nil:
		body = fitPane(errorStyle.Render(" Couldn't load board: "+v.FetchErr.Error()), w, h)
	case !v.Board.Loaded:
		body = fitPane(styleMuted().Render(" "+m.spin.View()+" Loading board…"), w, h)
	default:
		bw := m.boardWidth()
		parts := []string{}
		if bw > 0 {
			parts = append(parts, m.layout().View)
		}
		if m.detail {
			dw := w - bw
			if bw > 0 {
				dw -= columnGap
				parts = append(parts, strings.Repeat(" ", columnGap))
			}
			parts = append(parts, m.detailView(dw, h))
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}
	if m.note != nil {
		body = lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, m.note.View(w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.titleView(v), body, m.footerView())
}

func (m appModel) titleView(v board.View) string {
	left := "Taskboard"
	var scope []string
	if s := strings.TrimSpace(v.Filter.ProjectID); s != "" {
		scope = append(scope, "project:"+s)
	}
	if s := strings.TrimSpace(v.Filter.AssignedTo); s != "" {
		scope = append(scope, "@"+s)
	}
	if s := strings.TrimSpace(v.Filter.Query); s != "" {
		scope = append(scope, fmt.Sprintf("%q", s))
	}
	if len(scope) > 0 {
		left += "  " + strings.Join(scope, " ")
	}

	var right []string
	if v.Loading {
		right = append(right, m.spin.View())
	}
	if v.InFlight > 0 {
		right = append(right, fmt.Sprintf("saving %d", v.InFlight))
	}
	right = append(right, v.Alerts...)
	text := left
	if len(right) > 0 {
		text += "  " + strings.Join(right, " · ")
	}
	return titleBarStyle.Width(m.width).Render(fitLine(text, max(m.width-2, 0)))
}

func (m appModel) footerView() string {
	var line string
	switch {
	case m.picking:
		var opts []string
		for i, s := range model.Stages() {
			opts = append(opts, fmt.Sprintf("%d %s", i+1, stageutil.Label(s)))
		}
		line = "Move to: " + strings.Join(opts, "  ")
	case m.notice.Text != "" && m.notice.Level == board.NoticeError:
		line = errorStyle.Render(m.notice.Text)
	case m.notice.Text != "":
		line = m.notice.Text
	}
	return lipgloss.JoinVertical(lipgloss.Left, fitLine(line, m.width), m.help.View(m.keys))
}

func (m appModel) detailView(width, height int) string {
	stage, t, ok := m.selectedTask()
	if !ok || width <= 0 {
		return fitPane(styleMuted().Render(" No task selected"), width, height)
	}
	inner := max(width-2, 1)
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(fitLine(t.Title, inner)),
		metaStyle.Render(fmt.Sprintf("%s · %s · %s", t.ID, stageutil.Label(stage), t.Priority)),
	}
	due := dueLabel(t, m.now())
	if (board.Aggregator{Now: m.now}).IsOverdue(t, stage) {
		due = overdueStyle.Render(due)
	}
	lines = append(lines, due)
	if a := t.Assignee(); a != "" {
		lines = append(lines, "@"+a)
	} else {
		lines = append(lines, alertStyle.Render("unassigned"))
	}
	if p := strings.TrimSpace(t.ProjectName); p != "" {
		lines = append(lines, metaStyle.Render(p))
	}
	if d := renderMarkdown(t.Description, inner); d != "" {
		lines = append(lines, "", d)
	}
	if cs := m.comments[t.ID]; len(cs) > 0 {
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Comments (%d)", len(cs))))
		for _, c := range cs {
			lines = append(lines, metaStyle.Render(c.CreatedAt.Local().Format("Jan 02 15:04")))
			lines = append(lines, wrapText(c.Body, inner, "", "")...)
		}
	}
	pane := lipgloss.NewStyle().Padding(0, 1).Render(fitPane(strings.Join(lines, "\n"), inner, 0))
	return fitPane(pane, width, height)
}
