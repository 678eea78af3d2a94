package board

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

func (l NoticeLevel) String() string {
	if l == NoticeError {
		return "error"
	}
	return "info"
}

// Notice is a non-fatal, user-visible notification.
type Notice struct {
	Level  NoticeLevel
	Text   string
	TaskID string
}

// Notifier delivers notices. The returned command (may be nil) is run by the caller.
type Notifier interface {
	Notify(n Notice) tea.Cmd
}

// FetchResultMsg carries the result of a grouped-tasks fetch. Seq orders fetches so only
// the most recently issued one is applied.
type FetchResultMsg struct {
	Seq  uint64
	Data model.GroupedTasks
	Err  error
}

// View is what presentation renders.
type View struct {
	Board    Snapshot
	Loading  bool
	Drag     DragState
	Session  *DragSession
	LastDrop DragState
	InFlight int
	Alerts   []string
	Filter   model.Filter
	FetchErr error
}

// Controller wires fetches, drag gestures and direct moves through the transition policy
// into the mutator. Its methods must be called from a single goroutine (the event loop);
// the returned commands do the network work and report back through Update.
type Controller struct {
	store   *Store
	drag    *DragCoordinator
	mutator *Mutator
	agg     Aggregator

	auth     Authority
	notifier Notifier
	editor   ManualEditor
	log      logrus.FieldLogger
	ctx      context.Context
	filter   model.Filter

	loading  bool
	fetchSeq uint64
	inFlight int
	fetchErr error
}

type Option func(*Controller)

func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }

func WithManualEditor(e ManualEditor) Option { return func(c *Controller) { c.editor = e } }

func WithLogger(l logrus.FieldLogger) Option { return func(c *Controller) { c.log = l } }

func WithFilter(f model.Filter) Option { return func(c *Controller) { c.filter = f } }

func WithContext(ctx context.Context) Option { return func(c *Controller) { c.ctx = ctx } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.agg.Now = now } }

func NewController(auth Authority, opts ...Option) *Controller {
	c := &Controller{auth: auth, ctx: context.Background()}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	c.store = NewStore(c.agg)
	c.drag = NewDragCoordinator(c.store)
	c.mutator = NewMutator(c.ctx, c.store, auth, c.editor)
	return c
}

// Init fetches the board for the first time.
func (c *Controller) Init() tea.Cmd { return c.Refresh() }

// Refresh refetches the whole board unconditionally. Any optimistic state still on the
// board is replaced by whatever the authority returns.
func (c *Controller) Refresh() tea.Cmd {
	c.fetchSeq++
	seq := c.fetchSeq
	c.loading = true
	ctx, auth, filter := c.ctx, c.auth, c.filter.Grouped()
	return func() tea.Msg {
		data, err := auth.GroupedTasks(ctx, filter)
		return FetchResultMsg{Seq: seq, Data: data, Err: err}
	}
}

// SetFilter changes the board scope and refetches.
func (c *Controller) SetFilter(f model.Filter) tea.Cmd {
	c.filter = f
	return c.Refresh()
}

// Update handles the results of commands previously returned by the controller.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case FetchResultMsg:
		return c.handleFetch(msg)
	case MutationResultMsg:
		return c.handleMutation(msg)
	}
	return nil
}

func (c *Controller) handleFetch(msg FetchResultMsg) tea.Cmd {
	if msg.Seq != c.fetchSeq {
		c.log.WithFields(logrus.Fields{"seq": msg.Seq, "latest": c.fetchSeq}).Debug("dropping superseded board fetch")
		return nil
	}
	c.loading = false
	if msg.Err != nil {
		c.fetchErr = msg.Err
		c.log.WithError(msg.Err).Warn("board fetch failed")
		return c.notify(Notice{Level: NoticeError, Text: "Couldn't load board: " + msg.Err.Error()})
	}
	if err := c.store.Load(msg.Data); err != nil {
		c.fetchErr = err
		c.log.WithError(err).Warn("board payload rejected")
		return c.notify(Notice{Level: NoticeError, Text: "Couldn't load board: " + err.Error()})
	}
	c.fetchErr = nil
	return nil
}

func (c *Controller) handleMutation(msg MutationResultMsg) tea.Cmd {
	if c.inFlight > 0 {
		c.inFlight--
	}
	fields := logrus.Fields{"task": msg.TaskID, "from": msg.From, "to": msg.To}
	if msg.Err == nil {
		c.log.WithFields(fields).Debug("task update confirmed")
		return nil
	}
	c.log.WithFields(fields).WithError(msg.Err).Warn("task update failed; reloading board")
	text := fmt.Sprintf("Couldn't update %s: %v", msg.TaskID, msg.Err)
	if msg.From != msg.To {
		text = fmt.Sprintf("Couldn't move %s to %s: %v", msg.TaskID, stageutil.Label(msg.To), msg.Err)
	}
	return tea.Batch(
		c.notify(Notice{Level: NoticeError, Text: text, TaskID: msg.TaskID}),
		c.revert(),
	)
}

// revert discards optimistic changes by re-deriving the board from the authority.
func (c *Controller) revert() tea.Cmd { return c.Refresh() }

// DragStarted begins a gesture. It returns false if the task can't be found (the gesture
// is then ignored).
func (c *Controller) DragStarted(taskID string) bool {
	if !c.drag.Start(taskID) {
		c.log.WithField("task", taskID).Debug("drag start ignored")
		return false
	}
	return true
}

func (c *Controller) DragOver(target DropTarget) { c.drag.Over(target) }

func (c *Controller) DragCancelled() { c.drag.Cancel() }

// DragCompleted ends the gesture over target and applies the resulting transition.
func (c *Controller) DragCompleted(target DropTarget) tea.Cmd {
	p, ok := c.drag.Drop(target)
	if !ok {
		c.log.WithField("target", target).Debug("drop target unresolved; gesture cancelled")
		return nil
	}
	return c.propose(p)
}

// MoveTask moves a task by direct selection; it goes through the same policy as a drag.
func (c *Controller) MoveTask(taskID string, to model.Stage) tea.Cmd {
	from, t, ok := c.store.FindTask(taskID)
	if !ok || !stageutil.Valid(to) {
		c.log.WithFields(logrus.Fields{"task": taskID, "to": to}).Debug("move ignored")
		return nil
	}
	return c.propose(Proposal{Task: t, From: from, To: to})
}

// EditTask applies an inline edit (priority, assignee and/or stage).
func (c *Controller) EditTask(taskID string, patch model.TaskPatch) tea.Cmd {
	from, t, ok := c.store.FindTask(taskID)
	if !ok {
		c.log.WithField("task", taskID).Debug("edit ignored")
		return nil
	}
	to := from
	if patch.Status != nil {
		if !stageutil.Valid(*patch.Status) {
			return c.notify(Notice{Level: NoticeError, Text: fmt.Sprintf("%v: %q", ErrInvalidStage, *patch.Status), TaskID: taskID})
		}
		to = *patch.Status
	}
	p := Proposal{Task: t, From: from, To: to}
	d := Classify(p)
	cmd, err := c.mutator.Edit(t, from, patch, d)
	return c.afterApply(p, d, cmd, err)
}

func (c *Controller) propose(p Proposal) tea.Cmd {
	d := Classify(p)
	cmd, err := c.mutator.Apply(p, d)
	return c.afterApply(p, d, cmd, err)
}

func (c *Controller) afterApply(p Proposal, d Decision, cmd tea.Cmd, err error) tea.Cmd {
	fields := logrus.Fields{"task": p.Task.ID, "from": p.From, "to": p.To, "decision": d}
	if err != nil {
		// The cached board disagrees with itself; resynchronize.
		c.log.WithFields(fields).WithError(err).Warn("local update failed; reloading board")
		return tea.Batch(
			c.notify(Notice{Level: NoticeError, Text: err.Error(), TaskID: p.Task.ID}),
			c.revert(),
		)
	}
	switch d {
	case DecisionOptimistic, DecisionNoOp:
		if cmd == nil {
			return nil
		}
		c.inFlight++
		c.log.WithFields(fields).Debug("applied optimistically")
	case DecisionDeferred:
		c.log.WithFields(fields).Info("transition needs manual input")
		title := strings.TrimSpace(p.Task.Title)
		if title == "" {
			title = p.Task.ID
		}
		cmd = tea.Batch(
			c.notify(Notice{
				Level:  NoticeInfo,
				Text:   fmt.Sprintf("Moving %q to %s needs a reason", title, stageutil.Label(p.To)),
				TaskID: p.Task.ID,
			}),
			cmd,
		)
	}
	return cmd
}

func (c *Controller) notify(n Notice) tea.Cmd {
	if c.notifier == nil {
		return nil
	}
	return c.notifier.Notify(n)
}

// FindTask looks a task up on the current board.
func (c *Controller) FindTask(taskID string) (model.Stage, model.Task, bool) {
	return c.store.FindTask(taskID)
}

// View returns a read-only snapshot for presentation.
func (c *Controller) View() View {
	v := View{
		Board:    c.store.Snapshot(),
		Loading:  c.loading,
		Drag:     c.drag.State(),
		LastDrop: c.drag.LastOutcome(),
		InFlight: c.inFlight,
		Filter:   c.filter,
		FetchErr: c.fetchErr,
	}
	if s, ok := c.drag.Session(); ok {
		v.Session = &s
	}
	v.Alerts = c.agg.Alerts(v.Board.Summary)
	return v
}

// Settle runs cmd, and every command it leads to, on the calling goroutine, feeding the
// controller's own messages back into Update. Other messages are returned in order.
// It is the headless counterpart of a bubbletea program loop.
func (c *Controller) Settle(cmd tea.Cmd) []tea.Msg {
	var out []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case FetchResultMsg, MutationResultMsg:
			queue = append(queue, c.Update(msg))
		default:
			out = append(out, msg)
		}
	}
	return out
}
