package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/model"
)

type patchCall struct {
	ID    string
	Patch model.TaskPatch
}

// fakeAuthority serves queued boards in order (repeating the last one) and records patches.
type fakeAuthority struct {
	mu       sync.Mutex
	boards   []model.GroupedTasks
	fetchErr error
	patchErr error
	fetches  int
	patches  []patchCall
}

func (f *fakeAuthority) GroupedTasks(_ context.Context, _ model.Filter) (model.GroupedTasks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return model.GroupedTasks{}, f.fetchErr
	}
	if len(f.boards) == 0 {
		return model.GroupedTasks{}, nil
	}
	b := f.boards[0]
	if len(f.boards) > 1 {
		f.boards = f.boards[1:]
	}
	return b, nil
}

func (f *fakeAuthority) PatchTask(_ context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patchCall{ID: id, Patch: patch})
	if f.patchErr != nil {
		return model.Task{}, f.patchErr
	}
	t := model.Task{ID: id}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	return t, nil
}

type recordingNotifier struct{ notices []Notice }

func (r *recordingNotifier) Notify(n Notice) tea.Cmd {
	r.notices = append(r.notices, n)
	return nil
}

type recordingEditor struct{ requests []ManualEditRequest }

func (r *recordingEditor) OpenManualEdit(req ManualEditRequest) tea.Cmd {
	r.requests = append(r.requests, req)
	return nil
}

func twoTodoBoard() model.GroupedTasks {
	return model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageTodo: {Tasks: []model.Task{
			{ID: "T1", Title: "Write report", Status: model.StageTodo},
			{ID: "T2", Title: "Review budget", Status: model.StageTodo},
		}, Count: 2},
		model.StageDone: {Tasks: []model.Task{}, Count: 0},
	}}
}

func newTestController(t *testing.T, auth *fakeAuthority) (*Controller, *recordingNotifier, *recordingEditor) {
	t.Helper()
	n := &recordingNotifier{}
	e := &recordingEditor{}
	c := NewController(auth,
		WithNotifier(n),
		WithManualEditor(e),
		WithClock(func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) }),
	)
	c.Settle(c.Init())
	if !c.View().Board.Loaded {
		t.Fatalf("expected board to be loaded after init")
	}
	return c, n, e
}

func columnIDs(t *testing.T, v View, stage model.Stage) []string {
	t.Helper()
	col, ok := v.Board.Column(stage)
	if !ok {
		t.Fatalf("missing column %q", stage)
	}
	if col.Count != len(col.Tasks) {
		t.Fatalf("column %q: count %d but %d tasks", stage, col.Count, len(col.Tasks))
	}
	ids := make([]string, 0, len(col.Tasks))
	for _, tk := range col.Tasks {
		ids = append(ids, tk.ID)
	}
	return ids
}

func sameIDs(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func TestController_DragToDoneSucceeds(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c, notes, _ := newTestController(t, auth)

	if !c.DragStarted("T1") {
		t.Fatalf("expected drag to start")
	}
	if c.View().Drag != DragDragging {
		t.Fatalf("expected dragging state")
	}
	cmd := c.DragCompleted(DropTarget{Stage: model.StageDone})
	if cmd == nil {
		t.Fatalf("expected a remote update command")
	}

	// Applied before the authority answers.
	v := c.View()
	if got := columnIDs(t, v, model.StageTodo); !sameIDs(got, []string{"T2"}) {
		t.Fatalf("expected todo=[T2] optimistically, got %v", got)
	}
	if got := columnIDs(t, v, model.StageDone); !sameIDs(got, []string{"T1"}) {
		t.Fatalf("expected done=[T1] optimistically, got %v", got)
	}
	if v.InFlight != 1 {
		t.Fatalf("expected 1 update in flight, got %d", v.InFlight)
	}

	c.Settle(cmd)

	v = c.View()
	done, _ := v.Board.Column(model.StageDone)
	if len(done.Tasks) != 1 || done.Tasks[0].ID != "T1" || done.Tasks[0].Status != model.StageDone {
		t.Fatalf("expected done=[T1 status=done], got %+v", done.Tasks)
	}
	if v.InFlight != 0 {
		t.Fatalf("expected nothing in flight, got %d", v.InFlight)
	}
	if len(auth.patches) != 1 || auth.patches[0].ID != "T1" || *auth.patches[0].Patch.Status != model.StageDone {
		t.Fatalf("expected one status patch for T1, got %+v", auth.patches)
	}
	if auth.fetches != 1 {
		t.Fatalf("expected no refetch after success, got %d fetches", auth.fetches)
	}
	if len(notes.notices) != 0 {
		t.Fatalf("expected no notices, got %+v", notes.notices)
	}
	if v.Drag != DragIdle || v.LastDrop != DragDropped {
		t.Fatalf("expected idle after drop, got %v/%v", v.Drag, v.LastDrop)
	}
}

func TestController_RemoteFailureRefetches(t *testing.T) {
	next := model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageTodo:       {Tasks: []model.Task{{ID: "T1", Status: model.StageTodo}}},
		model.StageInProgress: {Tasks: []model.Task{{ID: "T2", Status: model.StageInProgress}}},
	}}
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard(), next}}
	c, notes, _ := newTestController(t, auth)
	auth.patchErr = errors.New("boom")

	c.DragStarted("T1")
	c.Settle(c.DragCompleted(DropTarget{Stage: model.StageDone}))

	v := c.View()
	if got := columnIDs(t, v, model.StageTodo); !sameIDs(got, []string{"T1"}) {
		t.Fatalf("expected todo from refetch, got %v", got)
	}
	if got := columnIDs(t, v, model.StageInProgress); !sameIDs(got, []string{"T2"}) {
		t.Fatalf("expected in_progress from refetch, got %v", got)
	}
	if got := columnIDs(t, v, model.StageDone); len(got) != 0 {
		t.Fatalf("expected optimistic move to be discarded, got done=%v", got)
	}
	if auth.fetches != 2 {
		t.Fatalf("expected exactly one refetch, got %d fetches", auth.fetches)
	}
	if len(notes.notices) != 1 || notes.notices[0].Level != NoticeError || notes.notices[0].TaskID != "T1" {
		t.Fatalf("expected one error notice for T1, got %+v", notes.notices)
	}
	if v.Loading {
		t.Fatalf("expected loading to clear after the refetch")
	}
}

func TestController_DragOutlivesReload(t *testing.T) {
	moved := model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageTodo:   {Tasks: []model.Task{{ID: "T2", Status: model.StageTodo}}},
		model.StageReview: {Tasks: []model.Task{{ID: "T1", Status: model.StageReview}}},
	}}
	gone := model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageDone: {Tasks: []model.Task{{ID: "T1", Status: model.StageDone}}},
	}}
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard(), moved, gone}}
	c, notes, _ := newTestController(t, auth)

	// T1 changes stage while it is being dragged.
	c.DragStarted("T1")
	c.Settle(c.Refresh())
	c.Settle(c.DragCompleted(DropTarget{Stage: model.StageDone}))
	if len(notes.notices) != 0 {
		t.Fatalf("expected no notices, got %+v", notes.notices)
	}
	if got := columnIDs(t, c.View(), model.StageDone); !sameIDs(got, []string{"T1"}) {
		t.Fatalf("expected done=[T1], got %v", got)
	}
	if len(auth.patches) != 1 || auth.patches[0].ID != "T1" {
		t.Fatalf("expected one patch for T1, got %+v", auth.patches)
	}

	// T2 disappears while it is being dragged.
	c.DragStarted("T2")
	c.Settle(c.Refresh())
	if cmd := c.DragCompleted(DropTarget{Stage: model.StageDone}); cmd != nil {
		t.Fatalf("expected no command for a task that left the board")
	}
	v := c.View()
	if v.Drag != DragIdle || v.LastDrop != DragCancelled {
		t.Fatalf("expected cancelled gesture, got %v/%v", v.Drag, v.LastDrop)
	}
	if len(notes.notices) != 0 || len(auth.patches) != 1 || auth.fetches != 3 {
		t.Fatalf("expected a silent cancel, got notices=%+v patches=%d fetches=%d",
			notes.notices, len(auth.patches), auth.fetches)
	}
}

func TestController_ConcurrentUpdatesLastRefetchWins(t *testing.T) {
	// What the authority holds after T2's move lands and T1's is rejected.
	refetched := model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageTodo:   {Tasks: []model.Task{{ID: "T1", Status: model.StageTodo}}},
		model.StageReview: {Tasks: []model.Task{{ID: "T2", Status: model.StageReview}}},
	}}
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard(), refetched}}
	c, notes, _ := newTestController(t, auth)

	first := c.MoveTask("T1", model.StageDone)
	second := c.MoveTask("T2", model.StageReview)
	if first == nil || second == nil {
		t.Fatalf("expected two remote update commands")
	}
	if v := c.View(); v.InFlight != 2 {
		t.Fatalf("expected 2 updates in flight, got %d", v.InFlight)
	}

	// A new gesture starts while both PATCHes are outstanding.
	if !c.DragStarted("T1") {
		t.Fatalf("expected drag to start while updates are in flight")
	}
	if s := c.View().Session; s == nil || s.From != model.StageDone {
		t.Fatalf("expected the drag to start from the optimistic stage, got %+v", s)
	}

	auth.patchErr = errors.New("conflict")
	failed := first()
	auth.patchErr = nil
	succeeded := second()

	c.Settle(c.Update(failed))
	c.Settle(c.Update(succeeded))

	v := c.View()
	if v.InFlight != 0 {
		t.Fatalf("expected nothing in flight, got %d", v.InFlight)
	}
	if got := columnIDs(t, v, model.StageTodo); !sameIDs(got, []string{"T1"}) {
		t.Fatalf("expected todo=[T1] from the refetch, got %v", got)
	}
	if got := columnIDs(t, v, model.StageReview); !sameIDs(got, []string{"T2"}) {
		t.Fatalf("expected review=[T2] from the refetch, got %v", got)
	}
	if got := columnIDs(t, v, model.StageDone); len(got) != 0 {
		t.Fatalf("expected done to be empty after the refetch, got %v", got)
	}
	if auth.fetches != 2 {
		t.Fatalf("expected one refetch for the one failure, got %d fetches", auth.fetches)
	}
	if len(notes.notices) != 1 || notes.notices[0].Level != NoticeError || notes.notices[0].TaskID != "T1" {
		t.Fatalf("expected exactly one error notice for T1, got %+v", notes.notices)
	}

	// The gesture still running lands relative to the refetched board.
	c.Settle(c.DragCompleted(DropTarget{Stage: model.StageInProgress}))
	if got := columnIDs(t, c.View(), model.StageInProgress); !sameIDs(got, []string{"T1"}) {
		t.Fatalf("expected in_progress=[T1], got %v", got)
	}
	if last := auth.patches[len(auth.patches)-1]; last.ID != "T1" || *last.Patch.Status != model.StageInProgress {
		t.Fatalf("unexpected last patch: %+v", last)
	}
	if len(notes.notices) != 1 {
		t.Fatalf("expected no further notices, got %+v", notes.notices)
	}
}

func TestController_DragToBlockedDefers(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c, notes, editor := newTestController(t, auth)

	c.DragStarted("T2")
	c.Settle(c.DragCompleted(DropTarget{Stage: model.StageBlocked}))

	if len(auth.patches) != 0 {
		t.Fatalf("expected no remote call, got %+v", auth.patches)
	}
	if len(editor.requests) != 1 {
		t.Fatalf("expected manual edit flow to open once, got %d", len(editor.requests))
	}
	req := editor.requests[0]
	if req.Task.ID != "T2" || req.From != model.StageTodo || req.Target != model.StageBlocked {
		t.Fatalf("unexpected manual edit request: %+v", req)
	}
	v := c.View()
	if got := columnIDs(t, v, model.StageTodo); !sameIDs(got, []string{"T1", "T2"}) {
		t.Fatalf("expected board untouched, got todo=%v", got)
	}
	if got := columnIDs(t, v, model.StageBlocked); len(got) != 0 {
		t.Fatalf("expected blocked to stay empty, got %v", got)
	}
	if len(notes.notices) != 1 || notes.notices[0].Level != NoticeInfo {
		t.Fatalf("expected an info notice, got %+v", notes.notices)
	}
}

func TestController_DropOnEmptyCanvasCancels(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c, notes, editor := newTestController(t, auth)
	before := c.View()

	c.DragStarted("T1")
	if cmd := c.DragCompleted(DropTarget{}); cmd != nil {
		t.Fatalf("expected no command for an unresolved drop")
	}

	v := c.View()
	if v.Drag != DragIdle || v.LastDrop != DragCancelled {
		t.Fatalf("expected cancelled gesture, got %v/%v", v.Drag, v.LastDrop)
	}
	if !sameIDs(columnIDs(t, v, model.StageTodo), columnIDs(t, before, model.StageTodo)) {
		t.Fatalf("expected no change to the board")
	}
	if len(auth.patches) != 0 || len(editor.requests) != 0 || len(notes.notices) != 0 {
		t.Fatalf("expected no side effects, got patches=%d edits=%d notices=%d",
			len(auth.patches), len(editor.requests), len(notes.notices))
	}
}

func TestController_SameStageDropIsNoOp(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c, _, _ := newTestController(t, auth)

	c.DragStarted("T1")
	if cmd := c.DragCompleted(DropTarget{TaskID: "T2"}); cmd != nil {
		t.Fatalf("expected dropping onto a sibling card to do nothing")
	}
	if len(auth.patches) != 0 {
		t.Fatalf("expected no remote call")
	}
	if got := columnIDs(t, c.View(), model.StageTodo); !sameIDs(got, []string{"T1", "T2"}) {
		t.Fatalf("expected order to be kept, got %v", got)
	}
}

func TestController_DirectMove(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c, _, editor := newTestController(t, auth)

	c.Settle(c.MoveTask("T2", model.StageReview))
	if got := columnIDs(t, c.View(), model.StageReview); !sameIDs(got, []string{"T2"}) {
		t.Fatalf("expected T2 in review, got %v", got)
	}

	c.Settle(c.MoveTask("T1", model.StageBlocked))
	if len(editor.requests) != 1 || editor.requests[0].Task.ID != "T1" {
		t.Fatalf("expected direct move to blocked to defer, got %+v", editor.requests)
	}
	if c.MoveTask("ghost", model.StageDone) != nil {
		t.Fatalf("expected move of unknown task to be ignored")
	}
}

func TestController_EditTask(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c, notes, editor := newTestController(t, auth)

	prio := model.PriorityUrgent
	c.Settle(c.EditTask("T1", model.TaskPatch{Priority: &prio}))
	_, tk, _ := c.FindTask("T1")
	if tk.Priority != model.PriorityUrgent {
		t.Fatalf("expected priority to be applied locally, got %q", tk.Priority)
	}
	if len(auth.patches) != 1 || auth.patches[0].Patch.Status != nil {
		t.Fatalf("expected a priority-only patch, got %+v", auth.patches)
	}

	blocked := model.StageBlocked
	who := "kim"
	c.Settle(c.EditTask("T1", model.TaskPatch{Status: &blocked, AssignedTo: &who}))
	if len(editor.requests) != 1 {
		t.Fatalf("expected blocking edit to open the manual flow")
	}
	if got := editor.requests[0].Patch.AssignedTo; got == nil || *got != "kim" {
		t.Fatalf("expected other fields to travel with the manual edit, got %+v", editor.requests[0].Patch)
	}
	if len(auth.patches) != 1 {
		t.Fatalf("expected no extra remote call for the deferred edit")
	}

	bad := model.Stage("archived")
	c.Settle(c.EditTask("T1", model.TaskPatch{Status: &bad}))
	last := notes.notices[len(notes.notices)-1]
	if last.Level != NoticeError || !strings.Contains(last.Text, "invalid stage") {
		t.Fatalf("expected invalid stage notice, got %+v", last)
	}
}

func TestController_FetchFailureKeepsLastGoodBoard(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c, notes, _ := newTestController(t, auth)

	auth.fetchErr = errors.New("offline")
	c.Settle(c.Refresh())

	v := c.View()
	if v.Loading {
		t.Fatalf("expected loading to clear on failure")
	}
	if v.FetchErr == nil {
		t.Fatalf("expected fetch error to be surfaced")
	}
	if got := columnIDs(t, v, model.StageTodo); !sameIDs(got, []string{"T1", "T2"}) {
		t.Fatalf("expected last good board to be kept, got %v", got)
	}
	if len(notes.notices) != 1 || notes.notices[0].Level != NoticeError {
		t.Fatalf("expected an error notice, got %+v", notes.notices)
	}
}

func TestController_StaleFetchIsDropped(t *testing.T) {
	older := twoTodoBoard()
	newer := model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageDone: {Tasks: []model.Task{{ID: "T1"}, {ID: "T2"}}},
	}}
	// The fake answers in call order; the second fetch runs first and sees newer.
	auth := &fakeAuthority{boards: []model.GroupedTasks{newer, older}}
	c := NewController(auth)

	first := c.Refresh()
	second := c.Refresh()
	if !c.View().Loading {
		t.Fatalf("expected loading while fetches are outstanding")
	}
	c.Settle(second)
	c.Settle(first)

	v := c.View()
	if got := columnIDs(t, v, model.StageTodo); len(got) != 0 {
		t.Fatalf("expected the stale fetch to be ignored, got todo=%v", got)
	}
	if v.Loading {
		t.Fatalf("expected loading to clear")
	}
}

func TestController_BadPayloadIsRejected(t *testing.T) {
	dup := model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageTodo: {Tasks: []model.Task{{ID: "T1"}}},
		model.StageDone: {Tasks: []model.Task{{ID: "T1"}}},
	}}
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard(), dup}}
	c, notes, _ := newTestController(t, auth)

	c.Settle(c.Refresh())
	if !errors.Is(c.View().FetchErr, ErrDuplicateTask) {
		t.Fatalf("expected duplicate payload to be rejected, got %v", c.View().FetchErr)
	}
	if got := columnIDs(t, c.View(), model.StageTodo); !sameIDs(got, []string{"T1", "T2"}) {
		t.Fatalf("expected previous board to be kept, got %v", got)
	}
	if len(notes.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notes.notices))
	}
}

func TestController_ManualEditWithoutEditorFailsSafely(t *testing.T) {
	auth := &fakeAuthority{boards: []model.GroupedTasks{twoTodoBoard()}}
	c := NewController(auth)
	c.Settle(c.Init())

	c.Settle(c.MoveTask("T1", model.StageBlocked))
	if len(auth.patches) != 0 {
		t.Fatalf("expected no remote call without a note")
	}
	if stage, _, _ := c.FindTask("T1"); stage != model.StageTodo {
		t.Fatalf("expected T1 to stay in todo, got %q", stage)
	}
}

func TestSubmitManualEdit(t *testing.T) {
	auth := &fakeAuthority{}
	req := ManualEditRequest{
		Task:   model.Task{ID: "T2"},
		From:   model.StageTodo,
		Target: model.StageBlocked,
	}

	if _, err := SubmitManualEdit(context.Background(), auth, req, "   "); !errors.Is(err, ErrNoteRequired) {
		t.Fatalf("expected ErrNoteRequired for a blank note, got %v", err)
	}
	if len(auth.patches) != 0 {
		t.Fatalf("expected no remote call without a note")
	}

	got, err := SubmitManualEdit(context.Background(), auth, req, "waiting on vendor")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != model.StageBlocked {
		t.Fatalf("expected blocked task back, got %+v", got)
	}
	p := auth.patches[0].Patch
	if p.Status == nil || *p.Status != model.StageBlocked || p.Comment == nil || *p.Comment != "waiting on vendor" {
		t.Fatalf("unexpected patch: %+v", p)
	}
}

func TestController_Alerts(t *testing.T) {
	b := twoTodoBoard()
	b.Summary = model.Summary{Overdue: 2, Unassigned: 1}
	auth := &fakeAuthority{boards: []model.GroupedTasks{b}}
	c, _, _ := newTestController(t, auth)
	alerts := c.View().Alerts
	if !sameIDs(alerts, []string{"2 overdue", "1 unassigned"}) {
		t.Fatalf("unexpected alerts: %v", alerts)
	}
}
