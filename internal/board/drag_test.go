package board

import (
	"testing"
	"time"

	"taskboard/internal/model"
)

func loadedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(fixedAggregator())
	if err := s.Load(model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageTodo:   {Tasks: []model.Task{{ID: "T1"}, {ID: "T2"}}},
		model.StageReview: {Tasks: []model.Task{{ID: "R1"}}},
	}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestDrag_DropOnStage(t *testing.T) {
	d := NewDragCoordinator(loadedStore(t))
	if !d.Start("T1") {
		t.Fatalf("expected start to succeed")
	}
	if d.State() != DragDragging {
		t.Fatalf("expected dragging, got %v", d.State())
	}
	sess, ok := d.Session()
	if !ok || sess.From != model.StageTodo || sess.TaskID != "T1" {
		t.Fatalf("unexpected session: %+v ok=%v", sess, ok)
	}

	p, ok := d.Drop(DropTarget{Stage: model.StageDone})
	if !ok {
		t.Fatalf("expected drop to resolve")
	}
	if p.From != model.StageTodo || p.To != model.StageDone || p.Task.ID != "T1" {
		t.Fatalf("unexpected proposal: %+v", p)
	}
	if d.State() != DragIdle || d.LastOutcome() != DragDropped {
		t.Fatalf("expected idle after drop (last=dropped), got state=%v last=%v", d.State(), d.LastOutcome())
	}
	if _, ok := d.Session(); ok {
		t.Fatalf("expected session to be destroyed after drop")
	}
}

func TestDrag_DropUsesBoardAfterReload(t *testing.T) {
	s := loadedStore(t)
	d := NewDragCoordinator(s)
	d.Start("T1")

	// Reloaded mid-gesture with T1 in review.
	if err := s.Load(model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageTodo:   {Tasks: []model.Task{{ID: "T2"}}},
		model.StageReview: {Tasks: []model.Task{{ID: "T1", Title: "Renamed"}, {ID: "R1"}}},
	}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	p, ok := d.Drop(DropTarget{Stage: model.StageDone})
	if !ok {
		t.Fatalf("expected drop to resolve")
	}
	if p.From != model.StageReview || p.Task.Title != "Renamed" {
		t.Fatalf("expected proposal from the reloaded board, got %+v", p)
	}

	// Reloaded mid-gesture without T1.
	d.Start("T2")
	if err := s.Load(model.GroupedTasks{Groups: map[model.Stage]model.Group{
		model.StageReview: {Tasks: []model.Task{{ID: "R1"}}},
	}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if p, ok := d.Drop(DropTarget{Stage: model.StageDone}); ok {
		t.Fatalf("expected drop of a vanished task to cancel, got %+v", p)
	}
	if d.State() != DragIdle || d.LastOutcome() != DragCancelled {
		t.Fatalf("expected cancelled gesture, got state=%v last=%v", d.State(), d.LastOutcome())
	}
}

func TestDrag_DropOnCardResolvesItsStage(t *testing.T) {
	d := NewDragCoordinator(loadedStore(t))
	d.Start("T2")
	d.Over(DropTarget{TaskID: "R1"})
	sess, _ := d.Session()
	if sess.Over != model.StageReview {
		t.Fatalf("expected hover stage review, got %q", sess.Over)
	}
	p, ok := d.Drop(DropTarget{TaskID: "R1"})
	if !ok || p.To != model.StageReview {
		t.Fatalf("expected review target, got %+v ok=%v", p, ok)
	}
}

func TestDrag_UnresolvableTargetCancels(t *testing.T) {
	cases := []DropTarget{
		{},
		{TaskID: "nope"},
		{Stage: "archived"},
	}
	for _, target := range cases {
		d := NewDragCoordinator(loadedStore(t))
		d.Start("T1")
		if _, ok := d.Drop(target); ok {
			t.Fatalf("expected drop on %+v to be unresolved", target)
		}
		if d.State() != DragIdle || d.LastOutcome() != DragCancelled {
			t.Fatalf("expected cancelled->idle for %+v, got state=%v last=%v", target, d.State(), d.LastOutcome())
		}
	}
}

func TestDrag_StartOnMissingTaskStaysIdle(t *testing.T) {
	d := NewDragCoordinator(loadedStore(t))
	if d.Start("ghost") {
		t.Fatalf("expected start on missing task to fail")
	}
	if d.State() != DragIdle {
		t.Fatalf("expected idle, got %v", d.State())
	}
	if _, ok := d.Drop(DropTarget{Stage: model.StageDone}); ok {
		t.Fatalf("expected drop without a session to be ignored")
	}
}

func TestDrag_SecondStartWhileDraggingIsIgnored(t *testing.T) {
	d := NewDragCoordinator(loadedStore(t))
	d.Start("T1")
	if d.Start("T2") {
		t.Fatalf("expected nested start to be rejected")
	}
	sess, _ := d.Session()
	if sess.TaskID != "T1" {
		t.Fatalf("expected original session to be kept, got %q", sess.TaskID)
	}
	d.Cancel()
	if d.State() != DragIdle || d.LastOutcome() != DragCancelled {
		t.Fatalf("expected cancel to return to idle")
	}
}

func TestClassify(t *testing.T) {
	tk := model.Task{ID: "T1"}
	cases := []struct {
		from, to model.Stage
		want     Decision
	}{
		{model.StageTodo, model.StageTodo, DecisionNoOp},
		{model.StageTodo, model.StageDone, DecisionOptimistic},
		{model.StageDone, model.StageTodo, DecisionOptimistic},
		{model.StageTodo, model.StageBlocked, DecisionDeferred},
		{model.StageReview, model.StageBlocked, DecisionDeferred},
		{model.StageBlocked, model.StageBlocked, DecisionNoOp},
		{model.StageBlocked, model.StageInProgress, DecisionOptimistic},
	}
	for _, tc := range cases {
		if got := Classify(Proposal{Task: tk, From: tc.from, To: tc.to}); got != tc.want {
			t.Fatalf("%s->%s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPointerSensor_ActivatesOnDistance(t *testing.T) {
	a := NewActivation(PointerSensor{Distance: 3})
	now := time.Now()
	a.Press("T1", Point{X: 10, Y: 5}, now)
	if a.Move(Point{X: 11, Y: 5}, now) {
		t.Fatalf("expected no activation below threshold")
	}
	if !a.Move(Point{X: 13, Y: 5}, now) {
		t.Fatalf("expected activation at threshold")
	}
	if a.Move(Point{X: 20, Y: 5}, now) {
		t.Fatalf("expected activation to be reported only once")
	}
	if !a.Release() {
		t.Fatalf("expected release to report a drag")
	}
}

func TestPointerSensor_ClickIsNotADrag(t *testing.T) {
	a := NewActivation(DefaultPointerSensor)
	a.Press("T1", Point{X: 1, Y: 1}, time.Now())
	if a.Release() {
		t.Fatalf("expected a press/release without movement to be a click")
	}
}

func TestTouchSensor_DelayAndTolerance(t *testing.T) {
	start := time.Now()
	s := TouchSensor{Delay: 250 * time.Millisecond, Tolerance: 5}

	a := NewActivation(s)
	a.Press("T1", Point{}, start)
	if a.Move(Point{X: 2}, start.Add(100*time.Millisecond)) {
		t.Fatalf("expected no activation before delay")
	}
	if !a.Move(Point{X: 3}, start.Add(300*time.Millisecond)) {
		t.Fatalf("expected activation after delay within tolerance")
	}

	// Moving too far before the delay is a scroll: the press is abandoned.
	a.Press("T1", Point{}, start)
	if a.Move(Point{Y: 20}, start.Add(50*time.Millisecond)) {
		t.Fatalf("expected scroll to not activate")
	}
	if a.Move(Point{}, start.Add(400*time.Millisecond)) {
		t.Fatalf("expected aborted press to stay inactive")
	}
}

func TestNearestSurface(t *testing.T) {
	col := Surface{Target: DropTarget{Stage: model.StageReview}, Rect: Rect{X: 20, Y: 0, W: 10, H: 20}}
	card := Surface{Target: DropTarget{TaskID: "R1"}, Rect: Rect{X: 20, Y: 2, W: 10, H: 3}}
	other := Surface{Target: DropTarget{Stage: model.StageDone}, Rect: Rect{X: 40, Y: 0, W: 10, H: 20}}

	for _, order := range [][]Surface{{col, card, other}, {other, card, col}} {
		got, ok := NearestSurface(Point{X: 25, Y: 3}, order, 2)
		if !ok || got.TaskID != "R1" {
			t.Fatalf("expected card to win inside its column, got %+v ok=%v", got, ok)
		}
	}

	got, ok := NearestSurface(Point{X: 25, Y: 10}, []Surface{col, card, other}, 2)
	if !ok || got.Stage != model.StageReview {
		t.Fatalf("expected column below the card, got %+v", got)
	}

	got, ok = NearestSurface(Point{X: 31, Y: 10}, []Surface{col, other}, 2)
	if !ok || got.Stage != model.StageReview {
		t.Fatalf("expected nearest column in the gap, got %+v", got)
	}

	if _, ok := NearestSurface(Point{X: 100, Y: 100}, []Surface{col, card, other}, 2); ok {
		t.Fatalf("expected no target far from every surface")
	}
}
