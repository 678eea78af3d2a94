package board

import (
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragDropped
	DragCancelled
)

func (s DragState) String() string {
	switch s {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragDropped:
		return "dropped"
	case DragCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// allowed drag state transitions; dropped/cancelled always settle back to idle.
var dragTransitions = map[DragState][]DragState{
	DragIdle:      {DragDragging},
	DragDragging:  {DragDropped, DragCancelled},
	DragDropped:   {DragIdle},
	DragCancelled: {DragIdle},
}

// DropTarget is what the pointer was released over: a stage-level surface
// (an empty column, a column header) or another card.
type DropTarget struct {
	Stage  model.Stage
	TaskID string
}

func (t DropTarget) IsZero() bool {
	return strings.TrimSpace(string(t.Stage)) == "" && strings.TrimSpace(t.TaskID) == ""
}

// DragSession lives for the duration of one gesture.
type DragSession struct {
	TaskID string
	From   model.Stage
	// Over is the candidate target stage while hovering ("" when over nothing).
	Over model.Stage
}

// taskFinder is the slice of Store the coordinator needs.
type taskFinder interface {
	FindTask(taskID string) (model.Stage, model.Task, bool)
}

// DragCoordinator runs the idle -> dragging -> {dropped, cancelled} -> idle state machine.
type DragCoordinator struct {
	board   taskFinder
	state   DragState
	session *DragSession
	// last is the terminal state of the previous gesture (dropped or cancelled).
	last DragState
}

func NewDragCoordinator(board taskFinder) *DragCoordinator {
	return &DragCoordinator{board: board}
}

func (d *DragCoordinator) State() DragState { return d.state }

// LastOutcome is the terminal state of the most recent gesture (DragIdle before any).
func (d *DragCoordinator) LastOutcome() DragState { return d.last }

func (d *DragCoordinator) Session() (DragSession, bool) {
	if d.session == nil {
		return DragSession{}, false
	}
	return *d.session, true
}

func (d *DragCoordinator) transition(to DragState) bool {
	for _, next := range dragTransitions[d.state] {
		if next == to {
			d.state = to
			return true
		}
	}
	return false
}

// Start begins a gesture on taskID. It returns false (and stays idle) when a gesture is
// already running or the task isn't on the board.
func (d *DragCoordinator) Start(taskID string) bool {
	if d.state != DragIdle {
		return false
	}
	stage, t, ok := d.board.FindTask(taskID)
	if !ok {
		return false
	}
	d.transition(DragDragging)
	d.session = &DragSession{TaskID: t.ID, From: stage}
	return true
}

// Over records the candidate target while the pointer moves.
func (d *DragCoordinator) Over(target DropTarget) {
	if d.state != DragDragging || d.session == nil {
		return
	}
	stage, _ := d.resolve(target)
	d.session.Over = stage
}

// Drop ends the gesture over target. ok is false when the target can't be resolved to a
// stage or the dragged task has left the board, in which case the gesture counts as cancelled.
func (d *DragCoordinator) Drop(target DropTarget) (Proposal, bool) {
	if d.state != DragDragging || d.session == nil {
		return Proposal{}, false
	}
	stage, ok := d.resolve(target)
	if !ok {
		d.Cancel()
		return Proposal{}, false
	}
	// The board may have been reloaded mid-gesture; propose from where the task is now.
	from, t, ok := d.board.FindTask(d.session.TaskID)
	if !ok {
		d.Cancel()
		return Proposal{}, false
	}
	p := Proposal{Task: t, From: from, To: stage}
	d.transition(DragDropped)
	d.finish()
	return p, true
}

// Cancel abandons the current gesture without touching board state.
func (d *DragCoordinator) Cancel() {
	if d.state != DragDragging {
		return
	}
	d.transition(DragCancelled)
	d.finish()
}

func (d *DragCoordinator) finish() {
	d.last = d.state
	d.session = nil
	d.transition(DragIdle)
}

func (d *DragCoordinator) resolve(target DropTarget) (model.Stage, bool) {
	if id := strings.TrimSpace(target.TaskID); id != "" {
		stage, _, ok := d.board.FindTask(id)
		return stage, ok
	}
	if stageutil.Valid(target.Stage) {
		return target.Stage, true
	}
	return "", false
}
