package board

import (
	"fmt"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

// Column is one stage of a Snapshot, in display order.
type Column struct {
	Stage        model.Stage  `json:"stage"`
	Label        string       `json:"label"`
	Tasks        []model.Task `json:"tasks"`
	Count        int          `json:"count"`
	OverdueCount int          `json:"overdue_count"`
}

// Snapshot is a read-only copy of the board for presentation.
type Snapshot struct {
	Columns []Column      `json:"columns"`
	Summary model.Summary `json:"summary"`
	Loaded  bool          `json:"loaded"`
}

func (s Snapshot) Column(stage model.Stage) (Column, bool) {
	for _, c := range s.Columns {
		if c.Stage == stage {
			return c, true
		}
	}
	return Column{}, false
}

// Store owns the grouped board state. Every stage always has a group, and each
// group's Count always equals len(Tasks).
//
// Store is not safe for concurrent use; it is mutated only from the event loop.
type Store struct {
	groups  map[model.Stage]*model.Group
	summary model.Summary
	loaded  bool
	agg     Aggregator
}

func NewStore(agg Aggregator) *Store {
	return &Store{groups: emptyGroups(), agg: agg}
}

func emptyGroups() map[model.Stage]*model.Group {
	out := make(map[model.Stage]*model.Group, len(model.StageDefs))
	for _, stage := range model.Stages() {
		out[stage] = &model.Group{Tasks: []model.Task{}}
	}
	return out
}

// Load replaces the whole board and summary. On error the previous state is kept.
//
// Unknown stage keys and task ids appearing more than once are rejected as
// data-integrity violations. Task status is normalized to the group it arrived in.
func (s *Store) Load(data model.GroupedTasks) error {
	for stage := range data.Groups {
		if !stageutil.Valid(stage) {
			return fmt.Errorf("load board: %w: %q", ErrInvalidStage, stage)
		}
	}

	next := emptyGroups()
	seen := map[string]model.Stage{}
	for _, stage := range model.Stages() {
		g, ok := data.Groups[stage]
		if !ok {
			continue
		}
		tasks := make([]model.Task, 0, len(g.Tasks))
		for _, t := range g.Tasks {
			id := strings.TrimSpace(t.ID)
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("load board: %w: %s (in %s and %s)", ErrDuplicateTask, id, prev, stage)
			}
			seen[id] = stage
			t.Status = stage
			tasks = append(tasks, t)
		}
		next[stage] = &model.Group{Tasks: tasks, Count: len(tasks), OverdueCount: g.OverdueCount}
	}

	s.groups = next
	s.summary = data.Summary
	s.loaded = true
	return nil
}

// FindTask scans the groups in display order.
func (s *Store) FindTask(taskID string) (model.Stage, model.Task, bool) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return "", model.Task{}, false
	}
	for _, stage := range model.Stages() {
		g := s.groups[stage]
		if i := indexOfTask(g.Tasks, taskID); i >= 0 {
			return stage, g.Tasks[i], true
		}
	}
	return "", model.Task{}, false
}

// MoveTask removes taskID from the from group, sets its status and prepends it to the to group.
func (s *Store) MoveTask(taskID string, from, to model.Stage) error {
	if from == to {
		return ErrSameStage
	}
	if !stageutil.Valid(from) || !stageutil.Valid(to) {
		return fmt.Errorf("move %s: %w: %q -> %q", taskID, ErrInvalidStage, from, to)
	}
	src, dst := s.groups[from], s.groups[to]
	i := indexOfTask(src.Tasks, taskID)
	if i < 0 {
		return fmt.Errorf("move %s from %s: %w", taskID, from, NotFoundError{Kind: "task", ID: taskID})
	}

	t := src.Tasks[i]
	rest := make([]model.Task, 0, len(src.Tasks)-1)
	rest = append(rest, src.Tasks[:i]...)
	rest = append(rest, src.Tasks[i+1:]...)
	src.Tasks = rest
	src.Count = len(src.Tasks)

	t.Status = to
	moved := make([]model.Task, 0, len(dst.Tasks)+1)
	moved = append(moved, t)
	moved = append(moved, dst.Tasks...)
	dst.Tasks = moved
	dst.Count = len(dst.Tasks)

	src.OverdueCount = s.agg.OverdueCount(src.Tasks, from)
	dst.OverdueCount = s.agg.OverdueCount(dst.Tasks, to)
	return nil
}

// PatchFields applies the non-status fields of patch to the cached task in place.
func (s *Store) PatchFields(taskID string, patch model.TaskPatch) error {
	stage, _, ok := s.FindTask(taskID)
	if !ok {
		return NotFoundError{Kind: "task", ID: taskID}
	}
	g := s.groups[stage]
	t := &g.Tasks[indexOfTask(g.Tasks, taskID)]
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	switch {
	case patch.Unassign:
		t.AssignedTo = nil
	case patch.AssignedTo != nil:
		v := *patch.AssignedTo
		t.AssignedTo = &v
	}
	return nil
}

func (s *Store) Loaded() bool { return s.loaded }

func (s *Store) Summary() model.Summary { return s.summary }

// Snapshot returns a deep copy of the board in stage display order.
func (s *Store) Snapshot() Snapshot {
	out := Snapshot{Summary: s.summary, Loaded: s.loaded}
	for _, def := range model.StageDefs {
		g := s.groups[def.ID]
		tasks := make([]model.Task, len(g.Tasks))
		copy(tasks, g.Tasks)
		out.Columns = append(out.Columns, Column{
			Stage:        def.ID,
			Label:        stageutil.Label(def.ID),
			Tasks:        tasks,
			Count:        g.Count,
			OverdueCount: g.OverdueCount,
		})
	}
	return out
}

func indexOfTask(tasks []model.Task, taskID string) int {
	taskID = strings.TrimSpace(taskID)
	for i := range tasks {
		if strings.TrimSpace(tasks[i].ID) == taskID {
			return i
		}
	}
	return -1
}
