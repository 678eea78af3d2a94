package board

import (
	"fmt"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

// Aggregator derives the cross-cutting counters (overdue, unassigned).
//
// The board itself displays the authority's Summary as-is; Aggregator is used to keep
// per-group overdue counts honest after local moves and by the reference server to
// compute the authoritative values.
type Aggregator struct {
	Now func() time.Time
}

func (a Aggregator) today() time.Time {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsOverdue reports whether t, sitting in stage, is past its due date.
// Tasks in an end state are never overdue.
func (a Aggregator) IsOverdue(t model.Task, stage model.Stage) bool {
	if stageutil.IsEndState(stage) {
		return false
	}
	due, ok := t.Due()
	if !ok {
		return false
	}
	return due.Before(a.today())
}

func (a Aggregator) OverdueCount(tasks []model.Task, stage model.Stage) int {
	n := 0
	for _, t := range tasks {
		if a.IsOverdue(t, stage) {
			n++
		}
	}
	return n
}

// Summarize computes the global counters over tasks, using each task's own status.
func (a Aggregator) Summarize(tasks []model.Task) model.Summary {
	var s model.Summary
	for _, t := range tasks {
		if a.IsOverdue(t, t.Status) {
			s.Overdue++
		}
		if t.Assignee() == "" {
			s.Unassigned++
		}
	}
	return s
}

// Alerts renders the non-zero counters as short labels for display.
func (a Aggregator) Alerts(s model.Summary) []string {
	var out []string
	if s.Overdue > 0 {
		out = append(out, fmt.Sprintf("%d overdue", s.Overdue))
	}
	if s.Unassigned > 0 {
		out = append(out, fmt.Sprintf("%d unassigned", s.Unassigned))
	}
	return out
}
