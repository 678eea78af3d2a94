package store

import (
	"context"
	"fmt"
	"time"

	"taskboard/internal/model"
)

type seedProject struct {
	ID, Name string
}

var demoProjects = []seedProject{
	{ID: "proj-web", Name: "Website relaunch"},
	{ID: "proj-ops", Name: "Operations"},
}

// DemoTasks returns a small board relative to now: a few overdue items, some unassigned,
// and one task in every stage.
func DemoTasks(now time.Time) []model.Task {
	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format(model.DateLayout)
	}
	who := func(s string) *string { return &s }
	return []model.Task{
		{ID: "T-101", Title: "Draft landing page copy", Status: model.StageTodo, Priority: model.PriorityHigh, DueDate: day(-2), ProjectID: "proj-web"},
		{ID: "T-102", Title: "Pick analytics vendor", Status: model.StageTodo, Priority: model.PriorityLow, DueDate: day(10), AssignedTo: who("ana"), ProjectID: "proj-web"},
		{ID: "T-103", Title: "Build pricing table", Status: model.StageInProgress, Priority: model.PriorityMedium, DueDate: day(3), AssignedTo: who("raj"), ProjectID: "proj-web"},
		{ID: "T-104", Title: "Accessibility audit", Status: model.StageReview, Priority: model.PriorityHigh, DueDate: day(-1), AssignedTo: who("mei"), ProjectID: "proj-web",
			Description: "Check **contrast**, focus order and alt text.\n\n- header\n- forms\n- footer"},
		{ID: "T-105", Title: "DNS cutover", Status: model.StageBlocked, Priority: model.PriorityUrgent, DueDate: day(-4), AssignedTo: who("ops-bot"), ProjectID: "proj-ops"},
		{ID: "T-106", Title: "Rotate TLS certificates", Status: model.StageDone, Priority: model.PriorityMedium, DueDate: day(-7), AssignedTo: who("raj"), ProjectID: "proj-ops"},
		{ID: "T-107", Title: "Write runbook for on-call", Status: model.StageTodo, Priority: model.PriorityMedium, ProjectID: "proj-ops"},
	}
}

// Seed inserts the demo board unless the database already has tasks.
func (s *Store) Seed(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for _, p := range demoProjects {
		if err := s.UpsertProject(ctx, p.ID, p.Name); err != nil {
			return 0, fmt.Errorf("store: seed project %s: %w", p.ID, err)
		}
	}
	now := s.now()
	tasks := DemoTasks(now)
	for i, t := range tasks {
		// Stagger timestamps so board order is deterministic.
		t.CreatedAt = now.Add(-time.Duration(len(tasks)-i) * time.Minute)
		t.UpdatedAt = t.CreatedAt
		if _, err := s.Create(ctx, t); err != nil {
			return 0, fmt.Errorf("store: seed %s: %w", t.ID, err)
		}
	}
	blocked := "Waiting on the registrar to unlock the domain."
	if _, err := s.db.ExecContext(ctx, `INSERT INTO task_comments(id, task_id, body, created_at_unixms) VALUES(?, ?, ?, ?)`,
		"cmt-seed-1", "T-105", blocked, toUnixMS(now)); err != nil {
		return 0, err
	}
	s.log.WithField("tasks", len(tasks)).Info("seeded demo board")
	return len(tasks), nil
}
