package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date, t.assigned_to,
	t.project_id, COALESCE(p.name, ''), t.created_at_unixms, t.updated_at_unixms`

const taskFrom = ` FROM tasks t LEFT JOIN projects p ON p.id = t.project_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (model.Task, error) {
	var (
		t                  model.Task
		status, priority   string
		assigned           sql.NullString
		createdMS, updated int64
	)
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &t.DueDate, &assigned,
		&t.ProjectID, &t.ProjectName, &createdMS, &updated); err != nil {
		return model.Task{}, err
	}
	t.Status = model.Stage(status)
	t.Priority = model.Priority(priority)
	if assigned.Valid && strings.TrimSpace(assigned.String) != "" {
		a := assigned.String
		t.AssignedTo = &a
	}
	t.CreatedAt = fromUnixMS(createdMS)
	t.UpdatedAt = fromUnixMS(updated)
	return t, nil
}

// where builds the shared WHERE clause. Stage, completion and paging are left to callers.
func where(f model.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.ProjectID != "" {
		clauses = append(clauses, "t.project_id = ?")
		args = append(args, f.ProjectID)
	}
	switch a := strings.TrimSpace(f.AssignedTo); {
	case a == "":
	case strings.EqualFold(a, "none"), strings.EqualFold(a, "unassigned"):
		clauses = append(clauses, "(t.assigned_to IS NULL OR TRIM(t.assigned_to) = '')")
	default:
		clauses = append(clauses, "t.assigned_to = ?")
		args = append(args, a)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		clauses = append(clauses, "(LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ?)")
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Grouped returns every stage group for the board. Each group is ordered most recently
// updated first. The summary covers the whole project scope, ignoring assignee and text
// filters, so the board's alerts don't disappear while searching.
func (s *Store) Grouped(ctx context.Context, f model.Filter) (model.GroupedTasks, error) {
	cond, args := where(f.Grouped())
	tasks, err := s.query(ctx, "SELECT "+taskColumns+taskFrom+cond+" ORDER BY t.updated_at_unixms DESC, t.id", args...)
	if err != nil {
		return model.GroupedTasks{}, fmt.Errorf("store: grouped tasks: %w", err)
	}

	out := model.GroupedTasks{Groups: make(map[model.Stage]model.Group, len(model.StageDefs))}
	for _, st := range model.Stages() {
		out.Groups[st] = model.Group{Tasks: []model.Task{}}
	}
	for _, t := range tasks {
		g, ok := out.Groups[t.Status]
		if !ok {
			s.log.WithFields(log.Fields{"task": t.ID, "status": t.Status}).Warn("skipping task with unknown status")
			continue
		}
		g.Tasks = append(g.Tasks, t)
		out.Groups[t.Status] = g
	}
	for st, g := range out.Groups {
		g.Count = len(g.Tasks)
		g.OverdueCount = s.agg.OverdueCount(g.Tasks, st)
		out.Groups[st] = g
	}

	scope := tasks
	if f.AssignedTo != "" || f.Query != "" {
		cond, args := where(model.Filter{ProjectID: f.ProjectID})
		scope, err = s.query(ctx, "SELECT "+taskColumns+taskFrom+cond, args...)
		if err != nil {
			return model.GroupedTasks{}, fmt.Errorf("store: summary: %w", err)
		}
	}
	out.Summary = s.agg.Summarize(scope)
	return out, nil
}

// List returns one page of the flat listing.
func (s *Store) List(ctx context.Context, f model.Filter) (model.TaskPage, error) {
	cond, args := where(f)
	extra := []string{}
	if f.Status != "" {
		if !stageutil.Valid(f.Status) {
			return model.TaskPage{}, fmt.Errorf("%w: %q", board.ErrInvalidStage, f.Status)
		}
		extra = append(extra, "t.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Completed != nil {
		if *f.Completed {
			extra = append(extra, "t.status = ?")
		} else {
			extra = append(extra, "t.status <> ?")
		}
		args = append(args, string(model.StageDone))
	}
	if len(extra) > 0 {
		if cond == "" {
			cond = " WHERE " + strings.Join(extra, " AND ")
		} else {
			cond += " AND " + strings.Join(extra, " AND ")
		}
	}

	tasks, err := s.query(ctx, "SELECT "+taskColumns+taskFrom+cond, args...)
	if err != nil {
		return model.TaskPage{}, fmt.Errorf("store: list tasks: %w", err)
	}
	sortTasks(tasks, f.Sort)

	size := f.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	out := model.TaskPage{Tasks: []model.Task{}, Total: len(tasks), Page: page, PageSize: size}
	start := (page - 1) * size
	if start < len(tasks) {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		out.Tasks = tasks[start:end]
	}
	return out, nil
}

// sortTasks orders by key ("due_date", "priority", "title", "created_at", "updated_at");
// a leading "-" reverses. Unknown keys fall back to newest first.
func sortTasks(tasks []model.Task, key string) {
	key = strings.TrimSpace(key)
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")

	var less func(a, b model.Task) bool
	switch key {
	case "due_date":
		// Tasks without a due date go last.
		less = func(a, b model.Task) bool {
			if (a.DueDate == "") != (b.DueDate == "") {
				return b.DueDate == ""
			}
			return a.DueDate < b.DueDate
		}
	case "priority":
		less = func(a, b model.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case "title":
		less = func(a, b model.Task) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case "created_at":
		less = func(a, b model.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		less = func(a, b model.Task) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		less = func(a, b model.Task) bool { return a.CreatedAt.After(b.CreatedAt) }
		desc = false
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func (s *Store) Get(ctx context.Context, id string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+taskFrom+" WHERE t.id = ?", strings.TrimSpace(id))
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, board.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("store: get task: %w", err)
	}
	return t, nil
}

// Patch applies a partial update. Entering a stage that requires a note without a comment
// fails with board.ErrNoteRequired; a comment, when given, is stored alongside.
func (s *Store) Patch(ctx context.Context, id string, p model.TaskPatch) (model.Task, error) {
	if p.IsEmpty() {
		return model.Task{}, fmt.Errorf("%w: nothing to update", ErrInvalidPatch)
	}
	if p.Status != nil && !stageutil.Valid(*p.Status) {
		return model.Task{}, fmt.Errorf("%w: %q", board.ErrInvalidStage, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidPatch, *p.Priority)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, board.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return model.Task{}, err
	}

	hasNote := p.Comment != nil && strings.TrimSpace(*p.Comment) != ""
	if p.Status != nil && *p.Status != model.Stage(current) && stageutil.RequiresNote(*p.Status) && !hasNote {
		return model.Task{}, fmt.Errorf("%w: %s", board.ErrNoteRequired, stageutil.Label(*p.Status))
	}

	now := toUnixMS(s.now())
	sets := []string{"updated_at_unixms = ?"}
	args := []any{now}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*p.Priority))
	}
	switch {
	case p.Unassign:
		sets = append(sets, "assigned_to = NULL")
	case p.AssignedTo != nil:
		sets = append(sets, "assigned_to = ?")
		args = append(args, strings.TrimSpace(*p.AssignedTo))
	}
	args = append(args, id)
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return model.Task{}, fmt.Errorf("store: patch task: %w", err)
	}
	if hasNote {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_comments(id, task_id, body, created_at_unixms) VALUES(?, ?, ?, ?)`,
			uuid.NewString(), id, strings.TrimSpace(*p.Comment), now); err != nil {
			return model.Task{}, fmt.Errorf("store: add comment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, err
	}

	fields := log.Fields{"task": id}
	if p.Status != nil {
		fields["from"] = current
		fields["to"] = *p.Status
	}
	s.log.WithFields(fields).Info("task updated")
	return s.Get(ctx, id)
}

// Create inserts t, assigning an id and timestamps where missing.
func (s *Store) Create(ctx context.Context, t model.Task) (model.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return model.Task{}, errors.New("store: task title is required")
	}
	if t.Status == "" {
		t.Status = model.StageTodo
	}
	if !stageutil.Valid(t.Status) {
		return model.Task{}, fmt.Errorf("%w: %q", board.ErrInvalidStage, t.Status)
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if !t.Priority.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidPatch, t.Priority)
	}
	if strings.TrimSpace(t.ID) == "" {
		id, err := newTaskID()
		if err != nil {
			return model.Task{}, err
		}
		t.ID = id
	}
	now := s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	var assigned any
	if a := t.Assignee(); a != "" {
		assigned = a
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks(id, title, description, status, priority, due_date, assigned_to, project_id, created_at_unixms, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, strings.TrimSpace(t.Title), t.Description, string(t.Status), string(t.Priority), strings.TrimSpace(t.DueDate),
		assigned, t.ProjectID, toUnixMS(t.CreatedAt), toUnixMS(t.UpdatedAt))
	if err != nil {
		return model.Task{}, fmt.Errorf("store: create task: %w", err)
	}
	return s.Get(ctx, t.ID)
}

// UpsertProject creates or renames a project.
func (s *Store) UpsertProject(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO projects(id, name) VALUES(?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, id, name)
	return err
}

// Comments lists a task's comments, oldest first.
func (s *Store) Comments(ctx context.Context, taskID string) ([]model.Comment, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, body, created_at_unixms FROM task_comments
		WHERE task_id = ? ORDER BY created_at_unixms, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Comment{}
	for rows.Next() {
		var (
			c  model.Comment
			ms int64
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Body, &ms); err != nil {
			return nil, err
		}
		c.CreatedAt = fromUnixMS(ms)
		out = append(out, c)
	}
	return out, rows.Err()
}
