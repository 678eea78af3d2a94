package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Stage is a workflow stage identifier. The set of stages is fixed (see StageDefs).
type Stage string

const (
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in_progress"
	StageReview     Stage = "review"
	StageBlocked    Stage = "blocked"
	StageDone       Stage = "done"
)

type StageDef struct {
	ID           Stage  `json:"id"`
	Label        string `json:"label"`
	IsEndState   bool   `json:"isEndState"`
	RequiresNote bool   `json:"requiresNote"`
}

// StageDefs is the fixed workflow in display order.
var StageDefs = []StageDef{
	{ID: StageTodo, Label: "To Do"},
	{ID: StageInProgress, Label: "In Progress"},
	{ID: StageReview, Label: "Review"},
	{ID: StageBlocked, Label: "Blocked", RequiresNote: true},
	{ID: StageDone, Label: "Done", IsEndState: true},
}

// Stages returns the stage ids in display order.
func Stages() []Stage {
	out := make([]Stage, 0, len(StageDefs))
	for _, def := range StageDefs {
		out = append(out, def.ID)
	}
	return out
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists the priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Rank orders priorities (low=0 .. urgent=3); unknown priorities rank -1.
func (p Priority) Rank() int {
	for i, q := range Priorities {
		if q == p {
			return i
		}
	}
	return -1
}

func (p Priority) Valid() bool { return p.Rank() >= 0 }

// DateLayout is the wire format of Task.DueDate.
const DateLayout = "2006-01-02"

type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Stage    `json:"status"`
	Priority    Priority `json:"priority"`
	DueDate     string   `json:"due_date,omitempty"` // YYYY-MM-DD
	AssignedTo  *string  `json:"assigned_to,omitempty"`

	ProjectID   string `json:"project_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Due parses DueDate. ok is false when the task has no (valid) due date.
func (t Task) Due() (time.Time, bool) {
	s := strings.TrimSpace(t.DueDate)
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func (t Task) Assignee() string {
	if t.AssignedTo == nil {
		return ""
	}
	return strings.TrimSpace(*t.AssignedTo)
}

type Group struct {
	Tasks        []Task `json:"tasks"`
	Count        int    `json:"count"`
	OverdueCount int    `json:"overdue_count"`
}

type Summary struct {
	Overdue    int `json:"overdue"`
	Unassigned int `json:"unassigned"`
}

// GroupedTasks is the payload of the grouped-tasks endpoint.
type GroupedTasks struct {
	Groups  map[Stage]Group `json:"groups"`
	Summary Summary         `json:"summary"`
}

// TaskPatch is a partial task update. Nil fields are left untouched.
//
// Unassign clears assigned_to (sent as an explicit null) and wins over AssignedTo.
// Comment carries the justification required when entering a stage that needs a note.
type TaskPatch struct {
	Status     *Stage    `json:"status,omitempty"`
	Priority   *Priority `json:"priority,omitempty"`
	AssignedTo *string   `json:"assigned_to,omitempty"`
	Unassign   bool      `json:"-"`
	Comment    *string   `json:"comment,omitempty"`
}

func (p TaskPatch) IsEmpty() bool {
	return p.Status == nil && p.Priority == nil && p.AssignedTo == nil && !p.Unassign && p.Comment == nil
}

// Fields returns the wire representation (assigned_to: null when unassigning).
func (p TaskPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Status != nil {
		out["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		out["priority"] = string(*p.Priority)
	}
	switch {
	case p.Unassign:
		out["assigned_to"] = nil
	case p.AssignedTo != nil:
		out["assigned_to"] = *p.AssignedTo
	}
	if p.Comment != nil {
		out["comment"] = *p.Comment
	}
	return out
}

// TaskPage is one page of the flat task listing.
type TaskPage struct {
	Tasks    []Task `json:"tasks"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// PatchFromFields is the inverse of TaskPatch.Fields. An explicit null assigned_to
// (or an empty string) unassigns.
func PatchFromFields(m map[string]any) (TaskPatch, error) {
	var p TaskPatch
	str := func(k string) (string, bool, error) {
		v, ok := m[k]
		if !ok || v == nil {
			return "", ok, nil
		}
		s, isStr := v.(string)
		if !isStr {
			return "", true, fmt.Errorf("%s: expected a string", k)
		}
		return s, true, nil
	}
	if s, ok, err := str("status"); err != nil {
		return p, err
	} else if ok && s != "" {
		st := Stage(strings.TrimSpace(s))
		p.Status = &st
	}
	if s, ok, err := str("priority"); err != nil {
		return p, err
	} else if ok && s != "" {
		pr := Priority(strings.TrimSpace(s))
		p.Priority = &pr
	}
	if s, ok, err := str("assigned_to"); err != nil {
		return p, err
	} else if ok {
		if s = strings.TrimSpace(s); s == "" {
			p.Unassign = true
		} else {
			p.AssignedTo = &s
		}
	}
	if s, ok, err := str("comment"); err != nil {
		return p, err
	} else if ok && strings.TrimSpace(s) != "" {
		c := strings.TrimSpace(s)
		p.Comment = &c
	}
	return p, nil
}

// Comment is a note attached to a task (e.g. the reason it was blocked).
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter scopes task listings. Sort, Status, Completed, Page and PageSize only make
// sense for the flat listing; the grouped view always returns every stage.
type Filter struct {
	ProjectID  string
	AssignedTo string
	Query      string

	Sort      string
	Status    Stage
	Completed *bool
	Page      int
	PageSize  int
}

// Values encodes the filter as query parameters.
func (f Filter) Values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s = strings.TrimSpace(s); s != "" {
			v.Set(k, s)
		}
	}
	set("project_id", f.ProjectID)
	set("assigned_to", f.AssignedTo)
	set("q", f.Query)
	set("sort", f.Sort)
	set("status", string(f.Status))
	if f.Completed != nil {
		v.Set("completed", strconv.FormatBool(*f.Completed))
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return v
}

// Grouped drops the parameters that only apply to the flat listing.
func (f Filter) Grouped() Filter {
	return Filter{
		ProjectID:  f.ProjectID,
		AssignedTo: f.AssignedTo,
		Query:      f.Query,
	}
}

// ParseFilter is the inverse of Values. Malformed numeric/bool params are ignored.
func ParseFilter(v url.Values) Filter {
	f := Filter{
		ProjectID:  strings.TrimSpace(v.Get("project_id")),
		AssignedTo: strings.TrimSpace(v.Get("assigned_to")),
		Query:      strings.TrimSpace(v.Get("q")),
		Sort:       strings.TrimSpace(v.Get("sort")),
		Status:     Stage(strings.TrimSpace(v.Get("status"))),
	}
	if b, err := strconv.ParseBool(v.Get("completed")); err == nil {
		f.Completed = &b
	}
	if n, err := strconv.Atoi(v.Get("page")); err == nil && n > 0 {
		f.Page = n
	}
	if n, err := strconv.Atoi(v.Get("page_size")); err == nil && n > 0 {
		f.PageSize = n
	}
	return f
}
