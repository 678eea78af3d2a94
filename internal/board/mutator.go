package board

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/model"
)

// Authority is the remote system of record for tasks.
type Authority interface {
	GroupedTasks(ctx context.Context, filter model.Filter) (model.GroupedTasks, error)
	PatchTask(ctx context.Context, taskID string, patch model.TaskPatch) (model.Task, error)
}

// ManualEditRequest asks the manual edit flow to collect the input a change needs
// (e.g. the reason for blocking) and persist it.
type ManualEditRequest struct {
	Task   model.Task
	From   model.Stage
	Target model.Stage
	// Patch holds any other fields the caller wanted to change alongside the stage.
	Patch model.TaskPatch
}

// ManualEditor opens the manual edit flow. The returned command (may be nil) is run by the caller.
type ManualEditor interface {
	OpenManualEdit(req ManualEditRequest) tea.Cmd
}

// MutationResultMsg reports the outcome of a remote task update.
type MutationResultMsg struct {
	TaskID string
	From   model.Stage
	To     model.Stage
	Patch  model.TaskPatch
	Task   model.Task
	Err    error
}

// Mutator applies classified changes: locally first, then remotely.
type Mutator struct {
	store  *Store
	auth   Authority
	editor ManualEditor
	ctx    context.Context
}

func NewMutator(ctx context.Context, store *Store, auth Authority, editor ManualEditor) *Mutator {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Mutator{store: store, auth: auth, editor: editor, ctx: ctx}
}

// Apply carries out a stage transition according to d.
func (m *Mutator) Apply(p Proposal, d Decision) (tea.Cmd, error) {
	to := p.To
	return m.Edit(p.Task, p.From, model.TaskPatch{Status: &to}, d)
}

// Edit carries out a task update. For DecisionOptimistic the store is updated before the
// returned command issues the remote call; for DecisionDeferred nothing is applied and the
// manual edit flow is opened instead.
func (m *Mutator) Edit(t model.Task, from model.Stage, patch model.TaskPatch, d Decision) (tea.Cmd, error) {
	to := from
	if patch.Status != nil {
		to = *patch.Status
	}

	switch d {
	case DecisionDeferred:
		if m.editor == nil {
			return nil, fmt.Errorf("%w: no manual edit flow to collect it", ErrNoteRequired)
		}
		return m.editor.OpenManualEdit(ManualEditRequest{Task: t, From: from, Target: to, Patch: patch}), nil
	case DecisionNoOp:
		// A same-stage edit can still carry other fields.
		patch.Status = nil
		if patch.IsEmpty() {
			return nil, nil
		}
	}

	if to != from {
		if err := m.store.MoveTask(t.ID, from, to); err != nil {
			return nil, err
		}
	}
	if err := m.store.PatchFields(t.ID, patch); err != nil {
		return nil, err
	}
	return m.send(t.ID, from, to, patch), nil
}

func (m *Mutator) send(taskID string, from, to model.Stage, patch model.TaskPatch) tea.Cmd {
	ctx, auth := m.ctx, m.auth
	return func() tea.Msg {
		t, err := auth.PatchTask(ctx, taskID, patch)
		return MutationResultMsg{TaskID: taskID, From: from, To: to, Patch: patch, Task: t, Err: err}
	}
}
