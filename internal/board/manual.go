package board

import (
	"context"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

// SubmitManualEdit persists a deferred change together with its note. The caller is
// expected to refresh the board afterwards.
func SubmitManualEdit(ctx context.Context, auth Authority, req ManualEditRequest, note string) (model.Task, error) {
	note = strings.TrimSpace(note)
	if note == "" && stageutil.RequiresNote(req.Target) {
		return model.Task{}, ErrNoteRequired
	}
	patch := req.Patch
	target := req.Target
	patch.Status = &target
	if note != "" {
		patch.Comment = &note
	}
	return auth.PatchTask(ctx, req.Task.ID, patch)
}
