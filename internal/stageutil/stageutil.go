package stageutil

import (
	"fmt"
	"strings"

	"taskboard/internal/model"
)

// Parse normalizes user/API input into a stage id. Labels and a few common aliases are accepted.
func Parse(s string) (model.Stage, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "":
		return "", fmt.Errorf("invalid stage: empty")
	case "todo", "to_do", "backlog":
		return model.StageTodo, nil
	case "in_progress", "inprogress", "doing", "wip":
		return model.StageInProgress, nil
	case "review", "in_review":
		return model.StageReview, nil
	case "blocked", "on_hold":
		return model.StageBlocked, nil
	case "done", "complete", "completed":
		return model.StageDone, nil
	}
	return "", fmt.Errorf("invalid stage: %q", s)
}

func Valid(stage model.Stage) bool {
	_, ok := Def(stage)
	return ok
}

func Def(stage model.Stage) (model.StageDef, bool) {
	for _, def := range model.StageDefs {
		if def.ID == stage {
			return def, true
		}
	}
	return model.StageDef{}, false
}

// Index returns the display position of stage, or -1.
func Index(stage model.Stage) int {
	for i, def := range model.StageDefs {
		if def.ID == stage {
			return i
		}
	}
	return -1
}

func Label(stage model.Stage) string {
	if def, ok := Def(stage); ok && strings.TrimSpace(def.Label) != "" {
		return def.Label
	}
	return string(stage)
}

func IsEndState(stage model.Stage) bool {
	def, ok := Def(stage)
	return ok && def.IsEndState
}

// RequiresNote reports whether entering stage needs a justification comment.
func RequiresNote(stage model.Stage) bool {
	def, ok := Def(stage)
	return ok && def.RequiresNote
}

// Neighbor returns the stage delta positions away in display order (clamped).
func Neighbor(stage model.Stage, delta int) model.Stage {
	i := Index(stage)
	if i < 0 {
		return stage
	}
	i += delta
	if i < 0 {
		i = 0
	}
	if i >= len(model.StageDefs) {
		i = len(model.StageDefs) - 1
	}
	return model.StageDefs[i].ID
}
