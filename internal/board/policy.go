package board

import (
	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

// Decision is the outcome of classifying a proposed stage transition.
type Decision int

const (
	// DecisionNoOp discards the transition (source and target are the same).
	DecisionNoOp Decision = iota
	// DecisionOptimistic applies the transition locally before the authority confirms it.
	DecisionOptimistic
	// DecisionDeferred routes the transition to the manual edit flow; nothing is applied.
	DecisionDeferred
)

func (d Decision) String() string {
	switch d {
	case DecisionNoOp:
		return "noop"
	case DecisionOptimistic:
		return "optimistic"
	case DecisionDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Proposal is a completed gesture (or direct selection) awaiting classification.
type Proposal struct {
	Task model.Task
	From model.Stage
	To   model.Stage
}

// Classify decides how a transition may proceed. Entering a stage that requires
// a note can't be done inline: there is nowhere to collect the note.
func Classify(p Proposal) Decision {
	if p.From == p.To {
		return DecisionNoOp
	}
	if stageutil.RequiresNote(p.To) {
		return DecisionDeferred
	}
	return DecisionOptimistic
}
