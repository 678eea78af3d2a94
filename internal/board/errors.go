package board

import (
	"errors"
	"fmt"
)

var (
	ErrSameStage     = errors.New("source and target stage are the same")
	ErrInvalidStage  = errors.New("invalid stage")
	ErrDuplicateTask = errors.New("duplicate task id")
	ErrNoteRequired  = errors.New("stage requires a note")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound reports whether err (or anything it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
