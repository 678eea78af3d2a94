package store

import (
	"strings"

	"github.com/google/uuid"
)

// newTaskID returns "task-" plus the leading 12 hex digits of a random (v4) UUID.
func newTaskID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return "task-" + strings.ReplaceAll(u.String(), "-", "")[:12], nil
}
