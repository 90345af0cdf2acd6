package forms

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a session. Completed and abandoned are
// terminal and mutually exclusive.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusAbandoned:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Transition resolves moving a session from one status to another at time
// now. It returns the patch carrying the new status and its timestamp, or an
// empty patch when from == to.
func Transition(from, to Status, now time.Time) (SessionPatch, error) {
	if !to.Valid() {
		return SessionPatch{}, ErrInvalidStatus
	}
	if from == to {
		return SessionPatch{}, nil
	}
	if from.Terminal() || to == StatusActive {
		return SessionPatch{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	at := now.UTC()
	patch := SessionPatch{Status: &to}
	switch to {
	case StatusCompleted:
		patch.CompletedAt = &at
	case StatusAbandoned:
		patch.AbandonedAt = &at
	}
	return patch, nil
}
