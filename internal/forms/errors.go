package forms

import "errors"

var (
	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("forms: session not found")

	// ErrMissingUserID is returned when a session is created without an owner.
	ErrMissingUserID = errors.New("forms: user id is required")

	// ErrMissingSessionID is returned when a request does not name a session.
	ErrMissingSessionID = errors.New("forms: session id is required")

	// ErrInvalidCompletion is returned when a completion percentage is outside 0-100.
	ErrInvalidCompletion = errors.New("forms: completion percentage must be between 0 and 100")

	// ErrNegativeCounter is returned when a time or field counter is negative.
	ErrNegativeCounter = errors.New("forms: counters cannot be negative")

	// ErrInvalidStatus is returned for a status outside active, completed, abandoned.
	ErrInvalidStatus = errors.New("forms: invalid session status")

	// errStatusConflict is returned by a repository Patch whose ExpectedStatus
	// no longer matches the stored row.
	errStatusConflict = errors.New("forms: session status changed concurrently")

	// ErrInvalidTransition is returned when a terminal session is moved to another state.
	ErrInvalidTransition = errors.New("forms: invalid session status transition")

	// ErrMissingInteractionField is returned when an interaction lacks a required attribute.
	ErrMissingInteractionField = errors.New("forms: session_id, field_name, field_type and interaction_type are required")

	// ErrInvalidInteractionType is returned for an interaction type outside the supported set.
	ErrInvalidInteractionType = errors.New("forms: invalid interaction type")
)

// IsValidationError reports whether err stems from bad caller input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingUserID,
		ErrMissingSessionID,
		ErrInvalidCompletion,
		ErrNegativeCounter,
		ErrInvalidStatus,
		ErrInvalidTransition,
		ErrMissingInteractionField,
		ErrInvalidInteractionType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
