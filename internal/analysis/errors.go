package analysis

import "errors"

var (
	// ErrMissingSessionID is returned when Analyze is called without a session.
	ErrMissingSessionID = errors.New("analysis: session id is required")
	// ErrMissingFormData is returned when the request carries no form data.
	ErrMissingFormData = errors.New("analysis: form data is required")
	// ErrSnapshotNotFound means no visibility snapshot was stored for the session.
	ErrSnapshotNotFound = errors.New("analysis: snapshot not found")
)
