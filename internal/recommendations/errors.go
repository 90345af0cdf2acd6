package recommendations

import "errors"

var (
	// ErrNotFound is returned when a recommendation id does not exist.
	ErrNotFound = errors.New("recommendations: recommendation not found")

	// ErrInvalidAction is returned for a user action outside accepted, rejected, ignored.
	ErrInvalidAction = errors.New("recommendations: action must be accepted, rejected or ignored")

	// ErrMalformedResponse is returned when the generator output deviates from the expected shape.
	ErrMalformedResponse = errors.New("recommendations: malformed generator response")

	// ErrInvalidRecommendation is returned when a row would violate the table constraints.
	ErrInvalidRecommendation = errors.New("recommendations: invalid recommendation")
)
