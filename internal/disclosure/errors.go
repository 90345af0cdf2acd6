package disclosure

import "errors"

var (
	// ErrUnknownOperator is returned when a trigger condition uses an operator outside the supported set.
	ErrUnknownOperator = errors.New("disclosure: unknown condition operator")

	// ErrUnknownAction is returned when a rule action is not show, hide, require or optional.
	ErrUnknownAction = errors.New("disclosure: unknown rule action")

	// ErrMissingTriggerField is returned when a rule has no trigger field path.
	ErrMissingTriggerField = errors.New("disclosure: trigger field is required")

	// ErrMissingTargets is returned when a rule targets no fields.
	ErrMissingTargets = errors.New("disclosure: at least one target field is required")
)
