// Package disclosure decides which form fields are shown, hidden or required
// for a snapshot of partially-filled form data.
//
// Everything here is pure: Evaluate, ComputeVisibility and EstimateCompletion
// never perform I/O and never return errors. Malformed rule data fails closed
// (the rule simply does not match). Rules should be checked with Rule.Validate
// when they are loaded so bad definitions are rejected before evaluation.
//
// Precedence: ComputeVisibility applies rules in the order supplied and every
// match overwrites its target fields, so the last matching rule wins. Callers
// sort with SortByPriority (descending) first, which makes the lowest-priority
// matching rule the effective winner for a shared target field.
package disclosure
