/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All domain error kinds in one place. Every mutation endpoint must be
  able to return a distinguishable code per kind so the client can
  render an actionable message ("plan assignment is ambiguous - contact
  admin" vs "this period was already paid").

ERROR CATEGORIES:
  1. Resolution errors  - no or ambiguous plan assignment
  2. Lifecycle errors   - finalized records, bad state transitions
  3. Data errors        - split over-allocation, cross-tenant references
  4. Not-found errors   - missing referenced records

PROPAGATION POLICY:
  All of the above are returned to the caller, never swallowed. Only
  truly unexpected failures (storage unavailability) surface as a
  generic failure.

USAGE:
  if errors.Is(err, commission.ErrNoActivePlan) { ... }
  code := commission.ErrorCode(err) // "no_active_plan"
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoActivePlan is returned when an employee has no plan assignment
	// covering the reference date. Calculation cannot proceed.
	ErrNoActivePlan = errors.New("no active commission plan")

	// ErrAmbiguousAssignment is returned when more than one assignment
	// overlaps the reference date. This is a data-integrity violation
	// that must be surfaced to an administrator, never auto-resolved.
	ErrAmbiguousAssignment = errors.New("ambiguous plan assignment")

	// ErrAlreadyFinalized is returned on any attempt to recalculate or
	// mutate a calculation that has been approved or paid.
	ErrAlreadyFinalized = errors.New("calculation already finalized")

	// ErrInvalidTransition is returned when a dispute or calculation
	// state-machine transition is attempted from a state that does not
	// permit it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSplitOverAllocation is returned when split commission
	// percentages for one sale exceed 100%.
	ErrSplitOverAllocation = errors.New("split commission over-allocation")

	// ErrTenantMismatch is returned when a record references or is
	// referenced across tenants. A hard error, not a filter.
	ErrTenantMismatch = errors.New("cross-tenant reference")

	// ErrInvalidPlan is returned when a plan definition fails write-time
	// validation (tier gaps/overlaps, missing mode, unknown category).
	ErrInvalidPlan = errors.New("invalid plan definition")

	// Not-found sentinels.
	ErrPlanNotFound        = errors.New("plan not found")
	ErrCalculationNotFound = errors.New("calculation not found")
	ErrAdjustmentNotFound  = errors.New("adjustment not found")
	ErrDisputeNotFound     = errors.New("dispute not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NoActivePlanError reports which employee/date had no coverage.
type NoActivePlanError struct {
	EmployeeID EmployeeID
	At         Date
}

func (e *NoActivePlanError) Error() string {
	return fmt.Sprintf("no active commission plan for employee %s at %s", e.EmployeeID, e.At)
}

func (e *NoActivePlanError) Unwrap() error { return ErrNoActivePlan }

// AmbiguousAssignmentError lists the overlapping assignment IDs so an
// administrator can repair the data.
type AmbiguousAssignmentError struct {
	EmployeeID    EmployeeID
	At            Date
	AssignmentIDs []AssignmentID
}

func (e *AmbiguousAssignmentError) Error() string {
	return fmt.Sprintf("employee %s has %d overlapping plan assignments at %s",
		e.EmployeeID, len(e.AssignmentIDs), e.At)
}

func (e *AmbiguousAssignmentError) Unwrap() error { return ErrAmbiguousAssignment }

// AlreadyFinalizedError reports the calculation and the status that
// blocks the mutation.
type AlreadyFinalizedError struct {
	CalculationID CalculationID
	Status        CalculationStatus
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("calculation %s is %s and cannot be recalculated", e.CalculationID, e.Status)
}

func (e *AlreadyFinalizedError) Unwrap() error { return ErrAlreadyFinalized }

// InvalidTransitionError reports an attempted transition the state
// machine does not permit. No side effect (and no history row) is
// written when this is returned.
type InvalidTransitionError struct {
	Kind string // "dispute" or "calculation"
	ID   string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot transition %s -> %s", e.Kind, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// SplitOverAllocationError reports a sale whose split percentages sum
// past 100%. A reportable data error, not a crash.
type SplitOverAllocationError struct {
	Source       SourceRef
	TotalPercent Rate
}

func (e *SplitOverAllocationError) Error() string {
	return fmt.Sprintf("sale %s: split percentages sum to %s%%", e.Source, e.TotalPercent)
}

func (e *SplitOverAllocationError) Unwrap() error { return ErrSplitOverAllocation }

// TenantMismatchError reports a cross-tenant reference.
type TenantMismatchError struct {
	Want TenantID
	Got  TenantID
	Kind string
	ID   string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("%s %s belongs to another tenant", e.Kind, e.ID)
}

func (e *TenantMismatchError) Unwrap() error { return ErrTenantMismatch }

// PlanValidationError reports why a plan definition was rejected.
type PlanValidationError struct {
	PlanID PlanID
	Reason string
}

func (e *PlanValidationError) Error() string {
	return fmt.Sprintf("plan %s: %s", e.PlanID, e.Reason)
}

func (e *PlanValidationError) Unwrap() error { return ErrInvalidPlan }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client
// input or state, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoActivePlan) ||
		errors.Is(err, ErrAmbiguousAssignment) ||
		errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSplitOverAllocation) ||
		errors.Is(err, ErrTenantMismatch) ||
		errors.Is(err, ErrInvalidPlan)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrCalculationNotFound) ||
		errors.Is(err, ErrAdjustmentNotFound) ||
		errors.Is(err, ErrDisputeNotFound)
}

// ErrorCode maps a domain error to a stable machine-readable code for
// the API layer. Unknown errors map to "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoActivePlan):
		return "no_active_plan"
	case errors.Is(err, ErrAmbiguousAssignment):
		return "ambiguous_assignment"
	case errors.Is(err, ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrSplitOverAllocation):
		return "split_over_allocation"
	case errors.Is(err, ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(err, ErrInvalidPlan):
		return "invalid_plan"
	case IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}
