/*
assignment.go - Employee-to-plan mapping and the active-plan resolver

PURPOSE:
  An Assignment binds an employee to a plan for an effective date range,
  optionally with a quota target and per-category rate overrides.

SINGLE-ACTIVE CONTRACT:
  At most one assignment may be active for an employee at any instant.
  The schema cannot enforce this (ranges), so the Resolver does:
  - zero matches  -> NoActivePlanError
  - two or more   -> AmbiguousAssignmentError, surfaced to an admin

  There is deliberately NO tie-break. Overlapping assignments are a
  data-integrity violation that requires explicit administrative
  resolution; guessing which plan applies would silently misprice
  someone's paycheck.

SEE ALSO:
  - engine.go: Resolves the plan before every calculation
  - store.go: AssignmentStore interface
*/
package commission

import "context"

// =============================================================================
// ASSIGNMENT - Links an employee to a plan for a date range
// =============================================================================

// Assignment binds an employee to a plan for [EffectiveFrom, EffectiveTo].
// EffectiveTo nil = still active.
type Assignment struct {
	ID         AssignmentID
	TenantID   TenantID
	EmployeeID EmployeeID
	PlanID     PlanID

	EffectiveFrom Date
	EffectiveTo   *Date

	// QuotaTarget, when set, drives quota achievement and quota bonuses.
	QuotaTarget *Money

	// CustomRates override the plan's product rates per category for
	// this employee only.
	CustomRates []ProductRate
}

// ActiveOn reports whether the assignment covers the given date.
func (a Assignment) ActiveOn(at Date) bool {
	if at.Before(a.EffectiveFrom) {
		return false
	}
	return a.EffectiveTo == nil || !at.After(*a.EffectiveTo)
}

// Overlaps reports whether two assignment ranges intersect.
func (a Assignment) Overlaps(b Assignment) bool {
	aEndsBefore := a.EffectiveTo != nil && a.EffectiveTo.Before(b.EffectiveFrom)
	bEndsBefore := b.EffectiveTo != nil && b.EffectiveTo.Before(a.EffectiveFrom)
	return !aEndsBefore && !bEndsBefore
}

// =============================================================================
// RESOLVER - The single source of "which plan applies"
// =============================================================================

// Resolver finds the one active assignment for an employee on a date.
// Read-only; no side effects.
type Resolver struct {
	Assignments AssignmentStore
}

// Resolve returns the single assignment active at the given date.
// Zero matches yield NoActivePlanError; more than one yields
// AmbiguousAssignmentError with the conflicting IDs.
func (r *Resolver) Resolve(ctx context.Context, rc RequestContext, employeeID EmployeeID, at Date) (*Assignment, error) {
	assignments, err := r.Assignments.ListByEmployee(ctx, rc.TenantID, employeeID)
	if err != nil {
		return nil, err
	}

	var active []Assignment
	for _, a := range assignments {
		if err := rc.CheckTenant(a.TenantID, "assignment", string(a.ID)); err != nil {
			return nil, err
		}
		if a.ActiveOn(at) {
			active = append(active, a)
		}
	}

	switch len(active) {
	case 0:
		return nil, &NoActivePlanError{EmployeeID: employeeID, At: at}
	case 1:
		a := active[0]
		return &a, nil
	default:
		ids := make([]AssignmentID, len(active))
		for i, a := range active {
			ids[i] = a.ID
		}
		return nil, &AmbiguousAssignmentError{EmployeeID: employeeID, At: at, AssignmentIDs: ids}
	}
}
