/*
store.go - Persistence interfaces for the commission workflow

PURPOSE:
  Defines the contract between the domain logic and the database. Every
  method is tenant-scoped; implementations must filter by tenant on
  every read and write.

STORAGE-LAYER CONTRACTS (concurrency, spec-significant):
  - ReplaceCalculation is an upsert keyed on (tenant, employee,
    period_start, period_end): two concurrent runs for the same key
    must never produce two rows.
  - TransitionStatus and TransitionDispute are compare-and-set on the
    current status. A mismatch returns InvalidTransitionError and
    writes nothing, preventing double-approve/double-pay races.
  - Dispute history is APPEND-ONLY: the interface exposes only
    AppendHistory and ListHistory. No update, no delete, ever. The
    invariant is structural, not documented.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - commission/store: in-memory for tests and dev mode

SEE ALSO:
  - engine.go, settlement.go, dispute.go: consumers
*/
package commission

import (
	"context"
	"time"
)

// =============================================================================
// PLAN STORE
// =============================================================================

type PlanStore interface {
	// SavePlan validates and persists a plan with its tiers, product
	// rates and bonus rules. Invalid plans are rejected, not stored.
	SavePlan(ctx context.Context, plan *Plan) error

	// GetPlan returns ErrPlanNotFound when missing.
	GetPlan(ctx context.Context, tenantID TenantID, id PlanID) (*Plan, error)

	ListPlans(ctx context.Context, tenantID TenantID) ([]Plan, error)
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

type AssignmentStore interface {
	SaveAssignment(ctx context.Context, a Assignment) error

	// ListByEmployee returns all assignments for an employee, active or
	// not. The Resolver filters and enforces the single-active contract.
	ListByEmployee(ctx context.Context, tenantID TenantID, employeeID EmployeeID) ([]Assignment, error)
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx SalesTransaction) error

	// ListForEmployee returns the employee's transactions dated inside
	// the period, processed or not, charged back or not.
	ListForEmployee(ctx context.Context, tenantID TenantID, employeeID EmployeeID, period Period) ([]SalesTransaction, error)

	// ListBySource returns every row referencing one originating sale,
	// across employees. Used for split validation.
	ListBySource(ctx context.Context, tenantID TenantID, source SourceRef) ([]SalesTransaction, error)

	// LinkToCalculation stamps rows with the calculation ID and their
	// commission share. Rows stay unprocessed until approval.
	LinkToCalculation(ctx context.Context, tenantID TenantID, calcID CalculationID, amounts map[TransactionID]Money) error

	// UnlinkCalculation clears stale links before a replacement run.
	UnlinkCalculation(ctx context.Context, tenantID TenantID, calcID CalculationID) error

	// MarkProcessed flags every row linked to the calculation as
	// processed, removing it from future collections.
	MarkProcessed(ctx context.Context, tenantID TenantID, calcID CalculationID) error
}

// =============================================================================
// CALCULATION STORE
// =============================================================================

// StatusStamps carries the timestamps written alongside a status
// transition.
type StatusStamps struct {
	ApprovedBy string
	ApprovedAt *time.Time
	PaidAt     *time.Time
	PayoutDate *Date
}

type CalculationStore interface {
	// ReplaceCalculation upserts a calculation and atomically replaces
	// its details and bonuses. The upsert key is (tenant, employee,
	// period_start, period_end); a concurrent run for the same key must
	// converge on one row.
	ReplaceCalculation(ctx context.Context, calc *Calculation, details []Detail, bonuses []Bonus) error

	// GetCalculation returns ErrCalculationNotFound when missing.
	GetCalculation(ctx context.Context, tenantID TenantID, id CalculationID) (*Calculation, error)

	// FindCalculation returns (nil, nil) when no row exists for the key.
	FindCalculation(ctx context.Context, tenantID TenantID, employeeID EmployeeID, period Period) (*Calculation, error)

	ListCalculations(ctx context.Context, tenantID TenantID, employeeID EmployeeID) ([]Calculation, error)

	ListDetails(ctx context.Context, tenantID TenantID, calcID CalculationID) ([]Detail, error)

	ListBonuses(ctx context.Context, tenantID TenantID, calcID CalculationID) ([]Bonus, error)

	// TransitionStatus is a compare-and-set: the row moves from -> to
	// and the stamps are written only if the current status equals
	// from. Otherwise InvalidTransitionError, and nothing is written.
	TransitionStatus(ctx context.Context, tenantID TenantID, id CalculationID, from, to CalculationStatus, stamps StatusStamps) error

	// UpdateTotals rewrites the adjustment-dependent totals. Used only
	// by ApplyApprovedAdjustments.
	UpdateTotals(ctx context.Context, tenantID TenantID, id CalculationID, totalAdjustments, net Money) error
}

// =============================================================================
// ADJUSTMENT STORE
// =============================================================================

type AdjustmentStore interface {
	SaveAdjustment(ctx context.Context, adj Adjustment) error

	// GetAdjustment returns ErrAdjustmentNotFound when missing.
	GetAdjustment(ctx context.Context, tenantID TenantID, id AdjustmentID) (*Adjustment, error)

	// SetAdjustmentStatus moves pending -> approved/rejected (CAS).
	SetAdjustmentStatus(ctx context.Context, tenantID TenantID, id AdjustmentID, status AdjustmentStatus, actor string, at time.Time) error

	// ListAttachedAdjustments returns every approved adjustment that
	// counts toward a calculation's totals: rows already linked to
	// calcID (applied or not, so re-runs recompute the same total) plus
	// standalone unapplied rows dated inside the period.
	ListAttachedAdjustments(ctx context.Context, tenantID TenantID, employeeID EmployeeID, period Period, calcID CalculationID) ([]Adjustment, error)

	// ListApprovedUnapplied returns only approved, not-yet-applied
	// adjustments attachable to the calculation. Used to fold deltas
	// into an already-finalized run.
	ListApprovedUnapplied(ctx context.Context, tenantID TenantID, employeeID EmployeeID, period Period, calcID CalculationID) ([]Adjustment, error)

	// MarkApplied links the adjustments to the calculation and flags
	// them applied so they are never counted twice.
	MarkApplied(ctx context.Context, tenantID TenantID, ids []AdjustmentID, calcID CalculationID) error
}

// =============================================================================
// DISPUTE STORE - History is append-only by construction
// =============================================================================

type DisputeStore interface {
	SaveDispute(ctx context.Context, d Dispute) error

	// GetDispute returns ErrDisputeNotFound when missing.
	GetDispute(ctx context.Context, tenantID TenantID, id DisputeID) (*Dispute, error)

	ListDisputesByCalculation(ctx context.Context, tenantID TenantID, calcID CalculationID) ([]Dispute, error)

	// TransitionDispute persists the dispute's new state only if its
	// stored status equals from (CAS). InvalidTransitionError otherwise.
	TransitionDispute(ctx context.Context, tenantID TenantID, d *Dispute, from DisputeStatus) error

	// AppendHistory inserts one audit row. There is deliberately no
	// update or delete for history.
	AppendHistory(ctx context.Context, h DisputeHistory) error

	ListHistory(ctx context.Context, tenantID TenantID, disputeID DisputeID) ([]DisputeHistory, error)
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store bundles every repository the workflow needs. Both the SQLite
// and in-memory implementations satisfy it.
type Store interface {
	PlanStore
	AssignmentStore
	TransactionStore
	CalculationStore
	AdjustmentStore
	DisputeStore
}
