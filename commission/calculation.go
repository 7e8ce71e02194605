/*
calculation.go - Calculation records, line items, bonuses, status machine

PURPOSE:
  A Calculation is the one-row-per-employee-per-period result of an
  engine run. It owns its Details (per-category breakdown) and Bonuses,
  and is referenced (not owned) by Adjustments, Disputes and
  SalesTransactions.

STATUS LIFECYCLE:
  draft -> calculated -> approved -> paid
                |           side branches: disputed, cancelled
  - disputed: a dispute was opened against a calculated run; approval
    and recalculation are blocked until the dispute closes
  - paid is terminal and audit-significant; after payment the only
    sanctioned mutation is folding in an approved adjustment

INVARIANTS (testable):
  GrossCommission = sum of Details' CommissionAmount
  TotalBonuses    = sum of Bonuses' Amount where EligibilityMet
  NetCommission   = GrossCommission + TotalBonuses + TotalAdjustments
*/
package commission

import "time"

// =============================================================================
// STATUS MACHINE
// =============================================================================

type CalculationStatus string

const (
	StatusDraft      CalculationStatus = "draft"
	StatusCalculated CalculationStatus = "calculated"
	StatusApproved   CalculationStatus = "approved"
	StatusPaid       CalculationStatus = "paid"
	StatusDisputed   CalculationStatus = "disputed"
	StatusCancelled  CalculationStatus = "cancelled"
)

// Finalized reports whether the status blocks recalculation.
// Disputed runs must be closed before recalculating.
func (s CalculationStatus) Finalized() bool {
	return s == StatusApproved || s == StatusPaid || s == StatusDisputed
}

// Replaceable reports whether a re-run may replace this calculation.
func (s CalculationStatus) Replaceable() bool {
	return s == StatusDraft || s == StatusCalculated
}

// =============================================================================
// CALCULATION
// =============================================================================

// Calculation is the engine's output for one employee and period.
type Calculation struct {
	ID         CalculationID
	TenantID   TenantID
	EmployeeID EmployeeID
	PlanID     PlanID

	Period     Period
	PeriodName string

	TotalSales       Money
	QuotaTarget      *Money
	QuotaAchievement Rate // percent; zero when no quota target

	GrossCommission  Money
	TotalBonuses     Money
	TotalAdjustments Money
	NetCommission    Money

	Status CalculationStatus

	// NeedsReview marks a net below the plan's minimum payment. The
	// calculation still persists; the caller decides what to do.
	NeedsReview bool

	ApprovedAt *time.Time
	ApprovedBy string
	PaidAt     *time.Time
	PayoutDate *Date

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Detail is the per-category breakdown row owned by one calculation.
type Detail struct {
	CalculationID    CalculationID
	Category         ProductCategory
	SalesAmount      Money
	Rate             Rate
	CommissionAmount Money

	// TierLevel records which bracket produced the rate for tiered
	// plans; zero for flat plans.
	TierLevel int
}

// Bonus is one evaluated bonus rule attached to a calculation. Rows are
// recorded whether or not eligibility was met, so the run is auditable.
type Bonus struct {
	CalculationID  CalculationID
	Kind           BonusKind
	Criteria       string // wire-form rule criteria, verbatim
	Amount         Money
	EligibilityMet bool
}
