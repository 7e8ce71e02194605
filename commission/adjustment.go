/*
adjustment.go - Signed corrections to commission payouts

PURPOSE:
  An Adjustment is a signed amount (+/-) applied to a calculation:
  chargebacks, penalties, dispute resolutions, manual corrections. An
  adjustment may be standalone (nil CalculationID) and attach to a
  later run for the same employee/period.

APPROVAL GATE:
  Adjustments may require approval; only approved adjustments count
  toward a calculation's TotalAdjustments. Pending and rejected
  adjustments are never netted.
*/
package commission

import "time"

// =============================================================================
// ADJUSTMENT
// =============================================================================

type AdjustmentType string

const (
	AdjustChargeback AdjustmentType = "chargeback"
	AdjustBonus      AdjustmentType = "bonus"
	AdjustPenalty    AdjustmentType = "penalty"
	AdjustCorrection AdjustmentType = "correction"
	AdjustManual     AdjustmentType = "manual_adjustment"
	AdjustSplit      AdjustmentType = "split_adjustment"
)

// ValidAdjustmentType reports whether s names a known adjustment type.
func ValidAdjustmentType(s string) bool {
	switch AdjustmentType(s) {
	case AdjustChargeback, AdjustBonus, AdjustPenalty,
		AdjustCorrection, AdjustManual, AdjustSplit:
		return true
	}
	return false
}

type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "pending"
	AdjustmentApproved AdjustmentStatus = "approved"
	AdjustmentRejected AdjustmentStatus = "rejected"
)

// Adjustment is a signed correction. Amount keeps its sign: chargebacks
// are negative, make-goods positive.
type Adjustment struct {
	ID         AdjustmentID
	TenantID   TenantID
	EmployeeID EmployeeID

	// CalculationID is nil for standalone adjustments; they attach to
	// the employee's run for the matching period when it executes.
	CalculationID *CalculationID

	Type   AdjustmentType
	Amount Money
	Reason string

	// EffectiveDate places a standalone adjustment into a period window.
	EffectiveDate Date

	Status     AdjustmentStatus
	ApprovedBy string
	ApprovedAt *time.Time

	// Applied is set once the amount has been folded into a
	// calculation's TotalAdjustments, so it is never counted twice.
	Applied bool

	// DisputeID links adjustments created by dispute resolutions.
	DisputeID *DisputeID

	CreatedAt time.Time
}
