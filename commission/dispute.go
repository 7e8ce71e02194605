/*
dispute.go - Dispute workflow state machine with append-only history

PURPOSE:
  A Dispute is a formal contest of a calculated commission amount,
  tracked through a review workflow. Every status transition appends
  exactly ONE history row; the history is the sole audit trail and is
  never edited or deleted.

STATE MACHINE:
  submitted -> under_review -> escalated -> resolved | rejected -> closed

  submitted -> under_review          assign to a reviewer
  under_review -> escalated          defer to higher authority
  under_review|escalated -> resolved requires a resolution type; a
                                     payout change creates a linked,
                                     approved Adjustment
  under_review|escalated -> rejected requires resolution notes
  resolved|rejected -> closed        terminal; no further mutation

  Any other transition is rejected with InvalidTransitionError and
  writes NO history row.

CALCULATION INTERPLAY:
  Submitting a dispute against a 'calculated' run moves it to
  'disputed' (blocking approval and recalculation); closing the dispute
  returns it to 'calculated'. Disputes against approved/paid runs never
  change the run's status - corrections flow through adjustments.
*/
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DISPUTE
// =============================================================================

type DisputeStatus string

const (
	DisputeSubmitted   DisputeStatus = "submitted"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeEscalated   DisputeStatus = "escalated"
	DisputeResolved    DisputeStatus = "resolved"
	DisputeRejected    DisputeStatus = "rejected"
	DisputeClosed      DisputeStatus = "closed"
)

// ResolutionType classifies how a dispute was settled. Adjustment and
// recalculation imply a payout change.
type ResolutionType string

const (
	ResolutionAdjustment    ResolutionType = "adjustment"
	ResolutionRecalculation ResolutionType = "recalculation"
	ResolutionNoChange      ResolutionType = "no_change"
)

// Dispute references exactly one calculation.
type Dispute struct {
	ID            DisputeID
	TenantID      TenantID
	CalculationID CalculationID
	EmployeeID    EmployeeID
	SubmittedBy   string

	DisputedAmount Money // what the calculation says
	ExpectedAmount Money // what the employee believes is owed

	Status     DisputeStatus
	AssignedTo string
	Reason     string

	ResolutionType   ResolutionType
	ResolutionNotes  string
	ResolutionAmount Money
	AdjustmentID     *AdjustmentID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Difference is the computed gap between expected and disputed amounts.
func (d *Dispute) Difference() Money {
	return d.ExpectedAmount.Sub(d.DisputedAmount)
}

// DisputeHistory is one append-only audit row. Never mutated.
type DisputeHistory struct {
	ID          string
	TenantID    TenantID
	DisputeID   DisputeID
	FromStatus  DisputeStatus
	ToStatus    DisputeStatus
	ActorID     string
	Description string
	CreatedAt   time.Time
}

// canTransition encodes the forward-only state machine.
func canTransition(from, to DisputeStatus) bool {
	switch from {
	case DisputeSubmitted:
		return to == DisputeUnderReview
	case DisputeUnderReview:
		return to == DisputeEscalated || to == DisputeResolved || to == DisputeRejected
	case DisputeEscalated:
		return to == DisputeResolved || to == DisputeRejected
	case DisputeResolved, DisputeRejected:
		return to == DisputeClosed
	default: // closed is terminal
		return false
	}
}

// =============================================================================
// WORKFLOW
// =============================================================================

// DisputeWorkflow drives disputes through the state machine.
type DisputeWorkflow struct {
	Store    Store
	Notifier Notifier
	Now      func() time.Time
}

func NewDisputeWorkflow(store Store, notifier Notifier) *DisputeWorkflow {
	return &DisputeWorkflow{Store: store, Notifier: notifier, Now: time.Now}
}

// Submit opens a dispute against a calculation. A calculated run moves
// to disputed; approved/paid runs keep their status. Submission is the
// dispute's creation, not a transition, so no history row is written.
func (w *DisputeWorkflow) Submit(ctx context.Context, rc RequestContext, calcID CalculationID, expectedAmount Money, reason string) (*Dispute, error) {
	calc, err := w.Store.GetCalculation(ctx, rc.TenantID, calcID)
	if err != nil {
		return nil, err
	}
	if err := rc.CheckTenant(calc.TenantID, "calculation", string(calc.ID)); err != nil {
		return nil, err
	}

	now := w.Now()
	d := Dispute{
		ID:             DisputeID(uuid.NewString()),
		TenantID:       rc.TenantID,
		CalculationID:  calc.ID,
		EmployeeID:     calc.EmployeeID,
		SubmittedBy:    rc.ActorID,
		DisputedAmount: calc.NetCommission,
		ExpectedAmount: expectedAmount,
		Status:         DisputeSubmitted,
		Reason:         reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := w.Store.SaveDispute(ctx, d); err != nil {
		return nil, err
	}

	// A dispute parks a calculated run; finalized runs are untouched.
	if calc.Status == StatusCalculated {
		err := w.Store.TransitionStatus(ctx, rc.TenantID, calc.ID, StatusCalculated, StatusDisputed, StatusStamps{})
		if err != nil {
			return nil, err
		}
	}

	w.notify(ctx, rc, &d, "dispute submitted")
	return &d, nil
}

// Assign moves submitted -> under_review and records the reviewer.
func (w *DisputeWorkflow) Assign(ctx context.Context, rc RequestContext, id DisputeID, reviewer string) (*Dispute, error) {
	return w.transition(ctx, rc, id, DisputeUnderReview,
		fmt.Sprintf("assigned to %s for review", reviewer),
		func(d *Dispute) error {
			d.AssignedTo = reviewer
			return nil
		})
}

// Escalate moves under_review -> escalated, optionally reassigning.
func (w *DisputeWorkflow) Escalate(ctx context.Context, rc RequestContext, id DisputeID, assignTo, note string) (*Dispute, error) {
	return w.transition(ctx, rc, id, DisputeEscalated, note,
		func(d *Dispute) error {
			if assignTo != "" {
				d.AssignedTo = assignTo
			}
			return nil
		})
}

// Resolve moves under_review|escalated -> resolved. When the resolution
// implies a payout change, a companion approved Adjustment is created
// and linked; the history row captures the resolution amount.
func (w *DisputeWorkflow) Resolve(ctx context.Context, rc RequestContext, id DisputeID, resolution ResolutionType, amount Money, notes string) (*Dispute, error) {
	desc := fmt.Sprintf("resolved (%s)", resolution)
	if resolution != ResolutionNoChange {
		desc = fmt.Sprintf("resolved (%s) for %s", resolution, amount)
	}

	return w.transition(ctx, rc, id, DisputeResolved, desc, func(d *Dispute) error {
		d.ResolutionType = resolution
		d.ResolutionNotes = notes
		d.ResolutionAmount = amount

		if resolution == ResolutionNoChange || amount.IsZero() {
			return nil
		}

		now := w.Now()
		adj := Adjustment{
			ID:            AdjustmentID(uuid.NewString()),
			TenantID:      rc.TenantID,
			EmployeeID:    d.EmployeeID,
			CalculationID: &d.CalculationID,
			Type:          AdjustCorrection,
			Amount:        amount,
			Reason:        fmt.Sprintf("dispute %s resolution", d.ID),
			EffectiveDate: Today(),
			Status:        AdjustmentApproved,
			ApprovedBy:    rc.ActorID,
			ApprovedAt:    &now,
			DisputeID:     &d.ID,
			CreatedAt:     now,
		}
		if err := w.Store.SaveAdjustment(ctx, adj); err != nil {
			return err
		}
		d.AdjustmentID = &adj.ID
		return nil
	})
}

// Reject moves under_review|escalated -> rejected. Notes are mandatory;
// no adjustment is created.
func (w *DisputeWorkflow) Reject(ctx context.Context, rc RequestContext, id DisputeID, notes string) (*Dispute, error) {
	if notes == "" {
		return nil, fmt.Errorf("rejecting a dispute requires resolution notes")
	}
	return w.transition(ctx, rc, id, DisputeRejected, "rejected: "+notes,
		func(d *Dispute) error {
			d.ResolutionNotes = notes
			return nil
		})
}

// Close moves resolved|rejected -> closed. Terminal: neither the
// dispute nor its history may change afterwards. A disputed run
// returns to calculated so it can be reprocessed or approved.
func (w *DisputeWorkflow) Close(ctx context.Context, rc RequestContext, id DisputeID) (*Dispute, error) {
	d, err := w.transition(ctx, rc, id, DisputeClosed, "closed", nil)
	if err != nil {
		return nil, err
	}

	calc, err := w.Store.GetCalculation(ctx, rc.TenantID, d.CalculationID)
	if err != nil {
		return nil, err
	}
	if calc.Status == StatusDisputed {
		open, err := w.openDisputesRemain(ctx, rc, calc.ID)
		if err != nil {
			return nil, err
		}
		if !open {
			err := w.Store.TransitionStatus(ctx, rc.TenantID, calc.ID, StatusDisputed, StatusCalculated, StatusStamps{})
			if err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

func (w *DisputeWorkflow) openDisputesRemain(ctx context.Context, rc RequestContext, calcID CalculationID) (bool, error) {
	disputes, err := w.Store.ListDisputesByCalculation(ctx, rc.TenantID, calcID)
	if err != nil {
		return false, err
	}
	for _, d := range disputes {
		if d.Status != DisputeClosed {
			return true, nil
		}
	}
	return false, nil
}

// transition validates the move, applies mutate, persists with CAS on
// the previous status, and appends exactly one history row.
func (w *DisputeWorkflow) transition(ctx context.Context, rc RequestContext, id DisputeID, to DisputeStatus, description string, mutate func(*Dispute) error) (*Dispute, error) {
	d, err := w.Store.GetDispute(ctx, rc.TenantID, id)
	if err != nil {
		return nil, err
	}
	if err := rc.CheckTenant(d.TenantID, "dispute", string(d.ID)); err != nil {
		return nil, err
	}

	from := d.Status
	if !canTransition(from, to) {
		return nil, &InvalidTransitionError{Kind: "dispute", ID: string(id), From: string(from), To: string(to)}
	}

	if mutate != nil {
		if err := mutate(d); err != nil {
			return nil, err
		}
	}

	now := w.Now()
	d.Status = to
	d.UpdatedAt = now

	if err := w.Store.TransitionDispute(ctx, rc.TenantID, d, from); err != nil {
		return nil, err
	}

	h := DisputeHistory{
		ID:          uuid.NewString(),
		TenantID:    rc.TenantID,
		DisputeID:   d.ID,
		FromStatus:  from,
		ToStatus:    to,
		ActorID:     rc.ActorID,
		Description: description,
		CreatedAt:   now,
	}
	if err := w.Store.AppendHistory(ctx, h); err != nil {
		return nil, err
	}

	w.notify(ctx, rc, d, description)
	return d, nil
}

func (w *DisputeWorkflow) notify(ctx context.Context, rc RequestContext, d *Dispute, description string) {
	if w.Notifier == nil {
		return
	}
	w.Notifier.Publish(ctx, Event{
		Type:     EventDisputeStatusChanged,
		TenantID: rc.TenantID,
		ActorID:  rc.ActorID,
		Subject:  string(d.ID),
		Detail:   fmt.Sprintf("dispute %s: %s (now %s)", d.ID, description, d.Status),
	})
}
