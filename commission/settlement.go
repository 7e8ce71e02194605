/*
settlement.go - Approval and payout driver

PURPOSE:
  Moves calculations through their final states. Approve is allowed
  only from 'calculated'; Pay only from 'approved'. Both reject any
  other starting state - never a silent no-op - because 'paid' is a
  terminal, audit-significant state.

CONCURRENCY:
  Both transitions ride the store's compare-and-set status update, so
  two concurrent approvals (or payments) of the same calculation cannot
  both succeed.

No payment-rail integration here: Pay stamps dates and status only.
*/
package commission

import (
	"context"
	"fmt"
	"time"
)

// Settlement finalizes calculations.
type Settlement struct {
	Store    Store
	Notifier Notifier
	Now      func() time.Time
}

func NewSettlement(store Store, notifier Notifier) *Settlement {
	return &Settlement{Store: store, Notifier: notifier, Now: time.Now}
}

// Approve transitions calculated -> approved, stamping the approver.
// Linked sales transactions are marked processed, removing them from
// future collections.
func (s *Settlement) Approve(ctx context.Context, rc RequestContext, id CalculationID) (*Calculation, error) {
	now := s.Now()
	err := s.Store.TransitionStatus(ctx, rc.TenantID, id, StatusCalculated, StatusApproved, StatusStamps{
		ApprovedBy: rc.ActorID,
		ApprovedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Store.MarkProcessed(ctx, rc.TenantID, id); err != nil {
		return nil, err
	}

	calc, err := s.Store.GetCalculation(ctx, rc.TenantID, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, rc, EventCalculationApproved, calc, "approved")
	return calc, nil
}

// Pay transitions approved -> paid, stamping the payout date.
func (s *Settlement) Pay(ctx context.Context, rc RequestContext, id CalculationID, payoutDate Date) (*Calculation, error) {
	now := s.Now()
	err := s.Store.TransitionStatus(ctx, rc.TenantID, id, StatusApproved, StatusPaid, StatusStamps{
		PaidAt:     &now,
		PayoutDate: &payoutDate,
	})
	if err != nil {
		return nil, err
	}

	calc, err := s.Store.GetCalculation(ctx, rc.TenantID, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, rc, EventCalculationPaid, calc, fmt.Sprintf("paid out %s", payoutDate))
	return calc, nil
}

// Cancel transitions a draft or calculated run to cancelled.
func (s *Settlement) Cancel(ctx context.Context, rc RequestContext, id CalculationID) (*Calculation, error) {
	calc, err := s.Store.GetCalculation(ctx, rc.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !calc.Status.Replaceable() {
		return nil, &InvalidTransitionError{Kind: "calculation", ID: string(id),
			From: string(calc.Status), To: string(StatusCancelled)}
	}
	err = s.Store.TransitionStatus(ctx, rc.TenantID, id, calc.Status, StatusCancelled, StatusStamps{})
	if err != nil {
		return nil, err
	}
	return s.Store.GetCalculation(ctx, rc.TenantID, id)
}

func (s *Settlement) notify(ctx context.Context, rc RequestContext, t EventType, calc *Calculation, detail string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Publish(ctx, Event{
		Type:     t,
		TenantID: rc.TenantID,
		ActorID:  rc.ActorID,
		Subject:  string(calc.ID),
		Detail:   fmt.Sprintf("calculation %s (%s %s): %s", calc.ID, calc.EmployeeID, calc.PeriodName, detail),
		At:       s.Now(),
	})
}
