package commission_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dealerpoint/commission-engine/commission"
	"github.com/dealerpoint/commission-engine/commission/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// calculatedRun seeds a flat plan with one $10,000 sale and returns the
// calculated run (net $500).
func calculatedRun(t *testing.T, engine *commission.Engine, mem *store.Memory) *commission.Calculation {
	t.Helper()
	ctx := context.Background()
	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	return calc
}

func newDisputeWorkflow(mem *store.Memory) *commission.DisputeWorkflow {
	return commission.NewDisputeWorkflow(mem, commission.NopNotifier{})
}

func historyCount(t *testing.T, mem *store.Memory, id commission.DisputeID) int {
	t.Helper()
	rows, err := mem.ListHistory(context.Background(), testTenant, id)
	require.NoError(t, err)
	return len(rows)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestDispute_Submit_ParksCalculatedRun(t *testing.T) {
	// GIVEN: A calculated run
	// WHEN: Submitting a dispute against it
	// THEN: The run moves to disputed; submission writes no history row

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "missing contract sale")
	require.NoError(t, err)

	require.Equal(t, commission.DisputeSubmitted, d.Status)
	assertMoney(t, "500", d.DisputedAmount, "snapshot of the calculated net")
	assertMoney(t, "250", d.Difference(), "expected minus disputed")
	require.Equal(t, 0, historyCount(t, mem, d.ID), "submission is creation, not a transition")

	after, err := mem.GetCalculation(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Equal(t, commission.StatusDisputed, after.Status)
}

func TestDispute_Submit_ApprovedRunKeepsStatus(t *testing.T) {
	// GIVEN: An approved run
	// WHEN: Submitting a dispute
	// THEN: The dispute opens but the run stays approved

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	settlement := commission.NewSettlement(mem, commission.NopNotifier{})
	_, err := settlement.Approve(ctx, testRC(), calc.ID)
	require.NoError(t, err)

	wf := newDisputeWorkflow(mem)
	_, err = wf.Submit(ctx, testRC(), calc.ID, money("600"), "underpaid")
	require.NoError(t, err)

	after, err := mem.GetCalculation(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Equal(t, commission.StatusApproved, after.Status)
}

func TestDispute_DisputedRun_BlocksRecalculationAndApproval(t *testing.T) {
	// GIVEN: A run parked by an open dispute
	// WHEN: Recalculating or approving it
	// THEN: Both are rejected

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	_, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "contested")
	require.NoError(t, err)

	_, err = engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.ErrorIs(t, err, commission.ErrAlreadyFinalized)

	settlement := commission.NewSettlement(mem, commission.NopNotifier{})
	_, err = settlement.Approve(ctx, testRC(), calc.ID)
	require.ErrorIs(t, err, commission.ErrInvalidTransition)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestDispute_FullLifecycle_OneHistoryRowPerTransition(t *testing.T) {
	// GIVEN: A submitted dispute
	// WHEN: assign -> escalate -> resolve -> close
	// THEN: Exactly four history rows, in order, each naming the actor

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "contested")
	require.NoError(t, err)

	_, err = wf.Assign(ctx, testRC(), d.ID, "manager-1")
	require.NoError(t, err)
	_, err = wf.Escalate(ctx, testRC(), d.ID, "director-1", "needs senior review")
	require.NoError(t, err)
	_, err = wf.Resolve(ctx, testRC(), d.ID, commission.ResolutionNoChange, money("0"), "calculation was correct")
	require.NoError(t, err)
	_, err = wf.Close(ctx, testRC(), d.ID)
	require.NoError(t, err)

	rows, err := mem.ListHistory(ctx, testTenant, d.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	wantTransitions := [][2]commission.DisputeStatus{
		{commission.DisputeSubmitted, commission.DisputeUnderReview},
		{commission.DisputeUnderReview, commission.DisputeEscalated},
		{commission.DisputeEscalated, commission.DisputeResolved},
		{commission.DisputeResolved, commission.DisputeClosed},
	}
	for i, row := range rows {
		require.Equal(t, wantTransitions[i][0], row.FromStatus, "row %d from", i)
		require.Equal(t, wantTransitions[i][1], row.ToStatus, "row %d to", i)
		require.Equal(t, "tester", row.ActorID)
	}
}

func TestDispute_InvalidTransition_WritesNothing(t *testing.T) {
	// GIVEN: A freshly submitted dispute
	// WHEN: Resolving it directly (skipping review)
	// THEN: InvalidTransitionError; status and history are untouched

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "contested")
	require.NoError(t, err)

	_, err = wf.Resolve(ctx, testRC(), d.ID, commission.ResolutionNoChange, money("0"), "")
	var invalid *commission.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "dispute", invalid.Kind)

	stored, err := mem.GetDispute(ctx, testTenant, d.ID)
	require.NoError(t, err)
	require.Equal(t, commission.DisputeSubmitted, stored.Status)
	require.Equal(t, 0, historyCount(t, mem, d.ID))
}

func TestDispute_ClosedIsTerminal(t *testing.T) {
	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "contested")
	require.NoError(t, err)
	_, err = wf.Assign(ctx, testRC(), d.ID, "manager-1")
	require.NoError(t, err)
	_, err = wf.Reject(ctx, testRC(), d.ID, "no evidence of missing sale")
	require.NoError(t, err)
	_, err = wf.Close(ctx, testRC(), d.ID)
	require.NoError(t, err)

	_, err = wf.Assign(ctx, testRC(), d.ID, "manager-2")
	require.ErrorIs(t, err, commission.ErrInvalidTransition)
	require.Equal(t, 3, historyCount(t, mem, d.ID), "no row for the rejected attempt")
}

func TestDispute_Reject_RequiresNotes(t *testing.T) {
	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "contested")
	require.NoError(t, err)
	_, err = wf.Assign(ctx, testRC(), d.ID, "manager-1")
	require.NoError(t, err)

	_, err = wf.Reject(ctx, testRC(), d.ID, "")
	require.Error(t, err)
	require.Equal(t, 1, historyCount(t, mem, d.ID), "only the assign row exists")
}

// =============================================================================
// RESOLUTION SIDE EFFECTS
// =============================================================================

func TestDispute_ResolveWithAmount_CreatesLinkedAdjustment(t *testing.T) {
	// GIVEN: A dispute under review
	// WHEN: Resolving with a $250 correction
	// THEN: An approved adjustment is created, linked both ways

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "missing sale")
	require.NoError(t, err)
	_, err = wf.Assign(ctx, testRC(), d.ID, "manager-1")
	require.NoError(t, err)

	resolved, err := wf.Resolve(ctx, testRC(), d.ID, commission.ResolutionAdjustment, money("250"), "verified the missing invoice")
	require.NoError(t, err)
	require.NotNil(t, resolved.AdjustmentID)

	adj, err := mem.GetAdjustment(ctx, testTenant, *resolved.AdjustmentID)
	require.NoError(t, err)
	require.Equal(t, commission.AdjustmentApproved, adj.Status)
	require.Equal(t, commission.AdjustCorrection, adj.Type)
	assertMoney(t, "250", adj.Amount, "resolution amount")
	require.NotNil(t, adj.DisputeID)
	require.Equal(t, d.ID, *adj.DisputeID)
	require.NotNil(t, adj.CalculationID)
	require.Equal(t, calc.ID, *adj.CalculationID)
}

func TestDispute_ResolveNoChange_CreatesNoAdjustment(t *testing.T) {
	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "contested")
	require.NoError(t, err)
	_, err = wf.Assign(ctx, testRC(), d.ID, "manager-1")
	require.NoError(t, err)

	resolved, err := wf.Resolve(ctx, testRC(), d.ID, commission.ResolutionNoChange, money("0"), "correct as calculated")
	require.NoError(t, err)
	require.Nil(t, resolved.AdjustmentID)
}

// =============================================================================
// CLOSE AND CALCULATION RELEASE
// =============================================================================

func TestDispute_Close_ReleasesCalculation(t *testing.T) {
	// GIVEN: A run parked by a single dispute
	// WHEN: The dispute is resolved and closed
	// THEN: The run returns to calculated and can be recalculated

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "contested")
	require.NoError(t, err)
	_, err = wf.Assign(ctx, testRC(), d.ID, "manager-1")
	require.NoError(t, err)
	_, err = wf.Resolve(ctx, testRC(), d.ID, commission.ResolutionRecalculation, money("250"), "recalculate with the missing sale")
	require.NoError(t, err)
	_, err = wf.Close(ctx, testRC(), d.ID)
	require.NoError(t, err)

	after, err := mem.GetCalculation(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Equal(t, commission.StatusCalculated, after.Status)

	_, err = engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err, "released run may be recalculated")
}

func TestDispute_Close_KeepsRunParkedWhileOthersOpen(t *testing.T) {
	// GIVEN: Two disputes against one run
	// WHEN: Closing only the first
	// THEN: The run stays disputed until the second closes too

	engine, mem := newTestEngine()
	ctx := context.Background()
	calc := calculatedRun(t, engine, mem)

	wf := newDisputeWorkflow(mem)
	d1, err := wf.Submit(ctx, testRC(), calc.ID, money("750"), "first")
	require.NoError(t, err)
	d2, err := wf.Submit(ctx, testRC(), calc.ID, money("800"), "second")
	require.NoError(t, err)

	closeDispute := func(id commission.DisputeID) {
		_, err := wf.Assign(ctx, testRC(), id, "manager-1")
		require.NoError(t, err)
		_, err = wf.Reject(ctx, testRC(), id, "not substantiated")
		require.NoError(t, err)
		_, err = wf.Close(ctx, testRC(), id)
		require.NoError(t, err)
	}

	closeDispute(d1.ID)
	after, err := mem.GetCalculation(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Equal(t, commission.StatusDisputed, after.Status, "second dispute still open")

	closeDispute(d2.ID)
	after, err = mem.GetCalculation(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Equal(t, commission.StatusCalculated, after.Status)
}
