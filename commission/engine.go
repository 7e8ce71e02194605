/*
engine.go - The commission calculation engine

PURPOSE:
  Turns an employee's sales for a period into a Calculation with
  per-category detail rows, evaluated bonuses and netted adjustments.

ALGORITHM (Calculate):
  1. Resolve the active plan assignment (exactly one, or fail)
  2. Collect unprocessed transactions in the period, group by category
  3. Apply rates: flat mode multiplies each category's sales by its
     rate; tiered mode locates the single bracket containing total
     sales and applies its rate across every category. The two modes
     are mutually exclusive, selected by Plan.Mode.
  4. Sum category commissions -> GrossCommission; one Detail per category
  5. Evaluate bonus rules (plan rules + tier threshold bonuses) against
     total sales and quota achievement; record rows met or not
  6. Net approved, not-yet-applied adjustments into TotalAdjustments
  7. NetCommission = Gross + Bonuses + Adjustments
  8. Persist as 'calculated'; flag NeedsReview below the plan minimum

IDEMPOTENCE:
  Re-running for the same employee/period replaces draft/calculated
  rows (same calculation ID, details and bonuses rewritten). Runs in
  approved/paid/disputed state fail with AlreadyFinalizedError.

SEE ALSO:
  - assignment.go: Resolver
  - transaction.go: Collector
  - settlement.go: approve/pay transitions
*/
package commission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes commission calculations.
type Engine struct {
	Store     Store
	Resolver  *Resolver
	Collector *Collector
	Notifier  Notifier
	Now       func() time.Time
}

// NewEngine wires an engine over a store with default collaborators.
func NewEngine(store Store, notifier Notifier) *Engine {
	return &Engine{
		Store:     store,
		Resolver:  &Resolver{Assignments: store},
		Collector: &Collector{Transactions: store},
		Notifier:  notifier,
		Now:       time.Now,
	}
}

// Calculate runs the engine for one employee and period.
func (e *Engine) Calculate(ctx context.Context, rc RequestContext, employeeID EmployeeID, period Period, periodName string) (*Calculation, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("invalid calculation period %s", period)
	}

	// Re-runs replace draft/calculated rows and keep their ID; anything
	// further along is immutable here.
	existing, err := e.Store.FindCalculation(ctx, rc.TenantID, employeeID, period)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Status.Replaceable() {
		return nil, &AlreadyFinalizedError{CalculationID: existing.ID, Status: existing.Status}
	}

	// 1. Resolve the plan in effect at period end.
	assignment, err := e.Resolver.Resolve(ctx, rc, employeeID, period.End)
	if err != nil {
		return nil, err
	}
	plan, err := e.Store.GetPlan(ctx, rc.TenantID, assignment.PlanID)
	if err != nil {
		return nil, err
	}
	if err := rc.CheckTenant(plan.TenantID, "plan", string(plan.ID)); err != nil {
		return nil, err
	}

	// 2. Collect and group transactions.
	collection, err := e.Collector.Collect(ctx, rc, employeeID, period)
	if err != nil {
		return nil, err
	}
	totalSales := collection.TotalCommissionable()
	byCategory := collection.ByCategory()

	now := e.Now()
	calc := &Calculation{
		ID:         CalculationID(uuid.NewString()),
		TenantID:   rc.TenantID,
		EmployeeID: employeeID,
		PlanID:     plan.ID,
		Period:     period,
		PeriodName: periodName,
		TotalSales: totalSales,
		Status:     StatusCalculated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing != nil {
		calc.ID = existing.ID
		calc.CreatedAt = existing.CreatedAt
	}

	if assignment.QuotaTarget != nil {
		qt := *assignment.QuotaTarget
		calc.QuotaTarget = &qt
		calc.QuotaAchievement = PercentOf(totalSales, qt)
	}

	// 3-4. Rates and details.
	details, txAmounts, err := e.applyRates(plan, assignment, calc, collection, byCategory)
	if err != nil {
		return nil, err
	}
	gross := Zero()
	for _, d := range details {
		gross = gross.Add(d.CommissionAmount)
	}
	calc.GrossCommission = gross

	// 5. Bonuses.
	bonuses := e.evaluateBonuses(plan, calc)
	totalBonuses := Zero()
	for _, b := range bonuses {
		if b.EligibilityMet {
			totalBonuses = totalBonuses.Add(b.Amount)
		}
	}
	calc.TotalBonuses = totalBonuses

	// 6. Approved adjustments: everything already attached to this run
	// plus standalone rows in the window, so re-runs recompute the same
	// total rather than dropping previously applied amounts.
	adjustments, err := e.Store.ListAttachedAdjustments(ctx, rc.TenantID, employeeID, period, calc.ID)
	if err != nil {
		return nil, err
	}
	totalAdjustments := Zero()
	adjustmentIDs := make([]AdjustmentID, 0, len(adjustments))
	for _, a := range adjustments {
		totalAdjustments = totalAdjustments.Add(a.Amount)
		adjustmentIDs = append(adjustmentIDs, a.ID)
	}
	calc.TotalAdjustments = totalAdjustments

	// 7. Net.
	calc.NetCommission = gross.Add(totalBonuses).Add(totalAdjustments)
	calc.NeedsReview = calc.NetCommission.LessThan(plan.MinimumPayment)

	// 8. Persist and stamp transactions.
	if err := e.Store.ReplaceCalculation(ctx, calc, details, bonuses); err != nil {
		return nil, err
	}
	if err := e.Store.MarkApplied(ctx, rc.TenantID, adjustmentIDs, calc.ID); err != nil {
		return nil, err
	}
	if err := e.Store.UnlinkCalculation(ctx, rc.TenantID, calc.ID); err != nil {
		return nil, err
	}
	if err := e.Store.LinkToCalculation(ctx, rc.TenantID, calc.ID, txAmounts); err != nil {
		return nil, err
	}

	if e.Notifier != nil {
		e.Notifier.Publish(ctx, Event{
			Type:     EventCalculationCompleted,
			TenantID: rc.TenantID,
			ActorID:  rc.ActorID,
			Subject:  string(calc.ID),
			Detail:   fmt.Sprintf("calculation for %s %s: net %s", employeeID, periodName, calc.NetCommission),
			At:       now,
		})
	}
	return calc, nil
}

// applyRates produces the per-category detail rows and the per-
// transaction commission shares to stamp back onto the rows.
func (e *Engine) applyRates(plan *Plan, assignment *Assignment, calc *Calculation, collection *Collection, byCategory map[ProductCategory]Money) ([]Detail, map[TransactionID]Money, error) {
	categories := make([]ProductCategory, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	rateFor := func(category ProductCategory) (Rate, int, bool) {
		switch plan.Mode {
		case ModeTiered:
			tier, ok := plan.TierFor(calc.TotalSales)
			if !ok {
				return Rate{}, 0, false
			}
			return tier.Rate, tier.Level, true
		default:
			rate, ok := plan.RateFor(category, assignment.CustomRates)
			return rate, 0, ok
		}
	}

	var details []Detail
	rates := make(map[ProductCategory]Rate)
	for _, category := range categories {
		rate, tierLevel, ok := rateFor(category)
		if !ok {
			// Flat plans simply pay nothing on categories they don't
			// cover; a tiered ladder failing to cover total sales is a
			// broken plan that validation should have caught.
			if plan.Mode == ModeTiered {
				return nil, nil, &PlanValidationError{PlanID: plan.ID,
					Reason: fmt.Sprintf("no tier covers total sales %s", calc.TotalSales)}
			}
			continue
		}
		sales := byCategory[category]
		rates[category] = rate
		details = append(details, Detail{
			CalculationID:    calc.ID,
			Category:         category,
			SalesAmount:      sales,
			Rate:             rate,
			CommissionAmount: ApplyRate(sales, rate),
			TierLevel:        tierLevel,
		})
	}

	txAmounts := make(map[TransactionID]Money, len(collection.Commissionable))
	for _, tx := range collection.Commissionable {
		rate, ok := rates[tx.Category]
		if !ok {
			continue
		}
		txAmounts[tx.ID] = ApplyRate(tx.CommissionableAmount, rate)
	}
	return details, txAmounts, nil
}

// evaluateBonuses runs the plan's bonus rules plus any tier threshold
// bonuses. Rows are recorded whether or not eligibility was met.
func (e *Engine) evaluateBonuses(plan *Plan, calc *Calculation) []Bonus {
	var bonuses []Bonus

	for _, rule := range plan.BonusRules {
		amount, met := rule.Evaluate(calc.TotalSales, calc.QuotaAchievement)
		bonuses = append(bonuses, Bonus{
			CalculationID:  calc.ID,
			Kind:           rule.Kind(),
			Criteria:       rule.Describe(),
			Amount:         amount,
			EligibilityMet: met,
		})
	}

	if plan.Mode == ModeTiered {
		for _, tier := range plan.Tiers {
			if tier.BonusThreshold == nil || tier.BonusAmount == nil {
				continue
			}
			bonuses = append(bonuses, Bonus{
				CalculationID: calc.ID,
				Kind:          BonusTierKind,
				Criteria: fmt.Sprintf(`{"kind":"tier","level":%d,"threshold":"%s","amount":"%s"}`,
					tier.Level, tier.BonusThreshold, tier.BonusAmount),
				Amount:         *tier.BonusAmount,
				EligibilityMet: calc.TotalSales.GreaterThanOrEqual(*tier.BonusThreshold),
			})
		}
	}
	return bonuses
}

// =============================================================================
// POST-FINALIZATION ADJUSTMENTS
// =============================================================================

// ApplyApprovedAdjustments folds newly approved, unapplied adjustments
// into an existing calculation's totals. This is the one sanctioned
// mutation of an approved or paid calculation: the base amounts are
// untouched, only TotalAdjustments and NetCommission move.
func (e *Engine) ApplyApprovedAdjustments(ctx context.Context, rc RequestContext, calcID CalculationID) (*Calculation, error) {
	calc, err := e.Store.GetCalculation(ctx, rc.TenantID, calcID)
	if err != nil {
		return nil, err
	}
	if err := rc.CheckTenant(calc.TenantID, "calculation", string(calc.ID)); err != nil {
		return nil, err
	}

	adjustments, err := e.Store.ListApprovedUnapplied(ctx, rc.TenantID, calc.EmployeeID, calc.Period, calc.ID)
	if err != nil {
		return nil, err
	}
	if len(adjustments) == 0 {
		return calc, nil
	}

	delta := Zero()
	ids := make([]AdjustmentID, 0, len(adjustments))
	for _, a := range adjustments {
		delta = delta.Add(a.Amount)
		ids = append(ids, a.ID)
	}

	calc.TotalAdjustments = calc.TotalAdjustments.Add(delta)
	calc.NetCommission = calc.NetCommission.Add(delta)

	if err := e.Store.UpdateTotals(ctx, rc.TenantID, calc.ID, calc.TotalAdjustments, calc.NetCommission); err != nil {
		return nil, err
	}
	if err := e.Store.MarkApplied(ctx, rc.TenantID, ids, calc.ID); err != nil {
		return nil, err
	}
	return calc, nil
}
