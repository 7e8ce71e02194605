package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dealerpoint/commission-engine/commission"
	"github.com/dealerpoint/commission-engine/commission/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared by the other _test.go files in this package.

const testTenant = commission.TenantID("acme")

func testRC() commission.RequestContext {
	return commission.RequestContext{TenantID: testTenant, ActorID: "tester"}
}

func newTestEngine() (*commission.Engine, *store.Memory) {
	mem := store.NewMemory()
	return commission.NewEngine(mem, commission.NopNotifier{}), mem
}

func march2026() commission.Period {
	return commission.MonthPeriod(2026, time.March)
}

func money(s string) commission.Money {
	return commission.MustMoney(s)
}

func date(s string) commission.Date {
	d, err := commission.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// assertMoney compares decimal values, not representations.
func assertMoney(t *testing.T, want string, got commission.Money, msg string) {
	t.Helper()
	if !got.Equal(money(want)) {
		t.Errorf("%s: expected %s, got %s", msg, want, got)
	}
}

func flatPlan(id string) *commission.Plan {
	return &commission.Plan{
		ID:               commission.PlanID(id),
		TenantID:         testTenant,
		Name:             "Standard Sales Rep",
		PlanType:         commission.PlanSalesRep,
		Mode:             commission.ModeFlat,
		PaymentFrequency: commission.PayMonthly,
		EffectiveDate:    date("2026-01-01"),
		ProductRates: []commission.ProductRate{
			{Category: commission.CategoryNewEquipment, Rate: money("5")},
			{Category: commission.CategoryUsedEquipment, Rate: money("4")},
			{Category: commission.CategoryServiceContracts, Rate: money("10")},
		},
	}
}

func tieredPlan(id string) *commission.Plan {
	max1 := money("50000")
	max2 := money("100000")
	threshold := money("150000")
	bonus := money("1000")
	return &commission.Plan{
		ID:               commission.PlanID(id),
		TenantID:         testTenant,
		Name:             "Tiered Sales",
		PlanType:         commission.PlanFieldSales,
		Mode:             commission.ModeTiered,
		PaymentFrequency: commission.PayMonthly,
		EffectiveDate:    date("2026-01-01"),
		Tiers: []commission.Tier{
			{Level: 1, MinSales: money("0"), MaxSales: &max1, Rate: money("3")},
			{Level: 2, MinSales: money("50000"), MaxSales: &max2, Rate: money("5")},
			{Level: 3, MinSales: money("100000"), Rate: money("7"),
				BonusThreshold: &threshold, BonusAmount: &bonus},
		},
	}
}

func seedPlan(t *testing.T, s *store.Memory, plan *commission.Plan) {
	t.Helper()
	require.NoError(t, s.SavePlan(context.Background(), plan))
}

func seedAssignment(t *testing.T, s *store.Memory, id string, employee commission.EmployeeID, planID commission.PlanID) {
	t.Helper()
	require.NoError(t, s.SaveAssignment(context.Background(), commission.Assignment{
		ID:            commission.AssignmentID(id),
		TenantID:      testTenant,
		EmployeeID:    employee,
		PlanID:        planID,
		EffectiveFrom: date("2026-01-01"),
	}))
}

func seedSale(t *testing.T, s *store.Memory, id string, employee commission.EmployeeID, day string, category commission.ProductCategory, amount string) {
	t.Helper()
	require.NoError(t, s.SaveTransaction(context.Background(), commission.SalesTransaction{
		ID:                   commission.TransactionID(id),
		TenantID:             testTenant,
		EmployeeID:           employee,
		Source:               commission.SourceRef{Type: commission.SourceInvoice, ID: id},
		TransactionDate:      date(day),
		Category:             category,
		SaleAmount:           money(amount),
		CommissionableAmount: money(amount),
	}))
}

// =============================================================================
// FLAT MODE TESTS
// =============================================================================

func TestCalculate_FlatPlan_SingleCategory(t *testing.T) {
	// GIVEN: A flat plan paying 5% on new equipment, one $10,000 sale
	// WHEN: Calculating the March period
	// THEN: Gross and net commission are $500.00

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "10000", calc.TotalSales, "total sales")
	assertMoney(t, "500", calc.GrossCommission, "gross")
	assertMoney(t, "500", calc.NetCommission, "net")
	require.Equal(t, commission.StatusCalculated, calc.Status)

	details, err := mem.ListDetails(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assertMoney(t, "5", details[0].Rate, "rate")
	assertMoney(t, "500", details[0].CommissionAmount, "detail commission")
}

func TestCalculate_FlatPlan_MultipleCategories(t *testing.T) {
	// GIVEN: Sales in three rated categories
	// WHEN: Calculating
	// THEN: One detail per category and gross equals the sum of details

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-02", commission.CategoryNewEquipment, "10000")  // 500
	seedSale(t, mem, "tx-2", "emp-1", "2026-03-09", commission.CategoryUsedEquipment, "5000")  // 200
	seedSale(t, mem, "tx-3", "emp-1", "2026-03-20", commission.CategoryServiceContracts, "1200") // 120

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	details, err := mem.ListDetails(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Len(t, details, 3)

	sum := commission.Zero()
	for _, d := range details {
		sum = sum.Add(d.CommissionAmount)
	}
	if !sum.Equal(calc.GrossCommission) {
		t.Errorf("gross %s does not equal sum of details %s", calc.GrossCommission, sum)
	}
	assertMoney(t, "820", calc.GrossCommission, "gross")
}

func TestCalculate_FlatPlan_UnratedCategoryPaysNothing(t *testing.T) {
	// GIVEN: A sale in a category the plan does not rate
	// WHEN: Calculating
	// THEN: The sale counts toward total sales but earns no commission

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategorySupplies, "2000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "2000", calc.TotalSales, "total sales")
	assertMoney(t, "0", calc.GrossCommission, "gross")

	details, err := mem.ListDetails(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Empty(t, details)
}

func TestCalculate_CustomRateOverridesPlanRate(t *testing.T) {
	// GIVEN: An assignment carrying a 6% override for new equipment
	// WHEN: Calculating a $10,000 sale
	// THEN: The override wins over the plan's 5%

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	require.NoError(t, mem.SaveAssignment(ctx, commission.Assignment{
		ID:            "as-1",
		TenantID:      testTenant,
		EmployeeID:    "emp-1",
		PlanID:        "plan-1",
		EffectiveFrom: date("2026-01-01"),
		CustomRates: []commission.ProductRate{
			{Category: commission.CategoryNewEquipment, Rate: money("6")},
		},
	}))
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	assertMoney(t, "600", calc.GrossCommission, "gross with override")
}

// =============================================================================
// TIERED MODE TESTS
// =============================================================================

func TestCalculate_TieredPlan_BracketSelection(t *testing.T) {
	// GIVEN: A 3/5/7% ladder and $60,000 of total sales
	// WHEN: Calculating
	// THEN: The whole total earns the middle bracket's 5%, not a blend

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, tieredPlan("plan-t"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-t")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-05", commission.CategoryNewEquipment, "40000")
	seedSale(t, mem, "tx-2", "emp-1", "2026-03-15", commission.CategoryUsedEquipment, "20000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "60000", calc.TotalSales, "total sales")
	assertMoney(t, "3000", calc.GrossCommission, "gross at 5%")

	details, err := mem.ListDetails(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	for _, d := range details {
		require.Equal(t, 2, d.TierLevel, "every category uses the selected bracket")
		assertMoney(t, "5", d.Rate, "bracket rate")
	}
}

func TestCalculate_TieredPlan_BracketBoundary(t *testing.T) {
	// GIVEN: Total sales exactly at a bracket boundary ($50,000)
	// WHEN: Calculating
	// THEN: The upper bracket applies (brackets are [min, max))

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, tieredPlan("plan-t"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-t")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-05", commission.CategoryNewEquipment, "50000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	assertMoney(t, "2500", calc.GrossCommission, "gross at 5%, not 3%")
}

func TestCalculate_TieredPlan_ThresholdBonus(t *testing.T) {
	// GIVEN: The top tier grants $1,000 once sales reach $150,000
	// WHEN: Calculating $160,000 of sales
	// THEN: The bonus is granted and net includes it

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, tieredPlan("plan-t"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-t")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-05", commission.CategoryNewEquipment, "160000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "11200", calc.GrossCommission, "gross at 7%")
	assertMoney(t, "1000", calc.TotalBonuses, "tier bonus")
	assertMoney(t, "12200", calc.NetCommission, "net")

	bonuses, err := mem.ListBonuses(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Len(t, bonuses, 1)
	require.True(t, bonuses[0].EligibilityMet)
	require.Equal(t, commission.BonusTierKind, bonuses[0].Kind)
}

func TestCalculate_TieredPlan_UnmetBonusRecorded(t *testing.T) {
	// GIVEN: Sales below the tier bonus threshold
	// WHEN: Calculating
	// THEN: The bonus row is recorded with eligibility unmet, amount excluded

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, tieredPlan("plan-t"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-t")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-05", commission.CategoryNewEquipment, "120000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "0", calc.TotalBonuses, "no bonus below threshold")
	bonuses, err := mem.ListBonuses(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.Len(t, bonuses, 1)
	require.False(t, bonuses[0].EligibilityMet)
}

// =============================================================================
// QUOTA BONUS TESTS
// =============================================================================

func TestCalculate_QuotaBonus_MetAtExactly100Percent(t *testing.T) {
	// GIVEN: A $500 bonus at 100% quota, target $10,000, sales $10,000
	// WHEN: Calculating
	// THEN: Achievement is 100% and the bonus is granted

	engine, mem := newTestEngine()
	ctx := context.Background()

	plan := flatPlan("plan-1")
	plan.BonusRules = []commission.BonusRule{
		commission.QuotaBonus{QuotaPct: money("100"), Amount: money("500")},
	}
	seedPlan(t, mem, plan)

	quota := money("10000")
	require.NoError(t, mem.SaveAssignment(ctx, commission.Assignment{
		ID: "as-1", TenantID: testTenant, EmployeeID: "emp-1", PlanID: "plan-1",
		EffectiveFrom: date("2026-01-01"), QuotaTarget: &quota,
	}))
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "100", calc.QuotaAchievement, "achievement pct")
	assertMoney(t, "500", calc.TotalBonuses, "quota bonus")
	assertMoney(t, "1000", calc.NetCommission, "net = 500 gross + 500 bonus")
}

func TestCalculate_QuotaBonus_NotMetWithoutTarget(t *testing.T) {
	// GIVEN: A quota bonus rule but no quota target on the assignment
	// WHEN: Calculating
	// THEN: Achievement stays zero and the bonus is not granted

	engine, mem := newTestEngine()
	ctx := context.Background()

	plan := flatPlan("plan-1")
	plan.BonusRules = []commission.BonusRule{
		commission.QuotaBonus{QuotaPct: money("100"), Amount: money("500")},
	}
	seedPlan(t, mem, plan)
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	assertMoney(t, "0", calc.TotalBonuses, "no quota bonus without a target")
}

// =============================================================================
// IDEMPOTENT RECALCULATION
// =============================================================================

func TestCalculate_Rerun_ReplacesWithSameID(t *testing.T) {
	// GIVEN: A calculated run for March
	// WHEN: A new sale arrives and the period is recalculated
	// THEN: The same calculation row is updated, details rewritten

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	first, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	seedSale(t, mem, "tx-2", "emp-1", "2026-03-20", commission.CategoryNewEquipment, "6000")

	second, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "re-run converges on the same row")
	assertMoney(t, "800", second.GrossCommission, "gross reflects both sales")

	list, err := mem.ListCalculations(ctx, testTenant, "emp-1")
	require.NoError(t, err)
	require.Len(t, list, 1, "one calculation per employee and period")
}

func TestCalculate_ApprovedRun_CannotBeRecalculated(t *testing.T) {
	// GIVEN: An approved March run
	// WHEN: Recalculating the same period
	// THEN: AlreadyFinalizedError, the approved run untouched

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	settlement := commission.NewSettlement(mem, commission.NopNotifier{})
	_, err = settlement.Approve(ctx, testRC(), calc.ID)
	require.NoError(t, err)

	_, err = engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	var finalized *commission.AlreadyFinalizedError
	require.ErrorAs(t, err, &finalized)
	require.Equal(t, commission.StatusApproved, finalized.Status)

	after, err := mem.GetCalculation(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	assertMoney(t, "500", after.NetCommission, "approved amounts unchanged")
}

// =============================================================================
// ASSIGNMENT RESOLUTION FAILURES
// =============================================================================

func TestCalculate_NoAssignment_Fails(t *testing.T) {
	// GIVEN: An employee with no plan assignment
	// WHEN: Calculating
	// THEN: NoActivePlanError; nothing is persisted

	engine, mem := newTestEngine()
	ctx := context.Background()

	_, err := engine.Calculate(ctx, testRC(), "emp-none", march2026(), "2026-03")
	require.ErrorIs(t, err, commission.ErrNoActivePlan)

	list, err := mem.ListCalculations(ctx, testTenant, "emp-none")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCalculate_OverlappingAssignments_Fails(t *testing.T) {
	// GIVEN: Two assignments covering the period end
	// WHEN: Calculating
	// THEN: AmbiguousAssignmentError naming both assignments, no tie-break

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedPlan(t, mem, flatPlan("plan-2"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedAssignment(t, mem, "as-2", "emp-1", "plan-2")

	_, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")

	var ambiguous *commission.AmbiguousAssignmentError
	require.ErrorAs(t, err, &ambiguous)
	require.Len(t, ambiguous.AssignmentIDs, 2)
}

// =============================================================================
// COLLECTION EDGE CASES
// =============================================================================

func TestCalculate_ChargebackExcludedFromGross(t *testing.T) {
	// GIVEN: One normal sale and one charged-back sale
	// WHEN: Calculating
	// THEN: Only the normal sale earns commission

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")
	require.NoError(t, mem.SaveTransaction(ctx, commission.SalesTransaction{
		ID: "tx-cb", TenantID: testTenant, EmployeeID: "emp-1",
		Source:          commission.SourceRef{Type: commission.SourceInvoice, ID: "tx-cb"},
		TransactionDate: date("2026-03-12"), Category: commission.CategoryNewEquipment,
		SaleAmount: money("8000"), CommissionableAmount: money("8000"),
		IsChargedBack: true,
	}))

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	assertMoney(t, "10000", calc.TotalSales, "chargeback excluded")
	assertMoney(t, "500", calc.GrossCommission, "gross")
}

func TestCalculate_SplitOverAllocation_Fails(t *testing.T) {
	// GIVEN: Split rows for one sale summing to 110%
	// WHEN: Calculating
	// THEN: SplitOverAllocationError; the run does not persist

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")

	source := commission.SourceRef{Type: commission.SourceInvoice, ID: "inv-9"}
	require.NoError(t, mem.SaveTransaction(ctx, commission.SalesTransaction{
		ID: "tx-a", TenantID: testTenant, EmployeeID: "emp-1", Source: source,
		TransactionDate: date("2026-03-10"), Category: commission.CategoryNewEquipment,
		SaleAmount: money("10000"), CommissionableAmount: money("7000"),
		IsSplit: true, SplitPercent: money("70"),
	}))
	require.NoError(t, mem.SaveTransaction(ctx, commission.SalesTransaction{
		ID: "tx-b", TenantID: testTenant, EmployeeID: "emp-2", Source: source,
		TransactionDate: date("2026-03-10"), Category: commission.CategoryNewEquipment,
		SaleAmount: money("10000"), CommissionableAmount: money("4000"),
		IsSplit: true, SplitPercent: money("40"), PrimaryEmployeeID: "emp-1",
	}))

	_, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.ErrorIs(t, err, commission.ErrSplitOverAllocation)
}

func TestCalculate_SplitSale_EachSideEarnsOwnShare(t *testing.T) {
	// GIVEN: A $30,000 sale split 60/40 between two reps
	// WHEN: Calculating each rep
	// THEN: Commission follows each rep's commissionable share

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedAssignment(t, mem, "as-2", "emp-2", "plan-1")

	source := commission.SourceRef{Type: commission.SourceInvoice, ID: "inv-5"}
	require.NoError(t, mem.SaveTransaction(ctx, commission.SalesTransaction{
		ID: "tx-a", TenantID: testTenant, EmployeeID: "emp-1", Source: source,
		TransactionDate: date("2026-03-10"), Category: commission.CategoryNewEquipment,
		SaleAmount: money("30000"), CommissionableAmount: money("18000"),
		IsSplit: true, SplitPercent: money("60"),
	}))
	require.NoError(t, mem.SaveTransaction(ctx, commission.SalesTransaction{
		ID: "tx-b", TenantID: testTenant, EmployeeID: "emp-2", Source: source,
		TransactionDate: date("2026-03-10"), Category: commission.CategoryNewEquipment,
		SaleAmount: money("30000"), CommissionableAmount: money("12000"),
		IsSplit: true, SplitPercent: money("40"), PrimaryEmployeeID: "emp-1",
	}))

	primary, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	secondary, err := engine.Calculate(ctx, testRC(), "emp-2", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "900", primary.GrossCommission, "primary 60% share at 5%")
	assertMoney(t, "600", secondary.GrossCommission, "secondary 40% share at 5%")
}

// =============================================================================
// ADJUSTMENT NETTING
// =============================================================================

func TestCalculate_ApprovedAdjustmentNetted(t *testing.T) {
	// GIVEN: A -$200 approved chargeback adjustment in the period window
	// WHEN: Calculating
	// THEN: Net = gross + adjustment; the adjustment is marked applied

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	require.NoError(t, mem.SaveAdjustment(ctx, commission.Adjustment{
		ID: "adj-1", TenantID: testTenant, EmployeeID: "emp-1",
		Type: commission.AdjustChargeback, Amount: money("-200"),
		EffectiveDate: date("2026-03-15"), Status: commission.AdjustmentApproved,
	}))

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "-200", calc.TotalAdjustments, "adjustments")
	assertMoney(t, "300", calc.NetCommission, "net = 500 - 200")

	adj, err := mem.GetAdjustment(ctx, testTenant, "adj-1")
	require.NoError(t, err)
	require.True(t, adj.Applied)
	require.NotNil(t, adj.CalculationID)
	require.Equal(t, calc.ID, *adj.CalculationID)
}

func TestCalculate_PendingAdjustmentIgnored(t *testing.T) {
	// GIVEN: A pending adjustment in the window
	// WHEN: Calculating
	// THEN: It is not netted

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	require.NoError(t, mem.SaveAdjustment(ctx, commission.Adjustment{
		ID: "adj-1", TenantID: testTenant, EmployeeID: "emp-1",
		Type: commission.AdjustPenalty, Amount: money("-100"),
		EffectiveDate: date("2026-03-15"), Status: commission.AdjustmentPending,
	}))

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	assertMoney(t, "0", calc.TotalAdjustments, "pending not netted")
	assertMoney(t, "500", calc.NetCommission, "net")
}

func TestCalculate_Rerun_KeepsAppliedAdjustment(t *testing.T) {
	// GIVEN: A run that already netted an approved adjustment
	// WHEN: Recalculating the same period
	// THEN: The adjustment still counts exactly once

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")
	require.NoError(t, mem.SaveAdjustment(ctx, commission.Adjustment{
		ID: "adj-1", TenantID: testTenant, EmployeeID: "emp-1",
		Type: commission.AdjustChargeback, Amount: money("-200"),
		EffectiveDate: date("2026-03-15"), Status: commission.AdjustmentApproved,
	}))

	_, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	second, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)
	assertMoney(t, "-200", second.TotalAdjustments, "adjustment counted once on re-run")
	assertMoney(t, "300", second.NetCommission, "net stable")
}

func TestApplyApprovedAdjustments_AfterApproval(t *testing.T) {
	// GIVEN: An approved run and a late-arriving approved adjustment
	// WHEN: Applying approved adjustments
	// THEN: Only totals and net move; a second apply is a no-op

	engine, mem := newTestEngine()
	ctx := context.Background()

	seedPlan(t, mem, flatPlan("plan-1"))
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	settlement := commission.NewSettlement(mem, commission.NopNotifier{})
	_, err = settlement.Approve(ctx, testRC(), calc.ID)
	require.NoError(t, err)

	require.NoError(t, mem.SaveAdjustment(ctx, commission.Adjustment{
		ID: "adj-late", TenantID: testTenant, EmployeeID: "emp-1",
		Type: commission.AdjustCorrection, Amount: money("150"),
		EffectiveDate: date("2026-03-20"), Status: commission.AdjustmentApproved,
	}))

	updated, err := engine.ApplyApprovedAdjustments(ctx, testRC(), calc.ID)
	require.NoError(t, err)
	assertMoney(t, "150", updated.TotalAdjustments, "adjustments")
	assertMoney(t, "650", updated.NetCommission, "net moved by delta")
	assertMoney(t, "500", updated.GrossCommission, "gross untouched")

	again, err := engine.ApplyApprovedAdjustments(ctx, testRC(), calc.ID)
	require.NoError(t, err)
	assertMoney(t, "650", again.NetCommission, "second apply changes nothing")
}

// =============================================================================
// REVIEW FLAG AND INVARIANTS
// =============================================================================

func TestCalculate_BelowMinimumPayment_FlagsReview(t *testing.T) {
	// GIVEN: A plan with a $100 minimum payment and a tiny sale
	// WHEN: Calculating
	// THEN: The run persists with NeedsReview set, never suppressed

	engine, mem := newTestEngine()
	ctx := context.Background()

	plan := flatPlan("plan-1")
	plan.MinimumPayment = money("100")
	seedPlan(t, mem, plan)
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "500")

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	assertMoney(t, "25", calc.NetCommission, "net")
	require.True(t, calc.NeedsReview)

	stored, err := mem.GetCalculation(ctx, testTenant, calc.ID)
	require.NoError(t, err)
	require.True(t, stored.NeedsReview)
}

func TestCalculate_NetInvariantHolds(t *testing.T) {
	// GIVEN: A run with gross, bonuses and adjustments all non-zero
	// WHEN: Calculating
	// THEN: Net = Gross + TotalBonuses + TotalAdjustments

	engine, mem := newTestEngine()
	ctx := context.Background()

	plan := flatPlan("plan-1")
	plan.BonusRules = []commission.BonusRule{
		commission.ThresholdBonus{Threshold: money("5000"), Amount: money("250")},
	}
	seedPlan(t, mem, plan)
	seedAssignment(t, mem, "as-1", "emp-1", "plan-1")
	seedSale(t, mem, "tx-1", "emp-1", "2026-03-10", commission.CategoryNewEquipment, "10000")
	require.NoError(t, mem.SaveAdjustment(ctx, commission.Adjustment{
		ID: "adj-1", TenantID: testTenant, EmployeeID: "emp-1",
		Type: commission.AdjustManual, Amount: money("-50"),
		EffectiveDate: date("2026-03-15"), Status: commission.AdjustmentApproved,
	}))

	calc, err := engine.Calculate(ctx, testRC(), "emp-1", march2026(), "2026-03")
	require.NoError(t, err)

	expected := calc.GrossCommission.Add(calc.TotalBonuses).Add(calc.TotalAdjustments)
	if !calc.NetCommission.Equal(expected) {
		t.Errorf("net %s != gross %s + bonuses %s + adjustments %s",
			calc.NetCommission, calc.GrossCommission, calc.TotalBonuses, calc.TotalAdjustments)
	}
	assertMoney(t, "700", calc.NetCommission, "500 + 250 - 50")
}
