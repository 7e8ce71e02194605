/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates plans, assignments
	and sales transactions that demonstrate specific features, then runs
	the engine so the result is immediately inspectable.

AVAILABLE SCENARIOS:

	flat-sales-rep:  Flat per-category plan, one month of sales
	tiered-quota:    Tier brackets + quota bonus, high-volume month
	split-sale:      One sale split across two reps
	dispute-flow:    Calculated run with an open dispute

HOW SCENARIOS WORK:
 1. Each scenario seeds its own demo tenant ("demo-<scenario>"), so
    loading one never disturbs real tenants and reloading is idempotent
    (plans and assignments upsert; the calculation replaces itself).
 2. Create plans via factory presets
 3. Assign plans to demo employees
 4. Record sales transactions
 5. Run the engine for the demo period

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "tiered-quota"}

	The response names the demo tenant; follow-up requests use it as
	X-Tenant-ID to explore the seeded data.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/plan.go: Plan JSON presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dealerpoint/commission-engine/commission"
	"github.com/dealerpoint/commission-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "flat-sales-rep",
		Name:        "Flat Sales Rep",
		Description: "Per-category flat rates over one month of dealership sales",
	},
	{
		ID:          "tiered-quota",
		Name:        "Tiered Plan with Quota",
		Description: "Tier brackets over total sales, quota target and threshold bonus",
	},
	{
		ID:          "split-sale",
		Name:        "Split Commission",
		Description: "One invoice credited 60/40 across two reps",
	},
	{
		ID:          "dispute-flow",
		Name:        "Dispute Workflow",
		Description: "A calculated run contested and parked in the dispute pipeline",
	},
}

// demoPeriod is the fixed month every scenario calculates.
func demoPeriod() (commission.Period, string) {
	return commission.MonthPeriod(2026, time.March), "2026-03"
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario into its demo tenant.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	rc := commission.RequestContext{
		TenantID: commission.TenantID("demo-" + req.ScenarioID),
		ActorID:  "scenario-loader",
	}

	var (
		calc *commission.Calculation
		err  error
	)
	switch req.ScenarioID {
	case "flat-sales-rep":
		calc, err = h.loadFlatSalesRep(ctx, rc)
	case "tiered-quota":
		calc, err = h.loadTieredQuota(ctx, rc)
	case "split-sale":
		calc, err = h.loadSplitSale(ctx, rc)
	case "dispute-flow":
		calc, err = h.loadDisputeFlow(ctx, rc)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario_id":    req.ScenarioID,
		"tenant_id":      string(rc.TenantID),
		"calculation_id": string(calc.ID),
		"employee_id":    string(calc.EmployeeID),
		"net_commission": calc.NetCommission.String(),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadFlatSalesRep seeds a rep on flat per-category rates selling a
// mix of equipment and contracts.
func (h *Handler) loadFlatSalesRep(ctx context.Context, rc commission.RequestContext) (*commission.Calculation, error) {
	plan, err := h.PlanFactory.ParsePlan(factory.StandardFlatPlanJSON("demo-flat-plan", string(rc.TenantID)))
	if err != nil {
		return nil, err
	}
	if err := h.Store.SavePlan(ctx, plan); err != nil {
		return nil, err
	}

	employee := commission.EmployeeID("rep-alice")
	if err := h.seedAssignment(ctx, rc, "demo-flat-assign", employee, plan.ID, nil); err != nil {
		return nil, err
	}

	sales := []demoSale{
		{"inv-1001", commission.SourceInvoice, "2026-03-03", commission.CategoryNewEquipment, "10000"},
		{"inv-1002", commission.SourceInvoice, "2026-03-10", commission.CategoryUsedEquipment, "4500"},
		{"ctr-2001", commission.SourceContract, "2026-03-14", commission.CategoryServiceContracts, "1200"},
		{"inv-1003", commission.SourceInvoice, "2026-03-22", commission.CategorySupplies, "800"},
	}
	if err := h.seedSales(ctx, rc, employee, sales); err != nil {
		return nil, err
	}

	period, name := demoPeriod()
	return h.Engine.Calculate(ctx, rc, employee, period, name)
}

// loadTieredQuota seeds a high-volume month that lands in the top tier
// and clears both the tier threshold bonus and the quota.
func (h *Handler) loadTieredQuota(ctx context.Context, rc commission.RequestContext) (*commission.Calculation, error) {
	plan, err := h.PlanFactory.ParsePlan(factory.TieredSalesPlanJSON("demo-tiered-plan", string(rc.TenantID)))
	if err != nil {
		return nil, err
	}
	if err := h.Store.SavePlan(ctx, plan); err != nil {
		return nil, err
	}

	employee := commission.EmployeeID("rep-bob")
	quota := commission.MustMoney("120000")
	if err := h.seedAssignment(ctx, rc, "demo-tiered-assign", employee, plan.ID, &quota); err != nil {
		return nil, err
	}

	sales := []demoSale{
		{"inv-2001", commission.SourceInvoice, "2026-03-02", commission.CategoryNewEquipment, "85000"},
		{"inv-2002", commission.SourceInvoice, "2026-03-12", commission.CategoryNewEquipment, "52000"},
		{"inv-2003", commission.SourceInvoice, "2026-03-25", commission.CategoryUsedEquipment, "21000"},
	}
	if err := h.seedSales(ctx, rc, employee, sales); err != nil {
		return nil, err
	}

	period, name := demoPeriod()
	return h.Engine.Calculate(ctx, rc, employee, period, name)
}

// loadSplitSale seeds one invoice credited 60/40 across two reps and
// calculates the primary rep's side.
func (h *Handler) loadSplitSale(ctx context.Context, rc commission.RequestContext) (*commission.Calculation, error) {
	plan, err := h.PlanFactory.ParsePlan(factory.StandardFlatPlanJSON("demo-split-plan", string(rc.TenantID)))
	if err != nil {
		return nil, err
	}
	if err := h.Store.SavePlan(ctx, plan); err != nil {
		return nil, err
	}

	primary := commission.EmployeeID("rep-carol")
	secondary := commission.EmployeeID("rep-dave")
	if err := h.seedAssignment(ctx, rc, "demo-split-assign-1", primary, plan.ID, nil); err != nil {
		return nil, err
	}
	if err := h.seedAssignment(ctx, rc, "demo-split-assign-2", secondary, plan.ID, nil); err != nil {
		return nil, err
	}

	source := commission.SourceRef{Type: commission.SourceInvoice, ID: "inv-3001"}
	date, _ := commission.ParseDate("2026-03-09")
	sale := commission.MustMoney("30000")

	rows := []commission.SalesTransaction{
		{
			ID: "split-3001-a", TenantID: rc.TenantID, EmployeeID: primary, Source: source,
			TransactionDate: date, Category: commission.CategoryNewEquipment,
			SaleAmount: sale, CommissionableAmount: commission.MustMoney("18000"),
			IsSplit: true, SplitPercent: commission.MustMoney("60"),
		},
		{
			ID: "split-3001-b", TenantID: rc.TenantID, EmployeeID: secondary, Source: source,
			TransactionDate: date, Category: commission.CategoryNewEquipment,
			SaleAmount: sale, CommissionableAmount: commission.MustMoney("12000"),
			IsSplit: true, SplitPercent: commission.MustMoney("40"), PrimaryEmployeeID: primary,
		},
	}
	for _, tx := range rows {
		if err := h.Store.SaveTransaction(ctx, tx); err != nil {
			return nil, err
		}
	}

	period, name := demoPeriod()
	return h.Engine.Calculate(ctx, rc, primary, period, name)
}

// loadDisputeFlow calculates a run and submits a dispute against it,
// leaving the calculation parked in 'disputed'.
func (h *Handler) loadDisputeFlow(ctx context.Context, rc commission.RequestContext) (*commission.Calculation, error) {
	calc, err := h.loadFlatSalesRep(ctx, rc)
	if err != nil {
		return nil, err
	}

	expected := calc.NetCommission.Add(commission.MustMoney("250"))
	if _, err := h.Disputes.Submit(ctx, rc, calc.ID, expected, "missing a service contract sale"); err != nil {
		return nil, err
	}
	return h.Store.GetCalculation(ctx, rc.TenantID, calc.ID)
}

// =============================================================================
// SEED HELPERS
// =============================================================================

type demoSale struct {
	id       string
	source   commission.SourceType
	date     string
	category commission.ProductCategory
	amount   string
}

func (h *Handler) seedAssignment(ctx context.Context, rc commission.RequestContext, id string, employee commission.EmployeeID, planID commission.PlanID, quota *commission.Money) error {
	from, _ := commission.ParseDate("2026-01-01")
	return h.Store.SaveAssignment(ctx, commission.Assignment{
		ID:            commission.AssignmentID(id),
		TenantID:      rc.TenantID,
		EmployeeID:    employee,
		PlanID:        planID,
		EffectiveFrom: from,
		QuotaTarget:   quota,
	})
}

func (h *Handler) seedSales(ctx context.Context, rc commission.RequestContext, employee commission.EmployeeID, sales []demoSale) error {
	for _, s := range sales {
		date, err := commission.ParseDate(s.date)
		if err != nil {
			return err
		}
		amount := commission.MustMoney(s.amount)
		tx := commission.SalesTransaction{
			ID:                   commission.TransactionID(s.id),
			TenantID:             rc.TenantID,
			EmployeeID:           employee,
			Source:               commission.SourceRef{Type: s.source, ID: s.id},
			TransactionDate:      date,
			Category:             s.category,
			SaleAmount:           amount,
			CommissionableAmount: amount,
		}
		if err := h.Store.SaveTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
