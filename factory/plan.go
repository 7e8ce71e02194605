/*
Package factory provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON plan definitions into commission.Plan objects. This
  enables plan configuration without code changes - a sales ops team
  can define plans in JSON, and the factory creates the proper Go
  structs, validated before use.

WHY JSON?
  - Non-developers can modify plans
  - Easy integration with admin UI
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "id": "sales-rep-standard",
    "tenant_id": "dealer-1",
    "name": "Standard Sales Rep",
    "plan_type": "sales_rep",
    "mode": "flat",
    "payment_frequency": "monthly",
    "minimum_payment": "100",
    "effective_date": "2026-01-01",
    "product_rates": [
      {"category": "new_equipment", "rate": "5"},
      {"category": "used_equipment", "rate": "7"}
    ],
    "bonus_rules": [
      {"kind": "threshold", "threshold": "150000", "amount": "1000"}
    ]
  }

  Tiered plans carry "tiers" instead of "product_rates":
    {"level": 1, "min_sales": "0", "max_sales": "50000", "rate": "3"}
  Omit max_sales on the top tier to leave it unbounded.

USAGE:
  factory := NewPlanFactory()

  // From JSON string
  plan, err := factory.ParsePlan(jsonString)

  // From a preset (recommended for demos and tests)
  jsonStr := StandardFlatPlanJSON("sales-rep-standard", "dealer-1")
  plan, err := factory.ParsePlan(jsonStr)

  // Use in system
  store.SavePlan(ctx, plan)

SEE ALSO:
  - commission/plan.go: Plan type definition and validation
  - api/scenarios.go: Demo scenarios built on the presets
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/dealerpoint/commission-engine/commission"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a commission plan.
type PlanJSON struct {
	ID                   string            `json:"id"`
	TenantID             string            `json:"tenant_id"`
	Name                 string            `json:"name"`
	PlanType             string            `json:"plan_type"`
	Mode                 string            `json:"mode"`
	PaymentFrequency     string            `json:"payment_frequency,omitempty"`
	PaymentDelayDays     int               `json:"payment_delay_days,omitempty"`
	MinimumPayment       string            `json:"minimum_payment,omitempty"`
	SplitAllowed         bool              `json:"split_allowed,omitempty"`
	ChargebackEnabled    bool              `json:"chargeback_enabled,omitempty"`
	ChargebackPeriodDays int               `json:"chargeback_period_days,omitempty"`
	EffectiveDate        string            `json:"effective_date"`
	EndDate              string            `json:"end_date,omitempty"`
	Tiers                []TierJSON        `json:"tiers,omitempty"`
	ProductRates         []ProductRateJSON `json:"product_rates,omitempty"`
	BonusRules           json.RawMessage   `json:"bonus_rules,omitempty"`
}

// TierJSON represents one tier bracket. max_sales omitted = unbounded.
type TierJSON struct {
	Level          int    `json:"level"`
	MinSales       string `json:"min_sales"`
	MaxSales       string `json:"max_sales,omitempty"`
	Rate           string `json:"rate"`
	BonusThreshold string `json:"bonus_threshold,omitempty"`
	BonusAmount    string `json:"bonus_amount,omitempty"`
}

// ProductRateJSON represents a flat per-category rate.
type ProductRateJSON struct {
	Category string `json:"category"`
	Rate     string `json:"rate"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to Go structs.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a validated Plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*commission.Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to a commission.Plan. The result is
// validated; an invalid definition never leaves the factory.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*commission.Plan, error) {
	effective, err := commission.ParseDate(pj.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("plan %s: bad effective_date: %w", pj.ID, err)
	}

	plan := &commission.Plan{
		ID:                   commission.PlanID(pj.ID),
		TenantID:             commission.TenantID(pj.TenantID),
		Name:                 pj.Name,
		PlanType:             commission.PlanType(pj.PlanType),
		Mode:                 commission.CalculationMode(pj.Mode),
		PaymentFrequency:     parsePaymentFrequency(pj.PaymentFrequency),
		PaymentDelayDays:     pj.PaymentDelayDays,
		SplitAllowed:         pj.SplitAllowed,
		ChargebackEnabled:    pj.ChargebackEnabled,
		ChargebackPeriodDays: pj.ChargebackPeriodDays,
		EffectiveDate:        effective,
	}

	if pj.MinimumPayment != "" {
		minimum, err := commission.ParseMoney(pj.MinimumPayment)
		if err != nil {
			return nil, fmt.Errorf("plan %s: bad minimum_payment: %w", pj.ID, err)
		}
		plan.MinimumPayment = minimum
	} else {
		plan.MinimumPayment = commission.Zero()
	}

	if pj.EndDate != "" {
		end, err := commission.ParseDate(pj.EndDate)
		if err != nil {
			return nil, fmt.Errorf("plan %s: bad end_date: %w", pj.ID, err)
		}
		plan.EndDate = &end
	}

	for _, tj := range pj.Tiers {
		tier, err := parseTier(tj)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", pj.ID, err)
		}
		plan.Tiers = append(plan.Tiers, tier)
	}

	for _, rj := range pj.ProductRates {
		rate, err := commission.ParseMoney(rj.Rate)
		if err != nil {
			return nil, fmt.Errorf("plan %s: bad rate for %s: %w", pj.ID, rj.Category, err)
		}
		plan.ProductRates = append(plan.ProductRates, commission.ProductRate{
			Category: commission.ProductCategory(rj.Category),
			Rate:     rate,
		})
	}

	if len(pj.BonusRules) > 0 {
		rules, err := commission.DecodeBonusRules(pj.BonusRules)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", pj.ID, err)
		}
		plan.BonusRules = rules
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// ToJSON converts a Plan back to its JSON representation.
func (f *PlanFactory) ToJSON(plan *commission.Plan) (PlanJSON, error) {
	pj := PlanJSON{
		ID:                   string(plan.ID),
		TenantID:             string(plan.TenantID),
		Name:                 plan.Name,
		PlanType:             string(plan.PlanType),
		Mode:                 string(plan.Mode),
		PaymentFrequency:     string(plan.PaymentFrequency),
		PaymentDelayDays:     plan.PaymentDelayDays,
		MinimumPayment:       plan.MinimumPayment.String(),
		SplitAllowed:         plan.SplitAllowed,
		ChargebackEnabled:    plan.ChargebackEnabled,
		ChargebackPeriodDays: plan.ChargebackPeriodDays,
		EffectiveDate:        plan.EffectiveDate.String(),
	}
	if plan.EndDate != nil {
		pj.EndDate = plan.EndDate.String()
	}

	for _, t := range plan.Tiers {
		tj := TierJSON{
			Level:    t.Level,
			MinSales: t.MinSales.String(),
			Rate:     t.Rate.String(),
		}
		if t.MaxSales != nil {
			tj.MaxSales = t.MaxSales.String()
		}
		if t.BonusThreshold != nil {
			tj.BonusThreshold = t.BonusThreshold.String()
		}
		if t.BonusAmount != nil {
			tj.BonusAmount = t.BonusAmount.String()
		}
		pj.Tiers = append(pj.Tiers, tj)
	}

	for _, pr := range plan.ProductRates {
		pj.ProductRates = append(pj.ProductRates, ProductRateJSON{
			Category: string(pr.Category),
			Rate:     pr.Rate.String(),
		})
	}

	if len(plan.BonusRules) > 0 {
		raw, err := commission.EncodeBonusRules(plan.BonusRules)
		if err != nil {
			return PlanJSON{}, err
		}
		pj.BonusRules = raw
	}
	return pj, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePaymentFrequency(s string) commission.PaymentFrequency {
	switch s {
	case "quarterly":
		return commission.PayQuarterly
	case "annually":
		return commission.PayAnnually
	default:
		return commission.PayMonthly
	}
}

func parseTier(tj TierJSON) (commission.Tier, error) {
	minSales, err := commission.ParseMoney(tj.MinSales)
	if err != nil {
		return commission.Tier{}, fmt.Errorf("tier %d: bad min_sales: %w", tj.Level, err)
	}
	rate, err := commission.ParseMoney(tj.Rate)
	if err != nil {
		return commission.Tier{}, fmt.Errorf("tier %d: bad rate: %w", tj.Level, err)
	}

	tier := commission.Tier{Level: tj.Level, MinSales: minSales, Rate: rate}

	if tj.MaxSales != "" {
		maxSales, err := commission.ParseMoney(tj.MaxSales)
		if err != nil {
			return commission.Tier{}, fmt.Errorf("tier %d: bad max_sales: %w", tj.Level, err)
		}
		tier.MaxSales = &maxSales
	}
	if tj.BonusThreshold != "" {
		threshold, err := commission.ParseMoney(tj.BonusThreshold)
		if err != nil {
			return commission.Tier{}, fmt.Errorf("tier %d: bad bonus_threshold: %w", tj.Level, err)
		}
		tier.BonusThreshold = &threshold
	}
	if tj.BonusAmount != "" {
		amount, err := commission.ParseMoney(tj.BonusAmount)
		if err != nil {
			return commission.Tier{}, fmt.Errorf("tier %d: bad bonus_amount: %w", tj.Level, err)
		}
		tier.BonusAmount = &amount
	}
	return tier, nil
}

// =============================================================================
// PRESET PLANS
// =============================================================================

// StandardFlatPlanJSON is a flat sales rep plan with typical dealership
// rates: higher margin categories pay more.
func StandardFlatPlanJSON(id, tenantID string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"tenant_id": %q,
		"name": "Standard Sales Rep",
		"plan_type": "sales_rep",
		"mode": "flat",
		"payment_frequency": "monthly",
		"minimum_payment": "100",
		"split_allowed": true,
		"chargeback_enabled": true,
		"chargeback_period_days": 90,
		"effective_date": "2026-01-01",
		"product_rates": [
			{"category": "new_equipment", "rate": "5"},
			{"category": "used_equipment", "rate": "7"},
			{"category": "service_contracts", "rate": "10"},
			{"category": "supplies", "rate": "3"},
			{"category": "software", "rate": "8"}
		],
		"bonus_rules": [
			{"kind": "quota", "quota_pct": "100", "amount": "500"}
		]
	}`, id, tenantID)
}

// TieredSalesPlanJSON is a three-bracket ladder over total sales with a
// top-tier threshold bonus.
func TieredSalesPlanJSON(id, tenantID string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"tenant_id": %q,
		"name": "Tiered Field Sales",
		"plan_type": "field_sales",
		"mode": "tiered",
		"payment_frequency": "monthly",
		"minimum_payment": "250",
		"effective_date": "2026-01-01",
		"tiers": [
			{"level": 1, "min_sales": "0", "max_sales": "50000", "rate": "3"},
			{"level": 2, "min_sales": "50000", "max_sales": "100000", "rate": "5"},
			{"level": 3, "min_sales": "100000", "rate": "7",
			 "bonus_threshold": "150000", "bonus_amount": "1000"}
		]
	}`, id, tenantID)
}

// ServiceTechPlanJSON compensates billable hours and parts markup.
func ServiceTechPlanJSON(id, tenantID string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"tenant_id": %q,
		"name": "Service Technician",
		"plan_type": "service_tech",
		"mode": "flat",
		"payment_frequency": "monthly",
		"effective_date": "2026-01-01",
		"product_rates": [
			{"category": "billable_hours", "rate": "4"},
			{"category": "parts_markup", "rate": "6"},
			{"category": "addon_sales", "rate": "8"}
		]
	}`, id, tenantID)
}
