/*
plan.go - Commission plan definitions and write-time validation

PURPOSE:
  A Plan is the ruleset for turning an employee's sales into commission:
  either a flat rate per product category, or plan-wide tier brackets
  applied to total sales. Plans own their Tiers and ProductRates.

CALCULATION MODES:
  ModeFlat:
    - Each product category carries its own percentage rate
    - Commission = sum over categories of (category sales x rate)

  ModeTiered:
    - Total sales across all categories selects ONE bracket
    - That bracket's rate applies to the whole total
    - Brackets must partition the sales axis: no gaps, no overlaps,
      exactly one unbounded top tier

  The two modes are mutually exclusive per plan. The mode is an explicit
  discriminator, never inferred from which child rows happen to exist.

TIER BRACKETS:
  A tier covers [MinSales, MaxSales). MaxSales nil = unbounded top tier.
  Example ladder:
    level 1: [0, 50000)      at 3%
    level 2: [50000, 100000) at 5%
    level 3: [100000, nil)   at 7%, bonus $1000 above $150000

SEE ALSO:
  - bonus.go: Plan-level bonus rules (tagged variants)
  - engine.go: Applies rates and brackets during calculation
  - factory/plan.go: JSON plan definitions
*/
package commission

import (
	"fmt"
	"sort"
)

// =============================================================================
// CALCULATION MODE - Explicit discriminator
// =============================================================================

type CalculationMode string

const (
	// ModeFlat applies a per-category percentage to each category's sales.
	ModeFlat CalculationMode = "flat"

	// ModeTiered applies one bracket's rate to total sales across all
	// categories.
	ModeTiered CalculationMode = "tiered"
)

// =============================================================================
// PLAN - Rules governing commission for a group of employees
// =============================================================================

// Plan defines how commission is computed for employees assigned to it.
type Plan struct {
	ID       PlanID
	TenantID TenantID
	Name     string
	PlanType PlanType
	Mode     CalculationMode

	PaymentFrequency PaymentFrequency
	PaymentDelayDays int

	// Calculations whose net falls below this are flagged NeedsReview,
	// never silently suppressed.
	MinimumPayment Money

	SplitAllowed         bool
	ChargebackEnabled    bool
	ChargebackPeriodDays int

	// EffectiveDate/EndDate bound when the plan may be assigned.
	// EndDate nil = open-ended.
	EffectiveDate Date
	EndDate       *Date

	// ModeTiered: ordered brackets over total sales.
	Tiers []Tier

	// ModeFlat: per-category percentage rates.
	ProductRates []ProductRate

	// Bonus rules evaluated every calculation run (see bonus.go).
	BonusRules []BonusRule
}

// Tier is one bracket of a tiered plan: [MinSales, MaxSales) at Rate.
// MaxSales nil = unbounded top tier. BonusThreshold/BonusAmount define
// an optional threshold bonus granted when total sales reach the
// threshold.
type Tier struct {
	Level          int
	MinSales       Money
	MaxSales       *Money
	Rate           Rate
	BonusThreshold *Money
	BonusAmount    *Money
}

// Contains reports whether total falls inside the bracket.
func (t Tier) Contains(total Money) bool {
	if total.LessThan(t.MinSales) {
		return false
	}
	return t.MaxSales == nil || total.LessThan(*t.MaxSales)
}

// ProductRate is a flat percentage for one product category.
type ProductRate struct {
	Category ProductCategory
	Rate     Rate
}

// =============================================================================
// PLAN VALIDATION - Enforced at write time, not in the schema
// =============================================================================

// Validate checks the structural invariants of a plan definition.
// The store must reject plans that fail this.
func (p *Plan) Validate() error {
	if p.ID == "" || p.TenantID == "" || p.Name == "" {
		return &PlanValidationError{PlanID: p.ID, Reason: "id, tenant and name are required"}
	}
	if !ValidPlanType(string(p.PlanType)) {
		return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("unknown plan type %q", p.PlanType)}
	}
	if p.EndDate != nil && p.EndDate.Before(p.EffectiveDate) {
		return &PlanValidationError{PlanID: p.ID, Reason: "end date before effective date"}
	}
	if p.MinimumPayment.IsNegative() {
		return &PlanValidationError{PlanID: p.ID, Reason: "minimum payment cannot be negative"}
	}

	switch p.Mode {
	case ModeFlat:
		if len(p.ProductRates) == 0 {
			return &PlanValidationError{PlanID: p.ID, Reason: "flat plan requires product rates"}
		}
		if len(p.Tiers) > 0 {
			return &PlanValidationError{PlanID: p.ID, Reason: "flat plan cannot carry tiers"}
		}
		return p.validateProductRates()
	case ModeTiered:
		if len(p.Tiers) == 0 {
			return &PlanValidationError{PlanID: p.ID, Reason: "tiered plan requires tiers"}
		}
		if len(p.ProductRates) > 0 {
			return &PlanValidationError{PlanID: p.ID, Reason: "tiered plan cannot carry product rates"}
		}
		return p.validateTiers()
	default:
		return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("unknown calculation mode %q", p.Mode)}
	}
}

func (p *Plan) validateProductRates() error {
	seen := make(map[ProductCategory]bool)
	for _, pr := range p.ProductRates {
		if !ValidCategory(string(pr.Category)) {
			return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("unknown category %q", pr.Category)}
		}
		if seen[pr.Category] {
			return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("duplicate rate for category %q", pr.Category)}
		}
		seen[pr.Category] = true
		if pr.Rate.IsNegative() {
			return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("negative rate for category %q", pr.Category)}
		}
	}
	return nil
}

// validateTiers enforces that tiers partition the sales axis:
// sorted by level, first tier starts at 0, each tier's max equals the
// next tier's min, and only the last tier is unbounded.
func (p *Plan) validateTiers() error {
	tiers := make([]Tier, len(p.Tiers))
	copy(tiers, p.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Level < tiers[j].Level })

	for i, t := range tiers {
		if i > 0 && t.Level == tiers[i-1].Level {
			return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("duplicate tier level %d", t.Level)}
		}
		if t.Rate.IsNegative() {
			return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("tier %d: negative rate", t.Level)}
		}

		if i == 0 {
			if !t.MinSales.IsZero() {
				return &PlanValidationError{PlanID: p.ID, Reason: "first tier must start at 0"}
			}
		} else {
			prev := tiers[i-1]
			if prev.MaxSales == nil {
				return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("tier %d follows an unbounded tier", t.Level)}
			}
			switch {
			case t.MinSales.GreaterThan(*prev.MaxSales):
				return &PlanValidationError{PlanID: p.ID,
					Reason: fmt.Sprintf("gap between tiers %d and %d", prev.Level, t.Level)}
			case t.MinSales.LessThan(*prev.MaxSales):
				return &PlanValidationError{PlanID: p.ID,
					Reason: fmt.Sprintf("overlap between tiers %d and %d", prev.Level, t.Level)}
			}
		}

		if t.MaxSales != nil && !t.MaxSales.GreaterThan(t.MinSales) {
			return &PlanValidationError{PlanID: p.ID, Reason: fmt.Sprintf("tier %d: max must exceed min", t.Level)}
		}
	}

	if tiers[len(tiers)-1].MaxSales != nil {
		return &PlanValidationError{PlanID: p.ID, Reason: "top tier must be unbounded"}
	}
	return nil
}

// =============================================================================
// RATE LOOKUP
// =============================================================================

// RateFor returns the flat rate for a category, with per-assignment
// custom rates taking precedence over the plan's rates. The second
// return is false when neither defines the category.
func (p *Plan) RateFor(category ProductCategory, custom []ProductRate) (Rate, bool) {
	for _, cr := range custom {
		if cr.Category == category {
			return cr.Rate, true
		}
	}
	for _, pr := range p.ProductRates {
		if pr.Category == category {
			return pr.Rate, true
		}
	}
	return Rate{}, false
}

// TierFor locates the single bracket containing total. The second
// return is false only for an invalid ladder (validated plans always
// cover the full axis).
func (p *Plan) TierFor(total Money) (Tier, bool) {
	for _, t := range p.Tiers {
		if t.Contains(total) {
			return t, true
		}
	}
	return Tier{}, false
}

// ActiveOn reports whether the plan may be assigned on a date.
func (p *Plan) ActiveOn(at Date) bool {
	if at.Before(p.EffectiveDate) {
		return false
	}
	return p.EndDate == nil || !at.After(*p.EndDate)
}
