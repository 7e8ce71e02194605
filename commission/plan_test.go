package commission_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dealerpoint/commission-engine/commission"
)

// =============================================================================
// TIER PARTITION VALIDATION
// =============================================================================

func requireInvalidPlan(t *testing.T, plan *commission.Plan, wantReason string) {
	t.Helper()
	err := plan.Validate()
	require.ErrorIs(t, err, commission.ErrInvalidPlan)
	require.Contains(t, err.Error(), wantReason)
}

func TestPlanValidate_TieredLadder_Valid(t *testing.T) {
	require.NoError(t, tieredPlan("p").Validate())
}

func TestPlanValidate_TierGap_Rejected(t *testing.T) {
	// GIVEN: Brackets [0, 50000) and [60000, nil) leaving a gap
	// WHEN: Validating
	// THEN: Rejected; a total of 55000 would match no bracket

	max1 := money("50000")
	plan := tieredPlan("p")
	plan.Tiers = []commission.Tier{
		{Level: 1, MinSales: money("0"), MaxSales: &max1, Rate: money("3")},
		{Level: 2, MinSales: money("60000"), Rate: money("5")},
	}
	requireInvalidPlan(t, plan, "gap")
}

func TestPlanValidate_TierOverlap_Rejected(t *testing.T) {
	max1 := money("50000")
	plan := tieredPlan("p")
	plan.Tiers = []commission.Tier{
		{Level: 1, MinSales: money("0"), MaxSales: &max1, Rate: money("3")},
		{Level: 2, MinSales: money("40000"), Rate: money("5")},
	}
	requireInvalidPlan(t, plan, "overlap")
}

func TestPlanValidate_FirstTierNotAtZero_Rejected(t *testing.T) {
	plan := tieredPlan("p")
	plan.Tiers = []commission.Tier{
		{Level: 1, MinSales: money("1000"), Rate: money("3")},
	}
	requireInvalidPlan(t, plan, "start at 0")
}

func TestPlanValidate_BoundedTopTier_Rejected(t *testing.T) {
	// GIVEN: A ladder whose top bracket has a max
	// WHEN: Validating
	// THEN: Rejected; totals above the max would match no bracket

	max1 := money("50000")
	max2 := money("100000")
	plan := tieredPlan("p")
	plan.Tiers = []commission.Tier{
		{Level: 1, MinSales: money("0"), MaxSales: &max1, Rate: money("3")},
		{Level: 2, MinSales: money("50000"), MaxSales: &max2, Rate: money("5")},
	}
	requireInvalidPlan(t, plan, "unbounded")
}

func TestPlanValidate_DuplicateTierLevel_Rejected(t *testing.T) {
	max1 := money("50000")
	plan := tieredPlan("p")
	plan.Tiers = []commission.Tier{
		{Level: 1, MinSales: money("0"), MaxSales: &max1, Rate: money("3")},
		{Level: 1, MinSales: money("50000"), Rate: money("5")},
	}
	requireInvalidPlan(t, plan, "duplicate tier level")
}

// =============================================================================
// MODE EXCLUSIVITY
// =============================================================================

func TestPlanValidate_FlatWithoutRates_Rejected(t *testing.T) {
	plan := flatPlan("p")
	plan.ProductRates = nil
	requireInvalidPlan(t, plan, "requires product rates")
}

func TestPlanValidate_FlatCarryingTiers_Rejected(t *testing.T) {
	plan := flatPlan("p")
	plan.Tiers = []commission.Tier{{Level: 1, MinSales: money("0"), Rate: money("3")}}
	requireInvalidPlan(t, plan, "cannot carry tiers")
}

func TestPlanValidate_TieredCarryingProductRates_Rejected(t *testing.T) {
	plan := tieredPlan("p")
	plan.ProductRates = []commission.ProductRate{
		{Category: commission.CategoryNewEquipment, Rate: money("5")},
	}
	requireInvalidPlan(t, plan, "cannot carry product rates")
}

func TestPlanValidate_UnknownMode_Rejected(t *testing.T) {
	plan := flatPlan("p")
	plan.Mode = "percentage"
	requireInvalidPlan(t, plan, "unknown calculation mode")
}

func TestPlanValidate_UnknownCategory_Rejected(t *testing.T) {
	plan := flatPlan("p")
	plan.ProductRates = append(plan.ProductRates,
		commission.ProductRate{Category: "spaceships", Rate: money("2")})
	requireInvalidPlan(t, plan, "unknown category")
}

func TestPlanValidate_DuplicateCategoryRate_Rejected(t *testing.T) {
	plan := flatPlan("p")
	plan.ProductRates = append(plan.ProductRates,
		commission.ProductRate{Category: commission.CategoryNewEquipment, Rate: money("6")})
	requireInvalidPlan(t, plan, "duplicate rate")
}

func TestPlanValidate_EndDateBeforeEffective_Rejected(t *testing.T) {
	plan := flatPlan("p")
	end := date("2025-06-01")
	plan.EndDate = &end
	requireInvalidPlan(t, plan, "end date before effective date")
}

// =============================================================================
// LOOKUP BEHAVIOR
// =============================================================================

func TestTierFor_BoundaryBelongsToUpperBracket(t *testing.T) {
	plan := tieredPlan("p")

	tier, ok := plan.TierFor(money("49999.99"))
	require.True(t, ok)
	require.Equal(t, 1, tier.Level)

	tier, ok = plan.TierFor(money("50000"))
	require.True(t, ok)
	require.Equal(t, 2, tier.Level)

	tier, ok = plan.TierFor(money("250000"))
	require.True(t, ok)
	require.Equal(t, 3, tier.Level, "top tier is unbounded")
}

func TestRateFor_CustomRateWins(t *testing.T) {
	plan := flatPlan("p")
	custom := []commission.ProductRate{
		{Category: commission.CategoryNewEquipment, Rate: money("8")},
	}

	rate, ok := plan.RateFor(commission.CategoryNewEquipment, custom)
	require.True(t, ok)
	assertMoney(t, "8", rate, "custom override")

	rate, ok = plan.RateFor(commission.CategoryUsedEquipment, custom)
	require.True(t, ok)
	assertMoney(t, "4", rate, "plan rate when no override")

	_, ok = plan.RateFor(commission.CategorySupplies, custom)
	require.False(t, ok, "unrated category")
}

func TestPlanActiveOn_RespectsDateBounds(t *testing.T) {
	plan := flatPlan("p")
	end := date("2026-06-30")
	plan.EndDate = &end

	require.False(t, plan.ActiveOn(date("2025-12-31")))
	require.True(t, plan.ActiveOn(date("2026-01-01")))
	require.True(t, plan.ActiveOn(date("2026-06-30")))
	require.False(t, plan.ActiveOn(date("2026-07-01")))
}
