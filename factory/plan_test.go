package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerpoint/commission-engine/commission"
	"github.com/dealerpoint/commission-engine/factory"
)

// =============================================================================
// PRESET PARSING
// =============================================================================

func TestParsePlan_StandardFlatPreset(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParsePlan(factory.StandardFlatPlanJSON("plan-1", "dealer-1"))
	require.NoError(t, err)

	assert.Equal(t, commission.PlanID("plan-1"), plan.ID)
	assert.Equal(t, commission.TenantID("dealer-1"), plan.TenantID)
	assert.Equal(t, commission.ModeFlat, plan.Mode)
	assert.Len(t, plan.ProductRates, 5)
	assert.Len(t, plan.BonusRules, 1)
	assert.Equal(t, commission.BonusQuotaKind, plan.BonusRules[0].Kind())

	rate, ok := plan.RateFor(commission.CategoryServiceContracts, nil)
	require.True(t, ok)
	assert.True(t, rate.Equal(commission.MustMoney("10")), "service contracts at 10%%, got %s", rate)
}

func TestParsePlan_TieredPreset(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParsePlan(factory.TieredSalesPlanJSON("plan-t", "dealer-1"))
	require.NoError(t, err)

	assert.Equal(t, commission.ModeTiered, plan.Mode)
	require.Len(t, plan.Tiers, 3)

	top := plan.Tiers[2]
	assert.Nil(t, top.MaxSales, "omitted max_sales means unbounded")
	require.NotNil(t, top.BonusThreshold)
	assert.True(t, top.BonusThreshold.Equal(commission.MustMoney("150000")))
}

func TestParsePlan_ServiceTechPreset(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParsePlan(factory.ServiceTechPlanJSON("plan-s", "dealer-1"))
	require.NoError(t, err)
	assert.Equal(t, commission.PlanServiceTech, plan.PlanType)

	rate, ok := plan.RateFor(commission.CategoryBillableHours, nil)
	require.True(t, ok)
	assert.True(t, rate.Equal(commission.MustMoney("4")))
}

// =============================================================================
// REJECTION PATHS
// =============================================================================

func TestParsePlan_MalformedJSON_Rejected(t *testing.T) {
	f := factory.NewPlanFactory()
	_, err := f.ParsePlan(`{"id": "broken"`)
	require.Error(t, err)
}

func TestFromJSON_InvalidDefinition_NeverLeavesFactory(t *testing.T) {
	// GIVEN: A tiered definition with a gap between brackets
	// WHEN: Converting
	// THEN: Validation fails inside the factory

	f := factory.NewPlanFactory()
	_, err := f.FromJSON(factory.PlanJSON{
		ID: "plan-bad", TenantID: "dealer-1", Name: "Gappy",
		PlanType: "sales_rep", Mode: "tiered",
		EffectiveDate: "2026-01-01",
		Tiers: []factory.TierJSON{
			{Level: 1, MinSales: "0", MaxSales: "50000", Rate: "3"},
			{Level: 2, MinSales: "60000", Rate: "5"},
		},
	})
	require.ErrorIs(t, err, commission.ErrInvalidPlan)
}

func TestFromJSON_BadMoneyString_Rejected(t *testing.T) {
	f := factory.NewPlanFactory()
	_, err := f.FromJSON(factory.PlanJSON{
		ID: "plan-bad", TenantID: "dealer-1", Name: "Bad rate",
		PlanType: "sales_rep", Mode: "flat",
		EffectiveDate: "2026-01-01",
		ProductRates: []factory.ProductRateJSON{
			{Category: "new_equipment", Rate: "five percent"},
		},
	})
	require.Error(t, err)
}

func TestFromJSON_UnknownBonusKind_Rejected(t *testing.T) {
	f := factory.NewPlanFactory()
	_, err := f.FromJSON(factory.PlanJSON{
		ID: "plan-bad", TenantID: "dealer-1", Name: "Mystery bonus",
		PlanType: "sales_rep", Mode: "flat",
		EffectiveDate: "2026-01-01",
		ProductRates: []factory.ProductRateJSON{
			{Category: "new_equipment", Rate: "5"},
		},
		BonusRules: []byte(`[{"kind": "spiff", "amount": "100"}]`),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown bonus rule kind")
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestToJSON_RoundTripsTieredPlan(t *testing.T) {
	f := factory.NewPlanFactory()

	original, err := f.ParsePlan(factory.TieredSalesPlanJSON("plan-t", "dealer-1"))
	require.NoError(t, err)

	pj, err := f.ToJSON(original)
	require.NoError(t, err)
	restored, err := f.FromJSON(pj)
	require.NoError(t, err)

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Mode, restored.Mode)
	require.Len(t, restored.Tiers, len(original.Tiers))
	for i := range original.Tiers {
		assert.True(t, restored.Tiers[i].Rate.Equal(original.Tiers[i].Rate),
			"tier %d rate", original.Tiers[i].Level)
	}
	assert.Nil(t, restored.Tiers[2].MaxSales)
}
