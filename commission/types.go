/*
Package commission implements commission plan evaluation and settlement.

PURPOSE:
  This package contains the domain types and algorithms for turning
  commissionable sales transactions into per-period commission
  calculations: plan definitions (flat per-category rates or plan-wide
  tier brackets), employee plan assignments, transaction collection
  (splits, chargebacks), the calculation engine, the adjustment ledger,
  the dispute workflow with its append-only audit history, and the
  settlement driver.

KEY CONCEPTS IN THIS FILE (types.go):
  - RequestContext: explicit tenant + actor identity for every call
  - Type-safe identifiers (TenantID, EmployeeID, PlanID, ...)
  - Domain enums: PlanType, ProductCategory, SourceType

DESIGN PRINCIPLES:
  1. Tenant isolation: every read and write is scoped by TenantID;
     cross-tenant references are a hard error, never filtered out
  2. Precision: all money uses decimal.Decimal (see money.go)
  3. Explicitness: identity travels as a parameter, not ambient state
  4. Auditability: dispute history is insert-only; settled calculations
     are immutable except via adjustments

SEE ALSO:
  - plan.go: Plan, Tier and ProductRate definitions
  - engine.go: The calculation engine
  - dispute.go: Dispute state machine and history
*/
package commission

import "fmt"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type EmployeeID string
type PlanID string
type AssignmentID string
type TransactionID string
type CalculationID string
type AdjustmentID string
type DisputeID string

// RequestContext carries the tenant and actor identity through every
// workflow call. There is no ambient/global tenant state.
type RequestContext struct {
	TenantID TenantID
	ActorID  string
}

// Valid reports whether the context carries a tenant.
func (rc RequestContext) Valid() bool { return rc.TenantID != "" }

// CheckTenant returns a TenantMismatchError when the referenced record
// belongs to a different tenant than the caller.
func (rc RequestContext) CheckTenant(owner TenantID, kind, id string) error {
	if owner != rc.TenantID {
		return &TenantMismatchError{Want: rc.TenantID, Got: owner, Kind: kind, ID: id}
	}
	return nil
}

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanType identifies which role a plan compensates.
type PlanType string

const (
	PlanSalesRep       PlanType = "sales_rep"
	PlanSalesManager   PlanType = "sales_manager"
	PlanServiceTech    PlanType = "service_tech"
	PlanAccountManager PlanType = "account_manager"
	PlanInsideSales    PlanType = "inside_sales"
	PlanFieldSales     PlanType = "field_sales"
)

// ValidPlanType reports whether s names a known plan type.
func ValidPlanType(s string) bool {
	switch PlanType(s) {
	case PlanSalesRep, PlanSalesManager, PlanServiceTech,
		PlanAccountManager, PlanInsideSales, PlanFieldSales:
		return true
	}
	return false
}

// PaymentFrequency is how often calculated commissions are paid out.
type PaymentFrequency string

const (
	PayMonthly   PaymentFrequency = "monthly"
	PayQuarterly PaymentFrequency = "quarterly"
	PayAnnually  PaymentFrequency = "annually"
)

// =============================================================================
// PRODUCT CATEGORIES
// =============================================================================

// ProductCategory tags a sale with the commission bucket it falls into.
type ProductCategory string

const (
	CategoryNewEquipment     ProductCategory = "new_equipment"
	CategoryUsedEquipment    ProductCategory = "used_equipment"
	CategoryServiceContracts ProductCategory = "service_contracts"
	CategorySupplies         ProductCategory = "supplies"
	CategorySoftware         ProductCategory = "software"
	CategoryBillableHours    ProductCategory = "billable_hours"
	CategoryPartsMarkup      ProductCategory = "parts_markup"
	CategoryAddonSales       ProductCategory = "addon_sales"
)

// Categories lists every known product category in a stable order.
func Categories() []ProductCategory {
	return []ProductCategory{
		CategoryNewEquipment,
		CategoryUsedEquipment,
		CategoryServiceContracts,
		CategorySupplies,
		CategorySoftware,
		CategoryBillableHours,
		CategoryPartsMarkup,
		CategoryAddonSales,
	}
}

// ValidCategory reports whether s names a known product category.
func ValidCategory(s string) bool {
	for _, c := range Categories() {
		if ProductCategory(s) == c {
			return true
		}
	}
	return false
}

// =============================================================================
// SALE SOURCES
// =============================================================================

// SourceType identifies the kind of sale record a transaction references.
// The workflow never mutates the originating record; it only reads
// amount, date and category at collection time.
type SourceType string

const (
	SourceQuote       SourceType = "quote"
	SourceInvoice     SourceType = "invoice"
	SourceContract    SourceType = "contract"
	SourceServiceCall SourceType = "service_call"
)

// SourceRef is the (type, id) pair naming an originating sale.
type SourceRef struct {
	Type SourceType
	ID   string
}

func (s SourceRef) String() string { return fmt.Sprintf("%s:%s", s.Type, s.ID) }
