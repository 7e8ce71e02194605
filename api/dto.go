/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All monetary fields travel as decimal strings ("1234.56"), never
  floats. Rates are percentage strings ("5" = 5%).

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  the validator before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/dealerpoint/commission-engine/commission"
	"github.com/dealerpoint/commission-engine/factory"
)

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanDTO represents a plan in API responses.
type PlanDTO struct {
	ID       string           `json:"id"`
	TenantID string           `json:"tenant_id"`
	Name     string           `json:"name"`
	Config   factory.PlanJSON `json:"config"`
}

// CreatePlanRequest is the request to create a plan.
type CreatePlanRequest struct {
	Config factory.PlanJSON `json:"config" validate:"required"`
}

// =============================================================================
// ASSIGNMENT TYPES
// =============================================================================

// AssignmentDTO represents a plan assignment.
type AssignmentDTO struct {
	ID            string                    `json:"id"`
	EmployeeID    string                    `json:"employee_id"`
	PlanID        string                    `json:"plan_id"`
	EffectiveFrom string                    `json:"effective_from"`
	EffectiveTo   *string                   `json:"effective_to,omitempty"`
	QuotaTarget   *string                   `json:"quota_target,omitempty"`
	CustomRates   []factory.ProductRateJSON `json:"custom_rates,omitempty"`
}

// CreateAssignmentRequest is the request to assign a plan.
type CreateAssignmentRequest struct {
	EmployeeID    string                    `json:"employee_id" validate:"required"`
	PlanID        string                    `json:"plan_id" validate:"required"`
	EffectiveFrom string                    `json:"effective_from" validate:"required,datetime=2006-01-02"`
	EffectiveTo   string                    `json:"effective_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	QuotaTarget   string                    `json:"quota_target,omitempty"`
	CustomRates   []factory.ProductRateJSON `json:"custom_rates,omitempty"`
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionDTO represents a sales transaction.
type TransactionDTO struct {
	ID                   string `json:"id"`
	EmployeeID           string `json:"employee_id"`
	SourceType           string `json:"source_type"`
	SourceID             string `json:"source_id"`
	TransactionDate      string `json:"transaction_date"`
	Category             string `json:"category"`
	SaleAmount           string `json:"sale_amount"`
	CommissionableAmount string `json:"commissionable_amount"`
	IsSplit              bool   `json:"is_split,omitempty"`
	SplitPercent         string `json:"split_percent,omitempty"`
	PrimaryEmployeeID    string `json:"primary_employee_id,omitempty"`
	IsChargedBack        bool   `json:"is_charged_back,omitempty"`
	IsProcessed          bool   `json:"is_processed"`
	CalculationID        string `json:"calculation_id,omitempty"`
	CommissionAmount     string `json:"commission_amount,omitempty"`
}

// CreateTransactionRequest records a commissionable sale.
type CreateTransactionRequest struct {
	ID                   string `json:"id,omitempty"`
	EmployeeID           string `json:"employee_id" validate:"required"`
	SourceType           string `json:"source_type" validate:"required,oneof=quote invoice contract service_call"`
	SourceID             string `json:"source_id" validate:"required"`
	TransactionDate      string `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	Category             string `json:"category" validate:"required"`
	SaleAmount           string `json:"sale_amount" validate:"required"`
	CommissionableAmount string `json:"commissionable_amount,omitempty"`
	IsSplit              bool   `json:"is_split,omitempty"`
	SplitPercent         string `json:"split_percent,omitempty"`
	PrimaryEmployeeID    string `json:"primary_employee_id,omitempty"`
	IsChargedBack        bool   `json:"is_charged_back,omitempty"`
}

// =============================================================================
// CALCULATION TYPES
// =============================================================================

// CalculationDTO represents a calculation with its breakdown.
type CalculationDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	PlanID     string `json:"plan_id"`

	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PeriodName  string `json:"period_name"`

	TotalSales       string  `json:"total_sales"`
	QuotaTarget      *string `json:"quota_target,omitempty"`
	QuotaAchievement string  `json:"quota_achievement"`

	GrossCommission  string `json:"gross_commission"`
	TotalBonuses     string `json:"total_bonuses"`
	TotalAdjustments string `json:"total_adjustments"`
	NetCommission    string `json:"net_commission"`

	Status      string `json:"status"`
	NeedsReview bool   `json:"needs_review,omitempty"`

	ApprovedAt *string `json:"approved_at,omitempty"`
	ApprovedBy string  `json:"approved_by,omitempty"`
	PaidAt     *string `json:"paid_at,omitempty"`
	PayoutDate *string `json:"payout_date,omitempty"`

	Details []DetailDTO `json:"details,omitempty"`
	Bonuses []BonusDTO  `json:"bonuses,omitempty"`
}

// DetailDTO is one per-category breakdown row.
type DetailDTO struct {
	Category         string `json:"category"`
	SalesAmount      string `json:"sales_amount"`
	Rate             string `json:"rate"`
	CommissionAmount string `json:"commission_amount"`
	TierLevel        int    `json:"tier_level,omitempty"`
}

// BonusDTO is one evaluated bonus row.
type BonusDTO struct {
	Kind           string `json:"kind"`
	Criteria       string `json:"criteria"`
	Amount         string `json:"amount"`
	EligibilityMet bool   `json:"eligibility_met"`
}

// CalculateRequest triggers a calculation run.
type CalculateRequest struct {
	EmployeeID  string `json:"employee_id" validate:"required"`
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"required,datetime=2006-01-02"`
	PeriodName  string `json:"period_name,omitempty"`
}

// PayRequest marks an approved calculation as paid.
type PayRequest struct {
	PayoutDate string `json:"payout_date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// ADJUSTMENT TYPES
// =============================================================================

// AdjustmentDTO represents an adjustment.
type AdjustmentDTO struct {
	ID            string  `json:"id"`
	EmployeeID    string  `json:"employee_id"`
	CalculationID *string `json:"calculation_id,omitempty"`
	Type          string  `json:"type"`
	Amount        string  `json:"amount"`
	Reason        string  `json:"reason,omitempty"`
	EffectiveDate string  `json:"effective_date"`
	Status        string  `json:"status"`
	ApprovedBy    string  `json:"approved_by,omitempty"`
	Applied       bool    `json:"applied"`
	DisputeID     *string `json:"dispute_id,omitempty"`
}

// CreateAdjustmentRequest records a signed correction.
type CreateAdjustmentRequest struct {
	EmployeeID    string `json:"employee_id" validate:"required"`
	CalculationID string `json:"calculation_id,omitempty"`
	Type          string `json:"type" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	Reason        string `json:"reason,omitempty"`
	EffectiveDate string `json:"effective_date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// DISPUTE TYPES
// =============================================================================

// DisputeDTO represents a dispute.
type DisputeDTO struct {
	ID               string  `json:"id"`
	CalculationID    string  `json:"calculation_id"`
	EmployeeID       string  `json:"employee_id"`
	SubmittedBy      string  `json:"submitted_by"`
	DisputedAmount   string  `json:"disputed_amount"`
	ExpectedAmount   string  `json:"expected_amount"`
	Difference       string  `json:"difference"`
	Status           string  `json:"status"`
	AssignedTo       string  `json:"assigned_to,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	ResolutionType   string  `json:"resolution_type,omitempty"`
	ResolutionNotes  string  `json:"resolution_notes,omitempty"`
	ResolutionAmount string  `json:"resolution_amount,omitempty"`
	AdjustmentID     *string `json:"adjustment_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// DisputeHistoryDTO is one append-only audit row.
type DisputeHistoryDTO struct {
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
	ActorID     string `json:"actor_id"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// SubmitDisputeRequest opens a dispute against a calculation.
type SubmitDisputeRequest struct {
	CalculationID  string `json:"calculation_id" validate:"required"`
	ExpectedAmount string `json:"expected_amount" validate:"required"`
	Reason         string `json:"reason" validate:"required"`
}

// AssignDisputeRequest assigns a reviewer.
type AssignDisputeRequest struct {
	Reviewer string `json:"reviewer" validate:"required"`
}

// EscalateDisputeRequest escalates a dispute under review.
type EscalateDisputeRequest struct {
	AssignTo string `json:"assign_to,omitempty"`
	Note     string `json:"note,omitempty"`
}

// ResolveDisputeRequest settles a dispute.
type ResolveDisputeRequest struct {
	ResolutionType string `json:"resolution_type" validate:"required,oneof=adjustment recalculation no_change"`
	Amount         string `json:"amount,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// RejectDisputeRequest rejects a dispute. Notes are mandatory.
type RejectDisputeRequest struct {
	Notes string `json:"notes" validate:"required"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest loads a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAssignmentDTO(a commission.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:            string(a.ID),
		EmployeeID:    string(a.EmployeeID),
		PlanID:        string(a.PlanID),
		EffectiveFrom: a.EffectiveFrom.String(),
	}
	if a.EffectiveTo != nil {
		dto.EffectiveTo = strPtr(a.EffectiveTo.String())
	}
	if a.QuotaTarget != nil {
		dto.QuotaTarget = strPtr(a.QuotaTarget.String())
	}
	for _, cr := range a.CustomRates {
		dto.CustomRates = append(dto.CustomRates, factory.ProductRateJSON{
			Category: string(cr.Category),
			Rate:     cr.Rate.String(),
		})
	}
	return dto
}

func toTransactionDTO(tx commission.SalesTransaction) TransactionDTO {
	dto := TransactionDTO{
		ID:                   string(tx.ID),
		EmployeeID:           string(tx.EmployeeID),
		SourceType:           string(tx.Source.Type),
		SourceID:             tx.Source.ID,
		TransactionDate:      tx.TransactionDate.String(),
		Category:             string(tx.Category),
		SaleAmount:           tx.SaleAmount.String(),
		CommissionableAmount: tx.CommissionableAmount.String(),
		IsSplit:              tx.IsSplit,
		PrimaryEmployeeID:    string(tx.PrimaryEmployeeID),
		IsChargedBack:        tx.IsChargedBack,
		IsProcessed:          tx.IsProcessed,
		CalculationID:        string(tx.CalculationID),
	}
	if tx.IsSplit {
		dto.SplitPercent = tx.SplitPercent.String()
	}
	if tx.CalculationID != "" {
		dto.CommissionAmount = tx.CommissionAmount.String()
	}
	return dto
}

func toCalculationDTO(calc *commission.Calculation, details []commission.Detail, bonuses []commission.Bonus) CalculationDTO {
	dto := CalculationDTO{
		ID:               string(calc.ID),
		EmployeeID:       string(calc.EmployeeID),
		PlanID:           string(calc.PlanID),
		PeriodStart:      calc.Period.Start.String(),
		PeriodEnd:        calc.Period.End.String(),
		PeriodName:       calc.PeriodName,
		TotalSales:       calc.TotalSales.String(),
		QuotaAchievement: calc.QuotaAchievement.String(),
		GrossCommission:  calc.GrossCommission.String(),
		TotalBonuses:     calc.TotalBonuses.String(),
		TotalAdjustments: calc.TotalAdjustments.String(),
		NetCommission:    calc.NetCommission.String(),
		Status:           string(calc.Status),
		NeedsReview:      calc.NeedsReview,
		ApprovedBy:       calc.ApprovedBy,
	}
	if calc.QuotaTarget != nil {
		dto.QuotaTarget = strPtr(calc.QuotaTarget.String())
	}
	if calc.ApprovedAt != nil {
		dto.ApprovedAt = strPtr(calc.ApprovedAt.Format(time.RFC3339))
	}
	if calc.PaidAt != nil {
		dto.PaidAt = strPtr(calc.PaidAt.Format(time.RFC3339))
	}
	if calc.PayoutDate != nil {
		dto.PayoutDate = strPtr(calc.PayoutDate.String())
	}

	for _, d := range details {
		dto.Details = append(dto.Details, DetailDTO{
			Category:         string(d.Category),
			SalesAmount:      d.SalesAmount.String(),
			Rate:             d.Rate.String(),
			CommissionAmount: d.CommissionAmount.String(),
			TierLevel:        d.TierLevel,
		})
	}
	for _, b := range bonuses {
		dto.Bonuses = append(dto.Bonuses, BonusDTO{
			Kind:           string(b.Kind),
			Criteria:       b.Criteria,
			Amount:         b.Amount.String(),
			EligibilityMet: b.EligibilityMet,
		})
	}
	return dto
}

func toAdjustmentDTO(a commission.Adjustment) AdjustmentDTO {
	dto := AdjustmentDTO{
		ID:            string(a.ID),
		EmployeeID:    string(a.EmployeeID),
		Type:          string(a.Type),
		Amount:        a.Amount.String(),
		Reason:        a.Reason,
		EffectiveDate: a.EffectiveDate.String(),
		Status:        string(a.Status),
		ApprovedBy:    a.ApprovedBy,
		Applied:       a.Applied,
	}
	if a.CalculationID != nil {
		dto.CalculationID = strPtr(string(*a.CalculationID))
	}
	if a.DisputeID != nil {
		dto.DisputeID = strPtr(string(*a.DisputeID))
	}
	return dto
}

func toDisputeDTO(d *commission.Dispute) DisputeDTO {
	dto := DisputeDTO{
		ID:              string(d.ID),
		CalculationID:   string(d.CalculationID),
		EmployeeID:      string(d.EmployeeID),
		SubmittedBy:     d.SubmittedBy,
		DisputedAmount:  d.DisputedAmount.String(),
		ExpectedAmount:  d.ExpectedAmount.String(),
		Difference:      d.Difference().String(),
		Status:          string(d.Status),
		AssignedTo:      d.AssignedTo,
		Reason:          d.Reason,
		ResolutionType:  string(d.ResolutionType),
		ResolutionNotes: d.ResolutionNotes,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
	if !d.ResolutionAmount.IsZero() {
		dto.ResolutionAmount = d.ResolutionAmount.String()
	}
	if d.AdjustmentID != nil {
		dto.AdjustmentID = strPtr(string(*d.AdjustmentID))
	}
	return dto
}

func toHistoryDTO(h commission.DisputeHistory) DisputeHistoryDTO {
	return DisputeHistoryDTO{
		FromStatus:  string(h.FromStatus),
		ToStatus:    string(h.ToStatus),
		ActorID:     h.ActorID,
		Description: h.Description,
		CreatedAt:   h.CreatedAt.Format(time.RFC3339),
	}
}

func strPtr(s string) *string {
	return &s
}
