/*
handlers.go - HTTP API handlers for the commission workflow

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Plans:
    GET    /api/plans                     List plans
    POST   /api/plans                     Create plan from JSON config
    GET    /api/plans/{id}                Get plan

  Assignments:
    POST   /api/assignments               Assign a plan to an employee
    GET    /api/employees/{id}/assignments

  Transactions:
    POST   /api/transactions              Record a commissionable sale
    POST   /api/transactions/{id}/chargeback
    GET    /api/employees/{id}/transactions?start=&end= (or ?quarter=YYYY-Qn)

  Calculations:
    POST   /api/calculations              Run the engine for a period
    GET    /api/calculations/{id}         Get with details and bonuses
    GET    /api/employees/{id}/calculations
    POST   /api/calculations/{id}/approve
    POST   /api/calculations/{id}/pay
    POST   /api/calculations/{id}/cancel
    POST   /api/calculations/{id}/apply-adjustments

  Adjustments:
    POST   /api/adjustments               Record a signed correction
    GET    /api/adjustments/{id}
    POST   /api/adjustments/{id}/approve
    POST   /api/adjustments/{id}/reject

  Disputes:
    POST   /api/disputes                  Submit against a calculation
    GET    /api/disputes/{id}
    GET    /api/disputes/{id}/history     Append-only audit trail
    POST   /api/disputes/{id}/assign|escalate|resolve|reject|close

  Scenarios:
    GET    /api/scenarios                 List demo scenarios
    POST   /api/scenarios/load            Load a demo scenario

ERROR HANDLING:
  Domain errors map to HTTP status by their error code:
  - 400: validation errors, no_active_plan, split_over_allocation
  - 403: tenant_mismatch
  - 404: not found
  - 409: already_finalized, invalid_transition, ambiguous_assignment
  - 500: everything else
  The body carries {"error", "code", "details"} so clients can branch
  on the stable code rather than the message.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dealerpoint/commission-engine/commission"
	"github.com/dealerpoint/commission-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       commission.Store
	Engine      *commission.Engine
	Settlement  *commission.Settlement
	Disputes    *commission.DisputeWorkflow
	PlanFactory *factory.PlanFactory

	validate *validator.Validate
}

// NewHandler creates a handler with workflows wired over the store.
func NewHandler(store commission.Store, notifier commission.Notifier) *Handler {
	return &Handler{
		Store:       store,
		Engine:      commission.NewEngine(store, notifier),
		Settlement:  commission.NewSettlement(store, notifier),
		Disputes:    commission.NewDisputeWorkflow(store, notifier),
		PlanFactory: factory.NewPlanFactory(),
		validate:    validator.New(),
	}
}

// Health is the unauthenticated liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses and validates a request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns the tenant's plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	plans, err := h.Store.ListPlans(r.Context(), rc.TenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]PlanDTO, 0, len(plans))
	for i := range plans {
		dto, err := h.toPlanDTO(&plans[i])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns a single plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	plan, err := h.Store.GetPlan(r.Context(), rc.TenantID, commission.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto, err := h.toPlanDTO(plan)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreatePlan creates a plan from its JSON config. The factory validates
// the definition; invalid plans are rejected before the store sees them.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req CreatePlanRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// The tenant comes from the request identity, never the body.
	req.Config.TenantID = string(rc.TenantID)
	if req.Config.ID == "" {
		req.Config.ID = uuid.NewString()
	}

	plan, err := h.PlanFactory.FromJSON(req.Config)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeDomainError(w, err)
		return
	}

	dto, err := h.toPlanDTO(plan)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) toPlanDTO(plan *commission.Plan) (PlanDTO, error) {
	config, err := h.PlanFactory.ToJSON(plan)
	if err != nil {
		return PlanDTO{}, err
	}
	return PlanDTO{
		ID:       string(plan.ID),
		TenantID: string(plan.TenantID),
		Name:     plan.Name,
		Config:   config,
	}, nil
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

// CreateAssignment binds an employee to a plan for a date range.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req CreateAssignmentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from, err := commission.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from", err)
		return
	}

	a := commission.Assignment{
		ID:            commission.AssignmentID(uuid.NewString()),
		TenantID:      rc.TenantID,
		EmployeeID:    commission.EmployeeID(req.EmployeeID),
		PlanID:        commission.PlanID(req.PlanID),
		EffectiveFrom: from,
	}
	if req.EffectiveTo != "" {
		to, err := commission.ParseDate(req.EffectiveTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_to", err)
			return
		}
		a.EffectiveTo = &to
	}
	if req.QuotaTarget != "" {
		quota, err := commission.ParseMoney(req.QuotaTarget)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid quota_target", err)
			return
		}
		a.QuotaTarget = &quota
	}
	for _, cr := range req.CustomRates {
		rate, err := commission.ParseMoney(cr.Rate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid custom rate", err)
			return
		}
		a.CustomRates = append(a.CustomRates, commission.ProductRate{
			Category: commission.ProductCategory(cr.Category),
			Rate:     rate,
		})
	}

	// Referenced plan must exist and belong to the tenant.
	plan, err := h.Store.GetPlan(r.Context(), rc.TenantID, a.PlanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := rc.CheckTenant(plan.TenantID, "plan", string(plan.ID)); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.SaveAssignment(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

// ListAssignments returns all of an employee's assignments.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	employeeID := commission.EmployeeID(chi.URLParam(r, "id"))

	assignments, err := h.Store.ListByEmployee(r.Context(), rc.TenantID, employeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records a commissionable sale. CommissionableAmount
// defaults to SaleAmount; split rows scale it by split_percent.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req CreateTransactionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !commission.ValidCategory(req.Category) {
		writeError(w, http.StatusBadRequest, "Unknown product category", nil)
		return
	}

	txDate, err := commission.ParseDate(req.TransactionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction_date", err)
		return
	}
	saleAmount, err := commission.ParseMoney(req.SaleAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_amount", err)
		return
	}

	tx := commission.SalesTransaction{
		ID:         commission.TransactionID(req.ID),
		TenantID:   rc.TenantID,
		EmployeeID: commission.EmployeeID(req.EmployeeID),
		Source: commission.SourceRef{
			Type: commission.SourceType(req.SourceType),
			ID:   req.SourceID,
		},
		TransactionDate:      txDate,
		Category:             commission.ProductCategory(req.Category),
		SaleAmount:           saleAmount,
		CommissionableAmount: saleAmount,
		IsSplit:              req.IsSplit,
		PrimaryEmployeeID:    commission.EmployeeID(req.PrimaryEmployeeID),
		IsChargedBack:        req.IsChargedBack,
	}
	if tx.ID == "" {
		tx.ID = commission.TransactionID(uuid.NewString())
	}

	if req.CommissionableAmount != "" {
		commissionable, err := commission.ParseMoney(req.CommissionableAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid commissionable_amount", err)
			return
		}
		tx.CommissionableAmount = commissionable
	}
	if req.IsSplit {
		pct, err := commission.ParseMoney(req.SplitPercent)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid split_percent", err)
			return
		}
		tx.SplitPercent = pct
		if req.CommissionableAmount == "" {
			tx.CommissionableAmount = commission.ApplyRate(saleAmount, pct)
		}
	}

	if err := h.Store.SaveTransaction(r.Context(), tx); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ChargebackTransaction flags a transaction as charged back. Future
// collections exclude it; already-settled commission is corrected via
// a chargeback adjustment, not by rewriting history.
func (h *Handler) ChargebackTransaction(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	id := commission.TransactionID(chi.URLParam(r, "id"))

	// Look the row up via its source listing; there is deliberately no
	// random-access transaction getter in the store contract.
	employeeID := commission.EmployeeID(r.URL.Query().Get("employee_id"))
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id query parameter is required", nil)
		return
	}
	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period window", err)
		return
	}

	txs, err := h.Store.ListForEmployee(r.Context(), rc.TenantID, employeeID, period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, tx := range txs {
		if tx.ID != id {
			continue
		}
		tx.IsChargedBack = true
		if err := h.Store.SaveTransaction(r.Context(), tx); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionDTO(tx))
		return
	}
	writeError(w, http.StatusNotFound, "Transaction not found", nil)
}

// ListTransactions returns an employee's transactions in a window.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	employeeID := commission.EmployeeID(chi.URLParam(r, "id"))

	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period window", err)
		return
	}

	txs, err := h.Store.ListForEmployee(r.Context(), rc.TenantID, employeeID, period)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// periodFromQuery reads ?start=YYYY-MM-DD&end=YYYY-MM-DD, or
// ?quarter=YYYY-Qn for a calendar quarter, defaulting to the current
// month.
func periodFromQuery(r *http.Request) (commission.Period, error) {
	if q := r.URL.Query().Get("quarter"); q != "" {
		return commission.ParseQuarter(q)
	}

	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if start == "" && end == "" {
		today := commission.Today()
		return commission.MonthPeriod(today.Year(), today.Month()), nil
	}

	from, err := commission.ParseDate(start)
	if err != nil {
		return commission.Period{}, err
	}
	to, err := commission.ParseDate(end)
	if err != nil {
		return commission.Period{}, err
	}
	return commission.Period{Start: from, End: to}, nil
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate runs the engine for one employee and period.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req CalculateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := commission.ParseDate(req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start", err)
		return
	}
	end, err := commission.ParseDate(req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end", err)
		return
	}
	period := commission.Period{Start: start, End: end}
	if !period.Valid() {
		writeError(w, http.StatusBadRequest, "period_end precedes period_start", nil)
		return
	}
	periodName := req.PeriodName
	if periodName == "" {
		periodName = period.String()
	}

	calc, err := h.Engine.Calculate(r.Context(), rc, commission.EmployeeID(req.EmployeeID), period, periodName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeCalculation(w, r, rc, calc, http.StatusCreated)
}

// GetCalculation returns a calculation with details and bonuses.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	calc, err := h.Store.GetCalculation(r.Context(), rc.TenantID, commission.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeCalculation(w, r, rc, calc, http.StatusOK)
}

// ListCalculations returns all of an employee's calculations, without
// the per-run breakdown.
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	employeeID := commission.EmployeeID(chi.URLParam(r, "id"))

	calcs, err := h.Store.ListCalculations(r.Context(), rc.TenantID, employeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CalculationDTO, len(calcs))
	for i := range calcs {
		dtos[i] = toCalculationDTO(&calcs[i], nil, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveCalculation transitions calculated -> approved.
func (h *Handler) ApproveCalculation(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	calc, err := h.Settlement.Approve(r.Context(), rc, commission.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeCalculation(w, r, rc, calc, http.StatusOK)
}

// PayCalculation transitions approved -> paid with a payout date.
func (h *Handler) PayCalculation(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req PayRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	payoutDate, err := commission.ParseDate(req.PayoutDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payout_date", err)
		return
	}

	calc, err := h.Settlement.Pay(r.Context(), rc, commission.CalculationID(chi.URLParam(r, "id")), payoutDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeCalculation(w, r, rc, calc, http.StatusOK)
}

// CancelCalculation cancels a draft or calculated run.
func (h *Handler) CancelCalculation(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	calc, err := h.Settlement.Cancel(r.Context(), rc, commission.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeCalculation(w, r, rc, calc, http.StatusOK)
}

// ApplyAdjustments folds approved, unapplied adjustments into an
// existing (possibly finalized) calculation.
func (h *Handler) ApplyAdjustments(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	calc, err := h.Engine.ApplyApprovedAdjustments(r.Context(), rc, commission.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeCalculation(w, r, rc, calc, http.StatusOK)
}

func (h *Handler) writeCalculation(w http.ResponseWriter, r *http.Request, rc commission.RequestContext, calc *commission.Calculation, status int) {
	details, err := h.Store.ListDetails(r.Context(), rc.TenantID, calc.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	bonuses, err := h.Store.ListBonuses(r.Context(), rc.TenantID, calc.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, toCalculationDTO(calc, details, bonuses))
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// CreateAdjustment records a pending signed correction.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req CreateAdjustmentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !commission.ValidAdjustmentType(req.Type) {
		writeError(w, http.StatusBadRequest, "Unknown adjustment type", nil)
		return
	}

	amount, err := commission.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	effective, err := commission.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date", err)
		return
	}

	adj := commission.Adjustment{
		ID:            commission.AdjustmentID(uuid.NewString()),
		TenantID:      rc.TenantID,
		EmployeeID:    commission.EmployeeID(req.EmployeeID),
		Type:          commission.AdjustmentType(req.Type),
		Amount:        amount,
		Reason:        req.Reason,
		EffectiveDate: effective,
		Status:        commission.AdjustmentPending,
	}
	if req.CalculationID != "" {
		// Must reference an existing calculation of this tenant.
		calc, err := h.Store.GetCalculation(r.Context(), rc.TenantID, commission.CalculationID(req.CalculationID))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		adj.CalculationID = &calc.ID
	}

	if err := h.Store.SaveAdjustment(r.Context(), adj); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// GetAdjustment returns one adjustment.
func (h *Handler) GetAdjustment(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	adj, err := h.Store.GetAdjustment(r.Context(), rc.TenantID, commission.AdjustmentID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(*adj))
}

// ApproveAdjustment moves pending -> approved.
func (h *Handler) ApproveAdjustment(w http.ResponseWriter, r *http.Request) {
	h.decideAdjustment(w, r, commission.AdjustmentApproved)
}

// RejectAdjustment moves pending -> rejected.
func (h *Handler) RejectAdjustment(w http.ResponseWriter, r *http.Request) {
	h.decideAdjustment(w, r, commission.AdjustmentRejected)
}

func (h *Handler) decideAdjustment(w http.ResponseWriter, r *http.Request, status commission.AdjustmentStatus) {
	rc := requestContext(r)
	id := commission.AdjustmentID(chi.URLParam(r, "id"))

	if err := h.Store.SetAdjustmentStatus(r.Context(), rc.TenantID, id, status, rc.ActorID, h.Engine.Now()); err != nil {
		writeDomainError(w, err)
		return
	}
	adj, err := h.Store.GetAdjustment(r.Context(), rc.TenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(*adj))
}

// =============================================================================
// DISPUTE HANDLERS
// =============================================================================

// SubmitDispute opens a dispute against a calculation.
func (h *Handler) SubmitDispute(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req SubmitDisputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	expected, err := commission.ParseMoney(req.ExpectedAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expected_amount", err)
		return
	}

	d, err := h.Disputes.Submit(r.Context(), rc, commission.CalculationID(req.CalculationID), expected, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeDTO(d))
}

// GetDispute returns one dispute.
func (h *Handler) GetDispute(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	d, err := h.Store.GetDispute(r.Context(), rc.TenantID, commission.DisputeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// GetDisputeHistory returns the append-only audit trail.
func (h *Handler) GetDisputeHistory(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	id := commission.DisputeID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetDispute(r.Context(), rc.TenantID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	history, err := h.Store.ListHistory(r.Context(), rc.TenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]DisputeHistoryDTO, len(history))
	for i, hist := range history {
		dtos[i] = toHistoryDTO(hist)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AssignDispute moves submitted -> under_review.
func (h *Handler) AssignDispute(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req AssignDisputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Disputes.Assign(r.Context(), rc, commission.DisputeID(chi.URLParam(r, "id")), req.Reviewer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// EscalateDispute moves under_review -> escalated.
func (h *Handler) EscalateDispute(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req EscalateDisputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	note := req.Note
	if note == "" {
		note = "escalated"
	}

	d, err := h.Disputes.Escalate(r.Context(), rc, commission.DisputeID(chi.URLParam(r, "id")), req.AssignTo, note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// ResolveDispute settles a dispute, creating a linked adjustment when
// the resolution changes the payout.
func (h *Handler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req ResolveDisputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount := commission.Zero()
	if req.Amount != "" {
		parsed, err := commission.ParseMoney(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		amount = parsed
	}

	d, err := h.Disputes.Resolve(r.Context(), rc, commission.DisputeID(chi.URLParam(r, "id")),
		commission.ResolutionType(req.ResolutionType), amount, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// RejectDispute rejects a dispute with mandatory notes.
func (h *Handler) RejectDispute(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req RejectDisputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Disputes.Reject(r.Context(), rc, commission.DisputeID(chi.URLParam(r, "id")), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// CloseDispute closes a resolved or rejected dispute.
func (h *Handler) CloseDispute(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	d, err := h.Disputes.Close(r.Context(), rc, commission.DisputeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeDTO(d))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to an HTTP status via its
// stable error code.
func writeDomainError(w http.ResponseWriter, err error) {
	code := commission.ErrorCode(err)

	status := http.StatusInternalServerError
	switch code {
	case "not_found":
		status = http.StatusNotFound
	case "tenant_mismatch":
		status = http.StatusForbidden
	case "already_finalized", "invalid_transition", "ambiguous_assignment":
		status = http.StatusConflict
	default:
		if commission.IsClientError(err) {
			status = http.StatusBadRequest
		}
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
