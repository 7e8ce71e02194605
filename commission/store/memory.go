// Package store provides an in-memory implementation of the commission
// repositories, mirroring the SQLite store's semantics: calculation
// uniqueness per (tenant, employee, period), compare-and-set status
// transitions, and an insert-only dispute history.
//
// Used by tests and dev mode.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dealerpoint/commission-engine/commission"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type calcKey struct {
	Tenant   commission.TenantID
	Employee commission.EmployeeID
	Start    string
	End      string
}

type Memory struct {
	mu sync.RWMutex

	plans        map[commission.TenantID]map[commission.PlanID]commission.Plan
	assignments  map[commission.TenantID][]commission.Assignment
	transactions map[commission.TenantID]map[commission.TransactionID]commission.SalesTransaction
	calculations map[commission.TenantID]map[commission.CalculationID]commission.Calculation
	calcByPeriod map[calcKey]commission.CalculationID
	details      map[commission.CalculationID][]commission.Detail
	bonuses      map[commission.CalculationID][]commission.Bonus
	adjustments  map[commission.TenantID]map[commission.AdjustmentID]commission.Adjustment
	disputes     map[commission.TenantID]map[commission.DisputeID]commission.Dispute
	history      map[commission.DisputeID][]commission.DisputeHistory
}

func NewMemory() *Memory {
	return &Memory{
		plans:        make(map[commission.TenantID]map[commission.PlanID]commission.Plan),
		assignments:  make(map[commission.TenantID][]commission.Assignment),
		transactions: make(map[commission.TenantID]map[commission.TransactionID]commission.SalesTransaction),
		calculations: make(map[commission.TenantID]map[commission.CalculationID]commission.Calculation),
		calcByPeriod: make(map[calcKey]commission.CalculationID),
		details:      make(map[commission.CalculationID][]commission.Detail),
		bonuses:      make(map[commission.CalculationID][]commission.Bonus),
		adjustments:  make(map[commission.TenantID]map[commission.AdjustmentID]commission.Adjustment),
		disputes:     make(map[commission.TenantID]map[commission.DisputeID]commission.Dispute),
		history:      make(map[commission.DisputeID][]commission.DisputeHistory),
	}
}

func keyFor(tenant commission.TenantID, employee commission.EmployeeID, period commission.Period) calcKey {
	return calcKey{Tenant: tenant, Employee: employee, Start: period.Start.String(), End: period.End.String()}
}

// =============================================================================
// PLAN STORE
// =============================================================================

func (m *Memory) SavePlan(_ context.Context, plan *commission.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plans[plan.TenantID] == nil {
		m.plans[plan.TenantID] = make(map[commission.PlanID]commission.Plan)
	}
	m.plans[plan.TenantID][plan.ID] = *plan
	return nil
}

func (m *Memory) GetPlan(_ context.Context, tenantID commission.TenantID, id commission.PlanID) (*commission.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[tenantID][id]
	if !ok {
		return nil, commission.ErrPlanNotFound
	}
	return &p, nil
}

func (m *Memory) ListPlans(_ context.Context, tenantID commission.TenantID) ([]commission.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.Plan
	for _, p := range m.plans[tenantID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

func (m *Memory) SaveAssignment(_ context.Context, a commission.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.assignments[a.TenantID] {
		if existing.ID == a.ID {
			m.assignments[a.TenantID][i] = a
			return nil
		}
	}
	m.assignments[a.TenantID] = append(m.assignments[a.TenantID], a)
	return nil
}

func (m *Memory) ListByEmployee(_ context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID) ([]commission.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.Assignment
	for _, a := range m.assignments[tenantID] {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (m *Memory) SaveTransaction(_ context.Context, tx commission.SalesTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transactions[tx.TenantID] == nil {
		m.transactions[tx.TenantID] = make(map[commission.TransactionID]commission.SalesTransaction)
	}
	m.transactions[tx.TenantID][tx.ID] = tx
	return nil
}

func (m *Memory) ListForEmployee(_ context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period) ([]commission.SalesTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.SalesTransaction
	for _, tx := range m.transactions[tenantID] {
		if tx.EmployeeID == employeeID && period.Contains(tx.TransactionDate) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListBySource(_ context.Context, tenantID commission.TenantID, source commission.SourceRef) ([]commission.SalesTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.SalesTransaction
	for _, tx := range m.transactions[tenantID] {
		if tx.Source == source {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) LinkToCalculation(_ context.Context, tenantID commission.TenantID, calcID commission.CalculationID, amounts map[commission.TransactionID]commission.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, amount := range amounts {
		tx, ok := m.transactions[tenantID][id]
		if !ok {
			continue
		}
		tx.CalculationID = calcID
		tx.CommissionAmount = amount
		m.transactions[tenantID][id] = tx
	}
	return nil
}

func (m *Memory) UnlinkCalculation(_ context.Context, tenantID commission.TenantID, calcID commission.CalculationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tx := range m.transactions[tenantID] {
		if tx.CalculationID == calcID && !tx.IsProcessed {
			tx.CalculationID = ""
			tx.CommissionAmount = commission.Zero()
			m.transactions[tenantID][id] = tx
		}
	}
	return nil
}

func (m *Memory) MarkProcessed(_ context.Context, tenantID commission.TenantID, calcID commission.CalculationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tx := range m.transactions[tenantID] {
		if tx.CalculationID == calcID {
			tx.IsProcessed = true
			m.transactions[tenantID][id] = tx
		}
	}
	return nil
}

// =============================================================================
// CALCULATION STORE
// =============================================================================

func (m *Memory) ReplaceCalculation(_ context.Context, calc *commission.Calculation, details []commission.Detail, bonuses []commission.Bonus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyFor(calc.TenantID, calc.EmployeeID, calc.Period)
	if existingID, ok := m.calcByPeriod[k]; ok && existingID != calc.ID {
		// Uniqueness: the period key always converges on one row.
		calc.ID = existingID
	}

	if m.calculations[calc.TenantID] == nil {
		m.calculations[calc.TenantID] = make(map[commission.CalculationID]commission.Calculation)
	}
	m.calculations[calc.TenantID][calc.ID] = *calc
	m.calcByPeriod[k] = calc.ID

	m.details[calc.ID] = append([]commission.Detail(nil), details...)
	m.bonuses[calc.ID] = append([]commission.Bonus(nil), bonuses...)
	return nil
}

func (m *Memory) GetCalculation(_ context.Context, tenantID commission.TenantID, id commission.CalculationID) (*commission.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.calculations[tenantID][id]
	if !ok {
		return nil, commission.ErrCalculationNotFound
	}
	return &c, nil
}

func (m *Memory) FindCalculation(_ context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period) (*commission.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.calcByPeriod[keyFor(tenantID, employeeID, period)]
	if !ok {
		return nil, nil
	}
	c := m.calculations[tenantID][id]
	return &c, nil
}

func (m *Memory) ListCalculations(_ context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID) ([]commission.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.Calculation
	for _, c := range m.calculations[tenantID] {
		if c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, nil
}

func (m *Memory) ListDetails(_ context.Context, tenantID commission.TenantID, calcID commission.CalculationID) ([]commission.Detail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.calculations[tenantID][calcID]; !ok {
		return nil, commission.ErrCalculationNotFound
	}
	return append([]commission.Detail(nil), m.details[calcID]...), nil
}

func (m *Memory) ListBonuses(_ context.Context, tenantID commission.TenantID, calcID commission.CalculationID) ([]commission.Bonus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.calculations[tenantID][calcID]; !ok {
		return nil, commission.ErrCalculationNotFound
	}
	return append([]commission.Bonus(nil), m.bonuses[calcID]...), nil
}

func (m *Memory) TransitionStatus(_ context.Context, tenantID commission.TenantID, id commission.CalculationID, from, to commission.CalculationStatus, stamps commission.StatusStamps) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calculations[tenantID][id]
	if !ok {
		return commission.ErrCalculationNotFound
	}
	if c.Status != from {
		return &commission.InvalidTransitionError{Kind: "calculation", ID: string(id),
			From: string(c.Status), To: string(to)}
	}

	c.Status = to
	if stamps.ApprovedAt != nil {
		c.ApprovedAt = stamps.ApprovedAt
		c.ApprovedBy = stamps.ApprovedBy
	}
	if stamps.PaidAt != nil {
		c.PaidAt = stamps.PaidAt
	}
	if stamps.PayoutDate != nil {
		c.PayoutDate = stamps.PayoutDate
	}
	c.UpdatedAt = time.Now().UTC()
	m.calculations[tenantID][id] = c
	return nil
}

func (m *Memory) UpdateTotals(_ context.Context, tenantID commission.TenantID, id commission.CalculationID, totalAdjustments, net commission.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calculations[tenantID][id]
	if !ok {
		return commission.ErrCalculationNotFound
	}
	c.TotalAdjustments = totalAdjustments
	c.NetCommission = net
	c.UpdatedAt = time.Now().UTC()
	m.calculations[tenantID][id] = c
	return nil
}

// =============================================================================
// ADJUSTMENT STORE
// =============================================================================

func (m *Memory) SaveAdjustment(_ context.Context, adj commission.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjustments[adj.TenantID] == nil {
		m.adjustments[adj.TenantID] = make(map[commission.AdjustmentID]commission.Adjustment)
	}
	m.adjustments[adj.TenantID][adj.ID] = adj
	return nil
}

func (m *Memory) GetAdjustment(_ context.Context, tenantID commission.TenantID, id commission.AdjustmentID) (*commission.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adjustments[tenantID][id]
	if !ok {
		return nil, commission.ErrAdjustmentNotFound
	}
	return &a, nil
}

func (m *Memory) SetAdjustmentStatus(_ context.Context, tenantID commission.TenantID, id commission.AdjustmentID, status commission.AdjustmentStatus, actor string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adjustments[tenantID][id]
	if !ok {
		return commission.ErrAdjustmentNotFound
	}
	if a.Status != commission.AdjustmentPending {
		return &commission.InvalidTransitionError{Kind: "adjustment", ID: string(id),
			From: string(a.Status), To: string(status)}
	}
	a.Status = status
	a.ApprovedBy = actor
	a.ApprovedAt = &at
	m.adjustments[tenantID][id] = a
	return nil
}

func (m *Memory) ListAttachedAdjustments(_ context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period, calcID commission.CalculationID) ([]commission.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.Adjustment
	for _, a := range m.adjustments[tenantID] {
		if a.EmployeeID != employeeID || a.Status != commission.AdjustmentApproved {
			continue
		}
		linked := a.CalculationID != nil && *a.CalculationID == calcID
		standalone := a.CalculationID == nil && !a.Applied && period.Contains(a.EffectiveDate)
		if linked || standalone {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListApprovedUnapplied(_ context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period, calcID commission.CalculationID) ([]commission.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.Adjustment
	for _, a := range m.adjustments[tenantID] {
		if a.EmployeeID != employeeID || a.Status != commission.AdjustmentApproved || a.Applied {
			continue
		}
		linked := a.CalculationID != nil && *a.CalculationID == calcID
		standalone := a.CalculationID == nil && period.Contains(a.EffectiveDate)
		if linked || standalone {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) MarkApplied(_ context.Context, tenantID commission.TenantID, ids []commission.AdjustmentID, calcID commission.CalculationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		a, ok := m.adjustments[tenantID][id]
		if !ok {
			continue
		}
		a.Applied = true
		a.CalculationID = &calcID
		m.adjustments[tenantID][id] = a
	}
	return nil
}

// =============================================================================
// DISPUTE STORE - History is insert-only
// =============================================================================

func (m *Memory) SaveDispute(_ context.Context, d commission.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disputes[d.TenantID] == nil {
		m.disputes[d.TenantID] = make(map[commission.DisputeID]commission.Dispute)
	}
	m.disputes[d.TenantID][d.ID] = d
	return nil
}

func (m *Memory) GetDispute(_ context.Context, tenantID commission.TenantID, id commission.DisputeID) (*commission.Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.disputes[tenantID][id]
	if !ok {
		return nil, commission.ErrDisputeNotFound
	}
	return &d, nil
}

func (m *Memory) ListDisputesByCalculation(_ context.Context, tenantID commission.TenantID, calcID commission.CalculationID) ([]commission.Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.Dispute
	for _, d := range m.disputes[tenantID] {
		if d.CalculationID == calcID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) TransitionDispute(_ context.Context, tenantID commission.TenantID, d *commission.Dispute, from commission.DisputeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.disputes[tenantID][d.ID]
	if !ok {
		return commission.ErrDisputeNotFound
	}
	if stored.Status != from {
		return &commission.InvalidTransitionError{Kind: "dispute", ID: string(d.ID),
			From: string(stored.Status), To: string(d.Status)}
	}
	m.disputes[tenantID][d.ID] = *d
	return nil
}

func (m *Memory) AppendHistory(_ context.Context, h commission.DisputeHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[h.DisputeID] = append(m.history[h.DisputeID], h)
	return nil
}

func (m *Memory) ListHistory(_ context.Context, tenantID commission.TenantID, disputeID commission.DisputeID) ([]commission.DisputeHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.DisputeHistory
	for _, h := range m.history[disputeID] {
		if h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	return out, nil
}
