/*
transaction.go - Commissionable sales transactions and the collector

PURPOSE:
  A SalesTransaction links an originating sale (quote, invoice, contract,
  service call) to the commission pipeline. The Collector gathers an
  employee's unprocessed transactions for a period and validates split
  allocations.

SPLIT COMMISSIONS:
  One sale credited to two employees produces two rows:
  - The primary employee's row carries the full SaleAmount and their
    share of CommissionableAmount.
  - The secondary row carries the split-scaled CommissionableAmount and
    points at the primary via PrimaryEmployeeID.
  Across ALL rows of a sale, split percentages must sum to <= 100%
  (within a small tolerance). Violations are a reportable data error.

CHARGEBACKS:
  Charged-back rows are excluded from the commissionable set but
  retained in the collection result for audit.

PROCESSING LIFECYCLE:
  Calculate() stamps rows with the calculation ID and their commission
  share but leaves IsProcessed false, so re-running before approval is
  safe. Approve() marks linked rows processed, removing them from
  future collections.

SEE ALSO:
  - engine.go: Consumes collection results
  - settlement.go: Marks transactions processed on approval
*/
package commission

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SALES TRANSACTION
// =============================================================================

// SalesTransaction is one commissionable line referencing a sale.
// The originating sale record is never mutated by this workflow.
type SalesTransaction struct {
	ID         TransactionID
	TenantID   TenantID
	EmployeeID EmployeeID
	Source     SourceRef

	TransactionDate      Date
	Category             ProductCategory
	SaleAmount           Money
	CommissionableAmount Money

	// Split commission fields. SplitPercent is this row's share of the
	// sale (0-100); PrimaryEmployeeID points at the primary row's
	// employee for secondary rows.
	IsSplit           bool
	SplitPercent      Rate
	PrimaryEmployeeID EmployeeID

	// IsChargedBack excludes the row from gross but keeps it for audit.
	IsChargedBack bool

	// Stamped by a calculation run.
	IsProcessed      bool
	CalculationID    CalculationID
	CommissionAmount Money
}

// =============================================================================
// COLLECTOR
// =============================================================================

// Collection is the result of gathering transactions for a period.
type Collection struct {
	// Commissionable rows, window-filtered, not yet processed,
	// chargebacks excluded.
	Commissionable []SalesTransaction

	// ChargedBack rows in the window, retained for audit only.
	ChargedBack []SalesTransaction
}

// TotalCommissionable sums the commissionable amounts.
func (c Collection) TotalCommissionable() Money {
	total := Zero()
	for _, tx := range c.Commissionable {
		total = total.Add(tx.CommissionableAmount)
	}
	return total
}

// ByCategory groups commissionable amounts per product category.
func (c Collection) ByCategory() map[ProductCategory]Money {
	out := make(map[ProductCategory]Money)
	for _, tx := range c.Commissionable {
		out[tx.Category] = out[tx.Category].Add(tx.CommissionableAmount)
	}
	return out
}

// Collector gathers an employee's commissionable transactions.
type Collector struct {
	Transactions TransactionStore

	// SplitTolerancePct is the allowed excess over 100% when validating
	// split allocations, in percent points. Zero means exact.
	SplitTolerancePct decimal.Decimal
}

// Collect returns the employee's transactions inside the period that
// are not yet processed. Charged-back rows are split out for audit.
// Split allocations are validated across every row of each source sale
// (not just this employee's); over-allocation is a data error.
func (c *Collector) Collect(ctx context.Context, rc RequestContext, employeeID EmployeeID, period Period) (*Collection, error) {
	txs, err := c.Transactions.ListForEmployee(ctx, rc.TenantID, employeeID, period)
	if err != nil {
		return nil, err
	}

	result := &Collection{}
	splitSources := make(map[SourceRef]bool)

	for _, tx := range txs {
		if err := rc.CheckTenant(tx.TenantID, "transaction", string(tx.ID)); err != nil {
			return nil, err
		}
		if !period.Contains(tx.TransactionDate) {
			continue
		}
		if tx.IsChargedBack {
			result.ChargedBack = append(result.ChargedBack, tx)
			continue
		}
		if tx.IsProcessed {
			continue
		}
		if tx.IsSplit {
			splitSources[tx.Source] = true
		}
		result.Commissionable = append(result.Commissionable, tx)
	}

	for source := range splitSources {
		if err := c.validateSplit(ctx, rc, source); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// validateSplit checks that the split percentages recorded across all
// rows of one sale sum to at most 100% plus tolerance.
func (c *Collector) validateSplit(ctx context.Context, rc RequestContext, source SourceRef) error {
	rows, err := c.Transactions.ListBySource(ctx, rc.TenantID, source)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, row := range rows {
		if !row.IsSplit || row.IsChargedBack {
			continue
		}
		total = total.Add(row.SplitPercent)
	}

	if total.GreaterThan(hundred.Add(c.SplitTolerancePct)) {
		return &SplitOverAllocationError{Source: source, TotalPercent: total}
	}
	return nil
}
