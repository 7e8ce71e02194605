/*
Package sqlite provides the SQLite-backed implementation of the
commission repositories.

PURPOSE:
  Implements commission.Store using database/sql. In production the
  same patterns apply to PostgreSQL - only minor dialect differences.

KEY TABLES:
  plans, plan_tiers, plan_product_rates:  plan definitions
  assignments:                            employee-to-plan mappings
  sales_transactions:                     commissionable sale rows
  calculations, calculation_details,
  calculation_bonuses:                    engine output
  adjustments:                            signed corrections
  disputes, dispute_history:              dispute workflow + audit trail

SCHEMA-ENFORCED CONTRACTS:
  - idx_calculations_period_unique enforces one calculation per
    (tenant, employee, period); concurrent runs converge on one row.
  - Status transitions are conditional UPDATEs checking rows-affected,
    so double-approve/double-pay races lose cleanly.
  - dispute_history has INSERT and SELECT paths only. No UPDATE or
    DELETE statement exists for it anywhere in this package.

MONEY:
  Stored as decimal TEXT, never floats.

WAL MODE:
  Opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := commission.NewEngine(store, notifier)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - commission/store.go: Interface contracts
  - commission/store/memory.go: In-memory twin for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dealerpoint/commission-engine/commission"
)

// Store implements commission.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Commission plans (own tiers and product rates)
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		plan_type TEXT NOT NULL,
		mode TEXT NOT NULL,
		payment_frequency TEXT NOT NULL,
		payment_delay_days INTEGER DEFAULT 0,
		minimum_payment TEXT NOT NULL DEFAULT '0',
		split_allowed BOOLEAN DEFAULT FALSE,
		chargeback_enabled BOOLEAN DEFAULT FALSE,
		chargeback_period_days INTEGER DEFAULT 0,
		effective_date TEXT NOT NULL,
		end_date TEXT,
		bonus_rules_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS plan_tiers (
		tenant_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		tier_level INTEGER NOT NULL,
		min_sales TEXT NOT NULL,
		max_sales TEXT,
		rate TEXT NOT NULL,
		bonus_threshold TEXT,
		bonus_amount TEXT,
		PRIMARY KEY (tenant_id, plan_id, tier_level)
	);

	CREATE TABLE IF NOT EXISTS plan_product_rates (
		tenant_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		category TEXT NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (tenant_id, plan_id, category)
	);

	-- Employee plan assignments
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		quota_target TEXT,
		custom_rates_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_employee
		ON assignments(tenant_id, employee_id);

	-- Commissionable sales transactions
	CREATE TABLE IF NOT EXISTS sales_transactions (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		category TEXT NOT NULL,
		sale_amount TEXT NOT NULL,
		commissionable_amount TEXT NOT NULL,
		is_split BOOLEAN DEFAULT FALSE,
		split_percent TEXT NOT NULL DEFAULT '0',
		primary_employee_id TEXT,
		is_charged_back BOOLEAN DEFAULT FALSE,
		is_processed BOOLEAN DEFAULT FALSE,
		calculation_id TEXT,
		commission_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	-- Collection hot path: employee rows inside a period window
	CREATE INDEX IF NOT EXISTS idx_transactions_employee_date
		ON sales_transactions(tenant_id, employee_id, transaction_date);
	-- Split validation: every row of one originating sale
	CREATE INDEX IF NOT EXISTS idx_transactions_source
		ON sales_transactions(tenant_id, source_type, source_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_calculation
		ON sales_transactions(tenant_id, calculation_id)
		WHERE calculation_id IS NOT NULL;

	-- Calculations: one row per employee per period
	CREATE TABLE IF NOT EXISTS calculations (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		period_name TEXT NOT NULL,
		total_sales TEXT NOT NULL DEFAULT '0',
		quota_target TEXT,
		quota_achievement TEXT NOT NULL DEFAULT '0',
		gross_commission TEXT NOT NULL DEFAULT '0',
		total_bonuses TEXT NOT NULL DEFAULT '0',
		total_adjustments TEXT NOT NULL DEFAULT '0',
		net_commission TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'draft',
		needs_review BOOLEAN DEFAULT FALSE,
		approved_at TEXT,
		approved_by TEXT,
		paid_at TEXT,
		payout_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	-- CRITICAL: two concurrent runs for the same employee/period must
	-- never produce two rows
	CREATE UNIQUE INDEX IF NOT EXISTS idx_calculations_period_unique
		ON calculations(tenant_id, employee_id, period_start, period_end);
	CREATE INDEX IF NOT EXISTS idx_calculations_status
		ON calculations(tenant_id, status);

	CREATE TABLE IF NOT EXISTS calculation_details (
		tenant_id TEXT NOT NULL,
		calculation_id TEXT NOT NULL,
		category TEXT NOT NULL,
		sales_amount TEXT NOT NULL,
		rate TEXT NOT NULL,
		commission_amount TEXT NOT NULL,
		tier_level INTEGER DEFAULT 0,
		PRIMARY KEY (tenant_id, calculation_id, category)
	);

	CREATE TABLE IF NOT EXISTS calculation_bonuses (
		tenant_id TEXT NOT NULL,
		calculation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		criteria TEXT NOT NULL,
		amount TEXT NOT NULL,
		eligibility_met BOOLEAN DEFAULT FALSE,
		PRIMARY KEY (tenant_id, calculation_id, seq)
	);

	-- Adjustments (may be standalone: calculation_id NULL)
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		calculation_id TEXT,
		adjustment_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT,
		effective_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		approved_by TEXT,
		approved_at TEXT,
		applied BOOLEAN DEFAULT FALSE,
		dispute_id TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_employee
		ON adjustments(tenant_id, employee_id, status);

	-- Disputes
	CREATE TABLE IF NOT EXISTS disputes (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		calculation_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		submitted_by TEXT NOT NULL,
		disputed_amount TEXT NOT NULL,
		expected_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'submitted',
		assigned_to TEXT,
		reason TEXT,
		resolution_type TEXT,
		resolution_notes TEXT,
		resolution_amount TEXT NOT NULL DEFAULT '0',
		adjustment_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_disputes_calculation
		ON disputes(tenant_id, calculation_id);

	-- Dispute history: APPEND-ONLY audit trail
	CREATE TABLE IF NOT EXISTS dispute_history (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		dispute_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dispute_history_dispute
		ON dispute_history(tenant_id, dispute_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d *commission.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullMoney(m *commission.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// decoder converts a row's text columns back into domain values. It
// holds the first conversion failure so a corrupted stored value
// surfaces as a read error instead of a silent zero.
type decoder struct {
	err error
}

func (dc *decoder) fail(what, value string, err error) {
	if dc.err == nil {
		dc.err = fmt.Errorf("corrupt stored %s %q: %w", what, value, err)
	}
}

func (dc *decoder) money(s string) commission.Money {
	if s == "" {
		return commission.Zero()
	}
	m, err := commission.ParseMoney(s)
	if err != nil {
		dc.fail("decimal", s, err)
		return commission.Zero()
	}
	return m
}

func (dc *decoder) moneyPtr(ns sql.NullString) *commission.Money {
	if !ns.Valid {
		return nil
	}
	m := dc.money(ns.String)
	return &m
}

func (dc *decoder) date(s string) commission.Date {
	d, err := commission.ParseDate(s)
	if err != nil {
		dc.fail("date", s, err)
	}
	return d
}

func (dc *decoder) datePtr(ns sql.NullString) *commission.Date {
	if !ns.Valid {
		return nil
	}
	d := dc.date(ns.String)
	return &d
}

func (dc *decoder) timestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		dc.fail("timestamp", s, err)
	}
	return t
}

func (dc *decoder) timestampPtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := dc.timestamp(ns.String)
	return &t
}

// =============================================================================
// PLAN STORE
// =============================================================================

// SavePlan validates and writes a plan with its tiers, product rates
// and bonus rules in one transaction.
func (s *Store) SavePlan(ctx context.Context, plan *commission.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bonusJSON, err := commission.EncodeBonusRules(plan.BonusRules)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans
		(id, tenant_id, name, plan_type, mode, payment_frequency, payment_delay_days,
		 minimum_payment, split_allowed, chargeback_enabled, chargeback_period_days,
		 effective_date, end_date, bonus_rules_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name,
			plan_type = excluded.plan_type,
			mode = excluded.mode,
			payment_frequency = excluded.payment_frequency,
			payment_delay_days = excluded.payment_delay_days,
			minimum_payment = excluded.minimum_payment,
			split_allowed = excluded.split_allowed,
			chargeback_enabled = excluded.chargeback_enabled,
			chargeback_period_days = excluded.chargeback_period_days,
			effective_date = excluded.effective_date,
			end_date = excluded.end_date,
			bonus_rules_json = excluded.bonus_rules_json,
			updated_at = excluded.updated_at
	`,
		plan.ID, plan.TenantID, plan.Name, plan.PlanType, plan.Mode,
		plan.PaymentFrequency, plan.PaymentDelayDays, plan.MinimumPayment.String(),
		plan.SplitAllowed, plan.ChargebackEnabled, plan.ChargebackPeriodDays,
		plan.EffectiveDate.String(), nullDate(plan.EndDate),
		nullString(string(bonusJSON)), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	// Child rows are wholly owned: rewrite them.
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_tiers WHERE tenant_id = ? AND plan_id = ?`, plan.TenantID, plan.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_product_rates WHERE tenant_id = ? AND plan_id = ?`, plan.TenantID, plan.ID); err != nil {
		return err
	}

	for _, t := range plan.Tiers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plan_tiers
			(tenant_id, plan_id, tier_level, min_sales, max_sales, rate, bonus_threshold, bonus_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, plan.TenantID, plan.ID, t.Level, t.MinSales.String(), nullMoney(t.MaxSales),
			t.Rate.String(), nullMoney(t.BonusThreshold), nullMoney(t.BonusAmount))
		if err != nil {
			return fmt.Errorf("failed to save tier %d: %w", t.Level, err)
		}
	}

	for _, pr := range plan.ProductRates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plan_product_rates (tenant_id, plan_id, category, rate)
			VALUES (?, ?, ?, ?)
		`, plan.TenantID, plan.ID, pr.Category, pr.Rate.String())
		if err != nil {
			return fmt.Errorf("failed to save product rate %s: %w", pr.Category, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetPlan(ctx context.Context, tenantID commission.TenantID, id commission.PlanID) (*commission.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, plan_type, mode, payment_frequency, payment_delay_days,
		       minimum_payment, split_allowed, chargeback_enabled, chargeback_period_days,
		       effective_date, end_date, bonus_rules_json
		FROM plans WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, commission.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadPlanChildren(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Store) ListPlans(ctx context.Context, tenantID commission.TenantID) ([]commission.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, plan_type, mode, payment_frequency, payment_delay_days,
		       minimum_payment, split_allowed, chargeback_enabled, chargeback_period_days,
		       effective_date, end_date, bonus_rules_json
		FROM plans WHERE tenant_id = ? ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []commission.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		if err := s.loadPlanChildren(ctx, plan); err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func scanPlan(r rowScanner) (*commission.Plan, error) {
	var (
		plan      commission.Plan
		minimum   string
		effective string
		endDate   sql.NullString
		bonusJSON sql.NullString
	)
	err := r.Scan(
		&plan.ID, &plan.TenantID, &plan.Name, &plan.PlanType, &plan.Mode,
		&plan.PaymentFrequency, &plan.PaymentDelayDays, &minimum,
		&plan.SplitAllowed, &plan.ChargebackEnabled, &plan.ChargebackPeriodDays,
		&effective, &endDate, &bonusJSON,
	)
	if err != nil {
		return nil, err
	}

	var dc decoder
	plan.MinimumPayment = dc.money(minimum)
	plan.EffectiveDate = dc.date(effective)
	plan.EndDate = dc.datePtr(endDate)
	if dc.err != nil {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, dc.err)
	}
	if bonusJSON.Valid && bonusJSON.String != "" {
		rules, err := commission.DecodeBonusRules([]byte(bonusJSON.String))
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
		}
		plan.BonusRules = rules
	}
	return &plan, nil
}

func (s *Store) loadPlanChildren(ctx context.Context, plan *commission.Plan) error {
	tierRows, err := s.db.QueryContext(ctx, `
		SELECT tier_level, min_sales, max_sales, rate, bonus_threshold, bonus_amount
		FROM plan_tiers WHERE tenant_id = ? AND plan_id = ? ORDER BY tier_level
	`, plan.TenantID, plan.ID)
	if err != nil {
		return err
	}
	defer tierRows.Close()

	for tierRows.Next() {
		var (
			t        commission.Tier
			minSales string
			maxSales sql.NullString
			rate     string
			bonusThr sql.NullString
			bonusAmt sql.NullString
		)
		if err := tierRows.Scan(&t.Level, &minSales, &maxSales, &rate, &bonusThr, &bonusAmt); err != nil {
			return err
		}
		var dc decoder
		t.MinSales = dc.money(minSales)
		t.MaxSales = dc.moneyPtr(maxSales)
		t.Rate = dc.money(rate)
		t.BonusThreshold = dc.moneyPtr(bonusThr)
		t.BonusAmount = dc.moneyPtr(bonusAmt)
		if dc.err != nil {
			return fmt.Errorf("plan %s tier %d: %w", plan.ID, t.Level, dc.err)
		}
		plan.Tiers = append(plan.Tiers, t)
	}
	if err := tierRows.Err(); err != nil {
		return err
	}

	rateRows, err := s.db.QueryContext(ctx, `
		SELECT category, rate FROM plan_product_rates
		WHERE tenant_id = ? AND plan_id = ? ORDER BY category
	`, plan.TenantID, plan.ID)
	if err != nil {
		return err
	}
	defer rateRows.Close()

	for rateRows.Next() {
		var (
			pr   commission.ProductRate
			rate string
		)
		if err := rateRows.Scan(&pr.Category, &rate); err != nil {
			return err
		}
		var dc decoder
		pr.Rate = dc.money(rate)
		if dc.err != nil {
			return fmt.Errorf("plan %s rate %s: %w", plan.ID, pr.Category, dc.err)
		}
		plan.ProductRates = append(plan.ProductRates, pr)
	}
	return rateRows.Err()
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

func (s *Store) SaveAssignment(ctx context.Context, a commission.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var customJSON []byte
	if len(a.CustomRates) > 0 {
		var err error
		customJSON, err = json.Marshal(a.CustomRates)
		if err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments
		(id, tenant_id, employee_id, plan_id, effective_from, effective_to,
		 quota_target, custom_rates_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			plan_id = excluded.plan_id,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			quota_target = excluded.quota_target,
			custom_rates_json = excluded.custom_rates_json
	`, a.ID, a.TenantID, a.EmployeeID, a.PlanID,
		a.EffectiveFrom.String(), nullDate(a.EffectiveTo),
		nullMoney(a.QuotaTarget), nullString(string(customJSON)),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *Store) ListByEmployee(ctx context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID) ([]commission.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, employee_id, plan_id, effective_from, effective_to,
		       quota_target, custom_rates_json
		FROM assignments WHERE tenant_id = ? AND employee_id = ?
		ORDER BY effective_from
	`, tenantID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []commission.Assignment
	for rows.Next() {
		var (
			a           commission.Assignment
			from        string
			to          sql.NullString
			quotaTarget sql.NullString
			customJSON  sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.EmployeeID, &a.PlanID, &from, &to, &quotaTarget, &customJSON); err != nil {
			return nil, err
		}
		var dc decoder
		a.EffectiveFrom = dc.date(from)
		a.EffectiveTo = dc.datePtr(to)
		a.QuotaTarget = dc.moneyPtr(quotaTarget)
		if dc.err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.ID, dc.err)
		}
		if customJSON.Valid && customJSON.String != "" {
			if err := json.Unmarshal([]byte(customJSON.String), &a.CustomRates); err != nil {
				return nil, fmt.Errorf("assignment %s: bad custom rates: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (s *Store) SaveTransaction(ctx context.Context, tx commission.SalesTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales_transactions
		(id, tenant_id, employee_id, source_type, source_id, transaction_date, category,
		 sale_amount, commissionable_amount, is_split, split_percent, primary_employee_id,
		 is_charged_back, is_processed, calculation_id, commission_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			category = excluded.category,
			commissionable_amount = excluded.commissionable_amount,
			is_charged_back = excluded.is_charged_back
	`, tx.ID, tx.TenantID, tx.EmployeeID, tx.Source.Type, tx.Source.ID,
		tx.TransactionDate.String(), tx.Category,
		tx.SaleAmount.String(), tx.CommissionableAmount.String(),
		tx.IsSplit, tx.SplitPercent.String(), nullString(string(tx.PrimaryEmployeeID)),
		tx.IsChargedBack, tx.IsProcessed, nullString(string(tx.CalculationID)),
		tx.CommissionAmount.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
	id, tenant_id, employee_id, source_type, source_id, transaction_date, category,
	sale_amount, commissionable_amount, is_split, split_percent, primary_employee_id,
	is_charged_back, is_processed, calculation_id, commission_amount`

func (s *Store) ListForEmployee(ctx context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period) ([]commission.SalesTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM sales_transactions
		WHERE tenant_id = ? AND employee_id = ?
		  AND transaction_date >= ? AND transaction_date <= ?
		ORDER BY transaction_date, id
	`, tenantID, employeeID, period.Start.String(), period.End.String())
}

func (s *Store) ListBySource(ctx context.Context, tenantID commission.TenantID, source commission.SourceRef) ([]commission.SalesTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM sales_transactions
		WHERE tenant_id = ? AND source_type = ? AND source_id = ?
		ORDER BY id
	`, tenantID, source.Type, source.ID)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]commission.SalesTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []commission.SalesTransaction
	for rows.Next() {
		var (
			tx             commission.SalesTransaction
			txDate         string
			saleAmount     string
			commissionable string
			splitPercent   string
			primary        sql.NullString
			calcID         sql.NullString
			commAmount     string
		)
		err := rows.Scan(
			&tx.ID, &tx.TenantID, &tx.EmployeeID, &tx.Source.Type, &tx.Source.ID,
			&txDate, &tx.Category, &saleAmount, &commissionable,
			&tx.IsSplit, &splitPercent, &primary,
			&tx.IsChargedBack, &tx.IsProcessed, &calcID, &commAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		var dc decoder
		tx.TransactionDate = dc.date(txDate)
		tx.SaleAmount = dc.money(saleAmount)
		tx.CommissionableAmount = dc.money(commissionable)
		tx.SplitPercent = dc.money(splitPercent)
		tx.PrimaryEmployeeID = commission.EmployeeID(primary.String)
		tx.CalculationID = commission.CalculationID(calcID.String)
		tx.CommissionAmount = dc.money(commAmount)
		if dc.err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, dc.err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) LinkToCalculation(ctx context.Context, tenantID commission.TenantID, calcID commission.CalculationID, amounts map[commission.TransactionID]commission.Money) error {
	if len(amounts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for id, amount := range amounts {
		_, err := tx.ExecContext(ctx, `
			UPDATE sales_transactions SET calculation_id = ?, commission_amount = ?
			WHERE tenant_id = ? AND id = ?
		`, calcID, amount.String(), tenantID, id)
		if err != nil {
			return fmt.Errorf("failed to link transaction %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) UnlinkCalculation(ctx context.Context, tenantID commission.TenantID, calcID commission.CalculationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Processed rows keep their stamp: they belong to a paid-out run.
	_, err := s.db.ExecContext(ctx, `
		UPDATE sales_transactions SET calculation_id = NULL, commission_amount = '0'
		WHERE tenant_id = ? AND calculation_id = ? AND is_processed = FALSE
	`, tenantID, calcID)
	return err
}

func (s *Store) MarkProcessed(ctx context.Context, tenantID commission.TenantID, calcID commission.CalculationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE sales_transactions SET is_processed = TRUE
		WHERE tenant_id = ? AND calculation_id = ?
	`, tenantID, calcID)
	return err
}

// =============================================================================
// CALCULATION STORE
// =============================================================================

// ReplaceCalculation upserts on the (tenant, employee, period) unique
// key and rewrites the owned detail and bonus rows atomically.
func (s *Store) ReplaceCalculation(ctx context.Context, calc *commission.Calculation, details []commission.Detail, bonuses []commission.Bonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Converge on the existing row's ID when the period key is taken.
	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM calculations
		WHERE tenant_id = ? AND employee_id = ? AND period_start = ? AND period_end = ?
	`, calc.TenantID, calc.EmployeeID, calc.Period.Start.String(), calc.Period.End.String()).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if existingID != "" {
		calc.ID = commission.CalculationID(existingID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO calculations
		(id, tenant_id, employee_id, plan_id, period_start, period_end, period_name,
		 total_sales, quota_target, quota_achievement, gross_commission, total_bonuses,
		 total_adjustments, net_commission, status, needs_review,
		 approved_at, approved_by, paid_at, payout_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, employee_id, period_start, period_end) DO UPDATE SET
			plan_id = excluded.plan_id,
			period_name = excluded.period_name,
			total_sales = excluded.total_sales,
			quota_target = excluded.quota_target,
			quota_achievement = excluded.quota_achievement,
			gross_commission = excluded.gross_commission,
			total_bonuses = excluded.total_bonuses,
			total_adjustments = excluded.total_adjustments,
			net_commission = excluded.net_commission,
			status = excluded.status,
			needs_review = excluded.needs_review,
			updated_at = excluded.updated_at
	`, calc.ID, calc.TenantID, calc.EmployeeID, calc.PlanID,
		calc.Period.Start.String(), calc.Period.End.String(), calc.PeriodName,
		calc.TotalSales.String(), nullMoney(calc.QuotaTarget), calc.QuotaAchievement.String(),
		calc.GrossCommission.String(), calc.TotalBonuses.String(),
		calc.TotalAdjustments.String(), calc.NetCommission.String(),
		calc.Status, calc.NeedsReview,
		nullTime(calc.ApprovedAt), nullString(calc.ApprovedBy),
		nullTime(calc.PaidAt), nullDate(calc.PayoutDate),
		calc.CreatedAt.UTC().Format(time.RFC3339), calc.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save calculation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM calculation_details WHERE tenant_id = ? AND calculation_id = ?`, calc.TenantID, calc.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM calculation_bonuses WHERE tenant_id = ? AND calculation_id = ?`, calc.TenantID, calc.ID); err != nil {
		return err
	}

	for _, d := range details {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calculation_details
			(tenant_id, calculation_id, category, sales_amount, rate, commission_amount, tier_level)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, calc.TenantID, calc.ID, d.Category, d.SalesAmount.String(),
			d.Rate.String(), d.CommissionAmount.String(), d.TierLevel)
		if err != nil {
			return fmt.Errorf("failed to save detail %s: %w", d.Category, err)
		}
	}

	for i, b := range bonuses {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calculation_bonuses
			(tenant_id, calculation_id, seq, kind, criteria, amount, eligibility_met)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, calc.TenantID, calc.ID, i, b.Kind, b.Criteria, b.Amount.String(), b.EligibilityMet)
		if err != nil {
			return fmt.Errorf("failed to save bonus row: %w", err)
		}
	}

	return tx.Commit()
}

const calculationColumns = `
	id, tenant_id, employee_id, plan_id, period_start, period_end, period_name,
	total_sales, quota_target, quota_achievement, gross_commission, total_bonuses,
	total_adjustments, net_commission, status, needs_review,
	approved_at, approved_by, paid_at, payout_date, created_at, updated_at`

func (s *Store) GetCalculation(ctx context.Context, tenantID commission.TenantID, id commission.CalculationID) (*commission.Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+calculationColumns+` FROM calculations WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	calc, err := scanCalculation(row)
	if err == sql.ErrNoRows {
		return nil, commission.ErrCalculationNotFound
	}
	return calc, err
}

func (s *Store) FindCalculation(ctx context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period) (*commission.Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+calculationColumns+` FROM calculations
		 WHERE tenant_id = ? AND employee_id = ? AND period_start = ? AND period_end = ?`,
		tenantID, employeeID, period.Start.String(), period.End.String())
	calc, err := scanCalculation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return calc, err
}

func (s *Store) ListCalculations(ctx context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID) ([]commission.Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+calculationColumns+` FROM calculations
		 WHERE tenant_id = ? AND employee_id = ? ORDER BY period_start`,
		tenantID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	defer rows.Close()

	var out []commission.Calculation
	for rows.Next() {
		calc, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *calc)
	}
	return out, rows.Err()
}

func scanCalculation(r rowScanner) (*commission.Calculation, error) {
	var (
		calc             commission.Calculation
		periodStart      string
		periodEnd        string
		totalSales       string
		quotaTarget      sql.NullString
		quotaAchievement string
		gross            string
		bonuses          string
		adjustments      string
		net              string
		approvedAt       sql.NullString
		approvedBy       sql.NullString
		paidAt           sql.NullString
		payoutDate       sql.NullString
		createdAt        string
		updatedAt        string
	)
	err := r.Scan(
		&calc.ID, &calc.TenantID, &calc.EmployeeID, &calc.PlanID,
		&periodStart, &periodEnd, &calc.PeriodName,
		&totalSales, &quotaTarget, &quotaAchievement, &gross, &bonuses,
		&adjustments, &net, &calc.Status, &calc.NeedsReview,
		&approvedAt, &approvedBy, &paidAt, &payoutDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	var dc decoder
	calc.Period = commission.Period{Start: dc.date(periodStart), End: dc.date(periodEnd)}
	calc.TotalSales = dc.money(totalSales)
	calc.QuotaTarget = dc.moneyPtr(quotaTarget)
	calc.QuotaAchievement = dc.money(quotaAchievement)
	calc.GrossCommission = dc.money(gross)
	calc.TotalBonuses = dc.money(bonuses)
	calc.TotalAdjustments = dc.money(adjustments)
	calc.NetCommission = dc.money(net)
	calc.ApprovedAt = dc.timestampPtr(approvedAt)
	calc.ApprovedBy = approvedBy.String
	calc.PaidAt = dc.timestampPtr(paidAt)
	calc.PayoutDate = dc.datePtr(payoutDate)
	calc.CreatedAt = dc.timestamp(createdAt)
	calc.UpdatedAt = dc.timestamp(updatedAt)
	if dc.err != nil {
		return nil, fmt.Errorf("calculation %s: %w", calc.ID, dc.err)
	}
	return &calc, nil
}

func (s *Store) ListDetails(ctx context.Context, tenantID commission.TenantID, calcID commission.CalculationID) ([]commission.Detail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT calculation_id, category, sales_amount, rate, commission_amount, tier_level
		FROM calculation_details WHERE tenant_id = ? AND calculation_id = ?
		ORDER BY category
	`, tenantID, calcID)
	if err != nil {
		return nil, fmt.Errorf("failed to list details: %w", err)
	}
	defer rows.Close()

	var out []commission.Detail
	for rows.Next() {
		var (
			d      commission.Detail
			sales  string
			rate   string
			amount string
		)
		if err := rows.Scan(&d.CalculationID, &d.Category, &sales, &rate, &amount, &d.TierLevel); err != nil {
			return nil, err
		}
		var dc decoder
		d.SalesAmount = dc.money(sales)
		d.Rate = dc.money(rate)
		d.CommissionAmount = dc.money(amount)
		if dc.err != nil {
			return nil, fmt.Errorf("calculation %s detail %s: %w", calcID, d.Category, dc.err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ListBonuses(ctx context.Context, tenantID commission.TenantID, calcID commission.CalculationID) ([]commission.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT calculation_id, kind, criteria, amount, eligibility_met
		FROM calculation_bonuses WHERE tenant_id = ? AND calculation_id = ?
		ORDER BY seq
	`, tenantID, calcID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonuses: %w", err)
	}
	defer rows.Close()

	var out []commission.Bonus
	for rows.Next() {
		var (
			b      commission.Bonus
			amount string
		)
		if err := rows.Scan(&b.CalculationID, &b.Kind, &b.Criteria, &amount, &b.EligibilityMet); err != nil {
			return nil, err
		}
		var dc decoder
		b.Amount = dc.money(amount)
		if dc.err != nil {
			return nil, fmt.Errorf("calculation %s bonus: %w", calcID, dc.err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TransitionStatus is the CAS guard for approve/pay/dispute branches:
// the conditional UPDATE succeeds only when the stored status matches.
func (s *Store) TransitionStatus(ctx context.Context, tenantID commission.TenantID, id commission.CalculationID, from, to commission.CalculationStatus, stamps commission.StatusStamps) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE calculations SET
			status = ?,
			approved_at = COALESCE(?, approved_at),
			approved_by = COALESCE(?, approved_by),
			paid_at = COALESCE(?, paid_at),
			payout_date = COALESCE(?, payout_date),
			updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`, to,
		nullTime(stamps.ApprovedAt), nullString(stamps.ApprovedBy),
		nullTime(stamps.PaidAt), nullDate(stamps.PayoutDate),
		time.Now().UTC().Format(time.RFC3339),
		tenantID, id, from)
	if err != nil {
		return fmt.Errorf("failed to transition calculation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM calculations WHERE tenant_id = ? AND id = ?`,
			tenantID, id).Scan(&current)
		if err == sql.ErrNoRows {
			return commission.ErrCalculationNotFound
		}
		if err != nil {
			return err
		}
		return &commission.InvalidTransitionError{Kind: "calculation", ID: string(id),
			From: current, To: string(to)}
	}
	return nil
}

func (s *Store) UpdateTotals(ctx context.Context, tenantID commission.TenantID, id commission.CalculationID, totalAdjustments, net commission.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE calculations SET total_adjustments = ?, net_commission = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, totalAdjustments.String(), net.String(),
		time.Now().UTC().Format(time.RFC3339), tenantID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return commission.ErrCalculationNotFound
	}
	return nil
}

// =============================================================================
// ADJUSTMENT STORE
// =============================================================================

func (s *Store) SaveAdjustment(ctx context.Context, adj commission.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var calcID, disputeID sql.NullString
	if adj.CalculationID != nil {
		calcID = nullString(string(*adj.CalculationID))
	}
	if adj.DisputeID != nil {
		disputeID = nullString(string(*adj.DisputeID))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adjustments
		(id, tenant_id, employee_id, calculation_id, adjustment_type, amount, reason,
		 effective_date, status, approved_by, approved_at, applied, dispute_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, adj.ID, adj.TenantID, adj.EmployeeID, calcID, adj.Type, adj.Amount.String(),
		adj.Reason, adj.EffectiveDate.String(), adj.Status,
		nullString(adj.ApprovedBy), nullTime(adj.ApprovedAt), adj.Applied,
		disputeID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save adjustment: %w", err)
	}
	return nil
}

const adjustmentColumns = `
	id, tenant_id, employee_id, calculation_id, adjustment_type, amount, reason,
	effective_date, status, approved_by, approved_at, applied, dispute_id`

func (s *Store) GetAdjustment(ctx context.Context, tenantID commission.TenantID, id commission.AdjustmentID) (*commission.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+adjustmentColumns+` FROM adjustments WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	adj, err := scanAdjustment(row)
	if err == sql.ErrNoRows {
		return nil, commission.ErrAdjustmentNotFound
	}
	return adj, err
}

func scanAdjustment(r rowScanner) (*commission.Adjustment, error) {
	var (
		adj        commission.Adjustment
		calcID     sql.NullString
		amount     string
		reason     sql.NullString
		effective  string
		approvedBy sql.NullString
		approvedAt sql.NullString
		disputeID  sql.NullString
	)
	err := r.Scan(&adj.ID, &adj.TenantID, &adj.EmployeeID, &calcID, &adj.Type,
		&amount, &reason, &effective, &adj.Status, &approvedBy, &approvedAt,
		&adj.Applied, &disputeID)
	if err != nil {
		return nil, err
	}
	if calcID.Valid {
		id := commission.CalculationID(calcID.String)
		adj.CalculationID = &id
	}
	if disputeID.Valid {
		id := commission.DisputeID(disputeID.String)
		adj.DisputeID = &id
	}
	var dc decoder
	adj.Amount = dc.money(amount)
	adj.Reason = reason.String
	adj.EffectiveDate = dc.date(effective)
	adj.ApprovedBy = approvedBy.String
	adj.ApprovedAt = dc.timestampPtr(approvedAt)
	if dc.err != nil {
		return nil, fmt.Errorf("adjustment %s: %w", adj.ID, dc.err)
	}
	return &adj, nil
}

func (s *Store) SetAdjustmentStatus(ctx context.Context, tenantID commission.TenantID, id commission.AdjustmentID, status commission.AdjustmentStatus, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE adjustments SET status = ?, approved_by = ?, approved_at = ?
		WHERE tenant_id = ? AND id = ? AND status = 'pending'
	`, status, actor, at.UTC().Format(time.RFC3339), tenantID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM adjustments WHERE tenant_id = ? AND id = ?`,
			tenantID, id).Scan(&current)
		if err == sql.ErrNoRows {
			return commission.ErrAdjustmentNotFound
		}
		if err != nil {
			return err
		}
		return &commission.InvalidTransitionError{Kind: "adjustment", ID: string(id),
			From: current, To: string(status)}
	}
	return nil
}

func (s *Store) ListAttachedAdjustments(ctx context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period, calcID commission.CalculationID) ([]commission.Adjustment, error) {
	// Linked rows count applied or not, so re-runs recompute the same
	// total. Standalone rows count only while unapplied.
	return s.listAdjustments(ctx, `
		SELECT `+adjustmentColumns+` FROM adjustments
		WHERE tenant_id = ? AND employee_id = ? AND status = 'approved'
		  AND (calculation_id = ?
		       OR (calculation_id IS NULL AND applied = FALSE
		           AND effective_date >= ? AND effective_date <= ?))
		ORDER BY id
	`, tenantID, employeeID, calcID, period.Start.String(), period.End.String())
}

func (s *Store) ListApprovedUnapplied(ctx context.Context, tenantID commission.TenantID, employeeID commission.EmployeeID, period commission.Period, calcID commission.CalculationID) ([]commission.Adjustment, error) {
	return s.listAdjustments(ctx, `
		SELECT `+adjustmentColumns+` FROM adjustments
		WHERE tenant_id = ? AND employee_id = ? AND status = 'approved' AND applied = FALSE
		  AND (calculation_id = ?
		       OR (calculation_id IS NULL
		           AND effective_date >= ? AND effective_date <= ?))
		ORDER BY id
	`, tenantID, employeeID, calcID, period.Start.String(), period.End.String())
}

func (s *Store) listAdjustments(ctx context.Context, query string, args ...any) ([]commission.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	defer rows.Close()

	var out []commission.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *adj)
	}
	return out, rows.Err()
}

func (s *Store) MarkApplied(ctx context.Context, tenantID commission.TenantID, ids []commission.AdjustmentID, calcID commission.CalculationID) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			UPDATE adjustments SET applied = TRUE, calculation_id = ?
			WHERE tenant_id = ? AND id = ?
		`, calcID, tenantID, id)
		if err != nil {
			return fmt.Errorf("failed to mark adjustment %s applied: %w", id, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// DISPUTE STORE
// =============================================================================

func (s *Store) SaveDispute(ctx context.Context, d commission.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var adjID sql.NullString
	if d.AdjustmentID != nil {
		adjID = nullString(string(*d.AdjustmentID))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disputes
		(id, tenant_id, calculation_id, employee_id, submitted_by, disputed_amount,
		 expected_amount, status, assigned_to, reason, resolution_type, resolution_notes,
		 resolution_amount, adjustment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.TenantID, d.CalculationID, d.EmployeeID, d.SubmittedBy,
		d.DisputedAmount.String(), d.ExpectedAmount.String(), d.Status,
		nullString(d.AssignedTo), d.Reason,
		nullString(string(d.ResolutionType)), nullString(d.ResolutionNotes),
		d.ResolutionAmount.String(), adjID,
		d.CreatedAt.UTC().Format(time.RFC3339), d.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save dispute: %w", err)
	}
	return nil
}

const disputeColumns = `
	id, tenant_id, calculation_id, employee_id, submitted_by, disputed_amount,
	expected_amount, status, assigned_to, reason, resolution_type, resolution_notes,
	resolution_amount, adjustment_id, created_at, updated_at`

func (s *Store) GetDispute(ctx context.Context, tenantID commission.TenantID, id commission.DisputeID) (*commission.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, commission.ErrDisputeNotFound
	}
	return d, err
}

func (s *Store) ListDisputesByCalculation(ctx context.Context, tenantID commission.TenantID, calcID commission.CalculationID) ([]commission.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes
		 WHERE tenant_id = ? AND calculation_id = ? ORDER BY created_at, id`,
		tenantID, calcID)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	defer rows.Close()

	var out []commission.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDispute(r rowScanner) (*commission.Dispute, error) {
	var (
		d          commission.Dispute
		disputed   string
		expected   string
		assignedTo sql.NullString
		reason     sql.NullString
		resType    sql.NullString
		resNotes   sql.NullString
		resAmount  string
		adjID      sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := r.Scan(&d.ID, &d.TenantID, &d.CalculationID, &d.EmployeeID, &d.SubmittedBy,
		&disputed, &expected, &d.Status, &assignedTo, &reason, &resType, &resNotes,
		&resAmount, &adjID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	var dc decoder
	d.DisputedAmount = dc.money(disputed)
	d.ExpectedAmount = dc.money(expected)
	d.AssignedTo = assignedTo.String
	d.Reason = reason.String
	d.ResolutionType = commission.ResolutionType(resType.String)
	d.ResolutionNotes = resNotes.String
	d.ResolutionAmount = dc.money(resAmount)
	if adjID.Valid {
		id := commission.AdjustmentID(adjID.String)
		d.AdjustmentID = &id
	}
	d.CreatedAt = dc.timestamp(createdAt)
	d.UpdatedAt = dc.timestamp(updatedAt)
	if dc.err != nil {
		return nil, fmt.Errorf("dispute %s: %w", d.ID, dc.err)
	}
	return &d, nil
}

// TransitionDispute persists the dispute only when its stored status
// still matches the expected previous status (CAS).
func (s *Store) TransitionDispute(ctx context.Context, tenantID commission.TenantID, d *commission.Dispute, from commission.DisputeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var adjID sql.NullString
	if d.AdjustmentID != nil {
		adjID = nullString(string(*d.AdjustmentID))
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE disputes SET
			status = ?, assigned_to = ?, resolution_type = ?, resolution_notes = ?,
			resolution_amount = ?, adjustment_id = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`, d.Status, nullString(d.AssignedTo),
		nullString(string(d.ResolutionType)), nullString(d.ResolutionNotes),
		d.ResolutionAmount.String(), adjID,
		d.UpdatedAt.UTC().Format(time.RFC3339),
		tenantID, d.ID, from)
	if err != nil {
		return fmt.Errorf("failed to transition dispute: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM disputes WHERE tenant_id = ? AND id = ?`,
			tenantID, d.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return commission.ErrDisputeNotFound
		}
		if err != nil {
			return err
		}
		return &commission.InvalidTransitionError{Kind: "dispute", ID: string(d.ID),
			From: current, To: string(d.Status)}
	}
	return nil
}

// AppendHistory inserts one audit row. Insert-only: this package has
// no UPDATE or DELETE against dispute_history.
func (s *Store) AppendHistory(ctx context.Context, h commission.DisputeHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispute_history
		(id, tenant_id, dispute_id, from_status, to_status, actor_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.TenantID, h.DisputeID, h.FromStatus, h.ToStatus,
		h.ActorID, h.Description, h.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append dispute history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, tenantID commission.TenantID, disputeID commission.DisputeID) ([]commission.DisputeHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, dispute_id, from_status, to_status, actor_id, description, created_at
		FROM dispute_history WHERE tenant_id = ? AND dispute_id = ?
		ORDER BY created_at, id
	`, tenantID, disputeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispute history: %w", err)
	}
	defer rows.Close()

	var out []commission.DisputeHistory
	for rows.Next() {
		var (
			h         commission.DisputeHistory
			createdAt string
		)
		if err := rows.Scan(&h.ID, &h.TenantID, &h.DisputeID, &h.FromStatus, &h.ToStatus,
			&h.ActorID, &h.Description, &createdAt); err != nil {
			return nil, err
		}
		var dc decoder
		h.CreatedAt = dc.timestamp(createdAt)
		if dc.err != nil {
			return nil, fmt.Errorf("dispute %s history: %w", disputeID, dc.err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
