/*
Package sqlite provides a SQLite-backed implementation of generic.Store.

PURPOSE:
  Persists the inputs of the engine: plans (estimates, quotes, engagements),
  their line items and weekly hours, phases, and the currency rate table.
  The engine itself stays pure; this is the persistence collaborator.

KEY TABLES:
  plans:          Estimates, quotes and engagement resource plans
  line_items:     Role/delivery-center assignments with rate, cost, range
  weekly_hours:   One row per (line item, week bucket), never duplicated
  phases:         Named, colored sub-intervals of a plan
  currency_rates: Rate-to-USD per ISO code; USD is seeded and protected

STORAGE FORMATS:
  - Dates as TEXT YYYY-MM-DD (civil, no zone)
  - Decimals as TEXT (exact round trip through shopspring/decimal)

CONCURRENCY:
  Uses sync.RWMutex plus a single pooled connection. SQLite has a single
  writer, and ":memory:" databases exist per connection, so every query
  shares one connection. Rows are always closed before the next query.

USAGE:
  store, err := sqlite.New("./data/engine.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		group_key TEXT NOT NULL DEFAULT '',
		group_label TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'USD',
		range_start TEXT,
		range_end TEXT,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		source_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_kind ON plans(kind);

	CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		role_id TEXT NOT NULL,
		delivery_center_id TEXT NOT NULL DEFAULT '',
		employee_id TEXT,
		rate TEXT NOT NULL,
		cost TEXT NOT NULL,
		currency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		billable BOOLEAN NOT NULL DEFAULT TRUE,
		billable_expense_pct TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_line_items_plan ON line_items(plan_id);

	-- One row per week bucket per line item
	CREATE TABLE IF NOT EXISTS weekly_hours (
		line_item_id TEXT NOT NULL REFERENCES line_items(id) ON DELETE CASCADE,
		week_start TEXT NOT NULL,
		hours TEXT NOT NULL,
		PRIMARY KEY (line_item_id, week_start)
	);

	CREATE TABLE IF NOT EXISTS phases (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		color TEXT,
		row_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_phases_plan ON phases(plan_id, row_order);

	CREATE TABLE IF NOT EXISTS currency_rates (
		code TEXT PRIMARY KEY,
		rate_to_usd TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	INSERT OR IGNORE INTO currency_rates (code, rate_to_usd, updated_at)
	VALUES ('USD', '1', datetime('now'));
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PLANS
// =============================================================================

// SavePlan upserts a plan.
func (s *Store) SavePlan(ctx context.Context, p generic.Plan) (generic.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePlan(ctx, s.db, p)
}

func savePlan(ctx context.Context, q querier, p generic.Plan) (generic.Plan, error) {
	if p.ID == "" {
		p.ID = generic.PlanID(uuid.NewString())
	}
	if p.Currency == "" {
		p.Currency = generic.USD
	}

	var rangeStart, rangeEnd sql.NullString
	if p.DateRange != nil {
		rangeStart = nullString(p.DateRange.Start.String())
		rangeEnd = nullString(p.DateRange.End.String())
	}

	query := `
		INSERT INTO plans (id, kind, name, group_key, group_label, currency,
		                   range_start, range_end, locked, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			group_key = excluded.group_key,
			group_label = excluded.group_label,
			currency = excluded.currency,
			range_start = excluded.range_start,
			range_end = excluded.range_end,
			locked = excluded.locked,
			source_id = excluded.source_id,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, query,
		p.ID, p.Kind, p.Name, p.GroupKey, p.GroupLabel, p.Currency,
		rangeStart, rangeEnd, p.Locked, nullString(string(p.SourceID)), now, now,
	)
	if err != nil {
		return generic.Plan{}, fmt.Errorf("failed to save plan: %w", err)
	}
	return p, nil
}

// GetPlan returns a plan or generic.ErrPlanNotFound.
func (s *Store) GetPlan(ctx context.Context, id generic.PlanID) (generic.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPlan(ctx, s.db, id)
}

const planColumns = `id, kind, name, group_key, group_label, currency, range_start, range_end, locked, source_id`

func getPlan(ctx context.Context, q querier, id generic.PlanID) (generic.Plan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Plan{}, generic.ErrPlanNotFound
	}
	return p, err
}

// ListPlans returns plans of the given kind (empty = all), ordered by ID.
func (s *Store) ListPlans(ctx context.Context, kind generic.PlanKind) ([]generic.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPlans(ctx, s.db, kind)
}

func listPlans(ctx context.Context, q querier, kind generic.PlanKind) ([]generic.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE (? = '' OR kind = ?) ORDER BY id`
	rows, err := q.QueryContext(ctx, query, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	plans := []generic.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (generic.Plan, error) {
	var (
		p                    generic.Plan
		rangeStart, rangeEnd sql.NullString
		sourceID             sql.NullString
	)
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.GroupKey, &p.GroupLabel, &p.Currency,
		&rangeStart, &rangeEnd, &p.Locked, &sourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan plan: %w", err)
	}
	p.SourceID = generic.PlanID(sourceID.String)
	if rangeStart.Valid && rangeEnd.Valid {
		r, err := generic.NewRange(rangeStart.String, rangeEnd.String)
		if err != nil {
			return p, fmt.Errorf("plan %s has a corrupt range: %w", p.ID, err)
		}
		p.DateRange = &r
	}
	return p, nil
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// SaveLineItem upserts a line item and replaces its weekly hours atomically.
func (s *Store) SaveLineItem(ctx context.Context, li generic.LineItem) (generic.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.LineItem{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	saved, err := saveLineItem(ctx, sqlTx, li)
	if err != nil {
		return generic.LineItem{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return generic.LineItem{}, fmt.Errorf("failed to commit line item: %w", err)
	}
	return saved, nil
}

func saveLineItem(ctx context.Context, q querier, li generic.LineItem) (generic.LineItem, error) {
	if li.ID == "" {
		li.ID = generic.LineItemID(uuid.NewString())
	}

	var expensePct sql.NullString
	if li.BillableExpensePercentage != nil {
		expensePct = nullString(li.BillableExpensePercentage.String())
	}

	query := `
		INSERT INTO line_items (id, plan_id, role_id, delivery_center_id, employee_id,
		                        rate, cost, currency, start_date, end_date, billable,
		                        billable_expense_pct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_id = excluded.plan_id,
			role_id = excluded.role_id,
			delivery_center_id = excluded.delivery_center_id,
			employee_id = excluded.employee_id,
			rate = excluded.rate,
			cost = excluded.cost,
			currency = excluded.currency,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			billable = excluded.billable,
			billable_expense_pct = excluded.billable_expense_pct,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, query,
		li.ID, li.PlanID, li.RoleID, li.DeliveryCenterID, nullString(string(li.EmployeeID)),
		li.Rate.String(), li.Cost.String(), li.Currency,
		li.DateRange.Start.String(), li.DateRange.End.String(), li.Billable,
		expensePct, now, now,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return generic.LineItem{}, generic.ErrPlanNotFound
		}
		return generic.LineItem{}, fmt.Errorf("failed to save line item: %w", err)
	}

	if err := replaceWeeklyHours(ctx, q, li.ID, li.WeeklyHours); err != nil {
		return generic.LineItem{}, err
	}
	return li.Clone(), nil
}

// GetLineItem returns a line item with its weekly hours.
func (s *Store) GetLineItem(ctx context.Context, id generic.LineItemID) (generic.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLineItem(ctx, s.db, id)
}

const lineItemColumns = `id, plan_id, role_id, delivery_center_id, employee_id, rate, cost,
	currency, start_date, end_date, billable, billable_expense_pct`

func getLineItem(ctx context.Context, q querier, id generic.LineItemID) (generic.LineItem, error) {
	row := q.QueryRowContext(ctx, `SELECT `+lineItemColumns+` FROM line_items WHERE id = ?`, id)
	li, err := scanLineItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.LineItem{}, generic.ErrLineItemNotFound
	}
	if err != nil {
		return generic.LineItem{}, err
	}

	hours, err := queryWeeklyHours(ctx, q,
		`SELECT line_item_id, week_start, hours FROM weekly_hours WHERE line_item_id = ? ORDER BY week_start`, id)
	if err != nil {
		return generic.LineItem{}, err
	}
	li.WeeklyHours = hours[li.ID]
	return li, nil
}

// ListLineItems returns a plan's line items ordered by ID.
func (s *Store) ListLineItems(ctx context.Context, planID generic.PlanID) ([]generic.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLineItems(ctx, s.db, planID)
}

func listLineItems(ctx context.Context, q querier, planID generic.PlanID) ([]generic.LineItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+lineItemColumns+` FROM line_items WHERE plan_id = ? ORDER BY id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	var items []generic.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	hours, err := queryWeeklyHours(ctx, q, `
		SELECT wh.line_item_id, wh.week_start, wh.hours
		FROM weekly_hours wh
		JOIN line_items li ON li.id = wh.line_item_id
		WHERE li.plan_id = ?
		ORDER BY wh.line_item_id, wh.week_start`, planID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].WeeklyHours = hours[items[i].ID]
	}
	return items, nil
}

func scanLineItem(row scanner) (generic.LineItem, error) {
	var (
		li                 generic.LineItem
		employeeID         sql.NullString
		rate, cost         string
		startDate, endDate string
		expensePct         sql.NullString
	)
	err := row.Scan(&li.ID, &li.PlanID, &li.RoleID, &li.DeliveryCenterID, &employeeID,
		&rate, &cost, &li.Currency, &startDate, &endDate, &li.Billable, &expensePct)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return li, err
		}
		return li, fmt.Errorf("failed to scan line item: %w", err)
	}

	li.EmployeeID = generic.EmployeeID(employeeID.String)
	if li.Rate, err = decimal.NewFromString(rate); err != nil {
		return li, fmt.Errorf("line item %s has a corrupt rate: %w", li.ID, err)
	}
	if li.Cost, err = decimal.NewFromString(cost); err != nil {
		return li, fmt.Errorf("line item %s has a corrupt cost: %w", li.ID, err)
	}
	if li.DateRange, err = generic.NewRange(startDate, endDate); err != nil {
		return li, fmt.Errorf("line item %s has a corrupt range: %w", li.ID, err)
	}
	if expensePct.Valid {
		pct, err := decimal.NewFromString(expensePct.String)
		if err != nil {
			return li, fmt.Errorf("line item %s has a corrupt expense percentage: %w", li.ID, err)
		}
		li.BillableExpensePercentage = &pct
	}
	return li, nil
}

// DeleteLineItem removes a line item and its weekly hours.
func (s *Store) DeleteLineItem(ctx context.Context, id generic.LineItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLineItem(ctx, s.db, id)
}

func deleteLineItem(ctx context.Context, q querier, id generic.LineItemID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM line_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrLineItemNotFound
	}
	return nil
}

// =============================================================================
// WEEKLY HOURS
// =============================================================================

// ReplaceWeeklyHours swaps the full weekly-hours set of a line item.
func (s *Store) ReplaceWeeklyHours(ctx context.Context, id generic.LineItemID, entries []generic.WeeklyHoursEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var exists int
	if err := sqlTx.QueryRowContext(ctx, `SELECT COUNT(*) FROM line_items WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up line item: %w", err)
	}
	if exists == 0 {
		return generic.ErrLineItemNotFound
	}
	if err := replaceWeeklyHours(ctx, sqlTx, id, entries); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func replaceWeeklyHours(ctx context.Context, q querier, id generic.LineItemID, entries []generic.WeeklyHoursEntry) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM weekly_hours WHERE line_item_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear weekly hours: %w", err)
	}
	// Merging collapses duplicate weeks before the primary key sees them.
	for _, e := range generic.MergeWeeklyHours(nil, entries) {
		_, err := q.ExecContext(ctx,
			`INSERT INTO weekly_hours (line_item_id, week_start, hours) VALUES (?, ?, ?)`,
			id, e.WeekStart.String(), e.Hours.String())
		if err != nil {
			return fmt.Errorf("failed to insert weekly hours: %w", err)
		}
	}
	return nil
}

func queryWeeklyHours(ctx context.Context, q querier, query string, args ...any) (map[generic.LineItemID][]generic.WeeklyHoursEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly hours: %w", err)
	}
	defer rows.Close()

	result := make(map[generic.LineItemID][]generic.WeeklyHoursEntry)
	for rows.Next() {
		var (
			id          generic.LineItemID
			week, hours string
		)
		if err := rows.Scan(&id, &week, &hours); err != nil {
			return nil, fmt.Errorf("failed to scan weekly hours: %w", err)
		}
		weekStart, err := generic.ParseDate(week)
		if err != nil {
			return nil, fmt.Errorf("line item %s has a corrupt week: %w", id, err)
		}
		h, err := decimal.NewFromString(hours)
		if err != nil {
			return nil, fmt.Errorf("line item %s has corrupt hours: %w", id, err)
		}
		result[id] = append(result[id], generic.WeeklyHoursEntry{WeekStart: weekStart, Hours: h})
	}
	return result, rows.Err()
}

// =============================================================================
// PHASES
// =============================================================================

// SavePhase upserts a phase.
func (s *Store) SavePhase(ctx context.Context, ph generic.Phase) (generic.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePhase(ctx, s.db, ph)
}

func savePhase(ctx context.Context, q querier, ph generic.Phase) (generic.Phase, error) {
	if ph.ID == "" {
		ph.ID = generic.PhaseID(uuid.NewString())
	}
	query := `
		INSERT INTO phases (id, plan_id, name, start_date, end_date, color, row_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_id = excluded.plan_id,
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			color = excluded.color,
			row_order = excluded.row_order
	`
	_, err := q.ExecContext(ctx, query,
		ph.ID, ph.PlanID, ph.Name, ph.DateRange.Start.String(), ph.DateRange.End.String(),
		nullString(ph.Color), ph.RowOrder,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return generic.Phase{}, generic.ErrPlanNotFound
		}
		return generic.Phase{}, fmt.Errorf("failed to save phase: %w", err)
	}
	return ph, nil
}

// ListPhases returns a plan's phases by row order.
func (s *Store) ListPhases(ctx context.Context, planID generic.PlanID) ([]generic.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPhases(ctx, s.db, planID)
}

func listPhases(ctx context.Context, q querier, planID generic.PlanID) ([]generic.Phase, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, plan_id, name, start_date, end_date, color, row_order
		FROM phases WHERE plan_id = ? ORDER BY row_order, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases: %w", err)
	}
	defer rows.Close()

	var phases []generic.Phase
	for rows.Next() {
		var (
			ph         generic.Phase
			start, end string
			color      sql.NullString
		)
		if err := rows.Scan(&ph.ID, &ph.PlanID, &ph.Name, &start, &end, &color, &ph.RowOrder); err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		if ph.DateRange, err = generic.NewRange(start, end); err != nil {
			return nil, fmt.Errorf("phase %s has a corrupt range: %w", ph.ID, err)
		}
		ph.Color = color.String
		phases = append(phases, ph)
	}
	return phases, rows.Err()
}

// =============================================================================
// CURRENCY RATES
// =============================================================================

// SaveRate upserts a rate. USD must stay at 1.
func (s *Store) SaveRate(ctx context.Context, rate generic.CurrencyRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRate(ctx, s.db, rate)
}

func saveRate(ctx context.Context, q querier, rate generic.CurrencyRate) error {
	if err := generic.ValidateRate(rate); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO currency_rates (code, rate_to_usd, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET rate_to_usd = excluded.rate_to_usd, updated_at = excluded.updated_at`,
		generic.NormalizeCurrency(string(rate.Code)), rate.RateToUSD.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

// ListRates returns the rate table ordered by code.
func (s *Store) ListRates(ctx context.Context) ([]generic.CurrencyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRates(ctx, s.db)
}

func listRates(ctx context.Context, q querier) ([]generic.CurrencyRate, error) {
	rows, err := q.QueryContext(ctx, `SELECT code, rate_to_usd FROM currency_rates ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var rates []generic.CurrencyRate
	for rows.Next() {
		var (
			code generic.Currency
			raw  string
		)
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("rate %s is corrupt: %w", code, err)
		}
		rates = append(rates, generic.CurrencyRate{Code: code, RateToUSD: rate})
	}
	return rates, rows.Err()
}

// DeleteRate removes a rate. USD is never deleted.
func (s *Store) DeleteRate(ctx context.Context, code generic.Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRate(ctx, s.db, code)
}

func deleteRate(ctx context.Context, q querier, code generic.Currency) error {
	code = generic.NormalizeCurrency(string(code))
	if code == generic.USD {
		return &generic.RateError{Code: code, Message: "USD cannot be deleted"}
	}
	res, err := q.ExecContext(ctx, `DELETE FROM currency_rates WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to delete rate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.UnknownCurrencyError{Code: code}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SavePlan(ctx context.Context, p generic.Plan) (generic.Plan, error) {
	return savePlan(ctx, ts.tx, p)
}

func (ts *txStore) GetPlan(ctx context.Context, id generic.PlanID) (generic.Plan, error) {
	return getPlan(ctx, ts.tx, id)
}

func (ts *txStore) ListPlans(ctx context.Context, kind generic.PlanKind) ([]generic.Plan, error) {
	return listPlans(ctx, ts.tx, kind)
}

func (ts *txStore) SaveLineItem(ctx context.Context, li generic.LineItem) (generic.LineItem, error) {
	return saveLineItem(ctx, ts.tx, li)
}

func (ts *txStore) GetLineItem(ctx context.Context, id generic.LineItemID) (generic.LineItem, error) {
	return getLineItem(ctx, ts.tx, id)
}

func (ts *txStore) ListLineItems(ctx context.Context, planID generic.PlanID) ([]generic.LineItem, error) {
	return listLineItems(ctx, ts.tx, planID)
}

func (ts *txStore) DeleteLineItem(ctx context.Context, id generic.LineItemID) error {
	return deleteLineItem(ctx, ts.tx, id)
}

func (ts *txStore) ReplaceWeeklyHours(ctx context.Context, id generic.LineItemID, entries []generic.WeeklyHoursEntry) error {
	if _, err := getLineItem(ctx, ts.tx, id); err != nil {
		return err
	}
	return replaceWeeklyHours(ctx, ts.tx, id, entries)
}

func (ts *txStore) SavePhase(ctx context.Context, ph generic.Phase) (generic.Phase, error) {
	return savePhase(ctx, ts.tx, ph)
}

func (ts *txStore) ListPhases(ctx context.Context, planID generic.PlanID) ([]generic.Phase, error) {
	return listPhases(ctx, ts.tx, planID)
}

func (ts *txStore) SaveRate(ctx context.Context, rate generic.CurrencyRate) error {
	return saveRate(ctx, ts.tx, rate)
}

func (ts *txStore) ListRates(ctx context.Context) ([]generic.CurrencyRate, error) {
	return listRates(ctx, ts.tx)
}

func (ts *txStore) DeleteRate(ctx context.Context, code generic.Currency) error {
	return deleteRate(ctx, ts.tx, code)
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo). USD is re-seeded.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"weekly_hours", "line_items", "phases", "plans", "currency_rates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO currency_rates (code, rate_to_usd, updated_at) VALUES ('USD', '1', ?)`,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
