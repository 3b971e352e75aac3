// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	plans     map[generic.PlanID]generic.Plan
	lineItems map[generic.LineItemID]generic.LineItem
	phases    map[generic.PhaseID]generic.Phase
	rates     map[generic.Currency]decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{
		plans:     make(map[generic.PlanID]generic.Plan),
		lineItems: make(map[generic.LineItemID]generic.LineItem),
		phases:    make(map[generic.PhaseID]generic.Phase),
		rates:     map[generic.Currency]decimal.Decimal{generic.USD: decimal.NewFromInt(1)},
	}
}

var (
	_ generic.Store   = (*Memory)(nil)
	_ generic.TxStore = (*TxMemory)(nil)
)

// Reset clears all data. USD is re-seeded.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = make(map[generic.PlanID]generic.Plan)
	m.lineItems = make(map[generic.LineItemID]generic.LineItem)
	m.phases = make(map[generic.PhaseID]generic.Phase)
	m.rates = map[generic.Currency]decimal.Decimal{generic.USD: decimal.NewFromInt(1)}
	return nil
}

// =============================================================================
// PLANS
// =============================================================================

func (m *Memory) SavePlan(_ context.Context, p generic.Plan) (generic.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePlanLocked(p), nil
}

func (m *Memory) savePlanLocked(p generic.Plan) generic.Plan {
	if p.ID == "" {
		p.ID = generic.PlanID(uuid.NewString())
	}
	m.plans[p.ID] = clonePlan(p)
	return clonePlan(p)
}

func (m *Memory) GetPlan(_ context.Context, id generic.PlanID) (generic.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPlanLocked(id)
}

func (m *Memory) getPlanLocked(id generic.PlanID) (generic.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return generic.Plan{}, generic.ErrPlanNotFound
	}
	return clonePlan(p), nil
}

func (m *Memory) ListPlans(_ context.Context, kind generic.PlanKind) ([]generic.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPlansLocked(kind), nil
}

func (m *Memory) listPlansLocked(kind generic.PlanKind) []generic.Plan {
	result := make([]generic.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		if kind == "" || p.Kind == kind {
			result = append(result, clonePlan(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func clonePlan(p generic.Plan) generic.Plan {
	if p.DateRange != nil {
		r := *p.DateRange
		p.DateRange = &r
	}
	return p
}

// =============================================================================
// LINE ITEMS
// =============================================================================

func (m *Memory) SaveLineItem(_ context.Context, li generic.LineItem) (generic.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLineItemLocked(li)
}

func (m *Memory) saveLineItemLocked(li generic.LineItem) (generic.LineItem, error) {
	if _, ok := m.plans[li.PlanID]; !ok {
		return generic.LineItem{}, generic.ErrPlanNotFound
	}
	if li.ID == "" {
		li.ID = generic.LineItemID(uuid.NewString())
	}
	m.lineItems[li.ID] = li.Clone()
	return li.Clone(), nil
}

func (m *Memory) GetLineItem(_ context.Context, id generic.LineItemID) (generic.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	li, ok := m.lineItems[id]
	if !ok {
		return generic.LineItem{}, generic.ErrLineItemNotFound
	}
	return li.Clone(), nil
}

func (m *Memory) ListLineItems(_ context.Context, planID generic.PlanID) ([]generic.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLineItemsLocked(planID), nil
}

func (m *Memory) listLineItemsLocked(planID generic.PlanID) []generic.LineItem {
	var result []generic.LineItem
	for _, li := range m.lineItems {
		if li.PlanID == planID {
			result = append(result, li.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *Memory) DeleteLineItem(_ context.Context, id generic.LineItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lineItems[id]; !ok {
		return generic.ErrLineItemNotFound
	}
	delete(m.lineItems, id)
	return nil
}

func (m *Memory) ReplaceWeeklyHours(_ context.Context, id generic.LineItemID, entries []generic.WeeklyHoursEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceWeeklyHoursLocked(id, entries)
}

func (m *Memory) replaceWeeklyHoursLocked(id generic.LineItemID, entries []generic.WeeklyHoursEntry) error {
	li, ok := m.lineItems[id]
	if !ok {
		return generic.ErrLineItemNotFound
	}
	li.WeeklyHours = generic.MergeWeeklyHours(nil, entries)
	m.lineItems[id] = li
	return nil
}

// =============================================================================
// PHASES
// =============================================================================

func (m *Memory) SavePhase(_ context.Context, ph generic.Phase) (generic.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePhaseLocked(ph)
}

func (m *Memory) savePhaseLocked(ph generic.Phase) (generic.Phase, error) {
	if _, ok := m.plans[ph.PlanID]; !ok {
		return generic.Phase{}, generic.ErrPlanNotFound
	}
	if ph.ID == "" {
		ph.ID = generic.PhaseID(uuid.NewString())
	}
	m.phases[ph.ID] = ph
	return ph, nil
}

func (m *Memory) ListPhases(_ context.Context, planID generic.PlanID) ([]generic.Phase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPhasesLocked(planID), nil
}

func (m *Memory) listPhasesLocked(planID generic.PlanID) []generic.Phase {
	var result []generic.Phase
	for _, ph := range m.phases {
		if ph.PlanID == planID {
			result = append(result, ph)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RowOrder != result[j].RowOrder {
			return result[i].RowOrder < result[j].RowOrder
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// =============================================================================
// CURRENCY RATES
// =============================================================================

func (m *Memory) SaveRate(_ context.Context, rate generic.CurrencyRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRateLocked(rate)
}

func (m *Memory) saveRateLocked(rate generic.CurrencyRate) error {
	if err := generic.ValidateRate(rate); err != nil {
		return err
	}
	m.rates[generic.NormalizeCurrency(string(rate.Code))] = rate.RateToUSD
	return nil
}

func (m *Memory) ListRates(_ context.Context) ([]generic.CurrencyRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRatesLocked(), nil
}

func (m *Memory) listRatesLocked() []generic.CurrencyRate {
	rates := make(generic.Rates, len(m.rates))
	for code, r := range m.rates {
		rates[code] = r
	}
	return rates.Rows()
}

func (m *Memory) DeleteRate(_ context.Context, code generic.Currency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRateLocked(code)
}

func (m *Memory) deleteRateLocked(code generic.Currency) error {
	code = generic.NormalizeCurrency(string(code))
	if code == generic.USD {
		return &generic.RateError{Code: code, Message: "USD cannot be deleted"}
	}
	if _, ok := m.rates[code]; !ok {
		return &generic.UnknownCurrencyError{Code: code}
	}
	delete(m.rates, code)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	plans     map[generic.PlanID]generic.Plan
	lineItems map[generic.LineItemID]generic.LineItem
	phases    map[generic.PhaseID]generic.Phase
	rates     map[generic.Currency]decimal.Decimal
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		plans:     make(map[generic.PlanID]generic.Plan, len(tm.plans)),
		lineItems: make(map[generic.LineItemID]generic.LineItem, len(tm.lineItems)),
		phases:    make(map[generic.PhaseID]generic.Phase, len(tm.phases)),
		rates:     make(map[generic.Currency]decimal.Decimal, len(tm.rates)),
	}
	for k, v := range tm.plans {
		s.plans[k] = clonePlan(v)
	}
	for k, v := range tm.lineItems {
		s.lineItems[k] = v.Clone()
	}
	for k, v := range tm.phases {
		s.phases[k] = v
	}
	for k, v := range tm.rates {
		s.rates[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.plans = s.plans
	tm.lineItems = s.lineItems
	tm.phases = s.phases
	tm.rates = s.rates
}

// txMemoryView operates on the parent while its lock is held by WithTx.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) SavePlan(_ context.Context, p generic.Plan) (generic.Plan, error) {
	return tv.parent.savePlanLocked(p), nil
}

func (tv *txMemoryView) GetPlan(_ context.Context, id generic.PlanID) (generic.Plan, error) {
	return tv.parent.getPlanLocked(id)
}

func (tv *txMemoryView) ListPlans(_ context.Context, kind generic.PlanKind) ([]generic.Plan, error) {
	return tv.parent.listPlansLocked(kind), nil
}

func (tv *txMemoryView) SaveLineItem(_ context.Context, li generic.LineItem) (generic.LineItem, error) {
	return tv.parent.saveLineItemLocked(li)
}

func (tv *txMemoryView) GetLineItem(_ context.Context, id generic.LineItemID) (generic.LineItem, error) {
	li, ok := tv.parent.lineItems[id]
	if !ok {
		return generic.LineItem{}, generic.ErrLineItemNotFound
	}
	return li.Clone(), nil
}

func (tv *txMemoryView) ListLineItems(_ context.Context, planID generic.PlanID) ([]generic.LineItem, error) {
	return tv.parent.listLineItemsLocked(planID), nil
}

func (tv *txMemoryView) DeleteLineItem(_ context.Context, id generic.LineItemID) error {
	if _, ok := tv.parent.lineItems[id]; !ok {
		return generic.ErrLineItemNotFound
	}
	delete(tv.parent.lineItems, id)
	return nil
}

func (tv *txMemoryView) ReplaceWeeklyHours(_ context.Context, id generic.LineItemID, entries []generic.WeeklyHoursEntry) error {
	return tv.parent.replaceWeeklyHoursLocked(id, entries)
}

func (tv *txMemoryView) SavePhase(_ context.Context, ph generic.Phase) (generic.Phase, error) {
	return tv.parent.savePhaseLocked(ph)
}

func (tv *txMemoryView) ListPhases(_ context.Context, planID generic.PlanID) ([]generic.Phase, error) {
	return tv.parent.listPhasesLocked(planID), nil
}

func (tv *txMemoryView) SaveRate(_ context.Context, rate generic.CurrencyRate) error {
	return tv.parent.saveRateLocked(rate)
}

func (tv *txMemoryView) ListRates(_ context.Context) ([]generic.CurrencyRate, error) {
	return tv.parent.listRatesLocked(), nil
}

func (tv *txMemoryView) DeleteRate(_ context.Context, code generic.Currency) error {
	return tv.parent.deleteRateLocked(code)
}
