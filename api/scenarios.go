/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	plans for demos and UI work. Each scenario is a plan document (the same
	YAML the planner CLI reads) seeded through factory.Document.Seed.

AVAILABLE SCENARIOS:

	estimate-pricing: One estimate with ramped roles in two currencies
	quote-locked:     The same estimate, locked as a quote
	portfolio:        Engagements for two accounts with phases

HOW SCENARIOS WORK:
 1. Reset database (clear all data, USD re-seeded)
 2. Parse the scenario's plan document
 3. Seed rates, plans, line items and phases
 4. Optionally run lifecycle steps (lock as quote)
 5. Refresh the rate snapshot

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "portfolio"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add its plan document to scenarioDocuments
 3. Add lifecycle steps to loadScenario if the document alone is not enough

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - factory/plan.go: Plan document schema
  - handlers.go: ResetDatabase
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/engagement-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "estimate-pricing",
		Name:        "Estimate Pricing",
		Description: "Draft estimate with ramped roles, an EUR contractor and a non-billable PM",
		Category:    "estimate",
	},
	{
		ID:          "quote-locked",
		Name:        "Locked Quote",
		Description: "The pricing estimate locked as a read-only quote",
		Category:    "estimate",
	},
	{
		ID:          "portfolio",
		Name:        "Portfolio",
		Description: "Three engagements across two accounts, with phases",
		Category:    "engagement",
	},
}

const estimatePricingYAML = `
week_start: sunday
rates:
  - code: EUR
    rate_to_usd: 0.92
  - code: GBP
    rate_to_usd: 0.79
plans:
  - id: est-platform
    kind: estimate
    name: Data platform build
    group_key: acme
    group_label: ACME Corp
    currency: USD
    start: 2025-01-05
    end: 2025-03-29
    line_items:
      - id: li-architect
        role: architect
        delivery_center: nyc
        rate: 225
        cost: 120
        start: 2025-01-05
        end: 2025-02-15
        fill: {pattern: ramp_down, startHours: 8, endHours: 40, intervalHours: 8}
      - id: li-engineer
        role: senior-engineer
        delivery_center: lisbon
        rate: 140
        cost: 70
        currency: EUR
        start: 2025-01-12
        end: 2025-03-29
        fill: {pattern: ramp_up_down, startHours: 16, endHours: 40, intervalHours: 8}
      - id: li-pm
        role: project-manager
        delivery_center: nyc
        employee: emp-avery
        rate: 0
        cost: 65
        start: 2025-01-05
        end: 2025-03-29
        billable: false
        fill: {pattern: uniform, hoursPerWeek: 10}
    phases:
      - name: Discovery
        start: 2025-01-05
        end: 2025-01-25
        row_order: 1
      - name: Build
        start: 2025-01-26
        end: 2025-03-29
        row_order: 2
`

const portfolioYAML = `
plans:
  - id: eng-acme-platform
    kind: engagement
    name: Platform build
    group_key: acme
    group_label: ACME Corp
    start: 2025-02-03
    end: 2025-06-27
    phases:
      - name: Discovery
        start: 2025-02-03
        end: 2025-02-28
        color: "#f59e0b"
        row_order: 1
      - name: Build
        start: 2025-03-03
        end: 2025-06-13
        row_order: 2
      - name: Hypercare
        start: 2025-06-16
        end: 2025-06-27
        row_order: 3
  - id: eng-acme-audit
    kind: engagement
    name: Security audit
    group_key: acme
    group_label: ACME Corp
    start: 2025-04-07
    end: 2025-04-25
  - id: eng-globex-rollout
    kind: engagement
    name: CRM rollout
    group_key: globex
    group_label: Globex
    line_items:
      - role: consultant
        rate: 150
        cost: 80
        start: 2025-03-10
        end: 2025-05-30
        fill: {pattern: uniform, hoursPerWeek: 32}
`

var scenarioDocuments = map[string]string{
	"estimate-pricing": estimatePricingYAML,
	"quote-locked":     estimatePricingYAML,
	"portfolio":        portfolioYAML,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newList(scenarios))
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := scenarioDocuments[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	if err := rs.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := h.loadScenario(ctx, req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.refreshRates(ctx)
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	doc, err := factory.NewPlanFactory().Parse([]byte(scenarioDocuments[id]))
	if err != nil {
		return err
	}
	if err := doc.Seed(ctx, h.Store); err != nil {
		return err
	}

	switch id {
	case "quote-locked":
		if _, err := h.Estimates.LockAsQuote(ctx, "est-platform", "Data platform build (Q1 quote)"); err != nil {
			return err
		}
	}
	return nil
}
