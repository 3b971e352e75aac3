/*
handlers.go - HTTP API handlers for the resource and timeline engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the estimate service, the engagement
  timeline and the pure engine functions.

ENDPOINTS:
  Rates:
    GET    /api/rates                      List rate table
    PUT    /api/rates/{code}               Set rate-to-USD
    DELETE /api/rates/{code}               Remove a rate (never USD)
    POST   /api/convert                    Convert an amount

  Stateless engine:
    POST   /api/fill                       Preview a fill pattern
    POST   /api/totals                     Aggregate ad-hoc line items
    POST   /api/timeline                   Lay out ad-hoc entities

  Plans:
    GET    /api/plans                      List plans (?kind=)
    POST   /api/plans                      Create plan
    GET    /api/plans/{id}                 Get plan
    GET    /api/plans/{id}/line-items      List line items
    POST   /api/plans/{id}/line-items      Add line item
    PUT    /api/plans/{id}/line-items/{itemID}              Update line item
    DELETE /api/plans/{id}/line-items/{itemID}              Delete line item
    PUT    /api/plans/{id}/line-items/{itemID}/weekly-hours Overwrite weeks
    POST   /api/plans/{id}/line-items/{itemID}/fill         Apply fill pattern
    GET    /api/plans/{id}/totals          Totals (?group=&currency=)
    GET    /api/plans/{id}/warnings        Range warnings
    GET    /api/plans/{id}/phases          List phases
    POST   /api/plans/{id}/phases          Add phase
    POST   /api/plans/{id}/lock            Lock estimate as quote

  Portfolio:
    GET    /api/timeline                   Engagement timeline (?plan=&week_start=)

  Demo:
    GET    /api/scenarios                  List demo scenarios
    GET    /api/scenarios/current          Currently loaded scenario
    POST   /api/scenarios/load             Reset and load a scenario
    POST   /api/reset                      Clear all data

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Persistence (SQLite in production, memory in tests)
  - Estimates: Line-item lifecycle, totals, locking
  - Rates: Current rate snapshot (RateRefresher)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown currency
  - 404: Plan or line item not found
  - 409: Plan is locked
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Rate snapshot refresher
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/engagement-engine/engagement"
	"github.com/warp/engagement-engine/estimate"
	"github.com/warp/engagement-engine/factory"
	"github.com/warp/engagement-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     generic.Store
	Estimates *estimate.Service
	Rates     *RateRefresher

	// TimelineWeekStart is the column convention of /api/timeline when the
	// request does not name one. Hour buckets use Estimates.WeekStart().
	TimelineWeekStart generic.WeekStart

	// Clock decides the default timeline window; nil = system clock.
	Clock generic.Clock

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store generic.Store) *Handler {
	return &Handler{
		Store:             store,
		Estimates:         estimate.NewService(store),
		Rates:             NewRateRefresher(store),
		TimelineWeekStart: generic.Sunday,
	}
}

// =============================================================================
// RATE ENDPOINTS
// =============================================================================

// ListRates returns the stored rate table.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListRates(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list rates", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(rates))
}

// PutRate creates or replaces one rate and refreshes the snapshot.
func (h *Handler) PutRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rate := generic.CurrencyRate{
		Code:      generic.NormalizeCurrency(chi.URLParam(r, "code")),
		RateToUSD: req.RateToUSD,
	}
	if err := h.Store.SaveRate(r.Context(), rate); err != nil {
		writeDomainError(w, "Failed to save rate", err)
		return
	}
	h.refreshRates(r.Context())
	writeJSON(w, http.StatusOK, rate)
}

// DeleteRate removes one rate and refreshes the snapshot.
func (h *Handler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	code := generic.NormalizeCurrency(chi.URLParam(r, "code"))
	if err := h.Store.DeleteRate(r.Context(), code); err != nil {
		if errors.Is(err, generic.ErrUnknownCurrency) {
			writeError(w, http.StatusNotFound, "Rate not found", err)
			return
		}
		writeDomainError(w, "Failed to delete rate", err)
		return
	}
	h.refreshRates(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "code": string(code)})
}

// Convert converts an amount with the current snapshot.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from := generic.NormalizeCurrency(req.From)
	to := generic.NormalizeCurrency(req.To)
	result, err := generic.Convert(req.Amount, from, to, h.Rates.Rates())
	if err != nil {
		writeDomainError(w, "Conversion failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{
		Amount:  req.Amount,
		From:    string(from),
		To:      string(to),
		Result:  result,
		Rounded: generic.RoundMoney(result),
	})
}

func (h *Handler) refreshRates(ctx context.Context) {
	if err := h.Rates.Refresh(ctx); err != nil {
		// The write succeeded; the ticker will pick it up on the next reload.
		log.Printf("[API] Rate snapshot refresh failed: %v", err)
	}
}

// =============================================================================
// STATELESS ENGINE ENDPOINTS
// =============================================================================

// PreviewFill runs a fill pattern over a range without storing anything.
func (h *Handler) PreviewFill(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	dateRange, err := generic.NewRange(req.Start, req.End)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	ws, err := h.weekStartParam(req.WeekStart, h.Estimates.WeekStart())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start", err)
		return
	}
	params, err := req.Fill.Params()
	if err != nil {
		writeDomainError(w, "Invalid fill pattern", err)
		return
	}

	entries, err := generic.Fill(dateRange, params, ws)
	if err != nil {
		writeDomainError(w, "Fill failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(entries))
}

// AggregateTotals aggregates line items posted in the body.
func (h *Handler) AggregateTotals(w http.ResponseWriter, r *http.Request) {
	var req TotalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	dim, err := generic.ParseDimension(req.Group)
	if err != nil {
		writeDomainError(w, "Invalid group", err)
		return
	}
	ws, err := h.weekStartParam(req.WeekStart, h.Estimates.WeekStart())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start", err)
		return
	}

	items := make([]generic.LineItem, 0, len(req.LineItems))
	for _, lr := range req.LineItems {
		li, err := lr.toLineItem()
		if err != nil {
			writeDomainError(w, "Invalid line item", err)
			return
		}
		items = append(items, li)
	}

	rates := h.Rates.Rates()
	if len(req.Rates) > 0 {
		if rates, err = generic.NewRates(req.Rates); err != nil {
			writeDomainError(w, "Invalid rates", err)
			return
		}
	}

	report, err := generic.Aggregate(items, generic.AggregateQuery{
		Dimension: dim,
		WeekStart: ws,
		Currency:  optionalCurrency(req.Currency),
		Rates:     rates,
	})
	if err != nil {
		writeDomainError(w, "Aggregation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// LayoutTimeline lays out entities posted in the body.
func (h *Handler) LayoutTimeline(w http.ResponseWriter, r *http.Request) {
	var req TimelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ws, err := h.weekStartParam(req.WeekStart, h.TimelineWeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start", err)
		return
	}

	layout, err := generic.Layout(req.Entities, generic.LayoutOptions{
		WeekStart:   ws,
		Today:       h.Clock,
		PaddingDays: req.PaddingDays,
	})
	if err != nil {
		writeDomainError(w, "Layout failed", err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

// =============================================================================
// PLAN ENDPOINTS
// =============================================================================

// ListPlans returns plans, optionally filtered by ?kind=.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context(), generic.PlanKind(r.URL.Query().Get("kind")))
	if err != nil {
		writeDomainError(w, "Failed to list plans", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(toPlanDTOs(plans)))
}

// CreatePlan creates an unlocked plan.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	plan := generic.Plan{
		ID:         generic.PlanID(req.ID),
		Kind:       generic.PlanKind(req.Kind),
		Name:       req.Name,
		GroupKey:   req.GroupKey,
		GroupLabel: req.GroupLabel,
		Currency:   generic.Currency(req.Currency),
	}
	switch plan.Kind {
	case "", generic.PlanEstimate, generic.PlanEngagement:
	default:
		writeError(w, http.StatusBadRequest, "kind must be estimate or engagement", nil)
		return
	}
	if req.Start != "" || req.End != "" {
		dateRange, err := generic.NewRange(req.Start, req.End)
		if err != nil {
			writeDomainError(w, "Invalid date range", err)
			return
		}
		plan.DateRange = &dateRange
	}

	created, err := h.Estimates.CreatePlan(r.Context(), plan)
	if err != nil {
		writeDomainError(w, "Failed to create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(created))
}

// GetPlan returns one plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.GetPlan(r.Context(), planIDParam(r))
	if err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// LockPlan locks an estimate as a new quote.
func (h *Handler) LockPlan(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quote, err := h.Estimates.LockAsQuote(r.Context(), planIDParam(r), req.Name)
	if err != nil {
		writeDomainError(w, "Failed to lock plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(quote))
}

// =============================================================================
// LINE ITEM ENDPOINTS
// =============================================================================

// ListLineItems returns a plan's line items.
func (h *Handler) ListLineItems(w http.ResponseWriter, r *http.Request) {
	planID := planIDParam(r)
	if _, err := h.Store.GetPlan(r.Context(), planID); err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}
	items, err := h.Store.ListLineItems(r.Context(), planID)
	if err != nil {
		writeDomainError(w, "Failed to list line items", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(toLineItemDTOs(items)))
}

// AddLineItem adds a line item, optionally pre-filled uniformly.
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	var req LineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	li, err := req.toLineItem()
	if err != nil {
		writeDomainError(w, "Invalid line item", err)
		return
	}

	created, err := h.Estimates.AddLineItem(r.Context(), planIDParam(r), li, req.DefaultHoursPerWeek)
	if err != nil {
		writeDomainError(w, "Failed to add line item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineItemDTO(created))
}

// UpdateLineItem replaces a line item's editable fields.
func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	var req LineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	li, err := req.toLineItem()
	if err != nil {
		writeDomainError(w, "Invalid line item", err)
		return
	}
	li.ID = lineItemIDParam(r)

	if !h.lineItemInPlan(w, r, li.ID) {
		return
	}
	updated, err := h.Estimates.UpdateLineItem(r.Context(), li)
	if err != nil {
		writeDomainError(w, "Failed to update line item", err)
		return
	}
	writeJSON(w, http.StatusOK, toLineItemDTO(updated))
}

// DeleteLineItem removes a line item.
func (h *Handler) DeleteLineItem(w http.ResponseWriter, r *http.Request) {
	id := lineItemIDParam(r)
	if !h.lineItemInPlan(w, r, id) {
		return
	}
	if err := h.Estimates.DeleteLineItem(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete line item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// SetWeeklyHours overwrites the hours of the posted weeks.
func (h *Handler) SetWeeklyHours(w http.ResponseWriter, r *http.Request) {
	var req WeeklyHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	id := lineItemIDParam(r)
	if !h.lineItemInPlan(w, r, id) {
		return
	}

	updated, err := h.Estimates.SetWeeklyHours(r.Context(), id, req.WeeklyHours)
	if err != nil {
		writeDomainError(w, "Failed to set weekly hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toLineItemDTO(updated))
}

// FillLineItem applies a fill pattern to a stored line item.
func (h *Handler) FillLineItem(w http.ResponseWriter, r *http.Request) {
	var req factory.FillPatternJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	params, err := req.Params()
	if err != nil {
		writeDomainError(w, "Invalid fill pattern", err)
		return
	}
	id := lineItemIDParam(r)
	if !h.lineItemInPlan(w, r, id) {
		return
	}

	filled, err := h.Estimates.FillLineItem(r.Context(), id, params)
	if err != nil {
		writeDomainError(w, "Failed to fill line item", err)
		return
	}
	writeJSON(w, http.StatusOK, toLineItemDTO(filled))
}

// lineItemInPlan writes 404 and returns false unless the line item
// belongs to the plan in the URL.
func (h *Handler) lineItemInPlan(w http.ResponseWriter, r *http.Request, id generic.LineItemID) bool {
	li, err := h.Store.GetLineItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get line item", err)
		return false
	}
	if li.PlanID != planIDParam(r) {
		writeError(w, http.StatusNotFound, "Line item not found in plan", generic.ErrLineItemNotFound)
		return false
	}
	return true
}

// =============================================================================
// TOTALS & WARNINGS
// =============================================================================

// GetTotals aggregates a stored plan (?group=week|month|role|...&currency=EUR).
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	dim, err := generic.ParseDimension(r.URL.Query().Get("group"))
	if err != nil {
		writeDomainError(w, "Invalid group", err)
		return
	}

	q := generic.AggregateQuery{
		Dimension: dim,
		Currency:  optionalCurrency(r.URL.Query().Get("currency")),
		Rates:     h.Rates.Rates(),
	}
	report, err := h.Estimates.Totals(r.Context(), planIDParam(r), q)
	if err != nil {
		writeDomainError(w, "Failed to compute totals", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetWarnings lists weekly entries that do not line up with their items.
func (h *Handler) GetWarnings(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.Estimates.Warnings(r.Context(), planIDParam(r))
	if err != nil {
		writeDomainError(w, "Failed to compute warnings", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(warnings))
}

// =============================================================================
// PHASE ENDPOINTS
// =============================================================================

// ListPhases returns a plan's phases.
func (h *Handler) ListPhases(w http.ResponseWriter, r *http.Request) {
	planID := planIDParam(r)
	if _, err := h.Store.GetPlan(r.Context(), planID); err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}
	phases, err := h.Store.ListPhases(r.Context(), planID)
	if err != nil {
		writeDomainError(w, "Failed to list phases", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(toPhaseDTOs(phases)))
}

// AddPhase adds a phase to a plan.
func (h *Handler) AddPhase(w http.ResponseWriter, r *http.Request) {
	var req PhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	dateRange, err := generic.NewRange(req.Start, req.End)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}

	phase, err := h.Estimates.AddPhase(r.Context(), planIDParam(r), generic.Phase{
		ID:        generic.PhaseID(req.ID),
		Name:      req.Name,
		DateRange: dateRange,
		Color:     req.Color,
		RowOrder:  req.RowOrder,
	})
	if err != nil {
		writeDomainError(w, "Failed to add phase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPhaseDTO(phase))
}

// =============================================================================
// PORTFOLIO TIMELINE
// =============================================================================

// GetTimeline lays out stored engagements (?plan=a&plan=b, default all).
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	ws, err := h.weekStartParam(r.URL.Query().Get("week_start"), h.TimelineWeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start", err)
		return
	}
	var planIDs []generic.PlanID
	for _, id := range r.URL.Query()["plan"] {
		planIDs = append(planIDs, generic.PlanID(id))
	}

	layout, err := engagement.Timeline(r.Context(), h.Store, planIDs, generic.LayoutOptions{
		WeekStart: ws,
		Today:     h.Clock,
	})
	if err != nil {
		writeDomainError(w, "Failed to build timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

// =============================================================================
// ADMIN
// =============================================================================

type resetter interface {
	Reset(ctx context.Context) error
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	if err := rs.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	h.refreshRates(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func planIDParam(r *http.Request) generic.PlanID {
	return generic.PlanID(chi.URLParam(r, "id"))
}

func lineItemIDParam(r *http.Request) generic.LineItemID {
	return generic.LineItemID(chi.URLParam(r, "itemID"))
}

func (h *Handler) weekStartParam(raw string, fallback generic.WeekStart) (generic.WeekStart, error) {
	if raw == "" {
		return fallback, nil
	}
	return generic.ParseWeekStart(raw)
}

func optionalCurrency(raw string) generic.Currency {
	if raw == "" {
		return ""
	}
	return generic.NormalizeCurrency(raw)
}

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

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	code := ""
	switch {
	case generic.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case generic.IsConflict(err):
		status, code = http.StatusConflict, "locked"
	case errors.Is(err, generic.ErrUnknownCurrency):
		status, code = http.StatusBadRequest, "unknown_currency"
	case errors.Is(err, generic.ErrInvalidPatternParams):
		status, code = http.StatusBadRequest, "invalid_pattern_params"
	case errors.Is(err, generic.ErrInvalidDateFormat):
		status, code = http.StatusBadRequest, "invalid_date_format"
	case generic.IsClientError(err):
		status, code = http.StatusBadRequest, "invalid_input"
	}

	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
