/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the estimate/Gantt frontend

ROUTE GROUPS:
  /api/rates/*          Currency rate table
  /api/convert          Currency conversion
  /api/fill             Fill-pattern preview
  /api/totals           Ad-hoc aggregation
  /api/timeline         Portfolio timeline (GET) / ad-hoc layout (POST)
  /api/plans/*          Estimates, quotes, engagements
  /api/scenarios/*      Demo scenarios (dev only)
  /api/reset            Database reset (dev only)
  /                     API index page

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the local frontend dev servers.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
// With no origins, DefaultAllowedOrigins is used.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Rate routes
		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Put("/{code}", h.PutRate)
			r.Delete("/{code}", h.DeleteRate)
		})
		r.Post("/convert", h.Convert)

		// Stateless engine routes
		r.Post("/fill", h.PreviewFill)
		r.Post("/totals", h.AggregateTotals)
		r.Get("/timeline", h.GetTimeline)
		r.Post("/timeline", h.LayoutTimeline)

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetPlan)
				r.Post("/lock", h.LockPlan)
				r.Get("/totals", h.GetTotals)
				r.Get("/warnings", h.GetWarnings)
				r.Get("/phases", h.ListPhases)
				r.Post("/phases", h.AddPhase)

				r.Route("/line-items", func(r chi.Router) {
					r.Get("/", h.ListLineItems)
					r.Post("/", h.AddLineItem)
					r.Put("/{itemID}", h.UpdateLineItem)
					r.Delete("/{itemID}", h.DeleteLineItem)
					r.Put("/{itemID}/weekly-hours", h.SetWeeklyHours)
					r.Post("/{itemID}/fill", h.FillLineItem)
				})
			})
		})

		// Demo routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/", indexPage)

	return r
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>Engagement Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Engagement Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/plans">/api/plans</a> - List plans</li>
<li><a href="/api/rates">/api/rates</a> - Currency rates</li>
<li><a href="/api/timeline">/api/timeline</a> - Engagement timeline</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`

func indexPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexHTML))
}
