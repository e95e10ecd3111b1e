package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/wordforge/wordforge/internal/api/middleware"
	"github.com/wordforge/wordforge/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	// Shared secrets for the machine-to-machine surfaces.
	WorkerSecret string
	CronSecret   string

	HealthHandler http.HandlerFunc

	CreateBatchHandler http.HandlerFunc
	GetBatchHandler    http.HandlerFunc
	ListBatchesHandler http.HandlerFunc

	UnitContentHandler http.HandlerFunc

	DispatchTrigger http.HandlerFunc
	SettleTrigger   http.HandlerFunc
	SweepTrigger    http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected customer routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/batches", orNotImplemented(deps.CreateBatchHandler))
		r.Get("/api/v1/batches", orNotImplemented(deps.ListBatchesHandler))
		r.Get("/api/v1/batches/{batchID}", orNotImplemented(deps.GetBatchHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	// Worker callback: content delivery from the generation network.
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSecret("X-Worker-Secret", deps.WorkerSecret))

		r.Post("/worker/v1/units/{unitID}/content", orNotImplemented(deps.UnitContentHandler))
	})

	// Internal trigger routes hit by the external scheduler. Each pass is
	// stateless, so the scheduler can re-fire a failed trigger freely.
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSecret("X-Cron-Secret", deps.CronSecret))

		r.Post("/internal/cron/dispatch", orNotImplemented(deps.DispatchTrigger))
		r.Post("/internal/cron/settle", orNotImplemented(deps.SettleTrigger))
		r.Post("/internal/cron/sweep", orNotImplemented(deps.SweepTrigger))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
