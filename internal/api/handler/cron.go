package handler

import (
	"context"
	"net/http"

	"github.com/wordforge/wordforge/internal/api/response"
)

// Trigger is one stateless pass of the dispatcher or settlement engine.
// The external scheduler carries no payload; everything an invocation needs
// lives in the datastore.
type Trigger func(ctx context.Context) error

// NewTriggerHandler wraps a trigger pass as an internal cron endpoint.
func NewTriggerHandler(run Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := run(r.Context()); err != nil {
			response.Error(w, http.StatusInternalServerError, "TRIGGER_FAILED", err.Error(), nil)
			return
		}
		response.Accepted(w, map[string]string{"status": "ok"})
	}
}
