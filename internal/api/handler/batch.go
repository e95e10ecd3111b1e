package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wordforge/wordforge/internal/api/middleware"
	"github.com/wordforge/wordforge/internal/api/response"
	"github.com/wordforge/wordforge/internal/batchsvc"
	"github.com/wordforge/wordforge/internal/cache"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/pkg/models"
)

const batchStatusTTL = 15 * time.Second

// BatchCreator is the slice of the batch service the handler depends on.
type BatchCreator interface {
	Create(ctx context.Context, params batchsvc.CreateParams) (*models.Batch, error)
}

// NewCreateBatchHandler returns the handler for POST /api/v1/batches.
func NewCreateBatchHandler(svc BatchCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Keywords     []string `json:"keywords"`
			Tier         string   `json:"tier"`
			WordLimit    int      `json:"word_limit"`
			Instructions string   `json:"instructions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		batch, err := svc.Create(r.Context(), batchsvc.CreateParams{
			UserID:       userID,
			Keywords:     req.Keywords,
			Tier:         models.Tier(req.Tier),
			WordLimit:    req.WordLimit,
			Instructions: req.Instructions,
		})
		if err != nil {
			switch {
			case errors.Is(err, batchsvc.ErrNoKeywords),
				errors.Is(err, batchsvc.ErrTooManyKeywords),
				errors.Is(err, batchsvc.ErrInvalidTier):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			case errors.Is(err, batchsvc.ErrInsufficientFunds):
				response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS",
					"Not enough credits for this batch", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to create batch", nil)
			}
			return
		}

		response.Created(w, batch)
	}
}

// NewGetBatchHandler returns the handler for GET /api/v1/batches/{batchID}.
// Status reads are cached briefly; the counts a user polls move slowly
// compared with the settlement cadence.
func NewGetBatchHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid batch id", nil)
			return
		}

		if cached, hit, err := ca.GetBatchStatus(r.Context(), batchID); err == nil && hit {
			var batch models.Batch
			if json.Unmarshal(cached, &batch) == nil && batch.UserID == userID {
				response.JSON(w, &batch)
				return
			}
		}

		batch, err := st.GetBatch(r.Context(), batchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Batch not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load batch", nil)
			return
		}
		if batch.UserID != userID {
			// Hide other users' batches entirely.
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Batch not found", nil)
			return
		}

		if payload, err := json.Marshal(batch); err == nil {
			_ = ca.SetBatchStatus(r.Context(), batchID, payload, batchStatusTTL)
		}
		response.JSON(w, batch)
	}
}

// NewListBatchesHandler returns the handler for GET /api/v1/batches.
func NewListBatchesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		batches, err := st.ListBatchesByUser(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list batches", nil)
			return
		}
		if batches == nil {
			batches = []*models.Batch{}
		}
		response.JSON(w, batches)
	}
}
