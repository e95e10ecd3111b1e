package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wordforge/wordforge/internal/api/response"
	"github.com/wordforge/wordforge/internal/store"
)

// NewUnitContentHandler returns the handler for the worker's content
// callback, POST /worker/v1/units/{unitID}/content. This is the out-of-band
// write path: the settlement engine only ever observes the content column,
// so delivering here is all a worker needs to do to mark a unit ready.
func NewUnitContentHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := uuid.Parse(chi.URLParam(r, "unitID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid unit id", nil)
			return
		}

		var req struct {
			Content         string  `json:"content"`
			MetaTitle       *string `json:"meta_title"`
			MetaDescription *string `json:"meta_description"`
			ImageURL        *string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Content == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "content is required", nil)
			return
		}

		err = st.SetUnitContent(r.Context(), unitID, store.UnitContent{
			Content:         req.Content,
			MetaTitle:       req.MetaTitle,
			MetaDescription: req.MetaDescription,
			ImageURL:        req.ImageURL,
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Unit not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store content", nil)
			return
		}

		response.JSON(w, map[string]any{"unit_id": unitID, "stored": true})
	}
}
