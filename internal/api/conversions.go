package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chattxt/internal/store"
)

// History lists recorded conversions.
type History interface {
	RecentConversions(ctx context.Context, limit int) ([]store.Conversion, error)
	GetConversion(ctx context.Context, id uuid.UUID) (*store.Conversion, error)
}

type conversionsResponse struct {
	Conversions []store.Conversion `json:"conversions"`
	Count       int                `json:"count"`
}

// listConversions handles GET /api/v1/conversions?limit=n
func (s *Server) listConversions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := s.history.RecentConversions(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list conversions", "error", err)
		writeError(w, http.StatusInternalServerError, "list conversions failed")
		return
	}
	if list == nil {
		list = []store.Conversion{}
	}
	writeJSON(w, http.StatusOK, conversionsResponse{Conversions: list, Count: len(list)})
}

// getConversion handles GET /api/v1/conversions/{id}
func (s *Server) getConversion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversion id")
		return
	}

	c, err := s.history.GetConversion(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversion not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get conversion", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get conversion failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
