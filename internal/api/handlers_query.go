package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"novelrag/internal/domain"
	"novelrag/internal/service"
)

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.TopK < 0 || req.TopK > s.cfg.MaxTopK {
		jsonError(w, fmt.Sprintf("top_k must be between 0 and %d", s.cfg.MaxTopK), http.StatusBadRequest)
		return
	}

	res, err := s.answerer.Ask(r.Context(), req.Query, req.TopK)
	switch {
	case err == nil:
		jsonResponse(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrEmptyRetrieval):
		jsonError(w, domain.ErrEmptyRetrieval.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrEmptyQuery):
		jsonError(w, "query is required", http.StatusBadRequest)
	case errors.Is(err, domain.ErrIndexNotBuilt):
		jsonError(w, domain.ErrIndexNotBuilt.Error(), http.StatusServiceUnavailable)
	default:
		s.log.Error("query failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		jsonError(w, "failed to answer query", http.StatusInternalServerError)
	}
}

func jsonResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonResponse(w, code, map[string]string{"error": msg})
}
