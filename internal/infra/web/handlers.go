package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"heystak-spider/internal/domain"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/infra/db/postgres"
)

const (
	defaultMaxItems = 50
	maxItemsCeiling = 1000
	defaultListSize = 100
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotTerminal):
		http.Error(w, "Job is not in a terminal state", http.StatusConflict)
	case errors.Is(err, domain.ErrStoreUnavailable):
		http.Error(w, "Job store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// handleLogin trades the API key for a short-lived session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if s.auth == nil {
		http.Error(w, "Sessions not configured", http.StatusNotImplemented)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var spec model.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if spec.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	if u, err := url.Parse(spec.URL); err != nil || u.Scheme == "" || u.Host == "" {
		http.Error(w, "url must be absolute", http.StatusBadRequest)
		return
	}
	if spec.MaxItems <= 0 {
		spec.MaxItems = defaultMaxItems
	}
	if spec.MaxItems > maxItemsCeiling {
		spec.MaxItems = maxItemsCeiling
	}
	switch model.AnalysisMode(spec.AnalysisMode) {
	case "", model.AnalysisModeText, model.AnalysisModeImage, model.AnalysisModeVideo:
	default:
		http.Error(w, "unknown analysis_mode", http.StatusBadRequest)
		return
	}

	job, err := s.jobs.Create(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultListSize
	}
	jobs, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	// Optional status filter, applied after the store read.
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if string(j.Status) == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.jobs.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRequeueJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.jobs.Requeue(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	status := model.JobStatus(r.URL.Query().Get("status"))
	if !status.Terminal() {
		http.Error(w, "status must be completed, failed or cancelled", http.StatusBadRequest)
		return
	}
	n, err := s.jobs.ClearTerminal(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListAds(w http.ResponseWriter, r *http.Request) {
	if s.ads == nil {
		http.Error(w, "Relational store not configured", http.StatusNotImplemented)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.ParseUint(q.Get("limit"), 10, 32)
	if limit == 0 {
		limit = defaultListSize
	}
	offset, _ := strconv.ParseUint(q.Get("offset"), 10, 32)

	items, err := s.ads.ListAds(r.Context(), postgres.AdFilter{
		PageID:    q.Get("page_id"),
		HasVideo:  q.Get("has_video") == "true",
		SinceDate: q.Get("since"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []*model.AdItem{}
	}
	writeJSON(w, http.StatusOK, items)
}
