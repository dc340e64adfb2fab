package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jonathan/cover-letter-studio/internal/types"
)

const maxListLimit = 200

// handleListJobs lists the caller's jobs, newest activity first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	jobs, err := s.repo.ListJobs(r.Context(), owner, limit)
	if err != nil {
		s.storeResponse(w, err)
		return
	}
	if jobs == nil {
		jobs = []types.JobRecord{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	job, err := s.repo.GetJob(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		s.storeResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleDeleteJob deletes a job together with its letter.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteJob(r.Context(), owner, r.PathValue("id")); err != nil {
		s.storeResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJobLetter(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	letter, err := s.repo.LetterForJob(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		s.storeResponse(w, err)
		return
	}
	if letter == nil {
		s.errorResponse(w, http.StatusNotFound, "Der er endnu ikke genereret en ansøgning til dette job")
		return
	}
	s.jsonResponse(w, http.StatusOK, letter)
}

// handleImportJob reads a posting URL into an unsaved job draft.
func (s *Server) handleImportJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ownerID(w, r); !ok {
		return
	}
	if s.importer == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "job import is not configured")
		return
	}
	var req types.ImportJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := requestValidator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationError(err).Error())
		return
	}

	draft, err := s.importer.Import(r.Context(), req.URL, req.UseBrowser)
	if err != nil {
		status := HTTPStatus(err)
		s.log.Warn("job import failed", "url", req.URL, "status", status, "error", err)
		s.errorResponse(w, status, "Jobopslaget kunne ikke hentes. Indtast oplysningerne manuelt.")
		return
	}
	s.jsonResponse(w, http.StatusOK, draft)
}
