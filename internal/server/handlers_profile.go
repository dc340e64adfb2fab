package server

import (
	"net/http"

	"github.com/jonathan/cover-letter-studio/internal/types"
)

// handleGetProfile returns the caller's profile; an empty one if none is saved.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	profile, err := s.repo.FetchProfile(r.Context(), owner)
	if err != nil {
		s.storeResponse(w, err)
		return
	}
	if profile == nil {
		profile = &types.ApplicantProfile{OwnerID: owner}
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	var req types.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := requestValidator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationError(err).Error())
		return
	}

	saved, err := s.repo.SaveProfile(r.Context(), req.ToProfile(owner))
	if err != nil {
		s.storeResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, saved)
}
