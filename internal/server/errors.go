package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/cover-letter-studio/internal/fetch"
	"github.com/jonathan/cover-letter-studio/internal/gateway"
	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/ingestion"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrPasswordMismatch indicates current password is incorrect
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "current password is incorrect"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// kindStatus maps classified pipeline failures to HTTP status codes.
var kindStatus = map[generation.ErrorKind]int{
	generation.KindValidationRejected:  http.StatusBadRequest,
	generation.KindSecurityFlagged:     http.StatusForbidden,
	generation.KindGenerationRejected:  http.StatusUnprocessableEntity,
	generation.KindGenerationTimeout:   http.StatusGatewayTimeout,
	generation.KindUpstreamUnavailable: http.StatusServiceUnavailable,
	generation.KindNetwork:             http.StatusBadGateway,
	generation.KindCancelled:           http.StatusConflict,
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var ce *generation.ClassifiedError
	if errors.As(err, &ce) {
		if ce.Silent {
			return http.StatusConflict
		}
		if status, ok := kindStatus[ce.Kind]; ok {
			return status
		}
		return http.StatusInternalServerError
	}

	var (
		emailErr *ErrEmailAlreadyExists
		credErr  *ErrInvalidCredentials
		pwErr    *ErrPasswordMismatch
		userErr  *ErrUserNotFound
		validErr *ErrValidation
		fetchErr *fetch.Error
	)
	switch {
	case errors.As(err, &emailErr):
		return http.StatusConflict
	case errors.As(err, &credErr), errors.As(err, &pwErr):
		return http.StatusUnauthorized
	case errors.As(err, &userErr), errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &validErr):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrContentExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingestion.ErrHTTPRequestFailed):
		return http.StatusBadGateway
	case errors.As(err, &fetchErr):
		return http.StatusBadRequest
	}
	if kind := generation.KindOf(err); kind != generation.KindUnknown {
		if status, ok := kindStatus[kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// classifiedBody is the JSON shape of a failed generation run.
type classifiedBody struct {
	Error string `json:"error"`
	*generation.ClassifiedError
}

// classifiedResponse writes a pipeline failure. Runs that were cancelled or
// superseded carry no user-facing text.
func (s *Server) classifiedResponse(w http.ResponseWriter, err error) {
	var ce *generation.ClassifiedError
	if !errors.As(err, &ce) {
		s.log.Error("unclassified generation failure", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Der opstod en uventet fejl.")
		return
	}
	if ce.Silent {
		s.jsonResponse(w, http.StatusConflict, map[string]any{"error": "cancelled", "kind": generation.KindCancelled, "silent": true})
		return
	}
	s.jsonResponse(w, HTTPStatus(ce), classifiedBody{Error: ce.Description, ClassifiedError: ce})
}

// storeResponse writes a repository failure.
func (s *Server) storeResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= 500 {
		s.log.Error("repository call failed", "error", err)
		s.errorResponse(w, status, "Der opstod en fejl. Prøv igen senere.")
		return
	}
	if status == http.StatusNotFound {
		s.errorResponse(w, status, "Ikke fundet")
		return
	}
	s.errorResponse(w, status, err.Error())
}
