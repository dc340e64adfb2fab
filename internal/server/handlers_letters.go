package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/progress"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

var requestValidator = validator.New()

// maxBodyBytes bounds request bodies; descriptions are pasted postings.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

// validationError turns validator output into an ErrValidation for the first field.
func validationError(err error) *ErrValidation {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ErrValidation{Field: strings.ToLower(verrs[0].Field()), Message: verrs[0].Tag()}
	}
	return &ErrValidation{Field: "body", Message: "invalid request"}
}

// progressView is the progress snapshot returned to the UI.
type progressView struct {
	progress.Update
	State   string `json:"state"`
	Running bool   `json:"running"`
}

// handleGenerate runs the pipeline and answers once it finishes.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	var req types.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.registry.For(owner).Run(r.Context(), owner, req.Job, generation.RunOptions{ExistingJobID: req.JobID})
	if err != nil {
		s.classifiedResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.GenerateResponse{Job: res.Job, Letter: res.Letter})
}

// handleGenerateStream runs the pipeline and streams tracker updates as
// progress events, ending with a result, error or cancelled event.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	var req types.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	orch := s.registry.For(owner)
	updates, unsubscribe := orch.Tracker().Subscribe()
	defer unsubscribe()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	type outcome struct {
		res *generation.Result
		err error
	}
	// The tracker is owner-wide; only this request's attempt is streamed.
	var attempt atomic.Uint64
	writeUpdate := func(u progress.Update) {
		if mine := attempt.Load(); mine != 0 && u.Attempt == mine {
			_ = sse.WriteEvent(eventProgress, u)
		}
	}
	opts := generation.RunOptions{ExistingJobID: req.JobID, OnAttempt: attempt.Store}

	done := make(chan outcome, 1)
	go func() {
		res, err := orch.Run(r.Context(), owner, req.Job, opts)
		done <- outcome{res, err}
	}()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case u := <-updates:
			writeUpdate(u)
		case <-keepAlive.C:
			_ = sse.KeepAlive()
		case out := <-done:
			// Updates recorded before Run returned are already buffered.
			for drained := false; !drained; {
				select {
				case u := <-updates:
					writeUpdate(u)
				default:
					drained = true
				}
			}
			s.writeOutcome(sse, out.res, out.err)
			return
		}
	}
}

func (s *Server) writeOutcome(sse *SSEWriter, res *generation.Result, err error) {
	if err == nil {
		_ = sse.WriteEvent(eventResult, types.GenerateResponse{Job: res.Job, Letter: res.Letter})
		return
	}
	var ce *generation.ClassifiedError
	switch {
	case errors.As(err, &ce) && ce.Silent:
		_ = sse.WriteEvent(eventCancelled, map[string]string{"job_id": ce.JobID})
	case ce != nil:
		_ = sse.WriteEvent(eventError, classifiedBody{Error: ce.Description, ClassifiedError: ce})
	default:
		s.log.Error("unclassified generation failure", "error", err)
		_ = sse.WriteEvent(eventError, map[string]string{"error": "Der opstod en uventet fejl."})
	}
}

// handleCancel aborts the caller's live run.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	cancelled := false
	if orch, found := s.registry.Lookup(owner); found {
		cancelled = orch.Cancel()
	}
	s.jsonResponse(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// handleProgress returns the caller's current progress. With
// Accept: text/event-stream it streams the owner's updates from the bus
// until the client goes away.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		view := progressView{Update: progress.Update{Owner: owner}, State: generation.StateIdle.String()}
		if orch, found := s.registry.Lookup(owner); found {
			state := orch.State()
			view = progressView{Update: orch.Tracker().Snapshot(), State: state.String(), Running: state.Running()}
		}
		s.jsonResponse(w, http.StatusOK, view)
		return
	}

	updates, unsubscribe := s.bus.Subscribe(owner)
	defer unsubscribe()
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := sse.KeepAlive(); err != nil {
				return
			}
		case u, open := <-updates:
			if !open {
				return
			}
			if err := sse.WriteEvent(eventProgress, u); err != nil {
				return
			}
		}
	}
}

// handleUpdateLetter replaces a letter's content without a pipeline run.
func (s *Server) handleUpdateLetter(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	var req types.UpdateLetterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := requestValidator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationError(err).Error())
		return
	}

	letter, err := s.repo.UpdateLetter(r.Context(), owner, r.PathValue("id"), req.Content)
	if err != nil {
		s.storeResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, letter)
}
