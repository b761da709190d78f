package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/hub"
)

type createWebsiteRequest struct {
	URL string `json:"url"`
}

type validateRequest struct {
	WebsiteID string `json:"websiteId"`
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) createWebsite(w http.ResponseWriter, r *http.Request) {
	var req createWebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	target, err := s.hub.AddTarget(r.Context(), accountFrom(r.Context()), req.URL)
	switch {
	case errors.Is(err, hub.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hub.ErrDuplicateTarget):
		writeError(w, http.StatusBadRequest, "Website already exists")
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, target)
	}
}

func (s *Server) deleteWebsite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteId")
	err := s.hub.RemoveTarget(r.Context(), accountFrom(r.Context()), id)
	switch {
	case errors.Is(err, hub.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, "Website not found")
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Website deleted (disabled)"})
	}
}

func (s *Server) listWebsites(w http.ResponseWriter, r *http.Request) {
	reports, err := s.hub.ListTargets(r.Context(), accountFrom(r.Context()))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"websites": reports})
}

func (s *Server) websiteStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("websiteId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Website ID is required")
		return
	}

	report, err := s.hub.TargetStatus(r.Context(), accountFrom(r.Context()), id)
	switch {
	case errors.Is(err, hub.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, "Website not found or disabled")
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// validate probes a website from the hub right away.
func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WebsiteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  string(constants.StatusBad),
			"message": "Website ID is required",
		})
		return
	}

	address, forwarded := callerAddress(r)
	result, err := s.hub.CheckNow(r.Context(), accountFrom(r.Context()), req.WebsiteID, address, forwarded)
	switch {
	case errors.Is(err, hub.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, "Website not found or access denied")
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) listValidators(w http.ResponseWriter, r *http.Request) {
	validators, err := s.hub.Validators(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"validators": validators})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"validators": len(s.hub.ConnectedValidators()),
		"inflight":   s.hub.InflightTasks(),
	})
}
