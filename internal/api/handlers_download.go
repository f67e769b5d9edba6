package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/CineGate/internal/audit"
	"github.com/JustinTDCT/CineGate/internal/httputil"
	"github.com/JustinTDCT/CineGate/internal/validate"
)

const maxEventContext = 16

func (s *Server) handleQualities(w http.ResponseWriter, r *http.Request) {
	res, err := s.downloads.Qualities(r.Context(), chi.URLParam(r, "slug"))
	writeResult(w, res, err)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	res, err := s.downloads.Services(r.Context(), chi.URLParam(r, "slug"), r.URL.Query().Get("quality"))
	writeResult(w, res, err)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.downloads.Link(r.Context(), chi.URLParam(r, "slug"), q.Get("quality"), q.Get("service"))
	writeResult(w, res, err)
}

type tokenRequest struct {
	Quality string `json:"quality"`
	Service string `json:"service"`
}

type tokenResponse struct {
	Success     bool      `json:"success"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	RedirectURL string    `json:"redirectUrl"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "token redirects are disabled")
		return
	}
	var req tokenRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	issued, err := s.tokens.Issue(r.Context(), chi.URLParam(r, "slug"), req.Quality, req.Service)
	if err != nil {
		writeFailure(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Success:     true,
		Token:       issued.Token,
		ExpiresAt:   issued.ExpiresAt,
		RedirectURL: "/go/" + issued.Token,
	})
}

// handleRedirect redeems a token: 302 to the real link, or 403 with the
// rejection reason.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeNotFound(w, "token redirects are disabled")
		return
	}
	res := s.tokens.Validate(r.Context(), chi.URLParam(r, "token"))
	if !res.Valid {
		httputil.WriteReason(w, http.StatusForbidden, "download not allowed", res.Reason)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, res.RealLink, http.StatusFound)
}

type clientEvent struct {
	Type    audit.EventType `json:"type"`
	Slug    string          `json:"slug"`
	Quality string          `json:"quality"`
	Service string          `json:"service"`
	Context map[string]any  `json:"context"`
}

// handleClientEvent records negotiation steps reported by clients. Only
// the client-side event types are accepted; identity and time are stamped
// server-side.
func (s *Server) handleClientEvent(w http.ResponseWriter, r *http.Request) {
	var ev clientEvent
	if err := httputil.ReadJSON(r, &ev); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if !slices.Contains(audit.ClientEventTypes, ev.Type) {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_EVENT", "unsupported event type")
		return
	}
	slug, err := validate.Slug(ev.Slug)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_SLUG", "invalid slug")
		return
	}
	if len(ev.Context) > maxEventContext {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_EVENT", "too many context fields")
		return
	}
	s.audit.Record(r.Context(), audit.Event{
		Type:    ev.Type,
		Slug:    slug,
		Quality: ev.Quality,
		Service: ev.Service,
		Context: ev.Context,
	})
	httputil.WriteJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

