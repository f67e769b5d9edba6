package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/CineGate/internal/httputil"
	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/pagination"
	"github.com/JustinTDCT/CineGate/internal/query"
	"github.com/JustinTDCT/CineGate/internal/related"
)

func (s *Server) listContent(w http.ResponseWriter, r *http.Request, kind models.Kind) {
	q := r.URL.Query()
	res, err := s.catalog.GetContent(r.Context(), kind, query.FromQuery(q), q.Get("sort"), pagination.ParsePage(q.Get("page")))
	writeResult(w, res, err)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseListKind(chi.URLParam(r, "kind"))
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_KIND", "kind must be films or series")
		return
	}
	s.listContent(w, r, kind)
}

func (s *Server) handleFilms(w http.ResponseWriter, r *http.Request) {
	s.listContent(w, r, models.KindFilm)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	s.listContent(w, r, models.KindSeries)
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.catalog.GetEpisodesPage(r.Context(), q.Get("sort"), pagination.ParsePage(q.Get("page")))
	writeResult(w, res, err)
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	res, err := s.catalog.GetFilmCollectionsPage(r.Context(), pagination.ParsePage(r.URL.Query().Get("page")))
	writeResult(w, res, err)
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.catalog.GetFilmCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "data": col})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	res, err := s.catalog.GetLatest(r.Context(), pagination.ParsePage(r.URL.Query().Get("page")))
	writeResult(w, res, err)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := models.KindFilm
	if raw := q.Get("kind"); raw != "" {
		k, ok := models.ParseListKind(raw)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_KIND", "kind must be films or series")
			return
		}
		kind = k
	}
	res, err := s.catalog.Search(r.Context(), kind, q.Get("q"), pagination.ParsePage(q.Get("page")))
	writeResult(w, res, err)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseListKind(chi.URLParam(r, "kind"))
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_KIND", "kind must be films or series")
		return
	}
	opts, err := s.catalog.FilterOptions(r.Context(), kind)
	if err != nil {
		writeFailure(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "data": opts})
}

type resolveResponse struct {
	Success bool         `json:"success"`
	Type    models.Kind  `json:"type"`
	Data    any          `json:"data"`
	Related *related.Set `json:"related,omitempty"`
}

// handleResolve answers with the resolved document and, unless
// ?related=false, its related set. A related failure only drops the set.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolver.Resolve(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := resolveResponse{Success: true, Type: res.Type, Data: res.Data}
	if s.related != nil && r.URL.Query().Get("related") != "false" {
		if set, err := s.related.RelatedFor(r.Context(), res); err == nil {
			out.Related = set
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
