package api

import (
	"context"
	"net/http"
	"time"

	"github.com/JustinTDCT/CineGate/internal/httputil"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.log.WithError(err).Warn("health check: store unreachable")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, code, map[string]string{"status": status, "version": s.version})
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	if s.sitemap == nil {
		writeNotFound(w, "sitemap disabled")
		return
	}
	data, err := s.sitemap.XML(r.Context())
	if err != nil {
		s.log.WithError(err).Error("sitemap render failed")
		httputil.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "sitemap unavailable")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	httputil.WriteRaw(w, http.StatusOK, "application/xml; charset=utf-8", data)
}
