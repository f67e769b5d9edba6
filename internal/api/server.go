package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/audit"
	"github.com/JustinTDCT/CineGate/internal/catalog"
	"github.com/JustinTDCT/CineGate/internal/download"
	"github.com/JustinTDCT/CineGate/internal/metrics"
	"github.com/JustinTDCT/CineGate/internal/ratelimit"
	"github.com/JustinTDCT/CineGate/internal/related"
	"github.com/JustinTDCT/CineGate/internal/resolver"
	"github.com/JustinTDCT/CineGate/internal/sitemap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Catalog   *catalog.Service
	Resolver  *resolver.Resolver
	Related   *related.Dispatcher
	Downloads *download.Service
	Tokens    *download.Tokens
	Audit     audit.Recorder
	Sitemap   *sitemap.Generator
	// Limiter guards the download endpoints; nil disables limiting.
	Limiter *ratelimit.IPLimiter
	// Proxies whose forwarding headers name the caller; nil trusts none.
	Proxies *ratelimit.Proxies
	Store   Pinger
	Version string
	Log     logrus.FieldLogger
}

type Server struct {
	catalog   *catalog.Service
	resolver  *resolver.Resolver
	related   *related.Dispatcher
	downloads *download.Service
	tokens    *download.Tokens
	audit     audit.Recorder
	sitemap   *sitemap.Generator
	limiter   *ratelimit.IPLimiter
	proxies   *ratelimit.Proxies
	store     Pinger
	version   string
	log       logrus.FieldLogger
	router    chi.Router
}

func NewServer(d Deps) *Server {
	rec := d.Audit
	if rec == nil {
		rec = audit.Nop{}
	}
	s := &Server{
		catalog:   d.Catalog,
		resolver:  d.Resolver,
		related:   d.Related,
		downloads: d.Downloads,
		tokens:    d.Tokens,
		audit:     rec,
		sitemap:   d.Sitemap,
		limiter:   d.Limiter,
		proxies:   d.Proxies,
		store:     d.Store,
		version:   d.Version,
		log:       d.Log.WithField("component", "api"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(securityHeaders)
	r.Use(cors)
	r.Use(s.clientContext)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/sitemap.xml", s.handleSitemap)
	r.With(s.limit).Get("/go/{token}", s.handleRedirect)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/content/{kind}", s.handleContent)
		r.Get("/films", s.handleFilms)
		r.Get("/series", s.handleSeries)
		r.Get("/episodes", s.handleEpisodes)
		r.Get("/collections", s.handleCollections)
		r.Get("/collections/{id}", s.handleCollection)
		r.Get("/latest", s.handleLatest)
		r.Get("/search", s.handleSearch)
		r.Get("/filters/{kind}", s.handleFilterOptions)
		r.Get("/resolve/{slug}", s.handleResolve)

		r.Route("/download", func(r chi.Router) {
			r.Use(s.limit)
			r.Post("/events", s.handleClientEvent)
			r.Get("/{slug}/qualities", s.handleQualities)
			r.Get("/{slug}/services", s.handleServices)
			r.Get("/{slug}/link", s.handleLink)
			r.Post("/{slug}/token", s.handleIssueToken)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "route not found")
	})
	return r
}

func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}
