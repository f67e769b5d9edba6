// Package download implements the staged link reveal: qualities first,
// then the services offering a quality, then the link itself. Every step
// fails closed and none leaks data belonging to a later step.
package download

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/audit"
	"github.com/JustinTDCT/CineGate/internal/metrics"
	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/repository"
	"github.com/JustinTDCT/CineGate/internal/resolver"
	"github.com/JustinTDCT/CineGate/internal/validate"
)

var (
	ErrInvalid     = errors.New("invalid download request")
	ErrNotFound    = errors.New("download not found")
	ErrUnavailable = errors.New("download unavailable")
)

const (
	stepQualities = "qualities"
	stepServices  = "services"
	stepLink      = "link"
)

type QualitiesResponse struct {
	Success   bool        `json:"success"`
	Qualities []string    `json:"qualities"`
	Type      models.Kind `json:"type,omitempty"`
	// RevealDelayMs is the wait clients keep between choosing a service
	// and asking for the link.
	RevealDelayMs int64 `json:"revealDelayMs,omitempty"`
}

type ServiceName struct {
	ServiceName string `json:"serviceName"`
}

type ServicesResponse struct {
	Success  bool          `json:"success"`
	Services []ServiceName `json:"services"`
}

type Link struct {
	DownloadLink string `json:"downloadLink"`
	Quality      string `json:"quality"`
	ServiceName  string `json:"serviceName"`
}

type LinkResponse struct {
	Success bool  `json:"success"`
	Link    *Link `json:"link,omitempty"`
}

// Request names one step's inputs. Quality and Service are only required by
// the steps that consume them.
type Request struct {
	Slug    string `json:"slug" validate:"required,max=256"`
	Quality string `json:"quality" validate:"omitempty,max=64,excludesall=$\\{}"`
	Service string `json:"service" validate:"omitempty,max=64,excludesall=$\\{}"`
}

type Service struct {
	repo     *repository.ContentRepository
	denylist map[string]struct{}
	audit    audit.Recorder
	log      logrus.FieldLogger
	validate *validator.Validate

	revealDelay time.Duration
}

type ServiceOption func(*Service)

// WithRevealDelay advertises d to clients in the qualities step.
func WithRevealDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.revealDelay = d
		}
	}
}

func NewService(repo *repository.ContentRepository, denylist []string, rec audit.Recorder, log logrus.FieldLogger, opts ...ServiceOption) *Service {
	deny := make(map[string]struct{}, len(denylist))
	for _, name := range denylist {
		if n := normalizeName(name); n != "" {
			deny[n] = struct{}{}
		}
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	s := &Service{repo: repo, denylist: deny, audit: rec, log: log, validate: validator.New()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Denied reports whether serviceName is on the denylist.
func (s *Service) Denied(serviceName string) bool {
	_, ok := s.denylist[normalizeName(serviceName)]
	return ok
}

// check validates req and returns it with its slug normalized.
func (s *Service) check(req Request, needQuality, needService bool) (Request, error) {
	slug, err := validate.Slug(req.Slug)
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	req.Slug = slug
	req.Quality = strings.TrimSpace(req.Quality)
	req.Service = strings.TrimSpace(req.Service)
	if err := s.validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if (needQuality && req.Quality == "") || (needService && req.Service == "") {
		return req, fmt.Errorf("%w: missing field", ErrInvalid)
	}
	return req, nil
}

// services loads the public service entries of slug.
func (s *Service) services(ctx context.Context, slug string) (models.Kind, []models.Service, error) {
	kind := resolver.DownloadKind(slug)
	doc, err := s.repo.Services(ctx, kind, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return kind, nil, ErrNotFound
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"slug": slug, "kind": kind}).Error("download services lookup failed")
		return kind, nil, ErrUnavailable
	}
	return kind, s.public(doc.Services), nil
}

// public drops unnamed and denylisted services and trims names and quality
// labels, so every step compares the same form.
func (s *Service) public(services []models.Service) []models.Service {
	out := make([]models.Service, 0, len(services))
	for _, svc := range services {
		name := strings.TrimSpace(svc.ServiceName)
		if name == "" || s.Denied(name) {
			continue
		}
		qualities := make([]models.Quality, len(svc.Qualities))
		for i, q := range svc.Qualities {
			q.Quality = strings.TrimSpace(q.Quality)
			qualities[i] = q
		}
		svc.ServiceName = name
		svc.Qualities = qualities
		out = append(out, svc)
	}
	return out
}

// Qualities lists the distinct quality labels that lead to a link.
func (s *Service) Qualities(ctx context.Context, slug string) (QualitiesResponse, error) {
	fail := QualitiesResponse{Success: false, Qualities: []string{}}
	req, err := s.check(Request{Slug: slug}, false, false)
	if err != nil {
		return fail, s.outcome(stepQualities, err)
	}
	kind, services, err := s.services(ctx, req.Slug)
	if err != nil {
		return fail, s.outcome(stepQualities, err)
	}
	qualities := distinct(services, func(_ models.Service, q models.Quality) string { return q.Quality })
	if len(qualities) == 0 {
		return fail, s.outcome(stepQualities, ErrNotFound)
	}
	s.outcome(stepQualities, nil)
	return QualitiesResponse{
		Success:       true,
		Qualities:     qualities,
		Type:          kind,
		RevealDelayMs: s.revealDelay.Milliseconds(),
	}, nil
}

// Services lists the distinct services offering quality.
func (s *Service) Services(ctx context.Context, slug, quality string) (ServicesResponse, error) {
	fail := ServicesResponse{Success: false, Services: []ServiceName{}}
	req, err := s.check(Request{Slug: slug, Quality: quality}, true, false)
	if err != nil {
		return fail, s.outcome(stepServices, err)
	}
	s.audit.Record(ctx, audit.Event{Type: audit.QualityChosen, Slug: req.Slug, Quality: req.Quality})

	_, services, err := s.services(ctx, req.Slug)
	if err != nil {
		return fail, s.outcome(stepServices, err)
	}
	names := distinct(services, func(svc models.Service, q models.Quality) string {
		if q.Quality != req.Quality {
			return ""
		}
		return svc.ServiceName
	})
	if len(names) == 0 {
		return fail, s.outcome(stepServices, ErrNotFound)
	}
	out := make([]ServiceName, len(names))
	for i, n := range names {
		out[i] = ServiceName{ServiceName: n}
	}
	s.outcome(stepServices, nil)
	return ServicesResponse{Success: true, Services: out}, nil
}

// Link returns the single download link for quality on service.
func (s *Service) Link(ctx context.Context, slug, quality, service string) (LinkResponse, error) {
	fail := LinkResponse{Success: false}
	req, err := s.check(Request{Slug: slug, Quality: quality, Service: service}, true, true)
	if err != nil {
		return fail, s.outcome(stepLink, err)
	}
	base := audit.Event{Slug: req.Slug, Quality: req.Quality, Service: req.Service}
	s.audit.Record(ctx, with(base, audit.DownloadInitiated, ""))

	link, err := s.lookup(ctx, req)
	if err != nil {
		s.audit.Record(ctx, with(base, audit.LinkFailed, err.Error()))
		return fail, s.outcome(stepLink, err)
	}
	s.audit.Record(ctx, with(base, audit.LinkRetrieved, ""))
	s.outcome(stepLink, nil)
	return LinkResponse{Success: true, Link: link}, nil
}

func (s *Service) lookup(ctx context.Context, req Request) (*Link, error) {
	_, services, err := s.services(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		if svc.ServiceName != req.Service {
			continue
		}
		for _, q := range svc.Qualities {
			if q.Quality == req.Quality && strings.TrimSpace(q.DownloadLink) != "" {
				return &Link{DownloadLink: q.DownloadLink, Quality: q.Quality, ServiceName: svc.ServiceName}, nil
			}
		}
	}
	return nil, ErrNotFound
}

func with(e audit.Event, t audit.EventType, reason string) audit.Event {
	e.Type = t
	e.Reason = reason
	return e
}

func (s *Service) outcome(step string, err error) error {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalid):
		result = "invalid"
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.DownloadSteps.WithLabelValues(step, result).Inc()
	return err
}

// distinct collects non-empty keys over every quality entry that carries a
// link, in first-seen order.
func distinct(services []models.Service, key func(models.Service, models.Quality) string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, svc := range services {
		for _, q := range svc.Qualities {
			if strings.TrimSpace(q.DownloadLink) == "" {
				continue
			}
			k := key(svc, q)
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
