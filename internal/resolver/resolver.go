// Package resolver maps an opaque slug to the content it names. Slug markers
// pick the first strategy to try; every other strategy is then probed in
// registry order until one validates.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/metrics"
	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/repository"
	"github.com/JustinTDCT/CineGate/internal/validate"
)

// ErrNotFound is returned when no strategy resolves the slug.
var ErrNotFound = errors.New("slug not found")

// Resolution is a resolved slug: its kind and the transformed document.
type Resolution struct {
	Type models.Kind `json:"type"`
	Data any         `json:"data"`
}

type Resolver struct {
	strategies []Strategy
	log        logrus.FieldLogger
}

func New(strategies []Strategy, log logrus.FieldLogger) *Resolver {
	return &Resolver{strategies: strategies, log: log}
}

// NewDefault builds a resolver over the standard film, series, season and
// episode strategies.
func NewDefault(repo *repository.ContentRepository, log logrus.FieldLogger) *Resolver {
	return New(DefaultStrategies(repo), log)
}

// Resolve returns the content named by raw. Invalid slugs fail with
// validate.ErrInvalidSlug; exhausting every strategy yields ErrNotFound.
// Store errors inside a strategy only disqualify that strategy.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Resolution, error) {
	slug, err := validate.Slug(raw)
	if err != nil {
		return nil, err
	}

	order := r.order(slug)
	for i, s := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ok := r.try(ctx, s, slug)
		if !ok {
			continue
		}
		if i > 0 {
			metrics.ResolverFallbacks.WithLabelValues(s.Kind().String()).Inc()
			r.log.WithFields(logrus.Fields{"slug": slug, "kind": s.Kind(), "detected": order[0].Kind()}).
				Debug("slug resolved by fallback")
		}
		return &Resolution{Type: s.Kind(), Data: data}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
}

// order puts the detected strategy first and keeps the rest in registry
// order.
func (r *Resolver) order(slug string) []Strategy {
	kind, ok := Detect(slug)
	if !ok {
		return r.strategies
	}
	out := make([]Strategy, 0, len(r.strategies))
	var rest []Strategy
	for _, s := range r.strategies {
		if len(out) == 0 && s.Kind() == kind && s.Detect(slug) {
			out = append(out, s)
			continue
		}
		rest = append(rest, s)
	}
	return append(out, rest...)
}

func (r *Resolver) try(ctx context.Context, s Strategy, slug string) (any, bool) {
	doc, err := s.Fetch(ctx, slug)
	if err != nil {
		if !isNotFound(err) {
			r.log.WithError(err).WithFields(logrus.Fields{"slug": slug, "kind": s.Kind()}).
				Warn("resolver strategy failed")
		}
		return nil, false
	}
	if !s.Validate(doc, slug) {
		return nil, false
	}
	return s.Transform(ctx, doc), true
}
