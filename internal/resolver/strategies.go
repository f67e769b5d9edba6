package resolver

import (
	"context"
	"errors"

	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/repository"
)

// Strategy resolves one content kind.
type Strategy interface {
	Kind() models.Kind
	Detect(slug string) bool
	Fetch(ctx context.Context, slug string) (any, error)
	Validate(doc any, slug string) bool
	Transform(ctx context.Context, doc any) any
}

// DefaultStrategies is the fallback probing order.
func DefaultStrategies(repo *repository.ContentRepository) []Strategy {
	return []Strategy{
		contentStrategy{repo: repo, kind: models.KindFilm},
		contentStrategy{repo: repo, kind: models.KindSeries},
		seasonStrategy{repo: repo},
		episodeStrategy{repo: repo},
	}
}

// ──────────────────── films & series ────────────────────

type contentStrategy struct {
	repo *repository.ContentRepository
	kind models.Kind
}

func (s contentStrategy) Kind() models.Kind { return s.kind }

func (s contentStrategy) Detect(slug string) bool { return HasMarker(slug, s.kind) }

func (s contentStrategy) Fetch(ctx context.Context, slug string) (any, error) {
	return s.repo.ContentBySlug(ctx, s.kind, slug)
}

func (s contentStrategy) Validate(doc any, slug string) bool {
	c, ok := doc.(*models.Content)
	return ok && c != nil && !c.ID.IsZero() && c.Slug == slug
}

func (s contentStrategy) Transform(_ context.Context, doc any) any {
	c := doc.(*models.Content)
	c.Type = s.kind
	return c
}

// ──────────────────── seasons ────────────────────

type seasonStrategy struct {
	repo *repository.ContentRepository
}

func (seasonStrategy) Kind() models.Kind { return models.KindSeason }

func (seasonStrategy) Detect(slug string) bool { return HasMarker(slug, models.KindSeason) }

func (s seasonStrategy) Fetch(ctx context.Context, slug string) (any, error) {
	return s.repo.SeasonBySlug(ctx, slug)
}

func (seasonStrategy) Validate(doc any, slug string) bool {
	season, ok := doc.(*models.Season)
	return ok && season != nil && !season.ID.IsZero() && season.Slug == slug
}

// Transform attaches the parent series summary when it can be loaded.
func (s seasonStrategy) Transform(ctx context.Context, doc any) any {
	season := doc.(*models.Season)
	if season.Series == nil && !season.SeriesID.IsZero() {
		if series, err := s.repo.SeriesByID(ctx, season.SeriesID); err == nil {
			season.Series = series
		}
	}
	return season
}

// ──────────────────── episodes ────────────────────

type episodeStrategy struct {
	repo *repository.ContentRepository
}

func (episodeStrategy) Kind() models.Kind { return models.KindEpisode }

func (episodeStrategy) Detect(slug string) bool { return HasMarker(slug, models.KindEpisode) }

func (s episodeStrategy) Fetch(ctx context.Context, slug string) (any, error) {
	return s.repo.EpisodeBySlug(ctx, slug)
}

func (episodeStrategy) Validate(doc any, slug string) bool {
	ep, ok := doc.(*models.Episode)
	return ok && ep != nil && !ep.ID.IsZero() && ep.Slug == slug
}

func (s episodeStrategy) Transform(ctx context.Context, doc any) any {
	ep := doc.(*models.Episode)
	if ep.Season == nil && !ep.SeasonID.IsZero() {
		if season, err := s.repo.SeasonByID(ctx, ep.SeasonID); err == nil {
			ep.Season = season
		}
	}
	if ep.Series == nil && !ep.SeriesID.IsZero() {
		if series, err := s.repo.SeriesByID(ctx, ep.SeriesID); err == nil {
			ep.Series = series
		}
	}
	return ep
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
