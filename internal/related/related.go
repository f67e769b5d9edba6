// Package related picks the "more like this" set shown next to a resolved
// film, series, season or episode.
package related

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/repository"
	"github.com/JustinTDCT/CineGate/internal/resolver"
)

const (
	DefaultLimit = 12
	MaxLimit     = 24
)

const (
	TitleSimilar  = "Similar films"
	TitleSeasons  = "Seasons"
	TitleEpisodes = "Episodes"
)

var ErrUnknownKind = errors.New("no related content for kind")

// Set is a titled related list. Episodes additionally carry the full
// season listing and the highest episode number in it.
type Set struct {
	Title       string           `json:"title"`
	Content     any              `json:"content"`
	Siblings    []models.Episode `json:"siblings,omitempty"`
	LastEpisode int              `json:"lastEpisode,omitempty"`
	IsLast      bool             `json:"isLast,omitempty"`
}

// Relater builds the related set for one kind.
type Relater interface {
	Relate(ctx context.Context, data any) (*Set, error)
}

type Dispatcher struct {
	relaters map[models.Kind]Relater
	log      logrus.FieldLogger
}

// ClampLimit bounds a similarity limit to [1, MaxLimit]; zero or negative
// selects DefaultLimit.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func NewDispatcher(repo *repository.ContentRepository, log logrus.FieldLogger, similarLimit int) *Dispatcher {
	return &Dispatcher{
		relaters: map[models.Kind]Relater{
			models.KindFilm:    filmRelater{repo: repo, limit: ClampLimit(similarLimit)},
			models.KindSeries:  seriesRelater{repo: repo},
			models.KindSeason:  seasonRelater{repo: repo},
			models.KindEpisode: episodeRelater{repo: repo},
		},
		log: log,
	}
}

// RelatedFor dispatches on the resolution's kind.
func (d *Dispatcher) RelatedFor(ctx context.Context, res *resolver.Resolution) (*Set, error) {
	if res == nil {
		return nil, ErrUnknownKind
	}
	r, ok := d.relaters[res.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, res.Type)
	}
	set, err := r.Relate(ctx, res.Data)
	if err != nil {
		d.log.WithError(err).WithField("kind", res.Type).Warn("related content failed")
		return nil, err
	}
	return set, nil
}

// ──────────────────── films ────────────────────

type filmRelater struct {
	repo  *repository.ContentRepository
	limit int
}

// Relate prefers the film's collection siblings and falls back to scored
// similar films when the film belongs to no collection.
func (r filmRelater) Relate(ctx context.Context, data any) (*Set, error) {
	film, ok := data.(*models.Content)
	if !ok || film == nil {
		return nil, fmt.Errorf("%w: film payload %T", ErrUnknownKind, data)
	}
	col, err := r.repo.CollectionContaining(ctx, film.ID)
	switch {
	case err == nil:
		siblings := make([]models.FilmSummary, 0, len(col.Films))
		for _, f := range col.Films {
			if f.ID != film.ID {
				siblings = append(siblings, f)
			}
		}
		return &Set{Title: col.Name, Content: siblings}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	similar, err := r.repo.Similar(ctx, *film, r.limit)
	if err != nil {
		return nil, err
	}
	return &Set{Title: TitleSimilar, Content: similar}, nil
}

// ──────────────────── series & seasons ────────────────────

type seriesRelater struct {
	repo *repository.ContentRepository
}

func (r seriesRelater) Relate(ctx context.Context, data any) (*Set, error) {
	series, ok := data.(*models.Content)
	if !ok || series == nil {
		return nil, fmt.Errorf("%w: series payload %T", ErrUnknownKind, data)
	}
	seasons, err := r.repo.SeasonsOf(ctx, series.ID)
	if err != nil {
		return nil, err
	}
	return &Set{Title: TitleSeasons, Content: seasons}, nil
}

type seasonRelater struct {
	repo *repository.ContentRepository
}

func (r seasonRelater) Relate(ctx context.Context, data any) (*Set, error) {
	season, ok := data.(*models.Season)
	if !ok || season == nil {
		return nil, fmt.Errorf("%w: season payload %T", ErrUnknownKind, data)
	}
	episodes, err := r.repo.EpisodesOf(ctx, season.ID)
	if err != nil {
		return nil, err
	}
	return &Set{Title: TitleEpisodes, Content: episodes}, nil
}

// ──────────────────── episodes ────────────────────

type episodeRelater struct {
	repo *repository.ContentRepository
}

// Relate lists the other episodes of the same season. Merged episodes count
// toward the last episode number.
func (r episodeRelater) Relate(ctx context.Context, data any) (*Set, error) {
	ep, ok := data.(*models.Episode)
	if !ok || ep == nil {
		return nil, fmt.Errorf("%w: episode payload %T", ErrUnknownKind, data)
	}
	all, err := r.repo.EpisodesOf(ctx, ep.SeasonID)
	if err != nil {
		return nil, err
	}
	others := make([]models.Episode, 0, len(all))
	last := ep.LastNumber()
	for _, e := range all {
		if n := e.LastNumber(); n > last {
			last = n
		}
		if e.ID != ep.ID {
			others = append(others, e)
		}
	}
	return &Set{
		Title:       TitleEpisodes,
		Content:     others,
		Siblings:    all,
		LastEpisode: last,
		IsLast:      ep.LastNumber() >= last,
	}, nil
}
