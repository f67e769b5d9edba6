// Package catalog serves the browse side of the gateway: paged listings,
// the combined latest feed, search and filter options.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/CineGate/internal/cache"
	"github.com/JustinTDCT/CineGate/internal/metrics"
	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/pagination"
	"github.com/JustinTDCT/CineGate/internal/query"
	"github.com/JustinTDCT/CineGate/internal/repository"
	"github.com/JustinTDCT/CineGate/internal/validate"
)

const (
	MaxSearchLength = 100
	// LatestMaxPage bounds how deep the combined feed can be paged.
	LatestMaxPage = 40
)

type Service struct {
	repo      *repository.ContentRepository
	log       logrus.FieldLogger
	cache     cache.Cache
	cacheTTL  time.Duration
	pageSize  int
	now       func() time.Time
	sanitizer *query.Sanitizer
}

type Option func(*Service)

// WithCache caches successful responses in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.sanitizer = &query.Sanitizer{Now: now}
	}
}

func NewService(repo *repository.ContentRepository, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		log:       log,
		pageSize:  pagination.DefaultPageSize,
		now:       time.Now,
		sanitizer: query.NewSanitizer(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) PageSize() int { return s.pageSize }

func contentType(kind models.Kind) string {
	if kind == models.KindSeries {
		return TypeSeries
	}
	return TypeFilms
}

// GetContent lists films or series with user filters and a sort id.
func (s *Service) GetContent(ctx context.Context, kind models.Kind, raw map[string]any, sortID string, page int) (PagedResponse[models.Content], error) {
	ct := contentType(kind)
	if kind != models.KindFilm && kind != models.KindSeries {
		return failed[models.Content](ct, page, s.pageSize, ErrInvalid), fmt.Errorf("%w: kind %q", ErrInvalid, kind)
	}
	filter, err := s.sanitizer.Sanitize(raw)
	if err != nil {
		return failed[models.Content](ct, page, s.pageSize, ErrInvalid), fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	reg, _ := query.Sorts(kind, s.now)
	opt, err := reg.Lookup(sortID)
	if err != nil {
		return failed[models.Content](ct, page, s.pageSize, ErrInvalid), fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	p := pagination.NewPage(page, s.pageSize)
	key := cacheKey(ct, filter.CacheKey(), opt.ID, p.Number, p.Size)
	return cached(ctx, s, ct, key, func() (PagedResponse[models.Content], error) {
		match := query.And(opt.Match(filter.HasYear()), filter.Predicate())
		docs, total, err := s.repo.ContentPage(ctx, kind, match, opt.Sort, p)
		if err != nil {
			return failed[models.Content](ct, p.Number, p.Size, err), s.storeError(ct, err)
		}
		return ok(docs, ct, pagination.Paginate(p.Number, total, p.Size)), nil
	})
}

func (s *Service) GetFilmsPage(ctx context.Context, raw map[string]any, sortID string, page int) (PagedResponse[models.Content], error) {
	return s.GetContent(ctx, models.KindFilm, raw, sortID, page)
}

func (s *Service) GetSeriesPage(ctx context.Context, raw map[string]any, sortID string, page int) (PagedResponse[models.Content], error) {
	return s.GetContent(ctx, models.KindSeries, raw, sortID, page)
}

// GetEpisodesPage lists episodes joined to their season and series.
func (s *Service) GetEpisodesPage(ctx context.Context, sortID string, page int) (PagedResponse[models.Episode], error) {
	opt, err := query.EpisodeSorts().Lookup(sortID)
	if err != nil {
		return failed[models.Episode](TypeEpisodes, page, s.pageSize, ErrInvalid), fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	p := pagination.NewPage(page, s.pageSize)
	key := cacheKey(TypeEpisodes, opt.ID, p.Number, p.Size)
	return cached(ctx, s, TypeEpisodes, key, func() (PagedResponse[models.Episode], error) {
		docs, total, err := s.repo.EpisodePage(ctx, opt.Match(false), opt.Sort, p)
		if err != nil {
			return failed[models.Episode](TypeEpisodes, p.Number, p.Size, err), s.storeError(TypeEpisodes, err)
		}
		return ok(docs, TypeEpisodes, pagination.Paginate(p.Number, total, p.Size)), nil
	})
}

// GetFilmCollectionsPage lists collections newest first.
func (s *Service) GetFilmCollectionsPage(ctx context.Context, page int) (PagedResponse[models.FilmCollection], error) {
	opt, _ := query.CollectionSorts().Lookup("")
	p := pagination.NewPage(page, s.pageSize)
	key := cacheKey(TypeCollections, p.Number, p.Size)
	return cached(ctx, s, TypeCollections, key, func() (PagedResponse[models.FilmCollection], error) {
		docs, total, err := s.repo.CollectionPage(ctx, bson.D{}, opt.Sort, p)
		if err != nil {
			return failed[models.FilmCollection](TypeCollections, p.Number, p.Size, err), s.storeError(TypeCollections, err)
		}
		return ok(docs, TypeCollections, pagination.Paginate(p.Number, total, p.Size)), nil
	})
}

// GetFilmCollection loads one collection by ObjectId.
func (s *Service) GetFilmCollection(ctx context.Context, id string) (*models.FilmCollection, error) {
	oid, err := validate.ObjectID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	col, err := s.repo.CollectionByID(ctx, oid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, s.storeError("filmcollection", err)
	}
	return col, nil
}

// Search matches titles case-insensitively within one kind.
func (s *Service) Search(ctx context.Context, kind models.Kind, q string, page int) (PagedResponse[models.Content], error) {
	ct := contentType(kind)
	q = strings.TrimSpace(q)
	if q == "" || len([]rune(q)) > MaxSearchLength || (kind != models.KindFilm && kind != models.KindSeries) {
		return failed[models.Content](ct, page, s.pageSize, ErrInvalid), fmt.Errorf("%w: search", ErrInvalid)
	}
	pattern := validate.SearchPattern(q)
	match := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "title", Value: pattern}},
		bson.D{{Key: "originalTitle", Value: pattern}},
	}}}
	reg, _ := query.Sorts(kind, s.now)
	opt, _ := reg.Lookup("")
	p := pagination.NewPage(page, s.pageSize)

	op := "search:" + ct
	key := cacheKey(op, strings.ToLower(q), p.Number, p.Size)
	return cached(ctx, s, op, key, func() (PagedResponse[models.Content], error) {
		docs, total, err := s.repo.ContentPage(ctx, kind, match, opt.Sort, p)
		if err != nil {
			return failed[models.Content](ct, p.Number, p.Size, err), s.storeError(op, err)
		}
		return ok(docs, ct, pagination.Paginate(p.Number, total, p.Size)), nil
	})
}

// FilterOptions lists the values a filter UI can offer for kind.
type FilterOptions struct {
	Genres    []string `json:"genres"`
	Languages []string `json:"languages"`
	Countries []string `json:"countries"`
	Years     []int    `json:"years"`
	Sorts     []string `json:"sorts"`
}

func (s *Service) FilterOptions(ctx context.Context, kind models.Kind) (*FilterOptions, error) {
	if kind != models.KindFilm && kind != models.KindSeries {
		return nil, fmt.Errorf("%w: kind %q", ErrInvalid, kind)
	}
	op := "filters:" + contentType(kind)
	res, err := cached(ctx, s, op, cacheKey(op), func() (*FilterOptions, error) {
		var genres, languages, countries, years []any
		p := pool.New().WithErrors().WithContext(ctx)
		for field, dst := range map[string]*[]any{
			"genre": &genres, "language": &languages, "country": &countries, "releaseYear": &years,
		} {
			p.Go(func(ctx context.Context) error {
				vals, err := s.repo.Distinct(ctx, kind, field)
				*dst = vals
				return err
			})
		}
		if err := p.Wait(); err != nil {
			return nil, s.storeError(op, err)
		}
		reg, _ := query.Sorts(kind, s.now)
		return &FilterOptions{
			Genres:    sortedStrings(genres),
			Languages: sortedStrings(languages),
			Countries: sortedStrings(countries),
			Years:     sortedYears(years),
			Sorts:     reg.IDs(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func sortedStrings(vals []any) []string {
	out := []string{}
	for _, v := range vals {
		if str, err := cast.ToStringE(v); err == nil && strings.TrimSpace(str) != "" {
			out = append(out, str)
		}
	}
	sort.Strings(out)
	return out
}

func sortedYears(vals []any) []int {
	out := []int{}
	for _, v := range vals {
		if y, err := cast.ToIntE(v); err == nil && y >= query.MinYear {
			out = append(out, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Invalidate drops every cached catalog response.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Purge(ctx, cache.Prefix(cacheNamespace))
}

const cacheNamespace = "catalog"

func cacheKey(op string, args ...any) string {
	return cache.Key(cacheNamespace+":"+op, args...)
}

func (s *Service) storeError(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	s.log.WithError(err).WithField("op", op).Error("catalog query failed")
	return fmt.Errorf("%w: %s", ErrUnavailable, op)
}

// cached serves key from the response cache, falling back to load. Only
// successful results are stored; cache faults degrade to a direct load.
func cached[T any](ctx context.Context, s *Service, op, key string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	if b, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			metrics.CacheLookups.WithLabelValues(op, "hit").Inc()
			return v, nil
		}
	} else if err != nil {
		s.log.WithError(err).WithField("op", op).Warn("cache read failed")
	}
	metrics.CacheLookups.WithLabelValues(op, "miss").Inc()

	v, err := load()
	if err != nil {
		return v, err
	}
	if b, mErr := json.Marshal(v); mErr == nil {
		if sErr := s.cache.Set(ctx, key, b, s.cacheTTL); sErr != nil {
			s.log.WithError(sErr).WithField("op", op).Warn("cache write failed")
		}
	}
	return v, nil
}
