package query

import (
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/CineGate/internal/models"
)

var ErrUnknownSort = errors.New("unknown sort")

const (
	SortLatest  = "latest"
	SortNew     = "new"
	SortPopular = "popular"
	SortTop     = "top"
	SortRating  = "rating"
	SortOlder   = "older"
	SortForeign = "foreign"
	SortAsian   = "asian"
	SortAnime   = "anime"
)

// OlderCutoffYears is how many years back the "older" sort starts.
const OlderCutoffYears = 10

// SortOption pairs an ordering with the base predicate that comes with it.
// Filter receives whether the caller already constrained the year.
type SortOption struct {
	ID     string
	Sort   bson.D
	Filter func(hasYear bool) bson.D
}

// Match is the option's base predicate for a request.
func (o SortOption) Match(hasYear bool) bson.D {
	if o.Filter == nil {
		return bson.D{}
	}
	return o.Filter(hasYear)
}

// Registry maps sort ids to options for one content kind.
type Registry struct {
	def     string
	options map[string]SortOption
}

// Lookup resolves id, falling back to the default for an empty id.
func (r Registry) Lookup(id string) (SortOption, error) {
	if id == "" {
		id = r.def
	}
	opt, ok := r.options[id]
	if !ok {
		return SortOption{}, ErrUnknownSort
	}
	return opt, nil
}

func (r Registry) IDs() []string {
	out := make([]string, 0, len(r.options))
	for id := range r.options {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var (
	byCreated = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	byViews   = bson.D{{Key: "views", Value: -1}, {Key: "createdAt", Value: -1}}
	byRating  = bson.D{{Key: "rating", Value: -1}, {Key: "createdAt", Value: -1}}
	byYear    = bson.D{{Key: "releaseYear", Value: -1}, {Key: "createdAt", Value: -1}}
)

func flag(field string) func(bool) bson.D {
	return func(bool) bson.D {
		return bson.D{{Key: field, Value: true}}
	}
}

// olderThan applies its own year ceiling only when the caller did not
// filter by year.
func olderThan(now func() time.Time) func(bool) bson.D {
	return func(hasYear bool) bson.D {
		if hasYear {
			return bson.D{}
		}
		ceiling := now().Year() - OlderCutoffYears
		return bson.D{{Key: "releaseYear", Value: bson.D{{Key: "$lte", Value: ceiling}}}}
	}
}

func contentRegistry(suffix string, now func() time.Time) Registry {
	return Registry{
		def: SortLatest,
		options: map[string]SortOption{
			SortLatest:  {ID: SortLatest, Sort: byCreated},
			SortNew:     {ID: SortNew, Sort: byCreated, Filter: flag("category.isNew")},
			SortPopular: {ID: SortPopular, Sort: byViews, Filter: flag("category.isPopular")},
			SortTop:     {ID: SortTop, Sort: byRating, Filter: flag("category.isTop")},
			SortRating:  {ID: SortRating, Sort: byRating},
			SortOlder:   {ID: SortOlder, Sort: byYear, Filter: olderThan(now)},
			SortForeign: {ID: SortForeign, Sort: byCreated, Filter: flag("category.isForeign" + suffix)},
			SortAsian:   {ID: SortAsian, Sort: byCreated, Filter: flag("category.isAsian" + suffix)},
			SortAnime:   {ID: SortAnime, Sort: byCreated, Filter: flag("category.isAnime" + suffix)},
		},
	}
}

func FilmSorts(now func() time.Time) Registry {
	return contentRegistry("film", now)
}

func SeriesSorts(now func() time.Time) Registry {
	return contentRegistry("series", now)
}

// EpisodeSorts filter on the joined series document.
func EpisodeSorts() Registry {
	return Registry{
		def: SortLatest,
		options: map[string]SortOption{
			SortLatest:  {ID: SortLatest, Sort: byCreated},
			SortPopular: {ID: SortPopular, Sort: byViews},
			SortForeign: {ID: SortForeign, Sort: byCreated, Filter: flag("series.category.isForeignseries")},
			SortAsian:   {ID: SortAsian, Sort: byCreated, Filter: flag("series.category.isAsianseries")},
			SortAnime:   {ID: SortAnime, Sort: byCreated, Filter: flag("series.category.isAnimeseries")},
		},
	}
}

func CollectionSorts() Registry {
	return Registry{
		def: SortLatest,
		options: map[string]SortOption{
			SortLatest: {ID: SortLatest, Sort: byCreated},
		},
	}
}

// Sorts returns the registry for a listable kind.
func Sorts(kind models.Kind, now func() time.Time) (Registry, bool) {
	switch kind {
	case models.KindFilm:
		return FilmSorts(now), true
	case models.KindSeries:
		return SeriesSorts(now), true
	case models.KindEpisode:
		return EpisodeSorts(), true
	case models.KindCollection:
		return CollectionSorts(), true
	}
	return Registry{}, false
}
