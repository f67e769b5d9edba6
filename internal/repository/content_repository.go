package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JustinTDCT/CineGate/internal/db"
	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/pagination"
	"github.com/JustinTDCT/CineGate/internal/pipeline"
)

var ErrNotFound = errors.New("not found")

// ContentRepository runs catalog reads against the document store.
type ContentRepository struct {
	store db.Store
}

func NewContentRepository(store db.Store) *ContentRepository {
	return &ContentRepository{store: store}
}

// page runs a faceted pipeline and decodes its data branch into T.
func page[T any](ctx context.Context, store db.Store, coll string, pl mongo.Pipeline) ([]T, int, error) {
	cur, err := store.Aggregate(ctx, coll, pl)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	var facets []pipeline.Facet
	if err := cur.All(ctx, &facets); err != nil {
		return nil, 0, fmt.Errorf("decode %s facet: %w", coll, err)
	}
	out := []T{}
	if len(facets) == 0 {
		return out, 0, nil
	}
	for _, raw := range facets[0].Data {
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return nil, 0, fmt.Errorf("decode %s document: %w", coll, err)
		}
		out = append(out, v)
	}
	return out, facets[0].Total(), nil
}

func all[T any](ctx context.Context, cur *mongo.Cursor, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func one[T any](res *mongo.SingleResult) (*T, error) {
	var v T
	if err := res.Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func contentFindProjection() bson.D {
	return pipeline.ContentProjection()
}

// ContentPage lists films or series.
func (r *ContentRepository) ContentPage(ctx context.Context, kind models.Kind, match, sort bson.D, p pagination.Page) ([]models.Content, int, error) {
	return page[models.Content](ctx, r.store, kind.Collection(), pipeline.Flat(match, sort, p, ""))
}

func (r *ContentRepository) EpisodePage(ctx context.Context, match, sort bson.D, p pagination.Page) ([]models.Episode, int, error) {
	return page[models.Episode](ctx, r.store, models.CollEpisodes, pipeline.Episodes(match, sort, p))
}

func (r *ContentRepository) CollectionPage(ctx context.Context, match, sort bson.D, p pagination.Page) ([]models.FilmCollection, int, error) {
	return page[models.FilmCollection](ctx, r.store, models.CollFilmCollections, pipeline.FilmCollections(match, sort, p))
}

// Latest returns the newest n films or series tagged with their kind.
func (r *ContentRepository) Latest(ctx context.Context, kind models.Kind, n int) ([]models.Content, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(n)).
		SetProjection(contentFindProjection())
	cur, err := r.store.Find(ctx, kind.Collection(), bson.D{}, opts)
	items, err := all[models.Content](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("latest %s: %w", kind, err)
	}
	for i := range items {
		items[i].Type = kind
	}
	return items, nil
}

func (r *ContentRepository) Count(ctx context.Context, kind models.Kind, filter bson.D) (int, error) {
	if filter == nil {
		filter = bson.D{}
	}
	n, err := r.store.CountDocuments(ctx, kind.Collection(), filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return int(n), nil
}

func (r *ContentRepository) Distinct(ctx context.Context, kind models.Kind, field string) ([]any, error) {
	vals, err := r.store.Distinct(ctx, kind.Collection(), field, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", kind, field, err)
	}
	return vals, nil
}

// ContentBySlug loads a film or series without its services.
func (r *ContentRepository) ContentBySlug(ctx context.Context, kind models.Kind, slug string) (*models.Content, error) {
	opts := options.FindOne().SetProjection(contentFindProjection())
	c, err := one[models.Content](r.store.FindOne(ctx, kind.Collection(), bson.D{{Key: "slug", Value: slug}}, opts))
	if err != nil {
		return nil, err
	}
	c.Type = kind
	return c, nil
}

func (r *ContentRepository) SeriesByID(ctx context.Context, id primitive.ObjectID) (*models.SeriesSummary, error) {
	opts := options.FindOne().SetProjection(bson.D{
		{Key: "title", Value: 1}, {Key: "slug", Value: 1}, {Key: "image", Value: 1},
		{Key: "genre", Value: 1}, {Key: "category", Value: 1},
	})
	return one[models.SeriesSummary](r.store.FindOne(ctx, models.CollSeries, bson.D{{Key: "_id", Value: id}}, opts))
}

func (r *ContentRepository) SeasonBySlug(ctx context.Context, slug string) (*models.Season, error) {
	return one[models.Season](r.store.FindOne(ctx, models.CollSeasons, bson.D{{Key: "slug", Value: slug}}))
}

func (r *ContentRepository) SeasonByID(ctx context.Context, id primitive.ObjectID) (*models.SeasonSummary, error) {
	opts := options.FindOne().SetProjection(bson.D{
		{Key: "seasonNumber", Value: 1}, {Key: "slug", Value: 1}, {Key: "image", Value: 1},
	})
	return one[models.SeasonSummary](r.store.FindOne(ctx, models.CollSeasons, bson.D{{Key: "_id", Value: id}}, opts))
}

func episodeFindProjection() bson.D {
	return bson.D{{Key: "services", Value: 0}}
}

func (r *ContentRepository) EpisodeBySlug(ctx context.Context, slug string) (*models.Episode, error) {
	opts := options.FindOne().SetProjection(episodeFindProjection())
	return one[models.Episode](r.store.FindOne(ctx, models.CollEpisodes, bson.D{{Key: "slug", Value: slug}}, opts))
}

// SeasonsOf lists a series' seasons in order.
func (r *ContentRepository) SeasonsOf(ctx context.Context, seriesID primitive.ObjectID) ([]models.Season, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seasonNumber", Value: 1}})
	cur, err := r.store.Find(ctx, models.CollSeasons, bson.D{{Key: "seriesId", Value: seriesID}}, opts)
	out, err := all[models.Season](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("seasons of %s: %w", seriesID.Hex(), err)
	}
	return out, nil
}

// EpisodesOf lists a season's episodes in order.
func (r *ContentRepository) EpisodesOf(ctx context.Context, seasonID primitive.ObjectID) ([]models.Episode, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "episodeNumber", Value: 1}}).
		SetProjection(episodeFindProjection())
	cur, err := r.store.Find(ctx, models.CollEpisodes, bson.D{{Key: "seasonId", Value: seasonID}}, opts)
	out, err := all[models.Episode](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("episodes of %s: %w", seasonID.Hex(), err)
	}
	return out, nil
}

// CollectionByID loads one collection with its films joined in order.
func (r *ContentRepository) CollectionByID(ctx context.Context, id primitive.ObjectID) (*models.FilmCollection, error) {
	return r.collection(ctx, bson.D{{Key: "_id", Value: id}})
}

// CollectionContaining finds a collection listing filmID.
func (r *ContentRepository) CollectionContaining(ctx context.Context, filmID primitive.ObjectID) (*models.FilmCollection, error) {
	return r.collection(ctx, bson.D{{Key: "films", Value: filmID}})
}

func (r *ContentRepository) collection(ctx context.Context, match bson.D) (*models.FilmCollection, error) {
	cur, err := r.store.Aggregate(ctx, models.CollFilmCollections, pipeline.FilmCollection(match, 1))
	out, err := all[models.FilmCollection](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("film collection: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// Similar runs the similarity pipeline for target.
func (r *ContentRepository) Similar(ctx context.Context, target models.Content, limit int) ([]models.Content, error) {
	pl := pipeline.Similar(target, limit)
	if pl == nil {
		return []models.Content{}, nil
	}
	cur, err := r.store.Aggregate(ctx, models.CollFilms, pl)
	out, err := all[models.Content](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("similar films: %w", err)
	}
	return out, nil
}

// Services reads the services of the film or episode named by slug.
func (r *ContentRepository) Services(ctx context.Context, kind models.Kind, slug string) (*models.ServiceDoc, error) {
	opts := options.FindOne().SetProjection(bson.D{{Key: "slug", Value: 1}, {Key: "services", Value: 1}})
	return one[models.ServiceDoc](r.store.FindOne(ctx, kind.Collection(), bson.D{{Key: "slug", Value: slug}}, opts))
}

// SlugStamps streams slug and timestamps of every document in coll.
func (r *ContentRepository) SlugStamps(ctx context.Context, coll string) ([]models.SlugStamp, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "slug", Value: 1}, {Key: "updatedAt", Value: 1}, {Key: "createdAt", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.store.Find(ctx, coll, bson.D{{Key: "slug", Value: bson.D{{Key: "$exists", Value: true}}}}, opts)
	out, err := all[models.SlugStamp](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("slugs of %s: %w", coll, err)
	}
	return out, nil
}
