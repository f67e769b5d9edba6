package related

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/repository"
	"github.com/JustinTDCT/CineGate/internal/resolver"
	"github.com/JustinTDCT/CineGate/internal/testutil"
)

func newDispatcher(store *testutil.Store, limit int) *Dispatcher {
	log, _ := logtest.NewNullLogger()
	return NewDispatcher(repository.NewContentRepository(store), log, limit)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-4))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxLimit, ClampLimit(100))
}

func TestFilmInCollectionListsSiblings(t *testing.T) {
	store := testutil.NewStore()
	filmID, otherID := primitive.NewObjectID(), primitive.NewObjectID()
	store.OnAggregate(models.CollFilmCollections, bson.M{
		"_id": primitive.NewObjectID(), "name": "The Saga", "slug": "saga", "filmCount": 2,
		"films": bson.A{
			bson.M{"_id": filmID, "title": "Part 1", "slug": "part-1"},
			bson.M{"_id": otherID, "title": "Part 2", "slug": "part-2"},
		},
	})

	set, err := newDispatcher(store, 0).RelatedFor(context.Background(), &resolver.Resolution{
		Type: models.KindFilm, Data: &models.Content{ID: filmID, Slug: "part-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The Saga", set.Title)
	siblings := set.Content.([]models.FilmSummary)
	require.Len(t, siblings, 1)
	assert.Equal(t, otherID, siblings[0].ID)
	assert.Zero(t, store.Calls(models.CollFilms))
}

func TestFilmWithoutCollectionFallsBackToSimilar(t *testing.T) {
	store := testutil.NewStore()
	store.OnAggregate(models.CollFilms, bson.M{"_id": primitive.NewObjectID(), "title": "Close", "slug": "close", "similarityScore": 4})
	film := &models.Content{ID: primitive.NewObjectID(), Genre: []string{"Drama"}, ReleaseYear: 2010, Language: "ar"}

	set, err := newDispatcher(store, 40).RelatedFor(context.Background(), &resolver.Resolution{Type: models.KindFilm, Data: film})
	require.NoError(t, err)
	assert.Equal(t, TitleSimilar, set.Title)
	similar := set.Content.([]models.Content)
	require.Len(t, similar, 1)
	assert.Equal(t, 4, similar[0].Score)

	pl := store.Pipelines(models.CollFilms)[0]
	assert.Equal(t, bson.D{{Key: "$limit", Value: MaxLimit}}, pl[3])
}

func TestSeriesAndSeasonLists(t *testing.T) {
	store := testutil.NewStore()
	seriesID, seasonID := primitive.NewObjectID(), primitive.NewObjectID()
	store.Insert(models.CollSeasons,
		bson.M{"_id": primitive.NewObjectID(), "seriesId": seriesID, "seasonNumber": 2, "slug": "s2"},
		bson.M{"_id": seasonID, "seriesId": seriesID, "seasonNumber": 1, "slug": "s1"},
		bson.M{"_id": primitive.NewObjectID(), "seriesId": primitive.NewObjectID(), "seasonNumber": 1, "slug": "other"},
	)
	store.Insert(models.CollEpisodes,
		bson.M{"_id": primitive.NewObjectID(), "seasonId": seasonID, "episodeNumber": 2, "slug": "e2"},
		bson.M{"_id": primitive.NewObjectID(), "seasonId": seasonID, "episodeNumber": 1, "slug": "e1"},
	)
	d := newDispatcher(store, 0)

	set, err := d.RelatedFor(context.Background(), &resolver.Resolution{Type: models.KindSeries, Data: &models.Content{ID: seriesID}})
	require.NoError(t, err)
	assert.Equal(t, TitleSeasons, set.Title)
	seasons := set.Content.([]models.Season)
	require.Len(t, seasons, 2)
	assert.Equal(t, "s1", seasons[0].Slug)

	set, err = d.RelatedFor(context.Background(), &resolver.Resolution{Type: models.KindSeason, Data: &models.Season{ID: seasonID}})
	require.NoError(t, err)
	assert.Equal(t, TitleEpisodes, set.Title)
	eps := set.Content.([]models.Episode)
	require.Len(t, eps, 2)
	assert.Equal(t, "e1", eps[0].Slug)
}

func TestEpisodeSiblingsAndLastEpisode(t *testing.T) {
	store := testutil.NewStore()
	seasonID := primitive.NewObjectID()
	e1, e2 := primitive.NewObjectID(), primitive.NewObjectID()
	store.Insert(models.CollEpisodes,
		bson.M{"_id": e1, "seasonId": seasonID, "episodeNumber": 1, "slug": "e1"},
		bson.M{"_id": e2, "seasonId": seasonID, "episodeNumber": 2, "mergedEpisodes": bson.A{3, 4}, "slug": "e2-4"},
	)
	d := newDispatcher(store, 0)

	set, err := d.RelatedFor(context.Background(), &resolver.Resolution{
		Type: models.KindEpisode, Data: &models.Episode{ID: e1, SeasonID: seasonID, EpisodeNumber: 1},
	})
	require.NoError(t, err)
	others := set.Content.([]models.Episode)
	require.Len(t, others, 1)
	assert.Equal(t, e2, others[0].ID)
	assert.Len(t, set.Siblings, 2)
	assert.Equal(t, 4, set.LastEpisode)
	assert.False(t, set.IsLast)

	set, err = d.RelatedFor(context.Background(), &resolver.Resolution{
		Type: models.KindEpisode, Data: &models.Episode{ID: e2, SeasonID: seasonID, EpisodeNumber: 2, MergedEpisodes: []int{3, 4}},
	})
	require.NoError(t, err)
	assert.True(t, set.IsLast)
}

func TestRelatedErrors(t *testing.T) {
	store := testutil.NewStore()
	store.FailOn(models.CollSeasons, errors.New("down"))
	d := newDispatcher(store, 0)

	_, err := d.RelatedFor(context.Background(), &resolver.Resolution{Type: models.KindSeries, Data: &models.Content{}})
	assert.Error(t, err)

	_, err = d.RelatedFor(context.Background(), &resolver.Resolution{Type: models.KindCollection})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = d.RelatedFor(context.Background(), &resolver.Resolution{Type: models.KindFilm, Data: "nope"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = d.RelatedFor(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
