package resolver

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
	"github.com/JustinTDCT/CineGate/internal/testutil"
	"github.com/JustinTDCT/CineGate/internal/validate"
)

func newResolver(store *testutil.Store) *Resolver {
	log, _ := logtest.NewNullLogger()
	return NewDefault(repository.NewContentRepository(store), log)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		slug string
		kind models.Kind
		ok   bool
	}{
		{"فيلم-المثال", models.KindFilm, true},
		{"مسلسل-المثال", models.KindSeries, true},
		{"مسلسل-المثال-الموسم-الاول", models.KindSeason, true},
		{"مسلسل-المثال-الموسم-الاول-الحلقة-3", models.KindEpisode, true},
		{"the-movie-2020", models.KindFilm, true},
		{"Some-Series-Season-2", models.KindSeason, true},
		{"plain-title", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			kind, ok := Detect(tt.slug)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestDownloadKind(t *testing.T) {
	assert.Equal(t, models.KindFilm, DownloadKind("فيلم-المثال"))
	assert.Equal(t, models.KindFilm, DownloadKind("مسلسل-المثال-الحلقة-3"))
	assert.Equal(t, models.KindEpisode, DownloadKind("مسلسل-المثال-الموسم-الاول-الحلقة-3"))
	assert.Equal(t, models.KindEpisode, DownloadKind("show-season-1-episode-2"))
}

func TestResolveDetectedKind(t *testing.T) {
	store := testutil.NewStore()
	id := primitive.NewObjectID()
	store.Insert(models.CollFilms, bson.M{"_id": id, "title": "Example", "slug": "فيلم-المثال", "services": bson.A{}})

	res, err := newResolver(store).Resolve(context.Background(), "فيلم-المثال")
	require.NoError(t, err)
	assert.Equal(t, models.KindFilm, res.Type)
	film := res.Data.(*models.Content)
	assert.Equal(t, id, film.ID)
	assert.Equal(t, models.KindFilm, film.Type)
	assert.Zero(t, store.Calls(models.CollSeries))
}

func TestResolveFallsBackWhenMarkersMislead(t *testing.T) {
	store := testutil.NewStore()
	store.Insert(models.CollFilms, bson.M{"_id": primitive.NewObjectID(), "title": "Not a show", "slug": "مسلسل-مزيف"})

	res, err := newResolver(store).Resolve(context.Background(), "مسلسل-مزيف")
	require.NoError(t, err)
	assert.Equal(t, models.KindFilm, res.Type)
	assert.Equal(t, 1, store.Calls(models.CollSeries))
}

func TestResolveEscapedSlug(t *testing.T) {
	store := testutil.NewStore()
	store.Insert(models.CollFilms, bson.M{"_id": primitive.NewObjectID(), "slug": "فيلم-المثال"})

	res, err := newResolver(store).Resolve(context.Background(), "%D9%81%D9%8A%D9%84%D9%85-%D8%A7%D9%84%D9%85%D8%AB%D8%A7%D9%84")
	require.NoError(t, err)
	assert.Equal(t, models.KindFilm, res.Type)
}

func TestResolveStoreErrorDisqualifiesOnlyThatStrategy(t *testing.T) {
	store := testutil.NewStore()
	store.FailOn(models.CollSeries, errors.New("socket closed"))
	seriesID := primitive.NewObjectID()
	seasonID := primitive.NewObjectID()
	store.Insert(models.CollSeasons, bson.M{"_id": seasonID, "seriesId": seriesID, "seasonNumber": 2, "slug": "series-x-2"})

	res, err := newResolver(store).Resolve(context.Background(), "series-x-2")
	require.NoError(t, err)
	assert.Equal(t, models.KindSeason, res.Type)
	season := res.Data.(*models.Season)
	assert.Equal(t, 2, season.SeasonNumber)
	assert.Nil(t, season.Series)
}

func TestResolveEpisodeAttachesParents(t *testing.T) {
	store := testutil.NewStore()
	seriesID, seasonID := primitive.NewObjectID(), primitive.NewObjectID()
	store.Insert(models.CollSeries, bson.M{"_id": seriesID, "title": "Show", "slug": "مسلسل-عرض"})
	store.Insert(models.CollSeasons, bson.M{"_id": seasonID, "seriesId": seriesID, "seasonNumber": 1, "slug": "مسلسل-عرض-الموسم-1"})
	store.Insert(models.CollEpisodes, bson.M{
		"_id": primitive.NewObjectID(), "seasonId": seasonID, "seriesId": seriesID,
		"episodeNumber": 3, "slug": "مسلسل-عرض-الموسم-1-الحلقة-3",
		"services": bson.A{bson.M{"serviceName": "X"}},
	})

	res, err := newResolver(store).Resolve(context.Background(), "مسلسل-عرض-الموسم-1-الحلقة-3")
	require.NoError(t, err)
	ep := res.Data.(*models.Episode)
	require.NotNil(t, ep.Season)
	require.NotNil(t, ep.Series)
	assert.Equal(t, 1, ep.Season.SeasonNumber)
	assert.Equal(t, "Show", ep.Series.Title)
}

func TestResolveExhaustion(t *testing.T) {
	store := testutil.NewStore()
	r := newResolver(store)

	_, err := r.Resolve(context.Background(), "nothing-here")
	assert.ErrorIs(t, err, ErrNotFound)
	for _, coll := range []string{models.CollFilms, models.CollSeries, models.CollSeasons, models.CollEpisodes} {
		assert.Equal(t, 1, store.Calls(coll), coll)
	}

	_, err = r.Resolve(context.Background(), "$where")
	assert.ErrorIs(t, err, validate.ErrInvalidSlug)
}
