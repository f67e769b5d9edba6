package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/pagination"
	"github.com/JustinTDCT/CineGate/internal/testutil"
)

func TestContentPageDecodesFacet(t *testing.T) {
	store := testutil.NewStore()
	id := primitive.NewObjectID()
	store.OnAggregate(models.CollFilms, testutil.Facet(31, bson.M{"_id": id, "title": "A", "slug": "a"}))

	repo := NewContentRepository(store)
	items, total, err := repo.ContentPage(context.Background(), models.KindFilm, bson.D{}, bson.D{{Key: "createdAt", Value: -1}}, pagination.NewPage(1, 24))
	require.NoError(t, err)
	assert.Equal(t, 31, total)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Len(t, store.Pipelines(models.CollFilms), 1)
}

func TestContentPageEmptyFacet(t *testing.T) {
	store := testutil.NewStore()
	store.OnAggregate(models.CollSeries, testutil.Facet(0))

	items, total, err := NewContentRepository(store).ContentPage(context.Background(), models.KindSeries, nil, bson.D{}, pagination.NewPage(1, 24))
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestContentPageStoreError(t *testing.T) {
	store := testutil.NewStore()
	store.FailOn(models.CollFilms, errors.New("connection refused"))

	_, _, err := NewContentRepository(store).ContentPage(context.Background(), models.KindFilm, nil, bson.D{}, pagination.NewPage(1, 24))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestContentBySlugHidesServices(t *testing.T) {
	store := testutil.NewStore()
	store.Insert(models.CollFilms, bson.M{
		"_id":      primitive.NewObjectID(),
		"title":    "Example",
		"slug":     "film-example",
		"services": bson.A{bson.M{"serviceName": "X"}},
	})
	repo := NewContentRepository(store)

	c, err := repo.ContentBySlug(context.Background(), models.KindFilm, "film-example")
	require.NoError(t, err)
	assert.Equal(t, "Example", c.Title)
	assert.Equal(t, models.KindFilm, c.Type)

	_, err = repo.ContentBySlug(context.Background(), models.KindFilm, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeasonsOfOrdered(t *testing.T) {
	store := testutil.NewStore()
	seriesID := primitive.NewObjectID()
	store.Insert(models.CollSeasons,
		bson.M{"_id": primitive.NewObjectID(), "seriesId": seriesID, "seasonNumber": 2, "slug": "s2"},
		bson.M{"_id": primitive.NewObjectID(), "seriesId": primitive.NewObjectID(), "seasonNumber": 1, "slug": "other"},
		bson.M{"_id": primitive.NewObjectID(), "seriesId": seriesID, "seasonNumber": 1, "slug": "s1"},
	)

	seasons, err := NewContentRepository(store).SeasonsOf(context.Background(), seriesID)
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, "s1", seasons[0].Slug)
	assert.Equal(t, "s2", seasons[1].Slug)
}

func TestServicesReadsEmbeddedList(t *testing.T) {
	store := testutil.NewStore()
	store.Insert(models.CollEpisodes, bson.M{
		"_id":  primitive.NewObjectID(),
		"slug": "ep",
		"services": bson.A{bson.M{
			"serviceName": "X",
			"qualities":   bson.A{bson.M{"quality": "720p", "downloadLink": "https://x/720"}},
		}},
	})

	doc, err := NewContentRepository(store).Services(context.Background(), models.KindEpisode, "ep")
	require.NoError(t, err)
	require.Len(t, doc.Services, 1)
	assert.Equal(t, "https://x/720", doc.Services[0].Qualities[0].DownloadLink)
}

func TestLatestTagsKind(t *testing.T) {
	store := testutil.NewStore()
	now := time.Now().UTC().Truncate(time.Millisecond)
	store.Insert(models.CollSeries,
		bson.M{"_id": primitive.NewObjectID(), "slug": "old", "createdAt": now.Add(-time.Hour)},
		bson.M{"_id": primitive.NewObjectID(), "slug": "new", "createdAt": now},
	)

	items, err := NewContentRepository(store).Latest(context.Background(), models.KindSeries, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].Slug)
	assert.Equal(t, models.KindSeries, items[0].Type)
}
