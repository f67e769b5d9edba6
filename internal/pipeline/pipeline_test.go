package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/pagination"
)

func stageNames(pl mongo.Pipeline) []string {
	out := make([]string, len(pl))
	for i, st := range pl {
		out[i] = st[0].Key
	}
	return out
}

func facetOf(t *testing.T, pl mongo.Pipeline) bson.D {
	t.Helper()
	last := pl[len(pl)-1]
	require.Equal(t, "$facet", last[0].Key)
	return last[0].Value.(bson.D)
}

func hasKey(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}

func TestFlatPipelineShape(t *testing.T) {
	m := bson.D{{Key: "genre", Value: bson.D{{Key: "$in", Value: []string{"Drama"}}}}}
	s := bson.D{{Key: "createdAt", Value: -1}}
	pl := Flat(m, s, pagination.NewPage(3, 24), "")

	assert.Equal(t, []string{"$match", "$sort", "$limit", "$facet"}, stageNames(pl))
	assert.Equal(t, m, pl[0][0].Value)
	assert.Equal(t, pagination.MaxResponseSize, pl[2][0].Value)

	facet := facetOf(t, pl)
	assert.Equal(t, "metadata", facet[0].Key)
	assert.Equal(t, bson.A{bson.D{{Key: "$count", Value: "total"}}}, facet[0].Value)

	data := facet[1].Value.(bson.A)
	require.Len(t, data, 3)
	assert.Equal(t, bson.D{{Key: "$skip", Value: 48}}, data[0])
	assert.Equal(t, bson.D{{Key: "$limit", Value: 24}}, data[1])

	proj := data[2].(bson.D)[0].Value.(bson.D)
	assert.False(t, hasKey(proj, "services"))
	assert.False(t, hasKey(proj, "type"))
}

func TestFlatPipelineInjectsType(t *testing.T) {
	pl := Flat(nil, bson.D{}, pagination.NewPage(1, 10), models.KindSeries)
	assert.Equal(t, bson.D{}, pl[0][0].Value)

	data := facetOf(t, pl)[1].Value.(bson.A)
	proj := data[2].(bson.D)[0].Value.(bson.D)
	last := proj[len(proj)-1]
	assert.Equal(t, "type", last.Key)
	assert.Equal(t, bson.D{{Key: "$literal", Value: "series"}}, last.Value)
}

func TestEpisodePipelineJoins(t *testing.T) {
	m := bson.D{{Key: "series.category.isAnimeseries", Value: true}}
	pl := Episodes(m, bson.D{{Key: "createdAt", Value: -1}}, pagination.NewPage(1, 24))

	assert.Equal(t,
		[]string{"$lookup", "$unwind", "$lookup", "$unwind", "$match", "$sort", "$limit", "$facet"},
		stageNames(pl))

	seasonLookup := pl[0][0].Value.(bson.D)
	assert.Contains(t, seasonLookup, bson.E{Key: "from", Value: models.CollSeasons})
	assert.Contains(t, pl[1][0].Value.(bson.D), bson.E{Key: "preserveNullAndEmptyArrays", Value: true})

	seriesLookup := pl[2][0].Value.(bson.D)
	assert.Contains(t, seriesLookup, bson.E{Key: "from", Value: models.CollSeries})
	assert.Contains(t, pl[3][0].Value.(bson.D), bson.E{Key: "preserveNullAndEmptyArrays", Value: false})

	assert.Equal(t, m, pl[4][0].Value)

	proj := EpisodeProjection()
	assert.True(t, hasKey(proj, "season"))
	assert.True(t, hasKey(proj, "series"))
	assert.False(t, hasKey(proj, "services"))
}

func TestFilmCollectionPipeline(t *testing.T) {
	pl := FilmCollections(bson.D{}, bson.D{{Key: "createdAt", Value: -1}}, pagination.NewPage(2, 12))
	assert.Equal(t, []string{"$match", "$sort", "$limit", "$facet"}, stageNames(pl))

	data := facetOf(t, pl)[1].Value.(bson.A)
	require.Len(t, data, 4)
	assert.Equal(t, bson.D{{Key: "$skip", Value: 12}}, data[0])
	assert.Equal(t, "$lookup", data[2].(bson.D)[0].Key)

	proj := data[3].(bson.D)[0].Value.(bson.D)
	assert.True(t, hasKey(proj, "image"))
	assert.True(t, hasKey(proj, "filmCount"))
	assert.True(t, hasKey(proj, "films"))
}

func TestSimilarPipeline(t *testing.T) {
	target := models.Content{
		ID:          primitive.NewObjectID(),
		Genre:       []string{"Drama", "Crime"},
		ReleaseYear: 2010,
		Language:    "ar",
	}
	pl := Similar(target, 12)
	assert.Equal(t, []string{"$match", "$addFields", "$sort", "$limit", "$project"}, stageNames(pl))

	m := pl[0][0].Value.(bson.D)
	assert.Equal(t, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: target.ID}}}, m[0])
	assert.Equal(t, "$or", m[1].Key)
	assert.Len(t, m[1].Value.(bson.A), 3)

	assert.Equal(t, bson.E{Key: "releaseYear", Value: bson.D{{Key: "$gte", Value: 2007}, {Key: "$lte", Value: 2013}}},
		m[1].Value.(bson.A)[1].(bson.D)[0])

	score := pl[1][0].Value.(bson.D)[0].Value.(bson.D)[0].Value.(bson.A)
	require.Len(t, score, 3)

	genre := score[0].(bson.D)[0]
	assert.Equal(t, "$multiply", genre.Key)
	assert.Equal(t, 3, genre.Value.(bson.A)[0])
	overlap := genre.Value.(bson.A)[1].(bson.D)[0].Value.(bson.D)[0]
	assert.Equal(t, "$setIntersection", overlap.Key)
	assert.Equal(t, []string{"Drama", "Crime"}, overlap.Value.(bson.A)[1])

	assert.Equal(t, bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$gte", Value: bson.A{"$releaseYear", 2007}}},
			bson.D{{Key: "$lte", Value: bson.A{"$releaseYear", 2013}}},
		}}},
		1, 0,
	}}}, score[1])
	assert.Equal(t, bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$language", "ar"}}},
		1, 0,
	}}}, score[2])

	assert.Equal(t, bson.D{
		{Key: "similarityScore", Value: -1},
		{Key: "rating", Value: -1},
		{Key: "views", Value: -1},
	}, pl[2][0].Value)
	assert.Equal(t, 12, pl[3][0].Value)
}

func TestSimilarPipelinePartialSignals(t *testing.T) {
	pl := Similar(models.Content{ID: primitive.NewObjectID(), Language: "en"}, 5)
	m := pl[0][0].Value.(bson.D)
	assert.Len(t, m[1].Value.(bson.A), 1)

	assert.Nil(t, Similar(models.Content{ID: primitive.NewObjectID()}, 5))
}

func TestFacetTotal(t *testing.T) {
	var f Facet
	assert.Equal(t, 0, f.Total())

	raw, err := bson.Marshal(bson.M{"metadata": bson.A{bson.M{"total": 42}}, "data": bson.A{}})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &f))
	assert.Equal(t, 42, f.Total())
}
