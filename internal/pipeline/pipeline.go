// Package pipeline assembles aggregation stages for each content kind. Every
// paged pipeline ends in the same facet so one decoder serves them all.
package pipeline

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/pagination"
)

// Facet is the decoded shape of the paging facet.
type Facet struct {
	Metadata []struct {
		Total int `bson:"total"`
	} `bson:"metadata"`
	Data []bson.Raw `bson:"data"`
}

func (f Facet) Total() int {
	if len(f.Metadata) == 0 {
		return 0
	}
	return f.Metadata[0].Total
}

// ContentProjection is the public allow-list for films and series.
// services is deliberately absent.
func ContentProjection() bson.D {
	return bson.D{
		{Key: "_id", Value: 1},
		{Key: "title", Value: 1},
		{Key: "originalTitle", Value: 1},
		{Key: "description", Value: 1},
		{Key: "genre", Value: 1},
		{Key: "releaseYear", Value: 1},
		{Key: "rating", Value: 1},
		{Key: "country", Value: 1},
		{Key: "language", Value: 1},
		{Key: "image", Value: 1},
		{Key: "duration", Value: 1},
		{Key: "slug", Value: 1},
		{Key: "category", Value: 1},
		{Key: "views", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "updatedAt", Value: 1},
	}
}

// WithType adds a literal kind tag for feeds mixing several kinds.
func WithType(project bson.D, kind models.Kind) bson.D {
	out := append(bson.D{}, project...)
	return append(out, bson.E{Key: "type", Value: bson.D{{Key: "$literal", Value: string(kind)}}})
}

// Paged caps the candidate set and splits it into a count branch and a
// windowed data branch. tail runs on the window only.
func Paged(p pagination.Page, tail ...bson.D) []bson.D {
	data := bson.A{
		bson.D{{Key: "$skip", Value: p.Skip}},
		bson.D{{Key: "$limit", Value: p.Size}},
	}
	for _, st := range tail {
		data = append(data, st)
	}
	return []bson.D{
		{{Key: "$limit", Value: pagination.MaxResponseSize}},
		{{Key: "$facet", Value: bson.D{
			{Key: "metadata", Value: bson.A{bson.D{{Key: "$count", Value: "total"}}}},
			{Key: "data", Value: data},
		}}},
	}
}

func match(m bson.D) bson.D {
	if m == nil {
		m = bson.D{}
	}
	return bson.D{{Key: "$match", Value: m}}
}

func sortBy(s bson.D) bson.D {
	return bson.D{{Key: "$sort", Value: s}}
}

func project(p bson.D) bson.D {
	return bson.D{{Key: "$project", Value: p}}
}

// Flat lists films or series: match, sort, page, project.
// A non-empty kind injects a literal type field.
func Flat(m, s bson.D, p pagination.Page, kind models.Kind) mongo.Pipeline {
	proj := ContentProjection()
	if kind != "" {
		proj = WithType(proj, kind)
	}
	pl := mongo.Pipeline{match(m), sortBy(s)}
	return append(pl, Paged(p, project(proj))...)
}

// Episodes joins each episode to its season (optional) and series
// (required), filters on the joined shape, and projects trimmed summaries.
func Episodes(m, s bson.D, p pagination.Page) mongo.Pipeline {
	pl := append(episodeJoins(), match(m), sortBy(s))
	return append(pl, Paged(p, project(EpisodeProjection()))...)
}

func episodeJoins() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollSeasons},
			{Key: "localField", Value: "seasonId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "season"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$season"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollSeries},
			{Key: "localField", Value: "seriesId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "series"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$series"},
			{Key: "preserveNullAndEmptyArrays", Value: false},
		}}},
	}
}

func EpisodeProjection() bson.D {
	season := bson.D{
		{Key: "_id", Value: "$season._id"},
		{Key: "seasonNumber", Value: "$season.seasonNumber"},
		{Key: "slug", Value: "$season.slug"},
		{Key: "image", Value: "$season.image"},
	}
	return bson.D{
		{Key: "_id", Value: 1},
		{Key: "seasonId", Value: 1},
		{Key: "seriesId", Value: 1},
		{Key: "episodeNumber", Value: 1},
		{Key: "title", Value: 1},
		{Key: "duration", Value: 1},
		{Key: "image", Value: 1},
		{Key: "slug", Value: 1},
		{Key: "mergedEpisodes", Value: 1},
		{Key: "views", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "updatedAt", Value: 1},
		{Key: "season", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$season._id", false}}},
			season,
			"$$REMOVE",
		}}}},
		{Key: "series", Value: bson.D{
			{Key: "_id", Value: "$series._id"},
			{Key: "title", Value: "$series.title"},
			{Key: "slug", Value: "$series.slug"},
			{Key: "image", Value: "$series.image"},
			{Key: "genre", Value: "$series.genre"},
			{Key: "category", Value: "$series.category"},
		}},
	}
}

// FilmCollections lists collections newest first with their films joined
// in stored order.
func FilmCollections(m, s bson.D, p pagination.Page) mongo.Pipeline {
	pl := mongo.Pipeline{match(m), sortBy(s)}
	return append(pl, Paged(p, collectionTail()...)...)
}

// FilmCollection loads collections matching m without paging.
func FilmCollection(m bson.D, limit int) mongo.Pipeline {
	pl := mongo.Pipeline{match(m), {{Key: "$limit", Value: limit}}}
	return append(pl, collectionTail()...)
}

func collectionTail() []bson.D {
	film := bson.D{
		{Key: "_id", Value: "$$f._id"},
		{Key: "title", Value: "$$f.title"},
		{Key: "slug", Value: "$$f.slug"},
		{Key: "image", Value: "$$f.image"},
		{Key: "releaseYear", Value: "$$f.releaseYear"},
		{Key: "rating", Value: "$$f.rating"},
	}
	return []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollFilms},
			{Key: "let", Value: bson.D{{Key: "ids", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$films", bson.A{}}}}}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$in", Value: bson.A{"$_id", "$$ids"}}}}}}},
				bson.D{{Key: "$addFields", Value: bson.D{{Key: "_order", Value: bson.D{{Key: "$indexOfArray", Value: bson.A{"$$ids", "$_id"}}}}}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "_order", Value: 1}}}},
			}},
			{Key: "as", Value: "joined"},
		}}},
		project(bson.D{
			{Key: "_id", Value: 1},
			{Key: "name", Value: 1},
			{Key: "slug", Value: 1},
			{Key: "description", Value: 1},
			{Key: "createdAt", Value: 1},
			{Key: "updatedAt", Value: 1},
			{Key: "image", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$joined.image", 0}}}},
			{Key: "filmCount", Value: bson.D{{Key: "$size", Value: "$joined"}}},
			{Key: "films", Value: bson.D{{Key: "$map", Value: bson.D{
				{Key: "input", Value: "$joined"},
				{Key: "as", Value: "f"},
				{Key: "in", Value: film},
			}}}},
		}),
	}
}

// YearWindow is the ±distance counted as a nearby release.
const YearWindow = 3

// Similar scores films against target:
// 3 per shared genre, 1 for a release within YearWindow, 1 for same language.
// Candidates must share at least one signal. Returns nil when the target
// carries no signal at all.
func Similar(target models.Content, limit int) mongo.Pipeline {
	var or bson.A
	var score bson.A
	if len(target.Genre) > 0 {
		or = append(or, bson.D{{Key: "genre", Value: bson.D{{Key: "$in", Value: target.Genre}}}})
		score = append(score, bson.D{{Key: "$multiply", Value: bson.A{3, bson.D{{Key: "$size", Value: bson.D{
			{Key: "$setIntersection", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$genre", bson.A{}}}},
				target.Genre,
			}},
		}}}}}})
	}
	if target.ReleaseYear > 0 {
		lo, hi := target.ReleaseYear-YearWindow, target.ReleaseYear+YearWindow
		or = append(or, bson.D{{Key: "releaseYear", Value: bson.D{{Key: "$gte", Value: lo}, {Key: "$lte", Value: hi}}}})
		score = append(score, bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{"$releaseYear", lo}}},
				bson.D{{Key: "$lte", Value: bson.A{"$releaseYear", hi}}},
			}}},
			1, 0,
		}}})
	}
	if target.Language != "" {
		or = append(or, bson.D{{Key: "language", Value: target.Language}})
		score = append(score, bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$language", target.Language}}},
			1, 0,
		}}})
	}
	if len(or) == 0 {
		return nil
	}

	proj := append(ContentProjection(), bson.E{Key: "similarityScore", Value: 1})
	return mongo.Pipeline{
		match(bson.D{
			{Key: "_id", Value: bson.D{{Key: "$ne", Value: target.ID}}},
			{Key: "$or", Value: or},
		}),
		{{Key: "$addFields", Value: bson.D{{Key: "similarityScore", Value: bson.D{{Key: "$add", Value: score}}}}}},
		sortBy(bson.D{
			{Key: "similarityScore", Value: -1},
			{Key: "rating", Value: -1},
			{Key: "views", Value: -1},
		}),
		{{Key: "$limit", Value: limit}},
		project(proj),
	}
}
