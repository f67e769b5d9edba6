package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ──────────────────── Kinds ────────────────────

type Kind string

const (
	KindFilm       Kind = "film"
	KindSeries     Kind = "series"
	KindSeason     Kind = "season"
	KindEpisode    Kind = "episode"
	KindCollection Kind = "film-collection"
)

func (k Kind) String() string { return string(k) }

// Collection names in the document store.
const (
	CollFilms           = "films"
	CollSeries          = "series"
	CollSeasons         = "seasons"
	CollEpisodes        = "episodes"
	CollFilmCollections = "filmcollections"
)

// Collection returns the store collection that holds documents of kind k.
func (k Kind) Collection() string {
	switch k {
	case KindFilm:
		return CollFilms
	case KindSeries:
		return CollSeries
	case KindSeason:
		return CollSeasons
	case KindEpisode:
		return CollEpisodes
	case KindCollection:
		return CollFilmCollections
	}
	return ""
}

// ParseListKind maps the public list kinds ("films", "series") to a Kind.
func ParseListKind(s string) (Kind, bool) {
	switch s {
	case "films", "film":
		return KindFilm, true
	case "series":
		return KindSeries, true
	}
	return "", false
}

// ──────────────────── Content ────────────────────

type Category struct {
	IsNew           bool `bson:"isNew" json:"isNew"`
	IsPopular       bool `bson:"isPopular" json:"isPopular"`
	IsTop           bool `bson:"isTop" json:"isTop"`
	IsForeignFilm   bool `bson:"isForeignfilm" json:"isForeignfilm"`
	IsAsianFilm     bool `bson:"isAsianfilm" json:"isAsianfilm"`
	IsAnimeFilm     bool `bson:"isAnimefilm" json:"isAnimefilm"`
	IsForeignSeries bool `bson:"isForeignseries" json:"isForeignseries"`
	IsAsianSeries   bool `bson:"isAsianseries" json:"isAsianseries"`
	IsAnimeSeries   bool `bson:"isAnimeseries" json:"isAnimeseries"`
}

// Content is a film or series as exposed to clients. It never carries the
// services list; download operations read that through ServiceDoc.
type Content struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Type          Kind               `bson:"type,omitempty" json:"type,omitempty"`
	Title         string             `bson:"title" json:"title"`
	OriginalTitle string             `bson:"originalTitle,omitempty" json:"originalTitle,omitempty"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Genre         []string           `bson:"genre,omitempty" json:"genre"`
	ReleaseYear   int                `bson:"releaseYear,omitempty" json:"releaseYear,omitempty"`
	Rating        float64            `bson:"rating,omitempty" json:"rating"`
	Country       string             `bson:"country,omitempty" json:"country,omitempty"`
	Language      string             `bson:"language,omitempty" json:"language,omitempty"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"`
	Duration      string             `bson:"duration,omitempty" json:"duration,omitempty"`
	Slug          string             `bson:"slug" json:"slug"`
	Category      *Category          `bson:"category,omitempty" json:"category,omitempty"`
	Views         int64              `bson:"views,omitempty" json:"views"`
	Score         int                `bson:"similarityScore,omitempty" json:"similarityScore,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt,omitempty" json:"updatedAt"`
}

type Season struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	SeriesID     primitive.ObjectID `bson:"seriesId" json:"seriesId"`
	SeasonNumber int                `bson:"seasonNumber" json:"seasonNumber"`
	Rating       float64            `bson:"rating,omitempty" json:"rating"`
	Image        string             `bson:"image,omitempty" json:"image,omitempty"`
	Status       string             `bson:"status,omitempty" json:"status,omitempty"`
	Slug         string             `bson:"slug" json:"slug"`
	Series       *SeriesSummary     `bson:"series,omitempty" json:"series,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt,omitempty" json:"updatedAt"`
}

type Episode struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	SeasonID       primitive.ObjectID `bson:"seasonId" json:"seasonId"`
	SeriesID       primitive.ObjectID `bson:"seriesId" json:"seriesId"`
	EpisodeNumber  int                `bson:"episodeNumber" json:"episodeNumber"`
	Title          string             `bson:"title,omitempty" json:"title,omitempty"`
	Duration       string             `bson:"duration,omitempty" json:"duration,omitempty"`
	Image          string             `bson:"image,omitempty" json:"image,omitempty"`
	Slug           string             `bson:"slug" json:"slug"`
	MergedEpisodes []int              `bson:"mergedEpisodes,omitempty" json:"mergedEpisodes,omitempty"`
	Views          int64              `bson:"views,omitempty" json:"views"`
	Season         *SeasonSummary     `bson:"season,omitempty" json:"season,omitempty"`
	Series         *SeriesSummary     `bson:"series,omitempty" json:"series,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt,omitempty" json:"updatedAt"`
}

// LastNumber is the highest episode number this record covers.
func (e Episode) LastNumber() int {
	n := e.EpisodeNumber
	for _, m := range e.MergedEpisodes {
		if m > n {
			n = m
		}
	}
	return n
}

type SeasonSummary struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	SeasonNumber int                `bson:"seasonNumber" json:"seasonNumber"`
	Slug         string             `bson:"slug,omitempty" json:"slug,omitempty"`
	Image        string             `bson:"image,omitempty" json:"image,omitempty"`
}

type SeriesSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Title    string             `bson:"title" json:"title"`
	Slug     string             `bson:"slug,omitempty" json:"slug,omitempty"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`
	Genre    []string           `bson:"genre,omitempty" json:"genre,omitempty"`
	Category *Category          `bson:"category,omitempty" json:"category,omitempty"`
}

type FilmSummary struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Slug        string             `bson:"slug" json:"slug"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	ReleaseYear int                `bson:"releaseYear,omitempty" json:"releaseYear,omitempty"`
	Rating      float64            `bson:"rating,omitempty" json:"rating"`
}

type FilmCollection struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	FilmCount   int                `bson:"filmCount" json:"filmCount"`
	Films       []FilmSummary      `bson:"films,omitempty" json:"films"`
	CreatedAt   time.Time          `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt,omitempty" json:"updatedAt"`
}

// ──────────────────── Services ────────────────────

type Quality struct {
	Quality      string `bson:"quality" json:"quality"`
	DownloadLink string `bson:"downloadLink,omitempty" json:"downloadLink,omitempty"`
	Iframe       string `bson:"iframe,omitempty" json:"iframe,omitempty"`
}

type Service struct {
	ServiceName string    `bson:"serviceName" json:"serviceName"`
	Qualities   []Quality `bson:"qualities" json:"qualities"`
}

// ServiceDoc is the download-only view of a film or episode.
type ServiceDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Slug     string             `bson:"slug"`
	Services []Service          `bson:"services"`
}

// SlugStamp is one sitemap entry source.
type SlugStamp struct {
	Slug      string    `bson:"slug"`
	UpdatedAt time.Time `bson:"updatedAt"`
	CreatedAt time.Time `bson:"createdAt"`
}
