package resolver

import (
	"strings"

	"github.com/JustinTDCT/CineGate/internal/models"
)

// Lexical markers carried by slugs. Arabic markers come first since the
// catalog is published in Arabic; the English ones cover transliterated
// slugs.
var markers = map[models.Kind][]string{
	models.KindFilm:    {"فيلم", "film", "movie"},
	models.KindSeries:  {"مسلسل", "series"},
	models.KindSeason:  {"الموسم", "season"},
	models.KindEpisode: {"الحلقة", "episode"},
}

// HasMarker reports whether slug carries one of kind's markers.
func HasMarker(slug string, kind models.Kind) bool {
	s := strings.ToLower(slug)
	for _, m := range markers[kind] {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Detect returns the most specific kind slug's markers suggest. It is a
// hint; ok is false when no marker is present.
func Detect(slug string) (kind models.Kind, ok bool) {
	for _, k := range []models.Kind{models.KindEpisode, models.KindSeason, models.KindSeries, models.KindFilm} {
		if HasMarker(slug, k) {
			return k, true
		}
	}
	return "", false
}

// DownloadKind picks the collection a download slug lives in: episodes when
// both season and episode markers are present, films otherwise.
func DownloadKind(slug string) models.Kind {
	if HasMarker(slug, models.KindSeason) && HasMarker(slug, models.KindEpisode) {
		return models.KindEpisode
	}
	return models.KindFilm
}
