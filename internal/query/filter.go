// Package query turns untrusted filter input into store predicates.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/CineGate/internal/validate"
)

const (
	MaxFilterValues = 20
	MinYear         = 1900
	// YearLookahead is how far past the current year a release may be dated.
	YearLookahead = 2
)

var ErrTooManyValues = errors.New("too many filter values")

// Filter keys accepted from callers.
const (
	KeyGenre    = "genre"
	KeyYear     = "year"
	KeyLanguage = "language"
	KeyCountry  = "country"
)

var filterKeys = []string{KeyGenre, KeyYear, KeyLanguage, KeyCountry}

// Filter is a sanitized user filter. Empty lists mean "no constraint".
type Filter struct {
	Genre    []string
	Year     []int
	Language []string
	Country  []string
}

func (f Filter) HasYear() bool { return len(f.Year) > 0 }

// Values renders the filter back into raw form. Sanitizing the result
// yields the same Filter.
func (f Filter) Values() map[string]any {
	out := map[string]any{}
	put := func(key string, vals []string) {
		if len(vals) == 0 {
			return
		}
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		out[key] = list
	}
	put(KeyGenre, f.Genre)
	put(KeyLanguage, f.Language)
	put(KeyCountry, f.Country)
	years := make([]string, len(f.Year))
	for i, y := range f.Year {
		years[i] = strconv.Itoa(y)
	}
	put(KeyYear, years)
	return out
}

// Predicate is the store match for this filter alone.
func (f Filter) Predicate() bson.D {
	var d bson.D
	if len(f.Genre) > 0 {
		d = append(d, bson.E{Key: "genre", Value: bson.D{{Key: "$in", Value: f.Genre}}})
	}
	if len(f.Year) > 0 {
		d = append(d, bson.E{Key: "releaseYear", Value: bson.D{{Key: "$in", Value: f.Year}}})
	}
	if len(f.Language) > 0 {
		d = append(d, bson.E{Key: "language", Value: bson.D{{Key: "$in", Value: f.Language}}})
	}
	if len(f.Country) > 0 {
		d = append(d, bson.E{Key: "country", Value: bson.D{{Key: "$in", Value: f.Country}}})
	}
	return d
}

// CacheKey is a stable textual form used for response caching. Values are
// quoted, so separators inside a value cannot collide with another filter.
func (f Filter) CacheKey() string {
	b, _ := json.Marshal(f) // string and int slices always encode
	return string(b)
}

// Sanitizer validates raw filters against a clock so the year window can be
// pinned in tests.
type Sanitizer struct {
	Now func() time.Time
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{Now: time.Now}
}

func (s *Sanitizer) MaxYear() int {
	return s.Now().Year() + YearLookahead
}

// Sanitize strips operator keys, ignores unknown keys and non-list values,
// trims and de-duplicates list entries, and drops years that do not parse
// or fall outside [MinYear, MaxYear].
func (s *Sanitizer) Sanitize(raw map[string]any) (Filter, error) {
	clean := validate.StripOperatorKeys(raw)
	var f Filter
	for _, key := range filterKeys {
		list, ok := clean[key].([]any)
		if !ok {
			if strs, isStrs := clean[key].([]string); isStrs {
				list = toAny(strs)
			} else {
				continue
			}
		}
		if len(list) > MaxFilterValues {
			return Filter{}, fmt.Errorf("%s: %w", key, ErrTooManyValues)
		}
		vals := scalars(list)
		switch key {
		case KeyGenre:
			f.Genre = vals
		case KeyLanguage:
			f.Language = vals
		case KeyCountry:
			f.Country = vals
		case KeyYear:
			f.Year = s.years(vals)
		}
	}
	return f, nil
}

func (s *Sanitizer) years(vals []string) []int {
	maxYear := s.MaxYear()
	var out []int
	for _, v := range vals {
		y, err := strconv.Atoi(v)
		if err != nil || y < MinYear || y > maxYear {
			continue
		}
		out = append(out, y)
	}
	return out
}

// scalars keeps trimmed, non-empty, first-seen string forms of scalar values.
func scalars(list []any) []string {
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, e := range list {
		switch e.(type) {
		case map[string]any, []any, nil:
			continue
		}
		str, err := cast.ToStringE(e)
		if err != nil {
			continue
		}
		str = strings.TrimSpace(str)
		if str == "" {
			continue
		}
		if _, dup := seen[str]; dup {
			continue
		}
		seen[str] = struct{}{}
		out = append(out, str)
	}
	return out
}

func toAny(strs []string) []any {
	out := make([]any, len(strs))
	for i, s := range strs {
		out[i] = s
	}
	return out
}

// FromQuery lifts the filter keys of URL query values into the raw filter
// shape. Both repeated keys (?genre=a&genre=b) and comma lists (?genre=a,b)
// are accepted; other parameters are ignored.
func FromQuery(q url.Values) map[string]any {
	out := map[string]any{}
	for _, key := range filterKeys {
		var list []any
		for _, v := range q[key] {
			for _, part := range strings.Split(v, ",") {
				list = append(list, part)
			}
		}
		if len(list) > 0 {
			out[key] = list
		}
	}
	return out
}

// And joins predicates with $and, skipping empty ones. Neither side
// overrides the other on a shared key.
func And(parts ...bson.D) bson.D {
	var nonEmpty bson.A
	for _, p := range parts {
		if len(p) > 0 {
			nonEmpty = append(nonEmpty, p)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return bson.D{}
	case 1:
		return nonEmpty[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: nonEmpty}}
}
