// Package validate holds the identifier and input checks applied before any
// value reaches the document store.
package validate

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidID   = errors.New("invalid object id")
	ErrInvalidSlug = errors.New("invalid slug")
)

const MaxSlugLength = 256

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func IsObjectID(s string) bool {
	return objectIDPattern.MatchString(s)
}

// ObjectID converts a 24-hex-char string. Anything else is ErrInvalidID.
func ObjectID(s string) (primitive.ObjectID, error) {
	if !IsObjectID(s) {
		return primitive.NilObjectID, ErrInvalidID
	}
	id, err := primitive.ObjectIDFromHex(strings.ToLower(s))
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return id, nil
}

// SafeKey reports whether a user-supplied map key is plain data: no operator
// sigil, no path separator, no NUL.
func SafeKey(k string) bool {
	if k == "" || strings.HasPrefix(k, "$") {
		return false
	}
	return !strings.ContainsAny(k, ".\x00")
}

// StripOperatorKeys returns a copy of m without unsafe keys, recursing into
// nested maps and slices.
func StripOperatorKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !SafeKey(k) {
			continue
		}
		out[k] = stripValue(v)
	}
	return out
}

func stripValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return StripOperatorKeys(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, stripValue(e))
		}
		return out
	}
	return v
}

// SearchPattern builds a case-insensitive regex predicate matching q
// literally anywhere in the field.
func SearchPattern(q string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(q)), Options: "i"}
}

// Slug decodes and normalizes an incoming slug to NFC. Slugs carrying
// control characters, path separators or operator sigils are rejected.
func Slug(raw string) (string, error) {
	s := raw
	if strings.Contains(s, "%") {
		dec, err := url.PathUnescape(s)
		if err != nil {
			return "", ErrInvalidSlug
		}
		s = dec
	}
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" || len(s) > MaxSlugLength || strings.HasPrefix(s, "$") {
		return "", ErrInvalidSlug
	}
	for _, r := range s {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return "", ErrInvalidSlug
		}
	}
	return s, nil
}
