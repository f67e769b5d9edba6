package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func TestObjectID(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"507f1f77bcf86cd799439011", true},
		{"507F1F77BCF86CD799439011", true},
		{"507f1f77bcf86cd79943901", false},
		{"507f1f77bcf86cd7994390111", false},
		{"507f1f77bcf86cd79943901z", false},
		{`{"$gt":""}`, false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := ObjectID(tt.in)
			if tt.valid {
				require.NoError(t, err)
				assert.False(t, id.IsZero())
			} else {
				assert.ErrorIs(t, err, ErrInvalidID)
			}
		})
	}
}

func TestStripOperatorKeys(t *testing.T) {
	in := map[string]any{
		"genre":     []any{"Drama"},
		"$where":    "sleep(1000)",
		"a.b":       1,
		"language":  map[string]any{"$ne": "x", "ok": 1},
		"countries": []any{map[string]any{"$gt": ""}},
	}
	out := StripOperatorKeys(in)
	assert.NotContains(t, out, "$where")
	assert.NotContains(t, out, "a.b")
	assert.Equal(t, map[string]any{"ok": 1}, out["language"])
	assert.Equal(t, []any{map[string]any{}}, out["countries"])
	assert.Equal(t, []any{"Drama"}, out["genre"])
}

func TestSearchPatternEscapes(t *testing.T) {
	p := SearchPattern("  a.b*(c) ")
	assert.Equal(t, `a\.b\*\(c\)`, p.Pattern)
	assert.Equal(t, "i", p.Options)
}

func TestSlug(t *testing.T) {
	s, err := Slug("%D9%81%D9%8A%D9%84%D9%85-%D8%A7%D9%84%D9%85%D8%AB%D8%A7%D9%84")
	require.NoError(t, err)
	assert.Equal(t, "فيلم-المثال", s)

	decomposed := norm.NFD.String("café-film")
	s, err = Slug(decomposed)
	require.NoError(t, err)
	assert.Equal(t, norm.NFC.String("café-film"), s)

	for _, bad := range []string{"", "   ", "$gt", "a/b", "a\x00b", "%zz"} {
		_, err := Slug(bad)
		assert.ErrorIs(t, err, ErrInvalidSlug, bad)
	}
}
