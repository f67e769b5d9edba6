package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"0", 1},
		{"-4", 1},
		{" 3 ", 3},
		{"1000", 1000},
		{"1001", MaxPage},
		{"99999999999999999999", 1},
		{"2.5", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePage(tt.in), "input %q", tt.in)
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage(3, 24)
	assert.Equal(t, Page{Number: 3, Size: 24, Skip: 48}, p)

	p = NewPage(-1, 0)
	assert.Equal(t, Page{Number: 1, Size: DefaultPageSize, Skip: 0}, p)
}

func TestPaginatePastLastPage(t *testing.T) {
	m := Paginate(3, 10, 24)
	assert.Equal(t, Meta{
		CurrentPage:  3,
		TotalPages:   1,
		TotalItems:   10,
		ItemsPerPage: 24,
		HasNext:      false,
		HasPrev:      true,
	}, m)
}

func TestPaginateZeroDocuments(t *testing.T) {
	m := Paginate(1, 0, 24)
	assert.Equal(t, 0, m.TotalItems)
	assert.Equal(t, 0, m.TotalPages)
	assert.False(t, m.HasNext)
	assert.False(t, m.HasPrev)
}

func TestPaginateCapsAtMaxResponseSize(t *testing.T) {
	m := Paginate(1, 250000, 24)
	assert.Equal(t, MaxResponseSize, m.TotalItems)
	assert.Equal(t, MaxResponseSize/24, m.TotalPages)
	assert.True(t, m.HasNext)
}

func TestPaginateConsistency(t *testing.T) {
	for _, size := range []int{1, 20, 24, 25, 48, 50, 100} {
		require.True(t, Divides(size))
		for _, raw := range []int{0, 1, 5, 23, 24, 25, 999, 9599, 9600, 9601, 10000, 123456} {
			for _, page := range []int{-3, 1, 2, 3, 50, 400, 401, 1000, 5000} {
				m := Paginate(page, raw, size)

				wantItems := raw
				if wantItems > MaxResponseSize {
					wantItems = MaxResponseSize
				}
				assert.Equal(t, wantItems, m.TotalItems)
				assert.Equal(t, m.CurrentPage < m.TotalPages, m.HasNext)
				assert.Equal(t, m.CurrentPage > 1, m.HasPrev)
				assert.GreaterOrEqual(t, m.CurrentPage, 1)
				assert.LessOrEqual(t, m.CurrentPage, MaxPage)
				assert.LessOrEqual(t, m.TotalPages, MaxResponseSize/size)

				if m.TotalItems > 0 {
					assert.GreaterOrEqual(t, m.TotalPages*size, m.TotalItems)
				}
			}
		}
	}
}

func TestEmpty(t *testing.T) {
	m := Empty(4, 24)
	assert.Equal(t, Meta{CurrentPage: 4, ItemsPerPage: 24}, m)
}

func TestLastPageEndsOnCap(t *testing.T) {
	m := Paginate(1, 20000, DefaultPageSize)
	assert.Equal(t, MaxResponseSize, m.TotalPages*DefaultPageSize)

	// The window past the last page starts at the cap, so the capped
	// pipeline serves nothing there.
	assert.Equal(t, MaxResponseSize, NewPage(m.TotalPages+1, DefaultPageSize).Skip)

	assert.True(t, Divides(DefaultPageSize))
	assert.False(t, Divides(7))
	assert.False(t, Divides(0))
}
