// Package pagination turns page numbers into skip/limit windows and builds
// the pagination envelope shared by every list operation.
package pagination

import (
	"strconv"
	"strings"
)

const (
	// MaxPage is the highest page number a caller may request.
	MaxPage = 1000
	// MaxResponseSize caps how many matches any listing will ever claim.
	// Page sizes must divide it so the last page ends exactly on the cap.
	MaxResponseSize = 9600
	DefaultPageSize = 24
)

type Meta struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// Page is a skip/limit window for one requested page.
type Page struct {
	Number int
	Size   int
	Skip   int
}

// ClampPage bounds a page number to [1, MaxPage].
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// ParsePage reads a page number from untrusted input. Anything that is not
// a base-10 integer yields page 1; out-of-range values are clamped.
func ParsePage(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return ClampPage(n)
}

func NewPage(page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = ClampPage(page)
	return Page{Number: page, Size: size, Skip: (page - 1) * size}
}

// Paginate builds the envelope for page given the raw match count.
func Paginate(page, rawCount, pageSize int) Meta {
	p := NewPage(page, pageSize)

	total := rawCount
	if total < 0 {
		total = 0
	}
	if total > MaxResponseSize {
		total = MaxResponseSize
	}

	pages := 0
	if total > 0 {
		pages = (total + p.Size - 1) / p.Size
		if ceiling := MaxResponseSize / p.Size; pages > ceiling {
			pages = ceiling
		}
	}

	return Meta{
		CurrentPage:  p.Number,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: p.Size,
		HasNext:      p.Number < pages,
		HasPrev:      p.Number > 1,
	}
}

// Divides reports whether size pages evenly through MaxResponseSize.
func Divides(size int) bool {
	return size > 0 && MaxResponseSize%size == 0
}

// Empty is the envelope returned with a failure: counts zeroed, page echoed.
func Empty(page, pageSize int) Meta {
	p := NewPage(page, pageSize)
	return Meta{CurrentPage: p.Number, ItemsPerPage: p.Size}
}
