package catalog

import (
	"errors"

	"github.com/JustinTDCT/CineGate/internal/pagination"
)

var (
	// ErrInvalid marks requests rejected before reaching the store.
	ErrInvalid = errors.New("invalid request")
	// ErrUnavailable marks store failures; the detail is logged, not returned.
	ErrUnavailable = errors.New("catalog unavailable")
)

const (
	msgInvalid     = "invalid request"
	msgUnavailable = "failed to load content"
)

// Content type tags carried by list envelopes.
const (
	TypeFilms       = "films"
	TypeSeries      = "series"
	TypeEpisodes    = "episodes"
	TypeCollections = "filmcollections"
	TypeMixed       = "mixed"
)

// PagedResponse is the envelope every list operation returns, on success
// and on failure alike.
type PagedResponse[T any] struct {
	Success     bool            `json:"success"`
	Documents   []T             `json:"documents"`
	ContentType string          `json:"contentType"`
	Pagination  pagination.Meta `json:"pagination"`
	Error       string          `json:"error,omitempty"`
}

func ok[T any](docs []T, contentType string, meta pagination.Meta) PagedResponse[T] {
	if docs == nil {
		docs = []T{}
	}
	return PagedResponse[T]{Success: true, Documents: docs, ContentType: contentType, Pagination: meta}
}

func failed[T any](contentType string, page, pageSize int, err error) PagedResponse[T] {
	msg := msgUnavailable
	if errors.Is(err, ErrInvalid) {
		msg = msgInvalid
	}
	return PagedResponse[T]{
		Success:     false,
		Documents:   []T{},
		ContentType: contentType,
		Pagination:  pagination.Empty(page, pageSize),
		Error:       msg,
	}
}
