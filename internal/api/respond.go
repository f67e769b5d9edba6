package api

import (
	"errors"
	"net/http"

	"github.com/JustinTDCT/CineGate/internal/catalog"
	"github.com/JustinTDCT/CineGate/internal/download"
	"github.com/JustinTDCT/CineGate/internal/httputil"
	"github.com/JustinTDCT/CineGate/internal/related"
	"github.com/JustinTDCT/CineGate/internal/repository"
	"github.com/JustinTDCT/CineGate/internal/resolver"
	"github.com/JustinTDCT/CineGate/internal/validate"
)

// statusOf maps service errors onto HTTP statuses. Store failures are 503;
// the detail has already been logged by the service.
func statusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, download.ErrInvalid),
		errors.Is(err, validate.ErrInvalidSlug),
		errors.Is(err, validate.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, download.ErrNotFound),
		errors.Is(err, resolver.ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, related.ErrUnknownKind):
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func codeOf(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	default:
		return "UNAVAILABLE"
	}
}

// writeResult sends body with the status err maps to. Fail-closed bodies
// are written as-is so clients always get the operation's envelope.
func writeResult(w http.ResponseWriter, body any, err error) {
	httputil.WriteJSON(w, statusOf(err), body)
}

// writeFailure sends the generic envelope for operations without one.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := "request failed"
	switch status {
	case http.StatusBadRequest:
		msg = "invalid request"
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusServiceUnavailable:
		msg = "temporarily unavailable"
	}
	httputil.WriteError(w, status, codeOf(status), msg)
}

func writeNotFound(w http.ResponseWriter, msg string) {
	httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", msg)
}
