package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReason(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteReason(rec, http.StatusForbidden, "download not allowed", "expired")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"download not allowed","reason":"expired"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "INVALID_SORT", "unknown sort")
	assert.JSONEq(t, `{"success":false,"error":"unknown sort","code":"INVALID_SORT"}`, rec.Body.String())
}

func TestWriteRaw(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRaw(rec, http.StatusOK, "application/xml", []byte("<urlset/>"))
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<urlset/>", rec.Body.String())
}

func TestReadJSON(t *testing.T) {
	var dst struct {
		Quality string `json:"quality"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quality":"1080p"}`))
	require.NoError(t, ReadJSON(req, &dst))
	assert.Equal(t, "1080p", dst.Quality)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quality":`))
	assert.Error(t, ReadJSON(req, &dst))
}
