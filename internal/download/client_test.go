package download

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/CineGate/internal/audit"
)

func TestClientDecodesSteps(t *testing.T) {
	var reported audit.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/qualities"):
			_ = json.NewEncoder(w).Encode(QualitiesResponse{Success: true, Qualities: []string{"1080p"}, Type: "film"})
		case strings.HasSuffix(r.URL.Path, "/services"):
			assert.Equal(t, "1080p", r.URL.Query().Get("quality"))
			_ = json.NewEncoder(w).Encode(ServicesResponse{Success: true, Services: []ServiceName{{ServiceName: "X"}}})
		case strings.HasSuffix(r.URL.Path, "/link"):
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(LinkResponse{Success: false})
		case r.URL.Path == "/api/v1/download/events":
			assert.Equal(t, http.MethodPost, r.Method)
			_ = json.NewDecoder(r.Body).Decode(&reported)
			w.WriteHeader(http.StatusAccepted)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	ctx := context.Background()

	qs, err := c.Qualities(ctx, exampleSlug)
	require.NoError(t, err)
	assert.Equal(t, []string{"1080p"}, qs.Qualities)

	ss, err := c.Services(ctx, exampleSlug, "1080p")
	require.NoError(t, err)
	assert.Equal(t, "X", ss.Services[0].ServiceName)

	link, err := c.Link(ctx, exampleSlug, "1080p", "X")
	assert.ErrorIs(t, err, ErrStepFailed)
	assert.False(t, link.Success)

	require.NoError(t, c.Report(ctx, audit.Event{Type: audit.ServiceChosen, Slug: exampleSlug}))
	assert.Equal(t, audit.ServiceChosen, reported.Type)

	assert.Equal(t, srv.URL+"/go/abc.def", c.RedirectURL("abc.def"))
}

func TestClientRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"too many requests"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Qualities(context.Background(), exampleSlug)
	require.ErrorIs(t, err, ErrStepFailed)
	assert.Contains(t, err.Error(), "60")
}
