package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/CineGate/internal/download"
)

func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/qualities"):
			_ = json.NewEncoder(w).Encode(download.QualitiesResponse{Success: true, Qualities: []string{"1080p", "720p"}, Type: "film"})
		case strings.HasSuffix(r.URL.Path, "/services"):
			_ = json.NewEncoder(w).Encode(download.ServicesResponse{Success: true, Services: []download.ServiceName{{ServiceName: "X"}, {ServiceName: "Y"}}})
		case strings.HasSuffix(r.URL.Path, "/link"):
			q := r.URL.Query()
			_ = json.NewEncoder(w).Encode(download.LinkResponse{Success: true, Link: &download.Link{
				DownloadLink: "https://" + strings.ToLower(q.Get("service")) + "/" + q.Get("quality"),
				Quality:      q.Get("quality"),
				ServiceName:  q.Get("service"),
			}})
		case strings.HasSuffix(r.URL.Path, "/token"):
			_ = json.NewEncoder(w).Encode(download.IssuedToken{Token: "abc.def.ghi"})
		case r.URL.Path == "/api/v1/download/events":
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestRunPrintsLink(t *testing.T) {
	srv := fakeGateway(t)
	defer srv.Close()
	log, _ := logtest.NewNullLogger()

	var out bytes.Buffer
	err := run(context.Background(), download.NewClient(srv.URL, nil), options{slug: "فيلم-المثال", service: "Y"}, &out, log)
	require.NoError(t, err)
	assert.Equal(t, "1080p\tY\thttps://y/1080p\n", out.String())
}

func TestRunTokenMode(t *testing.T) {
	srv := fakeGateway(t)
	defer srv.Close()
	log, _ := logtest.NewNullLogger()

	var out bytes.Buffer
	err := run(context.Background(), download.NewClient(srv.URL, nil), options{slug: "x", quality: "720p", token: true}, &out, log)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/go/abc.def.ghi\n", out.String())
}

func TestRunRejectsUnofferedQuality(t *testing.T) {
	srv := fakeGateway(t)
	defer srv.Close()
	log, _ := logtest.NewNullLogger()

	err := run(context.Background(), download.NewClient(srv.URL, nil), options{slug: "x", quality: "4k"}, &bytes.Buffer{}, log)
	assert.ErrorIs(t, err, download.ErrInvalidChoice)

	err = run(context.Background(), download.NewClient(srv.URL, nil), options{}, &bytes.Buffer{}, log)
	assert.Error(t, err)
}

type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	waited []time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waited = append(c.waited, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func TestRunTokenModeWaitsForGate(t *testing.T) {
	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := &stepClock{now: start}
	var (
		mu      sync.Mutex
		tokenAt time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/qualities"):
			_ = json.NewEncoder(w).Encode(download.QualitiesResponse{Success: true, Qualities: []string{"720p"}, RevealDelayMs: 2000})
		case strings.HasSuffix(r.URL.Path, "/services"):
			_ = json.NewEncoder(w).Encode(download.ServicesResponse{Success: true, Services: []download.ServiceName{{ServiceName: "X"}}})
		case strings.HasSuffix(r.URL.Path, "/token"):
			mu.Lock()
			tokenAt = clock.Now()
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(download.IssuedToken{Token: "abc.def.ghi"})
		default:
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	defer srv.Close()
	log, _ := logtest.NewNullLogger()

	var out bytes.Buffer
	opts := options{slug: "x", token: true, delay: 5 * time.Second, clock: clock}
	require.NoError(t, run(context.Background(), download.NewClient(srv.URL, nil), opts, &out, log))

	assert.Equal(t, srv.URL+"/go/abc.def.ghi\n", out.String())
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.waited)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, start.Add(2*time.Second), tokenAt)
}

func TestRunTokenModeHonorsCancel(t *testing.T) {
	srv := fakeGateway(t)
	defer srv.Close()
	log, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := run(ctx, download.NewClient(srv.URL, nil), options{slug: "x", token: true, delay: time.Hour}, &out, log)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
