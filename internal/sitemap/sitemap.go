// Package sitemap renders the XML urlset of every resolvable slug.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/cache"
	"github.com/JustinTDCT/CineGate/internal/models"
	"github.com/JustinTDCT/CineGate/internal/repository"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// StaticPaths are listed ahead of content slugs.
var StaticPaths = []string{"/", "/films", "/series", "/episodes", "/collections", "/latest"}

var scanned = []string{models.CollFilms, models.CollSeries, models.CollSeasons}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []entry  `xml:"url"`
}

type entry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type Generator struct {
	repo    *repository.ContentRepository
	baseURL string
	cache   cache.Cache
	ttl     time.Duration
	log     logrus.FieldLogger
}

// New builds a generator. A nil cache renders on every request.
func New(repo *repository.ContentRepository, baseURL string, c cache.Cache, ttl time.Duration, log logrus.FieldLogger) *Generator {
	return &Generator{
		repo:    repo,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   c,
		ttl:     ttl,
		log:     log.WithField("component", "sitemap"),
	}
}

func cacheKey() string { return cache.Key("sitemap", "urlset") }

// Build scans films, series and seasons and renders the urlset.
func (g *Generator) Build(ctx context.Context) ([]byte, error) {
	set := urlset{Xmlns: xmlns}
	for _, p := range StaticPaths {
		set.URLs = append(set.URLs, entry{Loc: g.baseURL + p})
	}
	for _, coll := range scanned {
		stamps, err := g.repo.SlugStamps(ctx, coll)
		if err != nil {
			return nil, err
		}
		for _, s := range stamps {
			if s.Slug == "" {
				continue
			}
			set.URLs = append(set.URLs, entry{Loc: g.baseURL + "/" + url.PathEscape(s.Slug), LastMod: lastMod(s)})
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	return buf.Bytes(), nil
}

func lastMod(s models.SlugStamp) string {
	t := s.UpdatedAt
	if t.IsZero() {
		t = s.CreatedAt
	}
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Refresh rebuilds the sitemap into the cache.
func (g *Generator) Refresh(ctx context.Context) error {
	data, err := g.Build(ctx)
	if err != nil {
		g.log.WithError(err).Error("sitemap refresh failed")
		return err
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, cacheKey(), data, g.ttl); err != nil {
			g.log.WithError(err).Warn("sitemap cache write failed")
		}
	}
	g.log.WithField("bytes", len(data)).Info("sitemap refreshed")
	return nil
}

// XML serves the cached sitemap, rendering it on a miss.
func (g *Generator) XML(ctx context.Context) ([]byte, error) {
	if g.cache != nil {
		if data, ok, err := g.cache.Get(ctx, cacheKey()); err == nil && ok {
			return data, nil
		}
	}
	data, err := g.Build(ctx)
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		_ = g.cache.Set(ctx, cacheKey(), data, g.ttl)
	}
	return data, nil
}
