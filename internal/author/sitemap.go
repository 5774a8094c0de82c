// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package author

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olegiv/plz-cms/internal/handler/api"
	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/seo"
)

// SiteHandler serves the crawler-facing documents of the public site.
type SiteHandler struct {
	siteURL          string
	disallowCrawlers bool
	pages            *Collection
	posts            *Collection
	logger           *slog.Logger
}

// NewSiteHandler creates a SiteHandler. Either collection may be nil.
func NewSiteHandler(siteURL string, disallowCrawlers bool, pages, posts *Collection, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{
		siteURL:          siteURL,
		disallowCrawlers: disallowCrawlers,
		pages:            pages,
		posts:            posts,
		logger:           logger,
	}
}

// Sitemap handles GET /sitemap.xml
func (h *SiteHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	var sections []seo.Section
	for _, s := range []struct {
		c        *Collection
		path     string
		priority string
	}{
		{h.pages, "/pages", "0.8"},
		{h.posts, "/posts", "0.6"},
	} {
		if s.c == nil {
			continue
		}
		entries, err := sitemapEntries(r.Context(), s.c)
		if err != nil {
			api.WriteErr(w, h.logger, err)
			return
		}
		sections = append(sections, seo.Section{
			Path:       s.path,
			ChangeFreq: seo.ChangeFreqWeekly,
			Priority:   s.priority,
			Entries:    entries,
		})
	}

	out, err := seo.GenerateSitemap(h.siteURL, sections...)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// Robots handles GET /robots.txt
func (h *SiteHandler) Robots(w http.ResponseWriter, _ *http.Request) {
	body := seo.NewRobotsBuilder(seo.RobotsConfig{
		SiteURL:     h.siteURL,
		DisallowAll: h.disallowCrawlers,
	}).Build()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func sitemapEntries(ctx context.Context, c *Collection) ([]seo.SitemapEntry, error) {
	docs, err := c.Published(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]seo.SitemapEntry, 0, len(docs))
	for _, doc := range docs {
		e := seo.SitemapEntry{Slug: stringField(doc, fieldSlug)}
		if ts, ok := doc[fieldModifiedAt].(float64); ok {
			e.ModifiedAt = model.TimeOf(ts)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
