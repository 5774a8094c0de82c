// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package author implements the page and post sub-modules: entries with
// labels, slugs and a revision history where every edit archives the
// previous state of the live document.
package author

import (
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/module"
)

// Module is the author feature module.
type Module struct {
	module.BaseModule

	renderer *Renderer
	pages    *Collection
	posts    *Collection
	site     *SiteHandler
}

// New creates the author module.
func New() *Module {
	return &Module{
		BaseModule: module.NewBaseModule(config.ModuleAuthor, "Pages and posts with revision history"),
		renderer:   NewRenderer(),
	}
}

// Init builds a collection for each enabled sub-module.
func (m *Module) Init(ctx *module.Context) error {
	if err := m.BaseModule.Init(ctx); err != nil {
		return err
	}
	cfg := ctx.Config.Author
	if cfg == nil {
		return errors.New("author options missing")
	}

	var err error
	if ctx.Config.AuthorEnabled(config.ModulePage) {
		if m.pages, err = m.collection(ctx, config.ModulePage, cfg.Page); err != nil {
			return err
		}
	}
	if ctx.Config.AuthorEnabled(config.ModulePost) {
		if m.posts, err = m.collection(ctx, config.ModulePost, cfg.Post); err != nil {
			return err
		}
	}

	m.site = NewSiteHandler(cfg.SiteURL, cfg.DisallowCrawlers, m.pages, m.posts, ctx.Logger)

	ctx.Logger.Info("author module initialized", "pages", m.pages != nil, "posts", m.posts != nil)
	return nil
}

func (m *Module) collection(ctx *module.Context, name string, cc *config.CollectionConfig) (*Collection, error) {
	if cc == nil {
		return nil, fmt.Errorf("author.%s options missing", name)
	}
	db, err := ctx.Database(cc.Database)
	if err != nil {
		return nil, fmt.Errorf("author.%s: %w", name, err)
	}
	return NewCollection(Options{
		Name:       name,
		Collection: cc.Collection,
		Schema:     cc.Schema,
		DB:         db,
		Labels:     ctx.Labels,
		Hooks:      ctx.Hooks,
		Metrics:    ctx.Metrics,
		Logger:     ctx.Logger,
		Renderer:   m.renderer,
	}), nil
}

// Pages returns the page collection, or nil when the page sub-module is disabled.
func (m *Module) Pages() *Collection { return m.pages }

// Posts returns the post collection, or nil when the post sub-module is disabled.
func (m *Module) Posts() *Collection { return m.posts }

// RegisterRoutes mounts /pages, /posts, /sitemap.xml and /robots.txt.
func (m *Module) RegisterRoutes(r chi.Router) {
	logger := m.Context().Logger
	r.Get("/sitemap.xml", m.site.Sitemap)
	r.Get("/robots.txt", m.site.Robots)
	if m.pages != nil {
		r.Route("/pages", NewHandler(m.pages, logger).Routes)
	}
	if m.posts != nil {
		r.Route("/posts", NewHandler(m.posts, logger).Routes)
	}
}
