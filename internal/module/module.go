// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package module provides the feature module system of plz-cms.
// The hub registers the admin and author modules here; each module receives
// the shared Context at Init and mounts its routes on the API router.
package module

import (
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/plz-cms/internal/cache"
	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/geoip"
	"github.com/olegiv/plz-cms/internal/mailer"
	"github.com/olegiv/plz-cms/internal/metrics"
	"github.com/olegiv/plz-cms/internal/scheduler"
	"github.com/olegiv/plz-cms/internal/store"
)

// Context provides access to the process-wide services for modules.
// It is built once by the hub and read-only afterwards.
type Context struct {
	Config    *config.Config
	Databases *store.Registry
	Mailers   *mailer.Registry
	Labels    *cache.Labels
	Logger    *slog.Logger
	Hooks     *HookRegistry
	Scheduler *scheduler.Scheduler
	Metrics   *metrics.Collector
	GeoIP     *geoip.Lookup
}

// Database resolves a named connection, falling back to the default one.
// The returned store records metrics when a collector is configured.
func (c *Context) Database(name string) (store.Database, error) {
	db := c.Databases.Get(name)
	if db == nil {
		return nil, fmt.Errorf("database %q: %w", name, store.ErrNotFound)
	}
	return metrics.InstrumentDatabase(db, c.Metrics), nil
}

// Mailer resolves a named mail transport, falling back to the default one.
func (c *Context) Mailer(name string) (mailer.Mailer, error) {
	m := c.Mailers.Get(name)
	if m == nil {
		return nil, fmt.Errorf("mailer %q is not configured", name)
	}
	if name == "" {
		name = store.DefaultName
	}
	return metrics.InstrumentMailer(name, m, c.Metrics), nil
}

// Module defines the interface that all feature modules implement.
type Module interface {
	// Name returns the module name.
	Name() string
	// Description returns the module description.
	Description() string
	// Dependencies returns the names of modules that must be registered first.
	Dependencies() []string

	// Init wires the module to the shared services.
	Init(ctx *Context) error
	// Shutdown releases module resources.
	Shutdown() error

	// RegisterRoutes mounts the module's HTTP handlers.
	RegisterRoutes(r chi.Router)
}

// BaseModule provides no-op defaults. Modules embed it and override what they need.
type BaseModule struct {
	name        string
	description string
	ctx         *Context
}

// NewBaseModule creates a BaseModule with the given metadata.
func NewBaseModule(name, description string) BaseModule {
	return BaseModule{name: name, description: description}
}

// Name returns the module name.
func (m *BaseModule) Name() string { return m.name }

// Description returns the module description.
func (m *BaseModule) Description() string { return m.description }

// Dependencies returns nil.
func (m *BaseModule) Dependencies() []string { return nil }

// Init stores the context.
func (m *BaseModule) Init(ctx *Context) error {
	m.ctx = ctx
	return nil
}

// Shutdown is a no-op.
func (m *BaseModule) Shutdown() error { return nil }

// RegisterRoutes is a no-op.
func (m *BaseModule) RegisterRoutes(_ chi.Router) {}

// Context returns the context passed to Init.
func (m *BaseModule) Context() *Context { return m.ctx }
