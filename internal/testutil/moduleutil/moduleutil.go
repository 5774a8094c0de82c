// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package moduleutil provides module-specific test helpers for the plz-cms project.
package moduleutil

import (
	"testing"
	"time"

	"github.com/olegiv/plz-cms/internal/cache"
	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/mailer"
	"github.com/olegiv/plz-cms/internal/metrics"
	"github.com/olegiv/plz-cms/internal/geoip"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/scheduler"
	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/testutil"
)

// TestModuleContext creates a module.Context around db and m registered as the
// default database and mailer. The label cache is in-memory.
func TestModuleContext(t *testing.T, cfg *config.Config, db *store.DB, m mailer.Mailer) *module.Context {
	t.Helper()

	logger := testutil.TestLoggerSilent()

	dbs := store.NewRegistry()
	dbs.Add(store.DefaultName, db)

	mailers := mailer.NewRegistry()
	if m != nil {
		mailers.Add(store.DefaultName, m)
	}

	// No database: only local addresses resolve
	lookup, _ := geoip.Open("")

	mem := cache.NewMemoryCache(cache.MemoryOptions{MaxSize: 100, CleanupInterval: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })

	return &module.Context{
		Config:    cfg,
		Databases: dbs,
		Mailers:   mailers,
		Labels:    cache.NewLabels(mem, time.Minute),
		Logger:    logger,
		Hooks:     module.NewHookRegistry(logger),
		Scheduler: scheduler.New(logger, time.Minute),
		Metrics:   metrics.New(),
		GeoIP:     lookup,
	}
}
