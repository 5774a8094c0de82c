// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package hub connects the configured databases and mail transports and
// merges the enabled feature modules into a single API.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/plz-cms/internal/admin"
	"github.com/olegiv/plz-cms/internal/author"
	"github.com/olegiv/plz-cms/internal/cache"
	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/geoip"
	"github.com/olegiv/plz-cms/internal/logging"
	"github.com/olegiv/plz-cms/internal/mailer"
	"github.com/olegiv/plz-cms/internal/metrics"
	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/scheduler"
	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/transfer"
	"github.com/olegiv/plz-cms/internal/webhook"
)

// jobTimeout bounds a single scheduled job run.
const jobTimeout = 5 * time.Minute

// Jobs registered by the hub itself.
const (
	jobSource       = "system"
	JobGeoIPReload  = "geoip-reload"
	geoipReloadSpec = "@daily"
)

// API is the merged surface of the enabled modules. Fields of disabled
// modules are nil.
type API struct {
	Pages    *author.Collection
	Posts    *author.Collection
	Accounts *admin.AccountService
	Users    *admin.UserService
}

// Hub owns the shared services and the registered modules.
type Hub struct {
	API

	cfg       *config.Config
	logger    *slog.Logger
	databases *store.Registry
	mailers   *mailer.Registry
	cache     cache.Cache
	labels    *cache.Labels
	hooks     *module.HookRegistry
	modules   *module.Registry
	scheduler *scheduler.Scheduler
	metrics   *metrics.Collector
	webhooks  *webhook.Dispatcher
	geoip     *geoip.Lookup
}

// Option customizes Configure.
type Option func(*Hub)

// WithEventLog attaches h to the default database once it is open.
func WithEventLog(h *logging.EventLogHandler) Option {
	return func(hb *Hub) {
		if h != nil {
			h.Attach(hb.databases.Get(store.DefaultName))
		}
	}
}

// WithMetrics uses c instead of a fresh collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(hb *Hub) {
		if c != nil {
			hb.metrics = c
		}
	}
}

// Configure opens the databases and mail transports named in cfg, then
// registers and initializes the enabled modules. A failing default database
// is fatal; other databases that fail to open fall back to the default one.
func Configure(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Hub, error) {
	h := &Hub{
		cfg:       cfg,
		logger:    logger,
		databases: store.NewRegistry(),
		metrics:   metrics.New(),
	}

	if err := h.openDatabases(ctx); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(h)
	}

	var err error
	if h.mailers, err = mailer.New(cfg.Mailer, logger); err != nil {
		_ = h.databases.Close()
		return nil, fmt.Errorf("building mailers: %w", err)
	}
	if h.cache, err = cache.New(ctx, cfg.Cache); err != nil {
		_ = h.databases.Close()
		return nil, fmt.Errorf("building cache: %w", err)
	}

	h.hooks = module.NewHookRegistry(logger)
	h.registerAudit()
	if len(cfg.Webhooks) > 0 {
		if h.webhooks, err = webhook.New(cfg.Webhooks, webhook.DefaultConfig(), h.metrics, logger); err != nil {
			return nil, h.abort(fmt.Errorf("building webhooks: %w", err))
		}
		h.webhooks.Subscribe(h.hooks)
		h.webhooks.Start(context.WithoutCancel(ctx))
	}
	h.scheduler = scheduler.New(logger, jobTimeout)
	if err := h.openGeoIP(); err != nil {
		return nil, h.abort(err)
	}
	h.modules = module.NewRegistry(logger)
	h.labels = cache.NewLabels(h.cache, cfg.Cache.TTL)

	mctx := &module.Context{
		Config:    cfg,
		Databases: h.databases,
		Mailers:   h.mailers,
		Labels:    h.labels,
		Logger:    logger,
		Hooks:     h.hooks,
		Scheduler: h.scheduler,
		Metrics:   h.metrics,
		GeoIP:     h.geoip,
	}

	var adminModule *admin.Module
	var authorModule *author.Module
	if cfg.ModuleEnabled(config.ModuleAdmin) {
		adminModule = admin.New()
		if err := h.modules.Register(adminModule); err != nil {
			return nil, h.abort(err)
		}
	}
	if cfg.ModuleEnabled(config.ModuleAuthor) {
		authorModule = author.New()
		if err := h.modules.Register(authorModule); err != nil {
			return nil, h.abort(err)
		}
	}

	if err := h.modules.InitAll(mctx); err != nil {
		return nil, h.abort(err)
	}

	if adminModule != nil {
		h.Users = adminModule.Users()
		h.Accounts = adminModule.Accounts()
	}
	if authorModule != nil {
		h.Pages = authorModule.Pages()
		h.Posts = authorModule.Posts()
	}

	logger.Info("hub configured",
		"databases", h.databases.Names(),
		"mailers", h.mailers.Names(),
		"modules", h.modules.Count(),
		"redis_cache", cfg.UseRedisCache(),
	)
	return h, nil
}

func (h *Hub) openDatabases(ctx context.Context) error {
	def, err := store.Open(ctx, h.cfg.Database[store.DefaultName].URI)
	if err != nil {
		return fmt.Errorf("opening default database: %w", err)
	}
	h.databases.Add(store.DefaultName, def)

	for name, dbc := range h.cfg.Database {
		if name == store.DefaultName {
			continue
		}
		db, err := store.Open(ctx, dbc.URI)
		if err != nil {
			h.logger.Warn("database unavailable, using default", "name", name, "error", err)
			continue
		}
		h.databases.Add(name, db)
	}
	return nil
}

// openGeoIP loads the optional country database. A file that cannot be read
// only disables country lookups.
func (h *Hub) openGeoIP() error {
	var err error
	h.geoip, err = geoip.Open(h.cfg.GeoIPDB)
	if err != nil {
		h.logger.Warn("geoip disabled", "path", h.cfg.GeoIPDB, "error", err)
	}
	if h.cfg.GeoIPDB == "" {
		return nil
	}
	return h.scheduler.Register(jobSource, JobGeoIPReload,
		"Reload the GeoIP database when the file changes", geoipReloadSpec,
		func(context.Context) error { return h.geoip.Reload() })
}

// abort releases what Configure has built so far.
func (h *Hub) abort(err error) error {
	return errors.Join(err, h.Close())
}

// registerAudit records every module change in the event collection.
func (h *Hub) registerAudit() {
	categories := map[string]string{}
	if a := h.cfg.Admin; a != nil {
		categories[a.Collection] = model.EventCategoryUser
	}
	if au := h.cfg.Author; au != nil {
		if au.Page != nil {
			categories[au.Page.Collection] = model.EventCategoryPage
		}
		if au.Post != nil {
			categories[au.Post.Collection] = model.EventCategoryPost
		}
	}

	audit := func(message string, auth bool) module.HookFunc {
		return func(ctx context.Context, e module.Event) error {
			category := categories[e.Collection]
			if auth {
				category = model.EventCategoryAuth
			}
			if category == "" {
				category = model.EventCategorySystem
			}
			metadata := map[string]string{"id": e.ID, "subject": e.Subject}
			if e.Actor != "" {
				metadata["actor"] = e.Actor
			}
			for k, v := range e.Data {
				metadata[k] = v
			}
			return logging.Record(ctx, h.databases.Get(store.DefaultName), model.Event{
				Level:    model.EventLevelInfo,
				Category: category,
				Message:  message,
				Metadata: metadata,
			})
		}
	}

	for hook, spec := range map[string]struct {
		message string
		auth    bool
	}{
		module.HookEntryAfterCreate:  {"Entry created", false},
		module.HookEntryAfterEdit:    {"Entry edited", false},
		module.HookEntryAfterPublish: {"Entry published", false},
		module.HookEntryAfterRemove:  {"Entry removed", false},
		module.HookUserAfterCreate:   {"User created", false},
		module.HookUserAfterRemove:   {"User removed", false},
		module.HookUserAfterLogin:    {"User logged in", true},
		module.HookUserAfterLink:     {"Account link sent", true},
		module.HookUserAfterComplete: {"Account action completed", true},
	} {
		h.hooks.RegisterFunc(hook, "audit", "hub", audit(spec.message, spec.auth))
	}
}

// Routes mounts the routes of every module on r.
func (h *Hub) Routes(r chi.Router) {
	h.modules.RouteAll(r)
}

// Modules describes the registered modules.
func (h *Hub) Modules() []module.Info {
	return h.modules.ListInfo()
}

// Scheduler returns the job scheduler. Jobs run once Start is called on it.
func (h *Hub) Scheduler() *scheduler.Scheduler {
	return h.scheduler
}

// Metrics returns the collector shared by the modules.
func (h *Hub) Metrics() *metrics.Collector {
	return h.metrics
}

// Databases returns the named connections.
func (h *Hub) Databases() *store.Registry {
	return h.databases
}

// Events returns up to limit logged events, newest first.
func (h *Hub) Events(ctx context.Context, level string, limit int) ([]model.Event, error) {
	events, err := logging.Recent(ctx, h.databases.Get(store.DefaultName), level, limit)
	if errors.Is(err, store.ErrNotFound) {
		return []model.Event{}, nil
	}
	return events, err
}

// transferSources lists the collections of the enabled modules.
func (h *Hub) transferSources() []transfer.Source {
	var sources []transfer.Source
	add := func(cc *config.CollectionConfig, secrets []string) {
		sources = append(sources, transfer.Source{
			Collection: cc.Collection,
			Database:   h.databaseName(cc.Database),
			DB:         h.databases.Get(cc.Database),
			Secrets:    secrets,
		})
	}
	if h.Users != nil {
		add(&h.cfg.Admin.CollectionConfig, admin.SecretFields())
	}
	if h.Pages != nil {
		add(h.cfg.Author.Page, nil)
	}
	if h.Posts != nil {
		add(h.cfg.Author.Post, nil)
	}
	return sources
}

// databaseName resolves name the way the registry does, so that a database
// that fell back to the default one is reported as default.
func (h *Hub) databaseName(name string) string {
	if name != "" && h.databases.Has(name) {
		return name
	}
	return store.DefaultName
}

// Exporter exports the collections of the enabled modules.
func (h *Hub) Exporter() *transfer.Exporter {
	return transfer.NewExporter(h.transferSources(), h.logger)
}

// Import writes an export into the collections of the enabled modules and
// drops their cached label lookups.
func (h *Hub) Import(ctx context.Context, data *transfer.ExportData, opts transfer.ImportOptions) (*transfer.ImportResult, error) {
	sources := h.transferSources()
	res, err := transfer.NewImporter(sources, h.logger).Import(ctx, data, opts)
	if res == nil || res.DryRun || res.Total() == 0 {
		return res, err
	}

	for _, s := range sources {
		if err := h.labels.Invalidate(ctx, s.Collection); err != nil {
			h.logger.Warn("label cache invalidation failed", "collection", s.Collection, "error", err)
		}
	}
	metadata := map[string]string{"strategy": string(opts.ConflictStrategy)}
	for name, n := range res.Created {
		metadata["created."+name] = strconv.Itoa(n)
	}
	for name, n := range res.Updated {
		metadata["updated."+name] = strconv.Itoa(n)
	}
	if rerr := logging.Record(ctx, h.databases.Get(store.DefaultName), model.Event{
		Level:    model.EventLevelInfo,
		Category: model.EventCategorySystem,
		Message:  "Collections imported",
		Metadata: metadata,
	}); rerr != nil {
		h.logger.Warn("recording import event failed", "error", rerr)
	}
	return res, err
}

// Webhooks returns the webhook dispatcher, or nil when none is configured.
func (h *Hub) Webhooks() *webhook.Dispatcher {
	return h.webhooks
}

// Close shuts the modules down, then closes the cache and every connection.
func (h *Hub) Close() error {
	var errs []error
	if h.webhooks != nil {
		h.webhooks.Stop()
	}
	if h.scheduler != nil {
		h.scheduler.Stop()
	}
	if h.modules != nil {
		errs = append(errs, h.modules.ShutdownAll())
	}
	if h.cache != nil {
		errs = append(errs, h.cache.Close())
	}
	errs = append(errs, h.geoip.Close())
	errs = append(errs, h.databases.Close())
	return errors.Join(errs...)
}
