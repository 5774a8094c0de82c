// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package admin implements user management and account recovery:
// login, activation and reset links, and role checks against the
// configured role table.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/middleware"
	"github.com/olegiv/plz-cms/internal/module"
)

// Scheduled jobs
const (
	JobPurgeLinks   = "purge-links"
	JobLoginCleanup = "login-cleanup"

	purgeSchedule   = "@every 15m"
	cleanupSchedule = "@every 5m"
)

// Module is the admin feature module.
type Module struct {
	module.BaseModule

	users      *UserService
	accounts   *AccountService
	protection *middleware.LoginProtection
}

// New creates the admin module.
func New() *Module {
	return &Module{
		BaseModule: module.NewBaseModule(config.ModuleAdmin, "User accounts, login and recovery links"),
	}
}

// Init builds the services and schedules link purging.
func (m *Module) Init(ctx *module.Context) error {
	if err := m.BaseModule.Init(ctx); err != nil {
		return err
	}
	cfg := ctx.Config.Admin
	if cfg == nil {
		return errors.New("admin options missing")
	}

	db, err := ctx.Database(cfg.Database)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	mail, err := ctx.Mailer(cfg.Mailer)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	logger := ctx.Logger.With("module", config.ModuleAdmin)

	m.users = NewUserService(db, cfg.Collection, cfg.Schema, cfg.Roles, ctx.Hooks, logger)
	m.accounts = NewAccountService(AccountOptions{
		DB:         db,
		Collection: cfg.Collection,
		Mailer:     mail,
		BaseURL:    cfg.BaseURL,
		LinkTTL:    cfg.LinkTTL,
		Roles:      cfg.Roles,
		Hooks:      ctx.Hooks,
		Metrics:    ctx.Metrics,
		Logger:     logger,
	})

	onLimited := func() {}
	if ctx.Metrics != nil {
		onLimited = ctx.Metrics.LoginLimited.Inc
	}
	m.protection = middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit: cfg.LoginRate,
		IPBurst:     cfg.LoginBurst,
		OnLimited:   onLimited,
	}, logger)

	if ctx.Scheduler != nil {
		if err := ctx.Scheduler.Register(config.ModuleAdmin, JobPurgeLinks,
			"Clear expired activation and reset links", purgeSchedule,
			func(ctx context.Context) error {
				_, err := m.accounts.PurgeExpiredLinks(ctx)
				return err
			}); err != nil {
			return err
		}
		if err := ctx.Scheduler.Register(config.ModuleAdmin, JobLoginCleanup,
			"Drop stale login lockouts and rate limiters", cleanupSchedule,
			func(context.Context) error {
				m.protection.Cleanup()
				return nil
			}); err != nil {
			return err
		}
	}

	logger.Info("admin module initialized", "collection", cfg.Collection)
	return nil
}

// Users returns the user service.
func (m *Module) Users() *UserService { return m.users }

// Accounts returns the account service.
func (m *Module) Accounts() *AccountService { return m.accounts }

// RegisterRoutes mounts /admin.
func (m *Module) RegisterRoutes(r chi.Router) {
	h := NewHandler(m.users, m.accounts, m.protection, m.Context().Logger)
	h.geoip = m.Context().GeoIP
	r.Route("/admin", h.Routes)
}
