// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/plz-cms/internal/validate"
)

const coreYAML = `
modules: {}
database:
  default:
    uri: "sqlite::memory:"
mailer:
  default:
    service: ""
    address: sender@example.com
    password: ""
`

const adminYAML = `
modules:
  admin: true
database:
  default:
    uri: "sqlite::memory:"
mailer:
  default:
    service: ""
    address: sender@example.com
admin:
  collection: user
  roles:
    admin: true
    user: true
  required:
    name: string
    email: email
    password: password
    createdAt: number
    modifiedAt: number
    lastLogin: number
    status: string
`

const authorYAML = `
modules:
  admin: false
  author: true
database:
  default:
    uri: "sqlite::memory:"
  archive:
    uri: "sqlite://./data/archive.db"
mailer:
  default:
    address: sender@example.com
author:
  modules:
    page: true
    post: false
  page:
    collection: page
    required:
      userName: string
      title: string
      content: string
      createdAt: number
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(coreYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if got := cfg.ServerAddr(); got != "localhost:8080" {
		t.Errorf("ServerAddr() = %q, want %q", got, "localhost:8080")
	}
	if cfg.Cache.Prefix != "plz:" || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache() = true without redisURL")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false")
	}
}

func TestParse_Admin(t *testing.T) {
	cfg, err := Parse([]byte(adminYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if !cfg.ModuleEnabled(ModuleAdmin) {
		t.Fatal("admin module not enabled")
	}
	a := cfg.Admin
	if a.Collection != "user" || a.Database != "default" || a.Mailer != "default" {
		t.Errorf("Admin = %+v", a)
	}
	if a.LinkTTL != 24*time.Hour {
		t.Errorf("LinkTTL = %v, want 24h", a.LinkTTL)
	}
	if a.Schema["email"] != validate.KindEmail || a.Schema["lastLogin"] != validate.KindNumber {
		t.Errorf("Schema = %v", a.Schema)
	}
}

func TestParse_Author(t *testing.T) {
	cfg, err := Parse([]byte(authorYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if !cfg.AuthorEnabled(ModulePage) {
		t.Error("AuthorEnabled(page) = false")
	}
	if cfg.AuthorEnabled(ModulePost) {
		t.Error("AuthorEnabled(post) = true")
	}
	if cfg.Author.Page.Database != "default" {
		t.Errorf("page database = %q, want default", cfg.Author.Page.Database)
	}
	if len(cfg.Author.Page.Schema) != 4 {
		t.Errorf("page schema = %v", cfg.Author.Page.Schema)
	}
	if cfg.Author.SiteURL != "http://localhost:8080" {
		t.Errorf("SiteURL = %q, want http://localhost:8080", cfg.Author.SiteURL)
	}
}

func TestParse_Webhooks(t *testing.T) {
	yaml := strings.Replace(authorYAML, "author:\n", "author:\n  siteURL: https://cms.example.com/\n", 1) + `
webhooks:
  - name: ci
    url: https://hooks.example.com/plz
    secret: s3cret
    events: [entry.after_publish]
    headers:
      X-Team: docs
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Author.SiteURL != "https://cms.example.com" {
		t.Errorf("SiteURL = %q, want trailing slash trimmed", cfg.Author.SiteURL)
	}
	if len(cfg.Webhooks) != 1 {
		t.Fatalf("Webhooks = %+v", cfg.Webhooks)
	}
	wh := cfg.Webhooks[0]
	if wh.Name != "ci" || wh.Secret != "s3cret" || wh.Events[0] != "entry.after_publish" || wh.Headers["X-Team"] != "docs" {
		t.Errorf("webhook = %+v", wh)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no default database",
			yaml: "database:\n  notDefault: {uri: \"sqlite::memory:\"}\nmailer:\n  default: {}\n",
		},
		{
			name: "no default mailer",
			yaml: "database:\n  default: {uri: \"sqlite::memory:\"}\nmailer: {}\n",
		},
		{
			name: "unsupported scheme",
			yaml: "database:\n  default: {uri: \"mongodb://127.0.0.1:27017/test\"}\nmailer:\n  default: {}\n",
		},
		{
			name: "bad named database",
			yaml: "database:\n  default: {uri: \"sqlite::memory:\"}\n  other: {uri: \"postgres://x\"}\nmailer:\n  default: {}\n",
		},
		{
			name: "admin enabled without options",
			yaml: strings.Replace(coreYAML, "modules: {}", "modules: {admin: true}", 1),
		},
		{
			name: "author enabled without options",
			yaml: strings.Replace(coreYAML, "modules: {}", "modules: {author: true}", 1),
		},
		{
			name: "admin without roles",
			yaml: strings.Replace(adminYAML, "  roles:\n    admin: true\n    user: true\n", "", 1),
		},
		{
			name: "admin with unknown kind",
			yaml: strings.Replace(adminYAML, "status: string", "status: uuid", 1),
		},
		{
			name: "admin without collection",
			yaml: strings.Replace(adminYAML, "  collection: user\n", "", 1),
		},
		{
			name: "author page without required",
			yaml: strings.Replace(authorYAML, "    required:\n      userName: string\n      title: string\n      content: string\n      createdAt: number\n", "", 1),
		},
		{
			name: "webhook without name",
			yaml: coreYAML + "webhooks:\n  - url: https://hooks.example.com/plz\n    events: [\"*\"]\n",
		},
		{
			name: "webhook with relative url",
			yaml: coreYAML + "webhooks:\n  - name: ci\n    url: /plz\n    events: [\"*\"]\n",
		},
		{
			name: "webhook without events",
			yaml: coreYAML + "webhooks:\n  - name: ci\n    url: https://hooks.example.com/plz\n",
		},
		{
			name: "duplicate webhook names",
			yaml: coreYAML + "webhooks:\n  - {name: ci, url: \"https://a.example.com\", events: [\"*\"]}\n  - {name: ci, url: \"https://b.example.com\", events: [\"*\"]}\n",
		},
		{
			name: "not yaml",
			yaml: "database: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("PLZ_DB_DEFAULT", "sqlite://./data/env.db")
	t.Setenv("PLZ_MAIL_DEFAULT_SERVICE", "gmail")
	t.Setenv("PLZ_MAIL_DEFAULT_PASSWORD", "secret")
	t.Setenv("PLZ_LOG_LEVEL", "debug")
	t.Setenv("PLZ_ENV", "production")
	t.Setenv("PLZ_SERVER_HOST", "0.0.0.0")
	t.Setenv("PLZ_SERVER_PORT", "3000")
	t.Setenv("PLZ_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PLZ_GEOIP_DB", "/var/lib/plz/GeoLite2-Country.mmdb")

	cfg, err := Parse([]byte(coreYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if got := cfg.Database["default"].URI; got != "sqlite://./data/env.db" {
		t.Errorf("default uri = %q", got)
	}
	m := cfg.Mailer["default"]
	if m.Service != "gmail" || m.Password != "secret" || m.Address != "sender@example.com" {
		t.Errorf("default mailer = %+v", m)
	}
	if cfg.LogLevel != "debug" || cfg.Env != "production" {
		t.Errorf("LogLevel = %q, Env = %q", cfg.LogLevel, cfg.Env)
	}
	if got := cfg.ServerAddr(); got != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q", got)
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache() = false")
	}
	if cfg.GeoIPDB != "/var/lib/plz/GeoLite2-Country.mmdb" {
		t.Errorf("GeoIPDB = %q", cfg.GeoIPDB)
	}
}

func TestParse_EnvOverrideSuppliesDefaultDatabase(t *testing.T) {
	t.Setenv("PLZ_DB_DEFAULT", "sqlite::memory:")

	_, err := Parse([]byte("mailer:\n  default: {}\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
}

func TestParse_ExpandsVariables(t *testing.T) {
	t.Setenv("PLZ_TEST_MAIL_ADDRESS", "expanded@example.com")

	cfg, err := Parse([]byte(strings.Replace(coreYAML, "sender@example.com", "${PLZ_TEST_MAIL_ADDRESS}", 1)))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := cfg.Mailer["default"].Address; got != "expanded@example.com" {
		t.Errorf("address = %q", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plz.yaml")
	if err := os.WriteFile(path, []byte(adminYAML), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Admin == nil {
		t.Fatal("Admin = nil")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil")
	}
}
