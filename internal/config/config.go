// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the plz-cms configuration from a YAML file, applies
// environment overrides and validates it before anything is connected.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/validate"
)

// ErrInvalid is wrapped by every configuration error. Configuration errors are fatal.
var ErrInvalid = errors.New("malformed configuration options")

// Module names
const (
	ModuleAdmin  = "admin"
	ModuleAuthor = "author"
	ModulePage   = "page"
	ModulePost   = "post"
)

// Config is the root configuration structure.
type Config struct {
	Env      string                    `yaml:"env"`
	LogLevel string                    `yaml:"logLevel"`
	Server   ServerConfig              `yaml:"server"`
	Cache    CacheConfig               `yaml:"cache"`
	Modules  map[string]bool           `yaml:"modules"`
	Database map[string]DatabaseConfig `yaml:"database"`
	Mailer   map[string]MailerConfig   `yaml:"mailer"`
	Admin    *AdminConfig              `yaml:"admin"`
	Author   *AuthorConfig             `yaml:"author"`
	Webhooks []WebhookConfig           `yaml:"webhooks"`
	// GeoIPDB is an optional GeoLite2-Country database used to tag logins with a country.
	GeoIPDB  string                    `yaml:"geoipDB"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheConfig configures the label lookup cache. An empty RedisURL selects the memory backend.
type CacheConfig struct {
	RedisURL string        `yaml:"redisURL"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	MaxSize  int           `yaml:"maxSize"`
}

// DatabaseConfig names a document store connection.
type DatabaseConfig struct {
	URI string `yaml:"uri"`
}

// MailerConfig describes a mail transport. An empty Service logs messages instead of sending them.
type MailerConfig struct {
	Service  string `yaml:"service"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// CollectionConfig binds a feature module to a collection and its required fields.
type CollectionConfig struct {
	Collection string            `yaml:"collection"`
	Database   string            `yaml:"database"`
	Required   map[string]string `yaml:"required"`

	// Schema is Required parsed by Validate.
	Schema validate.Schema `yaml:"-"`
}

// AdminConfig configures the admin module.
type AdminConfig struct {
	CollectionConfig `yaml:",inline"`

	Mailer     string          `yaml:"mailer"`
	BaseURL    string          `yaml:"baseURL"`
	LinkTTL    time.Duration   `yaml:"linkTTL"`
	Roles      map[string]bool `yaml:"roles"`
	LoginRate  float64         `yaml:"loginRate"`
	LoginBurst int             `yaml:"loginBurst"`
}

// AuthorConfig configures the author module and its page and post sub-modules.
type AuthorConfig struct {
	Modules map[string]bool   `yaml:"modules"`
	Page    *CollectionConfig `yaml:"page"`
	Post    *CollectionConfig `yaml:"post"`

	// SiteURL prefixes entry links in the sitemap.
	SiteURL string `yaml:"siteURL"`
	// DisallowCrawlers makes robots.txt block every crawler.
	DisallowCrawlers bool `yaml:"disallowCrawlers"`
}

// WebhookConfig subscribes an HTTP endpoint to module events. Events holds
// hook names such as entry.after_publish, or "*" for all of them.
type WebhookConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Secret  string            `yaml:"secret"`
	Events  []string          `yaml:"events"`
	Headers map[string]string `yaml:"headers"`
}

// envOverrides are applied on top of the file after it is parsed.
type envOverrides struct {
	DBDefault    string `env:"PLZ_DB_DEFAULT"`
	MailService  string `env:"PLZ_MAIL_DEFAULT_SERVICE"`
	MailAddress  string `env:"PLZ_MAIL_DEFAULT_ADDRESS"`
	MailPassword string `env:"PLZ_MAIL_DEFAULT_PASSWORD"`
	LogLevel     string `env:"PLZ_LOG_LEVEL"`
	Env          string `env:"PLZ_ENV"`
	ServerHost   string `env:"PLZ_SERVER_HOST"`
	ServerPort   int    `env:"PLZ_SERVER_PORT"`
	RedisURL     string `env:"PLZ_REDIS_URL"`
	GeoIPDB      string `env:"PLZ_GEOIP_DB"`
}

// Load reads, overrides and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory YAML document. ${VAR} references are expanded.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %v", ErrInvalid, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("%w: parsing environment: %v", ErrInvalid, err)
	}

	if o.DBDefault != "" {
		if c.Database == nil {
			c.Database = make(map[string]DatabaseConfig)
		}
		c.Database[store.DefaultName] = DatabaseConfig{URI: o.DBDefault}
	}

	if o.MailService != "" || o.MailAddress != "" || o.MailPassword != "" {
		if c.Mailer == nil {
			c.Mailer = make(map[string]MailerConfig)
		}
		m := c.Mailer[store.DefaultName]
		if o.MailService != "" {
			m.Service = o.MailService
		}
		if o.MailAddress != "" {
			m.Address = o.MailAddress
		}
		if o.MailPassword != "" {
			m.Password = o.MailPassword
		}
		c.Mailer[store.DefaultName] = m
	}

	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.GeoIPDB != "" {
		c.GeoIPDB = o.GeoIPDB
	}
	if o.Env != "" {
		c.Env = o.Env
	}
	if o.ServerHost != "" {
		c.Server.Host = o.ServerHost
	}
	if o.ServerPort != 0 {
		c.Server.Port = o.ServerPort
	}
	if o.RedisURL != "" {
		c.Cache.RedisURL = o.RedisURL
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "plz:"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 1000
	}

	if a := c.Admin; a != nil {
		if a.Database == "" {
			a.Database = store.DefaultName
		}
		if a.Mailer == "" {
			a.Mailer = store.DefaultName
		}
		if a.LinkTTL == 0 {
			a.LinkTTL = 24 * time.Hour
		}
		if a.LoginRate == 0 {
			a.LoginRate = 0.5
		}
		if a.LoginBurst == 0 {
			a.LoginBurst = 5
		}
	}

	if au := c.Author; au != nil {
		for _, cc := range []*CollectionConfig{au.Page, au.Post} {
			if cc != nil && cc.Database == "" {
				cc.Database = store.DefaultName
			}
		}
		if au.SiteURL == "" {
			au.SiteURL = "http://" + c.ServerAddr()
		}
		au.SiteURL = strings.TrimRight(au.SiteURL, "/")
	}
}

// Validate checks the configuration and parses every required-field schema.
// All failures wrap ErrInvalid.
func (c *Config) Validate() error {
	def, ok := c.Database[store.DefaultName]
	if !ok || def.URI == "" {
		return invalid("database.default.uri is required")
	}
	for _, name := range sortedKeys(c.Database) {
		if _, err := store.ParseURI(c.Database[name].URI); err != nil {
			return invalid("database.%s.uri: %v", name, err)
		}
	}

	if _, ok := c.Mailer[store.DefaultName]; !ok {
		return invalid("mailer.default is required")
	}

	if c.ModuleEnabled(ModuleAdmin) {
		if c.Admin == nil {
			return invalid("admin module enabled without admin options")
		}
		if err := c.Admin.CollectionConfig.compile("admin"); err != nil {
			return err
		}
		if len(c.Admin.Roles) == 0 {
			return invalid("admin.roles must not be empty")
		}
		if _, ok := c.Mailer[c.Admin.Mailer]; !ok {
			return invalid("admin.mailer %q is not configured", c.Admin.Mailer)
		}
	}

	if c.ModuleEnabled(ModuleAuthor) {
		if c.Author == nil {
			return invalid("author module enabled without author options")
		}
		for _, sub := range []struct {
			name string
			cc   *CollectionConfig
		}{{ModulePage, c.Author.Page}, {ModulePost, c.Author.Post}} {
			if !c.Author.Modules[sub.name] {
				continue
			}
			if sub.cc == nil {
				return invalid("author.%s enabled without options", sub.name)
			}
			if err := sub.cc.compile("author." + sub.name); err != nil {
				return err
			}
		}
	}

	names := make(map[string]bool, len(c.Webhooks))
	for i, wh := range c.Webhooks {
		if wh.Name == "" {
			return invalid("webhooks[%d].name is required", i)
		}
		if names[wh.Name] {
			return invalid("webhooks[%d].name %q is not unique", i, wh.Name)
		}
		names[wh.Name] = true
		u, err := url.Parse(wh.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("webhooks.%s.url must be an absolute http(s) url", wh.Name)
		}
		if len(wh.Events) == 0 {
			return invalid("webhooks.%s.events must not be empty", wh.Name)
		}
	}

	return nil
}

func (cc *CollectionConfig) compile(path string) error {
	if cc.Collection == "" {
		return invalid("%s.collection is required", path)
	}
	if len(cc.Required) == 0 {
		return invalid("%s.required must not be empty", path)
	}
	schema, err := validate.ParseSchema(cc.Required)
	if err != nil {
		return invalid("%s.required: %v", path, err)
	}
	cc.Schema = schema
	return nil
}

// ModuleEnabled reports whether a top-level feature module is switched on.
func (c *Config) ModuleEnabled(name string) bool {
	return c.Modules[name]
}

// AuthorEnabled reports whether an author sub-module (page or post) is switched on.
func (c *Config) AuthorEnabled(name string) bool {
	return c.ModuleEnabled(ModuleAuthor) && c.Author != nil && c.Author.Modules[name]
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// UseRedisCache returns true if Redis caching is configured.
func (c *Config) UseRedisCache() bool {
	return c.Cache.RedisURL != ""
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
