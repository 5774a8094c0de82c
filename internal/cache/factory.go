// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/olegiv/plz-cms/internal/config"
)

// New creates a Redis cache when cfg.RedisURL is set and a memory cache otherwise.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	if cfg.RedisURL == "" {
		return NewMemoryCache(MemoryOptions{
			DefaultTTL:      cfg.TTL,
			MaxSize:         cfg.MaxSize,
			CleanupInterval: time.Minute,
		}), nil
	}

	opts := DefaultRedisOptions()
	opts.URL = cfg.RedisURL
	if cfg.Prefix != "" {
		opts.Prefix = cfg.Prefix
	}
	if cfg.TTL > 0 {
		opts.DefaultTTL = cfg.TTL
	}

	c, err := NewRedisCache(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return c, nil
}

// SanitizeRedisURL masks the password in a Redis URL for logging.
func SanitizeRedisURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid URL]"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
