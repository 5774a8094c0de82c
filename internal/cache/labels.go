// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/olegiv/plz-cms/internal/store"
)

// Labels caches label lookups per collection. Every write to a collection
// bumps its generation counter, which orphans all earlier entries; orphans
// then expire through the TTL.
type Labels struct {
	cache Cache
	ttl   time.Duration
}

// NewLabels wraps c. A zero ttl uses the cache default.
func NewLabels(c Cache, ttl time.Duration) *Labels {
	return &Labels{cache: c, ttl: ttl}
}

func genKey(collection string) string {
	return "gen:" + collection
}

func (l *Labels) generation(ctx context.Context, collection string) (int64, error) {
	raw, err := l.cache.Get(ctx, genKey(collection))
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func (l *Labels) key(ctx context.Context, collection, label string, limit int) (string, error) {
	gen, err := l.generation(ctx, collection)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("labels:%s:%d:%d:%s", collection, gen, limit, label), nil
}

// Get returns the cached result of a label lookup. ok is false on a miss.
func (l *Labels) Get(ctx context.Context, collection, label string, limit int) (docs []store.Document, ok bool, err error) {
	key, err := l.key(ctx, collection, label, limit)
	if err != nil {
		return nil, false, err
	}

	raw, err := l.cache.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, false, fmt.Errorf("decoding cached lookup: %w", err)
	}
	return docs, true, nil
}

// Put stores the result of a label lookup under the current generation.
func (l *Labels) Put(ctx context.Context, collection, label string, limit int, docs []store.Document) error {
	key, err := l.key(ctx, collection, label, limit)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encoding lookup: %w", err)
	}
	return l.cache.Set(ctx, key, raw, l.ttl)
}

// Invalidate starts a new generation for collection.
func (l *Labels) Invalidate(ctx context.Context, collection string) error {
	_, err := l.cache.Incr(ctx, genKey(collection))
	return err
}

// Fetch returns the cached lookup or calls load and caches its result.
// The key is taken before load runs, so a write that lands during load
// leaves the result under the superseded generation. Cache failures fall
// back to load; only load errors are returned.
func (l *Labels) Fetch(ctx context.Context, collection, label string, limit int, load func() ([]store.Document, error)) (docs []store.Document, hit bool, err error) {
	key, kerr := l.key(ctx, collection, label, limit)
	if kerr == nil {
		if raw, gerr := l.cache.Get(ctx, key); gerr == nil {
			if json.Unmarshal(raw, &docs) == nil {
				return docs, true, nil
			}
		}
	}

	docs, err = load()
	if err != nil || kerr != nil {
		return docs, false, err
	}
	if raw, merr := json.Marshal(docs); merr == nil {
		_ = l.cache.Set(ctx, key, raw, l.ttl)
	}
	return docs, false, nil
}
