// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/olegiv/plz-cms/internal/store"
)

func TestLabels(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(MemoryOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()
	l := NewLabels(mem, 0)

	if _, ok, err := l.Get(ctx, "page", "mainmenu", 0); err != nil || ok {
		t.Fatalf("Get on empty cache = ok %v, err %v", ok, err)
	}

	docs := []store.Document{{"_id": "a", "title": "Home", "labels": []any{"mainmenu"}}}
	if err := l.Put(ctx, "page", "mainmenu", 0, docs); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, ok, err := l.Get(ctx, "page", "mainmenu", 0)
	if err != nil || !ok {
		t.Fatalf("Get after Put = ok %v, err %v", ok, err)
	}
	if len(got) != 1 || got[0]["title"] != "Home" {
		t.Errorf("Get = %v", got)
	}

	if _, ok, _ := l.Get(ctx, "page", "mainmenu", 5); ok {
		t.Error("different limit shared a cache entry")
	}
	if _, ok, _ := l.Get(ctx, "post", "mainmenu", 0); ok {
		t.Error("different collection shared a cache entry")
	}

	if err := l.Invalidate(ctx, "post"); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}
	if _, ok, _ := l.Get(ctx, "page", "mainmenu", 0); !ok {
		t.Error("invalidating post dropped page entries")
	}

	if err := l.Invalidate(ctx, "page"); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}
	if _, ok, _ := l.Get(ctx, "page", "mainmenu", 0); ok {
		t.Error("entry survived invalidation")
	}
}

func TestLabelsFetch(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(MemoryOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()
	l := NewLabels(mem, 0)

	loads := 0
	load := func() ([]store.Document, error) {
		loads++
		return []store.Document{{"_id": "a", "title": "Home"}}, nil
	}

	if _, hit, err := l.Fetch(ctx, "page", "mainmenu", 0, load); err != nil || hit {
		t.Fatalf("first Fetch = hit %v, err %v", hit, err)
	}
	docs, hit, err := l.Fetch(ctx, "page", "mainmenu", 0, load)
	if err != nil || !hit || loads != 1 {
		t.Fatalf("second Fetch = hit %v, err %v, loads %d", hit, err, loads)
	}
	if docs[0]["title"] != "Home" {
		t.Errorf("Fetch = %v", docs)
	}

	// A write during load must not be cached under the new generation
	racing := func() ([]store.Document, error) {
		_ = l.Invalidate(ctx, "page")
		return []store.Document{{"_id": "stale"}}, nil
	}
	if _, _, err := l.Fetch(ctx, "page", "footer", 0, racing); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if _, ok, _ := l.Get(ctx, "page", "footer", 0); ok {
		t.Error("result loaded across an invalidation was cached for the new generation")
	}
}

func TestLabelsFetchLoadError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(MemoryOptions{})
	defer func() { _ = mem.Close() }()
	l := NewLabels(mem, time.Minute)

	if _, _, err := l.Fetch(ctx, "page", "x", 0, func() ([]store.Document, error) {
		return nil, store.ErrNotFound
	}); err != store.ErrNotFound {
		t.Errorf("Fetch error = %v, want ErrNotFound", err)
	}
	if _, ok, _ := l.Get(ctx, "page", "x", 0); ok {
		t.Error("failed load was cached")
	}
}
