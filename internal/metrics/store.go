// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/olegiv/plz-cms/internal/store"
)

// Database wraps a store.Database and records every operation.
type Database struct {
	next store.Database
	c    *Collector
}

// InstrumentDatabase returns db with metrics recorded by c. A nil collector returns db unchanged.
func InstrumentDatabase(db store.Database, c *Collector) store.Database {
	if c == nil || db == nil {
		return db
	}
	return &Database{next: db, c: c}
}

func (d *Database) observe(op, collection string, start time.Time, err error) {
	result := Result(err)
	switch {
	case errors.Is(err, store.ErrNotFound):
		result = "not_found"
	case errors.Is(err, store.ErrDuplicate):
		result = "duplicate"
	}
	d.c.StoreOperations.WithLabelValues(op, collection, result).Inc()
	d.c.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CreateDocument implements store.Database.
func (d *Database) CreateDocument(ctx context.Context, q store.CreateQuery) (store.InsertResult, error) {
	start := time.Now()
	res, err := d.next.CreateDocument(ctx, q)
	d.observe("create", q.Collection, start, err)
	return res, err
}

// GetDocument implements store.Database.
func (d *Database) GetDocument(ctx context.Context, q store.GetQuery) ([]store.Document, error) {
	start := time.Now()
	docs, err := d.next.GetDocument(ctx, q)
	d.observe("get", q.Collection, start, err)
	return docs, err
}

// EditDocument implements store.Database.
func (d *Database) EditDocument(ctx context.Context, q store.EditQuery) (store.EditResult, error) {
	start := time.Now()
	res, err := d.next.EditDocument(ctx, q)
	d.observe("edit", q.Collection, start, err)
	return res, err
}

// RemoveDocument implements store.Database.
func (d *Database) RemoveDocument(ctx context.Context, q store.RemoveQuery) (store.RemoveResult, error) {
	start := time.Now()
	res, err := d.next.RemoveDocument(ctx, q)
	d.observe("remove", q.Collection, start, err)
	return res, err
}

// Transact implements store.Database. The transaction-bound database is instrumented too.
func (d *Database) Transact(ctx context.Context, fn func(store.Database) error) error {
	return d.next.Transact(ctx, func(tx store.Database) error {
		return fn(&Database{next: tx, c: d.c})
	})
}
