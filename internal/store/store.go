// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store provides a document store on top of database/sql.
// Documents are JSON bodies grouped into named collections; the four
// primitives (create, get, edit, remove) mirror a document database API.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when criteria match no document.
	ErrNotFound = errors.New("no document matches criteria")
	// ErrDuplicate is returned by CreateDocument when a document with the unique fields exists.
	ErrDuplicate = errors.New("document matching unique fields already exists")
	// ErrNoCriteria is returned when a destructive query has empty criteria.
	ErrNoCriteria = errors.New("criteria required")
	// ErrNoCollection is returned when a query names no collection.
	ErrNoCollection = errors.New("collection name required")
)

// CreateQuery inserts Document into Collection unless a document matching UniqueFields exists.
type CreateQuery struct {
	Collection   string
	Document     Document
	UniqueFields Criteria
}

// GetQuery fetches documents from Collection. Limit <= 0 means no limit.
type GetQuery struct {
	Collection string
	Criteria   Criteria
	Limit      int
	Sort       []SortKey
}

// EditQuery applies a partial update to the first document matching Criteria,
// or to all matches when Multi is set.
type EditQuery struct {
	Collection string
	Criteria   Criteria
	Set        Document
	Unset      []string
	// Multi edits every match. Empty Criteria are only accepted together with Multi.
	Multi      bool
}

// RemoveQuery deletes every document in Collection matching Criteria.
type RemoveQuery struct {
	Collection string
	Criteria   Criteria
}

// InsertResult reports the identifier of an inserted document.
type InsertResult struct {
	InsertedID string `json:"insertedId"`
}

// EditResult reports how many documents matched and how many changed.
type EditResult struct {
	Matched  int `json:"matched"`
	Modified int `json:"modified"`
}

// RemoveResult reports how many documents were deleted.
type RemoveResult struct {
	Deleted int `json:"deleted"`
}

// Database is the document store contract used by feature modules.
type Database interface {
	CreateDocument(ctx context.Context, q CreateQuery) (InsertResult, error)
	GetDocument(ctx context.Context, q GetQuery) ([]Document, error)
	EditDocument(ctx context.Context, q EditQuery) (EditResult, error)
	RemoveDocument(ctx context.Context, q RemoveQuery) (RemoveResult, error)
	// Transact runs fn against a Database bound to a single transaction.
	Transact(ctx context.Context, fn func(Database) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DB is a Database backed by a SQL connection pool.
type DB struct {
	sqlDB   *sql.DB
	q       querier
	inTx    bool
	dialect Dialect
	now     func() time.Time
}

// New wraps an already migrated *sql.DB.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{
		sqlDB:   db,
		q:       db,
		dialect: dialect,
		now:     time.Now,
	}
}

// SQL returns the underlying connection pool.
func (d *DB) SQL() *sql.DB { return d.sqlDB }

// Dialect returns the SQL backend type.
func (d *DB) Dialect() Dialect { return d.dialect }

// Close closes the connection pool.
func (d *DB) Close() error { return d.sqlDB.Close() }

// Transact implements Database. Nested calls reuse the open transaction.
func (d *DB) Transact(ctx context.Context, fn func(Database) error) error {
	if d.inTx {
		return fn(d)
	}

	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txDB := &DB{sqlDB: d.sqlDB, q: tx, inTx: true, dialect: d.dialect, now: d.now}
	if err := fn(txDB); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CreateDocument implements Database.
func (d *DB) CreateDocument(ctx context.Context, q CreateQuery) (InsertResult, error) {
	if q.Collection == "" {
		return InsertResult{}, ErrNoCollection
	}

	doc := q.Document.Clone()
	if doc == nil {
		doc = Document{}
	}
	if doc.ID() == "" {
		doc[IDField] = uuid.NewString()
	}

	var res InsertResult
	err := d.Transact(ctx, func(db Database) error {
		tx := db.(*DB)
		if len(q.UniqueFields) > 0 {
			existing, err := tx.find(ctx, q.Collection, q.UniqueFields, 1)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return ErrDuplicate
			}
		}

		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}

		now := tx.now().UnixMilli()
		if _, err := tx.q.ExecContext(ctx,
			`INSERT INTO documents (id, collection, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			doc.ID(), q.Collection, string(body), now, now,
		); err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}

		res.InsertedID = doc.ID()
		return nil
	})
	return res, err
}

// GetDocument implements Database.
func (d *DB) GetDocument(ctx context.Context, q GetQuery) ([]Document, error) {
	if q.Collection == "" {
		return nil, ErrNoCollection
	}

	limit := q.Limit
	if len(q.Sort) > 0 {
		// Sorting needs every match before the limit is applied
		limit = 0
	}

	docs, err := d.find(ctx, q.Collection, q.Criteria, limit)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}

	sortDocuments(docs, q.Sort)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// EditDocument implements Database.
func (d *DB) EditDocument(ctx context.Context, q EditQuery) (EditResult, error) {
	if q.Collection == "" {
		return EditResult{}, ErrNoCollection
	}
	if len(q.Criteria) == 0 && !q.Multi {
		return EditResult{}, ErrNoCriteria
	}
	if _, ok := q.Set[IDField]; ok {
		return EditResult{}, fmt.Errorf("%s cannot be updated", IDField)
	}

	var res EditResult
	err := d.Transact(ctx, func(db Database) error {
		tx := db.(*DB)
		limit := 1
		if q.Multi {
			limit = 0
		}

		docs, err := tx.find(ctx, q.Collection, q.Criteria, limit)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return ErrNotFound
		}

		now := tx.now().UnixMilli()
		for _, doc := range docs {
			before, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encoding document: %w", err)
			}
			for k, v := range q.Set {
				doc[k] = cloneValue(v)
			}
			for _, k := range q.Unset {
				if k != IDField {
					delete(doc, k)
				}
			}
			after, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encoding document: %w", err)
			}

			res.Matched++
			if bytes.Equal(before, after) {
				continue
			}

			if _, err := tx.q.ExecContext(ctx,
				`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
				string(after), now, q.Collection, doc.ID(),
			); err != nil {
				return fmt.Errorf("updating document: %w", err)
			}
			res.Modified++
		}
		return nil
	})
	if err != nil {
		return EditResult{}, err
	}
	return res, nil
}

// RemoveDocument implements Database.
func (d *DB) RemoveDocument(ctx context.Context, q RemoveQuery) (RemoveResult, error) {
	if q.Collection == "" {
		return RemoveResult{}, ErrNoCollection
	}
	if len(q.Criteria) == 0 {
		return RemoveResult{}, ErrNoCriteria
	}

	var res RemoveResult
	err := d.Transact(ctx, func(db Database) error {
		tx := db.(*DB)
		docs, err := tx.find(ctx, q.Collection, q.Criteria, 0)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return ErrNotFound
		}

		for _, doc := range docs {
			if _, err := tx.q.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = ? AND id = ?`,
				q.Collection, doc.ID(),
			); err != nil {
				return fmt.Errorf("deleting document: %w", err)
			}
			res.Deleted++
		}
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	return res, nil
}

// find loads documents of a collection in insertion order and filters them by criteria.
// A string _id criterion is pushed down to SQL.
func (d *DB) find(ctx context.Context, collection string, criteria Criteria, limit int) ([]Document, error) {
	query := `SELECT body FROM documents WHERE collection = ?`
	args := []any{collection}
	if id, ok := criteria[IDField].(string); ok {
		query += ` AND id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY seq`

	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		if !criteria.Matches(doc) {
			continue
		}
		docs = append(docs, doc)
		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
