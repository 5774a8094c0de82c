// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/store"
)

// Record inserts e into the event collection. A zero CreatedAt is set to now.
func Record(ctx context.Context, db store.Database, e model.Event) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = model.Timestamp(time.Now())
	}
	doc, err := store.Encode(e)
	if err != nil {
		return err
	}
	if _, err := db.CreateDocument(ctx, store.CreateQuery{
		Collection: model.EventCollection,
		Document:   doc,
	}); err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first, optionally restricted to a level.
func Recent(ctx context.Context, db store.Database, level string, limit int) ([]model.Event, error) {
	criteria := store.Criteria{}
	if level != "" {
		criteria["level"] = level
	}
	docs, err := db.GetDocument(ctx, store.GetQuery{
		Collection: model.EventCollection,
		Criteria:   criteria,
		Limit:      limit,
		Sort:       []store.SortKey{{Field: "createdAt", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[model.Event](docs)
}
