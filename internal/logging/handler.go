// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that forwards warnings and errors
// into the `event` collection of the default document store.
package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/store"
)

// writeTimeout bounds a single event insert.
const writeTimeout = 2 * time.Second

type sink struct {
	db store.Database
}

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// records at or above its level into the event collection.
//
// The store is attached after the default database is opened; until then
// records only reach the wrapped handler.
type EventLogHandler struct {
	inner  slog.Handler
	target *atomic.Pointer[sink]
	attrs  []slog.Attr
	group  string
	level  slog.Level // Minimum level to forward (default: WARN)
}

// NewEventLogHandler creates a handler forwarding WARN and above.
func NewEventLogHandler(inner slog.Handler) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a handler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:  inner,
		target: &atomic.Pointer[sink]{},
		level:  level,
	}
}

// Attach starts forwarding to db. Handlers derived with WithAttrs or WithGroup share the target.
// A nil db detaches.
func (h *EventLogHandler) Attach(db store.Database) {
	if db == nil {
		h.target.Store(nil)
		return
	}
	h.target.Store(&sink{db: db})
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		if s := h.target.Load(); s != nil {
			h.writeToEventLog(ctx, s.db, r)
		}
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.inner = h.inner.WithAttrs(attrs)
	for _, a := range attrs {
		c.attrs = append(c.attrs, h.qualify(a))
	}
	return c
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.inner = h.inner.WithGroup(name)
	c.group = h.qualifyKey(name)
	return c
}

func (h *EventLogHandler) clone() *EventLogHandler {
	return &EventLogHandler{
		inner:  h.inner,
		target: h.target,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		group:  h.group,
		level:  h.level,
	}
}

func (h *EventLogHandler) qualifyKey(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *EventLogHandler) qualify(a slog.Attr) slog.Attr {
	return slog.Attr{Key: h.qualifyKey(a.Key), Value: a.Value}
}

// writeToEventLog stores the record. Failures are dropped: logging them would recurse.
func (h *EventLogHandler) writeToEventLog(ctx context.Context, db store.Database, r slog.Record) {
	metadata := make(map[string]string, len(h.attrs)+r.NumAttrs())
	category := ""
	collect := func(a slog.Attr) bool {
		if a.Key == "category" {
			category = a.Value.String()
			return true
		}
		metadata[a.Key] = a.Value.Resolve().String()
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool { return collect(h.qualify(a)) })

	if category == "" {
		category = inferCategory(r.Message)
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	// The request context may already be cancelled when an error is logged
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_ = Record(wctx, db, model.Event{
		Level:     levelName(r.Level),
		Category:  category,
		Message:   r.Message,
		Metadata:  metadata,
		CreatedAt: model.Timestamp(r.Time),
	})
}

// levelName converts a slog.Level to an event level.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// inferCategory guesses a category from the message when no "category" attribute is set.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "login") || strings.Contains(msg, "auth") || strings.Contains(msg, "token"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "post"):
		return model.EventCategoryPost
	case strings.Contains(msg, "page") || strings.Contains(msg, "entry") || strings.Contains(msg, "revision"):
		return model.EventCategoryPage
	case strings.Contains(msg, "user") || strings.Contains(msg, "account"):
		return model.EventCategoryUser
	case strings.Contains(msg, "config"):
		return model.EventCategoryConfig
	case strings.Contains(msg, "cache"):
		return model.EventCategoryCache
	default:
		return model.EventCategorySystem
	}
}
