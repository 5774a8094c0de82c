// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/testutil"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func events(t *testing.T, db store.Database) []model.Event {
	t.Helper()
	evs, err := Recent(context.Background(), db, "", 0)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	return evs
}

func TestEventLogHandlerForwardsWarnings(t *testing.T) {
	db := testutil.TestStore(t)
	h := NewEventLogHandler(discardHandler{})
	h.Attach(db)
	logger := slog.New(h)

	logger.Info("page created", "title", "P")
	logger.Warn("login failed", "email", "a@example.com")
	logger.Error("mail delivery failed", "category", model.EventCategoryUser, "error", errors.New("refused"))

	evs := events(t, db)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}

	byMessage := map[string]model.Event{}
	for _, e := range evs {
		byMessage[e.Message] = e
	}

	warn := byMessage["login failed"]
	if warn.Level != model.EventLevelWarning || warn.Category != model.EventCategoryAuth {
		t.Errorf("warn event = %+v", warn)
	}
	if warn.Metadata["email"] != "a@example.com" {
		t.Errorf("warn metadata = %v", warn.Metadata)
	}

	errEv := byMessage["mail delivery failed"]
	if errEv.Level != model.EventLevelError || errEv.Category != model.EventCategoryUser {
		t.Errorf("error event = %+v", errEv)
	}
	if errEv.Metadata["error"] != "refused" {
		t.Errorf("error metadata = %v", errEv.Metadata)
	}
	if _, ok := errEv.Metadata["category"]; ok {
		t.Error("category should not be duplicated in metadata")
	}
	if errEv.CreatedAt == 0 {
		t.Error("CreatedAt not set")
	}
}

func TestEventLogHandlerDetached(t *testing.T) {
	db := testutil.TestStore(t)
	h := NewEventLogHandler(discardHandler{})
	logger := slog.New(h)

	logger.Error("before attach")
	h.Attach(db)
	logger.Error("after attach")
	h.Attach(nil)
	logger.Error("after detach")

	evs := events(t, db)
	if len(evs) != 1 || evs[0].Message != "after attach" {
		t.Errorf("events = %+v", evs)
	}
}

func TestEventLogHandlerWithAttrsSharesTarget(t *testing.T) {
	db := testutil.TestStore(t)
	h := NewEventLogHandler(discardHandler{})
	logger := slog.New(h).With("mailer", "default").WithGroup("smtp")

	h.Attach(db)
	logger.Warn("send failed", "host", "smtp.example.com")

	evs := events(t, db)
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	md := evs[0].Metadata
	if md["mailer"] != "default" || md["smtp.host"] != "smtp.example.com" {
		t.Errorf("metadata = %v", md)
	}
}

func TestEventLogHandlerCustomLevel(t *testing.T) {
	db := testutil.TestStore(t)
	h := NewEventLogHandlerWithLevel(discardHandler{}, slog.LevelError)
	h.Attach(db)
	logger := slog.New(h)

	logger.Warn("cache miss storm")
	logger.Error("cache unavailable")

	evs := events(t, db)
	if len(evs) != 1 || evs[0].Category != model.EventCategoryCache {
		t.Errorf("events = %+v", evs)
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Login rate limit exceeded", model.EventCategoryAuth},
		{"invalid recovery token", model.EventCategoryAuth},
		{"post publish failed", model.EventCategoryPost},
		{"revision archive failed", model.EventCategoryPage},
		{"user remove failed", model.EventCategoryUser},
		{"config reloaded", model.EventCategoryConfig},
		{"something else", model.EventCategorySystem},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := inferCategory(tt.msg); got != tt.want {
				t.Errorf("inferCategory(%q) = %q, want %q", tt.msg, got, tt.want)
			}
		})
	}
}

func TestRecent(t *testing.T) {
	db := testutil.TestStore(t)
	ctx := context.Background()

	for i, lvl := range []string{model.EventLevelInfo, model.EventLevelError, model.EventLevelInfo} {
		if err := Record(ctx, db, model.Event{
			Level:     lvl,
			Category:  model.EventCategorySystem,
			Message:   lvl,
			CreatedAt: float64(100 + i),
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	infos, err := Recent(ctx, db, model.EventLevelInfo, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(infos) != 1 || infos[0].CreatedAt != 102 {
		t.Errorf("Recent = %+v", infos)
	}
}
