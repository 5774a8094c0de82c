// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the plz-cms project.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/olegiv/plz-cms/internal/mailer"
	"github.com/olegiv/plz-cms/internal/store"
)

// TestLogger creates a test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a test logger that only outputs errors.
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestStore opens a migrated SQLite document store in a temp directory.
// It is closed when the test ends.
func TestStore(t *testing.T) *store.DB {
	t.Helper()

	uri := "sqlite://" + filepath.Join(t.TempDir(), "plz-test.db")
	db, err := store.Open(context.Background(), uri)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// FakeMailer records sent messages. Err, when set, is returned by SendMail
// and nothing is recorded.
type FakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	Err  error
}

// SendMail implements mailer.Mailer.
func (f *FakeMailer) SendMail(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (f *FakeMailer) Sent() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

// Last returns the most recent message, or false if none was sent.
func (f *FakeMailer) Last() (mailer.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return mailer.Message{}, false
	}
	return f.sent[len(f.sent)-1], true
}
