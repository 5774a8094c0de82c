// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"*/15 * * * *", false},
		{"@every 15m", false},
		{"@hourly", false},
		{"", true},
		{"* * *", true},
		{"every day", true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestRegisterAndTrigger(t *testing.T) {
	s := New(testLogger(), time.Second)

	runs := 0
	err := s.Register("admin", "purge-links", "clear expired links", "*/15 * * * *", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context has no deadline")
		}
		runs++
		return nil
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if err := s.Register("admin", "purge-links", "", "@hourly", func(context.Context) error { return nil }); err == nil {
		t.Error("duplicate Register: expected error")
	}
	if err := s.Register("admin", "bad", "", "not cron", func(context.Context) error { return nil }); err == nil {
		t.Error("Register with invalid schedule: expected error")
	}

	if err := s.Trigger("admin", "purge-links"); err != nil {
		t.Fatalf("Trigger error: %v", err)
	}
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if err := s.Trigger("admin", "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Trigger of unknown job error = %v, want ErrUnknownJob", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Name != "purge-links" || jobs[0].Schedule != "*/15 * * * *" {
		t.Errorf("Jobs() = %+v", jobs)
	}
}

func TestTriggerReturnsJobError(t *testing.T) {
	s := New(testLogger(), 0)
	boom := errors.New("boom")
	if err := s.Register("core", "fail", "", "@daily", func(context.Context) error { return boom }); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := s.Trigger("core", "fail"); !errors.Is(err, boom) {
		t.Errorf("Trigger error = %v, want boom", err)
	}
}

func TestStartStop(t *testing.T) {
	s := New(testLogger(), 0)
	s.Stop()
	s.Start()
	s.Start()

	if next := s.Jobs(); len(next) != 0 {
		t.Errorf("Jobs() = %v, want none", next)
	}
	s.Stop()
	s.Stop()
}
