// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "testing"

func TestEntryStatus(t *testing.T) {
	tests := []struct {
		status    string
		published bool
		archived  bool
	}{
		{StatusDraft, false, false},
		{StatusPending, false, false},
		{StatusPublished, true, false},
		{StatusArchived, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			e := &Entry{Status: tt.status}
			if got := e.IsPublished(); got != tt.published {
				t.Errorf("IsPublished() = %v, want %v", got, tt.published)
			}
			if got := e.IsArchived(); got != tt.archived {
				t.Errorf("IsArchived() = %v, want %v", got, tt.archived)
			}
		})
	}
}

func TestEntryHasLabel(t *testing.T) {
	e := &Entry{Labels: []string{"mainmenu", "footer"}}

	if !e.HasLabel("footer") {
		t.Error("HasLabel(footer) = false, want true")
	}
	if e.HasLabel("sidebar") {
		t.Error("HasLabel(sidebar) = true, want false")
	}
	if (&Entry{}).HasLabel("") {
		t.Error("HasLabel on entry without labels = true")
	}
}
