// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple title", "Hello World", "hello-world"},
		{"special characters", "Hello, World!", "hello-world"},
		{"numbers", "Page 123", "page-123"},
		{"accents", "Café résumé", "cafe-resume"},
		{"cyrillic", "Привет мир", "privet-mir"},
		{"multiple spaces", "Hello   World", "hello-world"},
		{"hyphens", "Hello - World", "hello-world"},
		{"underscores and slashes", "release_notes/v2.1", "release-notes-v2-1"},
		{"leading and trailing symbols", "  --Plz!--  ", "plz"},
		{"only symbols", "!!!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlugifyTruncates(t *testing.T) {
	title := strings.Repeat("word ", 40)
	got := Slugify(title)

	if len(got) > MaxSlugLength {
		t.Errorf("len(Slugify) = %d, want <= %d", len(got), MaxSlugLength)
	}
	if strings.HasSuffix(got, "-") || strings.HasSuffix(got, "wor") {
		t.Errorf("Slugify cut mid-word: %q", got)
	}
	if !IsValidSlug(got) {
		t.Errorf("truncated slug %q is not valid", got)
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"hello-world", true},
		{"page-123", true},
		{"a", true},
		{"", false},
		{"Hello", false},
		{"-hello", false},
		{"hello-", false},
		{"hello--world", false},
		{"hello world", false},
		{strings.Repeat("a", MaxSlugLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			if got := IsValidSlug(tt.slug); got != tt.want {
				t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
			}
		})
	}
}
