// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"strings"
	"testing"
)

func TestRobotsBuilderBuildDefault(t *testing.T) {
	content := NewRobotsBuilder(RobotsConfig{SiteURL: "https://example.com/"}).Build()

	if !strings.HasPrefix(content, "User-agent: *\n") {
		t.Error("Build() should start with 'User-agent: *'")
	}
	for _, path := range DefaultDisallowPaths {
		if !strings.Contains(content, "Disallow: "+path+"\n") {
			t.Errorf("Build() should disallow %q", path)
		}
	}
	if !strings.Contains(content, "Allow: /\n") {
		t.Error("Build() should contain 'Allow: /'")
	}
	if !strings.Contains(content, "Sitemap: https://example.com/sitemap.xml") {
		t.Error("Build() should contain sitemap reference")
	}
}

func TestRobotsBuilderBuildDisallowAll(t *testing.T) {
	content := NewRobotsBuilder(RobotsConfig{
		SiteURL:     "https://staging.example.com",
		DisallowAll: true,
	}).Build()

	want := "User-agent: *\nDisallow: /\n"
	if content != want {
		t.Errorf("Build() = %q, want %q", content, want)
	}
}

func TestRobotsBuilderCustomPaths(t *testing.T) {
	content := NewRobotsBuilder(RobotsConfig{DisallowPaths: []string{"/drafts", "/private"}}).Build()

	for _, path := range []string{"/drafts", "/private", "/admin"} {
		if !strings.Contains(content, "Disallow: "+path+"\n") {
			t.Errorf("Build() should disallow %q", path)
		}
	}
	if strings.Contains(content, "Sitemap:") {
		t.Error("Build() without SiteURL should not reference a sitemap")
	}
}

func TestRobotsBuilderDefaultsUnchanged(t *testing.T) {
	before := len(DefaultDisallowPaths)
	NewRobotsBuilder(RobotsConfig{DisallowPaths: []string{"/x"}}).Build()
	if len(DefaultDisallowPaths) != before {
		t.Error("Build() must not modify DefaultDisallowPaths")
	}
}
