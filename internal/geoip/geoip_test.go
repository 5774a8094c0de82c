// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package geoip

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCountryWithoutDatabase(t *testing.T) {
	g, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error = %v", err)
	}
	defer func() { _ = g.Close() }()

	if g.Enabled() {
		t.Error("Enabled() = true without a database")
	}

	tests := []struct {
		ip   string
		want string
	}{
		{"127.0.0.1", Local},
		{"::1", Local},
		{"10.1.2.3", Local},
		{"172.20.0.5", Local},
		{"192.168.1.1", Local},
		{"fd00::1", Local},
		{"8.8.8.8", ""},
		{"not-an-ip", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := g.Country(tt.ip); got != tt.want {
				t.Errorf("Country(%q) = %q, want %q", tt.ip, got, tt.want)
			}
		})
	}

	if err := g.Reload(); err != nil {
		t.Errorf("Reload() without path error = %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	g, err := Open(filepath.Join(t.TempDir(), "GeoLite2-Country.mmdb"))
	if err == nil {
		t.Fatal("Open(missing) error = nil")
	}
	if g == nil || g.Enabled() {
		t.Fatal("Open(missing) should return a lookup without a database")
	}
	if got := g.Country("192.168.0.1"); got != Local {
		t.Errorf("Country(private) = %q, want %q", got, Local)
	}
}

func TestOpenInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mmdb")
	if err := os.WriteFile(path, []byte("not a maxmind database"), 0o600); err != nil {
		t.Fatal(err)
	}

	g, err := Open(path)
	if err == nil {
		t.Fatal("Open(invalid) error = nil")
	}
	if g.Enabled() {
		t.Error("Enabled() = true after a failed open")
	}
}

func TestNilLookup(t *testing.T) {
	var g *Lookup
	if g.Enabled() {
		t.Error("nil Enabled() = true")
	}
	if got := g.Country("127.0.0.1"); got != "" {
		t.Errorf("nil Country() = %q, want empty", got)
	}
	if err := g.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
