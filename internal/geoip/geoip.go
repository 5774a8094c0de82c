// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves client addresses to countries using a MaxMind
// GeoLite2-Country database.
package geoip

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

// Local is reported for private and loopback addresses.
const Local = "LOCAL"

var privateCIDRs []*net.IPNet

func init() {
	for _, block := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",  // IPv6 unique local
		"fe80::/10", // IPv6 link-local
	} {
		if _, cidr, err := net.ParseCIDR(block); err == nil {
			privateCIDRs = append(privateCIDRs, cidr)
		}
	}
}

// Lookup answers country queries. A Lookup without a database only
// recognises local addresses; a nil Lookup answers nothing.
type Lookup struct {
	mu      sync.RWMutex
	db      *maxminddb.Reader
	path    string
	modTime time.Time
}

type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open loads the database at path. An empty path gives a Lookup without a
// database. When the file cannot be loaded the Lookup is still returned,
// without a database, together with the error.
func Open(path string) (*Lookup, error) {
	g := &Lookup{path: path}
	if path == "" {
		return g, nil
	}
	return g, g.load()
}

// load opens the database unless the file is unchanged. Caller holds mu.
func (g *Lookup) load() error {
	info, err := os.Stat(g.path)
	if err != nil {
		return fmt.Errorf("geoip database: %w", err)
	}
	if g.db != nil && info.ModTime().Equal(g.modTime) {
		return nil
	}

	db, err := maxminddb.Open(g.path)
	if err != nil {
		return fmt.Errorf("opening geoip database: %w", err)
	}
	if g.db != nil {
		_ = g.db.Close()
	}
	g.db = db
	g.modTime = info.ModTime()
	return nil
}

// Reload reopens the database when the file has changed on disk.
func (g *Lookup) Reload() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.path == "" {
		return nil
	}
	return g.load()
}

// Enabled reports whether a database is loaded.
func (g *Lookup) Enabled() bool {
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.db != nil
}

// Country returns the ISO code for ip, Local for private and loopback
// addresses, and "" when it cannot tell.
func (g *Lookup) Country(ip string) string {
	if g == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || isPrivate(parsed) {
		return Local
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.db == nil {
		return ""
	}

	var record geoRecord
	if err := g.db.Lookup(parsed, &record); err != nil {
		return ""
	}
	return record.Country.ISOCode
}

// Close releases the database.
func (g *Lookup) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return err
}

func isPrivate(ip net.IP) bool {
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
