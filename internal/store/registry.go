// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"errors"
	"sort"
	"sync"
)

// DefaultName is the connection used when a name is not registered.
const DefaultName = "default"

// Registry holds named database connections.
type Registry struct {
	mu  sync.RWMutex
	dbs map[string]*DB
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{dbs: make(map[string]*DB)}
}

// Add registers db under name, replacing any previous connection with that name.
func (r *Registry) Add(name string, db *DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbs[name] = db
}

// Get returns the connection registered under name, falling back to the default
// connection for unknown or empty names. It returns nil only if neither exists.
func (r *Registry) Get(name string) *DB {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if db, ok := r.dbs[name]; ok && name != "" {
		return db
	}
	return r.dbs[DefaultName]
}

// Has reports whether a connection is registered under exactly name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.dbs[name]
	return ok
}

// Names returns the registered connection names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.dbs))
	for name := range r.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every registered connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, db := range r.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.dbs, name)
	}
	return errors.Join(errs...)
}
