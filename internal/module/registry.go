// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Registry manages module registration and lifecycle.
type Registry struct {
	modules     map[string]Module
	order       []string // initialization order
	initialized []string
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewRegistry creates a new module registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		modules: make(map[string]Module),
		logger:  logger,
	}
}

// Register adds a module to the registry.
// Modules are initialized in the order they are added.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("module %q already registered", name)
	}

	r.modules[name] = m
	r.order = append(r.order, name)
	r.logger.Info("module registered", "name", name)

	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[name]
	return m, ok
}

// List returns all registered modules in registration order.
func (r *Registry) List() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]Module, 0, len(r.order))
	for _, name := range r.order {
		modules = append(modules, r.modules[name])
	}
	return modules
}

// InitAll verifies dependencies, then initializes modules in registration order.
// A failing module stops initialization; modules already initialized stay
// initialized so that ShutdownAll can release them.
func (r *Registry) InitAll(ctx *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkDependencies(); err != nil {
		return err
	}

	for _, name := range r.order {
		r.logger.Info("initializing module", "name", name)
		if err := r.modules[name].Init(ctx); err != nil {
			return fmt.Errorf("initializing module %q: %w", name, err)
		}
		r.initialized = append(r.initialized, name)
	}

	return nil
}

// checkDependencies verifies that every dependency is registered before its dependent.
func (r *Registry) checkDependencies() error {
	position := make(map[string]int, len(r.order))
	for i, name := range r.order {
		position[name] = i
	}
	for i, name := range r.order {
		for _, dep := range r.modules[name].Dependencies() {
			p, ok := position[dep]
			if !ok {
				return fmt.Errorf("module %q depends on %q which is not registered", name, dep)
			}
			if p > i {
				return fmt.Errorf("module %q depends on %q which is registered after it", name, dep)
			}
		}
	}
	return nil
}

// ShutdownAll shuts down initialized modules in reverse order.
func (r *Registry) ShutdownAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := len(r.initialized) - 1; i >= 0; i-- {
		name := r.initialized[i]
		r.logger.Info("shutting down module", "name", name)

		if err := r.modules[name].Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutting down module %q: %w", name, err))
			r.logger.Error("module shutdown error", "name", name, "error", err)
		}
	}
	r.initialized = nil

	return errors.Join(errs...)
}

// RouteAll mounts the routes of every module, each in its own group.
func (r *Registry) RouteAll(router chi.Router) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		m := r.modules[name]
		router.Group(func(sub chi.Router) {
			m.RegisterRoutes(sub)
		})
	}
}

// Info describes a registered module.
type Info struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
	Initialized  bool     `json:"initialized"`
}

// ListInfo returns information about all registered modules.
func (r *Registry) ListInfo() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	done := make(map[string]bool, len(r.initialized))
	for _, name := range r.initialized {
		done[name] = true
	}

	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		m := r.modules[name]
		infos = append(infos, Info{
			Name:         name,
			Description:  m.Description(),
			Dependencies: m.Dependencies(),
			Initialized:  done[name],
		})
	}
	return infos
}

// Count returns the number of registered modules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
