// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Hook names fired by the feature modules.
const (
	HookEntryAfterCreate  = "entry.after_create"
	HookEntryAfterEdit    = "entry.after_edit"
	HookEntryAfterPublish = "entry.after_publish"
	HookEntryAfterRemove  = "entry.after_remove"

	HookUserAfterCreate   = "user.after_create"
	HookUserAfterRemove   = "user.after_remove"
	HookUserAfterLogin    = "user.after_login"
	HookUserAfterLink     = "user.after_link"
	HookUserAfterComplete = "user.after_complete"
)

// KnownHooks lists every hook fired by the feature modules.
func KnownHooks() []string {
	return []string{
		HookEntryAfterCreate,
		HookEntryAfterEdit,
		HookEntryAfterPublish,
		HookEntryAfterRemove,
		HookUserAfterCreate,
		HookUserAfterRemove,
		HookUserAfterLogin,
		HookUserAfterLink,
		HookUserAfterComplete,
	}
}

// Event is passed to hook handlers. Subject is the entry title or user email.
type Event struct {
	Hook       string
	Collection string
	ID         string
	Subject    string
	Actor      string
	Data       map[string]string
}

// HookFunc handles a fired hook.
type HookFunc func(ctx context.Context, e Event) error

// HookHandler wraps a HookFunc with metadata.
type HookHandler struct {
	Name     string   // Name of the handler for debugging
	Module   string   // Module that registered the handler
	Priority int      // Lower priority runs first (default: 0)
	Fn       HookFunc // The actual handler function
}

// HookRegistry manages hook registration and execution.
type HookRegistry struct {
	hooks  map[string][]HookHandler
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewHookRegistry creates a new hook registry.
func NewHookRegistry(logger *slog.Logger) *HookRegistry {
	return &HookRegistry{
		hooks:  make(map[string][]HookHandler),
		logger: logger,
	}
}

// Register adds a hook handler for the given hook name.
// Handlers with equal priority run in registration order.
func (h *HookRegistry) Register(hookName string, handler HookHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	handlers := append(h.hooks[hookName], handler)
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Priority < handlers[j].Priority
	})
	h.hooks[hookName] = handlers

	h.logger.Debug("hook registered",
		"hook", hookName,
		"handler", handler.Name,
		"module", handler.Module,
		"priority", handler.Priority,
	)
}

// RegisterFunc registers fn with default priority.
func (h *HookRegistry) RegisterFunc(hookName, handlerName, moduleName string, fn HookFunc) {
	h.Register(hookName, HookHandler{
		Name:   handlerName,
		Module: moduleName,
		Fn:     fn,
	})
}

// Call runs the handlers for e.Hook in priority order.
// The first handler error stops the chain and is returned.
func (h *HookRegistry) Call(ctx context.Context, e Event) error {
	h.mu.RLock()
	handlers := h.hooks[e.Hook]
	h.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Fn(ctx, e); err != nil {
			return fmt.Errorf("hook %s handler %s: %w", e.Hook, handler.Name, err)
		}
	}
	return nil
}

// Fire is Call for notifications fired after a change is stored.
// Errors are logged, never returned.
func (h *HookRegistry) Fire(ctx context.Context, e Event) {
	if h == nil {
		return
	}
	if err := h.Call(ctx, e); err != nil {
		h.logger.Error("hook handler error", "hook", e.Hook, "error", err)
	}
}

// HasHandlers returns true if there are handlers registered for the hook.
func (h *HookRegistry) HasHandlers(hookName string) bool {
	return h.HandlerCount(hookName) > 0
}

// HandlerCount returns the number of handlers registered for a hook.
func (h *HookRegistry) HandlerCount(hookName string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.hooks[hookName])
}

// ListHooks returns all hook names with handlers, sorted.
func (h *HookRegistry) ListHooks() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.hooks))
	for name, handlers := range h.hooks {
		if len(handlers) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// UnregisterAll removes all handlers registered by a module.
func (h *HookRegistry) UnregisterAll(moduleName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for hookName, handlers := range h.hooks {
		kept := handlers[:0:0]
		for _, handler := range handlers {
			if handler.Module != moduleName {
				kept = append(kept, handler)
			}
		}
		h.hooks[hookName] = kept
	}

	h.logger.Debug("all hooks unregistered for module", "module", moduleName)
}
