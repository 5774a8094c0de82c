// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mailer wraps named mail transports behind a single send operation.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/store"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("message has no recipient")

// Message is an outgoing email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends a single message.
type Mailer interface {
	SendMail(ctx context.Context, msg Message) error
}

// Registry holds named transports.
type Registry struct {
	mu      sync.RWMutex
	mailers map[string]Mailer
}

// NewRegistry creates an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{mailers: make(map[string]Mailer)}
}

// New builds a transport for every configured mailer. An empty service
// selects a LogTransport.
func New(cfgs map[string]config.MailerConfig, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry()
	for name, cfg := range cfgs {
		if strings.TrimSpace(cfg.Service) == "" && cfg.Host == "" {
			r.Add(name, NewLogTransport(cfg.Address, logger.With("mailer", name)))
			continue
		}
		t, err := NewSMTPTransport(cfg)
		if err != nil {
			return nil, fmt.Errorf("mailer %s: %w", name, err)
		}
		r.Add(name, t)
	}
	return r, nil
}

// Add registers m under name.
func (r *Registry) Add(name string, m Mailer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailers[name] = m
}

// Get returns the transport registered under name, or the default transport.
func (r *Registry) Get(name string) Mailer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.mailers[name]; ok && name != "" {
		return m
	}
	return r.mailers[store.DefaultName]
}

// Names returns the registered transport names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.mailers))
	for name := range r.mailers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
