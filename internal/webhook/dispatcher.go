// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/metrics"
	"github.com/olegiv/plz-cms/internal/module"
)

// Target is a configured webhook endpoint.
type Target struct {
	Name    string
	URL     string
	Secret  string
	Events  map[string]bool
	Headers map[string]string
}

// Subscribed reports whether t receives events of the given type.
func (t *Target) Subscribed(eventType string) bool {
	return t.Events[EventAll] || t.Events[eventType]
}

// Config holds dispatcher configuration.
type Config struct {
	Workers        int           // Number of concurrent delivery workers
	QueueSize      int           // Deliveries buffered before new ones are dropped
	MaxAttempts    int           // Attempts per delivery, including the first
	InitialBackoff time.Duration // Wait before the second attempt, doubled after each failure
	MaxBackoff     time.Duration
	Client         *http.Client
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		QueueSize:      100,
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     time.Minute,
		Client:         httpClient,
	}
}

// delivery is one event queued for one target.
type delivery struct {
	target  *Target
	eventID string
	event   string
	payload []byte
}

// Dispatcher fans module events out to webhook targets through a worker pool.
type Dispatcher struct {
	targets []*Target
	cfg     Config
	metrics *metrics.Collector
	logger  *slog.Logger

	queue   chan *delivery
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// New builds a dispatcher for the configured webhooks. Unknown event names are an error.
func New(webhooks []config.WebhookConfig, cfg Config, m *metrics.Collector, logger *slog.Logger) (*Dispatcher, error) {
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.Client == nil {
		cfg.Client = defaults.Client
	}
	if logger == nil {
		logger = slog.Default()
	}

	known := module.KnownHooks()
	targets := make([]*Target, 0, len(webhooks))
	for _, wh := range webhooks {
		t := &Target{
			Name:    wh.Name,
			URL:     wh.URL,
			Secret:  wh.Secret,
			Events:  make(map[string]bool, len(wh.Events)),
			Headers: wh.Headers,
		}
		for _, e := range wh.Events {
			if e != EventAll && !slices.Contains(known, e) {
				return nil, fmt.Errorf("webhook %q: unknown event %q", wh.Name, e)
			}
			t.Events[e] = true
		}
		targets = append(targets, t)
	}

	return &Dispatcher{
		targets: targets,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		queue:   make(chan *delivery, cfg.QueueSize),
		done:    make(chan struct{}),
	}, nil
}

// Targets returns the configured endpoints.
func (d *Dispatcher) Targets() []*Target {
	return d.targets
}

// Subscribe registers the dispatcher on every hook some target listens to.
func (d *Dispatcher) Subscribe(hooks *module.HookRegistry) {
	for _, hook := range module.KnownHooks() {
		for _, t := range d.targets {
			if t.Subscribed(hook) {
				hooks.RegisterFunc(hook, "webhook", "webhook", d.handle)
				break
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, e module.Event) error {
	return d.Dispatch(ctx, NewEvent(e))
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.cfg.Workers, "targets", len(d.targets))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the workers and waits for in-flight deliveries. Queued
// deliveries that no worker picked up are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	if n := len(d.queue); n > 0 {
		d.logger.Warn("webhook deliveries dropped at shutdown", "count", n)
	}
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case dl := <-d.queue:
			d.process(ctx, dl)
		}
	}
}

// Dispatch queues event for every subscribed target. It never blocks: when
// the queue is full the delivery is dropped and logged.
func (d *Dispatcher) Dispatch(_ context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		d.logger.Warn("dispatcher not running, cannot dispatch event", "event_type", event.Type)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling webhook event: %w", err)
	}

	for _, t := range d.targets {
		if !t.Subscribed(event.Type) {
			continue
		}
		dl := &delivery{target: t, eventID: event.ID, event: event.Type, payload: payload}
		select {
		case d.queue <- dl:
			d.logger.Debug("webhook delivery queued", "webhook", t.Name, "event", event.Type)
		default:
			d.count(t, "dropped")
			d.logger.Warn("webhook queue full, delivery dropped", "webhook", t.Name, "event", event.Type)
		}
	}
	return nil
}

// process attempts a delivery until it succeeds, fails permanently or runs
// out of attempts.
func (d *Dispatcher) process(ctx context.Context, dl *delivery) {
	for attempt := 1; ; attempt++ {
		result := d.attemptDelivery(ctx, dl)
		if result.Success {
			d.count(dl.target, "delivered")
			d.logger.Info("webhook delivered",
				"webhook", dl.target.Name,
				"event", dl.event,
				"status_code", result.StatusCode,
				"attempt", attempt)
			return
		}

		if !result.ShouldRetry || attempt >= d.cfg.MaxAttempts {
			d.count(dl.target, "failed")
			d.logger.Warn("webhook delivery failed",
				"webhook", dl.target.Name,
				"event", dl.event,
				"attempts", attempt,
				"error", result.Error)
			return
		}

		d.count(dl.target, "retry")
		backoff := calculateBackoff(attempt, d.cfg.InitialBackoff, d.cfg.MaxBackoff)
		d.logger.Debug("webhook delivery scheduled for retry",
			"webhook", dl.target.Name,
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", result.Error)

		select {
		case <-time.After(backoff):
		case <-d.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) count(t *Target, result string) {
	if d.metrics != nil {
		d.metrics.WebhookDeliveries.WithLabelValues(t.Name, result).Inc()
	}
}
