// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics provides Prometheus metrics for plz-cms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plz"

// Collector holds all Prometheus metrics for plz-cms.
type Collector struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Document store
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Mail
	MailsSent *prometheus.CounterVec

	// Accounts
	LoginAttempts *prometheus.CounterVec
	LoginLimited  prometheus.Counter
	LinksPurged   prometheus.Counter

	// Entries
	Revisions   *prometheus.CounterVec
	LabelLookup *prometheus.CounterVec

	// Webhooks
	WebhookDeliveries *prometheus.CounterVec
}

// New creates a collector backed by its own registry, with Go runtime and
// process collectors included.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newCollector(reg)
}

func newCollector(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		StoreOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Document store operations by collection and result",
			},
			[]string{"op", "collection", "result"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Document store operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),

		MailsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mails_sent_total",
				Help:      "Mails handed to a transport by mailer and result",
			},
			[]string{"mailer", "result"},
		),

		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		LoginLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_rate_limited_total",
				Help:      "Login requests rejected by the rate limiter",
			},
		),
		LinksPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_links_purged_total",
				Help:      "Expired activation and reset links cleared",
			},
		),

		Revisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entry_revisions_total",
				Help:      "Entry revisions written by collection",
			},
			[]string{"collection"},
		),
		LabelLookup: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "label_lookups_total",
				Help:      "Label lookups by collection and cache result",
			},
			[]string{"collection", "cache"},
		),

		WebhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Webhook delivery attempts by target and result",
			},
			[]string{"webhook", "result"},
		),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
