// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the process-level HTTP handlers of plz-cms:
// health probes and the system endpoints over modules, jobs and events.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/olegiv/plz-cms/internal/handler/api"
	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/version"
)

// pingTimeout bounds a single database ping.
const pingTimeout = 2 * time.Second

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	databases *store.Registry
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(databases *store.Registry) *HealthHandler {
	return &HealthHandler{
		databases: databases,
		startTime: time.Now(),
	}
}

// StartTime returns when the handler (and application) was started.
func (h *HealthHandler) StartTime() time.Time {
	return h.startTime
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   version.Info     `json:"version"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// Health handles GET /health. Every named database is pinged; a failing
// default database makes the service unhealthy, any other failure degraded.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := h.checkDatabases(r.Context())

	overall := StatusHealthy
	for name, c := range checks {
		if c.Status == StatusHealthy {
			continue
		}
		if name == "database."+store.DefaultName {
			overall = StatusUnhealthy
			break
		}
		overall = StatusDegraded
	}

	status := HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   version.Get(),
		Checks:    checks,
	}
	if r.URL.Query().Get("verbose") == "true" {
		status.System = getSystemInfo()
	}

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	api.WriteJSON(w, code, status)
}

// Liveness handles GET /health/live - simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready - checks if the default database accepts queries.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	c := checkDatabase(r.Context(), h.databases.Get(store.DefaultName))
	if c.Status == StatusHealthy {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":  "not_ready",
		"message": c.Message,
	})
}

func (h *HealthHandler) checkDatabases(ctx context.Context) map[string]Check {
	checks := make(map[string]Check)
	for _, name := range h.databases.Names() {
		checks["database."+name] = checkDatabase(ctx, h.databases.Get(name))
	}
	return checks
}

// checkDatabase verifies database connectivity.
func checkDatabase(ctx context.Context, db *store.DB) Check {
	if db == nil {
		return Check{Status: StatusUnhealthy, Message: "Not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := db.SQL().PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  StatusUnhealthy,
			Message: err.Error(),
			Latency: latency.String(),
		}
	}

	return Check{
		Status:  StatusHealthy,
		Message: "Connected (" + string(db.Dialect()) + ")",
		Latency: latency.String(),
	}
}

// getSystemInfo returns system-level metrics.
func getSystemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     formatBytes(m.Alloc),
		MemSys:       formatBytes(m.Sys),
	}
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
