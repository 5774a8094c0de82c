// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/plz-cms/internal/handler/api"
	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/scheduler"
)

// defaultEventLimit applies when GET /system/events has no limit.
const defaultEventLimit = 50

// System is what the system endpoints read. The hub implements it.
type System interface {
	Modules() []module.Info
	Scheduler() *scheduler.Scheduler
	Events(ctx context.Context, level string, limit int) ([]model.Event, error)
}

// SystemHandler serves module, job and event listings.
type SystemHandler struct {
	system System
	logger *slog.Logger
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(system System, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{system: system, logger: logger}
}

// Routes mounts the system endpoints on r.
func (h *SystemHandler) Routes(r chi.Router) {
	r.Get("/modules", h.Modules)
	r.Get("/jobs", h.Jobs)
	r.Post("/jobs/{source}/{name}", h.TriggerJob)
	r.Get("/events", h.Events)
}

// Modules handles GET /system/modules
func (h *SystemHandler) Modules(w http.ResponseWriter, _ *http.Request) {
	infos := h.system.Modules()
	api.WriteSuccess(w, infos, &api.Meta{Count: len(infos)})
}

// Jobs handles GET /system/jobs
func (h *SystemHandler) Jobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.system.Scheduler().Jobs()
	api.WriteSuccess(w, jobs, &api.Meta{Count: len(jobs)})
}

// TriggerJob handles POST /system/jobs/{source}/{name}
func (h *SystemHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")

	err := h.system.Scheduler().Trigger(source, name)
	if errors.Is(err, scheduler.ErrUnknownJob) {
		api.WriteNotFound(w, err.Error())
		return
	}
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	h.logger.Info("job triggered", "source", source, "name", name)
	api.WriteSuccess(w, map[string]string{"source": source, "name": name}, nil)
}

// Events handles GET /system/events?level=&limit=
func (h *SystemHandler) Events(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	switch level {
	case "", model.EventLevelInfo, model.EventLevelWarning, model.EventLevelError:
	default:
		api.WriteBadRequest(w, "level must be info, warning or error")
		return
	}

	limit, err := api.QueryInt(r, "limit")
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	if limit == 0 {
		limit = defaultEventLimit
	}

	events, err := h.system.Events(r.Context(), level, limit)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, events, &api.Meta{Count: len(events), Limit: limit})
}
