// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/scheduler"
	plztest "github.com/olegiv/plz-cms/internal/testutil"
)

type fakeSystem struct {
	sched     *scheduler.Scheduler
	events    []model.Event
	err       error
	lastLevel string
	lastLimit int
}

func (f *fakeSystem) Modules() []module.Info {
	return []module.Info{{Name: "admin", Initialized: true}, {Name: "author", Initialized: true}}
}

func (f *fakeSystem) Scheduler() *scheduler.Scheduler { return f.sched }

func (f *fakeSystem) Events(_ context.Context, level string, limit int) ([]model.Event, error) {
	f.lastLevel, f.lastLimit = level, limit
	return f.events, f.err
}

func newSystemServer(t *testing.T) (*fakeSystem, http.Handler, *int) {
	t.Helper()
	logger := plztest.TestLoggerSilent()

	runs := 0
	sched := scheduler.New(logger, time.Second)
	require.NoError(t, sched.Register("admin", "purge-links", "", "@every 15m", func(context.Context) error {
		runs++
		return nil
	}))
	require.NoError(t, sched.Register("admin", "broken", "", "@daily", func(context.Context) error {
		return errors.New("boom")
	}))

	sys := &fakeSystem{sched: sched}
	r := chi.NewRouter()
	r.Route("/system", NewSystemHandler(sys, logger).Routes)
	return sys, r, &runs
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestSystemModulesAndJobs(t *testing.T) {
	_, h, _ := newSystemServer(t)

	w := serve(h, http.MethodGet, "/system/modules")
	require.Equal(t, http.StatusOK, w.Code)
	var modules struct {
		Data []module.Info `json:"data"`
		Meta struct{ Count int }
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &modules))
	assert.Len(t, modules.Data, 2)
	assert.Equal(t, 2, modules.Meta.Count)

	w = serve(h, http.MethodGet, "/system/jobs")
	require.Equal(t, http.StatusOK, w.Code)
	var jobs struct {
		Data []scheduler.JobInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs.Data, 2)
	assert.Equal(t, "broken", jobs.Data[0].Name)
	assert.Equal(t, "purge-links", jobs.Data[1].Name)
}

func TestSystemTriggerJob(t *testing.T) {
	_, h, runs := newSystemServer(t)

	w := serve(h, http.MethodPost, "/system/jobs/admin/purge-links")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *runs)

	w = serve(h, http.MethodPost, "/system/jobs/admin/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(h, http.MethodPost, "/system/jobs/admin/broken")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSystemEvents(t *testing.T) {
	sys, h, _ := newSystemServer(t)
	sys.events = []model.Event{{Level: model.EventLevelWarning, Category: model.EventCategoryCache, Message: "cache unreachable"}}

	w := serve(h, http.MethodGet, "/system/events?level=warning")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.EventLevelWarning, sys.lastLevel)
	assert.Equal(t, defaultEventLimit, sys.lastLimit)

	var resp struct {
		Data []model.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "cache unreachable", resp.Data[0].Message)

	serve(h, http.MethodGet, "/system/events?limit=5")
	assert.Equal(t, 5, sys.lastLimit)
	assert.Empty(t, sys.lastLevel)

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/system/events?level=debug").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/system/events?limit=-1").Code)

	sys.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/system/events").Code)
}
