// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package author

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/plz-cms/internal/handler/api"
	"github.com/olegiv/plz-cms/internal/validate"
)

// Handler serves the JSON API of one collection.
type Handler struct {
	c      *Collection
	logger *slog.Logger
}

// NewHandler creates a Handler for c.
func NewHandler(c *Collection, logger *slog.Logger) *Handler {
	return &Handler{c: c, logger: logger}
}

// Routes mounts the collection endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Put("/edit", h.Edit)
	r.Post("/publish", h.Publish)
	r.Delete("/", h.Remove)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/html", h.HTML)
}

// editBody uses pointers so that absent fields can be told from empty ones.
type editBody struct {
	UserName *string `json:"userName"`
	ID       string  `json:"_id"`
	Title    string  `json:"title"`
	Content  *string `json:"content"`
}

type targetBody struct {
	UserName string `json:"userName"`
	ID       string `json:"_id"`
	Title    string `json:"title"`
}

// Create handles POST /
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := api.DecodeJSON(r, &fields); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	res, err := h.c.Create(r.Context(), fields)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteCreated(w, res)
}

// List handles GET /?label=&slug=&title=&limit=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := api.QueryInt(r, "limit")
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	docs, err := h.c.Get(r.Context(), Query{
		Label: q.Get("label"),
		Slug:  q.Get("slug"),
		Title: q.Get("title"),
		Limit: limit,
	})
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, docs, &api.Meta{Count: len(docs), Limit: limit})
}

// Get handles GET /{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	docs, err := h.c.Get(r.Context(), Query{ID: chi.URLParam(r, "id"), Limit: 1})
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, docs[0], nil)
}

// Edit handles PUT /edit
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var body editBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	if body.UserName == nil {
		api.WriteErr(w, h.logger, &validate.FieldError{Field: fieldUserName, Kind: validate.KindString, Err: validate.ErrRequired})
		return
	}
	if body.Content == nil {
		api.WriteErr(w, h.logger, &validate.FieldError{Field: fieldContent, Kind: validate.KindString, Err: validate.ErrRequired})
		return
	}

	res, err := h.c.Edit(r.Context(), EditRequest{
		UserName: *body.UserName,
		ID:       body.ID,
		Title:    body.Title,
		Content:  *body.Content,
	})
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, res, nil)
}

// Publish handles POST /publish
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var body targetBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	res, err := h.c.Publish(r.Context(), PublishRequest(body))
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, res, nil)
}

// Remove handles DELETE /
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	var body targetBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	res, err := h.c.Remove(r.Context(), RemoveRequest(body))
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, res, nil)
}

// HTML handles GET /{id}/html
func (h *Handler) HTML(w http.ResponseWriter, r *http.Request) {
	out, err := h.c.Render(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, out)
}
