// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/plz-cms/internal/geoip"
	"github.com/olegiv/plz-cms/internal/handler/api"
	"github.com/olegiv/plz-cms/internal/middleware"
	"github.com/olegiv/plz-cms/internal/validate"
)

// Handler serves the admin JSON API.
type Handler struct {
	users      *UserService
	accounts   *AccountService
	protection *middleware.LoginProtection
	geoip      *geoip.Lookup
	logger     *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(users *UserService, accounts *AccountService, protection *middleware.LoginProtection, logger *slog.Logger) *Handler {
	return &Handler{users: users, accounts: accounts, protection: protection, logger: logger}
}

// Routes mounts the admin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.Put("/{id}", h.EditUser)
		r.Delete("/{id}", h.RemoveUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.protection.Middleware())
		r.Post("/login", h.Login)
		r.Post("/activation", h.SendActivation)
		r.Post("/reset", h.SendReset)
	})
	r.Post("/authorize", h.Authorize)
	r.Post("/complete", h.Complete)
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailBody struct {
	Email string `json:"email"`
}

type tokenBody struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	PasswordNew     string `json:"passwordNew"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type userEditBody struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Status   *string `json:"status"`
	Password *string `json:"password"`
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := api.DecodeJSON(r, &fields); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	res, err := h.users.Create(r.Context(), fields)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteCreated(w, res)
}

// ListUsers handles GET /users?email=&limit=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		u, err := h.users.Get(r.Context(), UserQuery{Email: email})
		if err != nil {
			api.WriteErr(w, h.logger, err)
			return
		}
		api.WriteSuccess(w, u, nil)
		return
	}

	limit, err := api.QueryInt(r, "limit")
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	users, err := h.users.List(r.Context(), limit)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, users, &api.Meta{Count: len(users), Limit: limit})
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), UserQuery{ID: chi.URLParam(r, "id")})
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, u, nil)
}

// EditUser handles PUT /users/{id}
func (h *Handler) EditUser(w http.ResponseWriter, r *http.Request) {
	var body userEditBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	res, err := h.users.Edit(r.Context(), UserQuery{ID: chi.URLParam(r, "id")}, UserChanges(body))
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, res, nil)
}

// RemoveUser handles DELETE /users/{id}
func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.users.Remove(r.Context(), UserQuery{ID: chi.URLParam(r, "id")})
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, res, nil)
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	if body.Email == "" || body.Password == "" {
		api.WriteErr(w, h.logger, fmt.Errorf("%w: email and password are required", validate.ErrInvalid))
		return
	}

	if locked, remaining := h.protection.IsAccountLocked(body.Email); locked {
		h.logger.Warn("login attempt on locked account", "email", body.Email, "ip", middleware.ClientIP(r))
		h.tooManyAttempts(w, remaining)
		return
	}

	client := middleware.ClientFromRequest(r)
	client.Country = h.geoip.Country(client.IP)
	ctx := middleware.WithClient(r.Context(), client)
	u, err := h.accounts.Login(ctx, body.Email, body.Password)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	if u == nil {
		// Unknown emails count too so that they cannot be told apart
		if locked, lockDuration := h.protection.RecordFailedAttempt(body.Email); locked {
			h.logger.Warn("account locked due to failed login attempts", "email", body.Email, "duration", lockDuration.String())
			h.tooManyAttempts(w, lockDuration)
			return
		}
		api.WriteUnauthorized(w, "Invalid credentials")
		return
	}

	h.protection.RecordSuccessfulLogin(body.Email)
	h.logger.Info("user logged in", "user_id", u.ID, "email", u.Email)
	api.WriteSuccess(w, u, nil)
}

func (h *Handler) tooManyAttempts(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds())))
	api.WriteError(w, http.StatusTooManyRequests, "account_locked", "Too many failed login attempts", nil)
}

// SendActivation handles POST /activation
func (h *Handler) SendActivation(w http.ResponseWriter, r *http.Request) {
	h.sendLink(w, r, h.accounts.SendActivation)
}

// SendReset handles POST /reset
func (h *Handler) SendReset(w http.ResponseWriter, r *http.Request) {
	h.sendLink(w, r, h.accounts.SendReset)
}

func (h *Handler) sendLink(w http.ResponseWriter, r *http.Request, send func(ctx context.Context, email string) (string, error)) {
	var body emailBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	msg, err := send(r.Context(), body.Email)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, map[string]string{"message": msg}, nil)
}

// Authorize handles POST /authorize
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	ok, err := h.accounts.Authorize(r.Context(), body.Email, body.Token)
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, map[string]bool{"authorized": ok}, nil)
}

// Complete handles POST /complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := api.DecodeJSON(r, &body); err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}

	ok, err := h.accounts.CompleteAction(r.Context(), CompleteRequest(body))
	if err != nil {
		api.WriteErr(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, map[string]bool{"completed": ok}, nil)
}
