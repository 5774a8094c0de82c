// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/olegiv/plz-cms/internal/auth"
	"github.com/olegiv/plz-cms/internal/mailer"
	"github.com/olegiv/plz-cms/internal/metrics"
	"github.com/olegiv/plz-cms/internal/middleware"
	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/validate"
)

var (
	// ErrPasswordMismatch is returned when a new password and its confirmation differ.
	ErrPasswordMismatch = fmt.Errorf("%w: password confirmation does not match", validate.ErrInvalid)
	// ErrUnknownAction is returned when a user's pending recovery status is not one CompleteAction handles.
	ErrUnknownAction = fmt.Errorf("%w: no pending action", validate.ErrInvalid)
)

// LinkRequest is a single-use link to persist and mail.
type LinkRequest struct {
	Email   string
	Status  string
	Token   string
	Subject string
	Body    string
}

// CompleteRequest finalizes a pending activation or reset.
// PasswordNew and PasswordConfirm are required for a reset only.
type CompleteRequest struct {
	Email           string
	Token           string
	PasswordNew     string
	PasswordConfirm string
}

// AccountOptions configures an AccountService.
type AccountOptions struct {
	DB         store.Database
	Collection string
	Mailer     mailer.Mailer
	BaseURL    string
	LinkTTL    time.Duration
	Roles      map[string]bool
	Hooks      *module.HookRegistry
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// AccountService implements login, recovery links and role checks.
type AccountService struct {
	db         store.Database
	collection string
	mailer     mailer.Mailer
	baseURL    string
	linkTTL    time.Duration
	roles      map[string]bool
	hooks      *module.HookRegistry
	metrics    *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time
	newToken   func() (string, error)
}

// NewAccountService creates an AccountService.
func NewAccountService(opts AccountOptions) *AccountService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.LinkTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AccountService{
		db:         opts.DB,
		collection: opts.Collection,
		mailer:     opts.Mailer,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		linkTTL:    ttl,
		roles:      opts.Roles,
		hooks:      opts.Hooks,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        time.Now,
		newToken:   auth.NewToken,
	}
}

func (s *AccountService) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

// Login returns the user whose email and password match, or nil when no
// user has that email or the password is wrong. Neither case is an error.
func (s *AccountService) Login(ctx context.Context, email, password string) (*model.User, error) {
	u, err := findUser(ctx, s.db, s.collection, UserQuery{Email: email})
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, ErrNoUser) {
		s.countLogin("unknown")
		return nil, nil
	}
	if err != nil {
		s.countLogin("error")
		return nil, err
	}

	ok, err := auth.CheckPassword(password, u.PasswordHash)
	if errors.Is(err, auth.ErrInvalidHash) {
		// Imported without secrets, or written by another tool
		s.countLogin("failure")
		s.logger.Warn("user has no usable password hash", "user_id", u.ID, "error", err)
		return nil, nil
	}
	if err != nil {
		s.countLogin("error")
		return nil, fmt.Errorf("checking password: %w", err)
	}
	if !ok {
		s.countLogin("failure")
		s.logger.Debug("invalid password attempt", "email", u.Email)
		return nil, nil
	}

	now := model.Timestamp(s.now())
	set := store.Document{fieldLastLogin: now}
	if auth.NeedsRehash(u.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			set[fieldPassword] = hash
			s.logger.Info("password re-hashed with updated parameters", "user_id", u.ID)
		}
	}
	if _, err := s.db.EditDocument(ctx, store.EditQuery{
		Collection: s.collection,
		Criteria:   store.Criteria{fieldID: u.ID},
		Set:        set,
	}); err != nil {
		// Don't block login on this error
		s.logger.Error("failed to update last login time", "error", err, "user_id", u.ID)
	} else {
		u.LastLogin = now
	}

	s.countLogin("success")
	e := module.Event{
		Hook:       module.HookUserAfterLogin,
		Collection: s.collection,
		ID:         u.ID,
		Subject:    u.Email,
	}
	if c, ok := middleware.ClientFrom(ctx); ok {
		e.Data = c.Fields()
	}
	s.hooks.Fire(ctx, e)
	pub := u.Public()
	return &pub, nil
}

// sendLink stores the hash of req.Token with req.Status and an expiry on the
// user, then mails the link. The first failing step ends the call.
func (s *AccountService) sendLink(ctx context.Context, req LinkRequest) (string, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return "", &validate.FieldError{Field: fieldEmail, Kind: validate.KindEmail, Err: validate.ErrRequired}
	}

	now := s.now()
	if _, err := s.db.EditDocument(ctx, store.EditQuery{
		Collection: s.collection,
		Criteria:   store.Criteria{fieldEmail: email},
		Set: store.Document{
			fieldRecoveryHash:      auth.HashToken(req.Token),
			fieldRecoveryStatus:    req.Status,
			fieldRecoveryExpiresAt: model.Timestamp(now.Add(s.linkTTL)),
			fieldModifiedAt:        model.Timestamp(now),
		},
	}); err != nil {
		return "", fmt.Errorf("storing %s link: %w", req.Status, err)
	}

	if err := s.mailer.SendMail(ctx, mailer.Message{
		To:       email,
		Subject:  req.Subject,
		TextBody: req.Body,
	}); err != nil {
		return "", fmt.Errorf("sending %s link: %w", req.Status, err)
	}

	s.hooks.Fire(ctx, module.Event{
		Hook:       module.HookUserAfterLink,
		Collection: s.collection,
		Subject:    email,
		Data:       map[string]string{"status": req.Status},
	})
	return fmt.Sprintf("%s link sent to %s", req.Status, email), nil
}

// SendActivation mails an account activation link to email.
func (s *AccountService) SendActivation(ctx context.Context, email string) (string, error) {
	return s.sendAction(ctx, email, model.RecoveryPendingActivation, "/activate",
		"Activate your account",
		"Open the link below to activate your account. It expires in %s.\n\n%s\n")
}

// SendReset mails a password reset link to email.
func (s *AccountService) SendReset(ctx context.Context, email string) (string, error) {
	return s.sendAction(ctx, email, model.RecoveryPendingReset, "/reset",
		"Reset your password",
		"Open the link below to choose a new password. It expires in %s.\n\n%s\n")
}

func (s *AccountService) sendAction(ctx context.Context, email, status, path, subject, body string) (string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("email", normalizeEmail(email))
	q.Set("token", token)
	link := s.baseURL + path + "?" + q.Encode()

	return s.sendLink(ctx, LinkRequest{
		Email:   email,
		Status:  status,
		Token:   token,
		Subject: subject,
		Body:    fmt.Sprintf(body, s.linkTTL, link),
	})
}

// pending returns the user holding an unexpired link for email and token.
// A missing or expired link yields nil and no error.
func (s *AccountService) pending(ctx context.Context, db store.Database, email, token string) (*model.User, error) {
	docs, err := db.GetDocument(ctx, store.GetQuery{
		Collection: s.collection,
		Criteria: store.Criteria{
			fieldEmail:          normalizeEmail(email),
			fieldRecoveryHash:   auth.HashToken(token),
			fieldRecoveryStatus: store.In{model.RecoveryPendingActivation, model.RecoveryPendingReset},
		},
		Limit: 1,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var u model.User
	if err := docs[0].Decode(&u); err != nil {
		return nil, err
	}
	if !model.TimeOf(u.RecoveryExpiresAt).After(s.now()) {
		return nil, nil
	}
	return &u, nil
}

// Authorize reports whether token is the pending, unexpired link of email.
func (s *AccountService) Authorize(ctx context.Context, email, token string) (bool, error) {
	if email == "" || token == "" {
		return false, nil
	}
	u, err := s.pending(ctx, s.db, email, token)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// CompleteAction finalizes the pending action of the link. Activation marks the
// account active; reset stores the new password. The link is consumed either
// way. The result reports whether a user document was modified.
func (s *AccountService) CompleteAction(ctx context.Context, req CompleteRequest) (bool, error) {
	if req.Email == "" {
		return false, &validate.FieldError{Field: fieldEmail, Kind: validate.KindEmail, Err: validate.ErrRequired}
	}
	if req.Token == "" {
		return false, &validate.FieldError{Field: "token", Kind: validate.KindString, Err: validate.ErrRequired}
	}

	var (
		res    store.EditResult
		action string
	)
	err := s.db.Transact(ctx, func(tx store.Database) error {
		u, err := s.pending(ctx, tx, req.Email, req.Token)
		if err != nil || u == nil {
			return err
		}
		action = u.RecoveryStatus

		set := store.Document{fieldModifiedAt: model.Timestamp(s.now())}
		switch action {
		case model.RecoveryPendingActivation:
			set[fieldStatus] = model.UserStatusActive
		case model.RecoveryPendingReset:
			if req.PasswordNew != req.PasswordConfirm {
				return ErrPasswordMismatch
			}
			if !validate.IsPassword(req.PasswordNew) {
				return &validate.FieldError{Field: "passwordNew", Kind: validate.KindPassword, Err: validate.ErrType}
			}
			hash, err := auth.HashPassword(req.PasswordNew)
			if err != nil {
				return err
			}
			set[fieldPassword] = hash
		default:
			return ErrUnknownAction
		}

		res, err = tx.EditDocument(ctx, store.EditQuery{
			Collection: s.collection,
			Criteria:   store.Criteria{fieldID: u.ID, fieldRecoveryStatus: action},
			Set:        set,
			Unset:      []string{fieldRecoveryHash, fieldRecoveryStatus, fieldRecoveryExpiresAt},
		})
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	if res.Modified == 0 {
		return false, nil
	}

	s.hooks.Fire(ctx, module.Event{
		Hook:       module.HookUserAfterComplete,
		Collection: s.collection,
		Subject:    normalizeEmail(req.Email),
		Data:       map[string]string{"action": action},
	})
	return true, nil
}

// allowedRoles is roles restricted to the configured role table.
func (s *AccountService) allowedRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if s.roles[r] {
			out = append(out, r)
		}
	}
	return out
}

// Allow grants access only to a user whose role is one of roles.
// Roles missing from the configured table never match.
func (s *AccountService) Allow(u *model.User, roles []string) bool {
	return u != nil && slices.Contains(s.allowedRoles(roles), u.Role)
}

// Restrict grants access unless the user's role is one of roles.
// Roles missing from the configured table never match. A nil user gets no access.
func (s *AccountService) Restrict(u *model.User, roles []string) bool {
	return u != nil && !s.Allow(u, roles)
}

// PurgeExpiredLinks clears recovery links that expired before now and
// returns how many users were updated.
func (s *AccountService) PurgeExpiredLinks(ctx context.Context) (int, error) {
	res, err := s.db.EditDocument(ctx, store.EditQuery{
		Collection: s.collection,
		Criteria:   store.Criteria{fieldRecoveryExpiresAt: store.Lt{Value: model.Timestamp(s.now())}},
		Unset:      []string{fieldRecoveryHash, fieldRecoveryStatus, fieldRecoveryExpiresAt},
		Multi:      true,
	})
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.LinksPurged.Add(float64(res.Modified))
	}
	if res.Modified > 0 {
		s.logger.Info("expired recovery links purged", "count", res.Modified)
	}
	return res.Modified, nil
}
