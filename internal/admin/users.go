// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/plz-cms/internal/auth"
	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/validate"
)

var (
	// ErrNoUser is returned when a request names neither a user id nor an email.
	ErrNoUser = fmt.Errorf("%w: user id or email required", store.ErrNoCriteria)
	// ErrUnknownRole is returned for roles missing from the configured role table.
	ErrUnknownRole = fmt.Errorf("%w: role is not configured", validate.ErrInvalid)
	// ErrUnknownStatus is returned for account statuses other than created, pending and active.
	ErrUnknownStatus = fmt.Errorf("%w: unknown user status", validate.ErrInvalid)
)

// User document fields
const (
	fieldID                = store.IDField
	fieldName              = "name"
	fieldEmail             = "email"
	fieldPassword          = "password"
	fieldRole              = "role"
	fieldStatus            = "status"
	fieldCreatedAt         = "createdAt"
	fieldModifiedAt        = "modifiedAt"
	fieldLastLogin         = "lastLogin"
	fieldRecoveryHash      = "recoveryHash"
	fieldRecoveryStatus    = "recoveryStatus"
	fieldRecoveryExpiresAt = "recoveryExpiresAt"
)

// SecretFields lists the user fields holding credentials and pending recovery tokens.
func SecretFields() []string {
	return []string{fieldPassword, fieldRecoveryHash, fieldRecoveryStatus, fieldRecoveryExpiresAt}
}

// UserQuery selects a user by ID or, failing that, by Email.
type UserQuery struct {
	ID    string
	Email string
}

func (q UserQuery) criteria() (store.Criteria, error) {
	switch {
	case q.ID != "":
		return store.Criteria{fieldID: q.ID}, nil
	case q.Email != "":
		return store.Criteria{fieldEmail: normalizeEmail(q.Email)}, nil
	default:
		return nil, ErrNoUser
	}
}

// UserChanges lists the fields to update. Nil fields are left as they are.
type UserChanges struct {
	Name     *string
	Email    *string
	Role     *string
	Status   *string
	Password *string
}

// UserService manages user documents.
type UserService struct {
	db         store.Database
	collection string
	schema     validate.Schema
	roles      map[string]bool
	hooks      *module.HookRegistry
	logger     *slog.Logger
	now        func() time.Time
}

// NewUserService creates a UserService over collection.
func NewUserService(db store.Database, collection string, schema validate.Schema, roles map[string]bool, hooks *module.HookRegistry, logger *slog.Logger) *UserService {
	return &UserService{
		db:         db,
		collection: collection,
		schema:     schema,
		roles:      roles,
		hooks:      hooks,
		logger:     logger,
		now:        time.Now,
	}
}

// Create stamps and validates fields, then stores a new user with a hashed password.
// Emails are unique.
func (s *UserService) Create(ctx context.Context, fields map[string]any) (store.InsertResult, error) {
	doc := store.Document(fields).Clone()
	if doc == nil {
		doc = store.Document{}
	}
	delete(doc, fieldID)
	delete(doc, fieldRecoveryHash)
	delete(doc, fieldRecoveryStatus)
	delete(doc, fieldRecoveryExpiresAt)

	ts := model.Timestamp(s.now())
	doc[fieldCreatedAt] = ts
	doc[fieldModifiedAt] = ts
	doc[fieldLastLogin] = 0
	doc[fieldStatus] = model.UserStatusCreated
	if _, ok := doc[fieldRole]; !ok {
		doc[fieldRole] = model.RoleUser
	}

	if err := validate.Check(s.schema, doc); err != nil {
		return store.InsertResult{}, err
	}

	email, ok := doc[fieldEmail].(string)
	if !ok || !validate.IsEmail(email) {
		return store.InsertResult{}, &validate.FieldError{Field: fieldEmail, Kind: validate.KindEmail, Err: validate.ErrType}
	}
	email = normalizeEmail(email)
	doc[fieldEmail] = email

	password, ok := doc[fieldPassword].(string)
	if !ok || !validate.IsPassword(password) {
		return store.InsertResult{}, &validate.FieldError{Field: fieldPassword, Kind: validate.KindPassword, Err: validate.ErrType}
	}
	role, _ := doc[fieldRole].(string)
	if !s.roles[role] {
		return store.InsertResult{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.InsertResult{}, err
	}
	doc[fieldPassword] = hash

	res, err := s.db.CreateDocument(ctx, store.CreateQuery{
		Collection:   s.collection,
		Document:     doc,
		UniqueFields: store.Criteria{fieldEmail: email},
	})
	if err != nil {
		return store.InsertResult{}, err
	}

	s.hooks.Fire(ctx, module.Event{
		Hook:       module.HookUserAfterCreate,
		Collection: s.collection,
		ID:         res.InsertedID,
		Subject:    email,
	})
	s.logger.Info("user created", "id", res.InsertedID, "email", email, "role", role)
	return res, nil
}

// Get returns the user selected by q without credential material.
func (s *UserService) Get(ctx context.Context, q UserQuery) (*model.User, error) {
	u, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// List returns users, oldest first. A zero limit returns all of them.
func (s *UserService) List(ctx context.Context, limit int) ([]model.User, error) {
	docs, err := s.db.GetDocument(ctx, store.GetQuery{
		Collection: s.collection,
		Limit:      limit,
		Sort:       []store.SortKey{{Field: fieldCreatedAt}},
	})
	if errors.Is(err, store.ErrNotFound) {
		return []model.User{}, nil
	}
	if err != nil {
		return nil, err
	}
	users, err := store.DecodeAll[model.User](docs)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

// find returns the stored user, credentials included.
func (s *UserService) find(ctx context.Context, q UserQuery) (*model.User, error) {
	return findUser(ctx, s.db, s.collection, q)
}

func findUser(ctx context.Context, db store.Database, collection string, q UserQuery) (*model.User, error) {
	criteria, err := q.criteria()
	if err != nil {
		return nil, err
	}
	docs, err := db.GetDocument(ctx, store.GetQuery{Collection: collection, Criteria: criteria, Limit: 1})
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := docs[0].Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Edit applies changes to the user selected by q. A new password is
// validated and hashed; a new email must not belong to another user.
func (s *UserService) Edit(ctx context.Context, q UserQuery, changes UserChanges) (store.EditResult, error) {
	criteria, err := q.criteria()
	if err != nil {
		return store.EditResult{}, err
	}

	set := store.Document{fieldModifiedAt: model.Timestamp(s.now())}
	if changes.Name != nil {
		set[fieldName] = *changes.Name
	}
	if changes.Status != nil {
		switch *changes.Status {
		case model.UserStatusCreated, model.UserStatusPending, model.UserStatusActive:
		default:
			return store.EditResult{}, fmt.Errorf("%w: %q", ErrUnknownStatus, *changes.Status)
		}
		set[fieldStatus] = *changes.Status
	}
	if changes.Role != nil {
		if !s.roles[*changes.Role] {
			return store.EditResult{}, fmt.Errorf("%w: %q", ErrUnknownRole, *changes.Role)
		}
		set[fieldRole] = *changes.Role
	}
	if changes.Email != nil {
		if !validate.IsEmail(*changes.Email) {
			return store.EditResult{}, &validate.FieldError{Field: fieldEmail, Kind: validate.KindEmail, Err: validate.ErrType}
		}
		set[fieldEmail] = normalizeEmail(*changes.Email)
	}
	if changes.Password != nil {
		if !validate.IsPassword(*changes.Password) {
			return store.EditResult{}, &validate.FieldError{Field: fieldPassword, Kind: validate.KindPassword, Err: validate.ErrType}
		}
		hash, err := auth.HashPassword(*changes.Password)
		if err != nil {
			return store.EditResult{}, err
		}
		set[fieldPassword] = hash
	}

	var res store.EditResult
	err = s.db.Transact(ctx, func(tx store.Database) error {
		if email, ok := set[fieldEmail].(string); ok {
			docs, err := tx.GetDocument(ctx, store.GetQuery{
				Collection: s.collection,
				Criteria:   store.Criteria{fieldEmail: email},
			})
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			for _, d := range docs {
				if !criteria.Matches(d) {
					return store.ErrDuplicate
				}
			}
		}

		res, err = tx.EditDocument(ctx, store.EditQuery{
			Collection: s.collection,
			Criteria:   criteria,
			Set:        set,
		})
		return err
	})
	if err != nil {
		return store.EditResult{}, err
	}

	s.logger.Info("user updated", "id", q.ID, "email", q.Email)
	return res, nil
}

// Remove deletes the user selected by q.
func (s *UserService) Remove(ctx context.Context, q UserQuery) (store.RemoveResult, error) {
	criteria, err := q.criteria()
	if err != nil {
		return store.RemoveResult{}, err
	}

	var (
		res store.RemoveResult
		u   *model.User
	)
	err = s.db.Transact(ctx, func(tx store.Database) error {
		if u, err = findUser(ctx, tx, s.collection, q); err != nil {
			return err
		}
		res, err = tx.RemoveDocument(ctx, store.RemoveQuery{Collection: s.collection, Criteria: criteria})
		return err
	})
	if err != nil {
		return store.RemoveResult{}, err
	}

	s.hooks.Fire(ctx, module.Event{
		Hook:       module.HookUserAfterRemove,
		Collection: s.collection,
		ID:         u.ID,
		Subject:    u.Email,
	})
	s.logger.Info("user removed", "id", u.ID, "email", u.Email)
	return res, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
