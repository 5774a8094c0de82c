// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/plz-cms/internal/middleware"
	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/store"
	plztest "github.com/olegiv/plz-cms/internal/testutil"
	"github.com/olegiv/plz-cms/internal/validate"
)

var errMock = errors.New("mock failure")

// mockDB fails the operations that have an error set and delegates the rest.
type mockDB struct {
	store.Database
	getErr  error
	editErr error
}

func (m *mockDB) GetDocument(ctx context.Context, q store.GetQuery) ([]store.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.Database.GetDocument(ctx, q)
}

func (m *mockDB) EditDocument(ctx context.Context, q store.EditQuery) (store.EditResult, error) {
	if m.editErr != nil {
		return store.EditResult{}, m.editErr
	}
	return m.Database.EditDocument(ctx, q)
}

func (m *mockDB) Transact(_ context.Context, fn func(store.Database) error) error {
	return fn(m)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.createUser(t, testEmail, model.RoleAdmin)
	f.clock.advance(time.Minute)

	u, err := f.accounts.Login(ctx, "Sender@example.com", testPassword)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, id, u.ID)
	assert.Empty(t, u.PasswordHash)
	assert.Equal(t, model.Timestamp(f.clock.now()), u.LastLogin)

	stored, err := f.users.Get(ctx, UserQuery{ID: id})
	require.NoError(t, err)
	assert.Equal(t, u.LastLogin, stored.LastLogin)

	u, err = f.accounts.Login(ctx, testEmail, "someWrongPass0")
	require.NoError(t, err, "wrong password is not an error")
	assert.Nil(t, u)

	u, err = f.accounts.Login(ctx, "nobody@example.com", testPassword)
	require.NoError(t, err, "unknown email is not an error")
	assert.Nil(t, u)

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues("failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues("unknown")), 0)
}

func TestLoginDatabaseFailure(t *testing.T) {
	f := newFixtureWithDB(t, &mockDB{Database: plztest.TestStore(t), getErr: errMock})

	u, err := f.accounts.Login(context.Background(), testEmail, testPassword)
	assert.ErrorIs(t, err, errMock)
	assert.Nil(t, u)
}

func TestLoginWithoutUsableHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.db.CreateDocument(ctx, store.CreateQuery{
		Collection: "user",
		Document:   store.Document{"name": "imported", "email": "a@b.co", "status": model.UserStatusActive},
	})
	require.NoError(t, err)
	_, err = f.db.CreateDocument(ctx, store.CreateQuery{
		Collection: "user",
		Document:   store.Document{"name": "legacy", "email": "c@d.co", "password": "$2a$10$notargon2"},
	})
	require.NoError(t, err)

	for _, email := range []string{"a@b.co", "c@d.co"} {
		u, err := f.accounts.Login(ctx, email, "whatever1")
		require.NoError(t, err, email)
		assert.Nil(t, u, email)
	}
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues("failure")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues("error")), 0)
}

func TestLoginHookCarriesClient(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, testEmail, model.RoleUser)

	var got []module.Event
	f.accounts.hooks = module.NewHookRegistry(plztest.TestLoggerSilent())
	f.accounts.hooks.RegisterFunc(module.HookUserAfterLogin, "capture", "test", func(_ context.Context, e module.Event) error {
		got = append(got, e)
		return nil
	})

	ctx := middleware.WithClient(context.Background(), middleware.Client{
		IP: "203.0.113.7", Browser: "Firefox", OS: "Linux", Device: "desktop",
	})
	u, err := f.accounts.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NotNil(t, u)

	require.Len(t, got, 1)
	assert.Equal(t, testEmail, got[0].Subject)
	assert.Equal(t, "203.0.113.7", got[0].Data["ip"])
	assert.Equal(t, "Firefox", got[0].Data["browser"])

	_, err = f.accounts.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[1].Data)
}

func linkToken(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, "https://")
	require.GreaterOrEqual(t, i, 0, body)
	link := strings.Fields(body[i:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestActivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.createUser(t, testEmail, model.RoleUser)

	msg, err := f.accounts.SendActivation(ctx, testEmail)
	require.NoError(t, err)
	assert.Contains(t, msg, testEmail)

	mail, ok := f.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, testEmail, mail.To)
	assert.Equal(t, "Activate your account", mail.Subject)
	assert.Contains(t, mail.TextBody, "https://cms.example.com/activate?")
	token := linkToken(t, mail.TextBody)
	require.NotEmpty(t, token)

	// Only the hash is stored
	docs, err := f.db.GetDocument(ctx, store.GetQuery{Collection: "user", Criteria: store.Criteria{"_id": id}})
	require.NoError(t, err)
	assert.NotEqual(t, token, docs[0]["recoveryHash"])
	assert.Equal(t, model.RecoveryPendingActivation, docs[0]["recoveryStatus"])

	authorized, err := f.accounts.Authorize(ctx, testEmail, token)
	require.NoError(t, err)
	assert.True(t, authorized)

	authorized, err = f.accounts.Authorize(ctx, testEmail, "forged")
	require.NoError(t, err)
	assert.False(t, authorized)

	done, err := f.accounts.CompleteAction(ctx, CompleteRequest{Email: testEmail, Token: token})
	require.NoError(t, err)
	assert.True(t, done)

	u, err := f.users.Get(ctx, UserQuery{ID: id})
	require.NoError(t, err)
	assert.True(t, u.IsActive())
	assert.Empty(t, u.RecoveryStatus)

	// The link is single use
	authorized, err = f.accounts.Authorize(ctx, testEmail, token)
	require.NoError(t, err)
	assert.False(t, authorized)

	done, err = f.accounts.CompleteAction(ctx, CompleteRequest{Email: testEmail, Token: token})
	require.NoError(t, err)
	assert.False(t, done)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, testEmail, model.RoleUser)
	f.fixedToken("reset-token")

	_, err := f.accounts.SendReset(ctx, testEmail)
	require.NoError(t, err)
	mail, _ := f.mailer.Last()
	assert.Equal(t, "Reset your password", mail.Subject)
	assert.Equal(t, "reset-token", linkToken(t, mail.TextBody))

	tests := []struct {
		name string
		req  CompleteRequest
		err  error
	}{
		{name: "no email", req: CompleteRequest{Token: "reset-token"}, err: validate.ErrRequired},
		{name: "no token", req: CompleteRequest{Email: testEmail}, err: validate.ErrRequired},
		{name: "mismatch", req: CompleteRequest{Email: testEmail, Token: "reset-token", PasswordNew: "WAoS0Compl3x", PasswordConfirm: "WAoS0Compl3y"}, err: ErrPasswordMismatch},
		{name: "weak password", req: CompleteRequest{Email: testEmail, Token: "reset-token", PasswordNew: "short", PasswordConfirm: "short"}, err: validate.ErrType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done, err := f.accounts.CompleteAction(ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, done)
		})
	}

	done, err := f.accounts.CompleteAction(ctx, CompleteRequest{
		Email:           testEmail,
		Token:           "reset-token",
		PasswordNew:     "WAoS0Compl3x",
		PasswordConfirm: "WAoS0Compl3x",
	})
	require.NoError(t, err)
	assert.True(t, done)

	u, err := f.accounts.Login(ctx, testEmail, "WAoS0Compl3x")
	require.NoError(t, err)
	assert.NotNil(t, u)

	u, err = f.accounts.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Nil(t, u, "old password no longer works")
}

func TestSendLinkFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.accounts.SendActivation(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Empty(t, f.mailer.Sent())
	})

	t.Run("database failure", func(t *testing.T) {
		f := newFixtureWithDB(t, &mockDB{Database: plztest.TestStore(t), editErr: errMock})
		msg, err := f.accounts.sendLink(ctx, LinkRequest{
			Email:  "merlin@sonofamberandchaos.com",
			Status: model.RecoveryPendingActivation,
			Token:  "aaaaaaaaaaddddddddddfffffffffffffff001233",
		})
		assert.ErrorIs(t, err, errMock)
		assert.Empty(t, msg)
		assert.Empty(t, f.mailer.Sent())
	})

	t.Run("mailer failure", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, testEmail, model.RoleUser)
		f.mailer.Err = errMock

		_, err := f.accounts.SendReset(ctx, testEmail)
		assert.ErrorIs(t, err, errMock)
	})

	t.Run("no email", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.accounts.SendReset(ctx, "")
		assert.ErrorIs(t, err, validate.ErrRequired)
	})
}

func TestAuthorizeDatabaseFailure(t *testing.T) {
	f := newFixtureWithDB(t, &mockDB{Database: plztest.TestStore(t), getErr: errMock})

	ok, err := f.accounts.Authorize(context.Background(), testEmail, "token")
	assert.ErrorIs(t, err, errMock)
	assert.False(t, ok)
}

func TestCompleteActionDatabaseFailure(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t)
	base.createUser(t, testEmail, model.RoleUser)
	base.fixedToken("tok")
	_, err := base.accounts.SendActivation(ctx, testEmail)
	require.NoError(t, err)

	f := newFixtureWithDB(t, &mockDB{Database: base.db, editErr: errMock})
	f.clock = base.clock
	f.accounts.now = base.clock.now

	done, err := f.accounts.CompleteAction(ctx, CompleteRequest{Email: testEmail, Token: "tok"})
	assert.ErrorIs(t, err, errMock)
	assert.False(t, done)
}

func TestExpiredLinks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, testEmail, model.RoleUser)
	f.createUser(t, "other@example.com", model.RoleUser)
	f.fixedToken("tok")

	_, err := f.accounts.SendActivation(ctx, testEmail)
	require.NoError(t, err)

	n, err := f.accounts.PurgeExpiredLinks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "link still valid")

	f.clock.advance(2 * time.Hour)

	ok, err := f.accounts.Authorize(ctx, testEmail, "tok")
	require.NoError(t, err)
	assert.False(t, ok, "expired link")

	done, err := f.accounts.CompleteAction(ctx, CompleteRequest{Email: testEmail, Token: "tok"})
	require.NoError(t, err)
	assert.False(t, done)

	n, err = f.accounts.PurgeExpiredLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LinksPurged), 0)

	u, err := f.users.Get(ctx, UserQuery{Email: testEmail})
	require.NoError(t, err)
	assert.Empty(t, u.RecoveryStatus)
	assert.Zero(t, u.RecoveryExpiresAt)
}

func TestRestrictAllow(t *testing.T) {
	f := newFixture(t)
	admin := &model.User{Role: model.RoleAdmin}
	user := &model.User{Role: model.RoleUser}

	tests := []struct {
		name     string
		user     *model.User
		roles    []string
		allow    bool
		restrict bool
	}{
		{name: "admin allowed", user: admin, roles: []string{"admin"}, allow: true, restrict: false},
		{name: "user not in roles", user: user, roles: []string{"admin"}, allow: false, restrict: true},
		{name: "unconfigured roles ignored", user: admin, roles: []string{"peasant", "peon"}, allow: false, restrict: true},
		{name: "unconfigured role never matches", user: &model.User{Role: "super-admin"}, roles: []string{"super-admin"}, allow: false, restrict: true},
		{name: "several roles", user: user, roles: []string{"admin", "user"}, allow: true, restrict: false},
		{name: "no user", user: nil, roles: []string{"admin"}, allow: false, restrict: false},
		{name: "no user, no roles", user: nil, roles: nil, allow: false, restrict: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allow, f.accounts.Allow(tt.user, tt.roles))
			assert.Equal(t, tt.restrict, f.accounts.Restrict(tt.user, tt.roles))
		})
	}
}
