// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/plz-cms/internal/metrics"
	"github.com/olegiv/plz-cms/internal/store"
	plztest "github.com/olegiv/plz-cms/internal/testutil"
	"github.com/olegiv/plz-cms/internal/validate"
)

const (
	testEmail    = "sender@example.com"
	testPassword = "someFakePass0"
)

var userSchema = validate.Schema{
	"name":       validate.KindString,
	"email":      validate.KindEmail,
	"password":   validate.KindPassword,
	"createdAt":  validate.KindNumber,
	"modifiedAt": validate.KindNumber,
	"lastLogin":  validate.KindNumber,
	"status":     validate.KindString,
}

var testRoles = map[string]bool{"admin": true, "user": true}

// testClock is a settable clock shared by the services under test.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db       store.Database
	users    *UserService
	accounts *AccountService
	mailer   *plztest.FakeMailer
	metrics  *metrics.Collector
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, plztest.TestStore(t))
}

func newFixtureWithDB(t *testing.T, db store.Database) *fixture {
	t.Helper()

	f := &fixture{
		db:      db,
		mailer:  &plztest.FakeMailer{},
		metrics: metrics.New(),
		clock:   &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	logger := plztest.TestLoggerSilent()

	f.users = NewUserService(db, "user", userSchema, testRoles, nil, logger)
	f.users.now = f.clock.now

	f.accounts = NewAccountService(AccountOptions{
		DB:         db,
		Collection: "user",
		Mailer:     f.mailer,
		BaseURL:    "https://cms.example.com/",
		LinkTTL:    time.Hour,
		Roles:      testRoles,
		Metrics:    f.metrics,
		Logger:     logger,
	})
	f.accounts.now = f.clock.now
	return f
}

func (f *fixture) createUser(t *testing.T, email, role string) string {
	t.Helper()
	res, err := f.users.Create(context.Background(), map[string]any{
		"name":     "greg",
		"email":    email,
		"password": testPassword,
		"role":     role,
	})
	require.NoError(t, err)
	return res.InsertedID
}

// fixedToken makes the next links use token.
func (f *fixture) fixedToken(token string) {
	f.accounts.newToken = func() (string, error) { return token, nil }
}
