// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/plz-cms/internal/mailer"
	"github.com/olegiv/plz-cms/internal/store"
)

func TestNewCollectorsAreIndependent(t *testing.T) {
	a := New()
	b := New()

	a.LoginLimited.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.LoginLimited))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LoginLimited))
}

func TestHandler(t *testing.T) {
	c := New()
	c.LoginAttempts.WithLabelValues("success").Inc()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `plz_login_attempts_total{result="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestInstrumentDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := New()
	idb := InstrumentDatabase(db, c)

	_, err = idb.CreateDocument(ctx, store.CreateQuery{
		Collection: "page",
		Document:   store.Document{"title": "a"},
	})
	require.NoError(t, err)

	_, err = idb.GetDocument(ctx, store.GetQuery{Collection: "page", Criteria: store.Criteria{"title": "missing"}})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = idb.Transact(ctx, func(tx store.Database) error {
		_, err := tx.EditDocument(ctx, store.EditQuery{
			Collection: "page",
			Criteria:   store.Criteria{"title": "a"},
			Set:        store.Document{"title": "b"},
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("create", "page", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("get", "page", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("edit", "page", "ok")))
}

func TestInstrumentDatabaseNilCollector(t *testing.T) {
	var db store.Database = &store.DB{}
	assert.Same(t, db, InstrumentDatabase(db, nil))
}

type stubMailer struct{ err error }

func (s stubMailer) SendMail(context.Context, mailer.Message) error { return s.err }

func TestInstrumentMailer(t *testing.T) {
	c := New()
	ok := InstrumentMailer("default", stubMailer{}, c)
	bad := InstrumentMailer("default", stubMailer{err: errors.New("refused")}, c)

	require.NoError(t, ok.SendMail(context.Background(), mailer.Message{}))
	require.Error(t, bad.SendMail(context.Background(), mailer.Message{}))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.MailsSent.WithLabelValues("default", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MailsSent.WithLabelValues("default", "error")))
}
