// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"context"

	"github.com/olegiv/plz-cms/internal/mailer"
)

type instrumentedMailer struct {
	name string
	next mailer.Mailer
	c    *Collector
}

// InstrumentMailer returns m with sends counted under name. A nil collector returns m unchanged.
func InstrumentMailer(name string, m mailer.Mailer, c *Collector) mailer.Mailer {
	if c == nil || m == nil {
		return m
	}
	return &instrumentedMailer{name: name, next: m, c: c}
}

func (m *instrumentedMailer) SendMail(ctx context.Context, msg mailer.Message) error {
	err := m.next.SendMail(ctx, msg)
	m.c.MailsSent.WithLabelValues(m.name, Result(err)).Inc()
	return err
}
