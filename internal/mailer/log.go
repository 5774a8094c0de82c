// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package mailer

import (
	"context"
	"log/slog"
)

// LogTransport writes messages to the log instead of sending them.
// It is used when a mailer has no service configured.
type LogTransport struct {
	from   string
	logger *slog.Logger
}

// NewLogTransport creates a transport that logs every message at info level.
func NewLogTransport(from string, logger *slog.Logger) *LogTransport {
	return &LogTransport{from: from, logger: logger}
}

// SendMail implements Mailer.
func (t *LogTransport) SendMail(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	t.logger.InfoContext(ctx, "mail not sent, no transport configured",
		"from", t.from,
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.TextBody,
	)
	return nil
}
