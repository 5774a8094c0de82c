// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"

	"github.com/mileusna/useragent"
)

// Client describes the remote side of a request.
type Client struct {
	IP      string
	Browser string
	OS      string
	Device  string
	Country string
}

// Fields returns the client as event metadata.
func (c Client) Fields() map[string]string {
	fields := map[string]string{
		"ip":      c.IP,
		"browser": c.Browser,
		"os":      c.OS,
		"device":  c.Device,
	}
	if c.Country != "" {
		fields["country"] = c.Country
	}
	return fields
}

type clientKey struct{}

// ClientFromRequest parses the remote address and User-Agent of r.
func ClientFromRequest(r *http.Request) Client {
	ua := useragent.Parse(r.UserAgent())

	c := Client{
		IP:      ClientIP(r),
		Browser: ua.Name,
		OS:      ua.OS,
	}
	if c.Browser == "" {
		c.Browser = "Unknown"
	}
	if c.OS == "" {
		c.OS = "Unknown"
	}

	switch {
	case ua.Mobile:
		c.Device = "mobile"
	case ua.Tablet:
		c.Device = "tablet"
	case ua.Bot:
		c.Device = "bot"
	default:
		c.Device = "desktop"
	}
	return c
}

// WithClient stores c in ctx.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFrom returns the client stored by WithClient.
func ClientFrom(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(clientKey{}).(Client)
	return c, ok
}
