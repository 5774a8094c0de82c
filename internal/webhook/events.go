// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers module events to subscribed HTTP endpoints.
package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/plz-cms/internal/module"
)

// EventAll subscribes a webhook to every module event.
const EventAll = "*"

// Event is the JSON body posted to a webhook.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventData describes the document the event is about.
type EventData struct {
	Collection string            `json:"collection"`
	ID         string            `json:"id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// NewEvent converts a fired hook into a webhook event.
func NewEvent(e module.Event) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      e.Hook,
		Timestamp: time.Now().UTC(),
		Data: EventData{
			Collection: e.Collection,
			ID:         e.ID,
			Subject:    e.Subject,
			Actor:      e.Actor,
			Details:    e.Data,
		},
	}
}
