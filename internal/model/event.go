// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// EventCollection is the collection holding logged events.
const EventCollection = "event"

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth   = "auth"
	EventCategoryPage   = "page"
	EventCategoryPost   = "post"
	EventCategoryUser   = "user"
	EventCategoryConfig = "config"
	EventCategorySystem = "system"
	EventCategoryCache  = "cache"
)

// Event represents a system event log entry.
type Event struct {
	ID        string            `json:"_id,omitempty"`
	Level     string            `json:"level"`
	Category  string            `json:"category"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt float64           `json:"createdAt"`
}
