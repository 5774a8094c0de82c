// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the documents stored by plz-cms: entries (pages and
// posts), users and events.
package model

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User statuses
const (
	UserStatusCreated = "created"
	UserStatusPending = "pending"
	UserStatusActive  = "active"
)

// Recovery link statuses
const (
	RecoveryPendingActivation = "pending-activation"
	RecoveryPendingReset      = "pending-reset"
)

// User represents an admin account.
type User struct {
	ID                string  `json:"_id,omitempty"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	PasswordHash      string  `json:"password,omitempty"`
	Role              string  `json:"role"`
	Status            string  `json:"status"`
	CreatedAt         float64 `json:"createdAt"`
	ModifiedAt        float64 `json:"modifiedAt"`
	LastLogin         float64 `json:"lastLogin"`
	RecoveryHash      string  `json:"recoveryHash,omitempty"`
	RecoveryStatus    string  `json:"recoveryStatus,omitempty"`
	RecoveryExpiresAt float64 `json:"recoveryExpiresAt,omitempty"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true once the account has been activated.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Public returns a copy of the user without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	u.RecoveryHash = ""
	return u
}
