// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestUserIsAdmin(t *testing.T) {
	tests := []struct {
		name string
		role string
		want bool
	}{
		{
			name: "admin role",
			role: RoleAdmin,
			want: true,
		},
		{
			name: "user role",
			role: RoleUser,
			want: false,
		},
		{
			name: "empty role",
			role: "",
			want: false,
		},
		{
			name: "Admin uppercase",
			role: "Admin",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Role: tt.role}
			if got := u.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserPublic(t *testing.T) {
	u := User{
		Name:         "greg",
		Email:        "sender@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		RecoveryHash: "abc",
	}

	pub := u.Public()
	if pub.PasswordHash != "" || pub.RecoveryHash != "" {
		t.Errorf("Public() kept credentials: %+v", pub)
	}
	if u.PasswordHash == "" {
		t.Error("Public() modified the receiver")
	}

	raw, err := json.Marshal(pub)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(raw), "password") {
		t.Errorf("public JSON contains password: %s", raw)
	}
}

func TestTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

	ts := Timestamp(now)
	if ts != 1773480413.589 {
		t.Errorf("Timestamp() = %v, want 1773480413.589", ts)
	}
	if got := TimeOf(ts); !got.Equal(now) {
		t.Errorf("TimeOf(Timestamp()) = %v, want %v", got, now)
	}
}
