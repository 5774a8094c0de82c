// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("someFakePass0")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}

	again, err := HashPassword("someFakePass0")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == again {
		t.Error("two hashes of the same password share a salt")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("someFakePass0")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "someFakePass0", true},
		{"wrong", "someWrongPass0", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckPassword(tt.password, hash)
			if err != nil {
				t.Fatalf("CheckPassword error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestCheckPassword_LegacyParams(t *testing.T) {
	// Produced with m=65536,t=1,p=4 for "changeme"
	legacy := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"

	valid, err := CheckPassword("changeme", legacy)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("legacy hash rejected correct password")
	}
	if !NeedsRehash(legacy) {
		t.Error("NeedsRehash(legacy) = false, want true")
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	for _, h := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	} {
		if _, err := CheckPassword("pw", h); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("CheckPassword(%q) error = %v, want ErrInvalidHash", h, err)
		}
	}
}

func TestNeedsRehash_Current(t *testing.T) {
	hash, err := HashPassword("someFakePass0")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if NeedsRehash(hash) {
		t.Error("NeedsRehash(current) = true, want false")
	}
	if !NeedsRehash("garbage") {
		t.Error("NeedsRehash(garbage) = false, want true")
	}
}
