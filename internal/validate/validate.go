// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package validate checks option maps against required-field schemas.
// A schema maps field names to a type tag (string, number, email, password).
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Kind is the semantic type a required field must satisfy.
type Kind int

// Supported kinds.
const (
	KindString Kind = iota + 1
	KindNumber
	KindEmail
	KindPassword
)

// MinPasswordLength is the minimum length of a KindPassword value.
const MinPasswordLength = 8

var (
	// ErrRequired is returned when a required field is absent.
	ErrRequired = errors.New("required field not present")
	// ErrType is returned when a field does not match its declared kind.
	ErrType = errors.New("field type not valid")
	// ErrUnknownKind is returned by ParseKind for unrecognised tags.
	ErrUnknownKind = errors.New("unknown type tag")
	// ErrInvalid is wrapped by module checks that go beyond a schema, such as a
	// password confirmation that does not match.
	ErrInvalid = errors.New("options not valid")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindNumber:   "number",
	KindEmail:    "email",
	KindPassword: "password",
}

// String returns the tag used in configuration files.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a configuration tag into a Kind.
func ParseKind(tag string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(tag, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
}

// Schema maps required field names to their kinds.
type Schema map[string]Kind

// ParseSchema converts a tag map from configuration into a Schema.
func ParseSchema(tags map[string]string) (Schema, error) {
	s := make(Schema, len(tags))
	for field, tag := range tags {
		k, err := ParseKind(tag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		s[field] = k
	}
	return s, nil
}

// Fields returns the schema's field names in sorted order.
func (s Schema) Fields() []string {
	fields := make([]string, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// FieldError describes the first schema violation found by Check.
type FieldError struct {
	Field string
	Kind  Kind
	Err   error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrRequired) {
		return fmt.Sprintf("required field %s not present in options", e.Field)
	}
	return fmt.Sprintf("required field %s is not a valid %s", e.Field, e.Kind)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Check verifies that every schema field is present in fields and matches its kind.
// It stops at the first violation.
func Check(schema Schema, fields map[string]any) error {
	for _, name := range schema.Fields() {
		kind := schema[name]
		v, ok := fields[name]
		if !ok || v == nil {
			return &FieldError{Field: name, Kind: kind, Err: ErrRequired}
		}
		if !TypeAs(kind, v) {
			return &FieldError{Field: name, Kind: kind, Err: ErrType}
		}
	}
	return nil
}

// TypeAs reports whether value satisfies kind.
func TypeAs(kind Kind, value any) bool {
	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindNumber:
		return isNumber(value)
	case KindEmail:
		s, ok := value.(string)
		return ok && IsEmail(s)
	case KindPassword:
		s, ok := value.(string)
		return ok && IsPassword(s)
	default:
		return false
	}
}

// IsEmail reports whether s looks like an email address.
func IsEmail(s string) bool {
	return len(s) <= 254 && emailRegex.MatchString(s)
}

// IsPassword reports whether s is long enough and mixes letters with digits.
func IsPassword(s string) bool {
	if len([]rune(s)) < MinPasswordLength {
		return false
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(v))
	case float64:
		return !math.IsNaN(v)
	case json.Number:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}
