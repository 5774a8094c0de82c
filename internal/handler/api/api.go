// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON response helpers shared by the module handlers,
// and maps domain errors onto HTTP status codes.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/validate"
)

// MaxBodySize limits request bodies decoded by DecodeJSON.
const MaxBodySize = 1 << 20

// ErrBadRequest is returned by DecodeJSON for malformed bodies.
var ErrBadRequest = errors.New("malformed request body")

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries result counts.
type Meta struct {
	Count int `json:"count"`
	Limit int `json:"limit,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, nil)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// Status maps an error to an HTTP status code and error code.
//
//	validation  422 validation_error
//	not found   404 not_found
//	duplicate   409 conflict
//	criteria    400 bad_request
//	other       500 internal_error
func Status(err error) (int, string) {
	var fe *validate.FieldError
	switch {
	case errors.As(err, &fe), errors.Is(err, validate.ErrInvalid):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, store.ErrNoCriteria), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteErr writes err with the status Status assigns to it. Server errors are
// logged and their message is not exposed.
func WriteErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := Status(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		WriteError(w, status, code, "Internal server error", nil)
		return
	}

	var details map[string]string
	var fe *validate.FieldError
	if errors.As(err, &fe) {
		details = map[string]string{fe.Field: fe.Error()}
	}
	WriteError(w, status, code, err.Error(), details)
}

// DecodeJSON decodes the request body into v. Numbers decode as json.Number
// so that schema checks see the value the client sent.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// QueryInt parses an optional non-negative integer query parameter.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadRequest, name)
	}
	return n, nil
}
