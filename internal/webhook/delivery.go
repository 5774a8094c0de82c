// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/plz-cms/internal/version"
)

// Delivery constants
const (
	RequestTimeout  = 30 * time.Second // HTTP request timeout
	MaxResponseLen  = 10 * 1024        // Maximum response body read (10KB)
	SignaturePrefix = "sha256="
)

// Request headers set on every delivery.
const (
	HeaderSignature = "X-Plz-Signature"
	HeaderEvent     = "X-Plz-Event"
	HeaderDelivery  = "X-Plz-Delivery"
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

// httpClient is the shared HTTP client with appropriate timeouts.
var httpClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

func userAgent() string {
	return "plz-cms/" + version.Get().Version
}

// attemptDelivery performs the HTTP POST request.
func (d *Dispatcher) attemptDelivery(ctx context.Context, dl *delivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dl.target.URL, bytes.NewReader(dl.payload))
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("failed to create request: %w", err),
			ShouldRetry: false, // Bad URL
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set(HeaderEvent, dl.event)
	req.Header.Set(HeaderDelivery, dl.eventID)
	if dl.target.Secret != "" {
		req.Header.Set(HeaderSignature, SignaturePrefix+GenerateSignature(dl.payload, dl.target.Secret))
	}
	for key, value := range dl.target.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.cfg.Client.Do(req)
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true, // Network error
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	return resultFor(resp.StatusCode, string(body))
}

// resultFor classifies a response status. 2xx succeeds; 4xx fails for good
// except 408 and 429; everything else is retried.
func resultFor(status int, body string) DeliveryResult {
	if status >= 200 && status < 300 {
		return DeliveryResult{Success: true, StatusCode: status, ResponseBody: body}
	}

	shouldRetry := true
	if status >= 400 && status < 500 {
		shouldRetry = status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}
	return DeliveryResult{
		StatusCode:   status,
		ResponseBody: body,
		Error:        fmt.Errorf("HTTP %d: %s", status, http.StatusText(status)),
		ShouldRetry:  shouldRetry,
	}
}

// calculateBackoff returns initial * 2^(attempt-1), capped at ceiling.
func calculateBackoff(attempt int, initial, ceiling time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if backoff > ceiling || backoff < 0 {
		backoff = ceiling
	}
	return backoff
}

// GenerateSignature returns the hex HMAC-SHA256 of payload keyed by secret.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by GenerateSignature. The
// "sha256=" prefix sent in the header is accepted.
func VerifySignature(payload []byte, signature, secret string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(signature, SignaturePrefix))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
