// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"math"
	"time"
)

// Timestamp returns t as epoch seconds with millisecond precision, the
// representation used for createdAt, modifiedAt and lastLogin fields.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// TimeOf converts an epoch-seconds timestamp back to a time.Time.
func TimeOf(ts float64) time.Time {
	return time.UnixMilli(int64(math.Round(ts * 1000)))
}
