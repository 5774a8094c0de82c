// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
)

// ReadExportFile reads a JSON export, or a zip archive holding one.
func ReadExportFile(path string) (*ExportData, error) {
	zr, err := zip.OpenReader(path)
	if err == nil {
		defer func() { _ = zr.Close() }()
		return ReadZipExport(&zr.Reader)
	}
	if !errors.Is(err, zip.ErrFormat) {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadExport(f)
}
