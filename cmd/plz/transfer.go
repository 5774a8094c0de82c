// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/olegiv/plz-cms/internal/hub"
	"github.com/olegiv/plz-cms/internal/transfer"
)

// transferFlags selects the one-shot export or import mode.
type transferFlags struct {
	exportPath string
	importPath string
	zip        bool
	secrets    bool
	overwrite  bool
	dryRun     bool
}

func (f transferFlags) active() bool {
	return f.exportPath != "" || f.importPath != ""
}

func runTransfer(ctx context.Context, h *hub.Hub, f transferFlags) error {
	if f.exportPath != "" {
		opts := transfer.ExportOptions{IncludeSecrets: f.secrets}
		if err := h.Exporter().ExportToFile(ctx, opts, f.exportPath, f.zip); err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		slog.Info("export written", "path", f.exportPath, "zip", f.zip, "secrets", f.secrets)
		return nil
	}

	data, err := transfer.ReadExportFile(f.importPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.importPath, err)
	}

	opts := transfer.DefaultImportOptions()
	if f.overwrite {
		opts.ConflictStrategy = transfer.ConflictOverwrite
	}
	opts.DryRun = f.dryRun

	res, err := h.Import(ctx, data, opts)
	if res != nil {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(res)
	}
	if errors.Is(err, transfer.ErrInvalidExport) {
		return fmt.Errorf("import rejected: %d problem(s) found", len(res.Errors))
	}
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}
	return nil
}
