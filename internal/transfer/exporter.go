// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olegiv/plz-cms/internal/store"
)

// Exporter reads every document of its sources.
type Exporter struct {
	sources []Source
	logger  *slog.Logger
}

// NewExporter creates a new Exporter. Sources naming the same collection in
// the same database are exported once.
func NewExporter(sources []Source, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{sources: dedupe(sources), logger: logger}
}

func dedupe(sources []Source) []Source {
	seen := make(map[string]bool, len(sources))
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if seen[s.key()] {
			continue
		}
		seen[s.key()] = true
		out = append(out, s)
	}
	return out
}

// Export generates an ExportData structure based on the provided options.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (*ExportData, error) {
	data := &ExportData{
		Version:     ExportVersion,
		ExportedAt:  time.Now().UTC(),
		Secrets:     opts.IncludeSecrets,
		Collections: make([]ExportCollection, 0, len(e.sources)),
	}

	for _, s := range e.sources {
		if !selected(opts.Collections, s.Collection) {
			continue
		}
		docs, err := s.DB.GetDocument(ctx, store.GetQuery{Collection: s.Collection})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("exporting %s: %w", s.Collection, err)
		}
		if docs == nil {
			docs = []store.Document{}
		}
		if !opts.IncludeSecrets {
			for _, doc := range docs {
				for _, f := range s.Secrets {
					delete(doc, f)
				}
			}
		}
		data.Collections = append(data.Collections, ExportCollection{
			Collection: s.Collection,
			Database:   s.Database,
			Documents:  docs,
		})
		e.logger.Debug("collection exported", "collection", s.Collection, "documents", len(docs))
	}

	return data, nil
}

// ExportToWriter writes the export as JSON to the provided writer.
func (e *Exporter) ExportToWriter(ctx context.Context, opts ExportOptions, w io.Writer) error {
	data, err := e.Export(ctx, opts)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportToZip writes a zip archive holding the export as export.json.
func (e *Exporter) ExportToZip(ctx context.Context, opts ExportOptions, w io.Writer) error {
	data, err := e.Export(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to generate export: %w", err)
	}

	zipWriter := zip.NewWriter(w)
	jsonWriter, err := zipWriter.CreateHeader(&zip.FileHeader{
		Name:     ExportFile,
		Method:   zip.Deflate,
		Modified: data.ExportedAt,
	})
	if err != nil {
		_ = zipWriter.Close()
		return fmt.Errorf("failed to create %s in zip: %w", ExportFile, err)
	}

	encoder := json.NewEncoder(jsonWriter)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		_ = zipWriter.Close()
		return fmt.Errorf("failed to write %s: %w", ExportFile, err)
	}
	return zipWriter.Close()
}

// ExportToFile writes the export to path, as a zip archive when zipped is set.
func (e *Exporter) ExportToFile(ctx context.Context, opts ExportOptions, path string, zipped bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if zipped {
		return e.ExportToZip(ctx, opts, f)
	}
	return e.ExportToWriter(ctx, opts, f)
}
