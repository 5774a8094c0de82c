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

	"github.com/olegiv/plz-cms/internal/store"
)

// MaxExportSize bounds the export.json read from a zip archive.
const MaxExportSize = 256 << 20

var (
	// ErrInvalidExport is returned when validation finds problems; ImportResult.Errors lists them.
	ErrInvalidExport = errors.New("invalid export")

	errDryRun = errors.New("dry run")
)

// Importer writes exported documents back into its sources.
type Importer struct {
	sources []Source
	logger  *slog.Logger
}

// NewImporter creates a new Importer.
func NewImporter(sources []Source, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{sources: dedupe(sources), logger: logger}
}

// source finds where an exported collection goes: the same database and
// collection if configured, otherwise the only source with that collection.
func (i *Importer) source(c ExportCollection) (Source, bool) {
	var match []Source
	for _, s := range i.sources {
		if s.Collection != c.Collection {
			continue
		}
		if s.Database == c.Database {
			return s, true
		}
		match = append(match, s)
	}
	if len(match) == 1 {
		return match[0], true
	}
	return Source{}, false
}

// Validate checks data against the configured sources without writing.
func (i *Importer) Validate(data *ExportData) []ImportError {
	return i.validate(data, ImportOptions{})
}

func (i *Importer) validate(data *ExportData, opts ImportOptions) []ImportError {
	if data == nil {
		return []ImportError{{Message: "export data is empty"}}
	}

	var errs []ImportError
	if data.Version != ExportVersion {
		errs = append(errs, ImportError{Message: fmt.Sprintf("unsupported export version %q", data.Version)})
	}

	for _, c := range data.Collections {
		if c.Collection == "" {
			errs = append(errs, ImportError{Message: "collection name missing"})
			continue
		}
		if !selected(opts.Collections, c.Collection) {
			continue
		}
		if _, ok := i.source(c); !ok {
			errs = append(errs, ImportError{Collection: c.Collection, Message: "collection is not configured"})
		}
		seen := make(map[string]bool, len(c.Documents))
		for n, doc := range c.Documents {
			id := doc.ID()
			if id == "" {
				errs = append(errs, ImportError{Collection: c.Collection, Message: fmt.Sprintf("document %d has no %s", n, store.IDField)})
				continue
			}
			if seen[id] {
				errs = append(errs, ImportError{Collection: c.Collection, ID: id, Message: "duplicate id"})
			}
			seen[id] = true
		}
	}
	return errs
}

// Import writes data in one transaction per collection. With DryRun every
// transaction is rolled back after counting.
func (i *Importer) Import(ctx context.Context, data *ExportData, opts ImportOptions) (*ImportResult, error) {
	result := newImportResult(opts.DryRun)

	switch opts.ConflictStrategy {
	case "":
		opts.ConflictStrategy = ConflictSkip
	case ConflictSkip, ConflictOverwrite:
	default:
		return result, fmt.Errorf("unknown conflict strategy %q", opts.ConflictStrategy)
	}

	if errs := i.validate(data, opts); len(errs) > 0 {
		result.Errors = errs
		return result, ErrInvalidExport
	}

	for _, c := range data.Collections {
		if !selected(opts.Collections, c.Collection) {
			continue
		}
		src, _ := i.source(c)
		err := src.DB.Transact(ctx, func(db store.Database) error {
			for _, doc := range c.Documents {
				if err := i.importDocument(ctx, db, src, doc, data.Secrets, opts.ConflictStrategy, result); err != nil {
					return err
				}
			}
			if opts.DryRun {
				return errDryRun
			}
			return nil
		})
		if err != nil && !errors.Is(err, errDryRun) {
			return result, fmt.Errorf("importing %s: %w", c.Collection, err)
		}
		i.logger.Info("collection imported",
			"collection", c.Collection,
			"created", result.Created[c.Collection],
			"updated", result.Updated[c.Collection],
			"skipped", result.Skipped[c.Collection],
			"dry_run", opts.DryRun)
	}

	return result, nil
}

// importDocument creates doc or resolves the id conflict. Overwriting a
// document with an export that carries no secrets keeps the stored secrets.
func (i *Importer) importDocument(ctx context.Context, db store.Database, src Source, doc store.Document, withSecrets bool, strategy ConflictStrategy, result *ImportResult) error {
	existing, err := db.GetDocument(ctx, store.GetQuery{
		Collection: src.Collection,
		Criteria:   store.Criteria{store.IDField: doc.ID()},
		Limit:      1,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, err := db.CreateDocument(ctx, store.CreateQuery{Collection: src.Collection, Document: doc}); err != nil {
			return err
		}
		result.Created[src.Collection]++
		return nil
	case err != nil:
		return err
	case strategy == ConflictSkip:
		result.Skipped[src.Collection]++
		return nil
	}

	doc = doc.Clone()
	if !withSecrets && len(existing) > 0 {
		for _, f := range src.Secrets {
			if v, ok := existing[0][f]; ok {
				doc[f] = v
			}
		}
	}
	if _, err := db.RemoveDocument(ctx, store.RemoveQuery{
		Collection: src.Collection,
		Criteria:   store.Criteria{store.IDField: doc.ID()},
	}); err != nil {
		return err
	}
	if _, err := db.CreateDocument(ctx, store.CreateQuery{Collection: src.Collection, Document: doc}); err != nil {
		return err
	}
	result.Updated[src.Collection]++
	return nil
}

// ImportFromReader reads a JSON export from r and imports it.
func (i *Importer) ImportFromReader(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	data, err := ReadExport(r)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, data, opts)
}

// ImportFromZip imports the export.json of a zip archive.
func (i *Importer) ImportFromZip(ctx context.Context, zr *zip.Reader, opts ImportOptions) (*ImportResult, error) {
	data, err := ReadZipExport(zr)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, data, opts)
}

// ImportFromFile imports a JSON export or a zip archive holding one.
func (i *Importer) ImportFromFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	data, err := ReadExportFile(path)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, data, opts)
}

// ReadExport decodes a JSON export.
func ReadExport(r io.Reader) (*ExportData, error) {
	var data ExportData
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &data, nil
}

// ReadZipExport decodes the export.json entry of a zip archive. Other
// entries are ignored.
func ReadZipExport(zr *zip.Reader) (*ExportData, error) {
	for _, f := range zr.File {
		if f.Name != ExportFile {
			continue
		}
		if f.UncompressedSize64 > MaxExportSize {
			return nil, fmt.Errorf("%s exceeds %d bytes", ExportFile, MaxExportSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", ExportFile, err)
		}
		defer func() { _ = rc.Close() }()
		return ReadExport(io.LimitReader(rc, MaxExportSize))
	}
	return nil, fmt.Errorf("%s not found in zip archive", ExportFile)
}
