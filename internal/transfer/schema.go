// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transfer exports collections to a portable JSON document and
// imports them back, optionally wrapped in a zip archive.
package transfer

import (
	"fmt"
	"time"

	"github.com/olegiv/plz-cms/internal/store"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportFile is the name of the JSON document inside a zip archive.
const ExportFile = "export.json"

// ExportData represents the complete export structure.
type ExportData struct {
	Version     string             `json:"version"`
	ExportedAt  time.Time          `json:"exported_at"`
	Secrets     bool               `json:"secrets"`
	Collections []ExportCollection `json:"collections"`
}

// ExportCollection holds every document of one collection, revisions included.
type ExportCollection struct {
	Collection string           `json:"collection"`
	Database   string           `json:"database"`
	Documents  []store.Document `json:"documents"`
}

// Source is a collection that takes part in export and import.
type Source struct {
	Collection string
	Database   string
	DB         store.Database
	// Secrets are fields left out of exports unless ExportOptions.IncludeSecrets is set.
	Secrets []string
}

func (s Source) key() string {
	return s.Database + "/" + s.Collection
}

// ExportOptions configures what to include in the export.
type ExportOptions struct {
	// Collections limits the export to the named collections. Empty means all.
	Collections    []string
	IncludeSecrets bool
}

// ConflictStrategy decides what happens to an imported document whose id already exists.
type ConflictStrategy string

// Conflict strategies
const (
	ConflictSkip      ConflictStrategy = "skip"
	ConflictOverwrite ConflictStrategy = "overwrite"
)

// ImportOptions configures an import.
type ImportOptions struct {
	ConflictStrategy ConflictStrategy
	// DryRun counts what would change and rolls every write back.
	DryRun bool
	// Collections limits the import to the named collections. Empty means all.
	Collections []string
}

// DefaultImportOptions skips existing documents.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{ConflictStrategy: ConflictSkip}
}

// ImportError describes a problem with one collection or document.
type ImportError struct {
	Collection string `json:"collection,omitempty"`
	ID         string `json:"id,omitempty"`
	Message    string `json:"message"`
}

func (e ImportError) Error() string {
	switch {
	case e.Collection != "" && e.ID != "":
		return fmt.Sprintf("%s/%s: %s", e.Collection, e.ID, e.Message)
	case e.Collection != "":
		return e.Collection + ": " + e.Message
	default:
		return e.Message
	}
}

// ImportResult counts documents per collection.
type ImportResult struct {
	DryRun  bool           `json:"dry_run"`
	Created map[string]int `json:"created"`
	Updated map[string]int `json:"updated"`
	Skipped map[string]int `json:"skipped"`
	Errors  []ImportError  `json:"errors,omitempty"`
}

func newImportResult(dryRun bool) *ImportResult {
	return &ImportResult{
		DryRun:  dryRun,
		Created: make(map[string]int),
		Updated: make(map[string]int),
		Skipped: make(map[string]int),
	}
}

// Total returns the number of documents created, updated and skipped.
func (r *ImportResult) Total() int {
	n := 0
	for _, m := range []map[string]int{r.Created, r.Updated, r.Skipped} {
		for _, v := range m {
			n += v
		}
	}
	return n
}

func selected(names []string, collection string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == collection {
			return true
		}
	}
	return false
}
