// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Entry statuses
const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Entry visibilities
const (
	VisibilityPublic     = "public"
	VisibilityPrivate    = "private"
	VisibilityPrivileged = "privileged"
)

// Content types understood by the renderer.
const (
	ContentTypePlain    = "text/plain"
	ContentTypeHTML     = "text/html"
	ContentTypeMarkdown = "text/markdown"
)

// Entry is a page or post document. The live revision of a title is the one
// whose status is not archived; older revisions keep their revisionNumber.
type Entry struct {
	ID             string   `json:"_id,omitempty"`
	UserName       string   `json:"userName"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug,omitempty"`
	Visibility     string   `json:"visibility,omitempty"`
	ContentType    string   `json:"contentType,omitempty"`
	Content        string   `json:"content"`
	Status         string   `json:"status"`
	RevisionNumber int      `json:"revisionNumber"`
	CreatedAt      float64  `json:"createdAt"`
	ModifiedAt     float64  `json:"modifiedAt"`
	Labels         []string `json:"labels,omitempty"`
}

// IsPublished returns true if the entry is published.
func (e *Entry) IsPublished() bool {
	return e.Status == StatusPublished
}

// IsArchived returns true if the entry is a retained older revision.
func (e *Entry) IsArchived() bool {
	return e.Status == StatusArchived
}

// HasLabel reports whether the entry carries label.
func (e *Entry) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}
