// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package author

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/olegiv/plz-cms/internal/model"
)

// Renderer turns entry content into sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer creates a renderer using GitHub flavoured markdown and the UGC policy.
func NewRenderer() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts content according to contentType. Markdown and HTML are
// sanitized; anything else is escaped inside a <pre> block.
func (r *Renderer) Render(contentType, content string) (string, error) {
	// Ignore parameters such as "; charset=utf-8"
	mediaType, _, _ := strings.Cut(contentType, ";")

	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case model.ContentTypeMarkdown:
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(content), &buf); err != nil {
			return "", fmt.Errorf("rendering markdown: %w", err)
		}
		return r.policy.Sanitize(buf.String()), nil
	case model.ContentTypeHTML:
		return r.policy.Sanitize(content), nil
	default:
		return "<pre>" + html.EscapeString(content) + "</pre>", nil
	}
}

// RenderEntry renders the content of e.
func (r *Renderer) RenderEntry(e model.Entry) (string, error) {
	return r.Render(e.ContentType, e.Content)
}
