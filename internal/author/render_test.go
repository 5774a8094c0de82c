// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package author

import (
	"strings"
	"testing"

	"github.com/olegiv/plz-cms/internal/model"
)

func TestRender(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name        string
		contentType string
		content     string
		contains    []string
		excludes    []string
	}{
		{
			name:        "markdown",
			contentType: model.ContentTypeMarkdown,
			content:     "# Title\n\nSome **bold** text",
			contains:    []string{"<h1>Title</h1>", "<strong>bold</strong>"},
		},
		{
			name:        "markdown table",
			contentType: model.ContentTypeMarkdown,
			content:     "| a | b |\n|---|---|\n| 1 | 2 |",
			contains:    []string{"<table>", "<td>1</td>"},
		},
		{
			name:        "markdown raw html dropped",
			contentType: model.ContentTypeMarkdown,
			content:     "text <script>alert(1)</script>",
			excludes:    []string{"<script>"},
		},
		{
			name:        "html sanitized",
			contentType: model.ContentTypeHTML,
			content:     `<p onclick="x()">hi</p><script>alert(1)</script>`,
			contains:    []string{"<p>hi</p>"},
			excludes:    []string{"onclick", "<script>"},
		},
		{
			name:        "content type parameters ignored",
			contentType: "text/html; charset=utf-8",
			content:     "<em>x</em>",
			contains:    []string{"<em>x</em>"},
		},
		{
			name:        "plain escaped",
			contentType: model.ContentTypePlain,
			content:     "a < b",
			contains:    []string{"<pre>a &lt; b</pre>"},
		},
		{
			name:     "unknown escaped",
			content:  "<b>",
			contains: []string{"<pre>&lt;b&gt;</pre>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.contentType, tt.content)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Render() = %q, want it to contain %q", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("Render() = %q, must not contain %q", got, bad)
				}
			}
		})
	}
}
