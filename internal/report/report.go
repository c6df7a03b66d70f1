// Package report renders analysis answers as standalone Markdown or HTML.
package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/KaramelBytes/chartloom-cli/internal/filter"
)

// Meta describes where an answer came from.
type Meta struct {
	Dataset    string
	Rows       int
	SampleRows int
	Filters    []filter.Filter
	Question   string
	Mode       string
	Model      string
	Generated  time.Time
}

const style = "body{font-family:system-ui,sans-serif;max-width:860px;margin:2rem auto;padding:0 1rem;line-height:1.5;color:#1c1917;} " +
	".report-meta{color:#44403c;border-bottom:1px solid #d6d3d1;padding-bottom:.75rem;margin-bottom:1rem;} " +
	".report-meta strong{color:#1c1917;} " +
	"table{border-collapse:collapse;width:100%;font-size:.9rem;} th,td{border:1px solid #a8a29e;padding:.35rem .45rem;text-align:left;vertical-align:top;} " +
	"thead th{background:#f1f5f9;} code{background:#f5f5f4;padding:0 .2rem;}"

// Markdown prefixes the answer with a metadata block.
func Markdown(m Meta, answer string) string {
	var b strings.Builder
	b.WriteString("# Analysis\n\n")
	for _, kv := range m.pairs() {
		b.WriteString(fmt.Sprintf("- **%s:** %s\n", kv[0], kv[1]))
	}
	b.WriteString("\n---\n\n")
	b.WriteString(strings.TrimSpace(answer))
	b.WriteString("\n")
	return b.String()
}

// HTML converts the answer's Markdown (GFM tables included) into a standalone page.
func HTML(m Meta, answer string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(answer), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	var meta strings.Builder
	for _, kv := range m.pairs() {
		meta.WriteString("<div><strong>" + html.EscapeString(kv[0]) + ":</strong> " + html.EscapeString(kv[1]) + "</div>")
	}
	title := "Analysis"
	if m.Dataset != "" {
		title = "Analysis of " + m.Dataset
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + style + "</style></head><body>" +
		"<div class='report-meta'>" + meta.String() + "</div>" +
		"<div class='report-html'>" + content.String() + "</div>" +
		"</body></html>", nil
}

func (m Meta) pairs() [][2]string {
	var out [][2]string
	add := func(k, v string) {
		if v != "" {
			out = append(out, [2]string{k, v})
		}
	}
	add("Dataset", m.Dataset)
	if m.Rows > 0 || m.Dataset != "" {
		rows := fmt.Sprintf("%d", m.Rows)
		if m.SampleRows > 0 {
			rows += fmt.Sprintf(" (sample: first %d)", m.SampleRows)
		}
		add("Rows", rows)
	}
	if len(m.Filters) > 0 {
		parts := make([]string, len(m.Filters))
		for i, f := range m.Filters {
			parts[i] = f.Column + " in [" + strings.Join(f.Allowed, ", ") + "]"
		}
		add("Filters", strings.Join(parts, "; "))
	}
	add("Question", m.Question)
	add("Mode", m.Mode)
	add("Model", m.Model)
	if !m.Generated.IsZero() {
		add("Date", m.Generated.Format("January 2, 2006 at 3:04 PM MST"))
	}
	return out
}
