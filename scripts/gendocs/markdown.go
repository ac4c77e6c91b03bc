package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// MarkdownWriter accumulates a generated markdown page.
type MarkdownWriter struct {
	buf bytes.Buffer
}

// NewMarkdownWriter returns an empty writer.
func NewMarkdownWriter() *MarkdownWriter {
	return &MarkdownWriter{}
}

// Frontmatter writes the YAML frontmatter block.
func (w *MarkdownWriter) Frontmatter(title, description string) {
	fmt.Fprintf(&w.buf, "---\ntitle: %s\ndescription: %q\n---\n\n", title, description)
}

// GeneratedMarker notes that the page must not be edited by hand.
func (w *MarkdownWriter) GeneratedMarker() {
	w.buf.WriteString("<!-- Code generated by scripts/gendocs. DO NOT EDIT. -->\n\n")
}

// Header writes a level-n header.
func (w *MarkdownWriter) Header(level int, text string) {
	fmt.Fprintf(&w.buf, "%s %s\n\n", strings.Repeat("#", level), text)
}

// Paragraph writes a paragraph.
func (w *MarkdownWriter) Paragraph(text string) {
	w.buf.WriteString(strings.TrimSpace(text))
	w.buf.WriteString("\n\n")
}

// CodeBlock writes a fenced code block.
func (w *MarkdownWriter) CodeBlock(lang, code string) {
	fmt.Fprintf(&w.buf, "```%s\n%s\n```\n\n", lang, strings.TrimRight(code, "\n"))
}

// BulletList writes one bullet per item.
func (w *MarkdownWriter) BulletList(items []string) {
	for _, item := range items {
		fmt.Fprintf(&w.buf, "- %s\n", item)
	}
	w.buf.WriteString("\n")
}

// Table writes a markdown table.
func (w *MarkdownWriter) Table(headers []string, rows [][]string) {
	t := table.NewWriter()
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = c
		}
		t.AppendRow(row)
	}
	w.buf.WriteString(t.RenderMarkdown())
	w.buf.WriteString("\n\n")
}

// Bytes returns the page content.
func (w *MarkdownWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// InlineCode wraps s in backticks.
func InlineCode(s string) string {
	return "`" + s + "`"
}

// cleanDescription collapses a description onto one table-safe line.
func cleanDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
