// Package render converts LLM markdown answers into HTML for the chat page.
package render

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// MarkdownToHTML renders markdown as HTML. Raw HTML in the input is not
// passed through. If conversion fails the text is returned escaped inside a
// <pre> block.
func MarkdownToHTML(markdown string) string {
	markdown = StripOuterCodeFence(markdown)
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "<pre>" + html.EscapeString(markdown) + "</pre>"
	}
	return buf.String()
}

// StripOuterCodeFence removes a ```markdown ... ``` wrapper that models
// sometimes put around the whole answer.
func StripOuterCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return s
	}

	firstNewline := strings.Index(trimmed, "\n")
	if firstNewline < 0 {
		return s
	}
	lang := strings.TrimSpace(trimmed[3:firstNewline])
	if lang != "" && lang != "markdown" && lang != "md" {
		return s
	}

	inner := trimmed[firstNewline+1 : len(trimmed)-3]
	if strings.Contains(inner, "```") {
		return s
	}
	return strings.TrimSpace(inner)
}
