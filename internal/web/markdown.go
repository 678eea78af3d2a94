package web

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML is never passed through (no html.WithUnsafe) in either renderer.
var (
	// Descriptions are documents: soft line breaks join paragraphs.
	descriptionMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer, emoji.Emoji),
	)
	// Comments are typed like chat messages, so every newline is kept.
	commentMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, emoji.Emoji),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
)

func renderDescription(src string) template.HTML { return renderWith(descriptionMarkdown, src) }

func renderComment(src string) template.HTML { return renderWith(commentMarkdown, src) }

func renderWith(md goldmark.Markdown, src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var b bytes.Buffer
	if err := md.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(b.String())
}
