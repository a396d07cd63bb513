package util

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	htmlPolicy = bluemonday.UGCPolicy()
)

func init() {
	htmlPolicy.AddTargetBlankToFullyQualifiedLinks(true)
	htmlPolicy.RequireNoReferrerOnLinks(true)
}

// RenderMarkdown converts a markdown body to sanitized HTML
func RenderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		// Fall back to the escaped source
		return htmlPolicy.Sanitize(source)
	}
	return htmlPolicy.Sanitize(buf.String())
}
