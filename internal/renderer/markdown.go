package renderer

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// copyMarkdown converts page copy bodies. Raw HTML stays disabled since
// copy arrives from a remote source.
var copyMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// markdownToHTML renders a Markdown copy body to HTML.
func markdownToHTML(body string) (string, error) {
	if body == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := copyMarkdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("failed to convert copy body: %w", err)
	}
	return buf.String(), nil
}
