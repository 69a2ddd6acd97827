package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/smallnest/ragpipe/corpus"
	"github.com/smallnest/ragpipe/rag"
)

// MarkdownLoader loads Markdown files. Each file is rendered to HTML and then
// read like a web page, so headings, links and images land in the metadata.
type MarkdownLoader struct {
	paths []string
}

var (
	_ rag.DocumentLoader = (*MarkdownLoader)(nil)
	_ corpus.Source      = (*MarkdownLoader)(nil)
)

// NewMarkdownLoader creates a loader for the given files.
func NewMarkdownLoader(paths ...string) *MarkdownLoader {
	return &MarkdownLoader{paths: paths}
}

// Load implements rag.DocumentLoader.
func (l *MarkdownLoader) Load(ctx context.Context) ([]rag.Document, error) {
	return corpus.Load(ctx, l)
}

// Records implements corpus.Source.
func (l *MarkdownLoader) Records(ctx context.Context) ([]corpus.Record, error) {
	records := make([]corpus.Record, 0, len(l.paths))
	for _, path := range l.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		r, err := ParseHTML(bytes.NewReader(RenderMarkdown(data)), path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// RenderMarkdown converts Markdown to an HTML fragment.
func RenderMarkdown(src []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(src)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.Render(doc, renderer)
}
