package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/smallnest/ragpipe/rag"
)

// TextLoader loads plain text files, one document per file or per paragraph.
type TextLoader struct {
	paths           []string
	paragraphMarker string
}

var _ rag.DocumentLoader = (*TextLoader)(nil)

// TextLoaderOption configures the TextLoader.
type TextLoaderOption func(*TextLoader)

// WithParagraphs splits each file on marker, producing one document per
// non-empty paragraph. An empty marker means a blank line.
func WithParagraphs(marker string) TextLoaderOption {
	return func(l *TextLoader) {
		if marker == "" {
			marker = "\n\n"
		}
		l.paragraphMarker = marker
	}
}

// NewTextLoader creates a new TextLoader.
func NewTextLoader(paths []string, opts ...TextLoaderOption) *TextLoader {
	l := &TextLoader{paths: paths}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements rag.DocumentLoader. Documents carry the file path under
// "source" and, when split, the paragraph number under "paragraph".
func (l *TextLoader) Load(ctx context.Context) ([]rag.Document, error) {
	var docs []rag.Document
	for _, path := range l.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}

		if l.paragraphMarker == "" {
			meta := rag.NewMap()
			meta.Set("source", rag.String(path))
			docs = append(docs, rag.NewDocument(string(content), meta))
			continue
		}

		for i, paragraph := range strings.Split(string(content), l.paragraphMarker) {
			paragraph = strings.TrimSpace(paragraph)
			if paragraph == "" {
				continue
			}
			meta := rag.NewMap()
			meta.Set("source", rag.String(path))
			meta.Set("paragraph", rag.Number(float64(i)))
			docs = append(docs, rag.NewDocument(paragraph, meta))
		}
	}
	return docs, nil
}
