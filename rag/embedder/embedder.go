// Package embedder turns text into vectors and provides the pipeline
// components that attach embeddings to queries and documents.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/rag"
)

// ErrEmbeddingCount is returned when a provider returns a different number of
// vectors than texts it was given.
var ErrEmbeddingCount = errors.New("embedding count mismatch")

// Embedder computes embeddings. Any langchaingo embeddings.Embedder satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

var _ Embedder = embeddings.Embedder(nil)

// TextEmbedder is a pipeline component embedding a query string.
//
//	inputs:  text string
//	outputs: embedding []float32
type TextEmbedder struct {
	embedder Embedder
}

var _ graph.Component = (*TextEmbedder)(nil)

// NewTextEmbedder creates a TextEmbedder.
func NewTextEmbedder(e Embedder) *TextEmbedder {
	return &TextEmbedder{embedder: e}
}

// InputSockets implements graph.Component.
func (t *TextEmbedder) InputSockets() []graph.InputSocket {
	return graph.Required("text")
}

// OutputSockets implements graph.Component.
func (t *TextEmbedder) OutputSockets() []string {
	return []string{"embedding"}
}

// Run implements graph.Component.
func (t *TextEmbedder) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	text, err := graph.Input[string](inputs, "text")
	if err != nil {
		return nil, err
	}
	vec, err := t.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return map[string]any{"embedding": vec}, nil
}

// DocumentEmbedder is a pipeline component attaching embeddings to documents.
//
//	inputs:  documents []rag.Document
//	outputs: documents []rag.Document, copies carrying their embedding
type DocumentEmbedder struct {
	embedder   Embedder
	metaFields []string
	batchSize  int
}

var _ graph.Component = (*DocumentEmbedder)(nil)

// DocumentOption configures a DocumentEmbedder.
type DocumentOption func(*DocumentEmbedder)

// WithMetaFields embeds the listed metadata values, one per line, ahead of the content.
func WithMetaFields(fields ...string) DocumentOption {
	return func(d *DocumentEmbedder) {
		d.metaFields = fields
	}
}

// WithBatchSize limits how many texts are sent to the provider per call.
func WithBatchSize(n int) DocumentOption {
	return func(d *DocumentEmbedder) {
		d.batchSize = n
	}
}

// NewDocumentEmbedder creates a DocumentEmbedder.
func NewDocumentEmbedder(e Embedder, opts ...DocumentOption) *DocumentEmbedder {
	d := &DocumentEmbedder{embedder: e, batchSize: 32}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InputSockets implements graph.Component.
func (d *DocumentEmbedder) InputSockets() []graph.InputSocket {
	return graph.Required("documents")
}

// OutputSockets implements graph.Component.
func (d *DocumentEmbedder) OutputSockets() []string {
	return []string{"documents"}
}

// Run implements graph.Component.
func (d *DocumentEmbedder) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	docs, err := graph.Input[[]rag.Document](inputs, "documents")
	if err != nil {
		return nil, err
	}
	embedded, err := d.Embed(ctx, docs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"documents": embedded}, nil
}

// Embed returns copies of docs with embeddings attached. All vectors must
// have the same length, otherwise rag.ErrDimensionMismatch is returned.
func (d *DocumentEmbedder) Embed(ctx context.Context, docs []rag.Document) ([]rag.Document, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = d.text(doc)
	}

	batch := d.batchSize
	if batch <= 0 {
		batch = len(texts)
	}

	out := make([]rag.Document, len(docs))
	dim := -1
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vecs, err := d.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: sent %d texts, got %d vectors", ErrEmbeddingCount, end-start, len(vecs))
		}

		for i, vec := range vecs {
			doc := docs[start+i].Clone()
			if dim < 0 {
				dim = len(vec)
			} else if len(vec) != dim {
				return nil, &rag.DimensionMismatchError{DocumentID: doc.ID, Expected: dim, Actual: len(vec)}
			}
			doc.Embedding = vec
			out[start+i] = doc
		}
	}
	return out, nil
}

func (d *DocumentEmbedder) text(doc rag.Document) string {
	if len(d.metaFields) == 0 {
		return doc.Content
	}
	var parts []string
	for _, field := range d.metaFields {
		if v, ok := doc.Meta.Get(field); ok && !v.IsNull() {
			parts = append(parts, v.Text())
		}
	}
	parts = append(parts, doc.Content)
	return strings.Join(parts, "\n")
}
