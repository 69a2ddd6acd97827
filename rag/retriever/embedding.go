package retriever

import (
	"context"
	"fmt"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/rag"
	"github.com/smallnest/ragpipe/rag/store"
)

// EmbeddingSearcher runs similarity retrievals.
type EmbeddingSearcher interface {
	EmbeddingRetrieval(ctx context.Context, q store.EmbeddingQuery) ([]rag.DocumentSearchResult, error)
}

// EmbeddingRetriever is a pipeline component ranking stored documents by
// cosine similarity to a query embedding.
//
//	inputs:  query_embedding []float32, top_k int (optional), filters map[string]rag.Value (optional)
//	outputs: documents []rag.Document, each with Score set
type EmbeddingRetriever struct {
	store  EmbeddingSearcher
	config Config
}

var _ graph.Component = (*EmbeddingRetriever)(nil)

// NewEmbeddingRetriever creates an EmbeddingRetriever over s.
func NewEmbeddingRetriever(s EmbeddingSearcher, opts ...Option) *EmbeddingRetriever {
	return &EmbeddingRetriever{store: s, config: newConfig(opts)}
}

// InputSockets implements graph.Component.
func (r *EmbeddingRetriever) InputSockets() []graph.InputSocket {
	return append([]graph.InputSocket{{Name: "query_embedding"}}, optionalSockets...)
}

// OutputSockets implements graph.Component.
func (r *EmbeddingRetriever) OutputSockets() []string {
	return []string{"documents"}
}

// Run implements graph.Component.
func (r *EmbeddingRetriever) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	embedding, err := graph.Input[[]float32](inputs, "query_embedding")
	if err != nil {
		return nil, err
	}
	topK, filters, err := r.config.resolve(inputs)
	if err != nil {
		return nil, err
	}

	results, err := r.store.EmbeddingRetrieval(ctx, store.EmbeddingQuery{
		Embedding:  embedding,
		TopK:       topK,
		Filters:    filters,
		ScaleScore: r.config.ScaleScore,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding retrieval: %w", err)
	}
	return map[string]any{"documents": rag.Documents(results)}, nil
}
