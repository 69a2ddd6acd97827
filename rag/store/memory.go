package store

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/smallnest/ragpipe/log"
	"github.com/smallnest/ragpipe/rag"
)

// BM25Query describes a lexical retrieval.
type BM25Query struct {
	// Query is tokenized with Tokenize. An empty query scores every document 0.
	Query string

	// TopK is the maximum number of results. It must be positive.
	TopK int

	// Filters restricts the candidates to documents whose metadata matches every entry.
	Filters map[string]rag.Value

	// ScaleScore maps scores into (0, 1) with ScaleBM25.
	ScaleScore bool
}

// EmbeddingQuery describes a similarity retrieval.
type EmbeddingQuery struct {
	// Embedding is compared with every stored embedding of the same length.
	Embedding []float32

	// TopK is the maximum number of results. It must be positive.
	TopK int

	// Filters restricts the candidates to documents whose metadata matches every entry.
	Filters map[string]rag.Value

	// ScaleScore maps scores into [0, 1] with ScaleCosine.
	ScaleScore bool
}

// InMemoryDocumentStore keeps documents in insertion order, keyed by ID.
// Both retrievals scan the whole collection; there is no index.
//
// It is safe for concurrent use. A scan observes the store either entirely
// before or entirely after any concurrent write.
type InMemoryDocumentStore struct {
	mu    sync.RWMutex
	docs  []rag.Document
	index map[string]int

	bm25      bm25
	dimension int
	logger    log.Logger
}

// Option configures an InMemoryDocumentStore.
type Option func(*InMemoryDocumentStore)

// WithBM25Parameters overrides k1 and b.
func WithBM25Parameters(k1, b float64) Option {
	return func(s *InMemoryDocumentStore) {
		s.bm25 = bm25{k1: k1, b: b}
	}
}

// WithEmbeddingDimension makes Write reject embeddings whose length is not n.
func WithEmbeddingDimension(n int) Option {
	return func(s *InMemoryDocumentStore) {
		s.dimension = n
	}
}

// WithLogger sets the logger. By default the package-level logger is used.
func WithLogger(logger log.Logger) Option {
	return func(s *InMemoryDocumentStore) {
		s.logger = logger
	}
}

// NewInMemoryDocumentStore creates an empty store.
func NewInMemoryDocumentStore(opts ...Option) *InMemoryDocumentStore {
	s := &InMemoryDocumentStore{
		index: make(map[string]int),
		bm25:  bm25{k1: DefaultK1, b: DefaultB},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryDocumentStore) log() log.Logger {
	if s.logger != nil {
		return s.logger
	}
	return log.GetDefaultLogger()
}

// Write inserts documents, overwriting any stored document with the same ID in
// place. Documents without an ID get one derived from their content and metadata.
// Documents are copied; later changes by the caller are not visible to the store.
func (s *InMemoryDocumentStore) Write(ctx context.Context, docs []rag.Document) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prepared := make([]rag.Document, len(docs))
	for i, d := range docs {
		d = d.Clone()
		if d.ID == "" {
			d.ID = rag.DocumentID(d.Content, d.Meta)
		}
		if s.dimension > 0 && d.HasEmbedding() && len(d.Embedding) != s.dimension {
			return 0, &rag.DimensionMismatchError{DocumentID: d.ID, Expected: s.dimension, Actual: len(d.Embedding)}
		}
		d.Score = 0
		prepared[i] = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range prepared {
		if i, ok := s.index[d.ID]; ok {
			s.docs[i] = d
			continue
		}
		s.index[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
	}

	s.log().Debug("wrote %d documents, store holds %d", len(prepared), len(s.docs))
	return len(prepared), nil
}

// Scan yields copies of all documents in insertion order. Every call starts a
// fresh sequence over a snapshot taken when iteration begins.
func (s *InMemoryDocumentStore) Scan(ctx context.Context) iter.Seq[rag.Document] {
	return func(yield func(rag.Document) bool) {
		for _, d := range s.snapshot() {
			if ctx.Err() != nil {
				return
			}
			if !yield(d.Clone()) {
				return
			}
		}
	}
}

// Count returns the number of stored documents.
func (s *InMemoryDocumentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns a copy of the document stored under id.
func (s *InMemoryDocumentStore) Get(id string) (rag.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return rag.Document{}, false
	}
	return s.docs[i].Clone(), true
}

// snapshot returns the current documents. Stored documents are replaced, never
// mutated, so the returned slice stays consistent after the lock is released.
func (s *InMemoryDocumentStore) snapshot() []rag.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.docs)
}

// BM25Retrieval ranks documents against q.Query with BM25. The result holds
// min(q.TopK, candidates) entries in descending score order; equal scores keep
// insertion order.
func (s *InMemoryDocumentStore) BM25Retrieval(ctx context.Context, q BM25Query) ([]rag.DocumentSearchResult, error) {
	if q.TopK <= 0 {
		return nil, fmt.Errorf("%w: got %d", rag.ErrInvalidTopK, q.TopK)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := filterDocuments(s.snapshot(), q.Filters)
	scores := s.bm25.score(Tokenize(q.Query), docs)

	var scale func(float64) float64
	if q.ScaleScore {
		scale = ScaleBM25
	}
	return rank(docs, scores, q.TopK, scale), nil
}

// EmbeddingRetrieval ranks documents by cosine similarity to q.Embedding.
// Documents without an embedding are skipped. A stored embedding whose length
// differs from the query fails the retrieval with rag.ErrDimensionMismatch.
func (s *InMemoryDocumentStore) EmbeddingRetrieval(ctx context.Context, q EmbeddingQuery) ([]rag.DocumentSearchResult, error) {
	if q.TopK <= 0 {
		return nil, fmt.Errorf("%w: got %d", rag.ErrInvalidTopK, q.TopK)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := filterDocuments(s.snapshot(), q.Filters)
	docs := make([]rag.Document, 0, len(candidates))
	scores := make([]float64, 0, len(candidates))
	skipped := 0

	for _, d := range candidates {
		if !d.HasEmbedding() {
			skipped++
			continue
		}
		score, err := CosineSimilarity(q.Embedding, d.Embedding)
		if err != nil {
			return nil, &rag.DimensionMismatchError{DocumentID: d.ID, Expected: len(q.Embedding), Actual: len(d.Embedding)}
		}
		docs = append(docs, d)
		scores = append(scores, score)
	}

	if skipped > 0 {
		s.log().Warn("embedding retrieval skipped %d of %d documents without an embedding", skipped, len(candidates))
	}

	var scale func(float64) float64
	if q.ScaleScore {
		scale = ScaleCosine
	}
	return rank(docs, scores, q.TopK, scale), nil
}

// rank returns the topK highest scoring documents with a stable ordering.
func rank(docs []rag.Document, scores []float64, topK int, scale func(float64) float64) []rag.DocumentSearchResult {
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	k := min(topK, len(order))
	results := make([]rag.DocumentSearchResult, k)
	for i, j := range order[:k] {
		score := scores[j]
		if scale != nil {
			score = scale(score)
		}
		d := docs[j].Clone()
		d.Score = score
		results[i] = rag.DocumentSearchResult{Document: d, Score: score}
	}
	return results
}
