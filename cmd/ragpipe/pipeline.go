package main

import (
	"context"
	"fmt"

	"github.com/smallnest/ragpipe/prebuilt"
	"github.com/smallnest/ragpipe/rag"
	"github.com/smallnest/ragpipe/rag/embedder"
	"github.com/smallnest/ragpipe/rag/splitter"
	"github.com/smallnest/ragpipe/rag/store"
)

func (a *app) newStore() *store.InMemoryDocumentStore {
	opts := []store.Option{
		store.WithBM25Parameters(a.cfg.Retrieval.K1, a.cfg.Retrieval.B),
		store.WithLogger(a.logger),
	}
	if a.cfg.Embedder.Dimensions > 0 {
		opts = append(opts, store.WithEmbeddingDimension(a.cfg.Embedder.Dimensions))
	}
	return store.NewInMemoryDocumentStore(opts...)
}

func (a *app) embeddingMode() bool {
	return a.cfg.Retrieval.Mode == "embedding"
}

// loadCorpus reads every document of the configured corpus.
func (a *app) loadCorpus(ctx context.Context) ([]rag.Document, error) {
	l, closer, err := a.services.loader(ctx, a.cfg.Corpus)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer closer.Close()

	docs, err := l.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	a.logger.Debug("loaded %d documents from %s corpus", len(docs), a.cfg.Corpus.Driver)
	return docs, nil
}

// index loads the corpus into a fresh store, embedding documents in
// embedding mode, and returns the store with the number of documents written.
func (a *app) index(ctx context.Context) (*store.InMemoryDocumentStore, []rag.Document, int, error) {
	docs, err := a.loadCorpus(ctx)
	if err != nil {
		return nil, nil, 0, err
	}

	s := a.newStore()
	var emb embedder.Embedder
	if a.embeddingMode() {
		if emb, err = a.services.embedder(a.cfg.Embedder); err != nil {
			return nil, nil, 0, err
		}
	}
	opts := []prebuilt.IndexingOption{
		prebuilt.WithEmbedding(
			embedder.WithMetaFields(a.cfg.Embedder.MetaFields...),
			embedder.WithBatchSize(a.cfg.Embedder.BatchSize),
		),
	}
	if a.cfg.Corpus.ChunkWords > 0 {
		opts = append(opts, prebuilt.WithSplitter(splitter.NewWordSplitter(a.cfg.Corpus.ChunkWords, a.cfg.Corpus.ChunkOverlap)))
	}
	ix, err := prebuilt.NewIndexing(s, emb, opts...)
	if err != nil {
		return nil, nil, 0, err
	}
	n, err := ix.Run(ctx, docs)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to index corpus: %w", err)
	}
	return s, docs, n, nil
}

// newRAG builds the question answering pipeline over s.
func (a *app) newRAG(s *store.InMemoryDocumentStore) (*prebuilt.RAG, error) {
	gen, err := a.services.generator(a.cfg.Generator)
	if err != nil {
		return nil, err
	}
	filters, err := a.cfg.Retrieval.FilterValues()
	if err != nil {
		return nil, err
	}
	tmpl, err := a.cfg.Template()
	if err != nil {
		return nil, err
	}

	opts := []prebuilt.RAGOption{
		prebuilt.WithTopK(a.cfg.Retrieval.TopK),
		prebuilt.WithGeneration(generationConfig(a.cfg.Generator)),
		prebuilt.WithLogger(a.logger),
	}
	if len(filters) > 0 {
		opts = append(opts, prebuilt.WithFilters(filters))
	}
	if a.cfg.Retrieval.ScaleScore {
		opts = append(opts, prebuilt.WithScaleScore())
	}
	if tmpl != "" {
		opts = append(opts, prebuilt.WithTemplate(tmpl))
	}
	if a.tracer != nil {
		opts = append(opts, prebuilt.WithTracer(a.tracer))
	}

	if !a.embeddingMode() {
		return prebuilt.NewLexicalRAG(s, gen, opts...)
	}
	emb, err := a.services.embedder(a.cfg.Embedder)
	if err != nil {
		return nil, err
	}
	return prebuilt.NewEmbeddingRAG(s, emb, gen, opts...)
}
