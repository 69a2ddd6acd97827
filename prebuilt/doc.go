// Package prebuilt provides ready-to-use retrieval augmented generation pipelines.
//
// Each constructor wires components from the rag packages into a graph.Pipeline
// and returns a small wrapper that knows how to feed it. The underlying pipeline
// stays reachable through Pipeline for drawing, tracing or extension.
//
// # Lexical RAG
//
// NewLexicalRAG ranks stored documents with BM25 and renders them into
// DefaultTemplate before calling the generator:
//
//	retriever -> prompt_builder.documents -> llm
//
//	s := store.NewInMemoryDocumentStore()
//	s.Write(ctx, docs)
//
//	model, _ := ollama.New(ollama.WithModel("llama3"))
//	r, err := prebuilt.NewLexicalRAG(s, generator.NewLangChain(model), prebuilt.WithTopK(3))
//	if err != nil {
//		return err
//	}
//	answer, err := r.Query(ctx, "Who lives in Berlin")
//	fmt.Println(answer.Replies[0])
//
// # Embedding RAG
//
// NewEmbeddingRAG embeds the question first and ranks documents by cosine
// similarity. Documents must be indexed with the same embedder:
//
//	text_embedder.embedding -> retriever.query_embedding -> prompt_builder.documents -> llm
//
//	ix, _ := prebuilt.NewIndexing(s, emb)
//	ix.Run(ctx, docs)
//
//	r, _ := prebuilt.NewEmbeddingRAG(s, emb, gen)
//	answer, _ := r.Query(ctx, "Who lives in Berlin?")
//
// # Indexing
//
// NewIndexing embeds documents and writes them to a store, optionally
// splitting long pages into chunks first:
//
//	splitter -> document_embedder -> writer
//
//	ix, _ := prebuilt.NewIndexing(s, emb,
//		prebuilt.WithSplitter(splitter.NewWordSplitter(200, 20)),
//		prebuilt.WithEmbedding(embedder.WithMetaFields("title")),
//	)
//
// With a nil embedder the pipeline only writes, which is all lexical
// retrieval needs.
//
// # Options
//
// The question answering pipelines accept RAGOption values: WithTemplate,
// WithTopK, WithFilters, WithScaleScore, WithGeneration, WithParallel,
// WithTracer and WithLogger. A custom template must use the documents
// variable; the query variable is optional and receives the question.
package prebuilt
