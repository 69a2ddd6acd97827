// RAG (Retrieval-Augmented Generation) Package
//
// The rag package holds the types shared by every retrieval component: the
// Document, its ordered metadata Map, the tagged metadata Value, search results
// and the errors reported across packages.
//
// # Documents
//
// A Document carries text content, metadata, an optional embedding and, once
// retrieved, a score. NewDocument derives a stable ID from content and
// metadata, so loading the same page twice yields the same ID:
//
//	meta := rag.NewMap()
//	meta.Set("title", rag.String("Wolfgang"))
//	meta.Set("url", rag.String("https://example.com/wolfgang"))
//	doc := rag.NewDocument("My name is Wolfgang and I live in Berlin", meta)
//
// # Metadata Values
//
// Value is a JSON-like tagged value: null, string, number, bool, list or map.
// Map keeps insertion order so prompts list metadata the way it was loaded.
// FromAny and ParseJSON build values from decoded Go data or raw JSON:
//
//	v, err := rag.ParseJSON([]byte(`{"@type":"Person","name":"Wolfgang"}`))
//	fmt.Println(v.Text()) // {"@type":"Person","name":"Wolfgang"}
//
// # Sub-packages
//
//   - store: InMemoryDocumentStore with BM25 and cosine similarity retrieval
//   - retriever: BM25Retriever and EmbeddingRetriever pipeline components
//   - prompt: template parsing and rendering, and the prompt Builder component
//   - embedder: TextEmbedder, DocumentEmbedder and an OpenAI embedder
//   - generator: the generation component over any langchaingo model
//   - splitter: word and recursive text splitters
//   - loader: HTML, Markdown, text and static document loaders
//
// # Building a Pipeline
//
//	s := store.NewInMemoryDocumentStore()
//	s.Write(ctx, docs)
//
//	p := graph.NewPipeline()
//	p.AddComponent("retriever", retriever.NewBM25Retriever(s, retriever.WithTopK(3)))
//	p.AddComponent("prompt_builder", prompt.NewTemplateBuilder(prompt.MustParse(source)))
//	p.AddComponent("llm", generator.NewComponent(gen, generator.Config{MaxTokens: 100}))
//	p.Connect("retriever", "prompt_builder.documents")
//	p.Connect("prompt_builder", "llm")
//
//	out, err := p.Run(ctx, graph.Inputs{
//		"retriever":      {"query": q},
//		"prompt_builder": {"query": q},
//	})
//
// The prebuilt package wires the common shapes for you.
package rag // import "github.com/smallnest/ragpipe/rag"
