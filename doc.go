// ragpipe - Retrieval Augmented Generation Pipelines in Go
//
// ragpipe answers questions over a corpus of crawled web pages. Documents are
// loaded from a database, Redis or local files, kept in an in-memory document
// store, ranked against the question with BM25 or embedding similarity, rendered
// into a prompt, and sent to a language model. Every step is a component in a
// small pipeline graph that is wired by socket names and executed in
// dependency order.
//
// # Quick Start
//
// Install the command:
//
//	go install github.com/smallnest/ragpipe/cmd/ragpipe@latest
//
// Describe the corpus in ragpipe.yaml:
//
//	corpus:
//	  driver: sqlite
//	  dsn: crawl.db
//	retrieval:
//	  top_k: 5
//	generator:
//	  provider: ollama
//	  model: llama3
//
// Then ask:
//
//	ragpipe index
//	ragpipe query "Who lives in Berlin"
//	ragpipe draw --format dot
//
// Or use the library directly:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/ragpipe/prebuilt"
//		"github.com/smallnest/ragpipe/rag"
//		"github.com/smallnest/ragpipe/rag/generator"
//		"github.com/smallnest/ragpipe/rag/store"
//		"github.com/tmc/langchaingo/llms/ollama"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		s := store.NewInMemoryDocumentStore()
//		s.Write(ctx, []rag.Document{
//			rag.NewDocument("My name is Wolfgang and I live in Berlin", nil),
//			rag.NewDocument("I saw a black horse running", nil),
//		})
//
//		model, _ := ollama.New(ollama.WithModel("llama3"))
//		r, _ := prebuilt.NewLexicalRAG(s, generator.NewLangChain(model))
//
//		answer, _ := r.Query(ctx, "Who lives in Berlin")
//		fmt.Println(answer.Replies[0])
//	}
//
// # Packages
//
//   - graph: the pipeline engine, tracing and diagram export
//   - rag: documents, metadata values and shared errors
//   - rag/store: the in-memory document store with BM25 and cosine retrieval
//   - rag/retriever: BM25 and embedding retriever components
//   - rag/prompt: the prompt template language and the prompt builder component
//   - rag/embedder: query and document embedding components, OpenAI embedder
//   - rag/generator: the text generation component over langchaingo models
//   - rag/splitter: document chunking
//   - rag/loader: HTML, Markdown, text and static document loaders
//   - corpus: crawled page records and their PostgreSQL, SQLite and Redis sources
//   - prebuilt: ready-made lexical, embedding and indexing pipelines
//   - config: YAML configuration
//   - metrics: Prometheus metrics fed by pipeline traces
//   - log: leveled logging over golog or zap
//
// # Configuration
//
// Configuration values may reference the environment with ${VAR} or
// ${VAR:-default}. RAGPIPE_OPENAI_API_KEY overrides the api_key of OpenAI
// backed generators and embedders. The command loads a .env file first when
// one exists.
//
// # Observability
//
// Attach a graph.Tracer to a pipeline to receive spans for pipeline runs,
// component runs and values routed along edges. metrics.Collector turns those
// spans into Prometheus counters and histograms; ragpipe --metrics-addr serves
// them.
package ragpipe // import "github.com/smallnest/ragpipe"
