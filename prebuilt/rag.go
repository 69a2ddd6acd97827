package prebuilt

import (
	"context"
	"fmt"
	"slices"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/log"
	"github.com/smallnest/ragpipe/rag"
	"github.com/smallnest/ragpipe/rag/embedder"
	"github.com/smallnest/ragpipe/rag/generator"
	"github.com/smallnest/ragpipe/rag/prompt"
	"github.com/smallnest/ragpipe/rag/retriever"
	"github.com/smallnest/ragpipe/rag/splitter"
	"github.com/smallnest/ragpipe/rag/store"
)

// DefaultTemplate asks the model to answer only from the retrieved documents,
// listing each document's content followed by its metadata.
const DefaultTemplate = `
Given only the following information, answer the question.
Ignore your own knowledge.

Context:
{% for document in documents %}
    {{ document.content }}
    Metadata:
    {% for key, value in document.meta.items() %}
        {{ key }}: {{ value }}
    {% endfor %}
{% endfor %}

Question: {{ query }}?
`

// Component names used by the prebuilt pipelines.
const (
	TextEmbedder     = "text_embedder"
	Retriever        = "retriever"
	PromptBuilder    = "prompt_builder"
	LLM              = "llm"
	Splitter         = "splitter"
	DocumentEmbedder = "document_embedder"
	Writer           = "writer"
)

// RAGConfig configures a question answering pipeline.
type RAGConfig struct {
	// Template is the prompt template. It must use the documents variable and
	// may use query.
	Template string

	TopK       int
	Filters    map[string]rag.Value
	ScaleScore bool

	Generation generator.Config

	Parallel bool
	Tracer   *graph.Tracer
	Logger   log.Logger
}

// DefaultRAGConfig returns the configuration used when no option is given.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		Template: DefaultTemplate,
		TopK:     retriever.DefaultTopK,
		Generation: generator.Config{
			MaxTokens:   100,
			Temperature: 0.9,
		},
	}
}

// RAGOption configures a RAG pipeline.
type RAGOption func(*RAGConfig)

// WithTemplate replaces DefaultTemplate.
func WithTemplate(source string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = source
	}
}

// WithTopK sets how many documents are retrieved per question.
func WithTopK(k int) RAGOption {
	return func(c *RAGConfig) {
		c.TopK = k
	}
}

// WithFilters restricts retrieval to documents whose metadata match filters.
func WithFilters(filters map[string]rag.Value) RAGOption {
	return func(c *RAGConfig) {
		c.Filters = filters
	}
}

// WithScaleScore maps retrieval scores into [0, 1].
func WithScaleScore() RAGOption {
	return func(c *RAGConfig) {
		c.ScaleScore = true
	}
}

// WithGeneration sets the generation parameters passed to the generator.
func WithGeneration(cfg generator.Config) RAGOption {
	return func(c *RAGConfig) {
		c.Generation = cfg
	}
}

// WithParallel runs independent components concurrently.
func WithParallel() RAGOption {
	return func(c *RAGConfig) {
		c.Parallel = true
	}
}

// WithTracer attaches a tracer to the pipeline.
func WithTracer(tracer *graph.Tracer) RAGOption {
	return func(c *RAGConfig) {
		c.Tracer = tracer
	}
}

// WithLogger sets the logger of the pipeline and its generator.
func WithLogger(logger log.Logger) RAGOption {
	return func(c *RAGConfig) {
		c.Logger = logger
	}
}

// RAG answers questions from the documents of a store.
type RAG struct {
	pipeline *graph.Pipeline
	entry    string
	entryIn  string
	hasQuery bool
}

// Answer is the result of a question.
type Answer struct {
	Replies   []string
	Documents []rag.Document
	Prompt    string
}

// NewLexicalRAG builds a pipeline ranking documents with BM25:
//
//	retriever -> prompt_builder.documents -> llm
func NewLexicalRAG(s retriever.BM25Searcher, g generator.Generator, opts ...RAGOption) (*RAG, error) {
	if s == nil {
		return nil, fmt.Errorf("document store is required for lexical RAG")
	}
	if g == nil {
		return nil, fmt.Errorf("generator is required for lexical RAG")
	}
	cfg := newRAGConfig(opts)

	p := graph.NewPipeline(cfg.pipelineOptions()...)
	if err := p.AddComponent(Retriever, retriever.NewBM25Retriever(s, cfg.retrieverOptions()...)); err != nil {
		return nil, err
	}
	r, err := finish(p, cfg, g)
	if err != nil {
		return nil, err
	}
	r.entry, r.entryIn = Retriever, "query"
	return r, nil
}

// NewEmbeddingRAG builds a pipeline ranking documents by similarity to the
// question's embedding:
//
//	text_embedder.embedding -> retriever.query_embedding -> prompt_builder.documents -> llm
func NewEmbeddingRAG(s retriever.EmbeddingSearcher, e embedder.Embedder, g generator.Generator, opts ...RAGOption) (*RAG, error) {
	if s == nil {
		return nil, fmt.Errorf("document store is required for embedding RAG")
	}
	if e == nil {
		return nil, fmt.Errorf("embedder is required for embedding RAG")
	}
	if g == nil {
		return nil, fmt.Errorf("generator is required for embedding RAG")
	}
	cfg := newRAGConfig(opts)

	p := graph.NewPipeline(cfg.pipelineOptions()...)
	if err := p.AddComponent(TextEmbedder, embedder.NewTextEmbedder(e)); err != nil {
		return nil, err
	}
	if err := p.AddComponent(Retriever, retriever.NewEmbeddingRetriever(s, cfg.retrieverOptions()...)); err != nil {
		return nil, err
	}
	if err := p.Connect(TextEmbedder+".embedding", Retriever+".query_embedding"); err != nil {
		return nil, err
	}
	r, err := finish(p, cfg, g)
	if err != nil {
		return nil, err
	}
	r.entry, r.entryIn = TextEmbedder, "text"
	return r, nil
}

func newRAGConfig(opts []RAGOption) RAGConfig {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c RAGConfig) pipelineOptions() []graph.Option {
	var opts []graph.Option
	if c.Parallel {
		opts = append(opts, graph.WithParallel())
	}
	if c.Tracer != nil {
		opts = append(opts, graph.WithTracer(c.Tracer))
	}
	if c.Logger != nil {
		opts = append(opts, graph.WithLogger(c.Logger))
	}
	return opts
}

func (c RAGConfig) retrieverOptions() []retriever.Option {
	opts := []retriever.Option{retriever.WithTopK(c.TopK)}
	if len(c.Filters) > 0 {
		opts = append(opts, retriever.WithFilters(c.Filters))
	}
	if c.ScaleScore {
		opts = append(opts, retriever.WithScaleScore())
	}
	return opts
}

// finish adds the prompt builder and the generator behind the retriever.
func finish(p *graph.Pipeline, cfg RAGConfig, g generator.Generator) (*RAG, error) {
	builder, err := prompt.NewBuilder(cfg.Template, prompt.WithOptionalVariables("query"))
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}
	vars := builder.Template().Variables()
	if !slices.Contains(vars, "documents") {
		return nil, fmt.Errorf("prompt template must use the documents variable")
	}

	llm := generator.NewComponent(g, cfg.Generation)
	if cfg.Logger != nil {
		llm = llm.WithLogger(cfg.Logger)
	}

	if err := p.AddComponent(PromptBuilder, builder); err != nil {
		return nil, err
	}
	if err := p.AddComponent(LLM, llm); err != nil {
		return nil, err
	}
	if err := p.Connect(Retriever, PromptBuilder+".documents"); err != nil {
		return nil, err
	}
	if err := p.Connect(PromptBuilder, LLM); err != nil {
		return nil, err
	}
	return &RAG{pipeline: p, hasQuery: slices.Contains(vars, "query")}, nil
}

// Pipeline returns the underlying pipeline.
func (r *RAG) Pipeline() *graph.Pipeline {
	return r.pipeline
}

// Query feeds question to both the retrieval entry point and the prompt
// builder, and returns the generated replies.
func (r *RAG) Query(ctx context.Context, question string) (*Answer, error) {
	inputs := graph.Inputs{r.entry: {r.entryIn: question}}
	if r.hasQuery {
		inputs[PromptBuilder] = map[string]any{"query": question}
	}

	out, err := r.pipeline.Run(ctx, inputs)
	if err != nil {
		return nil, err
	}

	var answer Answer
	if v, ok := out.Get(LLM, "replies"); ok {
		answer.Replies, _ = v.([]string)
	}
	if v, ok := out.Get(Retriever, "documents"); ok {
		answer.Documents, _ = v.([]rag.Document)
	}
	if v, ok := out.Get(PromptBuilder, "prompt"); ok {
		answer.Prompt, _ = v.(string)
	}
	return &answer, nil
}

// Indexing writes documents into a store, optionally splitting and embedding
// them first:
//
//	splitter -> document_embedder -> writer
type Indexing struct {
	pipeline *graph.Pipeline
	entry    string
}

// IndexingOption configures an indexing pipeline.
type IndexingOption func(*indexingConfig)

type indexingConfig struct {
	splitter  splitter.TextSplitter
	embedding []embedder.DocumentOption
}

// WithSplitter splits documents into chunks before they are embedded and written.
func WithSplitter(s splitter.TextSplitter) IndexingOption {
	return func(c *indexingConfig) {
		c.splitter = s
	}
}

// WithEmbedding configures the document embedder.
func WithEmbedding(opts ...embedder.DocumentOption) IndexingOption {
	return func(c *indexingConfig) {
		c.embedding = append(c.embedding, opts...)
	}
}

// NewIndexing builds an indexing pipeline. A nil embedder leaves documents
// without embeddings, which is all lexical retrieval needs.
func NewIndexing(w store.DocumentWriter, e embedder.Embedder, opts ...IndexingOption) (*Indexing, error) {
	if w == nil {
		return nil, fmt.Errorf("document store is required for indexing")
	}
	var cfg indexingConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	type stage struct {
		name      string
		component graph.Component
	}
	var stages []stage
	if cfg.splitter != nil {
		stages = append(stages, stage{Splitter, splitter.NewComponent(cfg.splitter)})
	}
	if e != nil {
		stages = append(stages, stage{DocumentEmbedder, embedder.NewDocumentEmbedder(e, cfg.embedding...)})
	}
	stages = append(stages, stage{Writer, store.NewWriter(w)})

	p := graph.NewPipeline()
	for i, st := range stages {
		if err := p.AddComponent(st.name, st.component); err != nil {
			return nil, err
		}
		if i > 0 {
			if err := p.Connect(stages[i-1].name, st.name); err != nil {
				return nil, err
			}
		}
	}
	return &Indexing{pipeline: p, entry: stages[0].name}, nil
}

// Pipeline returns the underlying pipeline.
func (ix *Indexing) Pipeline() *graph.Pipeline {
	return ix.pipeline
}

// Run indexes docs and returns the number of documents written.
func (ix *Indexing) Run(ctx context.Context, docs []rag.Document) (int, error) {
	out, err := ix.pipeline.Run(ctx, graph.Inputs{ix.entry: {"documents": docs}})
	if err != nil {
		return 0, err
	}
	v, _ := out.Get(Writer, "documents_written")
	n, _ := v.(int)
	return n, nil
}
