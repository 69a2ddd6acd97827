package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragpipe/log"
	"github.com/smallnest/ragpipe/rag"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("corpus:\n  driver: sqlite\n  dsn: crawl.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "bm25", cfg.Retrieval.Mode)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 1.2, cfg.Retrieval.K1)
	assert.Equal(t, 0.75, cfg.Retrieval.B)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, "llama3", cfg.Generator.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Generator.URL)
	assert.Equal(t, 100, cfg.Generator.MaxTokens)
	assert.Equal(t, 0.9, cfg.Generator.Temperature)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, 32, cfg.Embedder.BatchSize)
	assert.Equal(t, log.LogLevelInfo, cfg.LogLevel())
	assert.Equal(t, "golog", cfg.Log.Format)
}

func TestParseExplicitZero(t *testing.T) {
	cfg, err := Parse([]byte(`
corpus:
  driver: sqlite
  dsn: crawl.db
retrieval:
  b: 0
  k1: 0
generator:
  temperature: 0
`))
	require.NoError(t, err)

	assert.Zero(t, cfg.Retrieval.B)
	assert.Zero(t, cfg.Retrieval.K1)
	assert.Zero(t, cfg.Generator.Temperature)

	def := Default()
	assert.Equal(t, 1.2, def.Retrieval.K1)
	assert.Equal(t, 0.75, def.Retrieval.B)
	assert.Equal(t, 0.9, def.Generator.Temperature)
}

func TestParseFull(t *testing.T) {
	t.Setenv("RAGPIPE_TEST_DSN", "postgres://crawler@db/web")

	cfg, err := Parse([]byte(`
corpus:
  driver: postgres
  dsn: ${RAGPIPE_TEST_DSN}
  table: ${RAGPIPE_TEST_TABLE:-crawl}
retrieval:
  mode: embedding
  top_k: 3
  k1: 1.5
  b: 0.5
  scale_score: true
  filters:
    lang: en
    tags: [a, b]
generator:
  provider: openai
  model: gpt-4o-mini
  max_tokens: 400
  temperature: 0.2
  stop_words: ["\n\n"]
embedder:
  provider: openai
  dimensions: 256
  meta_fields: [title]
log:
  level: debug
  format: zap
metrics:
  addr: localhost:9090
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres://crawler@db/web", cfg.Corpus.DSN)
	assert.Equal(t, "crawl", cfg.Corpus.Table)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.True(t, cfg.Retrieval.ScaleScore)
	assert.Empty(t, cfg.Generator.URL)
	assert.Equal(t, []string{"\n\n"}, cfg.Generator.StopWords)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, log.LogLevelDebug, cfg.LogLevel())
	assert.Equal(t, "localhost:9090", cfg.Metrics.Addr)

	filters, err := cfg.Retrieval.FilterValues()
	require.NoError(t, err)
	assert.True(t, filters["lang"].Equal(rag.String("en")))
	assert.True(t, filters["tags"].Equal(rag.Strings("a", "b")))
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-env")

	cfg, err := Parse([]byte(`
corpus: {driver: redis, addr: "localhost:6379"}
generator: {provider: openai, model: gpt-4o-mini, api_key: sk-file}
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Generator.APIKey)
	assert.Empty(t, cfg.Embedder.APIKey, "ollama embedder takes no key")
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing driver", "retrieval: {top_k: 3}", "corpus.driver"},
		{"unknown driver", "corpus: {driver: mongo}", "corpus.driver"},
		{"negative top_k", "corpus: {driver: html, paths: [a.html]}\nretrieval: {top_k: -1}", "retrieval.top_k"},
		{"bad b", "corpus: {driver: html, paths: [a.html]}\nretrieval: {b: 2}", "retrieval.b"},
		{"bad mode", "corpus: {driver: html, paths: [a.html]}\nretrieval: {mode: hybrid}", "retrieval.mode"},
		{"bad log level", "corpus: {driver: html, paths: [a.html]}\nlog: {level: loud}", "log.level"},
		{"sqlite without dsn", "corpus: {driver: sqlite}", "corpus.dsn"},
		{"redis without addr", "corpus: {driver: redis}", "corpus.addr"},
		{"markdown without paths", "corpus: {driver: markdown}", "corpus.paths"},
		{"overlap without chunks", "corpus: {driver: text, paths: [a.txt], chunk_overlap: 5}", "corpus.chunk_overlap"},
		{"overlap too large", "corpus: {driver: text, paths: [a.txt], chunk_words: 5, chunk_overlap: 5}", "corpus.chunk_overlap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	_, err := Parse([]byte("corpus: [not a map"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoadAndTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompt.tmpl"), []byte("Q: {{ query }}"), 0o644))
	path := filepath.Join(dir, "ragpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
corpus: {driver: text, paths: [notes.txt]}
prompt: {template_file: prompt.tmpl}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	tmpl, err := cfg.Template()
	require.NoError(t, err)
	assert.Equal(t, "Q: {{ query }}", tmpl)

	cfg.Prompt.Template = "inline"
	tmpl, err = cfg.Template()
	require.NoError(t, err)
	assert.Equal(t, "inline", tmpl)

	empty := Default()
	tmpl, err = empty.Template()
	require.NoError(t, err)
	assert.Empty(t, tmpl)

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
