// Package config loads the ragpipe YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/smallnest/ragpipe/log"
	"github.com/smallnest/ragpipe/rag"
	"github.com/smallnest/ragpipe/rag/store"
)

// EnvOpenAIKey overrides the api_key of OpenAI-backed generator and embedder.
const EnvOpenAIKey = "RAGPIPE_OPENAI_API_KEY"

// Config holds the ragpipe configuration.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Generator GeneratorConfig `yaml:"generator"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// CorpusConfig selects where documents come from.
type CorpusConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite postgres redis html markdown text"`

	// DSN is the connection string for postgres or the database path for sqlite.
	DSN string `yaml:"dsn"`

	// Table name for sqlite and postgres (default "pages").
	Table string `yaml:"table"`

	// Redis connection settings.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`

	// Paths lists files, glob patterns or URLs for the html, markdown and text drivers.
	Paths []string `yaml:"paths"`

	// ChunkWords splits documents into chunks of this many words when set.
	ChunkWords   int `yaml:"chunk_words" validate:"gte=0"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0"`
}

// RetrievalConfig configures the retriever.
type RetrievalConfig struct {
	Mode       string         `yaml:"mode" validate:"oneof=bm25 embedding"`
	TopK       int            `yaml:"top_k" validate:"gt=0"`
	K1         float64        `yaml:"k1" validate:"gte=0"`
	B          float64        `yaml:"b" validate:"gte=0,lte=1"`
	ScaleScore bool           `yaml:"scale_score"`
	Filters    map[string]any `yaml:"filters"`
}

// GeneratorConfig configures the text generation service.
type GeneratorConfig struct {
	Provider    string   `yaml:"provider" validate:"oneof=ollama openai"`
	Model       string   `yaml:"model" validate:"required"`
	URL         string   `yaml:"url" validate:"omitempty,url"`
	APIKey      string   `yaml:"api_key"`
	MaxTokens   int      `yaml:"max_tokens" validate:"gte=0"`
	Temperature float64  `yaml:"temperature" validate:"gte=0,lte=2"`
	StopWords   []string `yaml:"stop_words"`
}

// EmbedderConfig configures the embedding service used in embedding mode.
type EmbedderConfig struct {
	Provider   string   `yaml:"provider" validate:"oneof=ollama openai"`
	Model      string   `yaml:"model" validate:"required"`
	URL        string   `yaml:"url" validate:"omitempty,url"`
	APIKey     string   `yaml:"api_key"`
	Dimensions int      `yaml:"dimensions" validate:"gte=0"`
	BatchSize  int      `yaml:"batch_size" validate:"gte=0"`
	MetaFields []string `yaml:"meta_fields"`
}

// PromptConfig overrides the default prompt template.
type PromptConfig struct {
	Template     string `yaml:"template"`
	TemplateFile string `yaml:"template_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error none"`
	Format string `yaml:"format" validate:"oneof=golog zap"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns a configuration with every default applied and no corpus driver.
func Default() Config {
	cfg := newConfig()
	cfg.ApplyDefaults()
	return cfg
}

// newConfig presets the fields for which zero is a valid setting. YAML
// decoding leaves them untouched unless the file sets them.
func newConfig() Config {
	var cfg Config
	cfg.Retrieval.K1 = store.DefaultK1
	cfg.Retrieval.B = store.DefaultB
	cfg.Generator.Temperature = 0.9
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	if cfg.Prompt.TemplateFile != "" && !filepath.IsAbs(cfg.Prompt.TemplateFile) {
		cfg.Prompt.TemplateFile = filepath.Join(filepath.Dir(path), cfg.Prompt.TemplateFile)
	}
	return cfg, nil
}

// Parse decodes YAML configuration, expands ${VAR} and ${VAR:-default}
// references, applies defaults and environment overrides, and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	cfg := newConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values. K1, B and
// Temperature are preset by Parse and Default instead, so that an explicit
// zero survives.
func (c *Config) ApplyDefaults() {
	if c.Retrieval.Mode == "" {
		c.Retrieval.Mode = "bm25"
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 10
	}

	if c.Generator.Provider == "" {
		c.Generator.Provider = "ollama"
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "llama3"
	}
	if c.Generator.URL == "" && c.Generator.Provider == "ollama" {
		c.Generator.URL = "http://localhost:11434"
	}
	if c.Generator.MaxTokens == 0 {
		c.Generator.MaxTokens = 100
	}

	if c.Embedder.Provider == "" {
		c.Embedder.Provider = "ollama"
	}
	if c.Embedder.Model == "" {
		if c.Embedder.Provider == "openai" {
			c.Embedder.Model = "text-embedding-3-small"
		} else {
			c.Embedder.Model = "nomic-embed-text"
		}
	}
	if c.Embedder.URL == "" && c.Embedder.Provider == "ollama" {
		c.Embedder.URL = "http://localhost:11434"
	}
	if c.Embedder.BatchSize == 0 {
		c.Embedder.BatchSize = 32
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "golog"
	}
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	key := os.Getenv(EnvOpenAIKey)
	if key == "" {
		return
	}
	if c.Generator.Provider == "openai" {
		c.Generator.APIKey = key
	}
	if c.Embedder.Provider == "openai" {
		c.Embedder.APIKey = key
	}
}

var validate = newValidator()

// newValidator reports fields by their YAML path, e.g. "retrieval.top_k".
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and driver-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return newValidationError(errs)
		}
		return err
	}

	if c.Corpus.ChunkOverlap > 0 && c.Corpus.ChunkOverlap >= c.Corpus.ChunkWords {
		return &ValidationError{Fields: map[string]string{"corpus.chunk_overlap": "chunk_overlap must be smaller than chunk_words"}}
	}

	switch c.Corpus.Driver {
	case "postgres", "sqlite":
		if c.Corpus.DSN == "" {
			return &ValidationError{Fields: map[string]string{"corpus.dsn": "dsn is required for driver " + c.Corpus.Driver}}
		}
	case "redis":
		if c.Corpus.Addr == "" {
			return &ValidationError{Fields: map[string]string{"corpus.addr": "addr is required for driver redis"}}
		}
	case "html", "markdown", "text":
		if len(c.Corpus.Paths) == 0 {
			return &ValidationError{Fields: map[string]string{"corpus.paths": "paths are required for driver " + c.Corpus.Driver}}
		}
	}
	return nil
}

// FilterValues converts the configured filters to metadata values.
func (r RetrievalConfig) FilterValues() (map[string]rag.Value, error) {
	if len(r.Filters) == 0 {
		return nil, nil
	}
	out := make(map[string]rag.Value, len(r.Filters))
	for k, v := range r.Filters {
		val, err := rag.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("retrieval filter %s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() log.LogLevel {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

// Template returns the configured prompt template, reading TemplateFile if
// set. It returns "" when neither is configured.
func (c *Config) Template() (string, error) {
	if c.Prompt.Template != "" {
		return c.Prompt.Template, nil
	}
	if c.Prompt.TemplateFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Prompt.TemplateFile)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template: %w", err)
	}
	return string(data), nil
}

// ValidationError lists invalid fields with a message each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = e.Fields[k]
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for _, err := range errs {
		_, field, _ := strings.Cut(err.Namespace(), ".")
		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "gt":
			fields[field] = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "lte":
			fields[field] = fmt.Sprintf("%s must be less than or equal to %s", field, err.Param())
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, err.Tag())
		}
	}
	return &ValidationError{Fields: fields}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
