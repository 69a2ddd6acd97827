// Package splitter breaks long documents into smaller chunks before they are
// embedded or ranked.
package splitter

import (
	"context"
	"strings"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/rag"
)

// Metadata keys set on chunks.
const (
	MetaParentID   = "parent_id"
	MetaChunkIndex = "chunk_index"
	MetaChunkTotal = "chunk_total"
)

// TextSplitter splits text into chunks.
type TextSplitter interface {
	SplitText(text string) []string
}

// SplitDocuments splits every document with s. A document that fits in one
// chunk is returned unchanged. Chunks copy the parent's metadata and add its
// ID with the chunk position; their IDs are derived from content and metadata.
func SplitDocuments(s TextSplitter, docs []rag.Document) []rag.Document {
	out := make([]rag.Document, 0, len(docs))
	for _, doc := range docs {
		chunks := s.SplitText(doc.Content)
		if len(chunks) <= 1 {
			out = append(out, doc.Clone())
			continue
		}

		for i, chunk := range chunks {
			meta := doc.Meta.Clone()
			if meta == nil {
				meta = rag.NewMap()
			}
			meta.Set(MetaParentID, rag.String(doc.ID))
			meta.Set(MetaChunkIndex, rag.Number(float64(i)))
			meta.Set(MetaChunkTotal, rag.Number(float64(len(chunks))))
			out = append(out, rag.NewDocument(chunk, meta))
		}
	}
	return out
}

// Component is a pipeline component splitting the documents it receives.
//
//	inputs:  documents []rag.Document
//	outputs: documents []rag.Document
type Component struct {
	splitter TextSplitter
}

var _ graph.Component = (*Component)(nil)

// NewComponent creates a Component using s.
func NewComponent(s TextSplitter) *Component {
	return &Component{splitter: s}
}

// InputSockets implements graph.Component.
func (c *Component) InputSockets() []graph.InputSocket {
	return graph.Required("documents")
}

// OutputSockets implements graph.Component.
func (c *Component) OutputSockets() []string {
	return []string{"documents"}
}

// Run implements graph.Component.
func (c *Component) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	docs, err := graph.Input[[]rag.Document](inputs, "documents")
	if err != nil {
		return nil, err
	}
	return map[string]any{"documents": SplitDocuments(c.splitter, docs)}, nil
}

// WordSplitter splits text into windows of whole words.
type WordSplitter struct {
	size    int
	overlap int
}

var _ TextSplitter = (*WordSplitter)(nil)

// NewWordSplitter creates a splitter emitting chunks of at most size words,
// each sharing overlap words with the previous one. An overlap not smaller
// than size is ignored.
func NewWordSplitter(size, overlap int) *WordSplitter {
	if size <= 0 {
		size = 200
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &WordSplitter{size: size, overlap: overlap}
}

// SplitText implements TextSplitter. Whitespace inside a chunk is collapsed
// to single spaces.
func (s *WordSplitter) SplitText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; ; start += s.size - s.overlap {
		end := min(start+s.size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			return chunks
		}
	}
}

// RecursiveSplitter splits text on a list of separators, trying each in turn
// until every piece fits, and merges neighbouring pieces back up to the chunk
// size. Lengths are counted in runes.
type RecursiveSplitter struct {
	separators []string
	size       int
	overlap    int
}

var _ TextSplitter = (*RecursiveSplitter)(nil)

// RecursiveOption configures a RecursiveSplitter.
type RecursiveOption func(*RecursiveSplitter)

// WithSeparators replaces the default separators "\n\n", "\n", ". " and " ".
func WithSeparators(separators ...string) RecursiveOption {
	return func(s *RecursiveSplitter) {
		s.separators = separators
	}
}

// WithOverlap sets how many runes consecutive pieces share when text has to
// be cut without a separator.
func WithOverlap(n int) RecursiveOption {
	return func(s *RecursiveSplitter) {
		s.overlap = n
	}
}

// NewRecursiveSplitter creates a splitter producing chunks of at most size runes.
func NewRecursiveSplitter(size int, opts ...RecursiveOption) *RecursiveSplitter {
	s := &RecursiveSplitter{
		separators: []string{"\n\n", "\n", ". ", " "},
		size:       size,
	}
	if s.size <= 0 {
		s.size = 1000
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		s.overlap = 0
	}
	return s
}

// SplitText implements TextSplitter.
func (s *RecursiveSplitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	if runeLen(text) <= s.size {
		return []string{text}
	}
	if len(separators) == 0 || separators[0] == "" {
		return s.cut(text)
	}

	sep, rest := separators[0], separators[1:]
	var chunks, group []string
	for _, part := range strings.Split(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if runeLen(part) <= s.size {
			group = append(group, part)
			continue
		}
		chunks = append(chunks, s.merge(group, sep)...)
		group = nil
		chunks = append(chunks, s.split(part, rest)...)
	}
	return append(chunks, s.merge(group, sep)...)
}

// merge joins consecutive pieces with sep while they fit in one chunk.
func (s *RecursiveSplitter) merge(pieces []string, sep string) []string {
	var merged []string
	var current string
	for _, p := range pieces {
		switch {
		case current == "":
			current = p
		case runeLen(current)+runeLen(sep)+runeLen(p) <= s.size:
			current += sep + p
		default:
			merged = append(merged, current)
			current = p
		}
	}
	if current != "" {
		merged = append(merged, current)
	}
	return merged
}

// cut slices text into windows of size runes.
func (s *RecursiveSplitter) cut(text string) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; ; start += s.size - s.overlap {
		end := min(start+s.size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			return chunks
		}
	}
}

func runeLen(s string) int {
	return len([]rune(s))
}
