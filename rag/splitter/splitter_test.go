package splitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/rag"
)

func TestWordSplitter(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{"fits", 5, 0, "one two  three", []string{"one two three"}},
		{"windows", 3, 0, "a b c d e f g", []string{"a b c", "d e f", "g"}},
		{"overlap", 4, 2, "a b c d e f", []string{"a b c d", "c d e f"}},
		{"overlap too large", 2, 2, "a b c", []string{"a b", "c"}},
		{"empty", 3, 0, "  \n ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewWordSplitter(tt.size, tt.overlap).SplitText(tt.text))
		})
	}
}

func TestRecursiveSplitter(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		assert.Equal(t, []string{"short"}, NewRecursiveSplitter(10).SplitText("short"))
	})

	t.Run("separators", func(t *testing.T) {
		s := NewRecursiveSplitter(10, WithSeparators("\n"))
		assert.Equal(t, []string{"part1", "part2", "part3"}, s.SplitText("part1\npart2\npart3"))
	})

	t.Run("merges small pieces", func(t *testing.T) {
		s := NewRecursiveSplitter(11)
		assert.Equal(t, []string{"aa bb cc dd", "ee"}, s.SplitText("aa bb cc dd ee"))
	})

	t.Run("falls back to runes", func(t *testing.T) {
		s := NewRecursiveSplitter(10, WithSeparators())
		assert.Equal(t, []string{"1234567890", "abcdefghij"}, s.SplitText("1234567890abcdefghij"))
	})

	t.Run("rune overlap", func(t *testing.T) {
		s := NewRecursiveSplitter(4, WithSeparators(), WithOverlap(2))
		assert.Equal(t, []string{"äöüß", "üßab"}, s.SplitText("äöüßab"))
	})

	t.Run("paragraphs first", func(t *testing.T) {
		s := NewRecursiveSplitter(20)
		chunks := s.SplitText("first paragraph\n\nsecond paragraph here")
		assert.Equal(t, []string{"first paragraph", "second paragraph", "here"}, chunks)
	})
}

func TestSplitDocuments(t *testing.T) {
	meta := rag.NewMap()
	meta.Set("title", rag.String("Horses"))
	long := rag.NewDocument("a b c d e", meta)
	short := rag.NewDocument("tiny", nil)

	out := SplitDocuments(NewWordSplitter(2, 0), []rag.Document{long, short})
	require.Len(t, out, 4)

	for i, want := range []string{"a b", "c d", "e"} {
		chunk := out[i]
		assert.Equal(t, want, chunk.Content)
		assert.NotEqual(t, long.ID, chunk.ID)

		parent, _ := chunk.Meta.Get(MetaParentID)
		assert.Equal(t, long.ID, parent.Text())
		index, _ := chunk.Meta.Get(MetaChunkIndex)
		assert.True(t, index.Equal(rag.Number(float64(i))))
		total, _ := chunk.Meta.Get(MetaChunkTotal)
		assert.True(t, total.Equal(rag.Number(3)))
		title, _ := chunk.Meta.Get("title")
		assert.Equal(t, "Horses", title.Text())
	}
	assert.Equal(t, short, out[3])
	assert.Equal(t, 1, meta.Len(), "parent metadata is not modified")
}

func TestComponentInPipeline(t *testing.T) {
	p := graph.NewPipeline()
	require.NoError(t, p.AddComponent("splitter", NewComponent(NewWordSplitter(3, 1))))

	out, err := p.Run(context.Background(), graph.Inputs{
		"splitter": {"documents": []rag.Document{rag.NewDocument("one two three four five", nil)}},
	})
	require.NoError(t, err)

	v, ok := out.Get("splitter", "documents")
	require.True(t, ok)
	docs := v.([]rag.Document)
	require.Len(t, docs, 2)
	assert.Equal(t, "one two three", docs[0].Content)
	assert.Equal(t, "three four five", docs[1].Content)

	_, err = p.Run(context.Background(), graph.Inputs{"splitter": {"documents": "nope"}})
	assert.ErrorIs(t, err, graph.ErrInputType)
}
