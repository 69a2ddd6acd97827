package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragpipe/rag"
)

func TestStaticDocumentLoader(t *testing.T) {
	ctx := context.Background()
	meta := rag.NewMap()
	meta.Set("lang", rag.String("en"))
	docs := []rag.Document{
		{ID: "1", Content: "static 1", Meta: meta},
		{ID: "2", Content: "static 2"},
	}

	loader := NewStaticDocumentLoader(docs)

	t.Run("Basic Load", func(t *testing.T) {
		loaded, err := loader.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, docs, loaded)
	})

	t.Run("Load with Metadata", func(t *testing.T) {
		extra := rag.NewMap()
		extra.Set("extra", rag.String("meta"))
		extra.Set("lang", rag.String("de"))

		loaded, err := loader.LoadWithMetadata(ctx, extra)
		require.NoError(t, err)
		require.Len(t, loaded, 2)

		assert.Equal(t, []string{"lang", "extra"}, loaded[0].Meta.Keys())
		v, _ := loaded[0].Meta.Get("lang")
		assert.Equal(t, "de", v.Text())
		v, _ = loaded[1].Meta.Get("extra")
		assert.Equal(t, "meta", v.Text())

		orig, _ := meta.Get("lang")
		assert.Equal(t, "en", orig.Text(), "source documents are not modified")
		assert.Nil(t, docs[1].Meta)
	})
}
