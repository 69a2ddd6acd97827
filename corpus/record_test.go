package corpus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragpipe/rag"
)

func metaTag(pairs ...string) rag.Value {
	m := rag.NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], rag.String(pairs[i+1]))
	}
	return rag.MapValue(m)
}

func TestRecordDocument(t *testing.T) {
	r := Record{
		ID:            "page-1",
		Content:       "Mark lives in Berlin.",
		Title:         "About Mark",
		URL:           "https://example.com/mark",
		LDJSONScripts: []string{`{"@type":"Person","name":"Mark"}`, `{broken`},
		ImageURLs:     []string{"https://example.com/mark.png"},
		PageHrefs:     []string{"https://example.com/"},
		LinkTags:      []rag.Value{metaTag("rel", "canonical", "href", "https://example.com/mark")},
		MetaTags:      []rag.Value{metaTag("name", "keywords", "content", "berlin")},
	}

	doc := r.Document()
	assert.Equal(t, "page-1", doc.ID)
	assert.Equal(t, "Mark lives in Berlin.", doc.Content)
	assert.Equal(t, []string{
		MetaTitle, MetaURL, MetaLDJSONScripts, MetaImageURLs, MetaPageHrefs, MetaLinkTags, MetaMetaTags,
	}, doc.Meta.Keys())

	scripts, _ := doc.Meta.Get(MetaLDJSONScripts)
	list, ok := scripts.AsList()
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, `{"@type":"Person","name":"Mark"}`, list[0].Text())

	broken, ok := list[1].AsMap()
	require.True(t, ok, "malformed script becomes an empty mapping")
	assert.Zero(t, broken.Len())

	tags, _ := doc.Meta.Get(MetaMetaTags)
	assert.Equal(t, `[{"name":"keywords","content":"berlin"}]`, tags.Text())
}

func TestRecordDocumentDerivedID(t *testing.T) {
	a := Record{Content: "same", Title: "t"}.Document()
	b := Record{Content: "same", Title: "t"}.Document()
	c := Record{Content: "same", Title: "other"}.Document()

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)

	empty := Record{}.Document()
	hrefs, _ := empty.Meta.Get(MetaPageHrefs)
	assert.Equal(t, "[]", hrefs.Text())
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"a":1,"b":[true,null]}`, `{"a":1,"b":[true,null]}`},
		{`[1,2]`, `[1,2]`},
		{`"text"`, `text`},
		{``, `{}`},
		{`{"a":`, `{}`},
		{`{} {}`, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStructured(tt.raw).Text())
		})
	}
}

func TestParseLists(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseStrings([]byte(`["a","b"]`)))
	assert.Nil(t, ParseStrings(nil))
	assert.Nil(t, ParseStrings([]byte(`not json`)))
	assert.Nil(t, ParseStrings([]byte(`[1,2]`)))

	values := ParseValues([]byte(`[{"name":"x"},"y"]`))
	require.Len(t, values, 2)
	assert.Equal(t, `{"name":"x"}`, values[0].Text())
	assert.Nil(t, ParseValues([]byte(`{"name":"x"}`)))
	assert.Nil(t, ParseValues([]byte(`[`)))

	assert.Equal(t, `[]`, string(EncodeStrings(nil)))
	assert.Equal(t, `["a"]`, string(EncodeStrings([]string{"a"})))
	assert.Equal(t, `[]`, string(EncodeValues(nil)))
	assert.Equal(t, `[{"k":"v"}]`, string(EncodeValues([]rag.Value{metaTag("k", "v")})))
}

type failingSource struct{}

func (failingSource) Records(ctx context.Context) ([]Record, error) {
	return nil, errors.New("connection refused")
}

func TestLoad(t *testing.T) {
	src := Records{{ID: "1", Content: "one"}, {ID: "2", Content: "two"}}

	docs, err := Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, "two", docs[1].Content)

	docs, err = NewLoader(src).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = Load(context.Background(), failingSource{})
	assert.ErrorContains(t, err, "connection refused")
}
