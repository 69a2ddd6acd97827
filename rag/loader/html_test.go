package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragpipe/corpus"
)

const page = `<!DOCTYPE html>
<html>
<head>
	<title> Mark's Page </title>
	<meta charset="utf-8">
	<meta name="keywords" content="berlin, horses">
	<link rel="canonical" href="https://example.com/mark">
	<script type="application/ld+json">{"@type":"Person","name":"Mark"}</script>
	<script type="application/ld+json">{not json</script>
	<script>console.log('test');</script>
	<style>body { color: blue; }</style>
</head>
<body>
	<h1>About &amp; more</h1>
	<p>My name is Mark</p><p>and I live in Berlin.</p>
	<img src="/img/mark.png">
	<a href="friends.html">Friends</a>
	<a href="#top">Top</a>
	<a href="https://other.example.org/">Other</a>
	<script>alert('test');</script>
	<noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestParseHTML(t *testing.T) {
	r, err := ParseHTML(strings.NewReader(page), "https://example.com/people/mark.html")
	require.NoError(t, err)

	assert.Equal(t, "Mark's Page", r.Title)
	assert.Equal(t, "https://example.com/people/mark.html", r.URL)
	assert.Equal(t, "About & more My name is Mark and I live in Berlin. Friends Top Other", r.Content)
	assert.NotContains(t, r.Content, "console.log")
	assert.NotContains(t, r.Content, "color: blue")

	assert.Equal(t, []string{`{"@type":"Person","name":"Mark"}`, `{not json`}, r.LDJSONScripts)
	assert.Equal(t, []string{"https://example.com/img/mark.png"}, r.ImageURLs)
	assert.Equal(t, []string{"https://example.com/people/friends.html", "https://other.example.org/"}, r.PageHrefs)

	require.Len(t, r.LinkTags, 1)
	assert.Equal(t, `{"rel":"canonical","href":"https://example.com/mark"}`, r.LinkTags[0].Text())
	require.Len(t, r.MetaTags, 2)
	assert.Equal(t, `{"charset":"utf-8"}`, r.MetaTags[0].Text())
	assert.Equal(t, `{"name":"keywords","content":"berlin, horses"}`, r.MetaTags[1].Text())

	doc := r.Document()
	scripts, _ := doc.Meta.Get(corpus.MetaLDJSONScripts)
	assert.Equal(t, `[{"@type":"Person","name":"Mark"},{}]`, scripts.Text())
}

func TestParseHTMLRelativeBase(t *testing.T) {
	r, err := ParseHTML(strings.NewReader(`<body><h1>Heading</h1><a href="x.html">x</a></body>`), "pages/a.html")
	require.NoError(t, err)
	assert.Equal(t, "Heading", r.Title, "first heading when there is no title")
	assert.Equal(t, []string{"x.html"}, r.PageHrefs)
}

func TestHTMLLoaderFiles(t *testing.T) {
	path := writeFile(t, "mark.html", page)

	loader := NewHTMLLoader([]string{path})
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	title, _ := docs[0].Meta.Get(corpus.MetaTitle)
	assert.Equal(t, "Mark's Page", title.Text())
	url, _ := docs[0].Meta.Get(corpus.MetaURL)
	assert.Equal(t, path, url.Text())
	hrefs, _ := docs[0].Meta.Get(corpus.MetaPageHrefs)
	assert.Equal(t, `["friends.html","https://other.example.org/"]`, hrefs.Text())

	_, err = NewHTMLLoader([]string{path + ".missing"}).Load(context.Background())
	assert.ErrorContains(t, err, "failed to read file")
}

func TestHTMLLoaderRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mark" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	records, err := NewHTMLLoader([]string{server.URL + "/mark"}, WithHTTPClient(server.Client())).
		Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{server.URL + "/img/mark.png"}, records[0].ImageURLs)

	_, err = NewHTMLLoader([]string{server.URL + "/absent"}).Records(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 404")
}

func TestMarkdownLoader(t *testing.T) {
	path := writeFile(t, "notes.md", "# Berlin\n\nMark lives in [Berlin](https://en.wikipedia.org/wiki/Berlin).\n\n![map](map.png)\n")

	docs, err := NewMarkdownLoader(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "Berlin Mark lives in Berlin .", docs[0].Content)
	title, _ := docs[0].Meta.Get(corpus.MetaTitle)
	assert.Equal(t, "Berlin", title.Text())
	hrefs, _ := docs[0].Meta.Get(corpus.MetaPageHrefs)
	assert.Equal(t, `["https://en.wikipedia.org/wiki/Berlin"]`, hrefs.Text())
	images, _ := docs[0].Meta.Get(corpus.MetaImageURLs)
	assert.Equal(t, `["map.png"]`, images.Text())
}

func TestRenderMarkdown(t *testing.T) {
	out := string(RenderMarkdown([]byte("## Title\n\n*em*")))
	assert.Contains(t, out, `<h2 id="title">Title</h2>`)
	assert.Contains(t, out, "<em>em</em>")
}
