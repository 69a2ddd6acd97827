// Package corpus turns raw crawled pages into documents.
//
// A Record mirrors one page as a crawler stores it. Record.Document converts it
// into a rag.Document whose metadata carries the page title, url and the
// structured data found on the page. Structured fields that fail to parse are
// replaced by an empty mapping so a single bad page never aborts ingestion.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smallnest/ragpipe/rag"
)

// Metadata keys set by Record.Document, in the order they are written.
const (
	MetaTitle         = "title"
	MetaURL           = "url"
	MetaLDJSONScripts = "ldJsonScripts"
	MetaImageURLs     = "imageUrls"
	MetaPageHrefs     = "pageHrefs"
	MetaLinkTags      = "linkTags"
	MetaMetaTags      = "metaTags"
)

// Record is a crawled page.
type Record struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Title   string `json:"title"`
	URL     string `json:"url"`

	// LDJSONScripts holds the raw text of each application/ld+json script.
	LDJSONScripts []string `json:"ldJsonScripts"`

	ImageURLs []string `json:"imageUrls"`
	PageHrefs []string `json:"pageHrefs"`

	// LinkTags and MetaTags hold one attribute mapping per <link> or <meta> element.
	LinkTags []rag.Value `json:"linkTags"`
	MetaTags []rag.Value `json:"metaTags"`
}

// Document converts the record into a document. When the record has no ID one
// is derived from the content and metadata.
func (r Record) Document() rag.Document {
	meta := rag.NewMap()
	meta.Set(MetaTitle, rag.String(r.Title))
	meta.Set(MetaURL, rag.String(r.URL))

	scripts := make([]rag.Value, len(r.LDJSONScripts))
	for i, s := range r.LDJSONScripts {
		scripts[i] = ParseStructured(s)
	}
	meta.Set(MetaLDJSONScripts, rag.List(scripts...))
	meta.Set(MetaImageURLs, rag.Strings(r.ImageURLs...))
	meta.Set(MetaPageHrefs, rag.Strings(r.PageHrefs...))
	meta.Set(MetaLinkTags, rag.List(r.LinkTags...))
	meta.Set(MetaMetaTags, rag.List(r.MetaTags...))

	if r.ID == "" {
		return rag.NewDocument(r.Content, meta)
	}
	return rag.Document{ID: r.ID, Content: r.Content, Meta: meta}
}

// ParseStructured parses a JSON text. Malformed input yields an empty mapping.
func ParseStructured(raw string) rag.Value {
	v, err := rag.ParseJSON([]byte(raw))
	if err != nil {
		return rag.MapValue(rag.NewMap())
	}
	return v
}

// ParseStrings decodes a JSON array of strings as stored in database columns.
// Empty or malformed input yields nil.
func ParseStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// ParseValues decodes a JSON array of arbitrary values. Empty or malformed
// input, or a JSON value that is not an array, yields nil.
func ParseValues(raw []byte) []rag.Value {
	if len(raw) == 0 {
		return nil
	}
	v, err := rag.ParseJSON(raw)
	if err != nil {
		return nil
	}
	list, _ := v.AsList()
	return list
}

// EncodeStrings is the inverse of ParseStrings.
func EncodeStrings(ss []string) []byte {
	if ss == nil {
		ss = []string{}
	}
	data, _ := json.Marshal(ss)
	return data
}

// EncodeValues is the inverse of ParseValues.
func EncodeValues(vs []rag.Value) []byte {
	if vs == nil {
		vs = []rag.Value{}
	}
	data, err := json.Marshal(vs)
	if err != nil {
		return []byte("[]")
	}
	return data
}

// Source supplies records in a stable order.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// Load reads all records from src and converts them to documents.
func Load(ctx context.Context, src Source) ([]rag.Document, error) {
	records, err := src.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	docs := make([]rag.Document, len(records))
	for i, r := range records {
		docs[i] = r.Document()
	}
	return docs, nil
}

// Loader adapts a Source to rag.DocumentLoader.
type Loader struct {
	source Source
}

var _ rag.DocumentLoader = (*Loader)(nil)

// NewLoader creates a Loader reading from src.
func NewLoader(src Source) *Loader {
	return &Loader{source: src}
}

// Load implements rag.DocumentLoader.
func (l *Loader) Load(ctx context.Context) ([]rag.Document, error) {
	return Load(ctx, l.source)
}

// Records is a Source over a fixed slice.
type Records []Record

// Records implements Source.
func (r Records) Records(ctx context.Context) ([]Record, error) {
	return r, nil
}
