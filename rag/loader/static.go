// Package loader provides document loaders for static lists, text files, web
// pages and Markdown files.
package loader

import (
	"context"

	"github.com/smallnest/ragpipe/rag"
)

// StaticDocumentLoader loads documents from a static list.
type StaticDocumentLoader struct {
	Documents []rag.Document
}

var _ rag.DocumentLoader = (*StaticDocumentLoader)(nil)

// NewStaticDocumentLoader creates a new StaticDocumentLoader.
func NewStaticDocumentLoader(documents []rag.Document) *StaticDocumentLoader {
	return &StaticDocumentLoader{Documents: documents}
}

// Load returns copies of the static documents.
func (l *StaticDocumentLoader) Load(ctx context.Context) ([]rag.Document, error) {
	return l.LoadWithMetadata(ctx, nil)
}

// LoadWithMetadata returns copies of the static documents with meta merged
// into each document's metadata. Keys in meta win over existing ones.
func (l *StaticDocumentLoader) LoadWithMetadata(ctx context.Context, meta *rag.Map) ([]rag.Document, error) {
	docs := make([]rag.Document, len(l.Documents))
	for i, doc := range l.Documents {
		doc = doc.Clone()
		if meta.Len() > 0 {
			if doc.Meta == nil {
				doc.Meta = rag.NewMap()
			}
			for k, v := range meta.All() {
				doc.Meta.Set(k, v.Clone())
			}
		}
		docs[i] = doc
	}
	return docs, nil
}
