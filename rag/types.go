package rag

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// Document is a unit of retrievable text with free-form metadata.
type Document struct {
	// ID uniquely identifies the document within a store.
	ID string

	// Content is the text body.
	Content string

	// Meta holds structured metadata such as title, url or parsed page data.
	Meta *Map

	// Embedding is the vector representation of the document, if computed.
	Embedding []float32

	// Score is the relevance score assigned by the last retrieval.
	Score float64
}

// NewDocument creates a document whose ID is derived from its content and metadata.
func NewDocument(content string, meta *Map) Document {
	return Document{
		ID:      DocumentID(content, meta),
		Content: content,
		Meta:    meta,
	}
}

// DocumentID returns a deterministic identifier for the given content and metadata.
func DocumentID(content string, meta *Map) string {
	name := []byte(content)
	if meta.Len() > 0 {
		if data, err := meta.MarshalJSON(); err == nil {
			name = append(append(name, 0), data...)
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, name).String()
}

// HasEmbedding reports whether the document carries an embedding.
func (d Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	d.Meta = d.Meta.Clone()
	d.Embedding = slices.Clone(d.Embedding)
	return d
}

// DocumentSearchResult pairs a document with its retrieval score.
type DocumentSearchResult struct {
	Document Document
	Score    float64
}

// Documents extracts the documents from results, keeping their order.
func Documents(results []DocumentSearchResult) []Document {
	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return docs
}

// DocumentLoader loads documents from a source.
type DocumentLoader interface {
	Load(ctx context.Context) ([]Document, error)
}
