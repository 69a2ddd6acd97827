package store

import (
	"context"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/rag"
)

// DocumentWriter persists documents and reports how many were written.
type DocumentWriter interface {
	Write(ctx context.Context, docs []rag.Document) (int, error)
}

// Writer is a pipeline component that writes the documents it receives.
//
//	inputs:  documents []rag.Document
//	outputs: documents_written int
type Writer struct {
	store DocumentWriter
}

var _ graph.Component = (*Writer)(nil)

// NewWriter creates a Writer backed by store.
func NewWriter(store DocumentWriter) *Writer {
	return &Writer{store: store}
}

// InputSockets implements graph.Component.
func (w *Writer) InputSockets() []graph.InputSocket {
	return graph.Required("documents")
}

// OutputSockets implements graph.Component.
func (w *Writer) OutputSockets() []string {
	return []string{"documents_written"}
}

// Run implements graph.Component.
func (w *Writer) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	docs, err := graph.Input[[]rag.Document](inputs, "documents")
	if err != nil {
		return nil, err
	}
	n, err := w.store.Write(ctx, docs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"documents_written": n}, nil
}
