package store

import "github.com/smallnest/ragpipe/rag"

// MatchesFilters reports whether doc satisfies every filter. A filter matches
// when the metadata value under its key equals the filter value. A list filter
// also matches a scalar metadata value equal to any of its elements.
func MatchesFilters(doc rag.Document, filters map[string]rag.Value) bool {
	for key, want := range filters {
		got, ok := doc.Meta.Get(key)
		if !ok || !matchValue(got, want) {
			return false
		}
	}
	return true
}

func matchValue(got, want rag.Value) bool {
	if got.Equal(want) {
		return true
	}
	options, ok := want.AsList()
	if !ok || got.Kind() == rag.KindList {
		return false
	}
	for _, o := range options {
		if got.Equal(o) {
			return true
		}
	}
	return false
}

func filterDocuments(docs []rag.Document, filters map[string]rag.Value) []rag.Document {
	if len(filters) == 0 {
		return docs
	}
	kept := make([]rag.Document, 0, len(docs))
	for _, d := range docs {
		if MatchesFilters(d, filters) {
			kept = append(kept, d)
		}
	}
	return kept
}
