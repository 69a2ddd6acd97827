package store

import (
	"math"
	"strings"
	"unicode"

	"github.com/smallnest/ragpipe/rag"
)

const (
	// DefaultK1 controls term frequency saturation.
	DefaultK1 = 1.2
	// DefaultB controls document length normalization.
	DefaultB = 0.75
)

// Tokenize lowercases text and splits it on every rune that is neither a letter nor a digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type bm25 struct {
	k1 float64
	b  float64
}

// score returns one BM25 score per document. Corpus statistics are derived
// from docs on every call.
func (m bm25) score(query []string, docs []rag.Document) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 || len(query) == 0 {
		return scores
	}

	tfs := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	df := make(map[string]int)
	total := 0

	for i, d := range docs {
		terms := Tokenize(d.Content)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			df[t]++
		}
		tfs[i] = tf
		lengths[i] = len(terms)
		total += len(terms)
	}

	avgDL := float64(total) / float64(len(docs))

	for _, t := range query {
		n, ok := df[t]
		if !ok {
			continue
		}
		idf := m.idf(len(docs), n)

		for i := range docs {
			tf := float64(tfs[i][t])
			if tf == 0 {
				continue
			}
			norm := 1 - m.b
			if avgDL > 0 {
				norm += m.b * float64(lengths[i]) / avgDL
			}
			scores[i] += idf * (tf * (m.k1 + 1)) / (tf + m.k1*norm)
		}
	}

	return scores
}

func (m bm25) idf(docCount, df int) float64 {
	// IDF = log(1 + (N - n + 0.5) / (n + 0.5))
	N := float64(docCount)
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

// ScaleBM25 maps an unbounded BM25 score into (0, 1).
func ScaleBM25(score float64) float64 {
	return 1 / (1 + math.Exp(-score/8))
}
