package server

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
)

// Match is one similarity result.
type Match struct {
	Item  string  `json:"item"`
	Score float64 `json:"score"`
}

// Index ranks stored items by similarity to a query.
type Index interface {
	Similar(ctx context.Context, text string, n int) ([]Match, error)
}

// DefaultCorpus seeds the CorpusIndex used by the serve command.
var DefaultCorpus = []string{
	"The quick brown fox jumps over the lazy dog",
	"A fast auburn fox leaps above a sleepy hound",
	"Streaming responses are delivered as a sequence of frames",
	"Rust and Go are both systems programming languages",
	"The weather today is sunny with a light breeze",
	"Language models generate text one token at a time",
	"Vector embeddings capture semantic similarity between sentences",
	"Cats and dogs are the most common household pets",
}

// CorpusIndex scores a fixed corpus by the cosine of word-count vectors.
type CorpusIndex struct {
	items   []string
	vectors []map[string]float64
}

var _ Index = (*CorpusIndex)(nil)

// NewCorpusIndex indexes items.
func NewCorpusIndex(items []string) *CorpusIndex {
	idx := &CorpusIndex{items: items}
	for _, item := range items {
		idx.vectors = append(idx.vectors, bagOfWords(item))
	}
	return idx
}

// Similar returns the n best matches, highest score first. Ties keep corpus
// order.
func (c *CorpusIndex) Similar(_ context.Context, text string, n int) ([]Match, error) {
	query := bagOfWords(text)

	matches := make([]Match, len(c.items))
	for i, item := range c.items {
		matches[i] = Match{Item: item, Score: cosine(query, c.vectors[i])}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if n < len(matches) {
		matches = matches[:n]
	}
	return matches, nil
}

func bagOfWords(s string) map[string]float64 {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	v := make(map[string]float64, len(words))
	for _, w := range words {
		v[w]++
	}
	return v
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for w, x := range a {
		dot += x * b[w]
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
