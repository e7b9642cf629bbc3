package classify

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Two or more word characters, the usual bag-of-words token.
var tokenRe = regexp.MustCompile(`\b\w\w+\b`)

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// Vectorizer turns text into L2-normalised TF-IDF vectors over a fixed
// vocabulary learned at fit time.
type Vectorizer struct {
	Vocabulary []string  `json:"vocabulary"`
	IDF        []float64 `json:"idf"`

	index map[string]int
}

// FitVectorizer learns the vocabulary and smoothed inverse document
// frequencies: idf = ln((1+n)/(1+df)) + 1.
func FitVectorizer(docs []string) *Vectorizer {
	df := map[string]int{}
	for _, doc := range docs {
		seen := map[string]struct{}{}
		for _, tok := range tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	vocab := make([]string, 0, len(df))
	for tok := range df {
		vocab = append(vocab, tok)
	}
	sort.Strings(vocab)

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, tok := range vocab {
		idf[i] = math.Log((1+n)/(1+float64(df[tok]))) + 1
	}
	v := &Vectorizer{Vocabulary: vocab, IDF: idf}
	v.buildIndex()
	return v
}

func (v *Vectorizer) buildIndex() {
	v.index = make(map[string]int, len(v.Vocabulary))
	for i, tok := range v.Vocabulary {
		v.index[tok] = i
	}
}

// Dim is the vector length.
func (v *Vectorizer) Dim() int { return len(v.Vocabulary) }

// Transform vectorises text. Out-of-vocabulary tokens are ignored, so text
// with no known tokens becomes the zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	vec := make([]float64, len(v.Vocabulary))
	for _, tok := range tokenize(text) {
		if i, ok := v.index[tok]; ok {
			vec[i]++
		}
	}
	var norm float64
	for i := range vec {
		vec[i] *= v.IDF[i]
		norm += vec[i] * vec[i]
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
