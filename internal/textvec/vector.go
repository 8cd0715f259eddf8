package textvec

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Vector maps terms to non-negative weights. Absent terms weigh zero and an
// empty vector means "no signal".
type Vector map[string]float64

// Norm returns the L2 norm of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Vectorize weights every term by tf * idf. Terms missing from the vocabulary
// are dropped rather than stored with a zero weight.
func Vectorize(tokens []string, vocab *Vocabulary) Vector {
	vec := make(Vector)
	if vocab == nil {
		return vec
	}

	for term, tf := range TermFrequency(tokens) {
		if tf == 0 {
			continue
		}
		idf, ok := vocab.IDF(term)
		if !ok {
			continue
		}
		vec[term] = tf * idf
	}
	return vec
}

// VectorizeText tokenizes text and vectorizes it against vocab.
func VectorizeText(text string, vocab *Vocabulary) Vector {
	return Vectorize(Tokenize(text), vocab)
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has no weight.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// iterate the smaller map for the dot product
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	var dot float64
	for term, w := range small {
		if other, ok := large[term]; ok {
			dot += w * other
		}
	}

	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}

	sim := dot / (na * nb)
	switch {
	case math.IsNaN(sim), sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}

// EncodeVector renders v as the JSON object stored alongside skills.
func EncodeVector(v Vector) (string, error) {
	if v == nil {
		v = Vector{}
	}
	data, err := json.Marshal(map[string]float64(v))
	if err != nil {
		return "", fmt.Errorf("encode vector: %w", err)
	}
	return string(data), nil
}

// DecodeVector parses a stored vector. Empty input and JSON null decode to an
// empty vector.
func DecodeVector(raw string) (Vector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Vector{}, nil
	}

	var m map[string]float64
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	if m == nil {
		m = map[string]float64{}
	}
	return Vector(m), nil
}
