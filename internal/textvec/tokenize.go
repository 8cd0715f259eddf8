// Package textvec turns short skill phrases into term-weighted sparse vectors
// and compares them.
package textvec

import "strings"

// Normalize lower-cases text and keeps only [a-z0-9+#.- ], collapsing runs of
// whitespace into single spaces.
func Normalize(text string) string {
	lower := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lower))
	space := true // suppresses leading and repeated spaces
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if !keep(c) {
			c = ' '
		}
		if c == ' ' {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteByte(c)
		space = false
	}

	return strings.TrimRight(b.String(), " ")
}

func keep(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '#', c == '.', c == '-':
		return true
	}
	return false
}

// Tokenize returns the unigrams of the normalized text in order, followed by
// every adjacent pair joined with an underscore.
func Tokenize(text string) []string {
	unigrams := strings.Fields(Normalize(text))
	if len(unigrams) == 0 {
		return nil
	}

	tokens := make([]string, 0, 2*len(unigrams)-1)
	tokens = append(tokens, unigrams...)
	for i := 0; i+1 < len(unigrams); i++ {
		tokens = append(tokens, unigrams[i]+"_"+unigrams[i+1])
	}
	return tokens
}

// TermFrequency counts tokens and divides every count by the token total.
func TermFrequency(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	total := float64(max(1, len(tokens)))
	for term, count := range tf {
		tf[term] = count / total
	}
	return tf
}
