package textvec

import (
	"math"
	"sort"
	"sync/atomic"
)

// Entry is one vocabulary term with its corpus statistics.
type Entry struct {
	Term                     string  `json:"term"`
	DocumentFrequency        int     `json:"df"`
	InverseDocumentFrequency float64 `json:"idf"`
}

// Vocabulary is an immutable snapshot of term statistics. Generation
// identifies the corpus it was built from; vectors computed under different
// generations must not be compared.
type Vocabulary struct {
	Generation int64
	Documents  int
	entries    map[string]Entry
}

// NewVocabulary wraps already computed entries, e.g. ones read back from storage.
func NewVocabulary(generation int64, documents int, entries []Entry) *Vocabulary {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Term] = e
	}
	return &Vocabulary{Generation: generation, Documents: documents, entries: m}
}

// BuildVocabulary computes document frequency and smoothed idf for every term
// of the corpus. A term repeated inside one phrase counts once.
func BuildVocabulary(corpus []string) *Vocabulary {
	df := make(map[string]int)
	for _, phrase := range corpus {
		seen := make(map[string]struct{})
		for _, t := range Tokenize(phrase) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	n := max(1, len(corpus))
	entries := make(map[string]Entry, len(df))
	for term, count := range df {
		entries[term] = Entry{
			Term:                     term,
			DocumentFrequency:        count,
			InverseDocumentFrequency: SmoothedIDF(n, count),
		}
	}

	return &Vocabulary{Documents: n, entries: entries}
}

// SmoothedIDF returns ln((n+1)/(df+1)) + 1, which stays positive for df <= n.
func SmoothedIDF(n, df int) float64 {
	return math.Log(float64(n+1)/float64(df+1)) + 1
}

// WithGeneration returns a copy of v stamped with generation.
func (v *Vocabulary) WithGeneration(generation int64) *Vocabulary {
	return &Vocabulary{Generation: generation, Documents: v.Documents, entries: v.entries}
}

// IDF reports the idf of term and whether the term is known.
func (v *Vocabulary) IDF(term string) (float64, bool) {
	if v == nil {
		return 0, false
	}
	e, ok := v.entries[term]
	return e.InverseDocumentFrequency, ok
}

func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.entries)
}

// Entries returns the vocabulary sorted by term.
func (v *Vocabulary) Entries() []Entry {
	if v == nil {
		return nil
	}
	out := make([]Entry, 0, len(v.entries))
	for _, e := range v.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

// VocabularyHolder publishes whole vocabulary snapshots to concurrent readers.
type VocabularyHolder struct {
	current atomic.Pointer[Vocabulary]
}

// Load returns the current snapshot, or nil before the first Store.
func (h *VocabularyHolder) Load() *Vocabulary {
	return h.current.Load()
}

// Store replaces the snapshot in one step.
func (h *VocabularyHolder) Store(v *Vocabulary) {
	h.current.Store(v)
}
