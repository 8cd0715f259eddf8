// Package match ranks catalog items against a subject's aggregated skills.
package match

import (
	"sort"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

const (
	DefaultLimit        = 5
	DefaultExplanations = 8
)

type SubjectSkill struct {
	Name   string
	Score  float64
	Vector textvec.Vector
}

type CatalogSkill struct {
	Name   string
	Vector textvec.Vector
}

type CatalogEntry struct {
	Item   models.CatalogItem
	Skills []CatalogSkill
}

type Options struct {
	Limit        int
	Explanations int
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Explanations <= 0 {
		o.Explanations = DefaultExplanations
	}
	return o
}

// Rank scores every catalog entry that has at least one skill. For each
// catalog skill the most similar subject skill is chosen (first one wins on
// ties) and weighted by its aggregated score; the entry score is the mean of
// those contributions. Entries without any contributing pair are left out.
func Rank(subject []SubjectSkill, catalog []CatalogEntry, opts Options) []models.MatchResult {
	opts = opts.withDefaults()

	results := make([]models.MatchResult, 0, len(catalog))
	for _, entry := range catalog {
		if len(entry.Skills) == 0 {
			continue
		}

		pairs := make([]models.SkillPair, 0, len(entry.Skills))
		var total float64
		for _, cs := range entry.Skills {
			best, sim := bestSubjectSkill(subject, cs.Vector)
			if best < 0 {
				continue
			}
			chosen := subject[best]
			total += sim * chosen.Score
			pairs = append(pairs, models.SkillPair{
				CatalogSkill: cs.Name,
				SubjectSkill: chosen.Name,
				Similarity:   sim,
				SubjectScore: chosen.Score,
			})
		}

		if len(pairs) == 0 {
			continue
		}
		score := total / float64(len(pairs))

		sort.SliceStable(pairs, func(i, j int) bool {
			return pairs[i].Similarity*pairs[i].SubjectScore > pairs[j].Similarity*pairs[j].SubjectScore
		})
		if len(pairs) > opts.Explanations {
			pairs = pairs[:opts.Explanations]
		}

		results = append(results, models.MatchResult{
			CatalogItemID: entry.Item.ID,
			Title:         entry.Item.Title,
			Company:       entry.Item.Company,
			JobURL:        entry.Item.JobURL,
			Score:         score,
			TopSkillPairs: pairs,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// bestSubjectSkill returns the index of the subject skill with the highest
// positive similarity to vec, or -1.
func bestSubjectSkill(subject []SubjectSkill, vec textvec.Vector) (int, float64) {
	best, bestSim := -1, 0.0
	for i, s := range subject {
		if sim := textvec.Cosine(vec, s.Vector); sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best, bestSim
}
