package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

const (
	defaultReasoningLimit = 240
	maxReasonings         = 2
	reasoningSeparator    = " | "
)

// UnitEvidence is everything the aggregator knows about one source unit.
type UnitEvidence struct {
	UnitID string
	Skills []models.DerivedSkill
	// CommitTimestampsMs is ordered most-recent-first.
	CommitTimestampsMs []int64
	// ActivityKnown is false when the unit has no commit feed at all.
	ActivityKnown bool
}

// Aggregator is deterministic for a fixed Now and input order.
type Aggregator struct {
	Now            func() time.Time
	ReasoningLimit int
}

func New() *Aggregator {
	return &Aggregator{Now: time.Now, ReasoningLimit: defaultReasoningLimit}
}

type accumulator struct {
	name       string
	score      float64
	reasonings []string
}

// Aggregate returns one record per distinct skill name (compared case
// insensitively, first spelling wins). Contributions add up and are capped
// at 1. Skills without contribution are omitted. Vectors are left empty.
func (a *Aggregator) Aggregate(units []UnitEvidence) []models.AggregatedSkill {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	limit := a.ReasoningLimit
	if limit <= 0 {
		limit = defaultReasoningLimit
	}

	byKey := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, unit := range units {
		weight := UnitWeight(now, unit)
		for _, skill := range unit.Skills {
			key := skillKey(skill.Skill)
			if key == "" {
				continue
			}

			acc, ok := byKey[key]
			if !ok {
				acc = &accumulator{name: strings.TrimSpace(skill.Skill)}
				byKey[key] = acc
				order = append(order, key)
			}

			acc.score += clamp01(skill.Score) * weight
			acc.addReasoning(skill.Reasoning, limit)
		}
	}

	out := make([]models.AggregatedSkill, 0, len(order))
	for _, key := range order {
		acc := byKey[key]
		if acc.score <= 0 {
			continue
		}
		out = append(out, models.AggregatedSkill{
			Skill:     acc.name,
			Score:     math.Min(1, acc.score),
			Reasoning: strings.Join(acc.reasonings, reasoningSeparator),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Skill < out[j].Skill
	})

	return out
}

func (acc *accumulator) addReasoning(reasoning string, limit int) {
	if len(acc.reasonings) >= maxReasonings {
		return
	}
	reasoning = clip(reasoning, limit)
	if reasoning == "" {
		return
	}
	for _, existing := range acc.reasonings {
		if existing == reasoning {
			return
		}
	}
	acc.reasonings = append(acc.reasonings, reasoning)
}

func skillKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
