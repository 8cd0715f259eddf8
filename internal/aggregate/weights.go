// Package aggregate merges per-unit derived skills into one score per skill
// for a subject, weighting every unit by how recently and how often it was
// worked on.
package aggregate

import (
	"math"
	"time"
)

const (
	// HalfLifeDays is the age at which a unit contributes half its weight.
	HalfLifeDays = 30.0
	// StaleAgeDays is assumed for units without any commit.
	StaleAgeDays = 365.0
	// SaturationCommits is the commit count at which frequency weight reaches 1.
	SaturationCommits = 100
	// FallbackWeight is applied to units whose activity yields no weight:
	// units without an activity feed and repositories without commits.
	FallbackWeight = 0.2

	msPerDay = 86_400_000
)

// RecencyWeight decays exponentially with a 30 day half-life. It never
// reaches zero.
func RecencyWeight(ageDays float64) float64 {
	return math.Exp(-math.Ln2 * ageDays / HalfLifeDays)
}

// FrequencyWeight saturates linearly at SaturationCommits commits.
func FrequencyWeight(commits int) float64 {
	return math.Min(1, float64(commits)/SaturationCommits)
}

// AgeDays is the age of the most recent commit, or StaleAgeDays without one.
// Timestamps are expected most-recent-first.
func AgeDays(now time.Time, commitTimestampsMs []int64) float64 {
	if len(commitTimestampsMs) == 0 {
		return StaleAgeDays
	}
	return float64(now.UnixMilli()-commitTimestampsMs[0]) / msPerDay
}

// UnitWeight combines recency and frequency for one unit. A unit whose
// product would be zero gets FallbackWeight so its skills still count.
func UnitWeight(now time.Time, unit UnitEvidence) float64 {
	if !unit.ActivityKnown {
		return FallbackWeight
	}

	commits := unit.CommitTimestampsMs
	if len(commits) > SaturationCommits {
		commits = commits[:SaturationCommits]
	}

	weight := RecencyWeight(AgeDays(now, commits)) * FrequencyWeight(len(commits))
	if weight <= 0 {
		return FallbackWeight
	}
	return weight
}
