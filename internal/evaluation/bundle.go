package evaluation

import (
	"sort"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

// BuildBundle assembles the bounded signal bundle handed to inference.
// Commits are kept most recent first.
func BuildBundle(unit models.SourceUnit, deps []models.Dependency, commits []models.Commit, tree []models.FileEntry, maxCommits, maxDeps int) models.SignalBundle {
	sorted := make([]models.Commit, len(commits))
	copy(sorted, commits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs > sorted[j].TimestampMs
	})
	if maxCommits > 0 && len(sorted) > maxCommits {
		sorted = sorted[:maxCommits]
	}

	bounded := deps
	if maxDeps > 0 && len(bounded) > maxDeps {
		bounded = bounded[:maxDeps]
	}

	return models.SignalBundle{
		Unit:               unit,
		Dependencies:       bounded,
		Commits:            sorted,
		ExtensionHistogram: ExtensionHistogram(tree),
	}
}

func ExtensionHistogram(tree []models.FileEntry) map[string]int {
	hist := make(map[string]int)
	for _, f := range tree {
		if f.Extension == "" {
			continue
		}
		hist[f.Extension]++
	}
	return hist
}

// commitTimestamps returns timestamps most recent first.
func commitTimestamps(commits []models.Commit) []int64 {
	out := make([]int64, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.TimestampMs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}
