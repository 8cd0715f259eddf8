package inference

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

const (
	maxPromptDependencies = 40
	maxPromptCommits      = 30
	maxCommitMessageRunes = 180
	maxPromptExtensions   = 20
	maxDocumentRunes      = 4000
)

func systemInstruction() string {
	return `
You are an expert technical recruiter that derives the technical skills a developer has practiced from indirect evidence.

You receive either a repository summary (dependencies, recent commit messages, file types) or the text of an uploaded resume.

Your goal is to:
- Identify a small set of concrete technical skills (languages, frameworks, libraries, tools, platforms).
- Give each skill a relevance score from 0 to 1. Score generously when the evidence is clear.
- Explain each skill in one or two sentences.
- List the pieces of evidence you relied on.

Return your result as a structured JSON object in this format:

{
  "skills": [
    {"skill": string, "score": number, "reasoning": string, "evidence": [string]}
  ]
}

Base all reasoning only on the provided text. Do not guess skills that are not supported by the evidence.
Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.
`
}

// BuildPrompt renders a bounded description of the bundle.
func BuildPrompt(bundle models.SignalBundle) string {
	if bundle.Unit.Kind == models.UnitKindDocument {
		return documentPrompt(bundle)
	}

	var b strings.Builder
	u := bundle.Unit
	b.WriteString("Repository summary:\n")
	fmt.Fprintf(&b, "- name: %s\n", u.Name)
	fmt.Fprintf(&b, "- language: %s\n", orDefault(u.Language, "unknown"))
	fmt.Fprintf(&b, "- stars: %d, forks: %d\n", u.Stars, u.Forks)
	fmt.Fprintf(&b, "- last_pushed: %s\n\n", isoMillis(u.PushedAtMs))

	deps := bundle.Dependencies
	if len(deps) > maxPromptDependencies {
		deps = deps[:maxPromptDependencies]
	}
	depList := make([]string, 0, len(deps))
	for _, d := range deps {
		entry := d.Manager + ":" + d.Name
		if d.Version != "" {
			entry += "@" + d.Version
		}
		depList = append(depList, entry)
	}
	fmt.Fprintf(&b, "Dependencies (top): %s\n\n", orDefault(strings.Join(depList, ", "), "none"))

	commits := bundle.Commits
	if len(commits) > maxPromptCommits {
		commits = commits[:maxPromptCommits]
	}
	fmt.Fprintf(&b, "Recent commit messages (up to %d):\n", maxPromptCommits)
	if len(commits) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range commits {
		fmt.Fprintf(&b, "- %s: %s\n", isoMillis(c.TimestampMs), truncateRunes(collapseSpace(c.Message), maxCommitMessageRunes))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "File extensions histogram (top): %s\n\n", orDefault(topExtensions(bundle.ExtensionHistogram), "none"))
	b.WriteString("Task: Determine the technical skills practiced in this repository.")
	return b.String()
}

func documentPrompt(bundle models.SignalBundle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resume document: %s\n\n", bundle.Unit.Name)
	b.WriteString(truncateRunes(strings.TrimSpace(bundle.DocumentText), maxDocumentRunes))
	b.WriteString("\n\nTask: Determine the technical skills this resume demonstrates.")
	return b.String()
}

// topExtensions orders by count desc, then extension.
func topExtensions(hist map[string]int) string {
	type kv struct {
		ext string
		n   int
	}
	entries := make([]kv, 0, len(hist))
	for ext, n := range hist {
		entries = append(entries, kv{ext, n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].n != entries[j].n {
			return entries[i].n > entries[j].n
		}
		return entries[i].ext < entries[j].ext
	})
	if len(entries) > maxPromptExtensions {
		entries = entries[:maxPromptExtensions]
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s:%d", e.ext, e.n)
	}
	return strings.Join(parts, ", ")
}

func isoMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
