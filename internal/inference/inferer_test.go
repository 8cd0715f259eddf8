package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

type stubCompleter struct {
	mu         sync.Mutex
	responses  []string
	errs       []error
	calls      int
	lastPrompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.lastPrompt = prompt
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return s.responses[len(s.responses)-1], nil
}

func repoBundle() models.SignalBundle {
	return models.SignalBundle{
		Unit: models.SourceUnit{Name: "hello", FullName: "octocat/hello", Language: "Go", Stars: 3, PushedAtMs: 1746057600000},
		Dependencies: []models.Dependency{
			{Manager: "go", Name: "github.com/lib/pq", Version: "v1.10.9"},
			{Manager: "npm", Name: "react"},
		},
		Commits: []models.Commit{
			{Message: "add   postgres\n\nstore", TimestampMs: 1746057600000},
		},
		ExtensionHistogram: map[string]int{"go": 12, "sql": 3, "md": 3},
	}
}

func TestInferSkills(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{responses: []string{"```json\n{\"skills\": [{\"skill\": \"Go\", \"score\": 0.9, \"reasoning\": \"go.mod\", \"evidence\": [\"go.mod\"]}]}\n```"}}
	inf := NewInferer(stub, Options{Backend: "stub"}, nil)

	skills, err := inf.InferSkills(context.Background(), repoBundle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skills) != 1 || skills[0].Skill != "Go" || skills[0].Score != 0.9 {
		t.Fatalf("unexpected skills: %+v", skills)
	}
	if !strings.Contains(stub.lastPrompt, "go:github.com/lib/pq@v1.10.9, npm:react") {
		t.Fatalf("expected dependency list in prompt, got:\n%s", stub.lastPrompt)
	}
}

func TestInferSkillsRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{
		errs:      []error{errors.New("503 unavailable")},
		responses: []string{"", `{"skills": [{"skill": "SQL", "score": 0.5}]}`},
	}
	inf := NewInferer(stub, Options{Attempts: 2, Backoff: time.Millisecond}, nil)

	skills, err := inf.InferSkills(context.Background(), repoBundle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 2 || len(skills) != 1 {
		t.Fatalf("expected a retry then one skill, got %d calls and %+v", stub.calls, skills)
	}
}

func TestInferSkillsSurfacesUnreachableModel(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota exceeded")
	stub := &stubCompleter{errs: []error{boom, boom}}
	inf := NewInferer(stub, Options{Attempts: 2, Backoff: time.Millisecond}, nil)

	if _, err := inf.InferSkills(context.Background(), repoBundle()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestParseSkills(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 130)
	tests := []struct {
		name string
		raw  string
		want []models.DerivedSkill
	}{
		{
			name: "plain json",
			raw:  `{"skills": [{"skill": "Go", "score": 0.8, "reasoning": "r", "evidence": ["a"]}]}`,
			want: []models.DerivedSkill{{Skill: "Go", Score: 0.8, Reasoning: "r", Evidence: []string{"a"}}},
		},
		{
			name: "prose around object",
			raw:  "Here you go:\n{\"skills\": [{\"skill\": \"Docker\", \"score\": \"0.7\"}]}\nThanks!",
			want: []models.DerivedSkill{{Skill: "Docker", Score: 0.7, Evidence: []string{}}},
		},
		{
			name: "clamped scores and single evidence",
			raw:  `{"skills": [{"skill": "A", "score": 3, "evidence": "Dockerfile"}, {"skill": "B", "score": -1}]}`,
			want: []models.DerivedSkill{
				{Skill: "A", Score: 1, Evidence: []string{"Dockerfile"}},
				{Skill: "B", Score: 0, Evidence: []string{}},
			},
		},
		{
			name: "unnamed skills dropped",
			raw:  `{"skills": [{"skill": "  ", "score": 0.5}, {"score": 0.4}]}`,
			want: []models.DerivedSkill{},
		},
		{name: "not json", raw: "I cannot help with that.", want: []models.DerivedSkill{}},
		{name: "wrong shape", raw: `{"skills": "Go"}`, want: []models.DerivedSkill{}},
		{name: "empty", raw: "", want: []models.DerivedSkill{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseSkills(tt.raw)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Fatalf("ParseSkills() = %+v, want %+v", got, tt.want)
			}
		})
	}

	t.Run("truncation", func(t *testing.T) {
		t.Parallel()
		raw := fmt.Sprintf(`{"skills": [{"skill": %q, "score": 0.5, "reasoning": %q, "evidence": ["1","2","3","4","5","6","7","8"]}]}`, long, strings.Repeat("é", 600))
		got := ParseSkills(raw)
		if len(got) != 1 {
			t.Fatalf("expected one skill, got %+v", got)
		}
		if len([]rune(got[0].Skill)) != 120 || len([]rune(got[0].Reasoning)) != 500 || len(got[0].Evidence) != 6 {
			t.Fatalf("expected truncation, got skill=%d reasoning=%d evidence=%d",
				len([]rune(got[0].Skill)), len([]rune(got[0].Reasoning)), len(got[0].Evidence))
		}
	})
}

func TestBuildPromptBounds(t *testing.T) {
	t.Parallel()

	bundle := repoBundle()
	bundle.Commits = nil
	for i := range 45 {
		bundle.Dependencies = append(bundle.Dependencies, models.Dependency{Manager: "npm", Name: fmt.Sprintf("dep%02d", i)})
		bundle.Commits = append(bundle.Commits, models.Commit{Message: fmt.Sprintf("commit %02d %s", i, strings.Repeat("y", 300))})
	}
	for i := range 25 {
		bundle.ExtensionHistogram[fmt.Sprintf("e%02d", i)] = 1
	}

	prompt := BuildPrompt(bundle)
	if strings.Contains(prompt, "dep38") {
		t.Fatalf("expected dependencies capped at %d", maxPromptDependencies)
	}
	if !strings.Contains(prompt, "commit 29") || strings.Contains(prompt, "commit 30") {
		t.Fatalf("expected commits capped at %d", maxPromptCommits)
	}
	if strings.Contains(prompt, strings.Repeat("y", 180)) {
		t.Fatalf("expected commit messages truncated")
	}
	if !strings.HasPrefix(strings.Split(prompt, "File extensions histogram (top): ")[1], "go:12, md:3, sql:3") {
		t.Fatalf("expected histogram ordered by count then name:\n%s", prompt)
	}
	if strings.Contains(prompt, "e19") {
		t.Fatalf("expected histogram capped at %d entries", maxPromptExtensions)
	}
}

func TestBuildPromptCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(repoBundle())
	if !strings.Contains(prompt, "- 2025-05-01T00:00:00.000Z: add postgres store") {
		t.Fatalf("expected collapsed commit line, got:\n%s", prompt)
	}
}

func TestBuildPromptForDocument(t *testing.T) {
	t.Parallel()

	bundle := models.SignalBundle{
		Unit:         models.SourceUnit{Name: "cv.pdf", Kind: models.UnitKindDocument},
		DocumentText: strings.Repeat("z", 5000),
	}
	prompt := BuildPrompt(bundle)
	if strings.Count(prompt, "z") != maxDocumentRunes {
		t.Fatalf("expected document text capped at %d runes", maxDocumentRunes)
	}
	if strings.Contains(prompt, "Dependencies") {
		t.Fatalf("document prompt must not describe a repository")
	}
}
