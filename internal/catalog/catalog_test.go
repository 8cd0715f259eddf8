package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

type recordingWriter struct {
	items  []models.CatalogItem
	vocab  *textvec.Vocabulary
	skills []models.CatalogSkill
	gen    int64
}

func (w *recordingWriter) ReplaceCatalog(_ context.Context, items []models.CatalogItem, vocab *textvec.Vocabulary, skills []models.CatalogSkill) (int64, error) {
	w.items, w.vocab, w.skills = items, vocab, skills
	w.gen++
	return w.gen, nil
}

const ndjson = `{"job_title": "Backend Engineer", "company": "Initech", "location": {"city": "Austin", "country": "USA"}, "skills_tech_stack": ["Go", "PostgreSQL", "", 7]}
not json at all
{"company": "No Title Inc", "skills_tech_stack": ["Rust"]}

{"job_title": "Data Engineer", "skills_tech_stack": "Python, SQL"}
`

func TestParse(t *testing.T) {
	t.Parallel()

	items, skipped, err := Parse(strings.NewReader(ndjson))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped lines, got %d", skipped)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	first := items[0]
	if first.ID != 1 || first.Title != "Backend Engineer" || first.LocationCity != "Austin" || first.LocationCountry != "USA" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if strings.Join(first.Skills, ",") != "Go,PostgreSQL,7" {
		t.Fatalf("unexpected skills: %q", first.Skills)
	}
	if items[1].ID != 2 || len(items[1].Skills) != 0 {
		t.Fatalf("expected non-array skills to be ignored, got %+v", items[1])
	}
}

func TestVectorize(t *testing.T) {
	t.Parallel()

	items := []models.CatalogItem{
		{ID: 1, Skills: []string{"Go", "PostgreSQL"}},
		{ID: 2, Skills: []string{"Go"}},
	}
	vocab, skills := Vectorize(items)
	if vocab.Documents != 3 {
		t.Fatalf("expected one document per skill occurrence, got %d", vocab.Documents)
	}
	if len(skills) != 3 || skills[2].ItemID != 2 || skills[2].Skill != "Go" {
		t.Fatalf("unexpected skills: %+v", skills)
	}
	if _, ok := skills[0].Vector["go"]; !ok {
		t.Fatalf("expected vector over the skill tokens, got %v", skills[0].Vector)
	}
}

func testLoader(t *testing.T, w Writer) *Loader {
	t.Helper()
	return NewLoader(w, nil, Options{
		LockPath:    filepath.Join(t.TempDir(), "catalog.lock"),
		LockTimeout: 100 * time.Millisecond,
	}, nil)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.ndjson")
	if err := os.WriteFile(path, []byte(ndjson), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w := &recordingWriter{}
	res, err := testLoader(t, w).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Items != 2 || res.Skipped != 2 || res.Seeded || res.Generation != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Skills != 3 || res.Terms != w.vocab.Len() {
		t.Fatalf("unexpected skill/term counts: %+v", res)
	}
}

func TestLoadSeedsDemoCatalog(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	res, err := testLoader(t, w).Load(context.Background(), filepath.Join(t.TempDir(), "missing.ndjson"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !res.Seeded || res.Items != 2 {
		t.Fatalf("expected demo catalog, got %+v", res)
	}
	if w.items[0].Company != "Acme AI" || w.items[1].Title != "Frontend Engineer" {
		t.Fatalf("unexpected demo items: %+v", w.items)
	}
}

func TestLoadRejectsS3WithoutBucket(t *testing.T) {
	t.Parallel()

	if _, err := testLoader(t, &recordingWriter{}).Load(context.Background(), "s3://catalog/jobs.ndjson"); err == nil {
		t.Fatalf("expected error without r2 configuration")
	}
}

func TestLoadHonoursHostLock(t *testing.T) {
	t.Parallel()

	l := testLoader(t, &recordingWriter{})
	held := flock.New(l.opts.LockPath)
	if _, err := held.TryLock(); err != nil {
		t.Fatalf("take lock: %v", err)
	}
	defer held.Unlock()

	if _, err := l.Load(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "in progress") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}
