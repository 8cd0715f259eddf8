package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/muhammadolammi/skillmatchworker/internal/catalog"
	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useTempDatabase(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_URL", "sqlite://"+filepath.Join(dir, "skillmatch.db"))
	t.Setenv("SKILLMATCH_CATALOG_LOCK_PATH", filepath.Join(dir, "catalog.lock"))
	t.Setenv("SKILLMATCH_CATALOG_SOURCE", "")
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"worker", "evaluate", "status", "skills", "match", "catalog", "migrate", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	if cmd, _, err := rootCmd.Find([]string{"catalog", "load"}); err != nil || cmd.Name() != "load" {
		t.Errorf("catalog load not registered")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "skillmatch version: ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStoreCommandsAgainstSQLite(t *testing.T) {
	useTempDatabase(t)

	out, err := runCLI(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema version: 2 (latest 2)") {
		t.Fatalf("migrate output = %q", out)
	}

	out, err = runCLI(t, "catalog", "load")
	if err != nil {
		t.Fatalf("catalog load: %v", err)
	}
	var result catalog.Result
	if err := json.Unmarshal([]byte(out[strings.Index(out, "{"):]), &result); err != nil {
		t.Fatalf("decode catalog result %q: %v", out, err)
	}
	if !result.Seeded || result.Items != 2 || result.Generation != 1 {
		t.Fatalf("catalog result = %+v", result)
	}

	out, err = runCLI(t, "match", "nobody-evaluated")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if strings.TrimSpace(out[strings.Index(out, "["):]) != "[]" {
		t.Fatalf("match output = %q, want an empty ranking", out)
	}

	_, err = runCLI(t, "status", uuid.NewString())
	if err == nil || err.Error() != evaluation.ErrJobNotFound.Error() {
		t.Fatalf("status error = %v, want %v", err, evaluation.ErrJobNotFound)
	}

	_, err = runCLI(t, "status", "not-a-uuid")
	var verr *evaluation.ValidationError
	if !errors.As(err, &verr) || verr.Input != "not-a-uuid" {
		t.Fatalf("status error = %v, want a validation error", err)
	}

	_, err = runCLI(t, "skills", "nobody-evaluated")
	if err == nil || err.Error() != evaluation.ErrSubjectNotFound.Error() {
		t.Fatalf("skills error = %v, want %v", err, evaluation.ErrSubjectNotFound)
	}
}
