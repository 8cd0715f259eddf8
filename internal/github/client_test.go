package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, RequestsPerSecond: 100, Burst: 10}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestListSourceUnitsDropsForks(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sort"); got != "pushed" {
			t.Errorf("expected sort=pushed, got %q", got)
		}
		if got := r.URL.Query().Get("type"); got != "owner" {
			t.Errorf("expected type=owner, got %q", got)
		}
		fmt.Fprint(w, `[
			{"id": 1, "name": "hello", "full_name": "octocat/hello", "owner": {"login": "octocat"}, "default_branch": "main", "stargazers_count": 4, "language": "Go", "pushed_at": "2025-05-01T00:00:00Z"},
			{"id": 2, "name": "forked", "full_name": "octocat/forked", "owner": {"login": "octocat"}, "fork": true},
			{"id": 3, "name": "site", "full_name": "octocat/site", "owner": {"login": "octocat"}, "default_branch": "gh-pages"}
		]`)
	})
	c := newTestClient(t, mux)

	units, err := c.ListSourceUnits(context.Background(), "octocat", 25)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %+v", units)
	}
	u := units[0]
	if u.ID != "1" || u.FullName != "octocat/hello" || u.DefaultRef != "main" || u.Stars != 4 || u.Source != SourceName || !u.TracksActivity {
		t.Fatalf("unexpected unit: %+v", u)
	}
	if u.PushedAtMs != 1746057600000 {
		t.Fatalf("unexpected pushed at: %d", u.PushedAtMs)
	}

	limited, _ := c.ListSourceUnits(context.Background(), "octocat", 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply after dropping forks, got %d", len(limited))
	}
}

func TestListSourceUnitsUnknownUser(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/ghost/repos", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	c := newTestClient(t, mux)

	if _, err := c.ListSourceUnits(context.Background(), "ghost", 25); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestFetchCommitHistory(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/hello/commits", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sha"); got != "main" {
			t.Errorf("expected sha=main, got %q", got)
		}
		fmt.Fprint(w, `[
			{"sha": "a1", "commit": {"message": "add parser", "committer": {"date": "2025-05-02T00:00:00Z"}, "author": {"name": "Octo Cat"}}, "author": {"login": "octocat"}},
			{"sha": "a2", "commit": {"message": "init", "author": {"date": "2025-05-01T00:00:00Z"}}}
		]`)
	})
	mux.HandleFunc("/repos/octocat/empty/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message": "Git Repository is empty."}`)
	})
	c := newTestClient(t, mux)

	unit := models.SourceUnit{Owner: "octocat", Name: "hello", FullName: "octocat/hello", DefaultRef: "main"}
	commits, err := c.FetchCommitHistory(context.Background(), unit, 100)
	if err != nil {
		t.Fatalf("commits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].AuthorName != "Octo Cat" || commits[0].AuthorLogin != "octocat" || commits[0].TimestampMs != 1746144000000 {
		t.Fatalf("unexpected first commit: %+v", commits[0])
	}
	if commits[1].TimestampMs != 1746057600000 {
		t.Fatalf("expected author date fallback, got %d", commits[1].TimestampMs)
	}

	empty, err := c.FetchCommitHistory(context.Background(), models.SourceUnit{Owner: "octocat", Name: "empty"}, 100)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no history for an empty repository, got %v %v", empty, err)
	}
}

func TestFetchFileTreeAndManifests(t *testing.T) {
	t.Parallel()

	gomod := base64.StdEncoding.EncodeToString([]byte("module example.com/hello\n\ngo 1.22\n\nrequire github.com/lib/pq v1.10.9\n"))

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/hello/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") == "" {
			t.Errorf("expected recursive tree request")
		}
		fmt.Fprint(w, `{"sha": "t1", "tree": [
			{"path": "go.mod", "type": "blob"},
			{"path": "cmd", "type": "tree"},
			{"path": "cmd/Main.GO", "type": "blob"},
			{"path": "Makefile", "type": "blob"},
			{"path": "node_modules/x/package.json", "type": "blob"}
		]}`)
	})
	mux.HandleFunc("/repos/octocat/hello/contents/go.mod", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"type": "file", "encoding": "base64", "path": "go.mod", "content": %q}`, gomod)
	})
	c := newTestClient(t, mux)

	unit := models.SourceUnit{Owner: "octocat", Name: "hello", FullName: "octocat/hello", DefaultRef: "main"}
	tree, err := c.FetchFileTree(context.Background(), unit, 3)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree) != 3 || tree[1].Extension != "go" || tree[2].Extension != "" {
		t.Fatalf("unexpected tree: %+v", tree)
	}

	full, _ := c.FetchFileTree(context.Background(), unit, 2000)
	deps, err := c.FetchDependencyManifests(context.Background(), unit, full)
	if err != nil {
		t.Fatalf("manifests: %v", err)
	}
	if len(deps) != 1 || deps[0].Name != "github.com/lib/pq" || deps[0].Manager != "go" {
		t.Fatalf("unexpected deps: %+v", deps)
	}
}

func TestExtension(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"main.go":         "go",
		"src/App.TSX":     "tsx",
		"Makefile":        "",
		"dir.v2/Makefile": "",
		"trailing.":       "",
		".gitignore":      "gitignore",
	}
	for in, want := range tests {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}
