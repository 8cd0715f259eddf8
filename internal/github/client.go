// Package github lists a user's repositories and fetches the raw signals
// evaluated for each one.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/manifest"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

// SourceName tags units produced by this package.
const SourceName = "github"

const maxPerPage = 100

type Options struct {
	Token string
	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string
	// RequestsPerSecond paces API calls across all jobs; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

type Client struct {
	client  *github.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(opts Options, log *zap.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = opts.Timeout
	}
	client := github.NewClient(httpClient)

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, opts.Burst))
	}

	return &Client{
		client:  client,
		limiter: limiter,
		logger:  logger.OrNop(log).With(zap.String("source", SourceName)),
	}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("github rate limiter: %w", err)
	}
	return nil
}

// ListSourceUnits returns the user's own repositories, most recently pushed
// first, without forks.
func (c *Client) ListSourceUnits(ctx context.Context, handle string, limit int) ([]models.SourceUnit, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	repos, _, err := c.client.Repositories.ListByUser(ctx, handle, &github.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "pushed",
		ListOptions: github.ListOptions{PerPage: min(maxPerPage, max(1, limit))},
	})
	if err != nil {
		return nil, fmt.Errorf("list repositories of %s: %w", handle, err)
	}

	units := make([]models.SourceUnit, 0, len(repos))
	for _, r := range repos {
		if r.GetFork() {
			continue
		}
		if len(units) == limit {
			break
		}
		var pushed int64
		if r.PushedAt != nil {
			pushed = r.GetPushedAt().UnixMilli()
		}
		units = append(units, models.SourceUnit{
			ID:             strconv.FormatInt(r.GetID(), 10),
			Kind:           models.UnitKindRepository,
			Source:         SourceName,
			Owner:          r.GetOwner().GetLogin(),
			Name:           r.GetName(),
			FullName:       r.GetFullName(),
			DefaultRef:     r.GetDefaultBranch(),
			Stars:          r.GetStargazersCount(),
			Forks:          r.GetForksCount(),
			Language:       r.GetLanguage(),
			PushedAtMs:     pushed,
			TracksActivity: true,
		})
	}
	c.logger.Debug("repositories fetched",
		zap.String(logger.FieldHandle, handle),
		zap.Int("total", len(repos)),
		zap.Int("kept", len(units)),
	)
	return units, nil
}

// FetchCommitHistory returns up to limit commits of the default branch. An
// empty repository has no history rather than an error.
func (c *Client) FetchCommitHistory(ctx context.Context, unit models.SourceUnit, limit int) ([]models.Commit, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	commits, _, err := c.client.Repositories.ListCommits(ctx, unit.Owner, unit.Name, &github.CommitsListOptions{
		SHA:         unit.DefaultRef,
		ListOptions: github.ListOptions{PerPage: min(maxPerPage, max(1, limit))},
	})
	if isStatus(err, http.StatusConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list commits of %s: %w", unit.FullName, err)
	}

	out := make([]models.Commit, 0, min(len(commits), limit))
	for _, rc := range commits {
		if len(out) == limit {
			break
		}
		commit := rc.GetCommit()
		date := commit.GetCommitter().GetDate()
		if date.IsZero() {
			date = commit.GetAuthor().GetDate()
		}
		var ts int64
		if !date.IsZero() {
			ts = date.UnixMilli()
		}
		name := commit.GetAuthor().GetName()
		if name == "" {
			name = rc.GetAuthor().GetLogin()
		}
		out = append(out, models.Commit{
			SHA:         rc.GetSHA(),
			Message:     commit.GetMessage(),
			TimestampMs: ts,
			AuthorName:  name,
			AuthorLogin: rc.GetAuthor().GetLogin(),
		})
	}
	return out, nil
}

// FetchFileTree lists the blobs of the default branch recursively.
func (c *Client) FetchFileTree(ctx context.Context, unit models.SourceUnit, maxEntries int) ([]models.FileEntry, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ref := unit.DefaultRef
	if ref == "" {
		ref = "HEAD"
	}
	tree, _, err := c.client.Git.GetTree(ctx, unit.Owner, unit.Name, ref, true)
	if isStatus(err, http.StatusConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tree of %s: %w", unit.FullName, err)
	}

	files := make([]models.FileEntry, 0, min(len(tree.Entries), maxEntries))
	for _, e := range tree.Entries {
		if len(files) == maxEntries {
			break
		}
		if e.GetType() != "blob" || e.GetPath() == "" {
			continue
		}
		files = append(files, models.FileEntry{Path: e.GetPath(), Extension: Extension(e.GetPath())})
	}
	if tree.GetTruncated() {
		c.logger.Debug("tree truncated by api", zap.String(logger.FieldUnit, unit.FullName))
	}
	return files, nil
}

// Extension returns the lower-cased text after the last dot of the file
// name, or "" when there is none.
func Extension(p string) string {
	base := path.Base(p)
	dot := strings.LastIndex(base, ".")
	if dot < 0 || dot == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[dot+1:])
}

// FetchDependencyManifests reads the shallowest known manifest of each kind
// in tree. A manifest that cannot be fetched or parsed is skipped.
func (c *Client) FetchDependencyManifests(ctx context.Context, unit models.SourceUnit, tree []models.FileEntry) ([]models.Dependency, error) {
	paths := make([]string, len(tree))
	for i, f := range tree {
		paths[i] = f.Path
	}

	var deps []models.Dependency
	for _, name := range manifest.Filenames {
		p, ok := manifest.PickCandidate(paths, name)
		if !ok {
			continue
		}
		content, err := c.fileContent(ctx, unit, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("manifest fetch failed",
				zap.String(logger.FieldUnit, unit.FullName),
				zap.String("path", p),
				zap.Error(err),
			)
			continue
		}
		parsed, err := manifest.Parse(p, []byte(content))
		if err != nil {
			c.logger.Warn("manifest parse failed",
				zap.String(logger.FieldUnit, unit.FullName),
				zap.String("path", p),
				zap.Error(err),
			)
			continue
		}
		deps = append(deps, parsed...)
	}
	return deps, nil
}

func (c *Client) fileContent(ctx context.Context, unit models.SourceUnit, p string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	file, _, _, err := c.client.Repositories.GetContents(ctx, unit.Owner, unit.Name, p, &github.RepositoryContentGetOptions{Ref: unit.DefaultRef})
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", errors.New("path is a directory")
	}
	return file.GetContent()
}

func isStatus(err error, code int) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == code
}
