// Package catalog loads job postings, rebuilds the vocabulary from their
// skills and stores both with precomputed skill vectors.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/r2"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

// Writer persists a catalog in one transaction and returns the new
// vocabulary generation.
type Writer interface {
	ReplaceCatalog(ctx context.Context, items []models.CatalogItem, vocab *textvec.Vocabulary, skills []models.CatalogSkill) (int64, error)
}

type Options struct {
	// LockPath serializes loads on one host. Defaults to a file in the temp dir.
	LockPath    string
	LockTimeout time.Duration
}

type Loader struct {
	writer Writer
	bucket *r2.Bucket
	opts   Options
	logger *zap.Logger
}

type Result struct {
	Items      int   `json:"items"`
	Skills     int   `json:"skills"`
	Terms      int   `json:"terms"`
	Skipped    int   `json:"skipped"`
	Seeded     bool  `json:"seeded"`
	Generation int64 `json:"generation"`
}

// NewLoader returns a loader; bucket may be nil when s3:// sources are not
// configured.
func NewLoader(writer Writer, bucket *r2.Bucket, opts Options, log *zap.Logger) *Loader {
	if opts.LockPath == "" {
		opts.LockPath = filepath.Join(os.TempDir(), "skillmatch-catalog.lock")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	return &Loader{writer: writer, bucket: bucket, opts: opts, logger: logger.OrNop(log)}
}

// Load replaces the stored catalog with the postings at source, a local
// path or s3://bucket/key. A missing local file or an empty source loads the
// demo catalog.
func (l *Loader) Load(ctx context.Context, source string) (Result, error) {
	lock := flock.New(l.opts.LockPath)
	lockCtx, cancel := context.WithTimeout(ctx, l.opts.LockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 200*time.Millisecond)
	if err != nil || !locked {
		return Result{}, fmt.Errorf("another catalog load is in progress (lock: %s): %w", l.opts.LockPath, errors.Join(err, lockCtx.Err()))
	}
	defer lock.Unlock()

	raw, err := l.read(ctx, source)
	if err != nil {
		return Result{}, err
	}

	items, skipped, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return Result{}, err
	}
	res := Result{Skipped: skipped}
	if len(items) == 0 {
		l.logger.Warn("no postings parsed, loading demo catalog", zap.String("source", source), zap.Int("skipped", skipped))
		items = DemoCatalog()
		res.Seeded = true
	}

	vocab, skills := Vectorize(items)
	gen, err := l.writer.ReplaceCatalog(ctx, items, vocab, skills)
	if err != nil {
		return Result{}, fmt.Errorf("replace catalog: %w", err)
	}

	res.Items = len(items)
	res.Skills = len(skills)
	res.Terms = vocab.Len()
	res.Generation = gen
	l.logger.Info("catalog loaded",
		zap.String("source", source),
		zap.Int("items", res.Items),
		zap.Int("skipped", res.Skipped),
		zap.Int("terms", res.Terms),
		zap.Int64("vocabulary_generation", gen),
	)
	return res, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, nil
	}
	if r2.IsObjectURL(source) {
		if l.bucket == nil {
			return nil, errors.New("s3 catalog source needs r2 credentials")
		}
		bucket, key, err := r2.ParseObjectURL(source)
		if err != nil {
			return nil, err
		}
		return l.bucket.WithName(bucket).Download(ctx, key)
	}

	f, err := os.Open(source)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("catalog file not found", zap.String("path", source))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Vectorize builds the vocabulary over every skill occurrence in items and
// the vector of each item skill under it.
func Vectorize(items []models.CatalogItem) (*textvec.Vocabulary, []models.CatalogSkill) {
	var corpus []string
	for _, it := range items {
		corpus = append(corpus, it.Skills...)
	}
	vocab := textvec.BuildVocabulary(corpus)

	skills := make([]models.CatalogSkill, 0, len(corpus))
	for _, it := range items {
		for _, s := range it.Skills {
			skills = append(skills, models.CatalogSkill{
				ItemID: it.ID,
				Skill:  s,
				Vector: textvec.VectorizeText(s, vocab),
			})
		}
	}
	return vocab, skills
}
