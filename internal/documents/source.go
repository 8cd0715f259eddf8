// Package documents turns résumé files uploaded to the bucket under
// <prefix>/<handle>/ into document source units.
package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/r2"
	"github.com/muhammadolammi/skillmatchworker/internal/retry"
)

const SourceName = "documents"

// maxDocumentBytes skips uploads too large to be a résumé.
const maxDocumentBytes = 10 << 20

type Source struct {
	bucket *r2.Bucket
	prefix string
	logger *zap.Logger
}

func NewSource(bucket *r2.Bucket, prefix string, log *zap.Logger) *Source {
	return &Source{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.OrNop(log).With(zap.String("source", SourceName)),
	}
}

func (s *Source) dir(handle string) string {
	if s.prefix == "" {
		return handle + "/"
	}
	return s.prefix + "/" + handle + "/"
}

// ListSourceUnits returns the handle's supported documents, newest first.
func (s *Source) ListSourceUnits(ctx context.Context, handle string, limit int) ([]models.SourceUnit, error) {
	objects, err := retry.Do(ctx, 3, retry.DefaultBackoff, func(ctx context.Context) ([]r2.Object, error) {
		return s.bucket.List(ctx, s.dir(handle))
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	var units []models.SourceUnit
	for _, o := range objects {
		if len(units) == limit {
			break
		}
		if _, ok := MimeForKey(o.Key); !ok {
			continue
		}
		if o.Size > maxDocumentBytes {
			s.logger.Warn("skipping oversized document", zap.String("key", o.Key), zap.Int64("size", o.Size))
			continue
		}
		name := path.Base(o.Key)
		units = append(units, models.SourceUnit{
			ID:         o.Key,
			Kind:       models.UnitKindDocument,
			Source:     SourceName,
			Owner:      handle,
			Name:       name,
			FullName:   handle + "/" + name,
			PushedAtMs: o.LastModified.UnixMilli(),
		})
	}
	return units, nil
}

// Documents have no commit history, tree or manifests.

func (s *Source) FetchCommitHistory(context.Context, models.SourceUnit, int) ([]models.Commit, error) {
	return nil, nil
}

func (s *Source) FetchFileTree(context.Context, models.SourceUnit, int) ([]models.FileEntry, error) {
	return nil, nil
}

func (s *Source) FetchDependencyManifests(context.Context, models.SourceUnit, []models.FileEntry) ([]models.Dependency, error) {
	return nil, nil
}

func (s *Source) FetchDocumentText(ctx context.Context, unit models.SourceUnit) (string, error) {
	mime, ok := MimeForKey(unit.ID)
	if !ok {
		return "", fmt.Errorf("unsupported document %s", unit.ID)
	}
	data, err := retry.Do(ctx, 3, retry.DefaultBackoff, func(ctx context.Context) ([]byte, error) {
		return s.bucket.Download(ctx, unit.ID)
	})
	if err != nil {
		return "", err
	}
	text, err := ExtractText(mime, data)
	if err != nil {
		return "", fmt.Errorf("text extraction error: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("document has no extractable text")
	}
	return text, nil
}
