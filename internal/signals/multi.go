// Package signals combines several signal sources behind one
// evaluation.SignalSource.
package signals

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

// Named registers a source under the name its units carry in
// SourceUnit.Source. Listing failures of an optional source are logged and
// the source is left out of that evaluation.
type Named struct {
	Name     string
	Source   evaluation.SignalSource
	Optional bool
}

type Multi struct {
	sources []Named
	byName  map[string]evaluation.SignalSource
	logger  *zap.Logger
}

func NewMulti(log *zap.Logger, sources ...Named) (*Multi, error) {
	m := &Multi{byName: make(map[string]evaluation.SignalSource, len(sources)), logger: logger.OrNop(log)}
	for _, s := range sources {
		if s.Source == nil {
			return nil, fmt.Errorf("signal source %q is nil", s.Name)
		}
		if _, dup := m.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate signal source %q", s.Name)
		}
		m.byName[s.Name] = s.Source
		m.sources = append(m.sources, s)
	}
	if len(m.sources) == 0 {
		return nil, fmt.Errorf("no signal sources configured")
	}
	return m, nil
}

// ListSourceUnits concatenates listings in registration order and caps the
// result at limit.
func (m *Multi) ListSourceUnits(ctx context.Context, handle string, limit int) ([]models.SourceUnit, error) {
	var units []models.SourceUnit
	for _, s := range m.sources {
		remaining := limit - len(units)
		if remaining <= 0 {
			break
		}
		listed, err := s.Source.ListSourceUnits(ctx, handle, remaining)
		if err != nil {
			if s.Optional && ctx.Err() == nil {
				m.logger.Warn("optional signal source unavailable",
					zap.String("source", s.Name),
					zap.String(logger.FieldHandle, handle),
					zap.Error(err),
				)
				continue
			}
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		if len(listed) > remaining {
			listed = listed[:remaining]
		}
		units = append(units, listed...)
	}
	return units, nil
}

func (m *Multi) route(unit models.SourceUnit) (evaluation.SignalSource, error) {
	s, ok := m.byName[unit.Source]
	if !ok {
		return nil, fmt.Errorf("no signal source for %q", unit.Source)
	}
	return s, nil
}

func (m *Multi) FetchCommitHistory(ctx context.Context, unit models.SourceUnit, limit int) ([]models.Commit, error) {
	s, err := m.route(unit)
	if err != nil {
		return nil, err
	}
	return s.FetchCommitHistory(ctx, unit, limit)
}

func (m *Multi) FetchFileTree(ctx context.Context, unit models.SourceUnit, maxEntries int) ([]models.FileEntry, error) {
	s, err := m.route(unit)
	if err != nil {
		return nil, err
	}
	return s.FetchFileTree(ctx, unit, maxEntries)
}

func (m *Multi) FetchDependencyManifests(ctx context.Context, unit models.SourceUnit, tree []models.FileEntry) ([]models.Dependency, error) {
	s, err := m.route(unit)
	if err != nil {
		return nil, err
	}
	return s.FetchDependencyManifests(ctx, unit, tree)
}

func (m *Multi) FetchDocumentText(ctx context.Context, unit models.SourceUnit) (string, error) {
	s, err := m.route(unit)
	if err != nil {
		return "", err
	}
	reader, ok := s.(evaluation.DocumentReader)
	if !ok {
		return "", fmt.Errorf("signal source %q cannot read documents", unit.Source)
	}
	return reader.FetchDocumentText(ctx, unit)
}
