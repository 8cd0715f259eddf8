package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

const maxSnapshotAttempts = 3

var errGenerationMoved = errors.New("vocabulary generation changed during read")

// Catalog is a consistent read of the catalog under one vocabulary generation.
type Catalog struct {
	Generation int64
	Items      []models.CatalogItem
	Skills     []models.CatalogSkill
}

type Reader interface {
	SubjectByHandle(ctx context.Context, handle string) (models.Subject, error)
	SubjectSkills(ctx context.Context, subjectID uuid.UUID) ([]models.AggregatedSkill, error)
	Catalog(ctx context.Context) (Catalog, error)
}

// Service answers match requests from whatever aggregated state is current.
type Service struct {
	reader Reader
	vocab  *textvec.VocabularyCache
	opts   Options
	logger *zap.Logger
}

func NewService(reader Reader, vocab *textvec.VocabularyCache, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reader: reader, vocab: vocab, opts: opts.withDefaults(), logger: logger}
}

// Match ranks the catalog for the subject behind handle. Unknown subjects and
// subjects without skills get an empty ranking.
func (s *Service) Match(ctx context.Context, handle string) ([]models.MatchResult, error) {
	subject, err := s.reader.SubjectByHandle(ctx, handle)
	if errors.Is(err, models.ErrNotFound) {
		return []models.MatchResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}

	skills, err := s.reader.SubjectSkills(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("get subject skills: %w", err)
	}
	if len(skills) == 0 {
		return []models.MatchResult{}, nil
	}

	for attempt := 1; ; attempt++ {
		results, err := s.rank(ctx, skills)
		if err == nil {
			s.logger.Debug("ranked catalog",
				zap.String("handle", subject.Handle),
				zap.Int("subject_skills", len(skills)),
				zap.Int("results", len(results)),
			)
			return results, nil
		}
		if !errors.Is(err, errGenerationMoved) || attempt >= maxSnapshotAttempts {
			return nil, err
		}
		s.logger.Debug("catalog reloaded while matching, retrying", zap.Int("attempt", attempt))
	}
}

func (s *Service) rank(ctx context.Context, skills []models.AggregatedSkill) ([]models.MatchResult, error) {
	catalog, err := s.reader.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("get catalog: %w", err)
	}

	subject, err := s.subjectVectors(ctx, skills, catalog.Generation)
	if err != nil {
		return nil, err
	}

	return Rank(subject, groupCatalog(catalog), s.opts), nil
}

// subjectVectors returns vectors comparable with the catalog generation,
// recomputing the ones stored under an older vocabulary.
func (s *Service) subjectVectors(ctx context.Context, skills []models.AggregatedSkill, generation int64) ([]SubjectSkill, error) {
	var vocab *textvec.Vocabulary

	out := make([]SubjectSkill, 0, len(skills))
	for _, sk := range skills {
		vec := textvec.Vector(sk.Vector)
		if sk.VocabularyGeneration != generation {
			if vocab == nil {
				v, err := s.vocab.Current(ctx)
				if err != nil {
					return nil, err
				}
				if v.Generation != generation {
					return nil, errGenerationMoved
				}
				vocab = v
			}
			vec = textvec.VectorizeText(sk.Skill, vocab)
		}
		out = append(out, SubjectSkill{Name: sk.Skill, Score: sk.Score, Vector: vec})
	}
	return out, nil
}

func groupCatalog(c Catalog) []CatalogEntry {
	byItem := make(map[int64][]CatalogSkill, len(c.Items))
	for _, sk := range c.Skills {
		byItem[sk.ItemID] = append(byItem[sk.ItemID], CatalogSkill{Name: sk.Skill, Vector: sk.Vector})
	}

	entries := make([]CatalogEntry, 0, len(c.Items))
	for _, item := range c.Items {
		entries = append(entries, CatalogEntry{Item: item, Skills: byItem[item.ID]})
	}
	return entries
}
