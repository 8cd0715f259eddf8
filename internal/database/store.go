package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/match"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectFor picks the driver for a connection string: postgres URLs and
// key=value DSNs go to lib/pq, everything else is a SQLite path.
func DialectFor(dsn string) (Dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		return DialectPostgres, dsn
	default:
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite://")
	}
}

// Store is the persistence collaborator for evaluation, matching and catalog
// loading.
type Store struct {
	db      *sql.DB
	q       *Queries
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty database url")
	}
	dialect, source := DialectFor(dsn)

	if dialect == DialectSQLite {
		if dir := filepath.Dir(source); dir != "." && !strings.HasPrefix(source, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, fmt.Errorf("error opening db: %w", err)
	}
	if dialect == DialectSQLite {
		// one writer; also makes every transaction serializable
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := (Migrator{}).Up(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, q: New(db), dialect: dialect, logger: logger.OrNop(log)}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Queries() *Queries { return s.q }

// withTx commits when fn returns nil and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.q.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// snapshot runs fn against one consistent view of the database.
func (s *Store) snapshot(ctx context.Context, fn func(q *Queries) error) error {
	var opts *sql.TxOptions
	if s.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return s.withTx(ctx, opts, fn)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return err
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func toSubject(row Subject) models.Subject {
	return models.Subject{
		ID:               row.ID,
		Handle:           row.Handle,
		ConnectedAt:      fromMillis(row.ConnectedAt),
		LastEvaluatedAt:  nullMillis(row.LastEvaluatedAt),
		EvaluationStatus: models.EvaluationStatus(row.EvaluationStatus),
		EvaluationError:  row.EvaluationError,
	}
}

func toJob(row EvaluationJob) models.Job {
	return models.Job{
		ID:          row.ID,
		SubjectID:   row.SubjectID,
		Status:      models.JobStatus(row.Status),
		Progress:    int(row.Progress),
		CreatedAt:   fromMillis(row.CreatedAt),
		StartedAt:   nullMillis(row.StartedAt),
		CompletedAt: nullMillis(row.CompletedAt),
		Error:       row.Error,
	}
}

// Subjects

func (s *Store) EnsureSubject(ctx context.Context, handle string, connectedAt time.Time) (models.Subject, error) {
	err := s.q.InsertSubject(ctx, InsertSubjectParams{
		ID:          uuid.New(),
		Handle:      handle,
		ConnectedAt: connectedAt.UnixMilli(),
	})
	if err != nil {
		return models.Subject{}, fmt.Errorf("insert subject: %w", err)
	}
	return s.SubjectByHandle(ctx, handle)
}

func (s *Store) SubjectByHandle(ctx context.Context, handle string) (models.Subject, error) {
	row, err := s.q.GetSubjectByHandle(ctx, handle)
	if err != nil {
		return models.Subject{}, notFound(err, "subject "+handle)
	}
	return toSubject(row), nil
}

func (s *Store) SubjectByID(ctx context.Context, id uuid.UUID) (models.Subject, error) {
	row, err := s.q.GetSubjectByID(ctx, id)
	if err != nil {
		return models.Subject{}, notFound(err, "subject "+id.String())
	}
	return toSubject(row), nil
}

func (s *Store) SetSubjectEvaluation(ctx context.Context, id uuid.UUID, status models.EvaluationStatus, message string) error {
	return s.q.UpdateSubjectEvaluation(ctx, UpdateSubjectEvaluationParams{
		EvaluationStatus: string(status),
		EvaluationError:  message,
		ID:               id,
	})
}

// Jobs

func (s *Store) CreateJob(ctx context.Context, job models.Job) error {
	return s.q.CreateJob(ctx, CreateJobParams{
		ID:        job.ID,
		SubjectID: job.SubjectID,
		Status:    string(job.Status),
		Progress:  int32(job.Progress),
		CreatedAt: job.CreatedAt.UnixMilli(),
	})
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (models.Job, error) {
	row, err := s.q.GetJob(ctx, id)
	if err != nil {
		return models.Job{}, notFound(err, "job "+id.String())
	}
	return toJob(row), nil
}

func (s *Store) LiveJobForSubject(ctx context.Context, subjectID uuid.UUID, since time.Time) (models.Job, error) {
	row, err := s.q.GetLiveJobForSubject(ctx, GetLiveJobForSubjectParams{
		SubjectID: subjectID,
		Since:     since.UnixMilli(),
	})
	if err != nil {
		return models.Job{}, notFound(err, "live job")
	}
	return toJob(row), nil
}

func (s *Store) StartJob(ctx context.Context, id uuid.UUID, startedAt, staleBefore time.Time) (bool, error) {
	n, err := s.q.StartJob(ctx, StartJobParams{
		StartedAt:   startedAt.UnixMilli(),
		ID:          id,
		StaleBefore: staleBefore.UnixMilli(),
	})
	return n > 0, err
}

func (s *Store) AdvanceJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	return s.q.AdvanceJobProgress(ctx, AdvanceJobProgressParams{Progress: int32(progress), ID: id})
}

func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	n, err := s.q.CompleteJob(ctx, CompleteJobParams{CompletedAt: completedAt.UnixMilli(), ID: id})
	return n > 0, err
}

func (s *Store) FailJob(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) (bool, error) {
	n, err := s.q.FailJob(ctx, FailJobParams{Error: message, CompletedAt: completedAt.UnixMilli(), ID: id})
	return n > 0, err
}

// Skills

// ReplaceSubjectSkills deletes and reinserts the subject's units, derived
// skills and aggregated skills in one transaction. The subject row is
// updated first so concurrent replaces for one subject queue behind each
// other instead of colliding on keys.
func (s *Store) ReplaceSubjectSkills(ctx context.Context, subjectID uuid.UUID, units []models.UnitSkills, skills []models.AggregatedSkill, evaluatedAt time.Time) error {
	return s.withTx(ctx, nil, func(q *Queries) error {
		n, err := q.MarkSubjectEvaluated(ctx, MarkSubjectEvaluatedParams{LastEvaluatedAt: evaluatedAt.UnixMilli(), ID: subjectID})
		if err != nil {
			return fmt.Errorf("mark subject evaluated: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("subject %s: %w", subjectID, models.ErrNotFound)
		}

		if err := q.DeleteUnitSkills(ctx, subjectID); err != nil {
			return fmt.Errorf("delete unit skills: %w", err)
		}
		if err := q.DeleteSourceUnits(ctx, subjectID); err != nil {
			return fmt.Errorf("delete source units: %w", err)
		}
		if err := q.DeleteSubjectSkills(ctx, subjectID); err != nil {
			return fmt.Errorf("delete subject skills: %w", err)
		}

		for _, u := range units {
			if err := q.InsertSourceUnit(ctx, SourceUnit{
				SubjectID:  subjectID,
				UnitID:     u.Unit.ID,
				Kind:       string(u.Unit.Kind),
				Source:     u.Unit.Source,
				Owner:      u.Unit.Owner,
				Name:       u.Unit.Name,
				FullName:   u.Unit.FullName,
				DefaultRef: u.Unit.DefaultRef,
				Stars:      int32(u.Unit.Stars),
				Forks:      int32(u.Unit.Forks),
				Language:   u.Unit.Language,
				PushedAt:   u.Unit.PushedAtMs,
			}); err != nil {
				return fmt.Errorf("insert source unit %s: %w", u.Unit.ID, err)
			}
			for _, sk := range u.Skills {
				evidence, err := json.Marshal(nonNil(sk.Evidence))
				if err != nil {
					return fmt.Errorf("encode evidence: %w", err)
				}
				if err := q.InsertUnitSkill(ctx, UnitSkill{
					SubjectID: subjectID,
					UnitID:    u.Unit.ID,
					Skill:     sk.Skill,
					Score:     sk.Score,
					Reasoning: sk.Reasoning,
					Evidence:  string(evidence),
				}); err != nil {
					return fmt.Errorf("insert unit skill: %w", err)
				}
			}
		}

		for _, sk := range skills {
			vec, err := textvec.EncodeVector(sk.Vector)
			if err != nil {
				return fmt.Errorf("encode vector: %w", err)
			}
			if err := q.InsertSubjectSkill(ctx, SubjectSkill{
				SubjectID:            subjectID,
				Skill:                sk.Skill,
				Score:                sk.Score,
				Reasoning:            sk.Reasoning,
				Vector:               vec,
				VocabularyGeneration: sk.VocabularyGeneration,
			}); err != nil {
				return fmt.Errorf("insert subject skill %q: %w", sk.Skill, err)
			}
		}
		return nil
	})
}

func (s *Store) SubjectSkills(ctx context.Context, subjectID uuid.UUID) ([]models.AggregatedSkill, error) {
	rows, err := s.q.ListSubjectSkills(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list subject skills: %w", err)
	}
	out := make([]models.AggregatedSkill, 0, len(rows))
	for _, r := range rows {
		vec, err := textvec.DecodeVector(r.Vector)
		if err != nil {
			return nil, fmt.Errorf("decode vector for %q: %w", r.Skill, err)
		}
		out = append(out, models.AggregatedSkill{
			Skill:                r.Skill,
			Score:                r.Score,
			Reasoning:            r.Reasoning,
			Vector:               vec,
			VocabularyGeneration: r.VocabularyGeneration,
		})
	}
	return out, nil
}

// SubjectUnits returns the stored source units with their derived skills.
func (s *Store) SubjectUnits(ctx context.Context, subjectID uuid.UUID) ([]models.UnitSkills, error) {
	var (
		units  []SourceUnit
		skills []UnitSkill
	)
	err := s.snapshot(ctx, func(q *Queries) error {
		var err error
		if units, err = q.ListSourceUnits(ctx, subjectID); err != nil {
			return fmt.Errorf("list source units: %w", err)
		}
		if skills, err = q.ListUnitSkills(ctx, subjectID); err != nil {
			return fmt.Errorf("list unit skills: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byUnit := make(map[string][]models.DerivedSkill, len(units))
	for _, sk := range skills {
		var evidence []string
		if err := json.Unmarshal([]byte(sk.Evidence), &evidence); err != nil {
			s.logger.Warn("unreadable evidence", zap.String("unit", sk.UnitID), zap.Error(err))
		}
		byUnit[sk.UnitID] = append(byUnit[sk.UnitID], models.DerivedSkill{
			Skill:     sk.Skill,
			Score:     sk.Score,
			Reasoning: sk.Reasoning,
			Evidence:  evidence,
		})
	}

	out := make([]models.UnitSkills, 0, len(units))
	for _, u := range units {
		out = append(out, models.UnitSkills{
			Unit: models.SourceUnit{
				ID:             u.UnitID,
				Kind:           models.UnitKind(u.Kind),
				Source:         u.Source,
				Owner:          u.Owner,
				Name:           u.Name,
				FullName:       u.FullName,
				DefaultRef:     u.DefaultRef,
				Stars:          int(u.Stars),
				Forks:          int(u.Forks),
				Language:       u.Language,
				PushedAtMs:     u.PushedAt,
				TracksActivity: models.UnitKind(u.Kind) != models.UnitKindDocument,
			},
			Skills: byUnit[u.UnitID],
		})
	}
	return out, nil
}

// Vocabulary

func (s *Store) VocabularyGeneration(ctx context.Context) (int64, error) {
	state, err := s.q.GetVocabularyState(ctx)
	if err != nil {
		return 0, fmt.Errorf("get vocabulary state: %w", err)
	}
	return state.Generation, nil
}

func (s *Store) LoadVocabulary(ctx context.Context) (*textvec.Vocabulary, error) {
	var (
		state VocabularyState
		terms []VocabularyTerm
	)
	err := s.snapshot(ctx, func(q *Queries) error {
		var err error
		if state, err = q.GetVocabularyState(ctx); err != nil {
			return fmt.Errorf("get vocabulary state: %w", err)
		}
		if terms, err = q.ListVocabulary(ctx); err != nil {
			return fmt.Errorf("list vocabulary: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]textvec.Entry, 0, len(terms))
	for _, t := range terms {
		entries = append(entries, textvec.Entry{
			Term:                     t.Term,
			DocumentFrequency:        int(t.DocumentFrequency),
			InverseDocumentFrequency: t.Idf,
		})
	}
	return textvec.NewVocabulary(state.Generation, int(state.Documents), entries), nil
}

// Catalog

// ReplaceCatalog swaps the vocabulary, catalog items and catalog skill
// vectors in one transaction under a new vocabulary generation, which it
// returns. Skill generations are overwritten with the new one.
func (s *Store) ReplaceCatalog(ctx context.Context, items []models.CatalogItem, vocab *textvec.Vocabulary, skills []models.CatalogSkill) (int64, error) {
	var generation int64
	err := s.withTx(ctx, nil, func(q *Queries) error {
		if err := q.BumpVocabularyGeneration(ctx, int32(vocab.Documents)); err != nil {
			return fmt.Errorf("bump vocabulary generation: %w", err)
		}
		state, err := q.GetVocabularyState(ctx)
		if err != nil {
			return fmt.Errorf("get vocabulary state: %w", err)
		}
		generation = state.Generation

		if err := q.DeleteCatalogSkills(ctx); err != nil {
			return fmt.Errorf("delete catalog skills: %w", err)
		}
		if err := q.DeleteCatalogItems(ctx); err != nil {
			return fmt.Errorf("delete catalog items: %w", err)
		}
		if err := q.DeleteVocabulary(ctx); err != nil {
			return fmt.Errorf("delete vocabulary: %w", err)
		}

		for _, e := range vocab.Entries() {
			if err := q.InsertVocabularyTerm(ctx, VocabularyTerm{
				Term:              e.Term,
				DocumentFrequency: int32(e.DocumentFrequency),
				Idf:               e.InverseDocumentFrequency,
			}); err != nil {
				return fmt.Errorf("insert term %q: %w", e.Term, err)
			}
		}

		for _, item := range items {
			skillsJSON, err := json.Marshal(nonNil(item.Skills))
			if err != nil {
				return fmt.Errorf("encode skills: %w", err)
			}
			if err := q.InsertCatalogItem(ctx, CatalogItem{
				ID:              item.ID,
				Title:           item.Title,
				Company:         item.Company,
				LocationCity:    item.LocationCity,
				LocationState:   item.LocationState,
				LocationCountry: item.LocationCountry,
				ExperienceLevel: item.ExperienceLevel,
				EmploymentType:  item.EmploymentType,
				Skills:          string(skillsJSON),
				JobUrl:          item.JobURL,
				ApplyUrl:        item.ApplyURL,
			}); err != nil {
				return fmt.Errorf("insert catalog item %d: %w", item.ID, err)
			}
		}

		ordinals := make(map[int64]int32)
		for _, sk := range skills {
			vec, err := textvec.EncodeVector(sk.Vector)
			if err != nil {
				return fmt.Errorf("encode vector: %w", err)
			}
			if err := q.InsertCatalogSkill(ctx, CatalogSkill{
				ItemID:               sk.ItemID,
				Ordinal:              ordinals[sk.ItemID],
				Skill:                sk.Skill,
				Vector:               vec,
				VocabularyGeneration: generation,
			}); err != nil {
				return fmt.Errorf("insert catalog skill %q: %w", sk.Skill, err)
			}
			ordinals[sk.ItemID]++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("catalog replaced",
		zap.Int("items", len(items)),
		zap.Int("skills", len(skills)),
		zap.Int("terms", vocab.Len()),
		zap.Int64("vocabulary_generation", generation),
	)
	return generation, nil
}

func (s *Store) CatalogSize(ctx context.Context) (int64, error) {
	return s.q.CountCatalogItems(ctx)
}

// Catalog reads items, skill vectors and the generation from one snapshot.
func (s *Store) Catalog(ctx context.Context) (match.Catalog, error) {
	var (
		state  VocabularyState
		items  []CatalogItem
		skills []CatalogSkill
	)
	err := s.snapshot(ctx, func(q *Queries) error {
		var err error
		if state, err = q.GetVocabularyState(ctx); err != nil {
			return fmt.Errorf("get vocabulary state: %w", err)
		}
		if items, err = q.ListCatalogItems(ctx); err != nil {
			return fmt.Errorf("list catalog items: %w", err)
		}
		if skills, err = q.ListCatalogSkills(ctx); err != nil {
			return fmt.Errorf("list catalog skills: %w", err)
		}
		return nil
	})
	if err != nil {
		return match.Catalog{}, err
	}

	out := match.Catalog{
		Generation: state.Generation,
		Items:      make([]models.CatalogItem, 0, len(items)),
		Skills:     make([]models.CatalogSkill, 0, len(skills)),
	}
	for _, it := range items {
		var names []string
		if err := json.Unmarshal([]byte(it.Skills), &names); err != nil {
			return match.Catalog{}, fmt.Errorf("decode skills of item %d: %w", it.ID, err)
		}
		out.Items = append(out.Items, models.CatalogItem{
			ID:              it.ID,
			Title:           it.Title,
			Company:         it.Company,
			LocationCity:    it.LocationCity,
			LocationState:   it.LocationState,
			LocationCountry: it.LocationCountry,
			ExperienceLevel: it.ExperienceLevel,
			EmploymentType:  it.EmploymentType,
			Skills:          names,
			JobURL:          it.JobUrl,
			ApplyURL:        it.ApplyUrl,
		})
	}
	for _, sk := range skills {
		vec, err := textvec.DecodeVector(sk.Vector)
		if err != nil {
			return match.Catalog{}, fmt.Errorf("decode vector of item %d: %w", sk.ItemID, err)
		}
		out.Skills = append(out.Skills, models.CatalogSkill{
			ItemID:               sk.ItemID,
			Skill:                sk.Skill,
			Vector:               vec,
			VocabularyGeneration: sk.VocabularyGeneration,
		})
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
