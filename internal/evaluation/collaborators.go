package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

// SignalSource lists a subject's source units and fetches their raw signals.
// Implementations enforce their own per-call timeouts.
type SignalSource interface {
	ListSourceUnits(ctx context.Context, handle string, limit int) ([]models.SourceUnit, error)
	FetchCommitHistory(ctx context.Context, unit models.SourceUnit, limit int) ([]models.Commit, error)
	FetchFileTree(ctx context.Context, unit models.SourceUnit, maxEntries int) ([]models.FileEntry, error)
	FetchDependencyManifests(ctx context.Context, unit models.SourceUnit, tree []models.FileEntry) ([]models.Dependency, error)
}

// DocumentReader is implemented by sources that can produce plain text for
// document units.
type DocumentReader interface {
	FetchDocumentText(ctx context.Context, unit models.SourceUnit) (string, error)
}

// SkillInferer returns an empty list, not an error, for malformed model output.
type SkillInferer interface {
	InferSkills(ctx context.Context, bundle models.SignalBundle) ([]models.DerivedSkill, error)
}

// Store is the persistence collaborator. Lookups of unknown keys wrap
// models.ErrNotFound. Every method that changes job status is a no-op once
// the job is terminal.
type Store interface {
	textvec.VocabularySource

	EnsureSubject(ctx context.Context, handle string, connectedAt time.Time) (models.Subject, error)
	SubjectByID(ctx context.Context, id uuid.UUID) (models.Subject, error)
	SetSubjectEvaluation(ctx context.Context, id uuid.UUID, status models.EvaluationStatus, message string) error

	CreateJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (models.Job, error)
	// LiveJobForSubject returns the newest queued or running job created at or after since.
	LiveJobForSubject(ctx context.Context, subjectID uuid.UUID, since time.Time) (models.Job, error)
	// StartJob moves a queued job, or a running job started before staleBefore,
	// to running with progress at least 1. It reports whether the caller owns the run.
	StartJob(ctx context.Context, id uuid.UUID, startedAt, staleBefore time.Time) (bool, error)
	// AdvanceJobProgress raises progress; lower values are ignored.
	AdvanceJobProgress(ctx context.Context, id uuid.UUID, progress int) error
	CompleteJob(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error)
	FailJob(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) (bool, error)

	// ReplaceSubjectSkills swaps the subject's derived and aggregated skills
	// in one transaction and marks the subject successfully evaluated at
	// evaluatedAt.
	ReplaceSubjectSkills(ctx context.Context, subjectID uuid.UUID, units []models.UnitSkills, skills []models.AggregatedSkill, evaluatedAt time.Time) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// Update is a job transition as published to listeners.
type Update struct {
	JobID     uuid.UUID        `json:"job_id"`
	SubjectID uuid.UUID        `json:"subject_id"`
	Handle    string           `json:"handle"`
	Status    models.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Notifier failures are logged and never affect the job.
type Notifier interface {
	Notify(ctx context.Context, update Update) error
}
