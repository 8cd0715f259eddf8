package database

import (
	"context"

	"github.com/google/uuid"
)

const createJob = `-- name: CreateJob :exec
INSERT INTO evaluation_jobs (id, subject_id, status, progress, created_at, error)
VALUES ($1, $2, $3, $4, $5, '')
`

type CreateJobParams struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	Status    string
	Progress  int32
	CreatedAt int64
}

func (q *Queries) CreateJob(ctx context.Context, arg CreateJobParams) error {
	_, err := q.db.ExecContext(ctx, createJob,
		arg.ID,
		arg.SubjectID,
		arg.Status,
		arg.Progress,
		arg.CreatedAt,
	)
	return err
}

const getJob = `-- name: GetJob :one
SELECT id, subject_id, status, progress, created_at, started_at, completed_at, error
FROM evaluation_jobs
WHERE id = $1
`

func (q *Queries) GetJob(ctx context.Context, id uuid.UUID) (EvaluationJob, error) {
	row := q.db.QueryRowContext(ctx, getJob, id)
	var i EvaluationJob
	err := row.Scan(
		&i.ID,
		&i.SubjectID,
		&i.Status,
		&i.Progress,
		&i.CreatedAt,
		&i.StartedAt,
		&i.CompletedAt,
		&i.Error,
	)
	return i, err
}

const getLiveJobForSubject = `-- name: GetLiveJobForSubject :one
SELECT id, subject_id, status, progress, created_at, started_at, completed_at, error
FROM evaluation_jobs
WHERE subject_id = $1
  AND status IN ('queued', 'running')
  AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1
`

type GetLiveJobForSubjectParams struct {
	SubjectID uuid.UUID
	Since     int64
}

func (q *Queries) GetLiveJobForSubject(ctx context.Context, arg GetLiveJobForSubjectParams) (EvaluationJob, error) {
	row := q.db.QueryRowContext(ctx, getLiveJobForSubject, arg.SubjectID, arg.Since)
	var i EvaluationJob
	err := row.Scan(
		&i.ID,
		&i.SubjectID,
		&i.Status,
		&i.Progress,
		&i.CreatedAt,
		&i.StartedAt,
		&i.CompletedAt,
		&i.Error,
	)
	return i, err
}

const startJob = `-- name: StartJob :execrows
UPDATE evaluation_jobs
SET status = 'running',
    started_at = $1,
    progress = CASE WHEN progress < 1 THEN 1 ELSE progress END
WHERE id = $2
  AND (status = 'queued' OR (status = 'running' AND started_at < $3))
`

type StartJobParams struct {
	StartedAt   int64
	ID          uuid.UUID
	StaleBefore int64
}

func (q *Queries) StartJob(ctx context.Context, arg StartJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, startJob, arg.StartedAt, arg.ID, arg.StaleBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const advanceJobProgress = `-- name: AdvanceJobProgress :exec
UPDATE evaluation_jobs
SET progress = $1
WHERE id = $2 AND status = 'running' AND progress < $1
`

type AdvanceJobProgressParams struct {
	Progress int32
	ID       uuid.UUID
}

func (q *Queries) AdvanceJobProgress(ctx context.Context, arg AdvanceJobProgressParams) error {
	_, err := q.db.ExecContext(ctx, advanceJobProgress, arg.Progress, arg.ID)
	return err
}

const completeJob = `-- name: CompleteJob :execrows
UPDATE evaluation_jobs
SET status = 'success', progress = 100, completed_at = $1, error = ''
WHERE id = $2 AND status = 'running'
`

type CompleteJobParams struct {
	CompletedAt int64
	ID          uuid.UUID
}

func (q *Queries) CompleteJob(ctx context.Context, arg CompleteJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeJob, arg.CompletedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const failJob = `-- name: FailJob :execrows
UPDATE evaluation_jobs
SET status = 'error', error = $1, completed_at = $2
WHERE id = $3 AND status IN ('queued', 'running')
`

type FailJobParams struct {
	Error       string
	CompletedAt int64
	ID          uuid.UUID
}

func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, failJob, arg.Error, arg.CompletedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
