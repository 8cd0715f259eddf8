package database

import (
	"context"

	"github.com/google/uuid"
)

const insertSubject = `-- name: InsertSubject :exec
INSERT INTO subjects (id, handle, connected_at, evaluation_status, evaluation_error)
VALUES ($1, $2, $3, 'idle', '')
ON CONFLICT (handle) DO NOTHING
`

type InsertSubjectParams struct {
	ID          uuid.UUID
	Handle      string
	ConnectedAt int64
}

func (q *Queries) InsertSubject(ctx context.Context, arg InsertSubjectParams) error {
	_, err := q.db.ExecContext(ctx, insertSubject, arg.ID, arg.Handle, arg.ConnectedAt)
	return err
}

const getSubjectByHandle = `-- name: GetSubjectByHandle :one
SELECT id, handle, connected_at, last_evaluated_at, evaluation_status, evaluation_error
FROM subjects
WHERE handle = $1
`

func (q *Queries) GetSubjectByHandle(ctx context.Context, handle string) (Subject, error) {
	row := q.db.QueryRowContext(ctx, getSubjectByHandle, handle)
	var i Subject
	err := row.Scan(
		&i.ID,
		&i.Handle,
		&i.ConnectedAt,
		&i.LastEvaluatedAt,
		&i.EvaluationStatus,
		&i.EvaluationError,
	)
	return i, err
}

const getSubjectByID = `-- name: GetSubjectByID :one
SELECT id, handle, connected_at, last_evaluated_at, evaluation_status, evaluation_error
FROM subjects
WHERE id = $1
`

func (q *Queries) GetSubjectByID(ctx context.Context, id uuid.UUID) (Subject, error) {
	row := q.db.QueryRowContext(ctx, getSubjectByID, id)
	var i Subject
	err := row.Scan(
		&i.ID,
		&i.Handle,
		&i.ConnectedAt,
		&i.LastEvaluatedAt,
		&i.EvaluationStatus,
		&i.EvaluationError,
	)
	return i, err
}

const updateSubjectEvaluation = `-- name: UpdateSubjectEvaluation :exec
UPDATE subjects
SET evaluation_status = $1, evaluation_error = $2
WHERE id = $3
`

type UpdateSubjectEvaluationParams struct {
	EvaluationStatus string
	EvaluationError  string
	ID               uuid.UUID
}

func (q *Queries) UpdateSubjectEvaluation(ctx context.Context, arg UpdateSubjectEvaluationParams) error {
	_, err := q.db.ExecContext(ctx, updateSubjectEvaluation, arg.EvaluationStatus, arg.EvaluationError, arg.ID)
	return err
}

const markSubjectEvaluated = `-- name: MarkSubjectEvaluated :execrows
UPDATE subjects
SET evaluation_status = 'success', evaluation_error = '', last_evaluated_at = $1
WHERE id = $2
`

type MarkSubjectEvaluatedParams struct {
	LastEvaluatedAt int64
	ID              uuid.UUID
}

func (q *Queries) MarkSubjectEvaluated(ctx context.Context, arg MarkSubjectEvaluatedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markSubjectEvaluated, arg.LastEvaluatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
