package database

import (
	"context"
)

const getVocabularyState = `-- name: GetVocabularyState :one
SELECT generation, documents FROM vocabulary_state WHERE id = 1
`

func (q *Queries) GetVocabularyState(ctx context.Context) (VocabularyState, error) {
	row := q.db.QueryRowContext(ctx, getVocabularyState)
	var i VocabularyState
	err := row.Scan(&i.Generation, &i.Documents)
	return i, err
}

const bumpVocabularyGeneration = `-- name: BumpVocabularyGeneration :exec
UPDATE vocabulary_state
SET generation = generation + 1, documents = $1
WHERE id = 1
`

// BumpVocabularyGeneration also takes the row lock that serializes catalog
// reloads on Postgres.
func (q *Queries) BumpVocabularyGeneration(ctx context.Context, documents int32) error {
	_, err := q.db.ExecContext(ctx, bumpVocabularyGeneration, documents)
	return err
}

const deleteVocabulary = `-- name: DeleteVocabulary :exec
DELETE FROM vocabulary
`

func (q *Queries) DeleteVocabulary(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteVocabulary)
	return err
}

const insertVocabularyTerm = `-- name: InsertVocabularyTerm :exec
INSERT INTO vocabulary (term, document_frequency, idf)
VALUES ($1, $2, $3)
`

func (q *Queries) InsertVocabularyTerm(ctx context.Context, arg VocabularyTerm) error {
	_, err := q.db.ExecContext(ctx, insertVocabularyTerm, arg.Term, arg.DocumentFrequency, arg.Idf)
	return err
}

const listVocabulary = `-- name: ListVocabulary :many
SELECT term, document_frequency, idf FROM vocabulary ORDER BY term
`

func (q *Queries) ListVocabulary(ctx context.Context) ([]VocabularyTerm, error) {
	rows, err := q.db.QueryContext(ctx, listVocabulary)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VocabularyTerm
	for rows.Next() {
		var i VocabularyTerm
		if err := rows.Scan(&i.Term, &i.DocumentFrequency, &i.Idf); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
