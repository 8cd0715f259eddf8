package database

import (
	"context"

	"github.com/google/uuid"
)

const deleteSourceUnits = `-- name: DeleteSourceUnits :exec
DELETE FROM source_units WHERE subject_id = $1
`

func (q *Queries) DeleteSourceUnits(ctx context.Context, subjectID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteSourceUnits, subjectID)
	return err
}

const insertSourceUnit = `-- name: InsertSourceUnit :exec
INSERT INTO source_units (subject_id, unit_id, kind, source, owner, name, full_name, default_ref, stars, forks, language, pushed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

func (q *Queries) InsertSourceUnit(ctx context.Context, arg SourceUnit) error {
	_, err := q.db.ExecContext(ctx, insertSourceUnit,
		arg.SubjectID,
		arg.UnitID,
		arg.Kind,
		arg.Source,
		arg.Owner,
		arg.Name,
		arg.FullName,
		arg.DefaultRef,
		arg.Stars,
		arg.Forks,
		arg.Language,
		arg.PushedAt,
	)
	return err
}

const listSourceUnits = `-- name: ListSourceUnits :many
SELECT subject_id, unit_id, kind, source, owner, name, full_name, default_ref, stars, forks, language, pushed_at
FROM source_units
WHERE subject_id = $1
ORDER BY pushed_at DESC, unit_id
`

func (q *Queries) ListSourceUnits(ctx context.Context, subjectID uuid.UUID) ([]SourceUnit, error) {
	rows, err := q.db.QueryContext(ctx, listSourceUnits, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SourceUnit
	for rows.Next() {
		var i SourceUnit
		if err := rows.Scan(
			&i.SubjectID,
			&i.UnitID,
			&i.Kind,
			&i.Source,
			&i.Owner,
			&i.Name,
			&i.FullName,
			&i.DefaultRef,
			&i.Stars,
			&i.Forks,
			&i.Language,
			&i.PushedAt,
		); err != nil {
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

const deleteUnitSkills = `-- name: DeleteUnitSkills :exec
DELETE FROM unit_skills WHERE subject_id = $1
`

func (q *Queries) DeleteUnitSkills(ctx context.Context, subjectID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteUnitSkills, subjectID)
	return err
}

const insertUnitSkill = `-- name: InsertUnitSkill :exec
INSERT INTO unit_skills (subject_id, unit_id, skill, score, reasoning, evidence)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (q *Queries) InsertUnitSkill(ctx context.Context, arg UnitSkill) error {
	_, err := q.db.ExecContext(ctx, insertUnitSkill,
		arg.SubjectID,
		arg.UnitID,
		arg.Skill,
		arg.Score,
		arg.Reasoning,
		arg.Evidence,
	)
	return err
}

const listUnitSkills = `-- name: ListUnitSkills :many
SELECT subject_id, unit_id, skill, score, reasoning, evidence
FROM unit_skills
WHERE subject_id = $1
ORDER BY unit_id, score DESC
`

func (q *Queries) ListUnitSkills(ctx context.Context, subjectID uuid.UUID) ([]UnitSkill, error) {
	rows, err := q.db.QueryContext(ctx, listUnitSkills, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UnitSkill
	for rows.Next() {
		var i UnitSkill
		if err := rows.Scan(
			&i.SubjectID,
			&i.UnitID,
			&i.Skill,
			&i.Score,
			&i.Reasoning,
			&i.Evidence,
		); err != nil {
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

const deleteSubjectSkills = `-- name: DeleteSubjectSkills :exec
DELETE FROM subject_skills WHERE subject_id = $1
`

func (q *Queries) DeleteSubjectSkills(ctx context.Context, subjectID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteSubjectSkills, subjectID)
	return err
}

const insertSubjectSkill = `-- name: InsertSubjectSkill :exec
INSERT INTO subject_skills (subject_id, skill, score, reasoning, vector, vocabulary_generation)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (q *Queries) InsertSubjectSkill(ctx context.Context, arg SubjectSkill) error {
	_, err := q.db.ExecContext(ctx, insertSubjectSkill,
		arg.SubjectID,
		arg.Skill,
		arg.Score,
		arg.Reasoning,
		arg.Vector,
		arg.VocabularyGeneration,
	)
	return err
}

const listSubjectSkills = `-- name: ListSubjectSkills :many
SELECT subject_id, skill, score, reasoning, vector, vocabulary_generation
FROM subject_skills
WHERE subject_id = $1
ORDER BY score DESC, skill
`

func (q *Queries) ListSubjectSkills(ctx context.Context, subjectID uuid.UUID) ([]SubjectSkill, error) {
	rows, err := q.db.QueryContext(ctx, listSubjectSkills, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SubjectSkill
	for rows.Next() {
		var i SubjectSkill
		if err := rows.Scan(
			&i.SubjectID,
			&i.Skill,
			&i.Score,
			&i.Reasoning,
			&i.Vector,
			&i.VocabularyGeneration,
		); err != nil {
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
