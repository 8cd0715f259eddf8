package database

import (
	"context"
)

const deleteCatalogSkills = `-- name: DeleteCatalogSkills :exec
DELETE FROM catalog_skills
`

func (q *Queries) DeleteCatalogSkills(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteCatalogSkills)
	return err
}

const deleteCatalogItems = `-- name: DeleteCatalogItems :exec
DELETE FROM catalog_items
`

func (q *Queries) DeleteCatalogItems(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteCatalogItems)
	return err
}

const insertCatalogItem = `-- name: InsertCatalogItem :exec
INSERT INTO catalog_items (id, title, company, location_city, location_state, location_country, experience_level, employment_type, skills, job_url, apply_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func (q *Queries) InsertCatalogItem(ctx context.Context, arg CatalogItem) error {
	_, err := q.db.ExecContext(ctx, insertCatalogItem,
		arg.ID,
		arg.Title,
		arg.Company,
		arg.LocationCity,
		arg.LocationState,
		arg.LocationCountry,
		arg.ExperienceLevel,
		arg.EmploymentType,
		arg.Skills,
		arg.JobUrl,
		arg.ApplyUrl,
	)
	return err
}

const listCatalogItems = `-- name: ListCatalogItems :many
SELECT id, title, company, location_city, location_state, location_country, experience_level, employment_type, skills, job_url, apply_url
FROM catalog_items
ORDER BY id
`

func (q *Queries) ListCatalogItems(ctx context.Context) ([]CatalogItem, error) {
	rows, err := q.db.QueryContext(ctx, listCatalogItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CatalogItem
	for rows.Next() {
		var i CatalogItem
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Company,
			&i.LocationCity,
			&i.LocationState,
			&i.LocationCountry,
			&i.ExperienceLevel,
			&i.EmploymentType,
			&i.Skills,
			&i.JobUrl,
			&i.ApplyUrl,
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

const countCatalogItems = `-- name: CountCatalogItems :one
SELECT COUNT(1) FROM catalog_items
`

func (q *Queries) CountCatalogItems(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCatalogItems)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertCatalogSkill = `-- name: InsertCatalogSkill :exec
INSERT INTO catalog_skills (item_id, ordinal, skill, vector, vocabulary_generation)
VALUES ($1, $2, $3, $4, $5)
`

func (q *Queries) InsertCatalogSkill(ctx context.Context, arg CatalogSkill) error {
	_, err := q.db.ExecContext(ctx, insertCatalogSkill,
		arg.ItemID,
		arg.Ordinal,
		arg.Skill,
		arg.Vector,
		arg.VocabularyGeneration,
	)
	return err
}

const listCatalogSkills = `-- name: ListCatalogSkills :many
SELECT item_id, ordinal, skill, vector, vocabulary_generation
FROM catalog_skills
ORDER BY item_id, ordinal
`

func (q *Queries) ListCatalogSkills(ctx context.Context) ([]CatalogSkill, error) {
	rows, err := q.db.QueryContext(ctx, listCatalogSkills)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CatalogSkill
	for rows.Next() {
		var i CatalogSkill
		if err := rows.Scan(
			&i.ItemID,
			&i.Ordinal,
			&i.Skill,
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
