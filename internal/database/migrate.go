package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrator applies versioned schema steps. Statements stick to the subset of
// SQL shared by Postgres and SQLite.
type Migrator struct{}

var migrations = [][]string{
	// v1: subjects, jobs and evaluation results
	{
		`CREATE TABLE IF NOT EXISTS subjects (
            id TEXT PRIMARY KEY,
            handle TEXT NOT NULL UNIQUE,
            connected_at BIGINT NOT NULL,
            last_evaluated_at BIGINT,
            evaluation_status TEXT NOT NULL DEFAULT 'idle',
            evaluation_error TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS evaluation_jobs (
            id TEXT PRIMARY KEY,
            subject_id TEXT NOT NULL REFERENCES subjects(id),
            status TEXT NOT NULL,
            progress INTEGER NOT NULL DEFAULT 0,
            created_at BIGINT NOT NULL,
            started_at BIGINT,
            completed_at BIGINT,
            error TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE INDEX IF NOT EXISTS idx_evaluation_jobs_subject ON evaluation_jobs(subject_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS source_units (
            subject_id TEXT NOT NULL REFERENCES subjects(id),
            unit_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            source TEXT NOT NULL,
            owner TEXT NOT NULL DEFAULT '',
            name TEXT NOT NULL DEFAULT '',
            full_name TEXT NOT NULL DEFAULT '',
            default_ref TEXT NOT NULL DEFAULT '',
            stars INTEGER NOT NULL DEFAULT 0,
            forks INTEGER NOT NULL DEFAULT 0,
            language TEXT NOT NULL DEFAULT '',
            pushed_at BIGINT NOT NULL DEFAULT 0,
            PRIMARY KEY (subject_id, unit_id)
        )`,
		`CREATE TABLE IF NOT EXISTS unit_skills (
            subject_id TEXT NOT NULL REFERENCES subjects(id),
            unit_id TEXT NOT NULL,
            skill TEXT NOT NULL,
            score DOUBLE PRECISION NOT NULL,
            reasoning TEXT NOT NULL DEFAULT '',
            evidence TEXT NOT NULL DEFAULT '[]'
        )`,
		`CREATE INDEX IF NOT EXISTS idx_unit_skills_subject ON unit_skills(subject_id, unit_id)`,
		`CREATE TABLE IF NOT EXISTS subject_skills (
            subject_id TEXT NOT NULL REFERENCES subjects(id),
            skill TEXT NOT NULL,
            score DOUBLE PRECISION NOT NULL,
            reasoning TEXT NOT NULL DEFAULT '',
            vector TEXT NOT NULL DEFAULT '{}',
            vocabulary_generation BIGINT NOT NULL DEFAULT 0,
            PRIMARY KEY (subject_id, skill)
        )`,
	},
	// v2: catalog and vocabulary
	{
		`CREATE TABLE IF NOT EXISTS vocabulary_state (
            id INTEGER PRIMARY KEY,
            generation BIGINT NOT NULL,
            documents INTEGER NOT NULL
        )`,
		`INSERT INTO vocabulary_state (id, generation, documents) VALUES (1, 0, 1) ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS vocabulary (
            term TEXT PRIMARY KEY,
            document_frequency INTEGER NOT NULL,
            idf DOUBLE PRECISION NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS catalog_items (
            id BIGINT PRIMARY KEY,
            title TEXT NOT NULL,
            company TEXT NOT NULL DEFAULT '',
            location_city TEXT NOT NULL DEFAULT '',
            location_state TEXT NOT NULL DEFAULT '',
            location_country TEXT NOT NULL DEFAULT '',
            experience_level TEXT NOT NULL DEFAULT '',
            employment_type TEXT NOT NULL DEFAULT '',
            skills TEXT NOT NULL DEFAULT '[]',
            job_url TEXT NOT NULL DEFAULT '',
            apply_url TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS catalog_skills (
            item_id BIGINT NOT NULL REFERENCES catalog_items(id),
            ordinal INTEGER NOT NULL,
            skill TEXT NOT NULL,
            vector TEXT NOT NULL DEFAULT '{}',
            vocabulary_generation BIGINT NOT NULL,
            PRIMARY KEY (item_id, ordinal)
        )`,
	},
}

var rollbacks = [][]string{
	{
		`DROP TABLE IF EXISTS subject_skills`,
		`DROP TABLE IF EXISTS unit_skills`,
		`DROP TABLE IF EXISTS source_units`,
		`DROP TABLE IF EXISTS evaluation_jobs`,
		`DROP TABLE IF EXISTS subjects`,
	},
	{
		`DROP TABLE IF EXISTS catalog_skills`,
		`DROP TABLE IF EXISTS catalog_items`,
		`DROP TABLE IF EXISTS vocabulary`,
		`DROP TABLE IF EXISTS vocabulary_state`,
	},
}

// LatestVersion is the schema version Up migrates to.
func LatestVersion() int { return len(migrations) }

func (m Migrator) ensureTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}
	var cnt int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&cnt); err != nil {
		return err
	}
	if cnt == 0 {
		_, err = db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (0)`)
	}
	return err
}

// Version returns the applied schema version.
func (m Migrator) Version(ctx context.Context, db *sql.DB) (int, error) {
	if err := m.ensureTable(ctx, db); err != nil {
		return 0, err
	}
	var v int
	if err := db.QueryRowContext(ctx, `SELECT version FROM schema_migrations`).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// Up applies every pending version, each in its own transaction.
func (m Migrator) Up(ctx context.Context, db *sql.DB) error {
	cur, err := m.Version(ctx, db)
	if err != nil {
		return err
	}
	for v := cur + 1; v <= len(migrations); v++ {
		if err := m.apply(ctx, db, v, migrations[v-1]); err != nil {
			return fmt.Errorf("migrate up to v%d: %w", v, err)
		}
	}
	return nil
}

// DownOne rolls back the newest applied version.
func (m Migrator) DownOne(ctx context.Context, db *sql.DB) error {
	cur, err := m.Version(ctx, db)
	if err != nil {
		return err
	}
	if cur <= 0 {
		return nil
	}
	if err := m.apply(ctx, db, cur-1, rollbacks[cur-1]); err != nil {
		return fmt.Errorf("migrate down from v%d: %w", cur, err)
	}
	return nil
}

func (m Migrator) apply(ctx context.Context, db *sql.DB, version int, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schema_migrations SET version = $1`, version); err != nil {
		return err
	}
	return tx.Commit()
}
