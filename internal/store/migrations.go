package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	return s.migrateV1()
}

// migrateV1 creates the initial schema. Projects keep their filter spec, id
// list, and task list as JSON documents so a task-list change is one UPDATE
// of one row.
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL UNIQUE,
		status         TEXT NOT NULL DEFAULT 'pending',
		settings       TEXT NOT NULL,
		filters        TEXT,
		query_ids      TEXT NOT NULL,
		query_count    INTEGER NOT NULL DEFAULT 0,
		scraping_tasks TEXT NOT NULL,
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_name ON projects(name);
	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
	CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at);

	CREATE TABLE IF NOT EXISTS estimates (
		id       INTEGER PRIMARY KEY,
		state    TEXT NOT NULL,
		city     TEXT NOT NULL,
		category TEXT NOT NULL,
		count    INTEGER NOT NULL DEFAULT 0,
		pending  INTEGER NOT NULL DEFAULT 0,
		b_count  INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_estimates_state ON estimates(state);
	CREATE INDEX IF NOT EXISTS idx_estimates_state_city ON estimates(state, city);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}

	return nil
}
