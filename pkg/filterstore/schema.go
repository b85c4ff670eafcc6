// Package filterstore is the durable catalog behind the filter engine:
// filter definitions, their endpoint/parameter/example/tag/test
// metadata, and named chains, persisted to SQLite with idempotent
// raw-DDL migrations applied on open.
package filterstore

import "context"

const schemaVersion = 1

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS filters (
			id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			expression TEXT NOT NULL,
			is_default INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS filter_endpoints (
			filter_id TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			PRIMARY KEY (filter_id, endpoint)
		)`,
		`CREATE TABLE IF NOT EXISTS filter_parameters (
			filter_id TEXT NOT NULL,
			name TEXT NOT NULL,
			required INTEGER NOT NULL DEFAULT 0,
			default_value TEXT,
			PRIMARY KEY (filter_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS filter_examples (
			filter_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			PRIMARY KEY (filter_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS filter_tags (
			filter_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (filter_id, tag)
		)`,
		`CREATE TABLE IF NOT EXISTS filter_tests (
			filter_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			input TEXT NOT NULL,
			expected TEXT NOT NULL,
			PRIMARY KEY (filter_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS filter_chains (
			chain_id TEXT NOT NULL,
			step_order INTEGER NOT NULL,
			step_filter_id TEXT NOT NULL,
			PRIMARY KEY (chain_id, step_order)
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return s.recordVersion(ctx)
}

func (s *Store) recordVersion(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		schemaVersion)
	return err
}
