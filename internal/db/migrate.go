package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE statements are re-run on every start.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS processes (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS product_processes (
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		process_id TEXT NOT NULL REFERENCES processes(id) ON DELETE CASCADE,
		stage      INTEGER NOT NULL,
		PRIMARY KEY (product_id, process_id),
		UNIQUE (product_id, stage)
	)`,

	`CREATE TABLE IF NOT EXISTS process_modules (
		id         TEXT PRIMARY KEY,
		process_id TEXT NOT NULL REFERENCES processes(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		UNIQUE (process_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS process_module_pairings (
		id             TEXT PRIMARY KEY,
		process_id     TEXT NOT NULL REFERENCES processes(id) ON DELETE CASCADE,
		from_module_id TEXT REFERENCES process_modules(id) ON DELETE CASCADE,
		to_module_id   TEXT REFERENCES process_modules(id) ON DELETE CASCADE,
		default_path   INTEGER NOT NULL DEFAULT 0,
		CHECK (from_module_id IS NOT NULL OR to_module_id IS NOT NULL)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_pairings_process ON process_module_pairings(process_id)`,

	`CREATE TABLE IF NOT EXISTS work_plans (
		id              TEXT PRIMARY KEY,
		owner           TEXT NOT NULL DEFAULT '',
		project_id      INTEGER,
		original_set_id TEXT,
		product_id      TEXT REFERENCES products(id),
		comment         TEXT,
		desired_date    TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS work_orders (
		id              TEXT PRIMARY KEY,
		plan_id         TEXT NOT NULL REFERENCES work_plans(id) ON DELETE CASCADE,
		process_id      TEXT NOT NULL REFERENCES processes(id),
		order_index     INTEGER NOT NULL,
		status          TEXT NOT NULL DEFAULT 'queued'
		                CHECK(status IN ('queued','active','completed','cancelled')),
		original_set_id TEXT,
		set_id          TEXT,
		finished_set_id TEXT,
		dispatch_date   TEXT,
		comment         TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		UNIQUE (plan_id, order_index)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_work_orders_plan ON work_orders(plan_id)`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_status ON work_orders(status)`,

	`CREATE TABLE IF NOT EXISTS work_order_module_choices (
		work_order_id TEXT NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		module_id     TEXT NOT NULL REFERENCES process_modules(id),
		PRIMARY KEY (work_order_id, position)
	)`,

	// Bumped on every write so readers outside the per-plan lock can
	// detect a concurrent update.
	`ALTER TABLE work_orders ADD COLUMN version INTEGER NOT NULL DEFAULT 1`,
}
