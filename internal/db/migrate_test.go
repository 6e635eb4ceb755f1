package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := openTestDB(t)

	expected := []string{
		"products", "processes", "product_processes", "process_modules",
		"process_module_pairings", "work_plans", "work_orders", "work_order_module_choices",
	}
	for _, table := range expected {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_StatusCheckConstraint(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO processes (id, name) VALUES ('p1', 'proc')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO work_plans (id, created_at, updated_at) VALUES ('w1', 'now', 'now')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO work_orders (id, plan_id, process_id, order_index, status, created_at, updated_at)
		VALUES ('o1', 'w1', 'p1', 0, 'broken', 'now', 'now')`)
	assert.Error(t, err, "unknown status must be rejected")
}

func TestMigrate_PlanDeleteCascades(t *testing.T) {
	db := openTestDB(t)

	stmts := []string{
		`INSERT INTO processes (id, name) VALUES ('p1', 'proc')`,
		`INSERT INTO process_modules (id, process_id, name) VALUES ('m1', 'p1', 'mod')`,
		`INSERT INTO work_plans (id, created_at, updated_at) VALUES ('w1', 'now', 'now')`,
		`INSERT INTO work_orders (id, plan_id, process_id, order_index, created_at, updated_at) VALUES ('o1', 'w1', 'p1', 0, 'now', 'now')`,
		`INSERT INTO work_order_module_choices (work_order_id, position, module_id) VALUES ('o1', 0, 'm1')`,
		`DELETE FROM work_plans WHERE id = 'w1'`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM work_order_module_choices`).Scan(&n))
	assert.Equal(t, 0, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM work_orders`).Scan(&n))
	assert.Equal(t, 0, n)
}
