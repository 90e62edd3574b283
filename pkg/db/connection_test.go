package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestConnection(t *testing.T) *Connection {
	t.Helper()
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "park.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpen_CreatesDatabaseAndTables(t *testing.T) {
	conn := openTestConnection(t)

	_, err := os.Stat(conn.GetPath())
	require.NoError(t, err)

	tables := []string{"income_categories", "expense_categories", "actual_income", "actual_expenses", "sync_metadata"}
	for _, table := range tables {
		var name string
		err := conn.QueryRowContext(context.Background(),
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "park.db")
	for i := 0; i < 3; i++ {
		conn, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, conn.Close())
	}
}

func TestReferenceNumberIsUnique(t *testing.T) {
	conn := openTestConnection(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `INSERT INTO income_categories (code, name) VALUES ('EVEN-DEP', 'Deportes')`)
	require.NoError(t, err)

	insert := `INSERT INTO actual_income (category_id, concept, amount, date, month, year, reference_number)
		VALUES (1, 'x', '10', '2024-03-01', 3, 2024, 'EVEN-1-202403')`
	_, err = conn.ExecContext(ctx, insert)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, insert)
	assert.Error(t, err)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	conn := openTestConnection(t)
	ctx := context.Background()

	boom := assert.AnError
	err := conn.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sync_metadata (key, value) VALUES ('k', 'v')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	value, err := NewMetadata(conn).Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestMetadata_SetAndOverwrite(t *testing.T) {
	conn := openTestConnection(t)
	ctx := context.Background()
	meta := NewMetadata(conn)

	require.NoError(t, meta.Set(ctx, "reconcile.events.last_run", "first"))
	require.NoError(t, meta.Set(ctx, "reconcile.events.last_run", "second"))

	value, err := meta.Get(ctx, "reconcile.events.last_run")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestOpen_AddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "park.db")
	old, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE actual_income (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_id INTEGER NOT NULL,
		concept TEXT NOT NULL,
		amount TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		date TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		description TEXT,
		reference_number TEXT UNIQUE,
		is_received INTEGER NOT NULL DEFAULT 0,
		is_automatic INTEGER NOT NULL DEFAULT 0,
		park_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	conn, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	for _, table := range []string{"actual_income", "actual_expenses"} {
		var count int
		err := conn.QueryRowContext(context.Background(),
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = 'is_estimated'`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "%s.is_estimated should exist", table)
	}
}
