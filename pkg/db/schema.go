// Package db provides SQLite database management for the park ledger.
package db

import (
	"context"
	"fmt"
)

// Schema defines the SQL statements that create the ledger tables.
//
// Amounts are stored as TEXT so decimal values round-trip exactly.
// reference_number carries the uniqueness constraint every automatic
// posting relies on.
const Schema = `
-- Ledger categories, one table per kind.
CREATE TABLE IF NOT EXISTS income_categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS expense_categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Actual income rows
CREATE TABLE IF NOT EXISTS actual_income (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category_id INTEGER NOT NULL REFERENCES income_categories(id),
    concept TEXT NOT NULL,
    amount TEXT NOT NULL,              -- decimal string, always > 0
    quantity INTEGER NOT NULL DEFAULT 0,
    date TEXT NOT NULL,                -- YYYY-MM-DD
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reference_number TEXT NOT NULL UNIQUE,
    is_received INTEGER NOT NULL DEFAULT 0,
    is_automatic INTEGER NOT NULL DEFAULT 0,
    is_estimated INTEGER NOT NULL DEFAULT 0, -- amount built from a guessed count
    park_id INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_actual_income_period
    ON actual_income(year, month);

-- Actual expense rows
CREATE TABLE IF NOT EXISTS actual_expenses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category_id INTEGER NOT NULL REFERENCES expense_categories(id),
    concept TEXT NOT NULL,
    amount TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 0,
    date TEXT NOT NULL,
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reference_number TEXT NOT NULL UNIQUE,
    is_paid INTEGER NOT NULL DEFAULT 0,
    is_automatic INTEGER NOT NULL DEFAULT 0,
    is_estimated INTEGER NOT NULL DEFAULT 0,
    park_id INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_actual_expenses_period
    ON actual_expenses(year, month);

-- Sync metadata table
-- Stores key-value metadata such as the last reconciliation run per domain
CREATE TABLE IF NOT EXISTS sync_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// addedColumns lists columns introduced after the first release, so older
// databases get them on Open.
var addedColumns = []struct {
	table      string
	column     string
	definition string
}{
	{"actual_income", "is_estimated", "INTEGER NOT NULL DEFAULT 0"},
	{"actual_expenses", "is_estimated", "INTEGER NOT NULL DEFAULT 0"},
}

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist and adds missing columns.
func InitializeSchema(conn *Connection) error {
	ctx := context.Background()
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return err
	}

	for _, c := range addedColumns {
		var count int
		query := `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
		if err := conn.QueryRowContext(ctx, query, c.table, c.column).Scan(&count); err != nil {
			return fmt.Errorf("failed to inspect %s: %w", c.table, err)
		}
		if count > 0 {
			continue
		}
		alter := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.column, c.definition)
		if _, err := conn.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}
