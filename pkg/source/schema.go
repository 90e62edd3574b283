// Package source reads summarized facts from the operational modules
// (events, registrations, payroll and sponsorships).
//
// The tables belong to those modules. Schema documents the columns this
// package relies on; development databases and tests apply it with
// EnsureSchema.
package source

import (
	"context"
	"fmt"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
)

// Schema defines the operational tables read by this package.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',   -- free-text activity category
    price TEXT NOT NULL DEFAULT '0',     -- per-participant price
    capacity INTEGER NOT NULL DEFAULT 0,
    event_date TEXT NOT NULL,            -- YYYY-MM-DD
    park_id INTEGER
);

CREATE TABLE IF NOT EXISTS event_registrations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id INTEGER NOT NULL REFERENCES events(id),
    participants INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL DEFAULT 'confirmed',
    registered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_event_registrations_event
    ON event_registrations(event_id);

CREATE TABLE IF NOT EXISTS payroll_periods (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    payment_date TEXT,
    status TEXT NOT NULL DEFAULT 'open'  -- 'open' or 'closed'
);

CREATE TABLE IF NOT EXISTS payroll_concepts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payroll_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    period_id INTEGER NOT NULL REFERENCES payroll_periods(id),
    employee_id INTEGER NOT NULL,
    concept_id INTEGER NOT NULL REFERENCES payroll_concepts(id),
    amount TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payroll_items_period
    ON payroll_items(period_id);

CREATE TABLE IF NOT EXISTS sponsorships (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id INTEGER NOT NULL REFERENCES events(id),
    sponsor_name TEXT NOT NULL,
    amount TEXT NOT NULL,
    agreed_at TIMESTAMP NOT NULL
);
`

// EnsureSchema creates the operational tables if they don't exist.
func EnsureSchema(ctx context.Context, conn *db.Connection) error {
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create source tables: %w", err)
	}
	return nil
}
