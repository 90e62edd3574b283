// Package sourcetest builds operational records for tests.
package sourcetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

// OpenDatabase opens a temporary database with both ledger and source tables.
func OpenDatabase(t testing.TB) *db.Connection {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "park.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, source.EnsureSchema(context.Background(), conn))
	return conn
}

// Builder inserts operational records.
type Builder struct {
	t    testing.TB
	conn *db.Connection
}

// NewBuilder creates a Builder writing through conn.
func NewBuilder(t testing.TB, conn *db.Connection) *Builder {
	return &Builder{t: t, conn: conn}
}

func (b *Builder) insert(query string, args ...any) int64 {
	b.t.Helper()
	res, err := b.conn.ExecContext(context.Background(), query, args...)
	require.NoError(b.t, err)
	id, err := res.LastInsertId()
	require.NoError(b.t, err)
	return id
}

// Event inserts an event dated YYYY-MM-DD.
func (b *Builder) Event(name, category, price string, capacity int64, date string) int64 {
	b.t.Helper()
	return b.insert(`INSERT INTO events (name, category, price, capacity, event_date) VALUES (?, ?, ?, ?, ?)`,
		name, category, price, capacity, date)
}

// EventInPark inserts an event tied to a park.
func (b *Builder) EventInPark(name, category, price string, capacity int64, date string, parkID int64) int64 {
	b.t.Helper()
	return b.insert(`INSERT INTO events (name, category, price, capacity, event_date, park_id) VALUES (?, ?, ?, ?, ?, ?)`,
		name, category, price, capacity, date, parkID)
}

// Registration inserts a registration with the given status.
func (b *Builder) Registration(eventID, participants int64, status string) int64 {
	b.t.Helper()
	return b.insert(`INSERT INTO event_registrations (event_id, participants, status) VALUES (?, ?, ?)`,
		eventID, participants, status)
}

// Period inserts a payroll period. An empty payment date is stored as NULL.
func (b *Builder) Period(name, start, end, payment, status string) int64 {
	b.t.Helper()
	var paymentDate any
	if payment != "" {
		paymentDate = payment
	}
	return b.insert(`INSERT INTO payroll_periods (name, start_date, end_date, payment_date, status) VALUES (?, ?, ?, ?, ?)`,
		name, start, end, paymentDate, status)
}

// Concept inserts a payroll concept.
func (b *Builder) Concept(code, name string) int64 {
	b.t.Helper()
	return b.insert(`INSERT INTO payroll_concepts (code, name) VALUES (?, ?)`, code, name)
}

// Item inserts a payroll line item.
func (b *Builder) Item(periodID, employeeID, conceptID int64, amount string) int64 {
	b.t.Helper()
	return b.insert(`INSERT INTO payroll_items (period_id, employee_id, concept_id, amount) VALUES (?, ?, ?, ?)`,
		periodID, employeeID, conceptID, amount)
}

// Sponsorship inserts an agreed sponsorship.
func (b *Builder) Sponsorship(eventID int64, sponsor, amount string, agreedAt time.Time) int64 {
	b.t.Helper()
	return b.insert(`INSERT INTO sponsorships (event_id, sponsor_name, amount, agreed_at) VALUES (?, ?, ?, ?)`,
		eventID, sponsor, amount, agreedAt.UTC())
}
