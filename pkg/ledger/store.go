package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
)

const dateLayout = "2006-01-02"

// Store provides read access to the ledger for reconciliation and reporting.
// Ledger rows are written only through a Poster.
type Store struct {
	conn *db.Connection
}

// NewStore creates a new Store.
func NewStore(conn *db.Connection) *Store {
	return &Store{conn: conn}
}

// Ping verifies the ledger store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// GetByReference retrieves an entry by reference number.
// Returns nil, nil when no entry exists.
func (s *Store) GetByReference(ctx context.Context, kind Kind, reference string) (*Entry, error) {
	return getByReference(ctx, s.conn, kind, reference)
}

// HasReferencePrefix reports whether any entry's reference starts with prefix.
func (s *Store) HasReferencePrefix(ctx context.Context, kind Kind, prefix string) (bool, error) {
	t, err := kind.tables()
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE substr(reference_number, 1, ?) = ?
	`, t.entries)

	var count int
	if err := s.conn.QueryRowContext(ctx, query, len(prefix), prefix).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check reference prefix %s: %w", prefix, err)
	}
	return count > 0, nil
}

// ListEntries retrieves all entries of a kind ordered by date then id.
func (s *Store) ListEntries(ctx context.Context, kind Kind) ([]Entry, error) {
	t, err := kind.tables()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY date, id`, entryColumns(t), t.entries)

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", kind, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows, kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s entries: %w", kind, err)
	}

	return entries, nil
}

// ListCategories retrieves all categories of a kind in sort order.
func (s *Store) ListCategories(ctx context.Context, kind Kind) ([]Category, error) {
	t, err := kind.tables()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, code, name, description, is_active, sort_order, created_at
		FROM %s
		ORDER BY sort_order, id
	`, t.categories)

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s categories: %w", kind, err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c := Category{Kind: kind}
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.IsActive, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return categories, nil
}

// KindStats summarizes one ledger kind.
type KindStats struct {
	Kind           Kind
	Categories     int
	Entries        int
	AutomaticCount int
	Total          decimal.Decimal
}

// Stats retrieves per-kind statistics. Totals are summed as decimals, not in SQL,
// so they stay exact.
func (s *Store) Stats(ctx context.Context) ([]KindStats, error) {
	var stats []KindStats
	for _, kind := range Kinds {
		categories, err := s.ListCategories(ctx, kind)
		if err != nil {
			return nil, err
		}
		entries, err := s.ListEntries(ctx, kind)
		if err != nil {
			return nil, err
		}

		ks := KindStats{Kind: kind, Categories: len(categories), Entries: len(entries), Total: decimal.Zero}
		for _, e := range entries {
			ks.Total = ks.Total.Add(e.Amount)
			if e.IsAutomatic {
				ks.AutomaticCount++
			}
		}
		stats = append(stats, ks)
	}
	return stats, nil
}

func getByReference(ctx context.Context, q db.Querier, kind Kind, reference string) (*Entry, error) {
	t, err := kind.tables()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE reference_number = ?`, entryColumns(t), t.entries)

	entry, err := scanEntry(q.QueryRowContext(ctx, query, reference), kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", reference, err)
	}
	return entry, nil
}

func entryColumns(t kindTables) string {
	return `id, category_id, concept, amount, quantity, date, month, year, description,
		reference_number, ` + t.settled + `, is_automatic, is_estimated, park_id, created_at, updated_at`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, kind Kind) (*Entry, error) {
	entry := Entry{Kind: kind}
	var amount string
	var parkID sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&entry.CategoryID,
		&entry.Concept,
		&amount,
		&entry.Quantity,
		&entry.Date,
		&entry.Month,
		&entry.Year,
		&entry.Description,
		&entry.ReferenceNumber,
		&entry.IsSettled,
		&entry.IsAutomatic,
		&entry.IsEstimated,
		&parkID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q on entry %s: %w", amount, entry.ReferenceNumber, err)
	}
	if parkID.Valid {
		entry.ParkID = &parkID.Int64
	}
	return &entry, nil
}

