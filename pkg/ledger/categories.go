package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
)

// Fallback category names used when a code has no catalog metadata.
const (
	FallbackIncomeName  = "Ingresos de Eventos"
	FallbackExpenseName = "Gastos de Nómina"
)

// CategoryMeta is the human-readable metadata of a category code.
type CategoryMeta struct {
	Name        string
	Description string
}

// Catalog resolves default metadata for category codes.
type Catalog interface {
	CategoryMeta(kind Kind, code string) (CategoryMeta, bool)
}

// Provisioner lazily creates ledger categories keyed by code.
type Provisioner struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewProvisioner creates a Provisioner. A nil catalog always uses the fallback names.
func NewProvisioner(catalog Catalog, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{catalog: catalog, logger: logger}
}

// EnsureCategory returns the id of the category with the given code, creating
// it on first use. It runs on q so callers can include it in a transaction.
func (p *Provisioner) EnsureCategory(ctx context.Context, q db.Querier, kind Kind, code string) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ErrEmptyCategoryCode
	}
	t, err := kind.tables()
	if err != nil {
		return 0, err
	}

	id, err := lookupCategoryID(ctx, q, t, code)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}

	return p.create(ctx, q, kind, t, code)
}

// create inserts a new category at the end of its kind's sort order.
// Losing a concurrent insert of the same code is success: the winner's id is returned.
func (p *Provisioner) create(ctx context.Context, q db.Querier, kind Kind, t kindTables, code string) (int64, error) {
	meta := p.metadata(kind, code)

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (code, name, description, is_active, sort_order)
		VALUES (?, ?, ?, 1, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM %[1]s))
	`, t.categories)

	res, err := q.ExecContext(ctx, query, code, meta.Name, meta.Description)
	if isUniqueViolation(err) {
		p.logger.Debug("category created concurrently", "kind", kind, "code", code)
		id, err := lookupCategoryID(ctx, q, t, code)
		if err != nil {
			return 0, err
		}
		if id == 0 {
			return 0, fmt.Errorf("category %s conflicted on insert but is not visible", code)
		}
		return id, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create %s category %s: %w", kind, code, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read category id: %w", err)
	}

	p.logger.Info("category provisioned", "kind", kind, "code", code, "name", meta.Name, "id", id)
	return id, nil
}

func (p *Provisioner) metadata(kind Kind, code string) CategoryMeta {
	if p.catalog != nil {
		if meta, ok := p.catalog.CategoryMeta(kind, code); ok && meta.Name != "" {
			return meta
		}
	}
	if kind == KindExpense {
		return CategoryMeta{Name: FallbackExpenseName, Description: "Categoría generada automáticamente: " + code}
	}
	return CategoryMeta{Name: FallbackIncomeName, Description: "Categoría generada automáticamente: " + code}
}

// lookupCategoryID returns 0 when the code does not exist.
func lookupCategoryID(ctx context.Context, q db.Querier, t kindTables, code string) (int64, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE code = ?`, t.categories)

	var id int64
	err := q.QueryRowContext(ctx, query, code).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up category %s: %w", code, err)
	}
	return id, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
