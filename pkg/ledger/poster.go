package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
)

// DefaultMaxAttempts bounds the read-after-conflict retry loop.
const DefaultMaxAttempts = 3

// PosterConfig configures a Poster.
type PosterConfig struct {
	// MaxAttempts is the number of transactions tried before giving up on a
	// reference that keeps conflicting. Default: DefaultMaxAttempts.
	MaxAttempts int
	Logger      *slog.Logger
}

// Poster performs the idempotent insert-or-merge of facts into the ledger.
// It knows nothing about the source domains.
type Poster struct {
	conn        *db.Connection
	categories  *Provisioner
	maxAttempts int
	logger      *slog.Logger

	// beforeInsert runs inside the transaction just before a new row is
	// inserted. Tests use it to inject conflicts.
	beforeInsert func(attempt int) error
}

// NewPoster creates a Poster writing through conn.
func NewPoster(conn *db.Connection, categories *Provisioner, config PosterConfig) *Poster {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{
		conn:        conn,
		categories:  categories,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Post records a one-off fact. When an entry with the same reference already
// exists it is returned unchanged, so posting the same fact twice is a no-op.
//
// A nil entry with a nil error means the fact was skipped (for example a free
// event with a zero amount) and nothing was written.
func (p *Poster) Post(ctx context.Context, fact Fact) (*Entry, error) {
	return p.post(ctx, fact, false)
}

// PostAdditive records a fact that accumulates into the entry sharing its
// reference: amount and quantity are summed and the description is rebuilt.
// Skipped facts return a nil entry and a nil error, as in Post.
func (p *Poster) PostAdditive(ctx context.Context, fact Fact) (*Entry, error) {
	return p.post(ctx, fact, true)
}

func (p *Poster) post(ctx context.Context, fact Fact, additive bool) (*Entry, error) {
	if reason := fact.SkipReason(); reason != "" {
		p.logger.Info("skipped fact", "reason", reason, "reference", fact.Reference,
			"category", fact.CategoryCode, "amount", fact.Amount.String())
		return nil, nil
	}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		var entry *Entry
		err := p.conn.Transaction(ctx, func(tx *sql.Tx) error {
			var err error
			entry, err = p.apply(ctx, tx, fact, additive, attempt)
			return err
		})
		if err == nil {
			return entry, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		p.logger.Warn("reference conflict, retrying as merge",
			"reference", fact.Reference, "attempt", attempt, "max_attempts", p.maxAttempts)
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", ErrConflictRetriesExhausted, fact.Reference, p.maxAttempts)
}

// apply runs one lookup-then-write attempt and returns the post-write row.
func (p *Poster) apply(ctx context.Context, tx *sql.Tx, fact Fact, additive bool, attempt int) (*Entry, error) {
	categoryID, err := p.categories.EnsureCategory(ctx, tx, fact.Kind, fact.CategoryCode)
	if err != nil {
		return nil, err
	}

	existing, err := getByReference(ctx, tx, fact.Kind, fact.Reference)
	if err != nil {
		return nil, err
	}

	switch {
	case existing == nil:
		if p.beforeInsert != nil {
			if err := p.beforeInsert(attempt); err != nil {
				return nil, err
			}
		}
		if err := insertEntry(ctx, tx, categoryID, fact); err != nil {
			return nil, err
		}
		p.logger.Info("ledger entry created", "kind", fact.Kind, "reference", fact.Reference,
			"amount", fact.Amount.String())
	case additive:
		if err := mergeEntry(ctx, tx, existing, fact); err != nil {
			return nil, err
		}
		p.logger.Info("ledger entry merged", "kind", fact.Kind, "reference", fact.Reference,
			"added", fact.Amount.String(), "previous", existing.Amount.String())
	default:
		p.logger.Debug("ledger entry already posted", "kind", fact.Kind, "reference", fact.Reference)
		return existing, nil
	}

	entry, err := getByReference(ctx, tx, fact.Kind, fact.Reference)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s missing after write", fact.Reference)
	}
	return entry, nil
}

func insertEntry(ctx context.Context, q db.Querier, categoryID int64, fact Fact) error {
	t, err := fact.Kind.tables()
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (category_id, concept, amount, quantity, date, month, year,
			description, reference_number, %s, is_automatic, is_estimated, park_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 1, ?, ?)
	`, t.entries, t.settled)

	_, err = q.ExecContext(ctx, query,
		categoryID,
		fact.Concept,
		fact.Amount.String(),
		fact.Quantity,
		fact.Date.Format(dateLayout),
		int(fact.Date.Month()),
		fact.Date.Year(),
		fact.Description,
		fact.Reference,
		fact.Estimated,
		nullInt64(fact.ParkID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", fact.Reference, err)
	}
	return nil
}

// mergeEntry adds fact into existing. Reference, category and date are kept.
//
// An estimated entry receiving a real fact is replaced by it: the guess is
// dropped rather than summed with confirmed amounts. Otherwise the sum stays
// estimated if either side was.
func mergeEntry(ctx context.Context, q db.Querier, existing *Entry, fact Fact) error {
	t, err := fact.Kind.tables()
	if err != nil {
		return err
	}

	total := existing.Amount.Add(fact.Amount)
	quantity := existing.Quantity + fact.Quantity
	estimated := existing.IsEstimated || fact.Estimated
	if existing.IsEstimated && !fact.Estimated {
		total, quantity, estimated = fact.Amount, fact.Quantity, false
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET amount = ?, quantity = ?, description = ?, is_estimated = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, t.entries)

	_, err = q.ExecContext(ctx, query,
		total.String(),
		quantity,
		fact.mergedDescription(quantity, total),
		estimated,
		existing.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to merge entry %s: %w", existing.ReferenceNumber, err)
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
