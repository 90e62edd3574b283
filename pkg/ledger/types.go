// Package ledger posts summarized operational facts into the income and
// expense ledger without double-posting.
//
// Every automatic row is keyed by a deterministic reference number. The
// Poster looks the reference up inside a transaction and either inserts a new
// row or, for additive postings, merges the new amount into the existing one.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidReference is returned when reference inputs are malformed.
	ErrInvalidReference = errors.New("invalid reference inputs")

	// ErrConflictRetriesExhausted is returned when an insert keeps losing the
	// uniqueness race on reference_number.
	ErrConflictRetriesExhausted = errors.New("reference conflict retries exhausted")

	// ErrEmptyCategoryCode is returned when a category code is blank.
	ErrEmptyCategoryCode = errors.New("category code is empty")
)

// Kind discriminates income from expense categories and entries.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Kinds lists every ledger kind in display order.
var Kinds = []Kind{KindIncome, KindExpense}

// kindTables holds the table and column names for one kind.
type kindTables struct {
	categories string
	entries    string
	settled    string
}

func (k Kind) tables() (kindTables, error) {
	switch k {
	case KindIncome:
		return kindTables{categories: "income_categories", entries: "actual_income", settled: "is_received"}, nil
	case KindExpense:
		return kindTables{categories: "expense_categories", entries: "actual_expenses", settled: "is_paid"}, nil
	}
	return kindTables{}, fmt.Errorf("unknown ledger kind %q", string(k))
}

// Category is an income or expense category identified by its code.
type Category struct {
	ID          int64
	Kind        Kind
	Code        string
	Name        string
	Description string
	IsActive    bool
	SortOrder   int
	CreatedAt   time.Time
}

// Entry is a posted income or expense row.
type Entry struct {
	ID              int64           `json:"id"`
	Kind            Kind            `json:"kind"`
	CategoryID      int64           `json:"category_id"`
	Concept         string          `json:"concept"`
	Amount          decimal.Decimal `json:"amount"`
	Quantity        int64           `json:"quantity"`
	Date            string          `json:"date"` // YYYY-MM-DD
	Month           int             `json:"month"`
	Year            int             `json:"year"`
	Description     string          `json:"description"`
	ReferenceNumber string          `json:"reference_number"`
	IsSettled       bool            `json:"is_settled"`
	IsAutomatic     bool            `json:"is_automatic"`
	IsEstimated     bool            `json:"is_estimated"`
	ParkID          *int64          `json:"park_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Fact is the normalized payload an adapter hands to the Poster.
type Fact struct {
	Kind         Kind
	CategoryCode string
	Amount       decimal.Decimal
	Quantity     int64
	Date         time.Time
	Concept      string
	Description  string
	ParkID       *int64
	Reference    string

	// Estimated marks an amount built from a guessed count. A non-estimated
	// additive fact replaces an estimated entry instead of adding to it.
	Estimated bool

	// Describe rebuilds the description after a merge from the cumulative
	// quantity and amount. Description is kept when nil.
	Describe func(quantity int64, total decimal.Decimal) string
}

// SkipReason returns why the fact must not be posted, or "" when it is postable.
func (f Fact) SkipReason() string {
	switch {
	case !f.Amount.IsPositive():
		return "non-positive amount"
	case strings.TrimSpace(f.CategoryCode) == "":
		return "empty category code"
	case strings.TrimSpace(f.Reference) == "":
		return "empty reference"
	case f.Date.IsZero():
		return "missing date"
	}
	if _, err := f.Kind.tables(); err != nil {
		return "unknown kind"
	}
	return ""
}

func (f Fact) mergedDescription(quantity int64, total decimal.Decimal) string {
	if f.Describe == nil {
		return f.Description
	}
	return f.Describe(quantity, total)
}
