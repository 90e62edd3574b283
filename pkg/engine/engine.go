// Package engine wires the source adapters to the ledger poster.
//
// It exposes the callbacks operational modules invoke after their own writes
// succeed, and the reconciliation sweep that replays source records missing
// from the ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/adapter"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/rules"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

var (
	// ErrUnknownDomain is returned by Reconcile for an unsupported domain name.
	ErrUnknownDomain = errors.New("unknown reconciliation domain")

	// ErrPeriodNotClosed is returned when a payroll period is posted before it is closed.
	ErrPeriodNotClosed = errors.New("payroll period is not closed")

	// ErrStoreUnreachable wraps a failed ledger store ping.
	ErrStoreUnreachable = errors.New("ledger store unreachable")

	// ErrReferenceCollision is returned when a sponsorship maps to a reference
	// already held by a different sponsorship of the same event. Sponsorship
	// references carry the agreement time in milliseconds, so two agreements
	// for one event in the same millisecond cannot both be posted.
	ErrReferenceCollision = errors.New("reference already used by another sponsorship")
)

// Sources reads the operational modules.
type Sources interface {
	GetEvent(ctx context.Context, id int64) (*source.Event, error)
	ListPostableEventIDs(ctx context.Context) ([]int64, error)
	ConfirmedParticipants(ctx context.Context, eventID int64) (source.ParticipantCount, error)
	GetPayrollPeriod(ctx context.Context, id int64) (*source.PayrollPeriod, error)
	ListClosedPayrollPeriodIDs(ctx context.Context) ([]int64, error)
	ListPayrollItems(ctx context.Context, periodID int64) ([]source.PayrollItem, error)
	GetSponsorship(ctx context.Context, id int64) (*source.Sponsorship, error)
	ListSponsorshipIDs(ctx context.Context) ([]int64, error)
}

// Poster writes facts into the ledger.
type Poster interface {
	Post(ctx context.Context, fact ledger.Fact) (*ledger.Entry, error)
	PostAdditive(ctx context.Context, fact ledger.Fact) (*ledger.Entry, error)
}

// Ledger reads the ledger.
type Ledger interface {
	Ping(ctx context.Context) error
	GetByReference(ctx context.Context, kind ledger.Kind, reference string) (*ledger.Entry, error)
	HasReferencePrefix(ctx context.Context, kind ledger.Kind, prefix string) (bool, error)
}

// Metadata records reconciliation bookkeeping.
type Metadata interface {
	Set(ctx context.Context, key, value string) error
}

// Classifier supplies every classification table the adapters need.
type Classifier interface {
	adapter.EventClassifier
	adapter.PayrollClassifier
	adapter.SponsorshipClassifier
}

// Deps holds the collaborators of an Engine. Logger, Now and Metadata are optional.
type Deps struct {
	Sources    Sources
	Poster     Poster
	Ledger     Ledger
	Metadata   Metadata
	Classifier Classifier
	Logger     *slog.Logger

	// EstimateRatio is the share of capacity assumed to have attended an
	// event without registrations during reconciliation. Zero disables estimates.
	EstimateRatio decimal.Decimal

	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine posts operational facts into the ledger.
type Engine struct {
	sources  Sources
	poster   Poster
	ledger   Ledger
	metadata Metadata

	events      *adapter.Events
	payroll     *adapter.Payroll
	sponsorship *adapter.Sponsorship

	estimateRatio decimal.Decimal
	now           func() time.Time
	logger        *slog.Logger
}

// New creates an Engine.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		sources:       deps.Sources,
		poster:        deps.Poster,
		ledger:        deps.Ledger,
		metadata:      deps.Metadata,
		events:        adapter.NewEvents(deps.Classifier),
		payroll:       adapter.NewPayroll(deps.Classifier),
		sponsorship:   adapter.NewSponsorship(deps.Classifier),
		estimateRatio: deps.EstimateRatio,
		now:           now,
		logger:        logger,
	}
}

// Options configures an Engine built by NewFromConnection.
type Options struct {
	MaxAttempts   int
	EstimateRatio decimal.Decimal
	Logger        *slog.Logger
	Now           func() time.Time
}

// NewFromConnection builds an Engine whose ledger and sources share conn.
func NewFromConnection(conn *db.Connection, r *rules.Rules, opts Options) *Engine {
	categories := ledger.NewProvisioner(r, opts.Logger)
	return New(Deps{
		Sources:       source.NewRepository(conn),
		Poster:        ledger.NewPoster(conn, categories, ledger.PosterConfig{MaxAttempts: opts.MaxAttempts, Logger: opts.Logger}),
		Ledger:        ledger.NewStore(conn),
		Metadata:      db.NewMetadata(conn),
		Classifier:    r,
		Logger:        opts.Logger,
		EstimateRatio: opts.EstimateRatio,
		Now:           opts.Now,
	})
}

// Ping verifies the ledger store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ledger.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}
	return nil
}

// OnPayrollPeriodClosed posts one expense entry per payroll concept of a
// closed period. Calling it again for the same period changes nothing.
func (e *Engine) OnPayrollPeriodClosed(ctx context.Context, periodID int64) ([]ledger.Entry, error) {
	period, err := e.sources.GetPayrollPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status != source.PeriodClosed {
		return nil, fmt.Errorf("%w: period %d is %s", ErrPeriodNotClosed, periodID, period.Status)
	}
	return e.postPeriod(ctx, *period)
}

func (e *Engine) postPeriod(ctx context.Context, period source.PayrollPeriod) ([]ledger.Entry, error) {
	items, err := e.sources.ListPayrollItems(ctx, period.ID)
	if err != nil {
		return nil, err
	}

	facts := e.payroll.PeriodFacts(period, items)
	if len(facts) == 0 {
		e.logger.Info("skipped payroll period", "period_id", period.ID, "reason", "no positive concept totals")
		return nil, nil
	}

	entries := make([]ledger.Entry, 0, len(facts))
	for _, fact := range facts {
		entry, err := e.poster.Post(ctx, fact)
		if err != nil {
			return entries, fmt.Errorf("failed to post payroll period %d: %w", period.ID, err)
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// OnRegistrationsConfirmed adds a batch of newly confirmed participants to
// the event's income entry. The entry is keyed by the month of the event
// date, the same key reconciliation uses, and a real batch replaces an
// estimated entry.
// A nil entry with a nil error means nothing was posted (for example a free event).
func (e *Engine) OnRegistrationsConfirmed(ctx context.Context, eventID, newParticipants int64) (*ledger.Entry, error) {
	event, err := e.sources.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	fact := e.events.RegistrationFact(*event, newParticipants, e.now(), false)
	if fact == nil {
		e.logger.Info("skipped registrations", "event_id", eventID, "participants", newParticipants,
			"price", event.Price.String())
		return nil, nil
	}
	return e.poster.PostAdditive(ctx, *fact)
}

// OnSponsorshipAgreed posts a one-off sponsorship income entry. A zero
// agreedAt means now; callers that persist the agreement should pass its
// timestamp so a later reconciliation recognizes the entry.
func (e *Engine) OnSponsorshipAgreed(ctx context.Context, eventID int64, sponsorName string, amount decimal.Decimal, agreedAt time.Time) (*ledger.Entry, error) {
	event, err := e.sources.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if agreedAt.IsZero() {
		agreedAt = e.now()
	}

	fact := e.sponsorship.Fact(*event, sponsorName, amount, agreedAt)
	if fact == nil {
		e.logger.Info("skipped sponsorship", "event_id", eventID, "sponsor", sponsorName, "amount", amount.String())
		return nil, nil
	}

	entry, err := e.poster.Post(ctx, *fact)
	if err != nil {
		return nil, err
	}
	if err := sameSponsorship(entry, *fact); err != nil {
		return nil, err
	}
	return entry, nil
}

// sameSponsorship reports ErrReferenceCollision when entry, found under
// fact's reference, belongs to another sponsorship.
func sameSponsorship(entry *ledger.Entry, fact ledger.Fact) error {
	if entry == nil {
		return nil
	}
	if entry.Concept != fact.Concept || !entry.Amount.Equal(fact.Amount) {
		return fmt.Errorf("%w: %s holds %q for %s", ErrReferenceCollision,
			fact.Reference, entry.Concept, entry.Amount.String())
	}
	return nil
}
