package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

// Domains lists the reconcilable domain names.
var Domains = []string{ledger.DomainEvents.Name, ledger.DomainPayroll.Name, ledger.DomainSponsorship.Name}

// LastRunKey is the metadata key holding the finish time of a domain's last sweep.
func LastRunKey(domain string) string {
	return "reconcile." + domain + ".last_run"
}

// outcome is the result of reconciling one source entity.
type outcome int

const (
	outcomeAlreadyPosted outcome = iota
	outcomePosted
	outcomeEstimated
	outcomeSkipped
)

// Reconcile replays the postable entities of a domain that have no ledger
// entry yet. Running it repeatedly converges on the same ledger state.
//
// A failing entity, including a source row that cannot be decoded, is logged
// and recorded in the report without stopping the sweep. Only an unreachable
// store, an unreadable id listing or an unknown domain fail the whole run.
func (e *Engine) Reconcile(ctx context.Context, domain string) (*Report, error) {
	var sweep func(context.Context, *Report) error
	switch domain {
	case ledger.DomainEvents.Name:
		sweep = e.reconcileEvents
	case ledger.DomainPayroll.Name:
		sweep = e.reconcilePayroll
	case ledger.DomainSponsorship.Name:
		sweep = e.reconcileSponsorships
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}

	if err := e.Ping(ctx); err != nil {
		return nil, err
	}

	runID, err := uuid.NewV7()
	if err != nil {
		runID = uuid.New()
	}
	report := &Report{RunID: runID.String(), Domain: domain, StartedAt: e.now()}
	logger := e.logger.With("run_id", report.RunID, "domain", domain)
	logger.Info("reconciliation started")

	if err := sweep(ctx, report); err != nil {
		return nil, err
	}
	report.FinishedAt = e.now()

	if e.metadata != nil {
		if err := e.metadata.Set(ctx, LastRunKey(domain), report.FinishedAt.UTC().Format(time.RFC3339)); err != nil {
			logger.Warn("failed to record reconciliation run", "error", err)
		}
	}

	logger.Info("reconciliation finished",
		"scanned", report.Scanned,
		"already_posted", report.AlreadyPosted,
		"posted", report.Posted,
		"estimated", report.Estimated,
		"skipped", report.Skipped,
		"failures", len(report.Failures),
	)
	return report, nil
}

func (e *Engine) record(report *Report, entityID int64, result outcome, err error) {
	report.Scanned++
	if err != nil {
		e.logger.Error("reconciliation failed for entity",
			"run_id", report.RunID, "domain", report.Domain, "entity_id", entityID, "error", err)
		report.Failures = append(report.Failures, Failure{EntityID: entityID, Error: err.Error()})
		return
	}
	switch result {
	case outcomeAlreadyPosted:
		report.AlreadyPosted++
	case outcomePosted:
		report.Posted++
	case outcomeEstimated:
		report.Posted++
		report.Estimated++
	case outcomeSkipped:
		report.Skipped++
	}
}

func (e *Engine) reconcileEvents(ctx context.Context, report *Report) error {
	ids, err := e.sources.ListPostableEventIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		result, err := e.reconcileEvent(ctx, id)
		e.record(report, id, result, err)
	}
	return nil
}

func (e *Engine) reconcileEvent(ctx context.Context, id int64) (outcome, error) {
	event, err := e.sources.GetEvent(ctx, id)
	if err != nil {
		return 0, err
	}

	prefix := ledger.ReferencePrefix(ledger.DomainEvents, strconv.FormatInt(event.ID, 10))
	posted, err := e.ledger.HasReferencePrefix(ctx, ledger.KindIncome, prefix)
	if err != nil {
		return 0, err
	}
	if posted {
		return outcomeAlreadyPosted, nil
	}

	count, err := e.sources.ConfirmedParticipants(ctx, event.ID)
	if err != nil {
		return 0, err
	}

	participants, estimated := count.Participants, false
	if !count.Found {
		participants = e.estimateParticipants(event)
		estimated = participants > 0
	}

	fact := e.events.RegistrationFact(*event, participants, event.Date, estimated)
	if fact == nil {
		e.logger.Info("skipped event", "event_id", event.ID, "reason", "no confirmed participants")
		return outcomeSkipped, nil
	}

	// Post, not PostAdditive: a live batch landing between the prefix check
	// and this write must not be topped up with the full replayed count.
	entry, err := e.poster.Post(ctx, *fact)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return outcomeSkipped, nil
	}
	if estimated {
		return outcomeEstimated, nil
	}
	return outcomePosted, nil
}

// estimateParticipants returns ceil(capacity × ratio), or 0 when estimates are disabled.
func (e *Engine) estimateParticipants(event *source.Event) int64 {
	if !e.estimateRatio.IsPositive() || event.Capacity <= 0 {
		return 0
	}
	return decimal.NewFromInt(event.Capacity).Mul(e.estimateRatio).Ceil().IntPart()
}

func (e *Engine) reconcilePayroll(ctx context.Context, report *Report) error {
	ids, err := e.sources.ListClosedPayrollPeriodIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		result, err := e.reconcilePeriod(ctx, id)
		e.record(report, id, result, err)
	}
	return nil
}

// reconcilePeriod posts every concept of a closed period that has no entry
// yet, so a period left half posted by a failed write is completed.
func (e *Engine) reconcilePeriod(ctx context.Context, id int64) (outcome, error) {
	period, err := e.sources.GetPayrollPeriod(ctx, id)
	if err != nil {
		return 0, err
	}
	items, err := e.sources.ListPayrollItems(ctx, period.ID)
	if err != nil {
		return 0, err
	}

	facts := e.payroll.PeriodFacts(*period, items)
	if len(facts) == 0 {
		return outcomeSkipped, nil
	}

	posted := 0
	for _, fact := range facts {
		existing, err := e.ledger.GetByReference(ctx, fact.Kind, fact.Reference)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			continue
		}
		entry, err := e.poster.Post(ctx, fact)
		if err != nil {
			return 0, fmt.Errorf("failed to post payroll period %d: %w", period.ID, err)
		}
		if entry != nil {
			posted++
		}
	}

	if posted == 0 {
		return outcomeAlreadyPosted, nil
	}
	if posted < len(facts) {
		e.logger.Info("completed partially posted payroll period", "period_id", period.ID,
			"posted", posted, "concepts", len(facts))
	}
	return outcomePosted, nil
}

func (e *Engine) reconcileSponsorships(ctx context.Context, report *Report) error {
	ids, err := e.sources.ListSponsorshipIDs(ctx)
	if err != nil {
		return err
	}
	events := make(map[int64]*source.Event)
	for _, id := range ids {
		result, err := e.reconcileSponsorship(ctx, id, events)
		e.record(report, id, result, err)
	}
	return nil
}

func (e *Engine) reconcileSponsorship(ctx context.Context, id int64, events map[int64]*source.Event) (outcome, error) {
	s, err := e.sources.GetSponsorship(ctx, id)
	if err != nil {
		return 0, err
	}

	event, ok := events[s.EventID]
	if !ok {
		if event, err = e.sources.GetEvent(ctx, s.EventID); err != nil {
			return 0, err
		}
		events[s.EventID] = event
	}

	fact := e.sponsorship.Fact(*event, s.SponsorName, s.Amount, s.AgreedAt)
	if fact == nil {
		e.logger.Info("skipped sponsorship", "sponsorship_id", s.ID, "reason", "nothing to post")
		return outcomeSkipped, nil
	}

	existing, err := e.ledger.GetByReference(ctx, ledger.KindIncome, fact.Reference)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if err := sameSponsorship(existing, *fact); err != nil {
			return 0, fmt.Errorf("sponsorship %d: %w", s.ID, err)
		}
		return outcomeAlreadyPosted, nil
	}

	entry, err := e.poster.Post(ctx, *fact)
	if err != nil {
		return 0, err
	}
	if err := sameSponsorship(entry, *fact); err != nil {
		return 0, fmt.Errorf("sponsorship %d: %w", s.ID, err)
	}
	if entry == nil {
		return outcomeSkipped, nil
	}
	return outcomePosted, nil
}
