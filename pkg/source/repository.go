package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
)

const dateLayout = "2006-01-02"

// Repository reads operational records. It never writes.
type Repository struct {
	conn *db.Connection
}

// NewRepository creates a new Repository.
func NewRepository(conn *db.Connection) *Repository {
	return &Repository{conn: conn}
}

const eventColumns = `id, name, category, price, capacity, event_date, park_id`

// GetEvent retrieves an event by id.
func (r *Repository) GetEvent(ctx context.Context, id int64) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	event, err := scanEvent(r.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

// ListPostableEventIDs retrieves the ids of events with a positive price, ordered by id.
// Rows are decoded one at a time by GetEvent, so a malformed event fails alone.
func (r *Repository) ListPostableEventIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM events WHERE CAST(price AS REAL) > 0 ORDER BY id`
	return r.listIDs(ctx, "events", query)
}

// ConfirmedParticipants sums participants over the confirmed registrations of an event.
func (r *Repository) ConfirmedParticipants(ctx context.Context, eventID int64) (ParticipantCount, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(participants), 0)
		FROM event_registrations
		WHERE event_id = ? AND status = ?
	`

	var registrations, participants int64
	err := r.conn.QueryRowContext(ctx, query, eventID, RegistrationConfirmed).Scan(&registrations, &participants)
	if err != nil {
		return ParticipantCount{}, fmt.Errorf("failed to count participants for event %d: %w", eventID, err)
	}

	return ParticipantCount{Participants: participants, Found: registrations > 0}, nil
}

const periodColumns = `id, name, start_date, end_date, payment_date, status`

// GetPayrollPeriod retrieves a payroll period by id.
func (r *Repository) GetPayrollPeriod(ctx context.Context, id int64) (*PayrollPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM payroll_periods WHERE id = ?`

	period, err := scanPeriod(r.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payroll period %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll period %d: %w", id, err)
	}
	return period, nil
}

// ListClosedPayrollPeriodIDs retrieves the ids of closed payroll periods, ordered by id.
func (r *Repository) ListClosedPayrollPeriodIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM payroll_periods WHERE status = ? ORDER BY id`
	return r.listIDs(ctx, "payroll periods", query, PeriodClosed)
}

// ListPayrollItems retrieves the line items of a period joined with their concepts.
func (r *Repository) ListPayrollItems(ctx context.Context, periodID int64) ([]PayrollItem, error) {
	query := `
		SELECT i.id, i.period_id, i.employee_id, i.concept_id, c.code, c.name, i.amount
		FROM payroll_items i
		JOIN payroll_concepts c ON c.id = i.concept_id
		WHERE i.period_id = ?
		ORDER BY i.id
	`

	rows, err := r.conn.QueryContext(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll items: %w", err)
	}
	defer rows.Close()

	var items []PayrollItem
	for rows.Next() {
		var item PayrollItem
		var amount string
		if err := rows.Scan(
			&item.ID,
			&item.PeriodID,
			&item.EmployeeID,
			&item.ConceptID,
			&item.ConceptCode,
			&item.ConceptName,
			&amount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll item: %w", err)
		}
		if item.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount %q on payroll item %d: %w", amount, item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll items: %w", err)
	}

	return items, nil
}

// ListSponsorshipIDs retrieves all sponsorship ids, ordered by id.
func (r *Repository) ListSponsorshipIDs(ctx context.Context) ([]int64, error) {
	return r.listIDs(ctx, "sponsorships", `SELECT id FROM sponsorships ORDER BY id`)
}

// GetSponsorship retrieves a sponsorship by id.
func (r *Repository) GetSponsorship(ctx context.Context, id int64) (*Sponsorship, error) {
	query := `SELECT id, event_id, sponsor_name, amount, agreed_at FROM sponsorships WHERE id = ?`

	var s Sponsorship
	var amount string
	err := r.conn.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.EventID, &s.SponsorName, &amount, &s.AgreedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sponsorship %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sponsorship %d: %w", id, err)
	}
	if s.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q on sponsorship %d: %w", amount, s.ID, err)
	}
	return &s, nil
}

func (r *Repository) listIDs(ctx context.Context, what, query string, args ...any) ([]int64, error) {
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", what, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", what, err)
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var event Event
	var price, eventDate string
	var parkID sql.NullInt64

	if err := row.Scan(&event.ID, &event.Name, &event.Category, &price, &event.Capacity, &eventDate, &parkID); err != nil {
		return nil, err
	}

	var err error
	if event.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid price %q on event %d: %w", price, event.ID, err)
	}
	if event.Date, err = time.Parse(dateLayout, eventDate); err != nil {
		return nil, fmt.Errorf("invalid date %q on event %d: %w", eventDate, event.ID, err)
	}
	if parkID.Valid {
		event.ParkID = &parkID.Int64
	}
	return &event, nil
}

func scanPeriod(row rowScanner) (*PayrollPeriod, error) {
	var period PayrollPeriod
	var start, end string
	var payment sql.NullString

	if err := row.Scan(&period.ID, &period.Name, &start, &end, &payment, &period.Status); err != nil {
		return nil, err
	}

	var err error
	if period.StartDate, err = time.Parse(dateLayout, start); err != nil {
		return nil, fmt.Errorf("invalid start date %q on period %d: %w", start, period.ID, err)
	}
	if period.EndDate, err = time.Parse(dateLayout, end); err != nil {
		return nil, fmt.Errorf("invalid end date %q on period %d: %w", end, period.ID, err)
	}
	if payment.Valid && payment.String != "" {
		paid, err := time.Parse(dateLayout, payment.String)
		if err != nil {
			return nil, fmt.Errorf("invalid payment date %q on period %d: %w", payment.String, period.ID, err)
		}
		period.PaymentDate = &paid
	}
	return &period, nil
}
