package source

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a source record does not exist.
var ErrNotFound = errors.New("source record not found")

// Payroll period statuses.
const (
	PeriodOpen   = "open"
	PeriodClosed = "closed"
)

// RegistrationConfirmed is the status of registrations that count toward income.
const RegistrationConfirmed = "confirmed"

// Event is an activity with a per-participant price.
type Event struct {
	ID       int64
	Name     string
	Category string
	Price    decimal.Decimal
	Capacity int64
	Date     time.Time
	ParkID   *int64
}

// ParticipantCount is the confirmed participant total of an event.
// Found is false when the event has no confirmed registrations at all.
type ParticipantCount struct {
	Participants int64
	Found        bool
}

// PayrollPeriod is a payroll run.
type PayrollPeriod struct {
	ID          int64
	Name        string
	StartDate   time.Time
	EndDate     time.Time
	PaymentDate *time.Time
	Status      string
}

// PostingDate is the payment date, or the end date when no payment date is set.
func (p PayrollPeriod) PostingDate() time.Time {
	if p.PaymentDate != nil {
		return *p.PaymentDate
	}
	return p.EndDate
}

// PayrollItem is one finalized payroll line joined with its concept.
type PayrollItem struct {
	ID          int64
	PeriodID    int64
	EmployeeID  int64
	ConceptID   int64
	ConceptCode string
	ConceptName string
	Amount      decimal.Decimal
}

// Sponsorship is an agreed sponsor contribution to an event.
type Sponsorship struct {
	ID          int64
	EventID     int64
	SponsorName string
	Amount      decimal.Decimal
	AgreedAt    time.Time
}
