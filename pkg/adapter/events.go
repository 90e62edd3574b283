package adapter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

// EstimatedSuffix marks descriptions built from an estimated participant count.
const EstimatedSuffix = "(estimado)"

// Events builds registration income facts.
type Events struct {
	classifier EventClassifier
}

// NewEvents creates an event-registration adapter.
func NewEvents(classifier EventClassifier) *Events {
	return &Events{classifier: classifier}
}

// RegistrationFact builds the income fact for a batch of participants
// confirmed at when. The reference is keyed by the month of the event date,
// so every batch of an event shares one reference whenever it is confirmed
// and must be posted additively. The entry is dated when.
//
// Returns nil for free events and empty batches.
func (a *Events) RegistrationFact(event source.Event, participants int64, when time.Time, estimated bool) *ledger.Fact {
	if participants <= 0 || !event.Price.IsPositive() {
		return nil
	}

	reference, err := ledger.MakeReference(ledger.DomainEvents, strconv.FormatInt(event.ID, 10), event.Date)
	if err != nil {
		return nil
	}

	describe := func(quantity int64, _ decimal.Decimal) string {
		return registrationDescription(event.Name, quantity, estimated)
	}

	return &ledger.Fact{
		Kind:         ledger.KindIncome,
		CategoryCode: a.classifier.ClassifyEvent(event.Category),
		Amount:       event.Price.Mul(decimal.NewFromInt(participants)),
		Quantity:     participants,
		Date:         when,
		Concept:      "Inscripciones - " + event.Name,
		Description:  describe(participants, decimal.Zero),
		ParkID:       event.ParkID,
		Reference:    reference,
		Estimated:    estimated,
		Describe:     describe,
	}
}

func registrationDescription(eventName string, participants int64, estimated bool) string {
	description := fmt.Sprintf("Inscripciones %s: %d participantes", eventName, participants)
	if estimated {
		description += " " + EstimatedSuffix
	}
	return description
}
