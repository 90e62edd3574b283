package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

// Sponsorship builds one-off sponsorship income facts.
type Sponsorship struct {
	classifier SponsorshipClassifier
}

// NewSponsorship creates a sponsorship adapter.
func NewSponsorship(classifier SponsorshipClassifier) *Sponsorship {
	return &Sponsorship{classifier: classifier}
}

// Fact builds the income fact for a sponsorship agreed at the given time.
// Every agreement time yields its own reference, so two sponsorships of the
// same event never merge.
//
// Returns nil for non-positive amounts or a blank sponsor name.
func (a *Sponsorship) Fact(event source.Event, sponsorName string, amount decimal.Decimal, at time.Time) *ledger.Fact {
	sponsorName = strings.TrimSpace(sponsorName)
	if sponsorName == "" || !amount.IsPositive() {
		return nil
	}

	reference, err := ledger.MakeReference(ledger.DomainSponsorship, strconv.FormatInt(event.ID, 10), at)
	if err != nil {
		return nil
	}

	return &ledger.Fact{
		Kind:         ledger.KindIncome,
		CategoryCode: a.classifier.SponsorshipCode(),
		Amount:       amount,
		Quantity:     1,
		Date:         at,
		Concept:      "Patrocinio - " + sponsorName,
		Description:  fmt.Sprintf("Patrocinio de %s para %s", sponsorName, event.Name),
		ParkID:       event.ParkID,
		Reference:    reference,
	}
}
