package adapter

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

// Payroll builds payroll expense facts.
type Payroll struct {
	classifier PayrollClassifier
}

// NewPayroll creates a payroll adapter.
func NewPayroll(classifier PayrollClassifier) *Payroll {
	return &Payroll{classifier: classifier}
}

type conceptTotal struct {
	id        int64
	code      string
	name      string
	total     decimal.Decimal
	employees map[int64]struct{}
}

// PeriodFacts groups the items of a closed period by concept and returns
// one fact per concept with a positive total, ordered by concept id.
// Items belonging to other periods are ignored.
func (a *Payroll) PeriodFacts(period source.PayrollPeriod, items []source.PayrollItem) []ledger.Fact {
	totals := make(map[int64]*conceptTotal)
	for _, item := range items {
		if item.PeriodID != period.ID {
			continue
		}
		ct, ok := totals[item.ConceptID]
		if !ok {
			ct = &conceptTotal{
				id:        item.ConceptID,
				code:      item.ConceptCode,
				name:      item.ConceptName,
				total:     decimal.Zero,
				employees: make(map[int64]struct{}),
			}
			totals[item.ConceptID] = ct
		}
		ct.total = ct.total.Add(item.Amount)
		ct.employees[item.EmployeeID] = struct{}{}
	}

	concepts := make([]*conceptTotal, 0, len(totals))
	for _, ct := range totals {
		concepts = append(concepts, ct)
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].id < concepts[j].id })

	date := period.PostingDate()
	var facts []ledger.Fact
	for _, ct := range concepts {
		if !ct.total.IsPositive() {
			continue
		}
		reference, err := ledger.MakeReference(ledger.DomainPayroll, ledger.JoinEntity(period.ID, ct.id), date)
		if err != nil {
			continue
		}
		facts = append(facts, ledger.Fact{
			Kind:         ledger.KindExpense,
			CategoryCode: a.classifier.PayrollCategory(ct.code),
			Amount:       ct.total,
			Quantity:     int64(len(ct.employees)),
			Date:         date,
			Concept:      "Nómina - " + ct.name,
			Description:  fmt.Sprintf("Nómina %s: %s, %d empleados", period.Name, ct.name, len(ct.employees)),
			Reference:    reference,
		})
	}
	return facts
}
