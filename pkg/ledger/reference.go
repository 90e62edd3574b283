package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Granularity is how much of the posting time a reference keeps.
type Granularity int

const (
	// GranularityNone omits the time entirely; the entity id is the period.
	GranularityNone Granularity = iota
	// GranularityMonth keeps YYYYMM.
	GranularityMonth
	// GranularityDay keeps YYYYMMDD.
	GranularityDay
	// GranularityTimestamp keeps Unix milliseconds.
	GranularityTimestamp
)

// Domain describes how one source module builds its references.
// Prefixes must be distinct across domains.
type Domain struct {
	Name        string
	Prefix      string
	Granularity Granularity
}

var (
	// DomainEvents keys event registration income per event and month.
	DomainEvents = Domain{Name: "events", Prefix: "EVEN", Granularity: GranularityMonth}

	// DomainPayroll keys payroll expenses per period and concept.
	DomainPayroll = Domain{Name: "payroll", Prefix: "NOM", Granularity: GranularityNone}

	// DomainSponsorship keys one-off sponsorship income per agreement time.
	DomainSponsorship = Domain{Name: "sponsorships", Prefix: "PAT-EVEN", Granularity: GranularityTimestamp}
)

// MakeReference derives the idempotence key for a source fact.
// Identical inputs always yield the same string.
func MakeReference(d Domain, entityID string, when time.Time) (string, error) {
	if err := validateReferenceParts(d, entityID); err != nil {
		return "", err
	}

	var period string
	switch d.Granularity {
	case GranularityNone:
		return d.Prefix + "-" + entityID, nil
	case GranularityMonth:
		period = when.Format("200601")
	case GranularityDay:
		period = when.Format("20060102")
	case GranularityTimestamp:
		period = strconv.FormatInt(when.UnixMilli(), 10)
	default:
		return "", fmt.Errorf("%w: unknown granularity %d", ErrInvalidReference, d.Granularity)
	}

	if when.IsZero() {
		return "", fmt.Errorf("%w: %s reference needs a date", ErrInvalidReference, d.Name)
	}

	return d.Prefix + "-" + entityID + "-" + period, nil
}

// ReferencePrefix returns the prefix shared by every reference of one entity.
// For payroll the entity is the period, so all of its concepts match.
func ReferencePrefix(d Domain, entityID string) string {
	return d.Prefix + "-" + entityID + "-"
}

// JoinEntity builds a composite entity id such as "<periodId>-<conceptId>".
func JoinEntity(ids ...int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "-")
}

func validateReferenceParts(d Domain, entityID string) error {
	if d.Prefix == "" {
		return fmt.Errorf("%w: empty domain prefix", ErrInvalidReference)
	}
	if entityID == "" {
		return fmt.Errorf("%w: empty entity id", ErrInvalidReference)
	}
	if strings.HasPrefix(entityID, "-") || strings.HasSuffix(entityID, "-") {
		return fmt.Errorf("%w: entity id %q has a dangling separator", ErrInvalidReference, entityID)
	}
	if strings.IndexFunc(entityID, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: entity id %q contains whitespace", ErrInvalidReference, entityID)
	}
	return nil
}
