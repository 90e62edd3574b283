package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeReference(t *testing.T) {
	when := time.Date(2024, time.March, 14, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		domain   Domain
		entityID string
		want     string
	}{
		{"events keep the month", DomainEvents, "42", "EVEN-42-202403"},
		{"payroll ignores the date", DomainPayroll, JoinEntity(7, 3), "NOM-7-3"},
		{"sponsorships keep milliseconds", DomainSponsorship, "42", "PAT-EVEN-42-" + "1710428645000"},
		{"day granularity", Domain{Name: "custom", Prefix: "DAY", Granularity: GranularityDay}, "9", "DAY-9-20240314"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MakeReference(tt.domain, tt.entityID, when)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := MakeReference(tt.domain, tt.entityID, when)
			require.NoError(t, err)
			assert.Equal(t, got, again, "references must be deterministic")
		})
	}
}

func TestMakeReference_SameMonthSameReference(t *testing.T) {
	first, err := MakeReference(DomainEvents, "5", date(2024, time.May, 1))
	require.NoError(t, err)
	second, err := MakeReference(DomainEvents, "5", date(2024, time.May, 31))
	require.NoError(t, err)
	next, err := MakeReference(DomainEvents, "5", date(2024, time.June, 1))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, next)
}

func TestMakeReference_DistinctAcrossDomainsAndEntities(t *testing.T) {
	when := date(2024, time.January, 10)
	seen := map[string]string{}
	for _, d := range []Domain{DomainEvents, DomainPayroll, DomainSponsorship} {
		for _, id := range []string{"1", "2", "12", "1-2"} {
			ref, err := MakeReference(d, id, when)
			require.NoError(t, err)
			key := d.Name + "/" + id
			if other, dup := seen[ref]; dup {
				t.Fatalf("reference %s produced by both %s and %s", ref, other, key)
			}
			seen[ref] = key
		}
	}
}

func TestMakeReference_InvalidInputs(t *testing.T) {
	tests := []struct {
		name     string
		domain   Domain
		entityID string
		when     time.Time
	}{
		{"empty entity", DomainEvents, "", date(2024, time.January, 1)},
		{"whitespace entity", DomainEvents, "4 2", date(2024, time.January, 1)},
		{"dangling separator", DomainPayroll, "7-", time.Time{}},
		{"empty prefix", Domain{Name: "none"}, "1", date(2024, time.January, 1)},
		{"missing date", DomainEvents, "1", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MakeReference(tt.domain, tt.entityID, tt.when)
			assert.ErrorIs(t, err, ErrInvalidReference)
		})
	}
}

func TestReferencePrefix(t *testing.T) {
	ref, err := MakeReference(DomainPayroll, JoinEntity(12, 4), time.Time{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, ReferencePrefix(DomainPayroll, "12")))
	assert.False(t, strings.HasPrefix(ref, ReferencePrefix(DomainPayroll, "1")))

	sponsorship, err := MakeReference(DomainSponsorship, "3", date(2024, time.April, 2))
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(sponsorship, ReferencePrefix(DomainEvents, "3")),
		"sponsorship references must not look like event income")
}
