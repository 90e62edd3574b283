package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
)

type mapCatalog map[string]CategoryMeta

func (m mapCatalog) CategoryMeta(kind Kind, code string) (CategoryMeta, bool) {
	meta, ok := m[string(kind)+"/"+code]
	return meta, ok
}

var testCatalog = mapCatalog{
	"income/EVEN-CUL": {Name: "Eventos Culturales", Description: "Ingresos por eventos culturales"},
	"income/EVEN-DEP": {Name: "Eventos Deportivos", Description: "Ingresos por eventos deportivos"},
	"expense/NOM-SAL": {Name: "Sueldos y Salarios", Description: "Salario base"},
}

func createTestConnection(t *testing.T) *db.Connection {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func createTestPoster(t *testing.T) (*Poster, *Store) {
	t.Helper()
	conn := createTestConnection(t)
	poster := NewPoster(conn, NewProvisioner(testCatalog, nil), PosterConfig{})
	return poster, NewStore(conn)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}

func incomeFact(reference, amount string) Fact {
	return Fact{
		Kind:         KindIncome,
		CategoryCode: "EVEN-CUL",
		Amount:       dec(amount),
		Quantity:     1,
		Date:         date(2024, time.March, 14),
		Concept:      "Inscripciones - Concierto",
		Description:  "Concierto en el parque",
		Reference:    reference,
	}
}
