package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/engine"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/httpapi"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/rules"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source/sourcetest"
)

var testNow = time.Date(2024, time.March, 14, 15, 4, 5, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *sourcetest.Builder, *db.Connection) {
	t.Helper()
	conn := sourcetest.OpenDatabase(t)
	e := engine.NewFromConnection(conn, rules.Default(), engine.Options{
		Now: func() time.Time { return testNow },
	})
	server := httptest.NewServer(httpapi.NewRouter(httpapi.NewHandler(e, nil)))
	t.Cleanup(server.Close)
	return server, sourcetest.NewBuilder(t, conn), conn
}

func post(t *testing.T, server *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRegistrations(t *testing.T) {
	server, b, _ := newTestServer(t)
	eventID := b.Event("Torneo de Fútbol", "Deportes", "100", 50, "2024-03-20")

	path := fmt.Sprintf("/hooks/events/%d/registrations", eventID)

	resp := post(t, server, path, `{"participants":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, server, path, `{"participants":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body := decode[httpapi.EntryResponse](t, resp)
	require.NotNil(t, body.Entry)
	assert.True(t, body.Entry.Amount.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, "EVEN-1-202403", body.Entry.ReferenceNumber)
	assert.False(t, body.Skipped)
}

func TestRegistrations_FreeEventIsAccepted(t *testing.T) {
	server, b, _ := newTestServer(t)
	b.Event("Picnic", "Recreación", "0", 100, "2024-03-20")

	resp := post(t, server, "/hooks/events/1/registrations", `{"participants":10}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decode[httpapi.EntryResponse](t, resp)
	assert.True(t, body.Skipped)
	assert.Nil(t, body.Entry)
}

func TestRegistrations_BadInput(t *testing.T) {
	server, b, _ := newTestServer(t)
	b.Event("Yoga", "Deportes", "50", 30, "2024-03-20")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"non numeric id", "/hooks/events/abc/registrations", `{"participants":1}`, http.StatusBadRequest},
		{"negative id", "/hooks/events/-1/registrations", `{"participants":1}`, http.StatusBadRequest},
		{"malformed body", "/hooks/events/1/registrations", `{"participants":`, http.StatusBadRequest},
		{"unknown event", "/hooks/events/99/registrations", `{"participants":1}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, server, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decode[httpapi.ErrorResponse](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPayrollPeriodClosed(t *testing.T) {
	server, b, _ := newTestServer(t)
	closed := b.Period("Quincena 1 marzo", "2024-03-01", "2024-03-15", "2024-03-16", source.PeriodClosed)
	b.Period("Quincena 2 marzo", "2024-03-16", "2024-03-31", "", source.PeriodOpen)
	salary := b.Concept("SUELDO", "Salario base")
	b.Item(closed, 1, salary, "8000")

	resp := post(t, server, "/hooks/payroll-periods/1/closed", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[httpapi.EntriesResponse](t, resp)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "NOM-1-1", body.Entries[0].ReferenceNumber)
	assert.Equal(t, ledger.KindExpense, body.Entries[0].Kind)

	resp = post(t, server, "/hooks/payroll-periods/2/closed", ``)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, server, "/hooks/payroll-periods/9/closed", ``)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPayrollPeriodClosed_NoItems(t *testing.T) {
	server, b, _ := newTestServer(t)
	b.Period("Vacía", "2024-03-01", "2024-03-15", "", source.PeriodClosed)

	resp := post(t, server, "/hooks/payroll-periods/1/closed", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]json.RawMessage](t, resp)
	assert.JSONEq(t, `[]`, string(body["entries"]))
}

func TestSponsorships(t *testing.T) {
	server, b, _ := newTestServer(t)
	b.Event("Festival", "Cultura", "0", 500, "2024-06-01")

	resp := post(t, server, "/hooks/events/1/sponsorships",
		`{"sponsor_name":"Refresquera del Valle","amount":"1500.00","agreed_at":"2024-04-02T09:30:00Z"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[httpapi.EntryResponse](t, resp)
	require.NotNil(t, body.Entry)
	assert.Equal(t, "PAT-EVEN-1-1712050200000", body.Entry.ReferenceNumber)
	assert.True(t, body.Entry.Amount.Equal(decimal.NewFromInt(1500)))

	resp = post(t, server, "/hooks/events/1/sponsorships", `{"sponsor_name":"Nadie","amount":"0"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSponsorships_SameMillisecondIsConflict(t *testing.T) {
	server, b, _ := newTestServer(t)
	b.Event("Festival", "Cultura", "0", 500, "2024-06-01")

	resp := post(t, server, "/hooks/events/1/sponsorships",
		`{"sponsor_name":"Refresquera del Valle","amount":"1500.00","agreed_at":"2024-04-02T09:30:00Z"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, server, "/hooks/events/1/sponsorships",
		`{"sponsor_name":"Panadería Central","amount":"800","agreed_at":"2024-04-02T09:30:00Z"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[httpapi.ErrorResponse](t, resp)
	assert.Equal(t, "reference_collision", body.Error)
}

func TestHealth(t *testing.T) {
	server, _, conn := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.Close())

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// failingCallbacks returns err from every callback.
type failingCallbacks struct {
	err error
}

func (f failingCallbacks) Ping(context.Context) error { return f.err }

func (f failingCallbacks) OnPayrollPeriodClosed(context.Context, int64) ([]ledger.Entry, error) {
	return nil, f.err
}

func (f failingCallbacks) OnRegistrationsConfirmed(context.Context, int64, int64) (*ledger.Entry, error) {
	return nil, f.err
}

func (f failingCallbacks) OnSponsorshipAgreed(context.Context, int64, string, decimal.Decimal, time.Time) (*ledger.Entry, error) {
	return nil, f.err
}

func TestStoreErrorsAreInternal(t *testing.T) {
	handler := httpapi.NewHandler(failingCallbacks{err: errors.New("disk I/O error")}, nil)
	router := httpapi.NewRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/hooks/events/1/registrations", strings.NewReader(`{"participants":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O error")
}
