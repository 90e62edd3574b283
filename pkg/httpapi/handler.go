// Package httpapi exposes the posting callbacks over HTTP so operational
// modules can notify the ledger after their own writes succeed.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/engine"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

// Callbacks is the posting surface served over HTTP. *engine.Engine implements it.
type Callbacks interface {
	Ping(ctx context.Context) error
	OnPayrollPeriodClosed(ctx context.Context, periodID int64) ([]ledger.Entry, error)
	OnRegistrationsConfirmed(ctx context.Context, eventID, newParticipants int64) (*ledger.Entry, error)
	OnSponsorshipAgreed(ctx context.Context, eventID int64, sponsorName string, amount decimal.Decimal, agreedAt time.Time) (*ledger.Entry, error)
}

// Handler handles the callback endpoints.
type Handler struct {
	callbacks Callbacks
	logger    *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(callbacks Callbacks, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{callbacks: callbacks, logger: logger}
}

// EntriesResponse is the response for POST /hooks/payroll-periods/{id}/closed.
type EntriesResponse struct {
	Entries []ledger.Entry `json:"entries"`
}

// EntryResponse is the response of the event callbacks. Skipped is set,
// with a 202 status, when there was nothing to post.
type EntryResponse struct {
	Entry   *ledger.Entry `json:"entry,omitempty"`
	Skipped bool          `json:"skipped,omitempty"`
}

// RegistrationsRequest is the body of POST /hooks/events/{id}/registrations.
type RegistrationsRequest struct {
	Participants int64 `json:"participants"`
}

// SponsorshipRequest is the body of POST /hooks/events/{id}/sponsorships.
type SponsorshipRequest struct {
	SponsorName string          `json:"sponsor_name"`
	Amount      decimal.Decimal `json:"amount"`
	AgreedAt    *time.Time      `json:"agreed_at,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// PayrollPeriodClosed handles POST /hooks/payroll-periods/{id}/closed.
func (h *Handler) PayrollPeriodClosed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	entries, err := h.callbacks.OnPayrollPeriodClosed(r.Context(), id)
	if err != nil {
		h.writeCallbackError(w, r, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}

	writeJSON(w, http.StatusOK, EntriesResponse{Entries: entries})
}

// RegistrationsConfirmed handles POST /hooks/events/{id}/registrations.
func (h *Handler) RegistrationsConfirmed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req RegistrationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	entry, err := h.callbacks.OnRegistrationsConfirmed(r.Context(), id, req.Participants)
	if err != nil {
		h.writeCallbackError(w, r, err)
		return
	}
	writeEntry(w, entry)
}

// SponsorshipAgreed handles POST /hooks/events/{id}/sponsorships.
func (h *Handler) SponsorshipAgreed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req SponsorshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	var agreedAt time.Time
	if req.AgreedAt != nil {
		agreedAt = *req.AgreedAt
	}

	entry, err := h.callbacks.OnSponsorshipAgreed(r.Context(), id, req.SponsorName, req.Amount, agreedAt)
	if err != nil {
		h.writeCallbackError(w, r, err)
		return
	}
	writeEntry(w, entry)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.callbacks.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Ledger store unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeCallbackError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, source.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, engine.ErrPeriodNotClosed):
		writeJSONError(w, http.StatusConflict, "period_not_closed", err.Error())
	case errors.Is(err, engine.ErrReferenceCollision):
		writeJSONError(w, http.StatusConflict, "reference_collision", err.Error())
	default:
		h.logger.Error("callback failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to post to ledger")
	}
}

func writeEntry(w http.ResponseWriter, entry *ledger.Entry) {
	if entry == nil {
		writeJSON(w, http.StatusAccepted, EntryResponse{Skipped: true})
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Entry: entry})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}
