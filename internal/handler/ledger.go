package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/spsc/goldledger/internal/domain"
	"github.com/spsc/goldledger/internal/service"
	apperrors "github.com/spsc/goldledger/pkg/errors"
	"github.com/spsc/goldledger/pkg/response"
)

type LedgerHandler struct {
	service *service.LedgerService
}

func NewLedgerHandler(service *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

type recordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type editPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// CreateEntry handles POST /api/v1/entries
func (h *LedgerHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in domain.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Created(w, entry)
}

// ListEntries handles GET /api/v1/entries?phone=<term>
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("phone")
	response.Success(w, h.service.Search(term))
}

// DueEntries handles GET /api/v1/entries/due
func (h *LedgerHandler) DueEntries(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.service.DueEntries())
}

// GetEntry handles GET /api/v1/entries/{applicationNumber}
func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	applicationNumber := mux.Vars(r)["applicationNumber"]

	entry, err := h.service.Entry(applicationNumber)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, entry)
}

// UpdateEntry handles PUT /api/v1/entries/{applicationNumber}
func (h *LedgerHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	applicationNumber := mux.Vars(r)["applicationNumber"]

	var in domain.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.service.UpdateEntry(r.Context(), applicationNumber, in); err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, map[string]string{"applicationNumber": applicationNumber})
}

// DeleteEntry handles DELETE /api/v1/entries/{applicationNumber}
func (h *LedgerHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	applicationNumber := mux.Vars(r)["applicationNumber"]

	if err := h.service.DeleteEntry(r.Context(), applicationNumber); err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, map[string]string{"applicationNumber": applicationNumber})
}

// RecordPayment handles POST /api/v1/entries/{applicationNumber}/payments
func (h *LedgerHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	applicationNumber := mux.Vars(r)["applicationNumber"]

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	current, err := h.service.Entry(applicationNumber)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := h.service.RecordPayment(r.Context(), applicationNumber, current, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, updated)
}

// EditPayment handles PUT /api/v1/entries/{applicationNumber}/payments/{index}
func (h *LedgerHandler) EditPayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	applicationNumber := vars["applicationNumber"]

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		response.BadRequest(w, "Invalid payment index", err)
		return
	}

	var req editPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	current, err := h.service.Entry(applicationNumber)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := h.service.EditPaymentAmount(r.Context(), applicationNumber, current.PaymentHistory, index, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if updated == nil {
		// Unset amount: nothing was changed.
		response.Success(w, current)
		return
	}

	response.Success(w, updated)
}

// writeDomainError maps the domain error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		response.ErrorWithFields(w, http.StatusBadRequest, "Validation failed", err, verr.Fields)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrEntryExists):
		response.Conflict(w, "Entry already exists", err)
	case errors.Is(err, apperrors.ErrEntryNotFound):
		response.NotFound(w, "Entry not found")
	default:
		response.InternalServerError(w, "Store operation failed", err)
	}
}
