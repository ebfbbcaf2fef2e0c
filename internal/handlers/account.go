// Package handlers serves the account-holder, administrator and catalog
// endpoints on top of ledger.Service.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/catalog"
	"github.com/cyberclick/backend/internal/httpx"
	"github.com/cyberclick/backend/internal/ledger"
	"github.com/cyberclick/backend/internal/middleware"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// AccountHandler serves /api/v1/me endpoints. Every route requires a user
// actor in the request context.
type AccountHandler struct {
	Ledger ledger.Service
	Logger logrus.FieldLogger
}

type meResponse struct {
	*models.Account
	NextTier *catalog.Tier `json:"next_tier,omitempty"`
}

// Me handles GET /me. Reading the account settles any accrued profit.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	acc, err := h.Ledger.Snapshot(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	resp := meResponse{Account: acc}
	if next, ok := h.Ledger.NextTier(acc.Tier); ok {
		resp.NextTier = &next
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type bankRequest struct {
	HolderName    string `json:"holder_name" validate:"required,max=120"`
	BankName      string `json:"bank_name" validate:"required,max=120"`
	AccountNumber string `json:"account_number" validate:"required,max=34"`
}

// UpdateBank handles PATCH /me/bank.
func (h *AccountHandler) UpdateBank(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req bankRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	acc, err := h.Ledger.UpdateBankProfile(r.Context(), id, models.BankProfile{
		HolderName:    req.HolderName,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acc)
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// Tap handles POST /me/tap.
func (h *AccountHandler) Tap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	acc, err := h.Ledger.Tap(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, balanceResponse{Balance: acc.Balance})
}

type tierRequest struct {
	Tier int `json:"tier" validate:"gte=1"`
}

// PurchaseTier handles POST /me/tier.
func (h *AccountHandler) PurchaseTier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req tierRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	acc, err := h.Ledger.PurchaseTier(r.Context(), id, req.Tier)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acc)
}

// ClaimTask handles POST /me/tasks/{id}/claim.
func (h *AccountHandler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	entry, err := h.Ledger.ClaimTask(r.Context(), id, r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}

type depositRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	ProofRef string          `json:"proof_ref" validate:"required,max=512"`
}

// SubmitDeposit handles POST /me/deposits. The proof is an opaque handle to
// an upload stored elsewhere.
func (h *AccountHandler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	entry, err := h.Ledger.SubmitDeposit(r.Context(), id, req.Amount, req.ProofRef)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, entry)
}

type withdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RequestWithdrawal handles POST /me/withdrawals.
func (h *AccountHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	rec, err := h.Ledger.RequestWithdrawal(r.Context(), id, req.Amount)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rec)
}

// Entries handles GET /me/entries.
func (h *AccountHandler) Entries(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	f, err := entryFilter(r)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	f.AccountID = &id
	list, err := h.Ledger.Entries(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entriesOrEmpty(list))
}

// Team handles GET /me/team.
func (h *AccountHandler) Team(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	team, err := h.Ledger.Team(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, team)
}

func (h *AccountHandler) accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, ok := middleware.ActorFromCtx(r.Context())
	if !ok || actor.AccountID == uuid.Nil {
		httpx.Unauthorized(w, "authentication required")
		return uuid.Nil, false
	}
	return actor.AccountID, true
}

// entryFilter reads kind, status and limit query parameters.
func entryFilter(r *http.Request) (store.EntryFilter, error) {
	q := r.URL.Query()
	f := store.EntryFilter{
		Kind:   models.EntryKind(q.Get("kind")),
		Status: models.EntryStatus(q.Get("status")),
		Limit:  defaultPageSize,
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return f, apperr.Validation(apperr.ReasonInvalidRequest, "unknown kind %q", f.Kind)
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, apperr.Validation(apperr.ReasonInvalidRequest, "unknown status %q", f.Status)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, apperr.Validation(apperr.ReasonInvalidRequest, "limit must be a positive integer")
		}
		f.Limit = min(n, maxPageSize)
	}
	return f, nil
}

func entriesOrEmpty(list []*models.LedgerEntry) []*models.LedgerEntry {
	if list == nil {
		return []*models.LedgerEntry{}
	}
	return list
}
