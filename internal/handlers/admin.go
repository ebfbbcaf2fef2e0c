package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/auth"
	"github.com/cyberclick/backend/internal/httpx"
	"github.com/cyberclick/backend/internal/ledger"
	"github.com/cyberclick/backend/internal/middleware"
	"github.com/cyberclick/backend/internal/models"
)

// AdminHandler serves /api/v1/admin endpoints.
type AdminHandler struct {
	Ledger ledger.Service
	Logger logrus.FieldLogger
	Now    func() time.Time
}

// Accounts handles GET /admin/accounts.
func (h *AdminHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Ledger.Accounts(r.Context())
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Account{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

type setBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

// SetBalance handles POST /admin/accounts/{id}/balance.
func (h *AdminHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	var req setBalanceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	acc, err := h.Ledger.SetBalance(r.Context(), h.actor(r), id, req.Balance)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acc)
}

// ToggleBan handles POST /admin/accounts/{id}/ban.
func (h *AdminHandler) ToggleBan(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	acc, err := h.Ledger.ToggleBan(r.Context(), h.actor(r), id)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acc)
}

// Entries handles GET /admin/entries?kind=&status=.
func (h *AdminHandler) Entries(w http.ResponseWriter, r *http.Request) {
	f, err := entryFilter(r)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	list, err := h.Ledger.Entries(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entriesOrEmpty(list))
}

// Approve handles POST /admin/entries/{id}/approve.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Ledger.Approve)
}

// Reject handles POST /admin/entries/{id}/reject.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Ledger.Reject)
}

type resolveFunc func(ctx context.Context, actor string, id uuid.UUID) (*models.LedgerEntry, error)

func (h *AdminHandler) resolve(w http.ResponseWriter, r *http.Request, fn resolveFunc) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	entry, err := fn(r.Context(), h.actor(r), id)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}

// Stats handles GET /admin/stats?day=YYYY-MM-DD. The day defaults to today
// in UTC.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	day := h.now()
	if raw := r.URL.Query().Get("day"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.WriteError(w, h.Logger, apperr.Validation(apperr.ReasonInvalidRequest, "day must be YYYY-MM-DD"))
			return
		}
		day = d
	}
	st, err := h.Ledger.Stats(r.Context(), day)
	if err != nil {
		httpx.WriteError(w, h.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *AdminHandler) actor(r *http.Request) string {
	if a, ok := middleware.ActorFromCtx(r.Context()); ok {
		return a.Name()
	}
	return auth.AdminSubject
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
